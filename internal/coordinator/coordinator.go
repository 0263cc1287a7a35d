// Package coordinator supervises the external collaborators of the
// match (vision, referee, control loops, actuation, simulator) and
// owns the only write path into the game-state store. Each provider
// talks to the coordinator over its own capacity-one channel pair, so
// the main tick never blocks on a slow or dead provider.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// RestartPolicy decides what a provider crash means for the match.
type RestartPolicy int

const (
	// RestartOnCrash providers are restarted after a backoff. Losing
	// a few frames of vision or referee data is recoverable.
	RestartOnCrash RestartPolicy = iota
	// Fatal providers take the whole coordinator down. Actuation is
	// fatal: restarting it would mean commanding robots from stale
	// state.
	Fatal
)

func (p RestartPolicy) String() string {
	if p == Fatal {
		return "fatal"
	}
	return "restart"
}

// Provider is one supervised collaborator. Run is the provider's whole
// life: an unbounded loop that blocks on link.NextSnapshot (or its own
// external input) and terminates only when ctx is canceled.
type Provider interface {
	Name() string
	Policy() RestartPolicy
	Run(ctx context.Context, link *Link) error
}

// SpeedLimitStopped is the per-robot linear speed cap applied while
// the referee holds the game in STOP.
const SpeedLimitStopped = 250.0

// Options tunes the coordinator loop.
type Options struct {
	Tick           time.Duration
	StopGrace      time.Duration
	RestartBackoff time.Duration
}

// OptionsFromViper reads the coordinator options from the loaded
// configuration.
func OptionsFromViper() Options {
	return Options{
		Tick:           viper.GetDuration("coordinator.tick"),
		StopGrace:      viper.GetDuration("coordinator.stopGrace"),
		RestartBackoff: viper.GetDuration("coordinator.restartBackoff"),
	}
}

type managed struct {
	provider Provider
	link     *Link
}

// Coordinator runs the tick loop and supervises providers. Configure
// with Add before calling Run; Add after Run is not supported.
type Coordinator struct {
	store   *gamestate.Store
	log     *slog.Logger
	opts    Options
	metrics *metrics

	providers []*managed
}

// New creates a coordinator over the store.
func New(store *gamestate.Store, log *slog.Logger, opts Options) *Coordinator {
	if opts.Tick <= 0 {
		opts.Tick = 8 * time.Millisecond
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 2 * time.Second
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:   store,
		log:     log,
		opts:    opts,
		metrics: newMetrics(),
	}
}

// Add registers a provider. Each provider gets its own link.
func (c *Coordinator) Add(p Provider) {
	c.providers = append(c.providers, &managed{provider: p, link: NewLink()})
}

// Run starts every provider and drives the tick loop until the context
// is canceled or a fatal provider dies. On shutdown it waits up to the
// stop grace period for provider loops to exit, then abandons them.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fatal := make(chan error, len(c.providers))
	var wg sync.WaitGroup
	for _, m := range c.providers {
		wg.Add(1)
		go func(m *managed) {
			defer wg.Done()
			c.supervise(ctx, m, fatal)
		}(m)
	}

	ticker := time.NewTicker(c.opts.Tick)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-fatal:
			runErr = err
			cancel()
			break loop
		case <-ticker.C:
			c.Tick(ctx)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.opts.StopGrace):
		c.log.Warn("providers unresponsive past stop grace, abandoning")
	}
	return runErr
}

// Tick runs one coordinator iteration: collect and apply every pending
// provider batch, then publish a fresh snapshot to every provider.
// Exported so tests and the simulator harness can step the loop
// manually.
func (c *Coordinator) Tick(ctx context.Context) {
	for _, m := range c.providers {
		if batch, ok := m.link.PollBatch(); ok {
			c.applyBatch(m.provider.Name(), batch)
			c.metrics.batchCollected(ctx, m.provider.Name())
		}
	}

	snap := c.store.Snapshot()
	for _, m := range c.providers {
		if m.link.Offer(snap) {
			c.metrics.snapshotPublished(ctx, m.provider.Name())
		} else {
			c.metrics.snapshotDropped(ctx, m.provider.Name())
		}
	}
}

func (c *Coordinator) applyBatch(provider string, b Batch) {
	for _, obs := range b.BallObservations {
		c.store.UpdateBallPosition(obs.Pos)
	}
	for _, obs := range b.RobotObservations {
		c.store.UpdateRobotPosition(obs.Team, obs.ID, obs.Pose)
	}
	for _, ev := range b.RefereeEvents {
		c.applyReferee(provider, ev)
	}
	for _, cmd := range b.RobotCommands {
		c.applyCommand(cmd)
	}
}

func (c *Coordinator) applyReferee(provider string, ev RefereeEvent) {
	c.log.Info("referee command", "provider", provider, "command", ev.Command)
	switch ev.Command {
	case RefereeHalt:
		c.store.SetTeamSpeedLimit(gamestate.TeamBlue, 0)
		c.store.SetTeamSpeedLimit(gamestate.TeamYellow, 0)
	case RefereeStop:
		c.store.SetTeamSpeedLimit(gamestate.TeamBlue, SpeedLimitStopped)
		c.store.SetTeamSpeedLimit(gamestate.TeamYellow, SpeedLimitStopped)
	case RefereeNormalStart, RefereeForceStart:
		c.store.SetTeamSpeedLimit(gamestate.TeamBlue, gamestate.RobotMaxSpeed)
		c.store.SetTeamSpeedLimit(gamestate.TeamYellow, gamestate.RobotMaxSpeed)
		c.store.SetGameBegun()
	default:
		c.log.Debug("ignoring referee command", "command", ev.Command)
	}
}

func (c *Coordinator) applyCommand(cmd RobotCommand) {
	if cmd.SetWaypoints {
		c.store.SetWaypoints(cmd.Team, cmd.ID, cmd.Waypoints)
	}
	if cmd.SetSpeed {
		c.store.SetSpeedCommand(cmd.Team, cmd.ID, cmd.Speed)
	}
	if cmd.SetDribbler {
		c.store.SetDribbler(cmd.Team, cmd.ID, cmd.Dribbler)
	}
	if cmd.SetCharging {
		c.store.SetCharging(cmd.Team, cmd.ID, cmd.Charging)
	}
	if cmd.SetKick {
		c.store.SetKick(cmd.Team, cmd.ID, cmd.Kick)
	}
	if cmd.SetSpeedLimit {
		c.store.SetSpeedLimit(cmd.Team, cmd.ID, cmd.SpeedLimit)
	}
	if cmd.ResetCharge {
		c.store.ResetChargeLevel(cmd.Team, cmd.ID)
	} else if cmd.AddCharge != 0 {
		c.store.AddChargeLevel(cmd.Team, cmd.ID, cmd.AddCharge)
	}
}

// supervise runs one provider until clean exit or cancellation,
// restarting crashed providers according to their policy.
func (c *Coordinator) supervise(ctx context.Context, m *managed, fatal chan<- error) {
	name := m.provider.Name()
	for {
		err := c.runProvider(ctx, m)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			c.log.Info("provider exited", "provider", name)
			return
		}
		c.log.Error("provider crashed", "provider", name, "policy", m.provider.Policy().String(), "error", err)
		c.metrics.providerCrashed(ctx, name)
		if m.provider.Policy() == Fatal {
			fatal <- fmt.Errorf("provider %s: %w", name, err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.RestartBackoff):
		}
	}
}

func (c *Coordinator) runProvider(ctx context.Context, m *managed) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return m.provider.Run(ctx, m.link)
}
