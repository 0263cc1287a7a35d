// Package radio turns per-robot speed command state into the text
// command protocol the robot firmware understands and pushes it over
// the outbound transport. It also simulates the kicker capacitor
// charge cycle, since the firmware gives no feedback channel for it.
package radio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/control"
	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// Firmware command types.
const (
	cmdMove    = 0
	cmdDribble = 1
	cmdKill    = 2
)

// BroadcastID addresses every robot on the channel.
const BroadcastID = -1

// maxUnits is the firmware's speed unit range; commands are clamped
// into [-255, 255].
const maxUnits = 255

// chargeRate is the simulated kicker capacitor charge per second of
// commanded charging.
const chargeRate = 100.0

// Transport is the outbound half of the robot link. Implementations
// wrap the serial bridge; tests substitute a recorder.
type Transport interface {
	Send(cmd string) error
	Close() error
}

// EncodeMove renders a movement command. Speed units are clamped into
// the firmware range and the TTL tells the firmware when to stop if no
// follow-up arrives.
func EncodeMove(id int, lateral, forward, w int, ttl time.Duration) string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d",
		id, cmdMove, clampUnits(lateral), clampUnits(forward), clampUnits(w), ttl.Milliseconds())
}

// EncodeDribble renders a dribbler power command.
func EncodeDribble(id int, power int) string {
	return fmt.Sprintf("%d,%d,%d", id, cmdDribble, power)
}

// EncodeKill renders the broadcast stop-everything command.
func EncodeKill() string {
	return fmt.Sprintf("%d,%d", BroadcastID, cmdKill)
}

func clampUnits(v int) int {
	if v > maxUnits {
		return maxUnits
	}
	if v < -maxUnits {
		return -maxUnits
	}
	return v
}

// moveUnits converts a speed command into firmware units.
func moveUnits(cmd gamestate.SpeedCommand) (lateral, forward, w int) {
	lateral = int(cmd.X * maxUnits / control.RobotMaxSpeed)
	forward = int(cmd.Y * maxUnits / control.RobotMaxSpeed)
	w = int(cmd.W * maxUnits / control.RobotMaxW)
	return lateral, forward, w
}

// Radio is the actuation provider for one team.
type Radio struct {
	team      gamestate.Team
	transport Transport
	log       *slog.Logger

	commandDelay time.Duration
	moveTTL      time.Duration

	lastSent map[gamestate.RobotID]time.Time
	lastTick time.Time
	now      func() time.Time
}

// New builds a radio provider over an open transport.
func New(team gamestate.Team, transport Transport, log *slog.Logger) *Radio {
	if log == nil {
		log = slog.Default()
	}
	return &Radio{
		team:         team,
		transport:    transport,
		log:          log.With("team", team.String()),
		commandDelay: viper.GetDuration("radio.commandDelay"),
		moveTTL:      viper.GetDuration("radio.moveTTL"),
		lastSent:     make(map[gamestate.RobotID]time.Time),
		now:          time.Now,
	}
}

func (r *Radio) Name() string { return "radio-" + r.team.String() }

// Policy is fatal: restarting actuation would mean commanding robots
// from stale state.
func (r *Radio) Policy() coordinator.RestartPolicy { return coordinator.Fatal }

// Run consumes snapshots and transmits each tracked robot's command
// state, throttled per robot so the link is never spammed. On shutdown
// it broadcasts a kill before closing the transport.
func (r *Radio) Run(ctx context.Context, link *coordinator.Link) error {
	defer func() {
		if err := r.transport.Send(EncodeKill()); err != nil {
			r.log.Error("kill broadcast failed", "error", err)
		}
		if err := r.transport.Close(); err != nil {
			r.log.Error("transport close failed", "error", err)
		}
	}()
	for {
		snap, err := link.NextSnapshot(ctx)
		if err != nil {
			return nil
		}
		if err := r.Transmit(snap, link); err != nil {
			return err
		}
	}
}

// Transmit sends one snapshot's worth of commands and reports the
// simulated charge deltas back through the link.
func (r *Radio) Transmit(snap *gamestate.Snapshot, link *coordinator.Link) error {
	now := r.now()
	dt := 0.0
	if !r.lastTick.IsZero() {
		dt = now.Sub(r.lastTick).Seconds()
	}
	r.lastTick = now

	var batch coordinator.Batch
	for _, robot := range snap.TeamRobots(r.team) {
		if err := r.sendRobot(now, robot); err != nil {
			return fmt.Errorf("robot %d: %w", robot.ID, err)
		}
		if cmd, ok := chargeUpdate(robot, dt); ok {
			batch.RobotCommands = append(batch.RobotCommands, cmd)
		}
	}
	if !batch.Empty() {
		link.Send(batch)
	}
	return nil
}

// sendRobot transmits one robot's move and dribble commands unless the
// robot was addressed within the command delay; a throttled command is
// dropped, not queued, because the next snapshot supersedes it anyway.
func (r *Radio) sendRobot(now time.Time, robot gamestate.RobotSnapshot) error {
	if last, ok := r.lastSent[robot.ID]; ok && now.Sub(last) < r.commandDelay {
		return nil
	}
	r.lastSent[robot.ID] = now

	lateral, forward, w := moveUnits(robot.Command.Speed)
	if err := r.transport.Send(EncodeMove(int(robot.ID), lateral, forward, w, r.moveTTL)); err != nil {
		return err
	}
	return r.transport.Send(EncodeDribble(int(robot.ID), int(robot.Command.Dribbler)))
}

// chargeUpdate simulates the kicker capacitor: charging accrues while
// commanded, and an armed kick with any charge discharges it.
func chargeUpdate(robot gamestate.RobotSnapshot, dt float64) (coordinator.RobotCommand, bool) {
	cmd := coordinator.RobotCommand{Team: robot.Team, ID: robot.ID}
	if robot.Command.Kick && robot.Command.ChargeLevel > 0 {
		cmd.ResetCharge = true
		cmd.SetKick = true
		cmd.Kick = false
		return cmd, true
	}
	if robot.Command.Charging && dt > 0 {
		cmd.AddCharge = chargeRate * dt
		return cmd, true
	}
	return coordinator.RobotCommand{}, false
}
