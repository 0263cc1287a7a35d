// Package gamestate owns the shared belief of the match: ball and robot
// position histories, staleness classification, velocity estimation,
// and the pending command state for every robot.
//
// The Store is the single shared-mutable root of the stack. Every
// component holds a reference to the same Store; none copy it. The
// registry of robot entries is guarded by an RWMutex used only for
// entry creation and lookup, and each entity (the ball, each robot)
// carries its own lock, so writers to different keys never serialize
// against each other and a reader can never observe a half-written
// sample.
package gamestate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/queue"
	"github.com/rfccambridge/robocup-prototype/internal/series"
)

// Config holds the Store's tunables.
type Config struct {
	BallHistory      int
	RobotHistory     int
	BallLost         time.Duration
	RobotLost        time.Duration
	VelocityWindow   time.Duration
	BallDeceleration float64 // mm/s^2, rolling friction
	AnalysisInterval time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		BallHistory:      20,
		RobotHistory:     20,
		BallLost:         100 * time.Millisecond,
		RobotLost:        200 * time.Millisecond,
		VelocityWindow:   50 * time.Millisecond,
		BallDeceleration: 350,
		AnalysisInterval: 50 * time.Millisecond,
	}
}

// ConfigFromViper builds a Config from the loaded configuration.
func ConfigFromViper() Config {
	return Config{
		BallHistory:      viper.GetInt("gamestate.ballHistory"),
		RobotHistory:     viper.GetInt("gamestate.robotHistory"),
		BallLost:         viper.GetDuration("gamestate.ballLost"),
		RobotLost:        viper.GetDuration("gamestate.robotLost"),
		VelocityWindow:   viper.GetDuration("gamestate.velocityWindow"),
		BallDeceleration: viper.GetFloat64("gamestate.ballDeceleration"),
		AnalysisInterval: viper.GetDuration("gamestate.analysisInterval"),
	}
}

type robotKey struct {
	team Team
	id   RobotID
}

// Store is the time-windowed shared game-state store.
type Store struct {
	cfg Config
	now func() time.Time

	ball *ballTrack

	mu     sync.RWMutex
	robots map[robotKey]*robotTrack

	beginOnce sync.Once
	begun     chan struct{}

	analysisMu   sync.Mutex
	analysisStop chan struct{}
	analysisDone chan struct{}
}

// NewStore creates an empty Store at match start.
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:    cfg,
		now:    time.Now,
		ball:   newBallTrack(cfg.BallHistory),
		robots: make(map[robotKey]*robotTrack),
		begun:  make(chan struct{}),
	}
}

// robot returns the track for (team, id), or nil if never observed and
// create is false. A RobotState is always created in full: empty
// history, default command state.
func (s *Store) robot(team Team, id RobotID, create bool) *robotTrack {
	key := robotKey{team: team, id: id}
	s.mu.RLock()
	r := s.robots[key]
	s.mu.RUnlock()
	if r != nil || !create {
		return r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r = s.robots[key]; r == nil {
		r = newRobotTrack(team, id, s.cfg.RobotHistory)
		s.robots[key] = r
	}
	return r
}

// UpdateRobotPosition inserts a fresh pose observation for a robot,
// creating its entry on first sight.
func (s *Store) UpdateRobotPosition(team Team, id RobotID, pose Pose) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.poses.PushAt(s.now(), pose)
	r.mu.Unlock()
}

// RobotPosition returns the most recent observed pose. The second
// return is false if the robot has never been observed.
func (s *Store) RobotPosition(team Team, id RobotID) (Pose, bool) {
	r := s.robot(team, id, false)
	if r == nil {
		return Pose{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	smp, ok := r.poses.Newest()
	if !ok {
		return Pose{}, false
	}
	return smp.Value, true
}

// RobotLastUpdate returns the timestamp of the latest observation.
func (s *Store) RobotLastUpdate(team Team, id RobotID) (time.Time, bool) {
	r := s.robot(team, id, false)
	if r == nil {
		return time.Time{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	smp, ok := r.poses.Newest()
	if !ok {
		return time.Time{}, false
	}
	return smp.At, true
}

// IsRobotLost reports whether the robot has never been observed or its
// last observation is older than the robot lost threshold. Every
// consumer must check this before trusting a position.
func (s *Store) IsRobotLost(team Team, id RobotID) bool {
	last, ok := s.RobotLastUpdate(team, id)
	if !ok {
		return true
	}
	return s.now().Sub(last) > s.cfg.RobotLost
}

// RobotIDs returns the ids currently tracked for a team, ascending.
func (s *Store) RobotIDs(team Team) []RobotID {
	s.mu.RLock()
	ids := make([]RobotID, 0, len(s.robots))
	for key := range s.robots {
		if key.team == team {
			ids = append(ids, key.id)
		}
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetWaypoints replaces a robot's pending waypoint queue.
func (s *Store) SetWaypoints(team Team, id RobotID, wps []Waypoint) {
	s.robot(team, id, true).waypoints.Replace(wps)
}

// AppendWaypoints appends to a robot's pending waypoint queue.
func (s *Store) AppendWaypoints(team Team, id RobotID, wps ...Waypoint) {
	s.robot(team, id, true).waypoints.Push(wps...)
}

// Waypoints returns a copy of the robot's pending waypoints. Empty
// means hold position.
func (s *Store) Waypoints(team Team, id RobotID) []Waypoint {
	r := s.robot(team, id, false)
	if r == nil {
		return nil
	}
	return r.waypoints.Items()
}

// DropWaypoints removes up to n waypoints from the front of the queue
// (used as the robot passes them).
func (s *Store) DropWaypoints(team Team, id RobotID, n int) {
	if r := s.robot(team, id, false); r != nil {
		r.waypoints.PopN(n)
	}
}

// ClearWaypoints empties the robot's waypoint queue.
func (s *Store) ClearWaypoints(team Team, id RobotID) {
	if r := s.robot(team, id, false); r != nil {
		r.waypoints.Clear()
	}
}

// SetDribbler sets the robot's dribbler power (0 = off).
func (s *Store) SetDribbler(team Team, id RobotID, power float64) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.dribbler = power
	r.mu.Unlock()
}

// SetCharging turns kicker capacitor charging on or off.
func (s *Store) SetCharging(team Team, id RobotID, charging bool) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.charging = charging
	r.mu.Unlock()
}

// SetKick arms or clears the kick-now flag.
func (s *Store) SetKick(team Team, id RobotID, kick bool) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.kick = kick
	r.mu.Unlock()
}

// AddChargeLevel adjusts the simulated kicker charge level, clamped at
// zero. The actuation provider calls this while charging or after a
// discharge.
func (s *Store) AddChargeLevel(team Team, id RobotID, delta float64) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.chargeLevel += delta
	if r.chargeLevel < 0 {
		r.chargeLevel = 0
	}
	r.mu.Unlock()
}

// ResetChargeLevel zeroes the kicker charge (after a kick fires).
func (s *Store) ResetChargeLevel(team Team, id RobotID) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.chargeLevel = 0
	r.mu.Unlock()
}

// SetSpeedCommand stores the derived low-level speed command for a
// robot.
func (s *Store) SetSpeedCommand(team Team, id RobotID, cmd SpeedCommand) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.speed = cmd
	r.mu.Unlock()
}

// SetSpeedLimit sets the robot's linear speed cap in mm/s.
func (s *Store) SetSpeedLimit(team Team, id RobotID, limit float64) {
	r := s.robot(team, id, true)
	r.mu.Lock()
	r.speedLimit = limit
	r.mu.Unlock()
}

// SetTeamSpeedLimit applies a speed cap to every tracked robot of a
// team (referee stop/halt handling).
func (s *Store) SetTeamSpeedLimit(team Team, limit float64) {
	for _, id := range s.RobotIDs(team) {
		s.SetSpeedLimit(team, id, limit)
	}
}

// CommandState is a consistent copy of one robot's command fields.
type CommandState struct {
	Speed       SpeedCommand
	SpeedLimit  float64
	Dribbler    float64
	Charging    bool
	Kick        bool
	ChargeLevel float64
}

// CommandState returns the robot's current command fields. The second
// return is false if the robot is not tracked.
func (s *Store) CommandState(team Team, id RobotID) (CommandState, bool) {
	r := s.robot(team, id, false)
	if r == nil {
		return CommandState{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return CommandState{
		Speed:       r.speed,
		SpeedLimit:  r.speedLimit,
		Dribbler:    r.dribbler,
		Charging:    r.charging,
		Kick:        r.kick,
		ChargeLevel: r.chargeLevel,
	}, true
}

// SetGameBegun marks the one-time "game begin" gate. Safe to call more
// than once.
func (s *Store) SetGameBegun() {
	s.beginOnce.Do(func() { close(s.begun) })
}

// GameBegun reports whether the game-begin signal has been observed.
func (s *Store) GameBegun() bool {
	select {
	case <-s.begun:
		return true
	default:
		return false
	}
}

// WaitUntilGameBegins blocks until the game-begin signal or context
// cancellation.
func (s *Store) WaitUntilGameBegins(ctx context.Context) error {
	select {
	case <-s.begun:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartAnalysis runs the background analytics task: a bounded-frequency
// loop that refreshes the cached ball velocity concurrently with
// producers and control loops. Calling it twice is a no-op.
func (s *Store) StartAnalysis() {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()
	if s.analysisStop != nil {
		return
	}
	s.analysisStop = make(chan struct{})
	s.analysisDone = make(chan struct{})
	go s.analysisLoop(s.analysisStop, s.analysisDone)
}

// StopAnalysis stops the analytics task and waits for it to exit.
func (s *Store) StopAnalysis() {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()
	if s.analysisStop == nil {
		return
	}
	close(s.analysisStop)
	<-s.analysisDone
	s.analysisStop = nil
	s.analysisDone = nil
}

func (s *Store) analysisLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := s.cfg.AnalysisInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.BallVelocity()
		}
	}
}

// robotTrack is one robot's shared state. The mutex guards the pose
// series and command fields; the waypoint queue synchronizes itself.
type robotTrack struct {
	team Team
	id   RobotID

	mu    sync.Mutex
	poses *series.Timed[Pose]

	waypoints *queue.Queue[Waypoint]

	speed       SpeedCommand
	speedLimit  float64
	dribbler    float64
	charging    bool
	kick        bool
	chargeLevel float64
}

// RobotMaxSpeed is the upper bound on commanded linear speed, mm/s.
// Derived from the no-load motor speed reduced by the wheel geometry.
const RobotMaxSpeed = 500.0

func newRobotTrack(team Team, id RobotID, history int) *robotTrack {
	return &robotTrack{
		team:       team,
		id:         id,
		poses:      series.New[Pose](history),
		waypoints:  queue.New[Waypoint](),
		speedLimit: RobotMaxSpeed,
	}
}
