package control

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
	"github.com/rfccambridge/robocup-prototype/internal/planner"
)

// Loop is one team's control loop, run as a supervised provider. Each
// published snapshot is one tick: dispatch the mode's behavior, then
// reconcile every tracked robot's waypoints into a speed command.
type Loop struct {
	team     gamestate.Team
	mode     Mode
	behavior Behavior
	field    *field.Field
	planner  *planner.Planner
	log      *slog.Logger

	derivers map[gamestate.RobotID]*Deriver
	begun    bool
	warned   bool
}

// NewLoop builds a control loop. behavior may be nil (manual_ui and
// unrecognized modes dispatch nothing per tick).
func NewLoop(team gamestate.Team, mode Mode, behavior Behavior, f *field.Field, p *planner.Planner, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		team:     team,
		mode:     mode,
		behavior: behavior,
		field:    f,
		planner:  p,
		log:      log.With("team", team.String(), "mode", mode.String()),
		derivers: make(map[gamestate.RobotID]*Deriver),
	}
}

func (l *Loop) Name() string { return "control-" + l.team.String() }

// Policy restarts the loop on a crash: one team's tactics dying must
// not end the match, the supervisor brings it back and the other
// team's loop never notices.
func (l *Loop) Policy() coordinator.RestartPolicy { return coordinator.RestartOnCrash }

// Run consumes snapshots until cancellation. Ticks before the
// game-begin signal are consumed without acting; the gate is observed
// once and never re-checked.
func (l *Loop) Run(ctx context.Context, link *coordinator.Link) error {
	for {
		snap, err := link.NextSnapshot(ctx)
		if err != nil {
			return nil
		}
		if !l.begun {
			if !snap.GameBegun {
				continue
			}
			l.begun = true
			l.log.Info("game begun, control loop active")
		}
		if batch := l.Step(snap); !batch.Empty() {
			link.Send(batch)
		}
	}
}

// Step runs one tick against a snapshot and returns the command
// batch. Exported for tests and for harnesses that drive ticks
// manually.
func (l *Loop) Step(snap *gamestate.Snapshot) coordinator.Batch {
	actions := NewActions(l.team)
	l.dispatch(snap, actions)
	l.reconcile(snap, actions)
	return coordinator.Batch{RobotCommands: actions.Commands()}
}

// dispatch invokes the mode's behavior. A panic in tactics code is
// caught here and logged; a single bad tick must not end control of
// the whole team.
func (l *Loop) dispatch(snap *gamestate.Snapshot, actions *Actions) {
	if l.behavior == nil {
		if l.mode == ModeUnrecognized && !l.warned {
			l.log.Warn("unrecognized mode, control loop is a no-op")
			l.warned = true
		}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("behavior tick failed", "behavior", l.behavior.Name(), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	l.behavior.Step(&TeamContext{
		Team:     l.team,
		Snapshot: snap,
		Field:    l.field,
		Planner:  l.planner,
		Actions:  actions,
		Log:      l.log,
	})
}

// reconcile walks every tracked robot of the team. A lost robot is
// forced to zero speeds so it never coasts on stale commands;
// otherwise the speed command is re-derived from the current pose and
// the current (possibly just-updated) waypoint queue.
func (l *Loop) reconcile(snap *gamestate.Snapshot, actions *Actions) {
	for _, r := range snap.TeamRobots(l.team) {
		if r.Lost {
			if !r.Command.Speed.IsZero() {
				l.log.Debug("robot lost, zeroing speeds", "robot", r.ID)
			}
			cmd := actions.command(r.ID)
			cmd.SetSpeed = true
			cmd.Speed = gamestate.SpeedCommand{}
			continue
		}
		wps := actions.pendingWaypoints(r.ID, r.Waypoints)
		d := l.derivers[r.ID]
		if d == nil {
			d = &Deriver{}
			l.derivers[r.ID] = d
		}
		speed, consumed, ok := d.Derive(r.Pose, wps, r.Command.SpeedLimit)
		if !ok {
			continue
		}
		cmd := actions.command(r.ID)
		cmd.SetSpeed = true
		cmd.Speed = speed
		if consumed > 0 {
			actions.SetWaypoints(r.ID, wps[consumed:])
		}
	}
}
