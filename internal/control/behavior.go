package control

import (
	"log/slog"
	"sort"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
	"github.com/rfccambridge/robocup-prototype/internal/planner"
)

// Behavior is one tick of team tactics: it reads the snapshot and
// records intents for the team's own robots through the Actions
// recorder. Implementations live outside the control loop (roles,
// plays, scripted sequences) and must be deterministic per snapshot.
type Behavior interface {
	Name() string
	Step(tc *TeamContext)
}

// TeamContext is everything a behavior may touch during one tick.
type TeamContext struct {
	Team     gamestate.Team
	Snapshot *gamestate.Snapshot
	Field    *field.Field
	Planner  *planner.Planner
	Actions  *Actions
	Log      *slog.Logger
}

// Actions records the mutations a behavior wants applied to its own
// team's robots this tick. The recorder keeps the last write per robot
// and field group; the loop folds it into the outgoing batch after
// reconciliation.
type Actions struct {
	team      gamestate.Team
	waypoints map[gamestate.RobotID][]gamestate.Waypoint
	commands  map[gamestate.RobotID]*coordinator.RobotCommand
}

// NewActions builds an empty recorder for a team's tick.
func NewActions(team gamestate.Team) *Actions {
	return &Actions{
		team:      team,
		waypoints: make(map[gamestate.RobotID][]gamestate.Waypoint),
		commands:  make(map[gamestate.RobotID]*coordinator.RobotCommand),
	}
}

func (a *Actions) command(id gamestate.RobotID) *coordinator.RobotCommand {
	cmd := a.commands[id]
	if cmd == nil {
		cmd = &coordinator.RobotCommand{Team: a.team, ID: id}
		a.commands[id] = cmd
	}
	return cmd
}

// SetWaypoints replaces the robot's waypoint queue this tick.
func (a *Actions) SetWaypoints(id gamestate.RobotID, wps []gamestate.Waypoint) {
	a.waypoints[id] = wps
	cmd := a.command(id)
	cmd.SetWaypoints = true
	cmd.Waypoints = wps
}

// MoveTo replaces the queue with a single target pose.
func (a *Actions) MoveTo(id gamestate.RobotID, pose gamestate.Pose) {
	a.SetWaypoints(id, []gamestate.Waypoint{{Pose: pose}})
}

// SetDribbler sets dribbler power (0 = off).
func (a *Actions) SetDribbler(id gamestate.RobotID, power float64) {
	cmd := a.command(id)
	cmd.SetDribbler = true
	cmd.Dribbler = power
}

// SetCharging turns kicker charging on or off.
func (a *Actions) SetCharging(id gamestate.RobotID, charging bool) {
	cmd := a.command(id)
	cmd.SetCharging = true
	cmd.Charging = charging
}

// SetKick arms or clears the kick-now flag.
func (a *Actions) SetKick(id gamestate.RobotID, kick bool) {
	cmd := a.command(id)
	cmd.SetKick = true
	cmd.Kick = kick
}

// Commands returns the recorded per-robot commands in robot id order.
func (a *Actions) Commands() []coordinator.RobotCommand {
	ids := make([]gamestate.RobotID, 0, len(a.commands))
	for id := range a.commands {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]coordinator.RobotCommand, 0, len(ids))
	for _, id := range ids {
		out = append(out, *a.commands[id])
	}
	return out
}

// Command returns the recorded command for one robot, if any.
func (a *Actions) Command(id gamestate.RobotID) (coordinator.RobotCommand, bool) {
	cmd, ok := a.commands[id]
	if !ok {
		return coordinator.RobotCommand{}, false
	}
	return *cmd, true
}

// pendingWaypoints returns the queue the reconciliation pass should
// derive from: this tick's replacement if the behavior made one,
// otherwise the queue already in the store.
func (a *Actions) pendingWaypoints(id gamestate.RobotID, stored []gamestate.Waypoint) []gamestate.Waypoint {
	if wps, ok := a.waypoints[id]; ok {
		return wps
	}
	return stored
}
