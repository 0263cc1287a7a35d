// Package strategy holds the team tactics that run inside a control
// loop: individual roles (goalie, attacker, defender), the full-game
// role assignment, and the scripted demo sequence.
package strategy

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rfccambridge/robocup-prototype/internal/control"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// Possession and arrival tunables, mm and radians.
const (
	// dribblerOffset is how far the dribbler face sits from the robot
	// center.
	dribblerOffset = field.RobotDribblerRadius + field.BallRadius
	// possessionRadius is how close the ball must be to the dribbler
	// face to count as held.
	possessionRadius = 60.0
	arrivalDistance  = 60.0
	arrivalAngle     = 0.05
)

// dribblerPos returns the field position of the robot's dribbler face.
func dribblerPos(pose gamestate.Pose) geom.XY {
	dir := geom.XY{X: math.Cos(pose.Heading), Y: math.Sin(pose.Heading)}
	return pose.XY.Add(dir.Scale(dribblerOffset))
}

// ballInDribbler reports whether the robot currently holds the ball.
func ballInDribbler(snap *gamestate.Snapshot, r gamestate.RobotSnapshot) bool {
	if !snap.BallSeen || snap.BallLost {
		return false
	}
	return dist(snap.BallPosition, dribblerPos(r.Pose)) < possessionRadius
}

// dribblerTarget returns the pose that places the dribbler face at pt
// with the given heading.
func dribblerTarget(pt geom.XY, heading float64) gamestate.Pose {
	dir := geom.XY{X: math.Cos(heading), Y: math.Sin(heading)}
	return gamestate.Pose{XY: pt.Sub(dir.Scale(dribblerOffset)), Heading: heading}
}

// doneMoving reports arrival at the final waypoint, angle included. An
// empty queue counts as done.
func doneMoving(r gamestate.RobotSnapshot) bool {
	if len(r.Waypoints) == 0 {
		return true
	}
	dest := r.Waypoints[len(r.Waypoints)-1].Pose
	if dist(r.Pose.XY, dest.XY) >= arrivalDistance {
		return false
	}
	return math.Abs(gamestate.WrapPi(dest.Heading-r.Pose.Heading)) < arrivalAngle
}

// faceBall returns the heading that points a robot at the ball.
func faceBall(snap *gamestate.Snapshot, r gamestate.RobotSnapshot) float64 {
	if !snap.BallSeen {
		return r.Pose.Heading
	}
	d := snap.BallPosition.Sub(r.Pose.XY)
	return math.Atan2(d.Y, d.X)
}

func dist(a, b geom.XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// activeRobots returns the team's robots that are currently tracked.
func activeRobots(tc *control.TeamContext) []gamestate.RobotSnapshot {
	var out []gamestate.RobotSnapshot
	for _, r := range tc.Snapshot.TeamRobots(tc.Team) {
		if !r.Lost {
			out = append(out, r)
		}
	}
	return out
}
