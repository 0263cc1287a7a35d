package strategy

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rfccambridge/robocup-prototype/internal/control"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
	"github.com/rfccambridge/robocup-prototype/internal/planner"
)

// Role is per-robot tactics: one robot, one tick.
type Role interface {
	Name() string
	Act(tc *control.TeamContext, r gamestate.RobotSnapshot)
}

// goalieOffset is how far the goalie stands from its goal center.
const goalieOffset = 600.0

// Goalie guards the team's goal: it holds the ball-goal line at a
// fixed offset, and reclaims the ball when it gets into the defense
// area.
type Goalie struct{}

func (Goalie) Name() string { return "goalie" }

func (Goalie) Act(tc *control.TeamContext, r gamestate.RobotSnapshot) {
	snap := tc.Snapshot
	ballPos := tc.Field.Center()
	if snap.BallSeen && !snap.BallLost {
		ballPos = snap.BallPosition
	}

	if snap.BallSeen && !snap.BallLost && tc.Field.InDefenseArea(snap.BallPosition, tc.Team) {
		// Ball got behind the line: go pick it up.
		tc.Actions.SetDribbler(r.ID, 1)
		tc.Actions.MoveTo(r.ID, dribblerTarget(snap.BallPosition, faceBall(snap, r)))
		return
	}

	tc.Actions.SetDribbler(r.ID, 0)
	if pose, ok := tc.Field.BlockGoalCenterPos(goalieOffset, ballPos, tc.Team); ok {
		tc.Actions.MoveTo(r.ID, pose)
	}
}

// Shooting tunables.
const (
	shootingRange = 3000.0
	shootCharge   = 100.0
)

// Attacker chases possession and shoots: without the ball it drives to
// the predicted ball position with the dribbler spinning; with the
// ball it turns onto the goal and kicks once charged and aligned.
type Attacker struct{}

func (Attacker) Name() string { return "attacker" }

func (Attacker) Act(tc *control.TeamContext, r gamestate.RobotSnapshot) {
	snap := tc.Snapshot
	if !snap.BallSeen {
		return
	}

	if ballInDribbler(snap, r) {
		goal := tc.Field.AttackGoalCenter(tc.Team)
		aim := math.Atan2(goal.Y-r.Pose.XY.Y, goal.X-r.Pose.XY.X)
		aligned := math.Abs(gamestate.WrapPi(aim-r.Pose.Heading)) < arrivalAngle

		if dist(r.Pose.XY, goal) < shootingRange {
			tc.Actions.SetCharging(r.ID, r.Command.ChargeLevel < shootCharge)
			if aligned && r.Command.ChargeLevel >= shootCharge {
				tc.Actions.SetKick(r.ID, true)
				return
			}
			// Pivot in place onto the shot line, keeping the ball on
			// the dribbler.
			tc.Actions.MoveTo(r.ID, dribblerTarget(snap.BallPosition, aim))
			return
		}
		// Out of range: carry the ball toward the goal.
		if toGoal := goal.Sub(r.Pose.XY); math.Hypot(toGoal.X, toGoal.Y) > 0 {
			tc.Actions.MoveTo(r.ID, gamestate.Pose{XY: r.Pose.XY.Add(toGoal.Unit().Scale(1000)), Heading: aim})
		}
		return
	}

	// Chase where the ball will be, not where it was.
	target := snap.BallPosition
	if pred, ok := predictBall(snap); ok {
		target = pred
	}
	tc.Actions.SetDribbler(r.ID, 1)
	tc.Actions.SetCharging(r.ID, true)
	pose := dribblerTarget(target, faceBall(snap, r))
	if tc.Planner != nil {
		isOpen := planner.AvoidRobots(tc.Field, snap, tc.Team, r.ID, 2*field.RobotRadius)
		if wps := tc.Planner.PlanWaypoints(r.Pose, pose, isOpen); len(wps) > 0 {
			tc.Actions.SetWaypoints(r.ID, wps)
			return
		}
	}
	tc.Actions.MoveTo(r.ID, pose)
}

// defenderStandoff is how far in front of the ball the defender sits
// on the ball-goal line.
const defenderStandoff = 500.0

// Defender holds the line between the ball and the team's own goal.
type Defender struct{}

func (Defender) Name() string { return "defender" }

func (Defender) Act(tc *control.TeamContext, r gamestate.RobotSnapshot) {
	snap := tc.Snapshot
	if !snap.BallSeen {
		return
	}
	goal := tc.Field.DefenseGoalCenter(tc.Team)
	ballFromGoal := dist(snap.BallPosition, goal)
	offset := ballFromGoal - defenderStandoff
	if min := tc.Field.DefenseAreaDepth + field.RobotRadius; offset < min {
		offset = min
	}
	if pose, ok := tc.Field.BlockGoalCenterPos(offset, snap.BallPosition, tc.Team); ok {
		tc.Actions.MoveTo(r.ID, pose)
	}
}

// Intercept prediction tunables: horizon in seconds, deceleration in
// mm/s^2 matching the store's rolling-friction model.
const (
	interceptHorizon = 0.3
	ballDeceleration = 350.0
)

// predictBall extrapolates a short intercept horizon from the
// snapshot's cached ball velocity.
func predictBall(snap *gamestate.Snapshot) (geom.XY, bool) {
	speed := math.Hypot(snap.BallVelocity.X, snap.BallVelocity.Y)
	if speed == 0 {
		return snap.BallPosition, false
	}
	t := interceptHorizon
	if stop := speed / ballDeceleration; t > stop {
		t = stop
	}
	travel := speed*t - 0.5*ballDeceleration*t*t
	return snap.BallPosition.Add(snap.BallVelocity.Scale(travel / speed)), true
}
