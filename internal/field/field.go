// Package field models the playing field geometry: bounds, goals and
// defense areas, in millimeters. The origin is the lower-left corner;
// blue defends the x=0 goal line, yellow the x=Width line.
package field

import (
	"math"
	"math/rand"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// Physical entity radii (mm). The robot is modeled as a circle except
// for its flattened dribbler face.
const (
	BallRadius          = 21.0 * 1.5
	RobotRadius         = 90.0 * 1.5
	RobotDribblerRadius = 80.0
)

// Field holds the static geometry of the pitch.
type Field struct {
	Width            float64
	Height           float64
	GoalWidth        float64
	DefenseAreaWidth float64
	DefenseAreaDepth float64
}

// FromConfig builds a Field from the loaded viper configuration.
func FromConfig() *Field {
	return &Field{
		Width:            viper.GetFloat64("field.width"),
		Height:           viper.GetFloat64("field.height"),
		GoalWidth:        viper.GetFloat64("field.goalWidth"),
		DefenseAreaWidth: viper.GetFloat64("field.defenseAreaWidth"),
		DefenseAreaDepth: viper.GetFloat64("field.defenseAreaDepth"),
	}
}

// Contains reports whether a point lies on the field.
func (f *Field) Contains(p geom.XY) bool {
	return p.X >= 0 && p.X <= f.Width && p.Y >= 0 && p.Y <= f.Height
}

// Center returns the field midpoint.
func (f *Field) Center() geom.XY {
	return geom.XY{X: f.Width / 2, Y: f.Height / 2}
}

// RandomPoint samples a uniform point on the integer millimeter grid.
// Integer coordinates keep sampled points usable as exact map keys in
// the planner.
func (f *Field) RandomPoint(r *rand.Rand) geom.XY {
	return geom.XY{
		X: float64(r.Intn(int(f.Width) + 1)),
		Y: float64(r.Intn(int(f.Height) + 1)),
	}
}

// goalLineX returns the x coordinate of the goal line the team defends.
func (f *Field) goalLineX(team gamestate.Team) float64 {
	if team == gamestate.TeamBlue {
		return 0
	}
	return f.Width
}

// DefenseGoalCenter returns the center of the goal the team defends.
func (f *Field) DefenseGoalCenter(team gamestate.Team) geom.XY {
	return geom.XY{X: f.goalLineX(team), Y: f.Height / 2}
}

// AttackGoalCenter returns the center of the goal the team attacks.
func (f *Field) AttackGoalCenter(team gamestate.Team) geom.XY {
	return f.DefenseGoalCenter(team.Opponent())
}

// InDefenseArea reports whether a point is inside the rectangular
// defense area in front of the team's goal.
func (f *Field) InDefenseArea(p geom.XY, team gamestate.Team) bool {
	if p.Y < (f.Height-f.DefenseAreaWidth)/2 || p.Y > (f.Height+f.DefenseAreaWidth)/2 {
		return false
	}
	if team == gamestate.TeamBlue {
		return p.X >= 0 && p.X <= f.DefenseAreaDepth
	}
	return p.X >= f.Width-f.DefenseAreaDepth && p.X <= f.Width
}

// BlockGoalCenterPos returns the pose on the ball-goal line at the
// given distance from the team's goal center, facing the ball. Returns
// false when the ball position coincides with the goal center.
func (f *Field) BlockGoalCenterPos(distFromGoal float64, ballPos geom.XY, team gamestate.Team) (gamestate.Pose, bool) {
	goal := f.DefenseGoalCenter(team)
	toBall := ballPos.Sub(goal)
	if toBall.Length() == 0 {
		return gamestate.Pose{}, false
	}
	pos := goal.Add(toBall.Unit().Scale(distFromGoal))
	return gamestate.Pose{XY: pos, Heading: bearing(pos, ballPos)}, true
}

// bearing returns the angle of the vector from a to b.
func bearing(a, b geom.XY) float64 {
	d := b.Sub(a)
	return math.Atan2(d.Y, d.X)
}
