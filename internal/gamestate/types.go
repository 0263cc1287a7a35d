package gamestate

import (
	"fmt"
	"math"

	"github.com/peterstace/simplefeatures/geom"
)

// Team identifies one of the two robot teams. Robot ids are only unique
// within a team, so robots are always addressed by (Team, RobotID).
type Team int

const (
	TeamBlue Team = iota
	TeamYellow
)

// String returns the lowercase team color.
func (t Team) String() string {
	switch t {
	case TeamBlue:
		return "blue"
	case TeamYellow:
		return "yellow"
	default:
		return fmt.Sprintf("team(%d)", int(t))
	}
}

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamBlue {
		return TeamYellow
	}
	return TeamBlue
}

// ParseTeam maps a CLI color string to a Team.
func ParseTeam(s string) (Team, error) {
	switch s {
	case "blue":
		return TeamBlue, nil
	case "yellow":
		return TeamYellow, nil
	default:
		return TeamBlue, fmt.Errorf("unknown team color %q", s)
	}
}

// RobotID is a robot's numeric id within its team.
type RobotID int

// Pose is a field position plus heading (radians, counterclockwise from
// the +x axis).
type Pose struct {
	XY      geom.XY
	Heading float64
}

// DistanceTo returns the planar distance between two poses, ignoring
// heading.
func (p Pose) DistanceTo(o Pose) float64 {
	return o.XY.Sub(p.XY).Length()
}

// Waypoint is a target pose with optional speed bounds used when
// deriving motion commands. A bound value of zero or below means unset.
type Waypoint struct {
	Pose     Pose
	MinSpeed float64
	MaxSpeed float64
}

// SpeedCommand is the derived low-level speed set for one robot, in the
// robot's own frame: lateral and forward in mm/s, rotation in rad/s.
type SpeedCommand struct {
	X float64
	Y float64
	W float64
}

// IsZero reports whether all speed components are zero.
func (c SpeedCommand) IsZero() bool {
	return c.X == 0 && c.Y == 0 && c.W == 0
}

// WrapPi maps an angle into [-pi, pi) for shortest-turn arithmetic.
func WrapPi(angle float64) float64 {
	a := math.Mod(angle+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
