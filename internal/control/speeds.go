package control

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// Hardware capability bounds. Max linear speed comes from the no-load
// motor speed reduced by the wheel geometry; the goal is an upper
// bound the firmware can obey accurately.
const (
	RobotMaxSpeed = gamestate.RobotMaxSpeed
	RobotMaxW     = 6.14
)

// Proportional scaling constants for converting position deltas into
// speeds.
const (
	SpeedScale         = 0.9
	RotationSpeedScale = 3.0
)

// closeEnoughDistance is the arrival radius for intermediate
// waypoints, mm.
const closeEnoughDistance = 50.0

// minCornerSlowdown is the floor on the corner slowdown factor, as a
// proportion of the speed limit, applied at turns of 90 degrees or
// sharper.
const minCornerSlowdown = 0.15

// Deriver converts one robot's waypoint queue into speed commands in
// the robot's own frame. It keeps the previously consumed waypoint so
// overshoot past a waypoint counts as arrival.
type Deriver struct {
	prev    gamestate.Pose
	hasPrev bool
}

// Derive computes the speed command for a robot at pose current
// pursuing the waypoint queue, and returns how many leading waypoints
// were consumed as passed. With an empty queue it reports ok=false and
// the caller decides what the absence of a target means.
func (d *Deriver) Derive(current gamestate.Pose, wps []gamestate.Waypoint, speedLimit float64) (cmd gamestate.SpeedCommand, consumed int, ok bool) {
	if len(wps) == 0 {
		return gamestate.SpeedCommand{}, 0, false
	}
	if !d.hasPrev {
		d.prev = current
		d.hasPrev = true
	}
	for len(wps) > 1 && d.closeEnough(current, wps[0].Pose) {
		d.prev = wps[0].Pose
		wps = wps[1:]
		consumed++
	}
	goal := wps[0]

	delta := goal.Pose.XY.Sub(current.XY)
	robotVec := FieldToRobot(current.Heading, delta)
	normX, normY := normalize(robotVec)
	normW := trimAngle(goal.Pose.Heading - current.Heading)

	linear := magnitude(delta) * SpeedScale

	// Slow down less through intermediate waypoints depending on the
	// sharpness of the turn onto the next leg; the final waypoint
	// always gets a full stop approach.
	var minWaypointSpeed float64
	if len(wps) > 1 {
		next := wps[1].Pose.XY.Sub(goal.Pose.XY)
		m1, m2 := magnitude(delta), magnitude(next)
		if m1 > 0 && m2 > 0 {
			cos := delta.Dot(next) / (m1 * m2)
			if cos > 1 {
				cos = 1
			}
			if cos < -1 {
				cos = -1
			}
			turn := math.Min(math.Acos(cos), math.Pi/2)
			factor := math.Max(1-turn/(math.Pi/2), minCornerSlowdown)
			minWaypointSpeed = speedLimit * factor
		}
	}
	linear += minWaypointSpeed
	if goal.MinSpeed > 0 && linear < goal.MinSpeed {
		linear = goal.MinSpeed
	}
	if goal.MaxSpeed > 0 && linear > goal.MaxSpeed {
		linear = goal.MaxSpeed
	}
	if linear > speedLimit {
		linear = speedLimit
	}

	cmd.X = linear * normX
	cmd.Y = linear * normY
	cmd.W = clamp(normW*RotationSpeedScale, -RobotMaxW, RobotMaxW)
	return cmd, consumed, true
}

// closeEnough reports arrival at a waypoint: within the arrival radius
// or already driven past it (distance traveled from the previous
// waypoint exceeds the leg length).
func (d *Deriver) closeEnough(current gamestate.Pose, goal gamestate.Pose) bool {
	if magnitude(goal.XY.Sub(current.XY)) < closeEnoughDistance {
		return true
	}
	fromPrev := magnitude(current.XY.Sub(d.prev.XY))
	leg := magnitude(goal.XY.Sub(d.prev.XY))
	return fromPrev > leg
}

// FieldToRobot transforms a field-frame vector into the perspective
// of a robot with the given heading. The robot's forward axis is +y
// in its own frame.
func FieldToRobot(heading float64, v geom.XY) geom.XY {
	mag := magnitude(v)
	if mag == 0 {
		return v
	}
	rot := heading - math.Atan2(v.Y, v.X)
	return geom.XY{X: math.Sin(rot) * mag, Y: math.Cos(rot) * mag}
}

// RobotToField is the inverse transform of FieldToRobot. The
// simulator uses it to integrate robot-frame speed commands back into
// field coordinates.
func RobotToField(heading float64, v geom.XY) geom.XY {
	mag := magnitude(v)
	if mag == 0 {
		return v
	}
	rot := heading - math.Atan2(v.X, v.Y)
	return geom.XY{X: math.Cos(rot) * mag, Y: math.Sin(rot) * mag}
}

func normalize(v geom.XY) (float64, float64) {
	mag := magnitude(v)
	if mag == 0 {
		return 0, 0
	}
	return v.X / mag, v.Y / mag
}

func magnitude(v geom.XY) float64 {
	return math.Hypot(v.X, v.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// trimAngle maps an angle into (-pi, pi] for shortest turning.
func trimAngle(angle float64) float64 {
	return gamestate.WrapPi(angle)
}
