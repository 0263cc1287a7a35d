package coordinator

import (
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// BallObservation is one vision (or simulator) fix of the ball.
type BallObservation struct {
	Pos geom.XY
}

// RobotObservation is one vision fix of a robot.
type RobotObservation struct {
	Team gamestate.Team
	ID   gamestate.RobotID
	Pose gamestate.Pose
}

// Referee commands the coordinator understands. The payload schema of
// the referee feed itself is owned by the refbox provider; by the time
// an event reaches a batch it has been reduced to one of these.
const (
	RefereeHalt        = "HALT"
	RefereeStop        = "STOP"
	RefereeNormalStart = "NORMAL_START"
	RefereeForceStart  = "FORCE_START"
)

// RefereeEvent is a decoded referee command.
type RefereeEvent struct {
	Command string
	At      time.Time
}

// RobotCommand mutates one robot's command state. Each field group has
// a Set flag so a command only touches what its producer decided;
// unset groups keep their current store values.
type RobotCommand struct {
	Team gamestate.Team
	ID   gamestate.RobotID

	SetWaypoints bool
	Waypoints    []gamestate.Waypoint

	SetSpeed bool
	Speed    gamestate.SpeedCommand

	SetDribbler bool
	Dribbler    float64

	SetCharging bool
	Charging    bool

	SetKick bool
	Kick    bool

	SetSpeedLimit bool
	SpeedLimit    float64

	// Charge bookkeeping from the actuation provider's capacitor
	// simulation. AddCharge accrues, ResetCharge zeroes after a kick
	// discharge.
	AddCharge   float64
	ResetCharge bool
}

// Batch is everything a provider hands back in one Send: fresh
// observations, referee events, and command mutations. The zero Batch
// is valid and applies nothing.
type Batch struct {
	BallObservations  []BallObservation
	RobotObservations []RobotObservation
	RefereeEvents     []RefereeEvent
	RobotCommands     []RobotCommand
}

// Empty reports whether applying the batch would be a no-op.
func (b Batch) Empty() bool {
	return len(b.BallObservations) == 0 &&
		len(b.RobotObservations) == 0 &&
		len(b.RefereeEvents) == 0 &&
		len(b.RobotCommands) == 0
}
