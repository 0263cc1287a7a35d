// Package sim replaces vision and radio for offline runs. It owns the
// ground-truth ball and robot state, integrates the speed commands the
// control loops derive, and reports positions back to the coordinator
// exactly the way the camera feed would. Physics is deliberately crude:
// enough to prototype strategy, nothing more.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/control"
	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

const (
	// captureSpeed is the fastest ball (mm/s) a spinning dribbler can
	// hold on to instead of deflecting.
	captureSpeed = 20.0
	// chargeRate matches the rate the radio provider assumes for real
	// kicker boards, volts per second.
	chargeRate     = 100.0
	maxChargeLevel = 250.0
	maxKickSpeed   = 2500.0

	// dribblerReach is how far from the dribbler mouth the ball can sit
	// and still be pulled in.
	dribblerReach = 60.0
)

type simRobot struct {
	team gamestate.Team
	id   gamestate.RobotID
	pose gamestate.Pose
}

// Simulator is the offline world model provider.
type Simulator struct {
	field *field.Field
	log   *slog.Logger
	step  time.Duration
	setup string
	decel float64

	ballSeen bool
	ballPos  geom.XY
	ballVel  geom.XY
	robots   []*simRobot
}

// New builds a simulator with the configured step interval and initial
// setup preset.
func New(f *field.Field, log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	s := &Simulator{
		field: f,
		log:   log.With("provider", "sim"),
		step:  viper.GetDuration("sim.step"),
		setup: viper.GetString("sim.setup"),
		decel: viper.GetFloat64("gamestate.ballDeceleration"),
	}
	if s.step <= 0 {
		s.step = 16 * time.Millisecond
	}
	if s.decel <= 0 {
		s.decel = 350
	}
	return s
}

// Name implements coordinator.Provider.
func (s *Simulator) Name() string { return "sim" }

// Policy implements coordinator.Provider. The simulator is the only
// holder of ground truth; restarting it would teleport the whole match
// back to kickoff, so a crash ends the run instead.
func (s *Simulator) Policy() coordinator.RestartPolicy { return coordinator.Fatal }

// PlaceBall sets the ground-truth ball state.
func (s *Simulator) PlaceBall(pos, vel geom.XY) {
	s.ballSeen = true
	s.ballPos = pos
	s.ballVel = vel
}

// PlaceRobot sets the ground-truth pose for one robot, creating it if
// it is not on the field yet.
func (s *Simulator) PlaceRobot(team gamestate.Team, id gamestate.RobotID, pose gamestate.Pose) {
	for _, r := range s.robots {
		if r.team == team && r.id == id {
			r.pose = pose
			return
		}
	}
	s.robots = append(s.robots, &simRobot{team: team, id: id, pose: pose})
}

// applySetup populates the field per the configured preset.
func (s *Simulator) applySetup() error {
	center := s.field.Center()
	switch s.setup {
	case "full_teams":
		for i := 1; i <= 6; i++ {
			y := center.Y + 200*(float64(i)-3.5)
			s.PlaceRobot(gamestate.TeamBlue, gamestate.RobotID(i), gamestate.Pose{
				XY: geom.XY{X: center.X - 3000, Y: y},
			})
			s.PlaceRobot(gamestate.TeamYellow, gamestate.RobotID(i), gamestate.Pose{
				XY:      geom.XY{X: center.X + 3000, Y: y},
				Heading: math.Pi,
			})
		}
		s.PlaceBall(center, geom.XY{})
	case "single_robot":
		s.PlaceRobot(gamestate.TeamBlue, 1, gamestate.Pose{
			XY: geom.XY{X: center.X - 3000, Y: center.Y},
		})
		s.PlaceBall(center, geom.XY{})
	case "empty":
	default:
		return fmt.Errorf("unknown sim setup %q", s.setup)
	}
	return nil
}

// Run steps the world at the configured interval until ctx is
// canceled. Each step consumes the latest snapshot for commands and
// publishes the resulting observations.
func (s *Simulator) Run(ctx context.Context, link *coordinator.Link) error {
	if err := s.applySetup(); err != nil {
		return err
	}
	s.log.Info("simulator running", "setup", s.setup, "step", s.step)

	var last *gamestate.Snapshot
	ticker := time.NewTicker(s.step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if snap, ok := link.PollSnapshot(); ok {
			last = snap
		}
		batch := s.advance(last, s.step.Seconds())
		link.Send(batch)
	}
}

// advance integrates one time step and returns the observations plus
// any kicker feedback. snap may be nil before the first coordinator
// tick.
func (s *Simulator) advance(snap *gamestate.Snapshot, dt float64) coordinator.Batch {
	s.moveBall(dt)

	var batch coordinator.Batch
	for _, r := range s.robots {
		var cmd gamestate.CommandState
		if snap != nil {
			if rs, ok := snap.Robot(r.team, r.id); ok {
				cmd = rs.Command
			}
		}
		s.moveRobot(r, cmd.Speed, dt)
		s.collideBall(r, cmd.Dribbler > 0)

		if fb, ok := s.kickerFeedback(r, cmd, dt); ok {
			batch.RobotCommands = append(batch.RobotCommands, fb)
		}
		batch.RobotObservations = append(batch.RobotObservations, coordinator.RobotObservation{
			Team: r.team,
			ID:   r.id,
			Pose: r.pose,
		})
	}
	if s.ballSeen {
		batch.BallObservations = append(batch.BallObservations, coordinator.BallObservation{Pos: s.ballPos})
	}
	return batch
}

// moveBall advances the ball under rolling friction.
func (s *Simulator) moveBall(dt float64) {
	if !s.ballSeen {
		return
	}
	s.ballPos = s.ballPos.Add(s.ballVel.Scale(dt))
	speed := s.ballVel.Length()
	if speed <= s.decel*dt {
		s.ballVel = geom.XY{}
		return
	}
	s.ballVel = s.ballVel.Scale((speed - s.decel*dt) / speed)
}

// moveRobot integrates the robot-frame speed command into the field
// frame.
func (s *Simulator) moveRobot(r *simRobot, speed gamestate.SpeedCommand, dt float64) {
	vel := control.RobotToField(r.pose.Heading, geom.XY{X: speed.X, Y: speed.Y})
	r.pose.XY = r.pose.XY.Add(vel.Scale(dt))
	r.pose.Heading = gamestate.WrapPi(r.pose.Heading + speed.W*dt)
}

// collideBall resolves robot-ball contact. A spinning dribbler captures
// a slow ball at its mouth; the robot body deflects everything else,
// keeping only the tangential velocity component.
func (s *Simulator) collideBall(r *simRobot, dribbling bool) {
	if !s.ballSeen {
		return
	}
	if dribbling && s.dribblerHolds(r) {
		s.ballPos = s.dribblerPos(r)
		s.ballVel = geom.XY{}
		return
	}
	offset := s.ballPos.Sub(r.pose.XY)
	dist := offset.Length()
	contact := field.RobotRadius + field.BallRadius
	if dist >= contact {
		return
	}
	if dist == 0 {
		offset = geom.XY{X: contact, Y: 0}
		dist = contact
	}
	radial := offset.Scale(1 / dist)
	s.ballPos = r.pose.XY.Add(radial.Scale(contact))
	tangent := geom.XY{X: radial.Y, Y: -radial.X}
	s.ballVel = tangent.Scale(s.ballVel.Dot(tangent))
}

// dribblerPos is where a held ball's center sits.
func (s *Simulator) dribblerPos(r *simRobot) geom.XY {
	dir := geom.XY{X: math.Cos(r.pose.Heading), Y: math.Sin(r.pose.Heading)}
	return r.pose.XY.Add(dir.Scale(field.RobotDribblerRadius + field.BallRadius))
}

func (s *Simulator) dribblerHolds(r *simRobot) bool {
	if s.ballVel.Length() >= captureSpeed {
		return false
	}
	return s.ballPos.Sub(s.dribblerPos(r)).Length() < dribblerReach
}

// kickerFeedback simulates the capacitor and kick impulse for one
// robot, mirroring what the radio provider reports from real boards.
func (s *Simulator) kickerFeedback(r *simRobot, cmd gamestate.CommandState, dt float64) (coordinator.RobotCommand, bool) {
	fb := coordinator.RobotCommand{Team: r.team, ID: r.id}
	if cmd.Kick && cmd.ChargeLevel > 0 {
		if s.ballSeen && s.dribblerHolds(r) {
			level := math.Min(cmd.ChargeLevel, maxChargeLevel)
			speed := maxKickSpeed * level / maxChargeLevel
			dir := geom.XY{X: math.Cos(r.pose.Heading), Y: math.Sin(r.pose.Heading)}
			s.ballVel = dir.Scale(speed)
			s.ballPos = s.ballPos.Add(s.ballVel.Scale(dt))
		}
		fb.ResetCharge = true
		fb.SetKick = true
		fb.Kick = false
		return fb, true
	}
	if cmd.Charging && dt > 0 && cmd.ChargeLevel < maxChargeLevel {
		fb.AddCharge = chargeRate * dt
		return fb, true
	}
	return fb, false
}
