package strategy

import (
	"github.com/rfccambridge/robocup-prototype/internal/control"
)

// demoPhase is the scripted demo's internal sub-phase. Phases advance
// only when the current phase's exit condition is satisfied, ending in
// a terminal hold.
type demoPhase int

const (
	phaseApproach demoPhase = iota + 1
	phaseCapture
	phaseCharge
	phaseKick
	phaseDone
)

func (p demoPhase) String() string {
	switch p {
	case phaseApproach:
		return "approach"
	case phaseCapture:
		return "capture"
	case phaseCharge:
		return "charge"
	case phaseKick:
		return "kick"
	default:
		return "done"
	}
}

// approachStandoff is how far behind the ball the demo robot lines up
// before driving onto it, so it never pushes the ball on approach.
const approachStandoff = 300.0

// ScriptedDemo walks one robot through a fixed showcase: line up
// behind the ball, capture it on the dribbler, charge the kicker, kick,
// then hold. It drives the lowest-id robot that is currently tracked.
type ScriptedDemo struct {
	phase demoPhase
}

func NewScriptedDemo() *ScriptedDemo {
	return &ScriptedDemo{phase: phaseApproach}
}

func (d *ScriptedDemo) Name() string { return "scripted_demo" }

func (d *ScriptedDemo) Step(tc *control.TeamContext) {
	robots := activeRobots(tc)
	if len(robots) == 0 || !tc.Snapshot.BallSeen || tc.Snapshot.BallLost {
		return
	}
	r := robots[0]
	snap := tc.Snapshot

	switch d.phase {
	case phaseApproach:
		heading := faceBall(snap, r)
		behind := dribblerTarget(snap.BallPosition, heading)
		behind.XY = behind.XY.Sub(snap.BallPosition.Sub(behind.XY).Unit().Scale(approachStandoff))
		tc.Actions.MoveTo(r.ID, behind)
		if doneMoving(r) && dist(r.Pose.XY, behind.XY) < arrivalDistance {
			d.advance(tc, phaseCapture)
		}
	case phaseCapture:
		tc.Actions.SetDribbler(r.ID, 1)
		tc.Actions.MoveTo(r.ID, dribblerTarget(snap.BallPosition, faceBall(snap, r)))
		if ballInDribbler(snap, r) {
			d.advance(tc, phaseCharge)
		}
	case phaseCharge:
		tc.Actions.MoveTo(r.ID, r.Pose)
		tc.Actions.SetCharging(r.ID, r.Command.ChargeLevel < shootCharge)
		if r.Command.ChargeLevel >= shootCharge {
			d.advance(tc, phaseKick)
		}
	case phaseKick:
		tc.Actions.SetKick(r.ID, true)
		if r.Command.ChargeLevel == 0 || !ballInDribbler(snap, r) {
			// Discharge observed: the kick has fired.
			tc.Actions.SetKick(r.ID, false)
			tc.Actions.SetCharging(r.ID, false)
			tc.Actions.SetDribbler(r.ID, 0)
			d.advance(tc, phaseDone)
		}
	case phaseDone:
		tc.Actions.SetWaypoints(r.ID, nil)
	}
}

func (d *ScriptedDemo) advance(tc *control.TeamContext, next demoPhase) {
	tc.Log.Info("demo phase complete", "phase", d.phase.String(), "next", next.String())
	d.phase = next
}

var _ control.Behavior = (*ScriptedDemo)(nil)

// Phase exposes the current sub-phase name for status display.
func (d *ScriptedDemo) Phase() string { return d.phase.String() }
