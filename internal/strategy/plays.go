package strategy

import (
	"github.com/rfccambridge/robocup-prototype/internal/control"
)

// SingleRole drives every tracked robot of the team with one role.
// The *_test run modes use it to exercise a role in isolation.
type SingleRole struct {
	role Role
}

func NewSingleRole(role Role) *SingleRole { return &SingleRole{role: role} }

func (s *SingleRole) Name() string { return s.role.Name() + "_test" }

func (s *SingleRole) Step(tc *control.TeamContext) {
	for _, r := range activeRobots(tc) {
		s.role.Act(tc, r)
	}
}

// FullGame assigns roles across the whole team: the lowest id plays
// goalie, the next defender, every other robot attacks. Assignment is
// positional by id so it is stable across ticks; robots that drop out
// of tracking simply stop being assigned until they return.
type FullGame struct{}

func NewFullGame() *FullGame { return &FullGame{} }

func (FullGame) Name() string { return "full_game" }

func (FullGame) Step(tc *control.TeamContext) {
	robots := activeRobots(tc)
	for i, r := range robots {
		role(i).Act(tc, r)
	}
}

func role(slot int) Role {
	switch slot {
	case 0:
		return Goalie{}
	case 1:
		return Defender{}
	default:
		return Attacker{}
	}
}

// ForMode returns the behavior a run mode dispatches, or nil for the
// modes that dispatch nothing (manual_ui, unrecognized).
func ForMode(mode control.Mode) control.Behavior {
	switch mode {
	case control.ModeGoalieTest:
		return NewSingleRole(Goalie{})
	case control.ModeAttackerTest:
		return NewSingleRole(Attacker{})
	case control.ModeDefenderTest:
		return NewSingleRole(Defender{})
	case control.ModeScriptedDemo:
		return NewScriptedDemo()
	case control.ModeFullGame:
		return NewFullGame()
	default:
		return nil
	}
}
