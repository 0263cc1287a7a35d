// Package control runs the per-team control loop: a mode-selected
// dispatcher that invokes behavior logic against each published
// snapshot and reconciles the resulting waypoints into bounded speed
// commands.
package control

// Mode selects the behavior a team's control loop runs for the whole
// match. The mode is fixed per run; there are no runtime transitions
// between modes.
type Mode int

const (
	// ModeManualUI leaves all commands to the operator; the loop only
	// reconciles.
	ModeManualUI Mode = iota
	ModeGoalieTest
	ModeAttackerTest
	ModeDefenderTest
	ModeScriptedDemo
	ModeFullGame
	// ModeUnrecognized performs no behavior dispatch per tick. An
	// unknown mode string is accepted and logged, never fatal.
	ModeUnrecognized
)

var modeNames = map[Mode]string{
	ModeManualUI:     "manual_ui",
	ModeGoalieTest:   "goalie_test",
	ModeAttackerTest: "attacker_test",
	ModeDefenderTest: "defender_test",
	ModeScriptedDemo: "scripted_demo",
	ModeFullGame:     "full_game",
	ModeUnrecognized: "unrecognized",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unrecognized"
}

// ParseMode maps a mode string to its Mode. Anything unknown becomes
// ModeUnrecognized.
func ParseMode(s string) Mode {
	for m, name := range modeNames {
		if name == s && m != ModeUnrecognized {
			return m
		}
	}
	return ModeUnrecognized
}
