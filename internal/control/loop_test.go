package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
	"github.com/rfccambridge/robocup-prototype/internal/planner"
)

type stubBehavior struct {
	name  string
	steps int
	step  func(tc *TeamContext)
}

func (b *stubBehavior) Name() string { return b.name }

func (b *stubBehavior) Step(tc *TeamContext) {
	b.steps++
	if b.step != nil {
		b.step(tc)
	}
}

func snapshotWithRobot(team gamestate.Team, id gamestate.RobotID, lost bool) *gamestate.Snapshot {
	return &gamestate.Snapshot{
		At:        time.Now(),
		GameBegun: true,
		Robots: []gamestate.RobotSnapshot{{
			Team:    team,
			ID:      id,
			Pose:    gamestate.Pose{XY: geom.XY{X: 1000, Y: 1000}},
			Lost:    lost,
			Command: gamestate.CommandState{SpeedLimit: RobotMaxSpeed, Speed: gamestate.SpeedCommand{X: 100}},
		}},
	}
}

func TestStepZeroesLostRobot(t *testing.T) {
	l := NewLoop(gamestate.TeamBlue, ModeManualUI, nil, nil, nil, nil)
	batch := l.Step(snapshotWithRobot(gamestate.TeamBlue, 3, true))

	require.Len(t, batch.RobotCommands, 1)
	cmd := batch.RobotCommands[0]
	assert.True(t, cmd.SetSpeed)
	assert.True(t, cmd.Speed.IsZero())
	assert.False(t, cmd.SetWaypoints)
}

func TestStepIgnoresOtherTeam(t *testing.T) {
	l := NewLoop(gamestate.TeamYellow, ModeManualUI, nil, nil, nil, nil)
	batch := l.Step(snapshotWithRobot(gamestate.TeamBlue, 3, true))
	assert.Empty(t, batch.RobotCommands)
}

func TestStepDerivesFromBehaviorWaypoints(t *testing.T) {
	target := gamestate.Pose{XY: geom.XY{X: 1000, Y: 2000}}
	b := &stubBehavior{name: "drill", step: func(tc *TeamContext) {
		tc.Actions.MoveTo(5, target)
		tc.Actions.SetDribbler(5, 2)
	}}
	l := NewLoop(gamestate.TeamBlue, ModeAttackerTest, b, nil, nil, nil)

	batch := l.Step(snapshotWithRobot(gamestate.TeamBlue, 5, false))
	require.Len(t, batch.RobotCommands, 1)
	cmd := batch.RobotCommands[0]
	assert.True(t, cmd.SetWaypoints)
	require.Len(t, cmd.Waypoints, 1)
	assert.Equal(t, target, cmd.Waypoints[0].Pose)
	assert.True(t, cmd.SetSpeed)
	assert.False(t, cmd.Speed.IsZero(), "speed derived in the same tick as the waypoint write")
	assert.True(t, cmd.SetDribbler)
	assert.Equal(t, 2.0, cmd.Dribbler)
	assert.Equal(t, 1, b.steps)
}

func TestStepHoldsWithoutWaypoints(t *testing.T) {
	l := NewLoop(gamestate.TeamBlue, ModeManualUI, nil, nil, nil, nil)
	batch := l.Step(snapshotWithRobot(gamestate.TeamBlue, 1, false))
	assert.Empty(t, batch.RobotCommands, "no waypoints and not lost: nothing to say")
}

func TestStepSurvivesBehaviorPanic(t *testing.T) {
	b := &stubBehavior{name: "buggy", step: func(*TeamContext) { panic("division by ball") }}
	l := NewLoop(gamestate.TeamBlue, ModeFullGame, b, nil, nil, nil)

	var batch coordinator.Batch
	require.NotPanics(t, func() {
		batch = l.Step(snapshotWithRobot(gamestate.TeamBlue, 2, true))
	})
	// Reconciliation still ran after the failed dispatch.
	require.Len(t, batch.RobotCommands, 1)
	assert.True(t, batch.RobotCommands[0].Speed.IsZero())
}

func TestRunGatesOnGameBegin(t *testing.T) {
	b := &stubBehavior{name: "counting"}
	l := NewLoop(gamestate.TeamBlue, ModeFullGame, b, nil, nil, nil)
	link := coordinator.NewLink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx, link)
	}()

	idle := &gamestate.Snapshot{}
	for i := 0; i < 3; i++ {
		link.Offer(idle)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, b.steps, "no dispatch before game begin")

	link.Offer(snapshotWithRobot(gamestate.TeamBlue, 1, false))
	require.Eventually(t, func() bool { return b.steps >= 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}

// Each loop owns its planner: two teams planning on the same tick must
// not share sampling state. Run with -race.
func TestLoopsPlanConcurrently(t *testing.T) {
	f := &field.Field{Width: 9000, Height: 6000, GoalWidth: 1000, DefenseAreaWidth: 2000, DefenseAreaDepth: 1000}
	plan := func(tc *TeamContext) {
		for _, r := range tc.Snapshot.TeamRobots(tc.Team) {
			goal := gamestate.Pose{XY: geom.XY{X: 8000, Y: 5000}}
			if wps := tc.Planner.PlanWaypoints(r.Pose, goal, nil); len(wps) > 0 {
				tc.Actions.SetWaypoints(r.ID, wps)
			}
		}
	}
	loops := []*Loop{
		NewLoop(gamestate.TeamBlue, ModeFullGame, &stubBehavior{name: "plan", step: plan}, f, planner.New(f, 1), nil),
		NewLoop(gamestate.TeamYellow, ModeFullGame, &stubBehavior{name: "plan", step: plan}, f, planner.New(f, 2), nil),
	}

	var wg sync.WaitGroup
	for _, l := range loops {
		wg.Add(1)
		go func(l *Loop) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				batch := l.Step(snapshotWithRobot(l.team, 1, false))
				assert.NotEmpty(t, batch.RobotCommands)
			}
		}(l)
	}
	wg.Wait()
}
