package vision

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

func TestFrameToBatch(t *testing.T) {
	frame := detectionFrame{
		Ball: &ballDetection{X: 4500, Y: 3000},
		Robots: []robotDetection{
			{Team: "blue", ID: 1, X: 1000, Y: 2000, Heading: 1.5},
			{Team: "yellow", ID: 2, X: 8000, Y: 3000, Heading: 3*math.Pi + 0.5},
		},
	}

	batch, err := frameToBatch(frame)
	require.NoError(t, err)

	require.Len(t, batch.BallObservations, 1)
	assert.Equal(t, 4500.0, batch.BallObservations[0].Pos.X)

	require.Len(t, batch.RobotObservations, 2)
	assert.Equal(t, gamestate.TeamBlue, batch.RobotObservations[0].Team)
	assert.Equal(t, gamestate.RobotID(1), batch.RobotObservations[0].ID)
	assert.Equal(t, gamestate.TeamYellow, batch.RobotObservations[1].Team)
	// Headings are wrapped into [-pi, pi).
	assert.InDelta(t, math.Pi+0.5-2*math.Pi, batch.RobotObservations[1].Pose.Heading, 1e-9)
}

func TestFrameToBatchRejectsUnknownTeam(t *testing.T) {
	frame := detectionFrame{
		Ball:   &ballDetection{X: 100, Y: 100},
		Robots: []robotDetection{{Team: "green", ID: 1}},
	}

	batch, err := frameToBatch(frame)
	require.Error(t, err)
	assert.True(t, batch.Empty())
}

func TestFrameToBatchBallOnly(t *testing.T) {
	batch, err := frameToBatch(detectionFrame{Ball: &ballDetection{X: 10, Y: 20}})
	require.NoError(t, err)
	assert.Len(t, batch.BallObservations, 1)
	assert.Empty(t, batch.RobotObservations)
}

func TestFrameToBatchEmptyFrame(t *testing.T) {
	batch, err := frameToBatch(detectionFrame{})
	require.NoError(t, err)
	assert.True(t, batch.Empty())
}

// frameServer serves a fixed sequence of raw websocket messages and
// then blocks until the client disconnects.
func frameServer(t *testing.T, messages []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestRunStreamsFrames(t *testing.T) {
	srv := frameServer(t, []string{
		`not json`,
		`{"ball":{"x":4500,"y":3000},"robots":[{"team":"blue","id":3,"x":1,"y":2,"heading":0.5}]}`,
	})
	defer srv.Close()

	viper.Set("vision.url", strings.Replace(srv.URL, "http", "ws", 1))
	defer viper.Set("vision.url", nil)

	recv := New(nil)
	link := coordinator.NewLink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- recv.Run(ctx, link) }()

	var batch coordinator.Batch
	require.Eventually(t, func() bool {
		b, ok := link.PollBatch()
		if ok {
			batch = b
		}
		return ok
	}, time.Second, time.Millisecond)

	require.Len(t, batch.BallObservations, 1)
	require.Len(t, batch.RobotObservations, 1)
	assert.Equal(t, gamestate.RobotID(3), batch.RobotObservations[0].ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop on cancellation")
	}
}

func TestRunReportsDialFailure(t *testing.T) {
	viper.Set("vision.url", "ws://127.0.0.1:1/detections")
	defer viper.Set("vision.url", nil)

	recv := New(nil)
	err := recv.Run(context.Background(), coordinator.NewLink())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial vision server")
}
