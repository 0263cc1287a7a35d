package refbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
)

func testSubscriber() *Subscriber {
	s := New(nil)
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	return s
}

func TestHandleForwardsKnownCommands(t *testing.T) {
	s := testSubscriber()

	for feed, want := range map[string]string{
		"HALT":         coordinator.RefereeHalt,
		"STOP":         coordinator.RefereeStop,
		"NORMAL_START": coordinator.RefereeNormalStart,
		"FORCE_START":  coordinator.RefereeForceStart,
	} {
		link := coordinator.NewLink()
		s.handle([]byte(`{"command":"`+feed+`"}`), link)

		batch, ok := link.PollBatch()
		require.True(t, ok, "command %s not forwarded", feed)
		require.Len(t, batch.RefereeEvents, 1)
		assert.Equal(t, want, batch.RefereeEvents[0].Command)
		assert.False(t, batch.RefereeEvents[0].At.IsZero())
	}
}

func TestHandleDropsUnknownCommand(t *testing.T) {
	s := testSubscriber()
	link := coordinator.NewLink()

	s.handle([]byte(`{"command":"TIMEOUT_BLUE"}`), link)

	_, ok := link.PollBatch()
	assert.False(t, ok)
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	s := testSubscriber()
	link := coordinator.NewLink()

	s.handle([]byte(`{{{`), link)

	_, ok := link.PollBatch()
	assert.False(t, ok)
}

func TestHandleLatestCommandWins(t *testing.T) {
	// The link keeps one pending batch per provider. A second referee
	// command arriving before the coordinator polls must replace the
	// first, never block behind it.
	s := testSubscriber()
	link := coordinator.NewLink()

	s.handle([]byte(`{"command":"STOP"}`), link)
	s.handle([]byte(`{"command":"HALT"}`), link)

	batch, ok := link.PollBatch()
	require.True(t, ok)
	require.Len(t, batch.RefereeEvents, 1)
	assert.Equal(t, coordinator.RefereeHalt, batch.RefereeEvents[0].Command)
}

func TestRunReportsConnectFailure(t *testing.T) {
	s := testSubscriber()
	boom := errors.New("no route to refbox")
	s.connect = func(url string) (*nats.Conn, error) { return nil, boom }

	err := s.Run(context.Background(), coordinator.NewLink())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "connect referee feed")
}
