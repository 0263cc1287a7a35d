// Package refbox subscribes to the referee box feed over NATS and
// turns its messages into referee events for the coordinator. Game
// control stays authoritative even when robots misbehave: a HALT must
// reach the store no matter what the strategy layer is doing, which is
// why the referee has its own provider instead of riding on vision.
package refbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
)

// refereeMessage is the wire schema published by the referee box.
type refereeMessage struct {
	Command string `json:"command"`
	StageMS int64  `json:"stage_time_left_ms"`
}

// knownCommands maps feed commands onto the coordinator's vocabulary.
// Commands outside this set (timeouts, card counts, placement) do not
// affect robot speeds and are dropped with a debug log.
var knownCommands = map[string]string{
	"HALT":         coordinator.RefereeHalt,
	"STOP":         coordinator.RefereeStop,
	"NORMAL_START": coordinator.RefereeNormalStart,
	"FORCE_START":  coordinator.RefereeForceStart,
}

// Subscriber is the referee provider. It holds no game state; every
// decoded command is forwarded to the coordinator as a batch.
type Subscriber struct {
	url     string
	subject string
	log     *slog.Logger
	now     func() time.Time

	// connect is swappable so tests can inject an in-process server.
	connect func(url string) (*nats.Conn, error)
}

// New builds a subscriber against the configured NATS server.
func New(log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{
		url:     viper.GetString("refbox.natsURL"),
		subject: viper.GetString("refbox.subject"),
		log:     log.With("provider", "refbox"),
		now:     time.Now,
		connect: dial,
	}
}

func dial(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("robocup-refbox"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
}

// Name implements coordinator.Provider.
func (s *Subscriber) Name() string { return "refbox" }

// Policy implements coordinator.Provider. The NATS client reconnects on
// its own; a crash here is a bug worth restarting through, not a
// reason to stop the match loop.
func (s *Subscriber) Policy() coordinator.RestartPolicy { return coordinator.RestartOnCrash }

// Run subscribes to the referee subject and forwards commands until ctx
// is canceled.
func (s *Subscriber) Run(ctx context.Context, link *coordinator.Link) error {
	conn, err := s.connect(s.url)
	if err != nil {
		return fmt.Errorf("connect referee feed %s: %w", s.url, err)
	}
	defer conn.Close()

	sub, err := conn.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handle(msg.Data, link)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()
	s.log.Info("subscribed to referee feed", "url", s.url, "subject", s.subject)

	<-ctx.Done()
	return nil
}

func (s *Subscriber) handle(data []byte, link *coordinator.Link) {
	var msg refereeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("discarding malformed referee message", "error", err)
		return
	}
	command, ok := knownCommands[msg.Command]
	if !ok {
		s.log.Debug("ignoring referee command", "command", msg.Command)
		return
	}
	s.log.Info("referee command", "command", command)
	link.Send(coordinator.Batch{
		RefereeEvents: []coordinator.RefereeEvent{{Command: command, At: s.now()}},
	})
}
