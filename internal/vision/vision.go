// Package vision ingests camera detection frames over a websocket and
// feeds them to the coordinator as position observations. The provider
// never writes game state itself; it only reports what the cameras saw
// and lets the coordinator tick fold the observations into the store.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// detectionFrame is one camera frame as published by the vision server.
// Coordinates are field millimeters, headings radians.
type detectionFrame struct {
	Ball   *ballDetection   `json:"ball"`
	Robots []robotDetection `json:"robots"`
}

type ballDetection struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type robotDetection struct {
	Team    string  `json:"team"`
	ID      int     `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Receiver subscribes to the vision websocket and converts detection
// frames into coordinator batches.
type Receiver struct {
	url string
	log *slog.Logger
}

// New builds a receiver reading from the configured vision URL.
func New(log *slog.Logger) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{
		url: viper.GetString("vision.url"),
		log: log.With("provider", "vision"),
	}
}

// Name implements coordinator.Provider.
func (r *Receiver) Name() string { return "vision" }

// Policy implements coordinator.Provider. Dropped camera frames are
// recoverable, so the coordinator restarts a crashed receiver.
func (r *Receiver) Policy() coordinator.RestartPolicy { return coordinator.RestartOnCrash }

// Run dials the vision server and streams frames until ctx is
// canceled. A broken connection is returned as an error and the
// coordinator redials on restart.
func (r *Receiver) Run(ctx context.Context, link *coordinator.Link) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial vision server %s: %w", r.url, err)
	}
	r.log.Info("connected to vision server", "url", r.url)

	// ReadMessage has no context support, so cancellation closes the
	// connection out from under it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read detection frame: %w", err)
		}
		var frame detectionFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			r.log.Warn("discarding malformed detection frame", "error", err)
			continue
		}
		batch, err := frameToBatch(frame)
		if err != nil {
			r.log.Warn("discarding detection frame", "error", err)
			continue
		}
		if !batch.Empty() {
			link.Send(batch)
		}
	}
}

// frameToBatch converts one detection frame into observations. A frame
// with an unknown team color is rejected whole rather than applied
// half-way.
func frameToBatch(frame detectionFrame) (coordinator.Batch, error) {
	var batch coordinator.Batch
	if frame.Ball != nil {
		batch.BallObservations = append(batch.BallObservations, coordinator.BallObservation{
			Pos: geom.XY{X: frame.Ball.X, Y: frame.Ball.Y},
		})
	}
	for _, det := range frame.Robots {
		team, err := gamestate.ParseTeam(det.Team)
		if err != nil {
			return coordinator.Batch{}, err
		}
		batch.RobotObservations = append(batch.RobotObservations, coordinator.RobotObservation{
			Team: team,
			ID:   gamestate.RobotID(det.ID),
			Pose: gamestate.Pose{
				XY:      geom.XY{X: det.X, Y: det.Y},
				Heading: gamestate.WrapPi(det.Heading),
			},
		})
	}
	return batch, nil
}
