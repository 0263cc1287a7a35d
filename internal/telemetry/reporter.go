package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

// PointWriter is the sink the reporter samples into. *InfluxWriter
// satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, point *influxdb2_write.Point) error
}

// Reporter is a read-only provider that periodically turns the latest
// snapshot into a performance sample. It never sends batches; losing it
// costs telemetry, not control.
type Reporter struct {
	writer   PointWriter
	interval time.Duration
	now      func() time.Time

	lastSample time.Time
}

// NewReporter builds a reporter sampling at the configured interval.
func NewReporter(writer PointWriter) *Reporter {
	interval := viper.GetDuration("influx.interval")
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reporter{
		writer:   writer,
		interval: interval,
		now:      time.Now,
	}
}

// Name implements coordinator.Provider.
func (r *Reporter) Name() string { return "influx" }

// Policy implements coordinator.Provider.
func (r *Reporter) Policy() coordinator.RestartPolicy { return coordinator.RestartOnCrash }

// Run samples snapshots until ctx is canceled.
func (r *Reporter) Run(ctx context.Context, link *coordinator.Link) error {
	for {
		snap, err := link.NextSnapshot(ctx)
		if err != nil {
			return nil
		}
		if err := r.observe(ctx, snap); err != nil {
			return err
		}
	}
}

// observe writes one sample if the interval has elapsed since the
// previous one; snapshots in between are dropped.
func (r *Reporter) observe(ctx context.Context, snap *gamestate.Snapshot) error {
	now := r.now()
	if now.Sub(r.lastSample) < r.interval {
		return nil
	}
	r.lastSample = now
	return r.writer.WritePoint(ctx, r.sample(snap, now))
}

// sample reduces one snapshot to a measurement point.
func (r *Reporter) sample(snap *gamestate.Snapshot, now time.Time) *influxdb2_write.Point {
	lag := time.Duration(0)
	if !snap.At.IsZero() {
		lag = now.Sub(snap.At)
	}
	return influxdb2.NewPoint(
		"coordinator",
		map[string]string{
			"game_begun": boolTag(snap.GameBegun),
		},
		map[string]interface{}{
			"robots_tracked":  len(snap.Robots),
			"ball_lost":       snap.BallLost,
			"snapshot_lag_ms": float64(lag) / float64(time.Millisecond),
		},
		now,
	)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
