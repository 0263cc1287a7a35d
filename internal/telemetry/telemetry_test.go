package telemetry

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
)

func TestOTelProviderDisabled(t *testing.T) {
	p, err := NewOTelProvider(OTelConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestOTelProviderFileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewOTelProvider(OTelConfig{
		Enabled:      true,
		ServiceName:  "robocup-test",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestOTelProviderNeedsATarget(t *testing.T) {
	_, err := NewOTelProvider(OTelConfig{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log writer or endpoint")
}

func TestInfluxWriterDisabled(t *testing.T) {
	viper.Set("influx.enabled", false)
	defer viper.Set("influx.enabled", nil)

	w := NewInfluxWriter(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.gz"))
	assert.Error(t, w.Connect())
}

func TestInfluxWriterBackupFallback(t *testing.T) {
	var buf bytes.Buffer
	w := &InfluxWriter{
		bucket: "robocup_performance",
		log:    zerolog.Nop(),
		backup: gzip.NewWriter(&buf),
	}

	point := influxdb2_write.NewPointWithMeasurement("coordinator").
		AddField("robots_tracked", 6)
	require.NoError(t, w.WritePoint(context.Background(), point))
	require.NoError(t, w.backup.Close())

	r, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "coordinator"))
	assert.Contains(t, string(raw), "robots_tracked=6i")
}

func TestInfluxWriterNoSinkErrors(t *testing.T) {
	w := &InfluxWriter{log: zerolog.Nop()}
	err := w.WritePoint(context.Background(), influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

type capturedPoints struct {
	points []*influxdb2_write.Point
}

func (c *capturedPoints) WritePoint(ctx context.Context, p *influxdb2_write.Point) error {
	c.points = append(c.points, p)
	return nil
}

func TestReporterSample(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	r := &Reporter{now: func() time.Time { return now }}

	snap := &gamestate.Snapshot{
		At:        now.Add(-20 * time.Millisecond),
		GameBegun: true,
		BallLost:  true,
		Robots:    make([]gamestate.RobotSnapshot, 3),
	}
	point := r.sample(snap, now)

	assert.Equal(t, "coordinator", point.Name())
	fields := map[string]interface{}{}
	for _, f := range point.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(3), fields["robots_tracked"])
	assert.Equal(t, true, fields["ball_lost"])
	assert.InDelta(t, 20.0, fields["snapshot_lag_ms"].(float64), 1e-9)
}

func TestReporterThrottlesToInterval(t *testing.T) {
	sink := &capturedPoints{}
	base := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	clock := base
	r := &Reporter{
		writer:   sink,
		interval: time.Second,
		now:      func() time.Time { return clock },
	}

	ctx := context.Background()
	snap := &gamestate.Snapshot{At: base}

	// Two snapshots inside one interval produce a single sample.
	require.NoError(t, r.observe(ctx, snap))
	clock = base.Add(500 * time.Millisecond)
	require.NoError(t, r.observe(ctx, snap))
	assert.Len(t, sink.points, 1)

	// An interval later the next snapshot is sampled again.
	clock = base.Add(1500 * time.Millisecond)
	require.NoError(t, r.observe(ctx, snap))
	assert.Len(t, sink.points, 2)
}

func TestReporterStopsOnCancel(t *testing.T) {
	sink := &capturedPoints{}
	r := &Reporter{writer: sink, interval: time.Second, now: time.Now}

	link := coordinator.NewLink()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, link) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop on cancellation")
	}
}
