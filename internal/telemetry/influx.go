package telemetry

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// InfluxWriter handles the InfluxDB connection for performance export.
// When the server is unreachable the samples go to a gzipped line
// protocol file instead, so a bench run without infrastructure still
// keeps its data.
type InfluxWriter struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	backup *gzip.Writer
	valid  bool
	bucket string
	log    zerolog.Logger

	backupPath string
}

// NewInfluxWriter creates an unconnected writer.
func NewInfluxWriter(log zerolog.Logger, backupPath string) *InfluxWriter {
	return &InfluxWriter{
		bucket:     viper.GetString("influx.bucket"),
		log:        log,
		backupPath: backupPath,
	}
}

// Connect establishes the InfluxDB connection, falling back to the
// backup file when the server does not answer.
func (w *InfluxWriter) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return fmt.Errorf("influx.enabled is false")
	}

	w.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := w.client.Ping(context.Background())
	if err != nil || !running {
		w.valid = false
		if w.backup == nil {
			w.log.Info().Str("backupPath", w.backupPath).
				Msg("InfluxDB unreachable, writing to backup file")
			file, err := os.OpenFile(w.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			w.backup = gzip.NewWriter(file)
		}
		return nil
	}
	w.valid = true

	if err := w.ensureOrgAndBucket(); err != nil {
		return err
	}
	w.createWriter()
	w.log.Info().Msg("InfluxDB client initialized")
	return nil
}

func (w *InfluxWriter) ensureOrgAndBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	_, err := w.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		w.log.Info().Str("org", orgName).Msg("Organization not found, creating")
		if _, err = w.client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName); err != nil {
			w.log.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}
	influxOrg, err := w.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		w.log.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	_, err = w.client.BucketsAPI().FindBucketByName(ctx, w.bucket)
	if err != nil {
		w.log.Info().Str("bucket", w.bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = w.client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, w.bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90,
		})
		if err != nil {
			w.log.Error().Err(err).Str("bucket", w.bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (w *InfluxWriter) createWriter() {
	w.writer = w.client.WriteAPI(viper.GetString("influx.org"), w.bucket)
	errorsCh := w.writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			w.log.Error().Err(writeErr).Str("bucket", w.bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint sends a point to InfluxDB or the backup file.
func (w *InfluxWriter) WritePoint(ctx context.Context, point *influxdb2_write.Point) error {
	if w.valid {
		w.writer.WritePoint(point)
		return nil
	}
	if w.backup == nil {
		return fmt.Errorf("influxdb client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := w.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to influxdb backup file: %s", err)
	}
	return nil
}

// Close flushes pending writes and releases the connection.
func (w *InfluxWriter) Close() {
	if w.writer != nil {
		w.writer.Flush()
	}
	if w.client != nil {
		w.client.Close()
	}
	if w.backup != nil {
		w.backup.Close()
	}
}
