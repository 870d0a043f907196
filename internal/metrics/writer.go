// Package metrics writes activation, volume and health points to InfluxDB.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/volume"
)

const (
	defaultPingTimeout = 5 * time.Second
	batchSize          = 50
	flushIntervalMS    = 5000
)

// ErrConnectionFailed reports an unreachable or unhealthy InfluxDB server.
var ErrConnectionFailed = errors.New("metrics: influxdb connection failed")

// pointWriter is the subset of api.WriteAPI the writer uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Writer turns agent events into InfluxDB points. Writes are batched and never block the caller.
type Writer struct {
	client influxdb2.Client
	api    pointWriter
	logger *slog.Logger
	now    func() time.Time
}

// Connect pings the server and opens a non-blocking write API for org/bucket.
func Connect(ctx context.Context, cfg config.InfluxConfig, logger *slog.Logger) (*Writer, error) {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushIntervalMS),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	w := newWriter(writeAPI, logger)
	w.client = client
	go w.drainErrors(writeAPI)
	return w, nil
}

func newWriter(api pointWriter, logger *slog.Logger) *Writer {
	return &Writer{
		api:    api,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

func (w *Writer) drainErrors(writeAPI api.WriteAPI) {
	for err := range writeAPI.Errors() {
		w.logger.Warn("influxdb write failed", "error", err)
	}
}

// ModeActivated writes one mode_activation point.
func (w *Writer) ModeActivated(exec engine.Execution) {
	at := exec.FinishedAt
	if at.IsZero() {
		at = w.now()
	}
	w.api.WritePoint(write.NewPoint(
		"mode_activation",
		map[string]string{
			"mode":    exec.Mode,
			"status":  string(exec.Status),
			"trigger": exec.Trigger,
		},
		map[string]interface{}{
			"duration_ms": exec.Duration().Milliseconds(),
			"total":       exec.Total,
			"completed":   exec.Completed,
			"failed":      exec.Failed,
			"skipped":     exec.Skipped,
		},
		at,
	))
}

// VolumeChanged writes one volume point.
func (w *Writer) VolumeChanged(state volume.State) {
	w.api.WritePoint(write.NewPoint(
		"volume",
		map[string]string{"device": string(state.Device)},
		map[string]interface{}{
			"level": state.Volume,
			"muted": state.Muted,
		},
		w.now(),
	))
}

// HealthSampled writes one system_health point.
func (w *Writer) HealthSampled(sample health.Sample) {
	at := sample.Time
	if at.IsZero() {
		at = w.now()
	}
	w.api.WritePoint(write.NewPoint(
		"system_health",
		nil,
		map[string]interface{}{
			"available_ram_gb": sample.AvailableRAMGB,
			"free_disk_gb":     sample.FreeDiskGB,
			"critical":         sample.Critical,
		},
		at,
	))
}

// Close flushes pending points and closes the client.
func (w *Writer) Close() error {
	w.api.Flush()
	if w.client != nil {
		w.client.Close()
	}
	return nil
}
