package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/fsm"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/volume"
)

type fakeAPI struct {
	mu      sync.Mutex
	points  []*write.Point
	flushed int
}

func (f *fakeAPI) WritePoint(point *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point)
}

func (f *fakeAPI) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
}

func tags(point *write.Point) map[string]string {
	out := map[string]string{}
	for _, tag := range point.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(point *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, field := range point.FieldList() {
		out[field.Key] = field.Value
	}
	return out
}

func TestModeActivatedPoint(t *testing.T) {
	api := &fakeAPI{}
	w := newWriter(api, nil)

	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	w.ModeActivated(engine.Execution{
		Mode:       "gaming",
		Trigger:    "voice",
		Status:     engine.StatusPartial,
		StartedAt:  started,
		FinishedAt: started.Add(1200 * time.Millisecond),
		Total:      3,
		Completed:  2,
		Failed:     1,
	})

	require.Len(t, api.points, 1)
	point := api.points[0]
	require.Equal(t, "mode_activation", point.Name())
	require.Equal(t, map[string]string{"mode": "gaming", "status": "partial", "trigger": "voice"}, tags(point))
	f := fields(point)
	require.EqualValues(t, 1200, f["duration_ms"])
	require.EqualValues(t, 3, f["total"])
	require.EqualValues(t, 1, f["failed"])
	require.Equal(t, started.Add(1200*time.Millisecond), point.Time())
}

func TestVolumeAndHealthPoints(t *testing.T) {
	api := &fakeAPI{}
	w := newWriter(api, nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.VolumeChanged(volume.State{Volume: 42, Muted: true, Device: fsm.StateConnected})
	w.HealthSampled(health.Sample{AvailableRAMGB: 0.4, FreeDiskGB: 80, Critical: true})

	require.Len(t, api.points, 2)

	vol := api.points[0]
	require.Equal(t, "volume", vol.Name())
	require.Equal(t, map[string]string{"device": "connected"}, tags(vol))
	require.EqualValues(t, 42, fields(vol)["level"])
	require.Equal(t, true, fields(vol)["muted"])
	require.Equal(t, fixed, vol.Time())

	sample := api.points[1]
	require.Equal(t, "system_health", sample.Name())
	require.Empty(t, tags(sample))
	require.Equal(t, 0.4, fields(sample)["available_ram_gb"])
	require.Equal(t, true, fields(sample)["critical"])
	require.Equal(t, fixed, sample.Time())
}

func TestCloseFlushes(t *testing.T) {
	api := &fakeAPI{}
	w := newWriter(api, nil)
	require.NoError(t, w.Close())
	require.Equal(t, 1, api.flushed)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	cfg := config.Default().Influx
	cfg.URL = "http://127.0.0.1:1"
	cfg.Org = "home"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Connect(ctx, cfg, nil)
	require.ErrorIs(t, err, ErrConnectionFailed)
}
