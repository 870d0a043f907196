package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/fsm"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/volume"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	mu           sync.Mutex
	open         bool
	publishErr   error
	messages     []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newFakeToken(c.publishErr)
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.open = false
}

func (c *fakeClient) snapshot() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func TestPublisherTopicsAndPayloads(t *testing.T) {
	fake := &fakeClient{open: true}
	pub := newPublisher(fake, Topics{Prefix: "home/modus"}, "modus-test", nil)

	pub.ModeActivated(engine.Execution{ID: "e1", Mode: "Movie Night", Status: engine.StatusCompleted, Total: 2, Completed: 2})
	pub.VolumeChanged(volume.State{Volume: 35, Muted: true, Device: fsm.StateConnected})
	pub.HealthSampled(health.Sample{AvailableRAMGB: 3.5, FreeDiskGB: 120})

	msgs := fake.snapshot()
	require.Len(t, msgs, 3)

	require.Equal(t, "home/modus/mode/movie_night/activation", msgs[0].topic)
	require.Equal(t, byte(1), msgs[0].qos)
	require.False(t, msgs[0].retained)
	var exec engine.Execution
	require.NoError(t, json.Unmarshal(msgs[0].payload, &exec))
	require.Equal(t, "e1", exec.ID)
	require.Equal(t, engine.StatusCompleted, exec.Status)

	require.Equal(t, "home/modus/volume/state", msgs[1].topic)
	require.True(t, msgs[1].retained)
	require.JSONEq(t, `{"volume":35,"muted":true}`, string(msgs[1].payload))

	require.Equal(t, "home/modus/health", msgs[2].topic)
	require.Equal(t, byte(0), msgs[2].qos)
	require.Contains(t, string(msgs[2].payload), `"available_ram_gb":3.5`)
}

func TestPublisherSkipsWhileDisconnected(t *testing.T) {
	fake := &fakeClient{open: false}
	pub := newPublisher(fake, Topics{}, "modus", nil)

	pub.VolumeChanged(volume.State{Volume: 10})
	require.Empty(t, fake.snapshot())
}

func TestPublisherSurvivesPublishErrors(t *testing.T) {
	fake := &fakeClient{open: true, publishErr: errors.New("broker said no")}
	pub := newPublisher(fake, Topics{}, "modus", nil)

	pub.ModeActivated(engine.Execution{Mode: "focus"})
	require.NoError(t, pub.Close())
	require.True(t, fake.disconnected)
}

func TestCloseAnnouncesOfflineAndStopsPublishing(t *testing.T) {
	fake := &fakeClient{open: true}
	pub := newPublisher(fake, Topics{Prefix: "modus"}, "modus-test", nil)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	msgs := fake.snapshot()
	require.Len(t, msgs, 1)
	require.Equal(t, "modus/status", msgs[0].topic)
	require.True(t, msgs[0].retained)
	require.Contains(t, string(msgs[0].payload), `"status":"offline"`)
	require.Contains(t, string(msgs[0].payload), `"reason":"graceful_shutdown"`)

	fake.mu.Lock()
	fake.open = true
	fake.mu.Unlock()
	pub.ModeActivated(engine.Execution{Mode: "late"})
	require.Len(t, fake.snapshot(), 1)
}

func TestTopicSegmentStripsReservedCharacters(t *testing.T) {
	tests := map[string]string{
		"Gaming":      "gaming",
		"movie night": "movie_night",
		"a/b+c#d":     "abcd",
		"   ":         "_",
		"Work Mode 2": "work_mode_2",
	}
	for in, want := range tests {
		require.Equal(t, want, topicSegment(in), in)
	}
}

func TestTopicsDefaultPrefix(t *testing.T) {
	require.Equal(t, "modus/status", Topics{}.Status())
	require.Equal(t, "x/y/volume/state", Topics{Prefix: "/x/y/"}.VolumeState())
}

func TestConnectFailsWithoutBroker(t *testing.T) {
	cfg := config.Default().MQTT
	cfg.Broker = "tcp://127.0.0.1:1"
	_, err := Connect(cfg, nil)
	require.ErrorIs(t, err, ErrConnectionFailed)
}
