// Package mqtt publishes activation, volume and health events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rbright/modus/internal/config"
	"github.com/rbright/modus/internal/engine"
	"github.com/rbright/modus/internal/health"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/volume"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 500 // milliseconds
	defaultKeepAlive         = 60 * time.Second
)

// client is the subset of pahomqtt.Client the publisher drives.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Publisher forwards agent events to the broker. Event methods never block on the network;
// publish outcomes are awaited in the background and logged.
type Publisher struct {
	client   client
	topics   Topics
	clientID string
	logger   *slog.Logger

	pending sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// Connect dials the broker with a retained last will on the status topic and announces online status.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Publisher, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}
	opts := buildClientOptions(cfg)
	opts.SetWill(topics.Status(), statusPayload(cfg.ClientID, "offline", "unexpected_disconnect"), 1, true)

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := newPublisher(c, topics, cfg.ClientID, logger)
	p.publish(topics.Status(), 1, true, []byte(statusPayload(cfg.ClientID, "online", "")))
	p.logger.Info("mqtt connected", "broker", cfg.Broker, "prefix", topics.Prefix)
	return p, nil
}

func newPublisher(c client, topics Topics, clientID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:   c,
		topics:   topics,
		clientID: clientID,
		logger:   logging.OrDiscard(logger),
	}
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	return opts
}

// ModeActivated publishes the execution record at QoS 1.
func (p *Publisher) ModeActivated(exec engine.Execution) {
	p.publishJSON(p.topics.ModeActivation(exec.Mode), 1, false, exec)
}

// VolumeChanged publishes the retained volume state.
func (p *Publisher) VolumeChanged(state volume.State) {
	p.publishJSON(p.topics.VolumeState(), 1, true, struct {
		Volume int  `json:"volume"`
		Muted  bool `json:"muted"`
	}{Volume: state.Volume, Muted: state.Muted})
}

// HealthSampled publishes one health monitor sample at QoS 0.
func (p *Publisher) HealthSampled(sample health.Sample) {
	p.publishJSON(p.topics.Health(), 0, false, sample)
}

// Close announces graceful offline status, waits briefly for pending publishes and disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if p.client.IsConnectionOpen() {
		token := p.client.Publish(p.topics.Status(), 1, true, []byte(statusPayload(p.clientID, "offline", "graceful_shutdown")))
		token.WaitTimeout(defaultPublishTimeout)
	}

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pending.Wait()
	p.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

func (p *Publisher) publishJSON(topic string, qos byte, retained bool, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		p.logger.Error("mqtt payload encode failed", "topic", topic, "error", err)
		return
	}
	p.publish(topic, qos, retained, payload)
}

func (p *Publisher) publish(topic string, qos byte, retained bool, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if !p.client.IsConnectionOpen() {
		p.logger.Debug("mqtt publish skipped", "topic", topic, "error", ErrNotConnected)
		return
	}

	token := p.client.Publish(topic, qos, retained, payload)
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		if err := await(token, defaultPublishTimeout); err != nil {
			p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}()
}

func await(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func statusPayload(clientID string, status string, reason string) string {
	payload, _ := json.Marshal(struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(payload)
}
