// Package audio binds the PulseAudio/PipeWire output sink: discovery, volume and mute.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/modus/internal/volume"
)

const (
	// volumeNorm is the Pulse channel volume that corresponds to 100%.
	volumeNorm = 0x10000
	// undefinedIndex selects a sink by name rather than index.
	undefinedIndex = 0xFFFFFFFF
)

// Sink describes one Pulse output sink surfaced to modus.
type Sink struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Volume      int
	Default     bool
}

// ListSinks returns Pulse output sinks with default/availability metadata.
func ListSinks(_ context.Context) ([]Sink, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return listSinks(client)
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("modus"),
		pulse.ClientApplicationIconName("audio-volume-high"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

func listSinks(client *pulse.Client) ([]Sink, error) {
	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	sinks := make([]Sink, 0, len(sinkInfos))
	for _, info := range sinkInfos {
		if info == nil {
			continue
		}
		sinks = append(sinks, Sink{
			ID:          info.SinkName,
			Description: info.Device,
			State:       sinkStateString(info.State),
			Available:   sinkAvailable(info),
			Muted:       info.Mute,
			Volume:      percentFromChannels(info.ChannelVolumes),
			Default:     info.SinkName == defaultID,
		})
	}
	return sinks, nil
}

// matchSink resolves a configured sink preference against live sinks.
// Empty or "default" selects the server default; anything else matches id or description.
func matchSink(sinks []Sink, want string) (Sink, error) {
	if len(sinks) == 0 {
		return Sink{}, errors.New("no audio output sinks found")
	}

	want = strings.TrimSpace(strings.ToLower(want))
	for _, sink := range sinks {
		if want == "" || want == "default" {
			if sink.Default {
				return sink, nil
			}
			continue
		}
		if sinkMatches(sink, want) {
			return sink, nil
		}
	}

	if want == "" || want == "default" {
		return Sink{}, errors.New("default audio sink is unavailable")
	}
	return Sink{}, fmt.Errorf("audio.sink %q did not match any sink", want)
}

// sinkMatches reports whether a search term matches a sink id or description.
func sinkMatches(sink Sink, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(sink.ID)
	desc := strings.ToLower(sink.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// Connector dials Pulse and binds the configured sink. It satisfies volume.Connector.
type Connector struct {
	Sink string
}

// Connect opens a Pulse client and resolves the sink. The caller owns the returned endpoint.
func (c Connector) Connect(_ context.Context) (volume.Endpoint, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	sinks, err := listSinks(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	sink, err := matchSink(sinks, c.Sink)
	if err != nil {
		client.Close()
		return nil, err
	}
	if !sink.Available {
		client.Close()
		return nil, fmt.Errorf("audio sink %q is not available", sink.ID)
	}

	return &Endpoint{client: client, sink: sink.ID}, nil
}

// Endpoint is a live binding to one Pulse sink.
type Endpoint struct {
	mu     sync.Mutex
	client *pulse.Client
	sink   string
}

// SinkID names the bound sink.
func (e *Endpoint) SinkID() string {
	return e.sink
}

func (e *Endpoint) info() (*pulseproto.GetSinkInfoReply, error) {
	if e.client == nil {
		return nil, errors.New("pulse endpoint closed")
	}
	var reply pulseproto.GetSinkInfoReply
	err := e.client.RawRequest(&pulseproto.GetSinkInfo{SinkIndex: undefinedIndex, SinkName: e.sink}, &reply)
	if err != nil {
		return nil, fmt.Errorf("read sink %q: %w", e.sink, err)
	}
	return &reply, nil
}

// Volume returns the sink volume as the channel average in percent.
func (e *Endpoint) Volume() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, err := e.info()
	if err != nil {
		return 0, err
	}
	return percentFromChannels(info.ChannelVolumes), nil
}

// SetVolume writes percent to every channel of the sink.
func (e *Endpoint) SetVolume(percent int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, err := e.info()
	if err != nil {
		return err
	}
	req := &pulseproto.SetSinkVolume{
		SinkIndex:      undefinedIndex,
		SinkName:       e.sink,
		ChannelVolumes: channelsForPercent(percent, len(info.ChannelVolumes)),
	}
	if err := e.client.RawRequest(req, nil); err != nil {
		return fmt.Errorf("set sink %q volume: %w", e.sink, err)
	}
	return nil
}

// Muted reads the sink mute flag.
func (e *Endpoint) Muted() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, err := e.info()
	if err != nil {
		return false, err
	}
	return info.Mute, nil
}

// SetMute writes the sink mute flag.
func (e *Endpoint) SetMute(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return errors.New("pulse endpoint closed")
	}
	req := &pulseproto.SetSinkMute{SinkIndex: undefinedIndex, SinkName: e.sink, Mute: muted}
	if err := e.client.RawRequest(req, nil); err != nil {
		return fmt.Errorf("set sink %q mute: %w", e.sink, err)
	}
	return nil
}

// Close releases the Pulse client.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	return nil
}

// percentFromChannels averages raw channel volumes into a rounded percentage.
func percentFromChannels(channels []uint32) int {
	if len(channels) == 0 {
		return 0
	}
	var total uint64
	for _, v := range channels {
		total += uint64(v)
	}
	avg := float64(total) / float64(len(channels))
	return int(math.Round(avg * 100 / volumeNorm))
}

// channelsForPercent builds equal raw channel volumes. Zero channels means stereo.
func channelsForPercent(percent int, channels int) []uint32 {
	if channels <= 0 {
		channels = 2
	}
	percent = min(max(percent, 0), 100)
	raw := uint32(math.Round(float64(percent) * volumeNorm / 100))
	out := make([]uint32, channels)
	for i := range out {
		out[i] = raw
	}
	return out
}

// sinkStateString maps Pulse sink state constants to human-readable values.
func sinkStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sinkAvailable maps Pulse sink port availability to a simple boolean.
func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	if len(sink.Ports) == 0 {
		return true
	}
	for _, port := range sink.Ports {
		if port.Name != sink.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
