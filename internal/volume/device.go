// Package volume owns the output-volume endpoint: clamped get/set, mute, cancellable fades and bounded reconnects.
package volume

import (
	"context"
	"errors"
)

var (
	// ErrDeviceUnavailable reports that the endpoint could not be (re)acquired within the retry bound.
	ErrDeviceUnavailable = errors.New("volume: device unavailable")
	// ErrClosed reports an operation attempted after Close.
	ErrClosed = errors.New("volume: controller closed")
)

// Endpoint is one live binding to the system output volume. Values are percentages.
type Endpoint interface {
	Volume() (int, error)
	SetVolume(percent int) error
	Muted() (bool, error)
	SetMute(muted bool) error
	Close() error
}

// Connector acquires a fresh Endpoint.
type Connector interface {
	Connect(ctx context.Context) (Endpoint, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(context.Context) (Endpoint, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Endpoint, error) {
	return f(ctx)
}

// Observer receives settled volume state after user-visible changes.
// Intermediate fade steps are not reported. Implementations must not block.
type Observer interface {
	VolumeChanged(State)
}
