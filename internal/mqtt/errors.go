package mqtt

import "errors"

var (
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	// ErrNotConnected is returned when publishing without an open connection.
	ErrNotConnected = errors.New("mqtt: client not connected")
	// ErrPublishFailed is returned when the broker rejects or times out a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
