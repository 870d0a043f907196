package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestMatchSinkDefault(t *testing.T) {
	sinks := []Sink{
		{ID: "alsa_output.usb-schiit", Description: "Schiit Modi", Available: true},
		{ID: "bluez_output.sony", Description: "Sony WH-1000XM6", Available: true, Default: true},
	}

	sink, err := matchSink(sinks, "default")
	require.NoError(t, err)
	require.Equal(t, "bluez_output.sony", sink.ID)

	sink, err = matchSink(sinks, "")
	require.NoError(t, err)
	require.Equal(t, "bluez_output.sony", sink.ID)
}

func TestMatchSinkByIDOrDescription(t *testing.T) {
	sinks := []Sink{
		{ID: "alsa_output.usb-schiit", Description: "Schiit Modi", Available: true, Default: true},
		{ID: "bluez_output.sony", Description: "Sony WH-1000XM6", Available: true},
	}

	sink, err := matchSink(sinks, "SONY")
	require.NoError(t, err)
	require.Equal(t, "bluez_output.sony", sink.ID)

	sink, err = matchSink(sinks, "modi")
	require.NoError(t, err)
	require.Equal(t, "alsa_output.usb-schiit", sink.ID)
}

func TestMatchSinkErrors(t *testing.T) {
	_, err := matchSink(nil, "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no audio output sinks")

	sinks := []Sink{{ID: "alsa_output.usb-schiit", Description: "Schiit Modi", Available: true}}
	_, err = matchSink(sinks, "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "default audio sink")

	_, err = matchSink(sinks, "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestSinkMatches(t *testing.T) {
	sink := Sink{ID: "alsa_output.usb-schiit", Description: "Schiit Modi 3"}
	require.True(t, sinkMatches(sink, "schiit"))
	require.True(t, sinkMatches(sink, "modi 3"))
	require.False(t, sinkMatches(sink, "hdmi"))
	require.False(t, sinkMatches(sink, ""))
}

func TestPercentFromChannels(t *testing.T) {
	require.Equal(t, 0, percentFromChannels(nil))
	require.Equal(t, 100, percentFromChannels([]uint32{volumeNorm, volumeNorm}))
	require.Equal(t, 50, percentFromChannels([]uint32{volumeNorm / 2, volumeNorm / 2}))
	require.Equal(t, 75, percentFromChannels([]uint32{volumeNorm, volumeNorm / 2}))
}

func TestChannelsForPercent(t *testing.T) {
	require.Equal(t, []uint32{volumeNorm / 2, volumeNorm / 2}, channelsForPercent(50, 0))
	require.Equal(t, []uint32{volumeNorm}, channelsForPercent(150, 1))
	require.Equal(t, []uint32{0, 0, 0}, channelsForPercent(-5, 3))

	for _, percent := range []int{0, 1, 33, 67, 99, 100} {
		require.Equal(t, percent, percentFromChannels(channelsForPercent(percent, 2)))
	}
}

func TestSinkStateString(t *testing.T) {
	require.Equal(t, "running", sinkStateString(0))
	require.Equal(t, "idle", sinkStateString(1))
	require.Equal(t, "suspended", sinkStateString(2))
	require.Equal(t, "unknown(99)", sinkStateString(99))
}

func TestSinkAvailable(t *testing.T) {
	require.False(t, sinkAvailable(nil))
	require.True(t, sinkAvailable(&pulseproto.GetSinkInfoReply{}))

	available := &pulseproto.GetSinkInfoReply{ActivePortName: "headphones"}
	setSinkPorts(t, available, []sinkPort{{name: "headphones", available: 2}})
	require.True(t, sinkAvailable(available))

	unplugged := &pulseproto.GetSinkInfoReply{ActivePortName: "headphones"}
	setSinkPorts(t, unplugged, []sinkPort{{name: "speaker", available: 2}, {name: "headphones", available: 1}})
	require.False(t, sinkAvailable(unplugged))
}

func TestListSinksFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListSinks(context.Background())
	require.Error(t, err)
}

func TestConnectorFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := Connector{Sink: "default"}.Connect(context.Background())
	require.Error(t, err)
}

func TestClosedEndpointFailsFast(t *testing.T) {
	endpoint := &Endpoint{sink: "alsa_output.usb-schiit"}
	require.Equal(t, "alsa_output.usb-schiit", endpoint.SinkID())

	_, err := endpoint.Volume()
	require.Error(t, err)
	require.Error(t, endpoint.SetVolume(40))
	_, err = endpoint.Muted()
	require.Error(t, err)
	require.Error(t, endpoint.SetMute(true))
	require.NoError(t, endpoint.Close())
}

type sinkPort struct {
	name      string
	available uint32
}

func setSinkPorts(t *testing.T, reply *pulseproto.GetSinkInfoReply, ports []sinkPort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
