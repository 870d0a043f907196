package sound

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/jfreymuth/pulse"
)

// backend performs one blocking playback. Cancelling ctx must stop it promptly.
type backend interface {
	PlayFile(ctx context.Context, path string) error
	PlaySamples(ctx context.Context, samples []int16) error
}

type systemBackend struct {
	player []string
}

// PlayFile runs the configured player argv with path appended.
func (b systemBackend) PlayFile(ctx context.Context, path string) error {
	if len(b.player) == 0 {
		return errors.New("no sound player configured")
	}
	args := append(append([]string{}, b.player[1:]...), path)
	if err := exec.CommandContext(ctx, b.player[0], args...).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play %q: %w", path, err)
	}
	return nil
}

// PlaySamples streams mono 16kHz PCM through a Pulse playback stream.
func (systemBackend) PlaySamples(ctx context.Context, samples []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("modus"),
		pulse.ClientApplicationIconName("audio-volume-high"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("modus cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return ctx.Err()
}
