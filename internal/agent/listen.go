package agent

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// ListenLines submits each non-empty line of r as a text command from source. It returns nil at
// end of input or when ctx ends; a full queue drops the line.
func (a *Agent) ListenLines(ctx context.Context, r io.Reader, source Source) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			a.logger.Info("text input closed", "source", source)
			return nil
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := a.Submit(Command{Source: source, Text: line}); err != nil {
				a.logger.Warn("text command dropped", "source", source, "text", line, "error", err)
			}
		}
	}
}
