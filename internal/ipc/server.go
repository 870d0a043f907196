package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	// requestReadTimeout bounds how long a client may take to send its request line.
	requestReadTimeout = 2 * time.Second
	// maxRequestBytes caps one request line.
	maxRequestBytes = 64 << 10
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve accepts unix-socket clients until context cancellation or listener close.
// Each connection carries exactly one request and one response.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			resp := serveConn(ctx, c, handler)
			_ = c.SetWriteDeadline(time.Now().Add(requestReadTimeout))
			_ = json.NewEncoder(c).Encode(resp)
		}(conn)
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) (resp Response) {
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	reader := bufio.NewReader(io.LimitReader(conn, maxRequestBytes))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return Response{OK: false, Error: fmt.Sprintf("read request: %v", err)}
	}
	// Long-running requests such as activate answer only when the mode finishes.
	_ = conn.SetReadDeadline(time.Time{})

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)}
	}
	if req.Command == "" {
		return Response{OK: false, Error: "request has no command"}
	}

	defer func() {
		if r := recover(); r != nil {
			resp = Response{OK: false, Error: fmt.Sprintf("handle %s: internal error: %v", req.Command, r)}
		}
	}()
	return handler.Handle(ctx, req)
}
