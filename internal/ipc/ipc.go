// Package ipc is the newline-delimited JSON protocol between moodvox-ctl
// and the daemon over a unix socket. One request and one response per
// connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocketPath = "/tmp/moodvox.sock"

const (
	CmdStart   = "start"
	CmdStop    = "stop"
	CmdTrigger = "trigger"
	CmdSay     = "say"
	CmdAnalyze = "analyze"
	CmdMood    = "mood"
	CmdHistory = "history"
	CmdClear   = "clear"
	CmdReset   = "reset"
)

type Request struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
	Path string `json:"path,omitempty"`
}

type Response struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Handler answers a single request. It runs on the connection's goroutine.
type Handler func(ctx context.Context, req Request) Response

// Fail builds an error response carrying a user-facing message.
func Fail(msg string) Response {
	return Response{OK: false, Message: msg}
}

// Reply builds a success response with data marshalled as JSON.
func Reply(msg string, data any) Response {
	resp := Response{OK: true, Message: msg}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Fail("encode reply: " + err.Error())
		}
		resp.Data = b
	}
	return resp
}

type Server struct {
	path string
	ln   net.Listener
	wg   sync.WaitGroup
}

// Listen replaces a stale socket at path and starts listening.
func Listen(path string) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln}, nil
}

// Serve accepts connections until ctx is done or the listener is closed.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			log.Warn("Accept failed", "err", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleConn(ctx, conn, handler)
		}()
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Debug("Bad control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Fail("bad request: " + err.Error()))
		return
	}

	log.Debug("Control message", "cmd", req.Cmd)
	resp := handler(ctx, req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Warn("Failed to write control reply", "err", err)
	}
}

// Send delivers req to the daemon at path and waits for its response.
func Send(ctx context.Context, path string, req Request) (Response, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(2 * time.Minute))
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read reply: %w", err)
	}
	return resp, nil
}
