// Package bus forwards assistant events to a websocket hub. The hub is
// optional: events are dropped while it is unreachable.
package bus

import (
	"context"
	"encoding/json"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"
)

const queueSize = 64

type Message struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Kind    string          `json:"kind"`
	Content json.RawMessage `json:"content"`
	At      time.Time       `json:"at"`
}

type Bus struct {
	url    string
	from   string
	reconn time.Duration
	out    chan Message
	dialer *ws.Dialer
}

func New(url, from string, reconn time.Duration) *Bus {
	if reconn <= 0 {
		reconn = 5 * time.Second
	}
	return &Bus{
		url:    url,
		from:   from,
		reconn: reconn,
		out:    make(chan Message, queueSize),
		dialer: &ws.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

// Publish queues an event without blocking.
func (b *Bus) Publish(kind string, payload any) {
	content, err := json.Marshal(payload)
	if err != nil {
		log.Warn("Failed to encode bus event", "kind", kind, "err", err)
		return
	}

	msg := Message{From: b.from, To: "*", Kind: kind, Content: content, At: time.Now()}
	select {
	case b.out <- msg:
	default:
		log.Debug("Bus queue full, dropping event", "kind", kind)
	}
}

// Run keeps a connection to the hub and writes queued events until ctx is
// done.
func (b *Bus) Run(ctx context.Context) {
	for {
		conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug("Hub unreachable", "url", b.url, "err", err)
			if !b.wait(ctx) {
				return
			}
			continue
		}

		log.Info("Connected to bus", "url", b.url)
		err = b.pump(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if isClosed(err) {
			log.Info("Hub closed connection", "url", b.url)
		} else {
			log.Warn("Bus write failed", "err", err)
		}
		if !b.wait(ctx) {
			return
		}
	}
}

func (b *Bus) pump(ctx context.Context, conn *ws.Conn) error {
	// the hub never talks back; reading detects the close frame
	closed := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-closed:
			return err
		case msg := <-b.out:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Warn("Failed to encode bus message", "err", err)
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

func (b *Bus) wait(ctx context.Context) bool {
	t := time.NewTimer(b.reconn)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
