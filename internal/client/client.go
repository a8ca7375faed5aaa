// Package client consumes the record stream as a WebSocket subscriber.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"firestige.xyz/netscope/internal/core"
)

// DefaultURL is the endpoint served by `netscope serve` with default config.
const DefaultURL = "ws://localhost:3001/"

// Event is one item received from the server. Exactly one field is set.
type Event struct {
	Status string
	Record *core.WireRecord
	Err    error
}

// Conn is an open subscriber connection.
type Conn struct {
	ws *websocket.Conn
}

// Dial connects to a netscope server.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Next blocks for the next status or packet message.
func (c *Conn) Next() (Event, error) {
	for {
		var msg core.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			return Event{}, err
		}
		switch msg.Type {
		case core.MessageTypeStatus:
			return Event{Status: msg.Message}, nil
		case core.MessageTypePacket:
			var rec core.WireRecord
			if err := json.Unmarshal(msg.Data, &rec); err != nil {
				return Event{}, fmt.Errorf("decode packet message: %w", err)
			}
			return Event{Record: &rec}, nil
		}
		// Unknown message types are ignored.
	}
}

// Close sends a normal close frame and closes the connection.
func (c *Conn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

// Stream forwards events to out until ctx is done or the connection fails.
// The final error, if any, is sent as an Event before out is closed.
func Stream(ctx context.Context, conn *Conn, out chan<- Event) {
	defer close(out)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		ev, err := conn.Next()
		if err != nil {
			if ctx.Err() == nil {
				select {
				case out <- Event{Err: err}:
				case <-ctx.Done():
				}
			}
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
