// Package ws implements the primary transport: a long-lived WebSocket
// channel to the backend's session-scoped endpoint.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asengupta/intervo/internal/interview"
	"github.com/asengupta/intervo/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // questions and evaluations are small; 1 MiB is generous
)

// ErrNotOpen is returned by Send when the channel is not connected.
var ErrNotOpen = errors.New("channel is not open")

// Channel is a message-oriented duplex connection to one session. Events
// arrive on Events() in order; Send is safe for concurrent use. A Channel
// is single-shot: once Closed it is never reconnected.
type Channel struct {
	baseURL string
	dialer  *websocket.Dialer

	state atomic.Int32 // interview.ChannelState

	mu   sync.Mutex // guards conn and writes
	conn *websocket.Conn

	events chan wire.Event
	done   chan struct{}
	once   sync.Once
}

var _ interview.Channel = (*Channel)(nil)

// NewChannel creates a channel targeting the given ws(s):// base URL.
func NewChannel(baseURL string) *Channel {
	c := &Channel{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		events:  make(chan wire.Event, 16),
		done:    make(chan struct{}),
	}
	c.state.Store(int32(interview.ChannelConnecting))
	return c
}

// Open dials the session endpoint asynchronously. On failure the state
// moves to Closed and no event is emitted; the coordinator detects the
// closed state through its grace window.
func (c *Channel) Open(ctx context.Context, sessionID string) {
	go func() {
		endpoint, err := url.JoinPath(c.baseURL, "ws", sessionID)
		if err != nil {
			c.transition(interview.ChannelClosed)
			return
		}

		conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			c.transition(interview.ChannelClosed)
			return
		}

		c.mu.Lock()
		select {
		case <-c.done:
			// Closed while dialing.
			c.mu.Unlock()
			_ = conn.Close()
			return
		default:
		}
		c.conn = conn
		c.mu.Unlock()

		conn.SetReadLimit(maxMessageSize)
		c.transition(interview.ChannelOpen)
		go c.readLoop(conn)
	}()
}

// Send transmits one outbound frame. Fails with ErrNotOpen when the channel
// is not connected; callers check State before relying on this path.
func (c *Channel) Send(msg wire.Outbound) error {
	if c.State() != interview.ChannelOpen {
		return ErrNotOpen
	}

	data, err := wire.EncodeOutbound(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotOpen
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", msg.Type, err)
	}
	return nil
}

// Events delivers inbound events in arrival order. Closed when the
// connection ends and no further events will be delivered.
func (c *Channel) Events() <-chan wire.Event { return c.events }

// State returns the current connection state.
func (c *Channel) State() interview.ChannelState {
	return interview.ChannelState(c.state.Load())
}

// Close tears the connection down. After Close returns no further events
// are delivered. Idempotent.
func (c *Channel) Close() error {
	c.once.Do(func() {
		c.state.Store(int32(interview.ChannelClosed))
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})
	return nil
}

// readLoop pumps inbound frames to the events channel until the connection
// ends. Frames that fail decoding surface as error events rather than being
// dropped silently.
func (c *Channel) readLoop(conn *websocket.Conn) {
	defer close(c.events)
	defer c.transition(interview.ChannelClosed)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		ev, err := wire.DecodeEvent(data)
		if err != nil {
			ev = wire.Event{Type: wire.EventError, Message: fmt.Sprintf("malformed frame: %v", err)}
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// transition moves the state forward only; Closed is sticky.
func (c *Channel) transition(next interview.ChannelState) {
	for {
		cur := c.state.Load()
		if interview.ChannelState(cur) == interview.ChannelClosed {
			return
		}
		if c.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}
