// Package socket is the client side of the pub/sub websocket. Frames are JSON
// envelopes; outbound events are queued and written in order by one goroutine.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"roomchat/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 20
	sendBuffer = 256
)

var (
	// ErrClosed is returned by Emit once the connection is gone.
	ErrClosed = errors.New("socket closed")
	// ErrSendBufferFull is returned when the writer cannot keep up.
	ErrSendBufferFull = errors.New("socket send buffer full")
)

// Conn is one websocket session with the chat backend.
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	events chan protocol.Envelope
	done   chan struct{}
	logger zerolog.Logger

	closeOnce sync.Once
	writeMu   sync.Mutex
	errMu     sync.Mutex
	err       error
}

// Dial connects to serverURL as username. The username travels as the "user"
// query parameter; how the backend trusts it is the backend's business.
func Dial(ctx context.Context, serverURL, username string, logger zerolog.Logger) (*Conn, error) {
	target, err := BuildURL(serverURL, username)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	return newConn(ws, logger), nil
}

// BuildURL validates a ws/wss URL and sets the user query parameter.
func BuildURL(serverURL, username string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid scheme for websocket: %q", parsed.Scheme)
	}
	query := parsed.Query()
	if username != "" {
		query.Set("user", username)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func newConn(ws *websocket.Conn, logger zerolog.Logger) *Conn {
	conn := &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		events: make(chan protocol.Envelope, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "socket").Logger(),
	}
	go conn.writePump()
	go conn.readPump()
	return conn
}

// Emit queues an event. It never blocks on the network; events are written in
// the order Emit was called.
func (c *Conn) Emit(event protocol.Event, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// Events delivers inbound frames. The channel is closed when the connection
// ends; Err then says why.
func (c *Conn) Events() <-chan protocol.Envelope {
	return c.events
}

// Err returns the error that ended the connection, nil while it is open or
// after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close sends a normal close frame and tears the connection down.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(writeWait)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client quit"), deadline)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) readPump() {
	defer close(c.events)
	c.ws.SetReadLimit(maxMsgSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.ws.SetPingHandler(func(data string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	for {
		messageType, frame, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// closed locally
			default:
				c.fail(err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		envelope, err := protocol.Decode(frame)
		if err != nil {
			// inbound payloads are trusted; a bad frame is dropped, not fatal
			c.logger.Debug().Err(err).Bytes("frame", frame).Msg("dropping frame")
			continue
		}
		select {
		case c.events <- envelope:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}
