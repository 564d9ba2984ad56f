package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
)

var (
	// ErrNotConnected is returned for calls issued before Dial or after Close.
	ErrNotConnected = errors.New("channel: not connected")
	// ErrClosed fails in-flight calls when the channel goes away.
	ErrClosed = errors.New("channel: closed")
	// ErrCallTimeout is returned when no acknowledgement arrived in time.
	ErrCallTimeout = errors.New("channel: call timed out")
	// ErrAuthRejected is returned when a call failed for auth even after the
	// single refresh-and-retry.
	ErrAuthRejected = errors.New("channel: authentication rejected")
)

// TokenSource supplies bearer tokens for the channel. ForceRefresh is used
// for the single retry after an auth rejection.
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// PushHandler receives one decoded push payload. Handlers run on the read
// goroutine, strictly in arrival order; a slow handler delays later pushes
// but never reorders them.
type PushHandler func(typ events.PushType, payload interface{})

// Config holds channel connection configuration.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	CallTimeout      time.Duration
	MaxMessageSize   int64
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		CallTimeout:      10 * time.Second,
		MaxMessageSize:   1 << 20,
	}
}

// AuthPayload identifies this client during the websocket handshake.
type AuthPayload struct {
	DeviceID  string
	SessionID string
}

// Channel owns the single bidirectional event stream to the game server.
// Request/acknowledgement pairs are matched by call id; pushed events are
// dispatched to handlers in arrival order. Reconnection is the caller's job.
type Channel struct {
	config Config
	tokens TokenSource
	clock  clockwork.Clock

	handlersMu sync.RWMutex
	handlers   []PushHandler

	onDisconnect func(err error)

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Ack
	closed  bool
	done    chan struct{}

	writeMu sync.Mutex
}

// New creates an unconnected channel.
func New(config Config, tokens TokenSource, clk clockwork.Clock) *Channel {
	return &Channel{
		config:  config,
		tokens:  tokens,
		clock:   clk,
		pending: make(map[string]chan Ack),
	}
}

// OnPush registers a push handler. Handlers must be registered before Dial.
func (c *Channel) OnPush(h PushHandler) {
	c.handlersMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlersMu.Unlock()
}

// OnDisconnect registers a callback invoked once when the transport drops
// for any reason other than an explicit Close.
func (c *Channel) OnDisconnect(fn func(err error)) {
	c.onDisconnect = fn
}

// Dial opens the websocket and authenticates the handshake with the current
// token. In-flight state from a previous connection is discarded.
func (c *Channel) Dial(ctx context.Context, auth AuthPayload) error {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return fmt.Errorf("channel: get token for handshake: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("X-Device-ID", auth.DeviceID)
	if auth.SessionID != "" {
		header.Set("X-Session-ID", auth.SessionID)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		return fmt.Errorf("channel: dial %s: %w", c.config.URL, err)
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.done = make(chan struct{})
	c.pending = make(map[string]chan Ack)
	done := c.done
	c.mu.Unlock()

	go c.readPump(conn, done)

	log.Info().Str("url", c.config.URL).Str("device_id", auth.DeviceID).Msg("channel connected")
	return nil
}

// Close tears the connection down and fails every in-flight call with
// ErrClosed. The disconnect handler is not invoked for an explicit close.
func (c *Channel) Close() error {
	conn := c.teardown()
	if conn == nil {
		return nil
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout))
	return conn.Close()
}

// teardown marks the channel closed and drains pending waiters. Returns the
// live connection, or nil if already closed.
func (c *Channel) teardown() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	return conn
}

// Call issues one request and awaits its acknowledgement with the default
// call timeout.
func (c *Channel) Call(ctx context.Context, call events.CallType, payload interface{}) (Ack, error) {
	return c.CallWithTimeout(ctx, call, payload, c.config.CallTimeout)
}

// CallWithTimeout issues one request with an explicit ack deadline.
func (c *Channel) CallWithTimeout(ctx context.Context, call events.CallType, payload interface{}, timeout time.Duration) (Ack, error) {
	return c.callRetryingAuth(ctx, call, payload, []time.Duration{timeout}, nil)
}

// CallStaged issues one request and waits through a two-stage deadline: a
// short probe window, then a much longer confirmation window. onSlow fires
// once when the probe elapses. The request is not re-sent and not abandoned
// at the probe deadline; a slow ack usually means the server succeeded, and
// a blind retry would duplicate the operation.
func (c *Channel) CallStaged(ctx context.Context, call events.CallType, payload interface{}, probe, confirm time.Duration, onSlow func()) (Ack, error) {
	return c.callRetryingAuth(ctx, call, payload, []time.Duration{probe, confirm}, onSlow)
}

// callRetryingAuth applies the auth-expiry policy: try with the current
// token; on auth rejection request exactly one refresh and retry exactly
// once with the refreshed token; otherwise fail. No unbounded retries.
func (c *Channel) callRetryingAuth(ctx context.Context, call events.CallType, payload interface{}, stages []time.Duration, onSlow func()) (Ack, error) {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return Ack{}, fmt.Errorf("channel: get token: %w", err)
	}

	ack, err := c.attempt(ctx, call, payload, token, stages, onSlow)
	if err != nil {
		return Ack{}, err
	}
	if ack.OK || ack.Code != CodeAuthExpired {
		return ack, nil
	}

	refreshed, err := c.tokens.ForceRefresh(ctx)
	if err != nil || refreshed == "" {
		return Ack{}, ErrAuthRejected
	}
	ack, err = c.attempt(ctx, call, payload, refreshed, stages, onSlow)
	if err != nil {
		return Ack{}, err
	}
	if !ack.OK && ack.Code == CodeAuthExpired {
		return Ack{}, ErrAuthRejected
	}
	return ack, nil
}

// attempt sends one request frame and waits for its ack through the given
// timeout stages.
func (c *Channel) attempt(ctx context.Context, call events.CallType, payload interface{}, token string, stages []time.Duration, onSlow func()) (Ack, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Ack{}, fmt.Errorf("channel: marshal %s payload: %w", call, err)
	}

	callID := uuid.New().String()
	ackCh := make(chan Ack, 1)

	c.mu.Lock()
	if c.conn == nil || c.closed {
		c.mu.Unlock()
		return Ack{}, ErrNotConnected
	}
	conn := c.conn
	done := c.done
	c.pending[callID] = ackCh
	c.mu.Unlock()

	frame := Envelope{
		Type:    string(call),
		CallID:  callID,
		Token:   token,
		Payload: data,
	}
	if err := c.writeFrame(conn, &frame); err != nil {
		c.dropPending(callID)
		return Ack{}, fmt.Errorf("channel: write %s: %w", call, err)
	}

	for i, stage := range stages {
		timer := c.clock.NewTimer(stage)

		select {
		case ack, ok := <-ackCh:
			timer.Stop()
			if !ok {
				return Ack{}, ErrClosed
			}
			return ack, nil
		case <-timer.Chan():
			if i < len(stages)-1 {
				// Escalate to the next stage instead of abandoning the call.
				log.Warn().Str("call", string(call)).Dur("elapsed", stage).Msg("slow ack, extending wait")
				if onSlow != nil {
					onSlow()
					onSlow = nil
				}
				continue
			}
			c.dropPending(callID)
			log.Warn().Str("call", string(call)).Dur("timeout", stage).Msg("call timed out waiting for ack")
			return Ack{}, ErrCallTimeout
		case <-ctx.Done():
			timer.Stop()
			c.dropPending(callID)
			return Ack{}, ctx.Err()
		case <-done:
			timer.Stop()
			return Ack{}, ErrClosed
		}
	}
	return Ack{}, ErrCallTimeout
}

func (c *Channel) writeFrame(conn *websocket.Conn, frame *Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteJSON(frame)
}

func (c *Channel) dropPending(callID string) {
	c.mu.Lock()
	delete(c.pending, callID)
	c.mu.Unlock()
}

// readPump routes ack frames to their waiters and push frames to handlers.
// Exits on the first read error.
func (c *Channel) readPump(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Explicit close already tore everything down.
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected websocket close")
			}
			c.teardown()
			conn.Close()
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
			return
		}

		var frame Envelope
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		if frame.Type == frameTypeAck {
			c.routeAck(&frame)
			continue
		}
		c.dispatchPush(&frame)
	}
}

func (c *Channel) routeAck(frame *Envelope) {
	c.mu.Lock()
	ackCh, okPending := c.pending[frame.CallID]
	delete(c.pending, frame.CallID)
	c.mu.Unlock()
	if !okPending {
		// Late ack for an abandoned call; result is discarded.
		log.Debug().Str("call_id", frame.CallID).Msg("ack with no waiter")
		return
	}

	ok := frame.OK != nil && *frame.OK
	ackCh <- Ack{OK: ok, Code: frame.Code, Error: frame.Error, Payload: frame.Payload}
}

func (c *Channel) dispatchPush(frame *Envelope) {
	typ := events.PushType(frame.Type)
	payload, err := events.ParsePush(typ, frame.Payload)
	if err != nil {
		log.Warn().Err(err).Str("type", frame.Type).Msg("dropping undecodable push")
		return
	}
	if payload == nil {
		log.Debug().Str("type", frame.Type).Msg("ignoring unknown push type")
		return
	}

	c.handlersMu.RLock()
	handlers := c.handlers
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(typ, payload)
	}
}
