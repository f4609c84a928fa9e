package gateway

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/driftlock/gatewaykit/config"
	"github.com/driftlock/gatewaykit/errors"
	"github.com/driftlock/gatewaykit/wire"
)

// Version is reported to the gateway during the handshake.
const Version = "gatewaykit/0.3.0"

// ProtocolVersion is the single protocol revision this client speaks.
const ProtocolVersion = 3

// Client owns one persistent connection to the gateway and multiplexes
// correlated requests and per-run event streams over it. All methods are
// safe for concurrent use.
type Client struct {
	cfg    config.Config
	logger zerolog.Logger

	mu          sync.Mutex
	state       State
	conn        *websocket.Conn
	connDone    chan struct{} // closed when the current connection ends
	connectWait []chan error  // callers awaiting an in-flight connect
	pending     map[string]*pendingRequest
	listeners   map[string]Listener
	seqCursor   uint64
	reconnect   *time.Timer
	backoff     *backoff

	writeMu sync.Mutex // gorilla allows a single concurrent writer
}

// New creates a client for the given configuration. The client is idle
// until Connect is called.
func New(cfg config.Config, logger zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:       cfg,
		logger:    logger.With().Str("component", "gateway").Logger(),
		pending:   make(map[string]*pendingRequest),
		listeners: make(map[string]Listener),
		backoff:   newBackoff(cfg.ReconnectInterval, cfg.MaxReconnectInterval),
	}, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the connection is usable for requests.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Connect establishes the connection and completes the handshake. It is a
// no-op when already connected and fails once the client has been closed.
// Concurrent callers share a single physical attempt and its outcome.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return errors.ClientClosed("client closed")
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		ch := make(chan error, 1)
		c.connectWait = append(c.connectWait, ch)
		c.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			// The shared attempt keeps going for the other callers.
			return errors.Wrap(ctx.Err(), "awaiting connect")
		}
	}

	c.state = StateConnecting
	c.mu.Unlock()

	err := c.dial(ctx)
	c.finishConnect(err)
	return err
}

// finishConnect settles the lifecycle state after a connect attempt and
// wakes every caller that joined it.
func (c *Client) finishConnect(err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		waiters := c.connectWait
		c.connectWait = nil
		c.mu.Unlock()
		for _, ch := range waiters {
			ch <- errors.ClientClosed("client closed")
		}
		return
	}

	if err == nil {
		c.state = StateConnected
		c.backoff.Reset()
	} else {
		c.state = StateDisconnected
	}
	waiters := c.connectWait
	c.connectWait = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
}

// dial opens the socket, starts the read loop, and runs the connect
// handshake through the correlator. A handshake failure tears the socket
// down and surfaces as the connect error.
func (c *Client) dial(ctx context.Context) error {
	c.logger.Info().Str("url", c.cfg.GatewayURL).Msg("connecting to gateway")

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.GatewayURL, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeNotConnected, "dialing gateway")
	}
	conn.SetReadLimit(c.cfg.MaxMessageSize)

	done := make(chan struct{})
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Close()
		return errors.ClientClosed("client closed")
	}
	c.conn = conn
	c.connDone = done
	c.seqCursor = 0 // sequence numbers are per connection
	c.mu.Unlock()

	go c.readLoop(conn)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, done)
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	if _, err := c.send(hctx, conn, wire.MethodConnect, c.connectParams(), c.cfg.HandshakeTimeout); err != nil {
		conn.Close()
		return errors.WrapWithCode(err, errors.ErrCodeHandshake, "gateway handshake failed")
	}

	c.logger.Info().Msg("connected to gateway")
	return nil
}

// connectParams builds the handshake request from the configuration.
func (c *Client) connectParams() wire.ConnectParams {
	params := wire.ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client: wire.ClientInfo{
			ID:          c.cfg.ClientID,
			Version:     Version,
			Platform:    runtime.GOOS,
			Mode:        "backend",
			DisplayName: c.cfg.DisplayName,
		},
		Role:   c.cfg.Role,
		Scopes: c.cfg.Scopes,
	}
	if c.cfg.AuthToken != "" || c.cfg.AuthPassword != "" {
		params.Auth = &wire.AuthParams{
			Token:    c.cfg.AuthToken,
			Password: c.cfg.AuthPassword,
		}
	}
	return params
}

// Request sends a correlated request and suspends the caller until the
// matching response arrives or the request timeout fires. It fails
// immediately when no usable connection exists; requests are never queued
// for later and never replayed.
func (c *Client) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return nil, errors.ClientClosed("client closed")
	case StateConnected:
	default:
		c.mu.Unlock()
		return nil, errors.NotConnected("not connected to gateway")
	}
	conn := c.conn
	c.mu.Unlock()

	return c.send(ctx, conn, method, params, c.cfg.RequestTimeout)
}

// send registers a pending entry, writes the request frame, and waits.
// Used by Request and by the handshake (which runs before StateConnected).
func (c *Client) send(ctx context.Context, conn *websocket.Conn, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	id := uuid.NewString()
	frame, err := wire.NewRequest(id, method, params)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	p := c.addPending(id, method, timeout)

	if err := c.writeFrame(conn, frame); err != nil {
		c.removePending(id)
		return nil, errors.WrapWithCode(err, errors.ErrCodeNotConnected, "writing "+method+" request")
	}

	c.logger.Debug().Str("method", method).Str("id", id).Msg("request sent")

	select {
	case res := <-p.ch:
		return res.payload, res.err
	case <-ctx.Done():
		c.removePending(id)
		return nil, errors.Wrap(ctx.Err(), method+" request")
	}
}

// writeFrame serializes and writes one frame to the socket.
func (c *Client) writeFrame(conn *websocket.Conn, frame *wire.Frame) error {
	data, err := wire.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the connection fails, dispatching responses
// to the correlator and events to the router. Malformed frames are logged
// and discarded; they never stop the loop.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		frame, err := wire.Parse(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}

		switch {
		case frame.IsResponse():
			c.resolvePending(frame)
		case frame.IsEvent():
			c.routeEvent(frame)
		default:
			c.logger.Debug().Str("method", frame.Method).Msg("ignoring inbound request frame")
		}
	}
}

// pingLoop sends keepalive pings until the connection ends.
func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			c.writeMu.Unlock()
		}
	}
}

// handleDisconnect reacts to the read loop ending. For an established
// connection it rejects all pending requests, notifies every active stream
// with a synthetic error event, and schedules a reconnect. For a connection
// still in handshake it only rejects pending (the dialer reports the
// failure). Close has its own teardown path and is ignored here.
func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	wasConnected := c.state == StateConnected
	if wasConnected {
		c.state = StateDisconnected
	}
	pending := c.takePendingLocked()
	c.mu.Unlock()

	lost := errors.ConnectionLost("connection closed", errors.WithCause(cause))
	for _, p := range pending {
		p.fail(lost)
	}

	if !wasConnected {
		return
	}

	c.logger.Warn().Err(cause).Msg("gateway connection lost")
	c.notifyListeners(wire.StateError, "connection to gateway lost: "+cause.Error())
	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer with the next backoff
// delay. No-op when already scheduled or no longer disconnected.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.state != StateDisconnected || c.reconnect != nil {
		c.mu.Unlock()
		return
	}
	delay := c.backoff.Next()
	c.reconnect = time.AfterFunc(delay, c.runReconnect)
	c.mu.Unlock()

	c.logger.Info().Dur("delay", delay).Msg("reconnect scheduled")
}

// runReconnect performs one supervised reconnect attempt.
func (c *Client) runReconnect() {
	c.mu.Lock()
	c.reconnect = nil
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	err := c.dial(context.Background())
	c.finishConnect(err)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reconnect attempt failed")
		c.scheduleReconnect()
		return
	}
	c.logger.Info().Msg("reconnected to gateway")
}

// Close marks the client closed, cancels any pending reconnect, tears down
// the socket, and rejects all pending requests. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	pending := c.takePendingLocked()
	c.listeners = make(map[string]Listener)
	waiters := c.connectWait
	c.connectWait = nil
	c.mu.Unlock()

	closed := errors.ClientClosed("client closed")
	for _, p := range pending {
		p.fail(closed)
	}
	for _, ch := range waiters {
		ch <- closed
	}

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err := conn.Close()
		c.logger.Info().Msg("client closed")
		return err
	}
	c.logger.Info().Msg("client closed")
	return nil
}
