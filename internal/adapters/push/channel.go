// Package push keeps a WebSocket connection to the notification stream
// open, reconnecting with a linearly increasing delay up to a fixed number
// of attempts.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/infrastructure/metrics"
)

// State of the connection
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateBackoff      State = "backoff"
)

const writeTimeout = 10 * time.Second

// Options tunes the channel
type Options struct {
	MaxAttempts int
	Interval    time.Duration
	Dialer      *websocket.Dialer
	Header      http.Header
	Metrics     *metrics.Client
}

// Channel is a push channel over gorilla/websocket
type Channel struct {
	url    string
	opts   Options
	logger *logger.Logger

	mu       sync.Mutex
	state    State
	attempts int
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex

	subMu         sync.Mutex
	nextID        int
	notifications map[int]func(entities.Notification)
	reads         map[int]func(int64)
	statuses      map[int]func(bool)
}

// New creates a disconnected channel for the stream at url
func New(url string, opts Options, log *logger.Logger) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Channel{
		url:           url,
		opts:          opts,
		logger:        log.WithComponent("push"),
		state:         StateDisconnected,
		notifications: map[int]func(entities.Notification){},
		reads:         map[int]func(int64){},
		statuses:      map[int]func(bool){},
	}
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the stream is open
func (c *Channel) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect opens the stream for userID and keeps it open until Disconnect
// or ctx is done. The first dial happens synchronously and its error is
// returned; retries continue in the background either way. Connecting while
// already running is a no-op.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.attempts = 0
	c.mu.Unlock()

	c.setState(StateConnecting)
	conn, err := c.dial(ctx)

	go func() {
		defer close(done)
		c.run(ctx, userID, conn, err)
	}()

	if err != nil {
		return fmt.Errorf("connect to notification stream: %w", err)
	}
	return nil
}

// Disconnect closes the stream and stops retrying
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.url, c.opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// run drives the state machine until the context ends or the retry budget
// is spent.
func (c *Channel) run(ctx context.Context, userID string, conn *websocket.Conn, err error) {
	for {
		if err == nil {
			c.mu.Lock()
			c.attempts = 0
			c.mu.Unlock()
			c.setState(StateConnected)
			err = c.serve(ctx, conn, userID)
			c.setState(StateDisconnected)
		}

		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.logger.WithError(err).Warn("Notification stream dropped")

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if attempt > c.opts.MaxAttempts {
			c.logger.Errorw("Max reconnection attempts reached", "attempts", c.opts.MaxAttempts)
			c.setState(StateDisconnected)
			c.mu.Lock()
			cancel := c.cancel
			c.cancel, c.done = nil, nil
			c.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return
		}

		c.setState(StateBackoff)
		c.opts.Metrics.PushReconnect()
		delay := c.opts.Interval * time.Duration(attempt)
		c.logger.Infow("Reconnecting to notification stream", "attempt", attempt, "max_attempts", c.opts.MaxAttempts, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected)
			return
		case <-timer.C:
		}

		c.setState(StateConnecting)
		conn, err = c.dial(ctx)
	}
}

// serve authenticates and pumps frames until the connection fails
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn, userID string) error {
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			conn.Close()
		case <-stop:
		}
	}()

	if err := c.write(conn, NewAuthFrame(userID)); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.WithError(err).Warn("Failed to parse stream frame")
			continue
		}

		switch frame.Type {
		case FrameNotification:
			if frame.Notification != nil {
				c.emitNotification(*frame.Notification)
			}
		case FrameNotificationRead:
			c.emitRead(frame.NotificationID)
		case FramePing:
			if err := c.write(conn, Frame{Type: FramePong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case FrameAuthenticated:
			c.logger.Infow("Notification stream authenticated", "status", frame.Status)
		}
	}
}

func (c *Channel) write(conn *websocket.Conn, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev == s {
		return
	}
	c.logger.Debugw("Push channel state", "from", prev, "to", s)
	if prev == StateConnected || s == StateConnected {
		c.emitStatus(s == StateConnected)
	}
}

// OnNotification subscribes to pushed notifications
func (c *Channel) OnNotification(fn func(entities.Notification)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.notifications[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.notifications, id)
	}
}

// OnNotificationRead subscribes to read receipts from other sessions
func (c *Channel) OnNotificationRead(fn func(id int64)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.reads[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.reads, id)
	}
}

// OnStatusChange subscribes to connected/disconnected transitions
func (c *Channel) OnStatusChange(fn func(connected bool)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.statuses[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.statuses, id)
	}
}

func (c *Channel) emitNotification(n entities.Notification) {
	c.subMu.Lock()
	fns := make([]func(entities.Notification), 0, len(c.notifications))
	for _, fn := range c.notifications {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}

func (c *Channel) emitRead(id int64) {
	c.subMu.Lock()
	fns := make([]func(int64), 0, len(c.reads))
	for _, fn := range c.reads {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

func (c *Channel) emitStatus(connected bool) {
	c.subMu.Lock()
	fns := make([]func(bool), 0, len(c.statuses))
	for _, fn := range c.statuses {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}
