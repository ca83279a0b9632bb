package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/infrastructure/metrics"
)

type testServer struct {
	*httptest.Server
	connections int32
	authFrames  chan AuthFrame
	pongs       chan Frame
	handle      func(conn *websocket.Conn)
}

func newTestServer(t *testing.T, handle func(conn *websocket.Conn)) *testServer {
	t.Helper()
	ts := &testServer{
		authFrames: make(chan AuthFrame, 10),
		pongs:      make(chan Frame, 10),
		handle:     handle,
	}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		atomic.AddInt32(&ts.connections, 1)

		var auth AuthFrame
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		ts.authFrames <- auth
		conn.WriteJSON(Frame{Type: FrameAuthenticated, Status: "success"})

		if ts.handle != nil {
			ts.handle(conn)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notifications"
}

func readLoop(ts *testServer) func(conn *websocket.Conn) {
	return func(conn *websocket.Conn) {
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if f.Type == FramePong {
				ts.pongs <- f
			}
		}
	}
}

func TestChannel_AuthNotificationAndPing(t *testing.T) {
	var ts *testServer
	ts = newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Frame{Type: FrameNotification, Notification: &entities.Notification{ID: 7, Title: "Assigned"}})
		conn.WriteJSON(Frame{Type: FrameNotificationRead, NotificationID: 3})
		conn.WriteJSON(Frame{Type: FramePing})
		readLoop(ts)(conn)
	})

	ch := New(ts.wsURL(), Options{MaxAttempts: 5, Interval: 10 * time.Millisecond}, logger.NewNop())

	received := make(chan entities.Notification, 1)
	reads := make(chan int64, 1)
	statuses := make(chan bool, 4)
	ch.OnNotification(func(n entities.Notification) { received <- n })
	ch.OnNotificationRead(func(id int64) { reads <- id })
	ch.OnStatusChange(func(connected bool) { statuses <- connected })

	require.NoError(t, ch.Connect(context.Background(), "42"))
	defer ch.Disconnect()

	auth := <-ts.authFrames
	assert.Equal(t, float64(42), auth.UserID)
	assert.True(t, <-statuses)

	select {
	case n := <-received:
		assert.EqualValues(t, 7, n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	assert.EqualValues(t, 3, <-reads)

	select {
	case f := <-ts.pongs:
		assert.Equal(t, FramePong, f.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("pong not sent")
	}
	assert.True(t, ch.IsConnected())

	ch.Disconnect()
	assert.Equal(t, StateDisconnected, ch.State())
	assert.False(t, <-statuses)
}

func TestChannel_ReconnectsAfterDrop(t *testing.T) {
	var drops int32
	var ts *testServer
	ts = newTestServer(t, func(conn *websocket.Conn) {
		if atomic.AddInt32(&drops, 1) == 1 {
			return
		}
		readLoop(ts)(conn)
	})

	ch := New(ts.wsURL(), Options{MaxAttempts: 3, Interval: 10 * time.Millisecond}, logger.NewNop())
	require.NoError(t, ch.Connect(context.Background(), "u-1"))
	defer ch.Disconnect()

	first := <-ts.authFrames
	assert.Equal(t, "u-1", first.UserIDString())
	<-ts.authFrames

	require.Eventually(t, ch.IsConnected, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&ts.connections))
}

func TestChannel_GivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	m := metrics.New("test")
	ch := New(url, Options{MaxAttempts: 2, Interval: 5 * time.Millisecond, Metrics: m}, logger.NewNop())

	err := ch.Connect(context.Background(), "1")
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return ch.cancel == nil && ch.state == StateDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, ch.IsConnected())
	expected := `
# HELP test_push_reconnects_total Push channel reconnect attempts
# TYPE test_push_reconnects_total counter
test_push_reconnects_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_push_reconnects_total"))
}

func TestChannel_DisconnectStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ch := New(url, Options{MaxAttempts: 100, Interval: time.Hour}, logger.NewNop())
	assert.Error(t, ch.Connect(context.Background(), "1"))
	require.Eventually(t, func() bool { return ch.State() == StateBackoff }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		ch.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not cancel the backoff wait")
	}
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestNewAuthFrame(t *testing.T) {
	assert.Equal(t, int64(12), NewAuthFrame("12").UserID)
	assert.Equal(t, "abc", NewAuthFrame("abc").UserID)
	assert.Equal(t, "12", NewAuthFrame("12").UserIDString())
}
