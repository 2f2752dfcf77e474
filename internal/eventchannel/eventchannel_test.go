package eventchannel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ecotracker-client/internal/credential"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeEventServer upgrades accepted connections and hands them to serve.
// A nil accept predicate accepts every dial; rejected dials fail the
// handshake with a 500 so they count as transport errors, not auth errors.
type fakeEventServer struct {
	srv   *httptest.Server
	dials atomic.Int32
}

func newFakeEventServer(t *testing.T, accept func(dial int32) bool, serve func(conn *websocket.Conn, dial int32)) *fakeEventServer {
	t.Helper()
	f := &fakeEventServer{}
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		n := f.dials.Add(1)
		if req.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if accept != nil && !accept(n) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		serve(conn, n)
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

// echoUntilClosed keeps the read side open so the connection stays up.
func echoUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newChannel(t *testing.T, url string, opts ...Option) (*Channel, *credential.MemStore) {
	t.Helper()
	store := credential.NewMemStore()
	require.NoError(t, store.Set("T"))
	c := New(url, store, zaptest.NewLogger(t), opts...)
	t.Cleanup(c.Disconnect)
	return c, store
}

func TestConnectWithoutCredentialRejected(t *testing.T) {
	c := New("http://localhost:1", credential.NewMemStore(), zaptest.NewLogger(t))

	err := c.Connect()
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, Disconnected, c.State(), "state unchanged on rejected transition")
}

func TestDeliveryOrderAndAlias(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, _ int32) {
		ready <- conn
		echoUntilClosed(conn)
	})

	c, _ := newChannel(t, f.srv.URL)
	require.NoError(t, c.Connect())
	conn := <-ready

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 8)
	record := func(tag string) Handler {
		return func(json.RawMessage) {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
			done <- struct{}{}
		}
	}
	c.On(EventGoalSet, record("first"))
	c.On(EventGoalSet, record("second"))

	// The alias name fans out to the same subscriber list.
	require.NoError(t, conn.WriteJSON(Envelope{Event: EventEmissionGoalSet}))
	<-done
	<-done
	require.NoError(t, conn.WriteJSON(Envelope{Event: EventGoalSet}))
	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "first", "second"}, order,
		"registration order, both names, every delivery")
}

func TestOffStopsDelivery(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, _ int32) {
		ready <- conn
		echoUntilClosed(conn)
	})

	c, _ := newChannel(t, f.srv.URL)
	require.NoError(t, c.Connect())
	conn := <-ready

	var removed atomic.Int32
	kept := make(chan struct{}, 4)
	sub := c.On(EventActivityTip, func(json.RawMessage) { removed.Add(1) })
	c.On(EventActivityTip, func(json.RawMessage) { kept <- struct{}{} })
	c.Off(sub)

	require.NoError(t, conn.WriteJSON(Envelope{Event: EventActivityTip}))
	<-kept
	assert.Zero(t, removed.Load(), "withdrawn subscription receives nothing")
}

func TestEmitPing(t *testing.T) {
	got := make(chan Envelope, 1)
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, _ int32) {
		var env Envelope
		if err := conn.ReadJSON(&env); err == nil {
			got <- env
		}
		_ = conn.Close()
	})

	c, _ := newChannel(t, f.srv.URL)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Ping())

	select {
	case env := <-got:
		assert.Equal(t, EventPing, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the ping")
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	c, _ := newChannel(t, "http://localhost:1")
	assert.Error(t, c.Ping())
}

func TestBackoffDelayWindows(t *testing.T) {
	c := New("", credential.NewMemStore(), zaptest.NewLogger(t))

	windows := []struct {
		attempt  int
		min, max time.Duration
	}{
		{1, 1000 * time.Millisecond, 2000 * time.Millisecond},
		{2, 2000 * time.Millisecond, 3000 * time.Millisecond},
		{3, 4000 * time.Millisecond, 5000 * time.Millisecond},
		{4, 8000 * time.Millisecond, 9000 * time.Millisecond},
		{5, 16000 * time.Millisecond, 17000 * time.Millisecond},
	}
	for _, w := range windows {
		for i := 0; i < 50; i++ {
			d := c.backoffDelay(w.attempt)
			assert.GreaterOrEqual(t, d, w.min, "attempt %d", w.attempt)
			assert.Less(t, d, w.max, "attempt %d", w.attempt)
		}
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	c := New("", credential.NewMemStore(), zaptest.NewLogger(t), WithBackoff(time.Second, 30*time.Second, 0))
	assert.Equal(t, 30*time.Second, c.backoffDelay(6))
	assert.Equal(t, 30*time.Second, c.backoffDelay(40), "large attempts must not overflow")
}

func TestReconnectCapThenTerminal(t *testing.T) {
	// The first dial is accepted and dropped without a close frame; every
	// later dial fails its handshake so the attempt counter never resets.
	f := newFakeEventServer(t,
		func(dial int32) bool { return dial == 1 },
		func(conn *websocket.Conn, _ int32) { _ = conn.Close() })

	c, _ := newChannel(t, f.srv.URL,
		WithMaxAttempts(3),
		WithBackoff(10*time.Millisecond, 100*time.Millisecond, 0))

	terminal := make(chan struct{}, 4)
	c.On(EventTerminal, func(json.RawMessage) { terminal <- struct{}{} })

	require.NoError(t, c.Connect())

	select {
	case <-terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("channel never went terminal")
	}
	assert.Equal(t, Disconnected, c.State())

	// 1 initial dial + 3 capped attempts, then nothing further.
	dialsAtTerminal := f.dials.Load()
	assert.Equal(t, int32(4), dialsAtTerminal)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, dialsAtTerminal, f.dials.Load(), "no attempts after terminal")

	select {
	case <-terminal:
		t.Fatal("terminal notification delivered more than once")
	default:
	}
}

func TestForceReconnectAfterTerminal(t *testing.T) {
	ready := make(chan struct{}, 8)
	f := newFakeEventServer(t,
		func(dial int32) bool { return dial != 2 },
		func(conn *websocket.Conn, dial int32) {
			if dial == 1 {
				_ = conn.Close()
				return
			}
			ready <- struct{}{}
			echoUntilClosed(conn)
		})

	c, _ := newChannel(t, f.srv.URL,
		WithMaxAttempts(1),
		WithBackoff(10*time.Millisecond, 100*time.Millisecond, 0))

	terminal := make(chan struct{}, 1)
	c.On(EventTerminal, func(json.RawMessage) { terminal <- struct{}{} })

	require.NoError(t, c.Connect())
	select {
	case <-terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("channel never went terminal")
	}

	require.NoError(t, c.ForceReconnect())
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("force-reconnect never connected")
	}
	assert.Equal(t, Connected, c.State())
}

func TestConnectCancelsPendingReconnect(t *testing.T) {
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, dial int32) {
		if dial == 1 {
			_ = conn.Close()
			return
		}
		echoUntilClosed(conn)
	})

	c, _ := newChannel(t, f.srv.URL,
		WithMaxAttempts(5),
		WithBackoff(400*time.Millisecond, time.Second, 0))

	require.NoError(t, c.Connect())

	// The drop arms a 400 ms reconnect timer; dial again before it fires.
	require.Eventually(t, func() bool { return c.State() == Reconnecting },
		2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Connect())
	require.Equal(t, Connected, c.State())

	// The superseded timer must not produce a second live dial.
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, int32(2), f.dials.Load(), "a pending reconnect must not dial while connected")
	assert.Equal(t, Connected, c.State())
}

func TestCredentialClearedMidReconnect(t *testing.T) {
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, _ int32) {
		_ = conn.Close()
	})

	c, store := newChannel(t, f.srv.URL,
		WithMaxAttempts(5),
		WithBackoff(150*time.Millisecond, time.Second, 0))

	require.NoError(t, c.Connect())

	// The first drop schedules a reconnect; remove the credential before
	// the timer fires.
	require.Eventually(t, func() bool { return c.State() == Reconnecting },
		2*time.Second, 10*time.Millisecond)
	require.NoError(t, store.Clear())

	require.Eventually(t, func() bool { return c.State() == Disconnected },
		2*time.Second, 10*time.Millisecond)

	dials := f.dials.Load()
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, dials, f.dials.Load(), "no connect attempt without a credential")
}

func TestServerShutdownIsTerminal(t *testing.T) {
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, _ int32) {
		_ = conn.WriteJSON(Envelope{Event: EventServerShutdown})
		echoUntilClosed(conn)
	})

	c, _ := newChannel(t, f.srv.URL,
		WithBackoff(10*time.Millisecond, 100*time.Millisecond, 0))

	shutdown := make(chan struct{}, 1)
	terminal := make(chan struct{}, 1)
	c.On(EventServerShutdown, func(json.RawMessage) { shutdown <- struct{}{} })
	c.On(EventTerminal, func(json.RawMessage) { terminal <- struct{}{} })

	require.NoError(t, c.Connect())
	<-shutdown
	select {
	case <-terminal:
	case <-time.After(2 * time.Second):
		t.Fatal("server shutdown did not go terminal")
	}

	dials := f.dials.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dials, f.dials.Load(), "no auto-reconnect after server shutdown")
}

func TestAuthRejectionOnConnectIsTerminal(t *testing.T) {
	r := chi.NewRouter()
	var dials atomic.Int32
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, _ := newChannel(t, srv.URL, WithBackoff(10*time.Millisecond, 100*time.Millisecond, 0))

	err := c.Connect()
	assert.Error(t, err)
	assert.Equal(t, Disconnected, c.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load(), "auth failure on connect must not retry")
}

func TestSubscriptionsSurviveReconnect(t *testing.T) {
	f := newFakeEventServer(t, nil, func(conn *websocket.Conn, dial int32) {
		if dial == 1 {
			_ = conn.Close()
			return
		}
		_ = conn.WriteJSON(Envelope{Event: EventActivityTip})
		echoUntilClosed(conn)
	})

	c, _ := newChannel(t, f.srv.URL,
		WithMaxAttempts(5),
		WithBackoff(10*time.Millisecond, 100*time.Millisecond, 0))

	got := make(chan struct{}, 1)
	c.On(EventActivityTip, func(json.RawMessage) { got <- struct{}{} })

	require.NoError(t, c.Connect())
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not survive the reconnect")
	}
	assert.Equal(t, Connected, c.State())
	assert.Equal(t, int32(2), f.dials.Load())
}
