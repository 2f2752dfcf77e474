// Package eventchannel maintains the persistent authenticated connection to
// the event server and fans named events out to subscribers.
//
// One Channel owns one socket. Subscribers attach and detach handlers; they
// never touch the connection. Subscriptions survive reconnects and are not
// re-registered per connection.
package eventchannel

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ecotracker-client/internal/apperror"
	"ecotracker-client/internal/credential"
)

// Incoming event names.
const (
	EventActivityTip      = "activity_tip"
	EventWeeklyInsights   = "weekly_insights"
	EventGoalSet          = "goal_set"
	EventEmissionGoalSet  = "emission_goal_set" // alias of goal_set
	EventGoalMilestone    = "goal_milestone"
	EventGoalStatusUpdate = "goal_status_update"
	EventTrendAlert       = "trend_alert"
	EventServerShutdown   = "server_shutdown"
	EventServerError      = "server_error"
	EventPong             = "pong"

	// EventTerminal is synthesized locally when the channel gives up:
	// reconnect cap exhausted or server-initiated shutdown. Delivered once
	// per epoch.
	EventTerminal = "channel_terminal"

	// EventPing is the outgoing keepalive.
	EventPing = "ping"
)

// aliases maps secondary event names onto their canonical subscriber list.
var aliases = map[string]string{
	EventEmissionGoalSet: EventGoalSet,
}

// State of the connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// ErrNoCredential rejects a connect attempted without a stored credential.
var ErrNoCredential = errors.New("no credential for event channel")

// Envelope is the wire frame: a named event with a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw payload of one event.
type Handler func(data json.RawMessage)

// Subscription identifies one registered handler for Off.
type Subscription struct {
	id    uuid.UUID
	event string
}

type subscriber struct {
	id uuid.UUID
	fn Handler
}

// Option configures a Channel.
type Option func(*Channel)

// WithMaxAttempts caps reconnect attempts per connection epoch.
func WithMaxAttempts(n int) Option {
	return func(c *Channel) { c.maxAttempts = n }
}

// WithBackoff overrides the reconnect delay parameters.
func WithBackoff(base, max, jitter time.Duration) Option {
	return func(c *Channel) { c.baseDelay, c.maxDelay, c.jitter = base, max, jitter }
}

// Channel is the event channel. Construct with New; hosts that want the
// process-wide instance use Shared.
type Channel struct {
	url   string
	store credential.Store
	log   *zap.Logger

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      time.Duration

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	writeMu  sync.Mutex
	subs     map[string][]subscriber
	attempts int
	epoch    int
	timer    *time.Timer
	terminal bool
}

// New creates a Channel against the event server URL. The URL may use an
// http(s) scheme; it is rewritten to ws(s) on dial.
func New(url string, store credential.Store, log *zap.Logger, opts ...Option) *Channel {
	c := &Channel{
		url:         url,
		store:       store,
		log:         log,
		maxAttempts: 5,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		jitter:      time.Second,
		subs:        make(map[string][]subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	shared     *Channel
	sharedOnce sync.Once
)

// Shared returns the process-wide Channel, creating it on first use.
func Shared(url string, store credential.Store, log *zap.Logger) *Channel {
	sharedOnce.Do(func() {
		shared = New(url, store, log)
	})
	return shared
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the socket. Without a credential the transition is
// rejected and the state is unchanged. Connecting while connected is a
// no-op; connecting while a reconnect is pending cancels the pending
// attempt and dials now.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return nil
	}
	token, ok := c.store.Get()
	if !ok {
		c.mu.Unlock()
		c.log.Warn("connect rejected: no credential")
		return ErrNoCredential
	}
	// One dial per epoch. A pending reconnect timer belongs to the
	// superseded epoch and must never produce a second dial.
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.attempts = 0
	c.epoch++
	c.state = Connecting
	c.terminal = false
	epoch := c.epoch
	c.mu.Unlock()

	return c.dial(token, epoch)
}

// dial performs one connect attempt. Auth rejections are terminal; other
// failures feed the reconnect policy.
func (c *Channel) dial(token string, epoch int) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(c.url), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			c.log.Error("event server rejected credential", zap.Int("status", status))
			c.giveUp(epoch)
			return apperror.ErrAuthExpired
		}
		c.log.Warn("event server dial failed", zap.Int("status", status), zap.Error(err))
		c.scheduleReconnect(epoch)
		return err
	}

	c.mu.Lock()
	if epoch != c.epoch {
		// Disconnected while the dial was in flight.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = Connected
	c.attempts = 0
	c.mu.Unlock()

	c.log.Info("event channel connected", zap.String("url", c.url))
	go c.readLoop(conn, epoch)
	return nil
}

// readLoop delivers incoming envelopes until the transport drops.
func (c *Channel) readLoop(conn *websocket.Conn, epoch int) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.handleDrop(err, epoch)
			return
		}
		if env.Event == EventServerShutdown {
			c.log.Info("server initiated shutdown")
			c.dispatch(env)
			c.giveUp(epoch)
			return
		}
		c.dispatch(env)
	}
}

// handleDrop classifies a transport drop: a server-sent normal close is
// terminal, everything else reconnects.
func (c *Channel) handleDrop(err error, epoch int) {
	c.mu.Lock()
	if epoch != c.epoch {
		// Deliberate local disconnect already handled the state.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.Info("server closed the connection", zap.Error(err))
		c.giveUp(epoch)
		return
	}
	c.log.Warn("event channel dropped", zap.Error(err))
	c.scheduleReconnect(epoch)
}

// scheduleReconnect arms the next attempt, or gives up past the cap.
// Attempts are strictly serialized: one timer, one in-flight dial.
func (c *Channel) scheduleReconnect(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.maxAttempts {
		c.mu.Unlock()
		c.giveUp(epoch)
		return
	}
	c.attempts++
	attempt := c.attempts
	c.state = Reconnecting
	delay := c.backoffDelay(attempt)
	c.timer = time.AfterFunc(delay, func() { c.retry(epoch) })
	c.mu.Unlock()

	c.log.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
}

// retry runs when a reconnect timer fires. The credential is re-read from
// storage; if it is gone, reconnection is abandoned.
func (c *Channel) retry(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	token, ok := c.store.Get()
	if !ok {
		c.log.Warn("credential gone, abandoning reconnection")
		c.mu.Lock()
		if epoch == c.epoch {
			c.state = Disconnected
			c.attempts = 0
		}
		c.mu.Unlock()
		return
	}
	_ = c.dial(token, epoch)
}

// backoffDelay computes the delay before the given 1-based attempt:
// min(base·2ⁿ⁻¹, max) plus uniform jitter.
func (c *Channel) backoffDelay(attempt int) time.Duration {
	d := c.baseDelay << (attempt - 1)
	if d > c.maxDelay || d <= 0 {
		d = c.maxDelay
	}
	if c.jitter > 0 {
		d += time.Duration(rand.Int63n(int64(c.jitter)))
	}
	return d
}

// giveUp puts the channel in its terminal resting state and notifies
// subscribers once. Only ForceReconnect resumes from here.
func (c *Channel) giveUp(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch || c.terminal {
		c.mu.Unlock()
		return
	}
	c.terminal = true
	c.state = Disconnected
	c.attempts = 0
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.epoch++
	c.mu.Unlock()

	c.log.Error("event channel terminal", zap.Error(apperror.ErrChannelTerminal))
	c.dispatch(Envelope{Event: EventTerminal})
}

// Disconnect releases the socket and resets the failure counter. It never
// emits a terminal notification.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.state = Disconnected
	c.attempts = 0
	c.terminal = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	c.log.Info("event channel disconnected")
}

// ForceReconnect starts a fresh connection epoch after the channel went
// terminal.
func (c *Channel) ForceReconnect() error {
	c.Disconnect()
	return c.Connect()
}

// On registers a handler for an event name. Handlers for the same name run
// in registration order, synchronously from the delivery loop.
func (c *Channel) On(event string, fn Handler) Subscription {
	name := canonical(event)
	sub := Subscription{id: uuid.New(), event: name}
	c.mu.Lock()
	c.subs[name] = append(c.subs[name], subscriber{id: sub.id, fn: fn})
	c.mu.Unlock()
	return sub
}

// Off withdraws a subscription.
func (c *Channel) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[sub.event]
	for i, s := range list {
		if s.id == sub.id {
			c.subs[sub.event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit sends a named event to the server.
func (c *Channel) Emit(event string, data any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()
	if !connected || conn == nil {
		c.log.Warn("not connected, cannot emit", zap.String("event", event))
		return errors.New("event channel not connected")
	}

	env := Envelope{Event: event}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		env.Data = payload
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

// Ping sends the outgoing keepalive.
func (c *Channel) Ping() error {
	return c.Emit(EventPing, nil)
}

func (c *Channel) dispatch(env Envelope) {
	name := canonical(env.Event)
	c.mu.Lock()
	list := make([]subscriber, len(c.subs[name]))
	copy(list, c.subs[name])
	c.mu.Unlock()

	for _, s := range list {
		s.fn(env.Data)
	}
}

func canonical(event string) string {
	if name, ok := aliases[event]; ok {
		return name
	}
	return event
}

func wsURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}
