package world

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
	"github.com/roelfdiedericks/gaiabot/internal/types"
)

// ClientConfig configures the runtime connection.
type ClientConfig struct {
	URL            string
	Token          string
	Username       string
	Insecure       bool
	ReconnectDelay time.Duration // initial backoff, doubled up to MaxReconnectDelay
	RequestTimeout time.Duration // per-request bound when ctx has no deadline
}

const (
	defaultReconnectDelay = 5 * time.Second
	maxReconnectDelay     = 5 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	eventBuffer           = 64
)

// Client is a persistent WebSocket session to the game-agent runtime.
// Requests are multiplexed over one connection and matched to responses by
// ID; events are delivered on Events(). Run owns the connection lifecycle
// and reconnects with exponential backoff.
type Client struct {
	cfg    ClientConfig
	events chan Event

	mu         sync.RWMutex
	conn       *websocket.Conn
	pending    map[string]chan Envelope
	connState  string // "disconnected", "connecting", "connected"
	connSince  time.Time
	reconnects int

	writeMu sync.Mutex
}

// NewClient creates a client. Call Run to connect.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		cfg:       cfg,
		events:    make(chan Event, eventBuffer),
		pending:   make(map[string]chan Envelope),
		connState: "disconnected",
	}
}

// Events returns the inbound event stream. Closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Username returns the agent's configured name.
func (c *Client) Username() string {
	return c.cfg.Username
}

// IsConnected reports whether a session is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Run connects and services the session until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	delay := c.cfg.ReconnectDelay
	L_debug("world: connect loop started", "url", c.cfg.URL, "reconnectDelay", delay, "maxDelay", maxReconnectDelay)

	for {
		if ctx.Err() != nil {
			L_debug("world: connect loop cancelled")
			return nil
		}

		conn, err := c.connect(ctx)
		if err != nil {
			L_warn("world: connection failed, retrying", "error", err, "delay", delay)
			MetricFailWithReason("world", "connect", "dial")
			select {
			case <-time.After(delay):
				delay *= 2
				if delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
			case <-ctx.Done():
				L_debug("world: connect loop cancelled during backoff")
				return nil
			}
			continue
		}

		delay = c.cfg.ReconnectDelay
		MetricSuccess("world", "connect")

		// Unblock the read loop on cancellation.
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()

		c.readLoop(ctx, conn)
		close(stop)
		c.teardown(conn)

		c.emit(ctx, Event{Kind: EventEnd, At: time.Now()})
		if ctx.Err() != nil {
			return nil
		}
		L_info("world: connection lost, reconnecting", "delay", delay)
	}
}

// connect dials, performs the HELLO/WELCOME handshake and installs the
// connection.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.setState("connecting")

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	if c.cfg.Insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-hosted runtimes with private certs
	}

	//nolint:bodyclose // WebSocket upgrade - response body handled by gorilla/websocket
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, http.Header{})
	if err != nil {
		c.setState("disconnected")
		return nil, fmt.Errorf("dial: %w", err)
	}

	hello := HelloMsg{
		Type:            TypeHello,
		ProtocolVersion: ProtocolVersion,
		Username:        c.cfg.Username,
		Token:           c.cfg.Token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		c.setState("disconnected")
		return nil, fmt.Errorf("send hello: %w", err)
	}

	var welcome WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		c.setState("disconnected")
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != TypeWelcome {
		conn.Close()
		c.setState("disconnected")
		if welcome.Error != nil {
			return nil, fmt.Errorf("session refused: %s: %s", welcome.Error.Code, welcome.Error.Message)
		}
		return nil, fmt.Errorf("unexpected message: %s (expected %s)", welcome.Type, TypeWelcome)
	}

	c.mu.Lock()
	c.conn = conn
	c.connState = "connected"
	c.connSince = time.Now()
	c.mu.Unlock()

	L_info("world: connected", "session", welcome.SessionID, "username", c.cfg.Username, "protocol", welcome.ProtocolVersion)
	return conn, nil
}

// readLoop routes responses to waiting callers and events to Events().
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				L_warn("world: websocket read error", "error", err)
			}
			return
		}

		switch env.Type {
		case TypeResponse:
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			if ok {
				delete(c.pending, env.ID)
			}
			c.mu.Unlock()
			if !ok {
				L_trace("world: response for unknown request", "id", env.ID)
				continue
			}
			ch <- env // buffered, one response per request

		case TypeEvent:
			if env.Event == nil {
				continue
			}
			c.emit(ctx, Event{
				Kind:   EventKind(env.Event.Kind),
				Sender: env.Event.Sender,
				Text:   env.Event.Text,
				At:     time.Now(),
			})

		case TypeError:
			msg := "unknown error"
			if env.Error != nil {
				msg = env.Error.Code + ": " + env.Error.Message
			}
			L_warn("world: runtime error", "error", msg)
			c.emit(ctx, Event{Kind: EventError, Text: msg, At: time.Now()})

		default:
			L_trace("world: ignoring frame", "type", env.Type)
		}
	}
}

// teardown drops the connection and fails every pending request.
func (c *Client) teardown(conn *websocket.Conn) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connState = "disconnected"
	c.reconnects++
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Client) setState(state string) {
	c.mu.Lock()
	c.connState = state
	c.mu.Unlock()
}

// call sends one request and waits for its response. out may be nil.
func (c *Client) call(ctx context.Context, op string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("world: encode %s: %w", op, err)
		}
		raw = b
	}

	id := uuid.NewString()
	ch := make(chan Envelope, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	c.writeMu.Lock()
	err := conn.WriteJSON(Envelope{ID: id, Type: TypeRequest, Op: op, Args: raw})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("world: send %s: %w", op, err)
	}

	select {
	case resp, ok := <-ch:
		MetricDuration("world", op, time.Since(start))
		if !ok {
			return ErrDisconnected
		}
		if resp.Error != nil {
			return &RemoteError{Op: op, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if resp.Success != nil && !*resp.Success {
			return &RemoteError{Op: op, Code: CodeInternal}
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("world: decode %s: %w", op, err)
			}
		}
		return nil
	case <-ctx.Done():
		MetricFailWithReason("world", op, "timeout")
		return fmt.Errorf("world: %s: %w", op, ctx.Err())
	}
}

// Player resolves a named actor.
func (c *Client) Player(ctx context.Context, name string) (Player, bool, error) {
	var res playerResult
	if err := c.call(ctx, OpPlayer, nameArgs{Name: name}, &res); err != nil {
		return Player{}, false, err
	}
	return res.Player, res.Found, nil
}

// Players lists visible actors other than the agent.
func (c *Client) Players(ctx context.Context) ([]Player, error) {
	var res playersResult
	if err := c.call(ctx, OpPlayers, nil, &res); err != nil {
		return nil, err
	}
	return res.Players, nil
}

// FindBlock locates the nearest block whose name contains match.
func (c *Client) FindBlock(ctx context.Context, match string, maxDistance int) (Block, bool, error) {
	var res blockResult
	if err := c.call(ctx, OpFindBlock, findBlockArgs{Match: match, MaxDistance: maxDistance}, &res); err != nil {
		return Block{}, false, err
	}
	return res.Block, res.Found, nil
}

// FindBlocks samples nearby non-air blocks.
func (c *Client) FindBlocks(ctx context.Context, maxDistance, count int) ([]Block, error) {
	var res blocksResult
	args := findBlocksArgs{MaxDistance: maxDistance, Count: count, Exclude: []string{"air"}}
	if err := c.call(ctx, OpFindBlocks, args, &res); err != nil {
		return nil, err
	}
	return res.Blocks, nil
}

// BlockAt returns the solid block at pos, if any.
func (c *Client) BlockAt(ctx context.Context, pos types.Vec3) (Block, bool, error) {
	var res blockResult
	if err := c.call(ctx, OpBlockAt, positionArgs{Position: pos}, &res); err != nil {
		return Block{}, false, err
	}
	return res.Block, res.Found, nil
}

// Collect walks to and breaks block, picking up the drop.
func (c *Client) Collect(ctx context.Context, block Block) error {
	return c.call(ctx, OpCollect, collectArgs{Block: block}, nil)
}

// Inventory lists held item stacks.
func (c *Client) Inventory(ctx context.Context) ([]Item, error) {
	var res inventoryResult
	if err := c.call(ctx, OpInventory, nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Equip moves item to the main hand.
func (c *Client) Equip(ctx context.Context, item string) error {
	return c.call(ctx, OpEquip, equipArgs{Item: item, Destination: "hand"}, nil)
}

// Place puts the held block at pos, supported by against.
func (c *Client) Place(ctx context.Context, against Block, pos types.Vec3) error {
	return c.call(ctx, OpPlace, placeArgs{Against: against, Position: pos}, nil)
}

// SetGoal replaces the active movement goal.
func (c *Client) SetGoal(ctx context.Context, goal Goal) error {
	return c.call(ctx, OpSetGoal, goalArgs{Goal: goal}, nil)
}

// ClearGoal stops all movement.
func (c *Client) ClearGoal(ctx context.Context) error {
	return c.call(ctx, OpClearGoal, nil, nil)
}

// Say sends a chat line.
func (c *Client) Say(ctx context.Context, text string) error {
	return c.call(ctx, OpChat, chatArgs{Text: text}, nil)
}
