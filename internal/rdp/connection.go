package rdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// Actor is implemented by proxies that receive unsolicited events.
type Actor interface {
	// Name returns the remote actor name the proxy represents.
	Name() string

	// HandleEvent delivers an unsolicited event from the remote actor.
	// Events are delivered in transport arrival order.
	HandleEvent(event string, body json.RawMessage)
}

// eventTypes are packet types that are always routed as unsolicited
// events, never consumed as replies.
var eventTypes = map[string]bool{
	EventHello:        true,
	EventPaused:       true,
	EventResumed:      true,
	EventNewSource:    true,
	EventTabNavigated: true,
	EventTabDetached:  true,
	EventThreadExited: true,
}

// pendingRequest tracks one outstanding request awaiting its reply.
type pendingRequest struct {
	done      chan struct{}
	closeOnce sync.Once
	reply     json.RawMessage
	err       error
}

// close safely closes the done channel.
func (p *pendingRequest) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// Connection owns the transport to the debugger server and multiplexes
// concurrent requests to many actors over it.
//
// Replies from an actor resolve that actor's pending requests in FIFO
// order. Packets carrying an unsolicited event type are routed to the
// proxy registered under the packet's "from" name; events for unknown
// actors are dropped with a warning.
type Connection struct {
	transport Transport
	log       *zap.Logger

	mu      sync.Mutex
	pending map[string][]*pendingRequest
	actors  map[string]Actor
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection creates a connection over the given transport and starts
// its receive loop.
func NewConnection(transport Transport, log *zap.Logger) *Connection {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Connection{
		transport: transport,
		log:       log.Named("rdp"),
		pending:   make(map[string][]*pendingRequest),
		actors:    make(map[string]Actor),
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Close closes the connection and the underlying transport. All pending
// requests fail with ErrConnectionClosed.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	err := c.transport.Close()
	c.failPending(ErrConnectionClosed)
	return err
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// GetOrCreate returns the memoized proxy for an actor name, constructing
// and registering one via factory on first use.
func (c *Connection) GetOrCreate(name string, factory func() Actor) Actor {
	c.mu.Lock()
	defer c.mu.Unlock()

	if actor, ok := c.actors[name]; ok {
		return actor
	}
	actor := factory()
	c.actors[name] = actor
	return actor
}

// Release forgets the proxy for an actor name. Subsequent events for the
// name are dropped and a later GetOrCreate constructs a fresh proxy.
func (c *Connection) Release(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.actors, name)
}

// Request sends a request to the named actor and blocks until the reply
// arrives, the context is done, or the connection closes. The payload must
// marshal to a JSON object carrying the request "type"; the actor address
// is stamped onto it here.
func (c *Connection) Request(ctx context.Context, actor string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	packet, err := sjson.SetBytes(body, "to", actor)
	if err != nil {
		return nil, fmt.Errorf("address request to %s: %w", actor, err)
	}

	pending := &pendingRequest{
		done: make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	c.pending[actor] = append(c.pending[actor], pending)
	c.mu.Unlock()

	if err := c.transport.Send(packet); err != nil {
		c.removePending(actor, pending)
		return nil, fmt.Errorf("send request to %s: %w", actor, err)
	}

	select {
	case <-ctx.Done():
		c.removePending(actor, pending)
		return nil, ctx.Err()
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		return pending.reply, nil
	}
}

// removePending drops a pending request that will not be resolved.
func (c *Connection) removePending(actor string, p *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.pending[actor]
	for i, q := range queue {
		if q == p {
			c.pending[actor] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(c.pending[actor]) == 0 {
		delete(c.pending, actor)
	}
}

// failPending fails every outstanding request with err.
func (c *Connection) failPending(err error) {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string][]*pendingRequest)
	c.mu.Unlock()

	for _, queue := range pending {
		for _, p := range queue {
			p.err = err
			p.close()
		}
	}
}

// receiveLoop reads packets until the transport fails or the connection
// closes.
func (c *Connection) receiveLoop() {
	for {
		packet, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Info("transport closed", zap.Error(err))
			}
			c.failPending(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.dispatch(packet)
	}
}

// dispatch routes one inbound packet to a pending request or an actor
// proxy.
func (c *Connection) dispatch(packet json.RawMessage) {
	from := gjson.GetBytes(packet, "from").String()
	if from == "" {
		c.log.Warn("dropping packet without source actor",
			zap.ByteString("packet", packet))
		return
	}

	typ := gjson.GetBytes(packet, "type").String()
	// The server greeting carries no type, only applicationType.
	if typ == "" && gjson.GetBytes(packet, "applicationType").Exists() {
		c.deliverEvent(from, EventHello, packet)
		return
	}
	if eventTypes[typ] {
		c.deliverEvent(from, typ, packet)
		return
	}

	c.mu.Lock()
	queue := c.pending[from]
	var pending *pendingRequest
	if len(queue) > 0 {
		pending = queue[0]
		c.pending[from] = queue[1:]
		if len(c.pending[from]) == 0 {
			delete(c.pending, from)
		}
	}
	c.mu.Unlock()

	if pending == nil {
		c.log.Warn("dropping reply with no pending request",
			zap.String("actor", from),
			zap.String("type", typ))
		return
	}

	if code := gjson.GetBytes(packet, "error").String(); code != "" {
		pending.err = &RemoteError{
			Actor:   from,
			Code:    code,
			Message: gjson.GetBytes(packet, "message").String(),
		}
	} else {
		pending.reply = packet
	}
	pending.close()
}

// deliverEvent hands an unsolicited event to the owning proxy.
func (c *Connection) deliverEvent(from, event string, body json.RawMessage) {
	c.mu.Lock()
	actor := c.actors[from]
	c.mu.Unlock()

	if actor == nil {
		c.log.Warn("dropping event for unknown actor",
			zap.String("actor", from),
			zap.String("event", event))
		return
	}

	actor.HandleEvent(event, body)
}
