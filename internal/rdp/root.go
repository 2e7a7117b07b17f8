package rdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RootActorName is the well-known name of the root actor.
const RootActorName = "root"

// RootProxy represents the root actor, the entry point of every session.
// The server greets with a hello event on connect; ListTabs enumerates the
// debuggable tabs.
type RootProxy struct {
	ActorProxy

	hello     chan struct{}
	helloOnce sync.Once
}

// RootFor returns the memoized root proxy for a connection.
func RootFor(conn *Connection) *RootProxy {
	return conn.GetOrCreate(RootActorName, func() Actor {
		return &RootProxy{
			ActorProxy: ActorProxy{name: RootActorName, conn: conn},
			hello:      make(chan struct{}),
		}
	}).(*RootProxy)
}

// HandleEvent handles the root greeting.
func (p *RootProxy) HandleEvent(event string, body json.RawMessage) {
	if event == EventHello {
		p.helloOnce.Do(func() {
			close(p.hello)
		})
	}
}

// AwaitHello blocks until the server greeting arrives or the context or
// connection ends.
func (p *RootProxy) AwaitHello(ctx context.Context) error {
	select {
	case <-p.hello:
		return nil
	case <-p.conn.Done():
		return ErrConnectionClosed
	case <-ctx.Done():
		return fmt.Errorf("waiting for server greeting: %w", ctx.Err())
	}
}

// ListTabs returns the debuggable tabs and the index of the selected one.
func (p *RootProxy) ListTabs(ctx context.Context) ([]TabDescriptor, int, error) {
	var reply listTabsReply
	if err := p.requestInto(ctx, typeOnly{Type: "listTabs"}, &reply); err != nil {
		return nil, 0, fmt.Errorf("listTabs: %w", err)
	}
	return reply.Tabs, reply.Selected, nil
}
