package rdp

import (
	"context"
	"fmt"
)

// BreakpointProxy represents one breakpoint actor.
type BreakpointProxy struct {
	ActorProxy
}

// BreakpointFor returns the memoized breakpoint proxy for an actor name.
func BreakpointFor(conn *Connection, name string) *BreakpointProxy {
	return conn.GetOrCreate(name, func() Actor {
		return &BreakpointProxy{ActorProxy: ActorProxy{name: name, conn: conn}}
	}).(*BreakpointProxy)
}

// Delete removes the breakpoint and releases its actor.
func (p *BreakpointProxy) Delete(ctx context.Context) error {
	if _, err := p.request(ctx, typeOnly{Type: "delete"}); err != nil {
		return fmt.Errorf("delete breakpoint %s: %w", p.name, err)
	}
	p.conn.Release(p.name)
	return nil
}
