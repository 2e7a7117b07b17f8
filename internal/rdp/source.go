package rdp

import (
	"context"
	"fmt"
)

// SourceProxy represents one source actor.
type SourceProxy struct {
	ActorProxy
}

// SourceFor returns the memoized source proxy for an actor name.
func SourceFor(conn *Connection, name string) *SourceProxy {
	return conn.GetOrCreate(name, func() Actor {
		return &SourceProxy{ActorProxy: ActorProxy{name: name, conn: conn}}
	}).(*SourceProxy)
}

// SetBreakpoint sets a breakpoint at a line of this source. The reply
// names the new breakpoint actor and, when the server moved the breakpoint
// to the nearest breakable line, the actual location.
func (p *SourceProxy) SetBreakpoint(ctx context.Context, line int) (SetBreakpointReply, error) {
	payload := struct {
		Type     string   `json:"type"`
		Location Location `json:"location"`
	}{Type: "setBreakpoint", Location: Location{Line: line}}

	var reply SetBreakpointReply
	if err := p.requestInto(ctx, payload, &reply); err != nil {
		return SetBreakpointReply{}, fmt.Errorf("setBreakpoint %s:%d: %w", p.name, line, err)
	}
	if reply.Actor == "" {
		return SetBreakpointReply{}, fmt.Errorf("setBreakpoint %s:%d: no breakpoint actor in reply", p.name, line)
	}
	return reply, nil
}
