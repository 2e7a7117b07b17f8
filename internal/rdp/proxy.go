package rdp

import (
	"context"
	"encoding/json"
)

// ActorProxy is the base for typed actor proxies. It ties one remote actor
// name to the connection that owns it. Concrete proxies embed it and layer
// typed request methods on top of request.
type ActorProxy struct {
	name string
	conn *Connection
}

// Name returns the remote actor name.
func (p *ActorProxy) Name() string {
	return p.name
}

// HandleEvent ignores events by default; proxies that expect events
// override it.
func (p *ActorProxy) HandleEvent(event string, body json.RawMessage) {}

// request sends a typed request to this actor and returns the raw reply.
func (p *ActorProxy) request(ctx context.Context, payload any) (json.RawMessage, error) {
	return p.conn.Request(ctx, p.name, payload)
}

// requestInto sends a typed request and decodes the reply into out.
func (p *ActorProxy) requestInto(ctx context.Context, payload, out any) error {
	reply, err := p.request(ctx, payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(reply, out)
}

// typeOnly is a request carrying nothing but its operation type.
type typeOnly struct {
	Type string `json:"type"`
}
