package rdp

import (
	"context"
	"fmt"
)

// ObjectProxy represents one object grip actor. Object actors live for the
// pause cycle that produced their grip; the adapter releases them on
// resume.
type ObjectProxy struct {
	ActorProxy
}

// ObjectFor returns the memoized object proxy for a grip's actor name.
func ObjectFor(conn *Connection, name string) *ObjectProxy {
	return conn.GetOrCreate(name, func() Actor {
		return &ObjectProxy{ActorProxy: ActorProxy{name: name, conn: conn}}
	}).(*ObjectProxy)
}

// PrototypeAndProperties fetches the object's own properties and its
// prototype grip.
func (p *ObjectProxy) PrototypeAndProperties(ctx context.Context) (map[string]PropertyDescriptor, *Grip, error) {
	var reply prototypeAndPropertiesReply
	if err := p.requestInto(ctx, typeOnly{Type: "prototypeAndProperties"}, &reply); err != nil {
		return nil, nil, fmt.Errorf("properties of %s: %w", p.name, err)
	}
	return reply.OwnProperties, reply.Prototype, nil
}
