package adapter

import (
	"context"
	"sync"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// Variable is one named value ready for display. Object values carry the
// handle of a nested container; leaves carry zero.
type Variable struct {
	Name            string
	Value           string
	VariablesHandle int
}

// VariablesProvider is a container of variables addressable by a handle:
// a scope or an expanded object. Providers resolve lazily and at most
// once; expanding the same container twice hits the server once.
type VariablesProvider interface {
	Variables(ctx context.Context) ([]Variable, error)
}

// ObjectContainer is the variable container behind an object grip. It is
// created when an object value is first surfaced and queries the object
// actor on first expansion.
type ObjectContainer struct {
	Handle int

	session *Session
	proxy   *rdp.ObjectProxy

	once sync.Once
	vars []Variable
	err  error
}

// Variables fetches the object's own properties and prototype, once.
func (o *ObjectContainer) Variables(ctx context.Context) ([]Variable, error) {
	o.once.Do(func() {
		o.vars, o.err = o.fetch(ctx)
	})
	return o.vars, o.err
}

func (o *ObjectContainer) fetch(ctx context.Context) ([]Variable, error) {
	props, proto, err := o.proxy.PrototypeAndProperties(ctx)
	if err != nil {
		return nil, err
	}

	vars := make([]Variable, 0, len(props)+1)
	for _, name := range sortedNames(props) {
		vars = append(vars, o.session.gripToVariable(name, props[name].Value))
	}
	if proto != nil && proto.Kind != "null" {
		vars = append(vars, o.session.gripToVariable("__proto__", *proto))
	}
	return vars, nil
}
