package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// ScopeAdapter presents one lexical environment of a paused frame as a
// variable container. Its variables handle lives for the pause cycle.
type ScopeAdapter struct {
	Handle int

	thread *ThreadAdapter
	env    rdp.Environment
	// this is the frame's receiver, surfaced in the innermost scope only.
	this *rdp.Grip

	once sync.Once
	vars []Variable
	err  error
}

// buildScopeChain walks the frame's environment chain and returns one
// scope per environment, innermost first. The innermost scope carries the
// frame's receiver as a synthetic "this" variable.
func buildScopeChain(thread *ThreadAdapter, frame rdp.Frame) []*ScopeAdapter {
	var scopes []*ScopeAdapter
	for env := frame.Environment; env != nil; env = env.Parent {
		scope := &ScopeAdapter{thread: thread, env: *env}
		if len(scopes) == 0 {
			scope.this = frame.This
		}
		thread.session.registerVariables(scope)
		scopes = append(scopes, scope)
	}
	return scopes
}

// Name returns the display name of the scope.
func (s *ScopeAdapter) Name() string {
	switch s.env.Type {
	case rdp.EnvironmentTypeFunction:
		if s.env.FunctionName != "" {
			return "Local: " + s.env.FunctionName
		}
		return "Local"
	case rdp.EnvironmentTypeBlock:
		return "Block"
	case rdp.EnvironmentTypeWith:
		return "With"
	case rdp.EnvironmentTypeObject:
		if s.env.Parent == nil {
			return "Global"
		}
		return "Object"
	default:
		return "Scope"
	}
}

// Variables resolves the scope's bindings. Function and block scopes are
// resolved from the bindings delivered with the frame; with and object
// scopes query their backing object actor. The resolution runs at most
// once; later calls return the memoized result.
func (s *ScopeAdapter) Variables(ctx context.Context) ([]Variable, error) {
	s.once.Do(func() {
		s.vars, s.err = s.fetch(ctx)
	})
	return s.vars, s.err
}

func (s *ScopeAdapter) fetch(ctx context.Context) ([]Variable, error) {
	var vars []Variable
	if s.this != nil {
		vars = append(vars, s.thread.session.gripToVariable("this", *s.this))
	}

	switch s.env.Type {
	case rdp.EnvironmentTypeWith, rdp.EnvironmentTypeObject:
		if s.env.Object == nil || !s.env.Object.IsObject() {
			return vars, nil
		}
		props, err := s.thread.session.objectProperties(ctx, *s.env.Object)
		if err != nil {
			return nil, err
		}
		return append(vars, props...), nil
	}

	if s.env.Bindings == nil {
		return vars, nil
	}
	for _, arg := range s.env.Bindings.Arguments {
		for _, name := range sortedNames(arg) {
			vars = append(vars, s.thread.session.gripToVariable(name, arg[name].Value))
		}
	}
	for _, name := range sortedNames(s.env.Bindings.Variables) {
		vars = append(vars, s.thread.session.gripToVariable(name, s.env.Bindings.Variables[name].Value))
	}
	return vars, nil
}

func sortedNames(descriptors map[string]rdp.PropertyDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
