package adapter

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// SourceAdapter tracks the breakpoint state of one source actor. Sources
// are keyed by URL at the session level; a navigation that reloads the
// same URL produces a new source actor and a fresh adapter.
type SourceAdapter struct {
	thread *ThreadAdapter
	proxy  *rdp.SourceProxy
	conn   *rdp.Connection
	url    string
	log    *zap.Logger

	// mu serializes reconciliations per source so every diff runs
	// against the state its predecessor left behind.
	mu      sync.Mutex
	current []*BreakpointAdapter
}

func newSourceAdapter(thread *ThreadAdapter, form rdp.SourceForm) *SourceAdapter {
	return &SourceAdapter{
		thread: thread,
		proxy:  rdp.SourceFor(thread.session.conn, form.Actor),
		conn:   thread.session.conn,
		url:    form.URL,
		log:    thread.session.log.Named("source").With(zap.String("url", form.URL)),
	}
}

// URL returns the source URL.
func (s *SourceAdapter) URL() string { return s.url }

// Actor returns the source actor name.
func (s *SourceAdapter) Actor() string { return s.proxy.Name() }

// SetBreakpoints replaces the breakpoints of this source with the
// requested lines. The mutation runs while the owning thread is paused;
// on a running thread this is a transparent interrupt-and-resume. The
// returned slice is indexed like lines. Setting the same set twice is a
// no-op on the wire.
//
// On a partial failure the surviving and successfully created breakpoints
// are retained so the next reconciliation diffs against reality.
func (s *SourceAdapter) SetBreakpoints(ctx context.Context, lines []int) ([]*BreakpointAdapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*BreakpointAdapter
	err := s.thread.RunOnPaused(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.reconcile(ctx, lines)
		return err
	})
	if err != nil {
		if result != nil {
			s.current = compactBreakpoints(result)
		}
		s.log.Warn("breakpoint reconciliation failed", zap.Error(err))
		return nil, err
	}
	s.current = result
	return result, nil
}

// drop forgets all breakpoint state without touching the server, used when
// the source actor itself went away.
func (s *SourceAdapter) drop() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func compactBreakpoints(bps []*BreakpointAdapter) []*BreakpointAdapter {
	out := bps[:0]
	for _, bp := range bps {
		if bp != nil {
			out = append(out, bp)
		}
	}
	return out
}
