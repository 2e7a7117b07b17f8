package adapter

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// BreakpointAdapter is one live breakpoint: the line the user asked for,
// the line the server actually placed it on, and the actor that owns it.
type BreakpointAdapter struct {
	// RequestedLine is the line the user asked for. It is the identity
	// used by reconciliation: a later request for the same line reuses
	// this breakpoint even if the server relocated it.
	RequestedLine int

	// ActualLine is where the server placed the breakpoint. Equal to
	// RequestedLine unless the server moved it to a breakable line.
	ActualLine int

	proxy *rdp.BreakpointProxy
}

// reconcile diffs the requested lines against the current breakpoints and
// issues the minimal set of deletions and creations: a breakpoint whose
// requested line is still wanted survives untouched, keeping its actor and
// its relocated position. Deletions and creations are issued concurrently;
// both waves are awaited before the result is returned. The result slice
// is indexed like requested.
//
// Duplicate requested lines consume surviving breakpoints one-for-one, so
// asking for the same line twice yields two distinct breakpoint actors.
func (s *SourceAdapter) reconcile(ctx context.Context, requested []int) ([]*BreakpointAdapter, error) {
	result := make([]*BreakpointAdapter, len(requested))
	consumed := make([]bool, len(requested))

	var stale []*BreakpointAdapter
	for _, bp := range s.current {
		kept := false
		for i, line := range requested {
			if !consumed[i] && line == bp.RequestedLine {
				consumed[i] = true
				result[i] = bp
				kept = true
				break
			}
		}
		if !kept {
			stale = append(stale, bp)
		}
	}

	deletes, dctx := errgroup.WithContext(ctx)
	for _, bp := range stale {
		bp := bp
		deletes.Go(func() error {
			if err := bp.proxy.Delete(dctx); err != nil {
				return fmt.Errorf("delete breakpoint at line %d: %w", bp.RequestedLine, err)
			}
			return nil
		})
	}

	sets, sctx := errgroup.WithContext(ctx)
	for i, line := range requested {
		if consumed[i] {
			continue
		}
		i, line := i, line
		sets.Go(func() error {
			reply, err := s.proxy.SetBreakpoint(sctx, line)
			if err != nil {
				return err
			}
			actual := line
			if reply.ActualLocation != nil {
				actual = reply.ActualLocation.Line
			}
			result[i] = &BreakpointAdapter{
				RequestedLine: line,
				ActualLine:    actual,
				proxy:         rdp.BreakpointFor(s.conn, reply.Actor),
			}
			return nil
		})
	}

	delErr := deletes.Wait()
	setErr := sets.Wait()
	if delErr != nil {
		return result, delErr
	}
	return result, setErr
}
