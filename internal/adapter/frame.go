package adapter

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// FrameAdapter is one stack frame of a paused thread. Its handle, and the
// handles of every scope reachable from it, are valid for the current
// pause cycle only.
type FrameAdapter struct {
	Handle int

	thread *ThreadAdapter
	frame  rdp.Frame

	scopesOnce sync.Once
	scopes     []*ScopeAdapter
}

func newFrameAdapter(thread *ThreadAdapter, frame rdp.Frame) *FrameAdapter {
	return &FrameAdapter{thread: thread, frame: frame}
}

// Actor returns the frame actor name.
func (f *FrameAdapter) Actor() string { return f.frame.Actor }

// Name returns the display name for the frame. Named calls show their
// function name; every other frame kind gets a bracketed placeholder.
func (f *FrameAdapter) Name() string {
	switch f.frame.Type {
	case rdp.FrameTypeCall:
		if f.frame.DisplayName != "" {
			return f.frame.DisplayName
		}
		return "[anonymous function]"
	case rdp.FrameTypeGlobal:
		return "[Global]"
	case rdp.FrameTypeEval, rdp.FrameTypeClientEvaluate:
		return "[eval]"
	case rdp.FrameTypeWasmCall:
		return "[wasm]"
	default:
		f.thread.log.Warn("unrecognized frame type", zap.String("type", f.frame.Type))
		return "[" + f.frame.Type + "]"
	}
}

// SourceURL returns the URL of the source the frame executes in, or the
// empty string when the frame has no source location.
func (f *FrameAdapter) SourceURL() string {
	if f.frame.Where.Source == nil {
		return ""
	}
	return f.frame.Where.Source.URL
}

// Line returns the current line of the frame.
func (f *FrameAdapter) Line() int { return f.frame.Where.Line }

// Column returns the current column of the frame.
func (f *FrameAdapter) Column() int { return f.frame.Where.Column }

// Scopes materializes the scope chain of the frame, innermost first. The
// chain is built once per frame; repeated requests return the same scope
// adapters and therefore the same variables handles.
func (f *FrameAdapter) Scopes() []*ScopeAdapter {
	f.scopesOnce.Do(func() {
		f.scopes = buildScopeChain(f.thread, f.frame)
	})
	return f.scopes
}

// Evaluate runs an expression in this frame and converts the result.
func (f *FrameAdapter) Evaluate(ctx context.Context, expression string) (Variable, error) {
	grip, err := f.thread.Evaluate(ctx, expression, f.frame.Actor)
	if err != nil {
		return Variable{}, err
	}
	return f.thread.session.gripToVariable("", grip), nil
}
