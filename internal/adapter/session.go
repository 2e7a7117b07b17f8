package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
	"github.com/SkyN9ne/firefox-debugger/internal/registry"
)

// Handlers receives session notifications. All callbacks are optional and
// are invoked from the connection's receive goroutine; they must not block.
type Handlers struct {
	// OnStopped reports a user-visible pause of a thread.
	OnStopped func(threadHandle int, reason string)
	// OnContinued reports a user-visible resume of a thread.
	OnContinued func(threadHandle int)
	// OnThreadStarted reports a newly attached thread.
	OnThreadStarted func(threadHandle int)
	// OnThreadExited reports a thread that is gone.
	OnThreadExited func(threadHandle int)
	// OnBreakpointsBound reports breakpoints bound to a source that
	// loaded after they were requested.
	OnBreakpointsBound func(url string, breakpoints []BreakpointResult)
	// OnTerminated reports that the debuggee went away.
	OnTerminated func()
}

// BreakpointResult is the outcome of one requested breakpoint line.
type BreakpointResult struct {
	// Verified is true once a breakpoint actor exists on the server.
	Verified bool
	// Line is the actual line for verified breakpoints and the requested
	// line otherwise.
	Line int
}

// ThreadInfo names one attached thread.
type ThreadInfo struct {
	Handle int
	Name   string
}

// StackFrameInfo is one frame of a stack trace, ready for display.
type StackFrameInfo struct {
	Handle    int
	Name      string
	SourceURL string
	Line      int
	Column    int
}

// ScopeInfo is one scope of a frame, ready for display.
type ScopeInfo struct {
	Name            string
	VariablesHandle int
}

// bindWishTimeout bounds applying requested breakpoints to a source that
// loads later.
const bindWishTimeout = 10 * time.Second

// Session owns one debug connection and all adapter state derived from
// it: the thread, frame and variables registries, the per-URL source
// adapters, and the breakpoints requested for sources that have not
// loaded yet.
type Session struct {
	conn     *rdp.Connection
	log      *zap.Logger
	handlers Handlers

	threads   *registry.Registry[*ThreadAdapter]
	frames    *registry.Registry[*FrameAdapter]
	variables *registry.Registry[VariablesProvider]

	mu       sync.Mutex
	attached bool
	tab      *rdp.TabProxy
	sources  map[string]*SourceAdapter
	// wishes records the requested lines per URL. It is authoritative
	// across source reloads: a source that reappears after navigation
	// gets its breakpoints re-applied from here.
	wishes map[string][]int
	// objectActors are the object actors surfaced during the current
	// pause cycle, released when the cycle ends.
	objectActors []string
}

// NewSession creates a session over an established connection.
func NewSession(conn *rdp.Connection, log *zap.Logger, handlers Handlers) *Session {
	return &Session{
		conn:      conn,
		log:       log.Named("session"),
		handlers:  handlers,
		threads:   registry.New[*ThreadAdapter](),
		frames:    registry.New[*FrameAdapter](),
		variables: registry.New[VariablesProvider](),
		sources:   make(map[string]*SourceAdapter),
		wishes:    make(map[string][]int),
	}
}

// Attach performs the bootstrap handshake: await the server greeting,
// pick the selected tab, attach to it and to its thread, collect the
// already-loaded sources, and leave the thread running. It returns the
// handle of the attached thread.
func (s *Session) Attach(ctx context.Context) (int, error) {
	root := rdp.RootFor(s.conn)
	if err := root.AwaitHello(ctx); err != nil {
		return 0, fmt.Errorf("await server greeting: %w", err)
	}

	tabs, selected, err := root.ListTabs(ctx)
	if err != nil {
		return 0, err
	}
	if len(tabs) == 0 {
		return 0, ErrNoTab
	}
	if selected < 0 || selected >= len(tabs) {
		selected = 0
	}
	tab := rdp.TabFor(s.conn, tabs[selected].Actor)
	tab.OnNavigated(s.onNavigated)
	tab.OnDetached(s.onTabDetached)

	threadActor, err := tab.Attach(ctx)
	if err != nil {
		return 0, err
	}

	proxy := rdp.ThreadFor(s.conn, threadActor)
	thread := newThreadAdapter(s, proxy)
	thread.Handle = s.threads.Register(thread)
	proxy.OnNewSource(func(form rdp.SourceForm) {
		s.onNewSource(thread, form)
	})

	if err := thread.start(ctx); err != nil {
		s.threads.Unregister(thread.Handle)
		return 0, fmt.Errorf("start thread %s: %w", threadActor, err)
	}

	forms, err := proxy.Sources(ctx)
	if err != nil {
		s.log.Warn("initial source listing failed", zap.Error(err))
	}
	for _, form := range forms {
		s.onNewSource(thread, form)
	}

	s.mu.Lock()
	s.attached = true
	s.tab = tab
	s.mu.Unlock()

	s.log.Info("attached",
		zap.String("tab", tabs[selected].Actor),
		zap.String("thread", threadActor),
		zap.Int("sources", len(forms)))
	if s.handlers.OnThreadStarted != nil {
		s.handlers.OnThreadStarted(thread.Handle)
	}
	return thread.Handle, nil
}

// Threads lists the attached threads.
func (s *Session) Threads() []ThreadInfo {
	var infos []ThreadInfo
	for _, t := range s.threads.All() {
		infos = append(infos, ThreadInfo{Handle: t.Handle, Name: t.Actor()})
	}
	return infos
}

// Thread resolves a thread handle.
func (s *Session) Thread(handle int) (*ThreadAdapter, error) {
	t, ok := s.threads.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownThread, handle)
	}
	return t, nil
}

// SetBreakpoints replaces the breakpoints of the source identified by url
// with the requested lines. If the source has not loaded yet the request
// is remembered and applied when it appears; until then the breakpoints
// are reported unverified at their requested lines.
func (s *Session) SetBreakpoints(ctx context.Context, url string, lines []int) ([]BreakpointResult, error) {
	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return nil, ErrNotAttached
	}
	s.wishes[url] = append([]int(nil), lines...)
	src := s.sources[url]
	s.mu.Unlock()

	if src == nil {
		s.log.Debug("source not loaded yet, breakpoints deferred",
			zap.String("url", url), zap.Ints("lines", lines))
		results := make([]BreakpointResult, len(lines))
		for i, line := range lines {
			results[i] = BreakpointResult{Verified: false, Line: line}
		}
		return results, nil
	}

	bps, err := src.SetBreakpoints(ctx, lines)
	if err != nil {
		return nil, err
	}
	return breakpointResults(bps), nil
}

func breakpointResults(bps []*BreakpointAdapter) []BreakpointResult {
	results := make([]BreakpointResult, len(bps))
	for i, bp := range bps {
		results[i] = BreakpointResult{Verified: true, Line: bp.ActualLine}
	}
	return results
}

// StackTrace fetches the call stack of a paused thread and registers a
// frame handle per frame. Handles are valid until the thread resumes.
func (s *Session) StackTrace(ctx context.Context, threadHandle int) ([]StackFrameInfo, error) {
	thread, err := s.Thread(threadHandle)
	if err != nil {
		return nil, err
	}
	frames, err := thread.Frames(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]StackFrameInfo, 0, len(frames))
	for _, frame := range frames {
		f := newFrameAdapter(thread, frame)
		f.Handle = s.frames.Register(f)
		infos = append(infos, StackFrameInfo{
			Handle:    f.Handle,
			Name:      f.Name(),
			SourceURL: f.SourceURL(),
			Line:      f.Line(),
			Column:    f.Column(),
		})
	}
	return infos, nil
}

// Frame resolves a frame handle.
func (s *Session) Frame(handle int) (*FrameAdapter, error) {
	f, ok := s.frames.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, handle)
	}
	return f, nil
}

// Scopes returns the scope chain of a frame, innermost first.
func (s *Session) Scopes(frameHandle int) ([]ScopeInfo, error) {
	frame, err := s.Frame(frameHandle)
	if err != nil {
		return nil, err
	}
	scopes := frame.Scopes()
	infos := make([]ScopeInfo, 0, len(scopes))
	for _, scope := range scopes {
		infos = append(infos, ScopeInfo{Name: scope.Name(), VariablesHandle: scope.Handle})
	}
	return infos, nil
}

// Variables resolves a variables handle and returns its contents.
func (s *Session) Variables(ctx context.Context, handle int) ([]Variable, error) {
	provider, ok := s.variables.Lookup(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariables, handle)
	}
	return provider.Variables(ctx)
}

// Evaluate runs an expression in the context of a frame. A zero frame
// handle evaluates in the top frame of the first paused thread.
func (s *Session) Evaluate(ctx context.Context, frameHandle int, expression string) (Variable, error) {
	if frameHandle == 0 {
		for _, thread := range s.threads.All() {
			top := thread.TopFrame()
			if top == nil {
				continue
			}
			grip, err := thread.Evaluate(ctx, expression, top.Actor)
			if err != nil {
				return Variable{}, err
			}
			return s.gripToVariable("", grip), nil
		}
		return Variable{}, ErrNotPaused
	}

	frame, err := s.Frame(frameHandle)
	if err != nil {
		return Variable{}, err
	}
	return frame.Evaluate(ctx, expression)
}

// Disconnect detaches every thread and the tab and closes the connection.
// Detach failures are logged, not surfaced: the connection goes away
// regardless.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	tab := s.tab
	s.attached = false
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, thread := range s.threads.All() {
		thread := thread
		g.Go(func() error {
			if err := thread.Detach(gctx); err != nil {
				s.log.Warn("thread detach failed",
					zap.String("actor", thread.Actor()), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("detach wave failed", zap.Error(err))
	}
	if tab != nil {
		if err := tab.Detach(ctx); err != nil {
			s.log.Warn("tab detach failed", zap.Error(err))
		}
	}
	return s.conn.Close()
}

// registerVariables issues a handle for a variable container.
func (s *Session) registerVariables(provider VariablesProvider) int {
	handle := s.variables.Register(provider)
	switch p := provider.(type) {
	case *ScopeAdapter:
		p.Handle = handle
	case *ObjectContainer:
		p.Handle = handle
	}
	return handle
}

// gripToVariable converts a grip into a display variable. Object grips get
// a nested container handle and their actors are retained until the pause
// cycle ends.
func (s *Session) gripToVariable(name string, grip rdp.Grip) Variable {
	v := Variable{Name: name, Value: grip.String()}
	if grip.IsObject() {
		container := &ObjectContainer{
			session: s,
			proxy:   rdp.ObjectFor(s.conn, grip.Actor),
		}
		v.VariablesHandle = s.registerVariables(container)
		s.trackObjectActor(grip.Actor)
	}
	return v
}

// objectProperties expands an object grip into display variables.
func (s *Session) objectProperties(ctx context.Context, grip rdp.Grip) ([]Variable, error) {
	s.trackObjectActor(grip.Actor)
	proxy := rdp.ObjectFor(s.conn, grip.Actor)
	props, proto, err := proxy.PrototypeAndProperties(ctx)
	if err != nil {
		return nil, err
	}
	vars := make([]Variable, 0, len(props)+1)
	for _, name := range sortedNames(props) {
		vars = append(vars, s.gripToVariable(name, props[name].Value))
	}
	if proto != nil && proto.Kind != "null" {
		vars = append(vars, s.gripToVariable("__proto__", *proto))
	}
	return vars, nil
}

func (s *Session) trackObjectActor(actor string) {
	s.mu.Lock()
	s.objectActors = append(s.objectActors, actor)
	s.mu.Unlock()
}

// clearPauseCycle invalidates every frame and variables handle and
// releases the object actors surfaced during the pause. Frames and
// variables go together: a variable container must never outlive the
// frames it was reached through.
func (s *Session) clearPauseCycle() {
	s.frames.Clear()
	s.variables.Clear()

	s.mu.Lock()
	actors := s.objectActors
	s.objectActors = nil
	s.mu.Unlock()
	for _, actor := range actors {
		s.conn.Release(actor)
	}
}

// onNewSource registers a source adapter and applies any breakpoints that
// were requested before the source loaded.
func (s *Session) onNewSource(thread *ThreadAdapter, form rdp.SourceForm) {
	if form.URL == "" {
		return
	}
	src := newSourceAdapter(thread, form)

	s.mu.Lock()
	if prev, ok := s.sources[form.URL]; ok && prev.Actor() == form.Actor {
		s.mu.Unlock()
		return
	}
	s.sources[form.URL] = src
	lines, wished := s.wishes[form.URL]
	s.mu.Unlock()

	s.log.Debug("source loaded",
		zap.String("url", form.URL), zap.String("actor", form.Actor))
	if !wished {
		return
	}
	// Applied off the event goroutine: binding interrupts the thread and
	// waits for replies.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), bindWishTimeout)
		defer cancel()
		bps, err := src.SetBreakpoints(ctx, lines)
		if err != nil {
			s.log.Warn("deferred breakpoints failed",
				zap.String("url", form.URL), zap.Error(err))
			return
		}
		if s.handlers.OnBreakpointsBound != nil {
			s.handlers.OnBreakpointsBound(form.URL, breakpointResults(bps))
		}
	}()
}

// onNavigated drops per-source state when the tab starts navigating. The
// wishes survive: sources that reappear after the reload get their
// breakpoints back.
func (s *Session) onNavigated(evt rdp.TabNavigatedEvent) {
	if evt.State != "start" {
		return
	}
	s.log.Info("tab navigating", zap.String("url", evt.URL))
	s.mu.Lock()
	for _, src := range s.sources {
		src.drop()
	}
	s.sources = make(map[string]*SourceAdapter)
	s.mu.Unlock()
	s.clearPauseCycle()
}

func (s *Session) onTabDetached() {
	s.log.Info("tab detached, terminating")
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
	if s.handlers.OnTerminated != nil {
		s.handlers.OnTerminated()
	}
}

func (s *Session) notifyStopped(t *ThreadAdapter, reason string) {
	if s.handlers.OnStopped != nil {
		s.handlers.OnStopped(t.Handle, reason)
	}
}

func (s *Session) notifyContinued(t *ThreadAdapter) {
	if s.handlers.OnContinued != nil {
		s.handlers.OnContinued(t.Handle)
	}
}

func (s *Session) notifyThreadExited(t *ThreadAdapter) {
	s.threads.Unregister(t.Handle)
	if s.handlers.OnThreadExited != nil {
		s.handlers.OnThreadExited(t.Handle)
	}
}
