package rdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// threadEventHandlers stores thread event callbacks.
type threadEventHandlers struct {
	onPaused    func(PausedEvent)
	onResumed   func()
	onNewSource func(SourceForm)
	onExited    func()
}

// ThreadProxy represents one thread actor. Threads deliver the pause,
// resume, source and exit notifications the adapter's state machine runs
// on.
type ThreadProxy struct {
	ActorProxy

	mu       sync.Mutex
	handlers threadEventHandlers
}

// ThreadFor returns the memoized thread proxy for an actor name.
func ThreadFor(conn *Connection, name string) *ThreadProxy {
	return conn.GetOrCreate(name, func() Actor {
		return &ThreadProxy{ActorProxy: ActorProxy{name: name, conn: conn}}
	}).(*ThreadProxy)
}

// OnPaused sets the handler for pause notifications.
func (p *ThreadProxy) OnPaused(handler func(PausedEvent)) {
	p.mu.Lock()
	p.handlers.onPaused = handler
	p.mu.Unlock()
}

// OnResumed sets the handler for resume notifications.
func (p *ThreadProxy) OnResumed(handler func()) {
	p.mu.Lock()
	p.handlers.onResumed = handler
	p.mu.Unlock()
}

// OnNewSource sets the handler for source load notifications.
func (p *ThreadProxy) OnNewSource(handler func(SourceForm)) {
	p.mu.Lock()
	p.handlers.onNewSource = handler
	p.mu.Unlock()
}

// OnExited sets the handler for thread exit.
func (p *ThreadProxy) OnExited(handler func()) {
	p.mu.Lock()
	p.handlers.onExited = handler
	p.mu.Unlock()
}

// HandleEvent dispatches thread events.
func (p *ThreadProxy) HandleEvent(event string, body json.RawMessage) {
	p.mu.Lock()
	handlers := p.handlers
	p.mu.Unlock()

	switch event {
	case EventPaused:
		if handlers.onPaused != nil {
			var evt PausedEvent
			if err := json.Unmarshal(body, &evt); err == nil {
				handlers.onPaused(evt)
			}
		}
	case EventResumed:
		if handlers.onResumed != nil {
			handlers.onResumed()
		}
	case EventNewSource:
		if handlers.onNewSource != nil {
			var evt NewSourceEvent
			if err := json.Unmarshal(body, &evt); err == nil {
				handlers.onNewSource(evt.Source)
			}
		}
	case EventThreadExited:
		if handlers.onExited != nil {
			handlers.onExited()
		}
	}
}

// Attach attaches to the thread. The thread pauses on attach; the pause
// notification arrives as a paused event.
func (p *ThreadProxy) Attach(ctx context.Context) error {
	if _, err := p.request(ctx, typeOnly{Type: "attach"}); err != nil {
		return fmt.Errorf("attach thread %s: %w", p.name, err)
	}
	return nil
}

// Interrupt asks the thread to pause. The request is acknowledged
// immediately; the pause itself arrives as a paused event.
func (p *ThreadProxy) Interrupt(ctx context.Context) error {
	if _, err := p.request(ctx, typeOnly{Type: "interrupt"}); err != nil {
		return fmt.Errorf("interrupt thread %s: %w", p.name, err)
	}
	return nil
}

// Resume resumes the thread.
func (p *ThreadProxy) Resume(ctx context.Context) error {
	return p.resume(ctx, "")
}

// StepOver resumes the thread until the next line in the current frame.
func (p *ThreadProxy) StepOver(ctx context.Context) error {
	return p.resume(ctx, ResumeLimitNext)
}

// StepInto resumes the thread for a single step, entering calls.
func (p *ThreadProxy) StepInto(ctx context.Context) error {
	return p.resume(ctx, ResumeLimitStep)
}

// StepOut resumes the thread until the current frame returns.
func (p *ThreadProxy) StepOut(ctx context.Context) error {
	return p.resume(ctx, ResumeLimitFinish)
}

// resume issues a resume request, optionally bounded by a step limit.
func (p *ThreadProxy) resume(ctx context.Context, limit string) error {
	payload := struct {
		Type        string       `json:"type"`
		ResumeLimit *resumeLimit `json:"resumeLimit,omitempty"`
	}{Type: "resume"}
	if limit != "" {
		payload.ResumeLimit = &resumeLimit{Type: limit}
	}

	if _, err := p.request(ctx, payload); err != nil {
		return fmt.Errorf("resume thread %s: %w", p.name, err)
	}
	return nil
}

// Frames fetches the captured stack frames, top first.
func (p *ThreadProxy) Frames(ctx context.Context) ([]Frame, error) {
	var reply framesReply
	if err := p.requestInto(ctx, typeOnly{Type: "frames"}, &reply); err != nil {
		return nil, fmt.Errorf("frames of thread %s: %w", p.name, err)
	}
	return reply.Frames, nil
}

// Sources fetches the sources known to the thread.
func (p *ThreadProxy) Sources(ctx context.Context) ([]SourceForm, error) {
	var reply sourcesReply
	if err := p.requestInto(ctx, typeOnly{Type: "sources"}, &reply); err != nil {
		return nil, fmt.Errorf("sources of thread %s: %w", p.name, err)
	}
	return reply.Sources, nil
}

// Evaluate evaluates an expression in the context of a frame and returns
// the result grip.
func (p *ThreadProxy) Evaluate(ctx context.Context, expression, frameActor string) (Grip, error) {
	payload := struct {
		Type       string `json:"type"`
		Expression string `json:"expression"`
		Frame      string `json:"frame"`
	}{Type: "clientEvaluate", Expression: expression, Frame: frameActor}

	var reply evaluateReply
	if err := p.requestInto(ctx, payload, &reply); err != nil {
		return Grip{}, fmt.Errorf("evaluate in thread %s: %w", p.name, err)
	}
	return reply.Result, nil
}

// Detach detaches from the thread.
func (p *ThreadProxy) Detach(ctx context.Context) error {
	if _, err := p.request(ctx, typeOnly{Type: "detach"}); err != nil {
		return fmt.Errorf("detach thread %s: %w", p.name, err)
	}
	return nil
}
