package adapter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

// ThreadState describes the run state of a debuggee thread as tracked by
// the adapter. Transitions are driven by server events, not by requests:
// a resume request moves the state only once the resumed event arrives.
type ThreadState int

const (
	// ThreadRunning means the thread is executing debuggee code.
	ThreadRunning ThreadState = iota
	// ThreadPaused means the thread is stopped and can be inspected.
	ThreadPaused
	// ThreadExited means the thread is gone; every operation on it fails.
	ThreadExited
)

// String returns a human-readable state name.
func (s ThreadState) String() string {
	switch s {
	case ThreadRunning:
		return "running"
	case ThreadPaused:
		return "paused"
	case ThreadExited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ThreadAdapter wraps a thread actor proxy with the state machine and the
// mutual-exclusion primitive the rest of the adapter builds on. There is
// one ThreadAdapter per attached thread, registered in the session's
// thread registry for its whole lifetime.
type ThreadAdapter struct {
	Handle int

	proxy   *rdp.ThreadProxy
	session *Session
	log     *zap.Logger

	// workToken serializes RunOnPaused bodies and user-driven run-control
	// requests. Capacity one: holding the token is holding the lock.
	workToken chan struct{}

	mu          sync.Mutex
	state       ThreadState
	pauseReason string
	topFrame    *rdp.Frame
	// changed is closed and replaced on every state transition so that
	// waiters can observe transitions without polling.
	changed chan struct{}
	// internalPause marks an interrupt issued by RunOnPaused, whose
	// paused event must not be reported to the user. internalResume
	// marks the matching resume.
	internalPause  bool
	internalResume bool
}

func newThreadAdapter(session *Session, proxy *rdp.ThreadProxy) *ThreadAdapter {
	t := &ThreadAdapter{
		proxy:     proxy,
		session:   session,
		log:       session.log.Named("thread"),
		workToken: make(chan struct{}, 1),
		state:     ThreadRunning,
		changed:   make(chan struct{}),
	}
	proxy.OnPaused(t.handlePaused)
	proxy.OnResumed(t.handleResumed)
	proxy.OnExited(t.handleExited)
	return t
}

// Actor returns the thread actor name, used for logging and diagnostics.
func (t *ThreadAdapter) Actor() string { return t.proxy.Name() }

// State returns the current run state.
func (t *ThreadAdapter) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// PauseReason returns the server's reason for the current pause, or the
// empty string if the thread is not paused.
func (t *ThreadAdapter) PauseReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ThreadPaused {
		return ""
	}
	return t.pauseReason
}

// TopFrame returns the youngest frame reported by the current pause event,
// or nil if the thread is not paused.
func (t *ThreadAdapter) TopFrame() *rdp.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ThreadPaused {
		return nil
	}
	return t.topFrame
}

func (t *ThreadAdapter) handlePaused(evt rdp.PausedEvent) {
	t.mu.Lock()
	if t.state == ThreadExited {
		t.mu.Unlock()
		return
	}
	t.state = ThreadPaused
	t.pauseReason = evt.Why.Type
	t.topFrame = evt.Frame
	internal := t.internalPause
	t.internalPause = false
	t.broadcastLocked()
	t.mu.Unlock()

	t.log.Debug("thread paused",
		zap.String("actor", t.proxy.Name()),
		zap.String("reason", evt.Why.Type),
		zap.Bool("internal", internal))
	if !internal {
		t.session.notifyStopped(t, evt.Why.Type)
	}
}

func (t *ThreadAdapter) handleResumed() {
	t.mu.Lock()
	if t.state == ThreadExited {
		t.mu.Unlock()
		return
	}
	t.state = ThreadRunning
	t.pauseReason = ""
	t.topFrame = nil
	internal := t.internalResume
	t.internalResume = false
	t.broadcastLocked()
	t.mu.Unlock()

	t.log.Debug("thread resumed",
		zap.String("actor", t.proxy.Name()),
		zap.Bool("internal", internal))
	// Frame and variable handles die with the pause cycle, internal or
	// not. An internal cycle issues none, so the clear is a no-op there.
	t.session.clearPauseCycle()
	if !internal {
		t.session.notifyContinued(t)
	}
}

func (t *ThreadAdapter) handleExited() {
	t.mu.Lock()
	t.state = ThreadExited
	t.broadcastLocked()
	t.mu.Unlock()

	t.log.Info("thread exited", zap.String("actor", t.proxy.Name()))
	t.session.clearPauseCycle()
	t.session.notifyThreadExited(t)
}

func (t *ThreadAdapter) broadcastLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// waitPaused blocks until the thread reaches the paused state.
func (t *ThreadAdapter) waitPaused(ctx context.Context) error {
	for {
		t.mu.Lock()
		switch t.state {
		case ThreadPaused:
			t.mu.Unlock()
			return nil
		case ThreadExited:
			t.mu.Unlock()
			return ErrThreadExited
		}
		ch := t.changed
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *ThreadAdapter) acquire(ctx context.Context) error {
	select {
	case t.workToken <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ThreadAdapter) release() { <-t.workToken }

// RunOnPaused executes work while the thread is guaranteed to be paused.
// If the thread is running it is interrupted first and resumed afterwards;
// if it was already paused by the user it is left paused. The resume after
// an adapter-initiated interrupt happens exactly once, whether or not work
// fails. Concurrent callers are serialized: each work body sees the state
// its predecessors left behind.
func (t *ThreadAdapter) RunOnPaused(ctx context.Context, work func(ctx context.Context) error) error {
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()

	t.mu.Lock()
	state := t.state
	if state == ThreadRunning {
		t.internalPause = true
	}
	t.mu.Unlock()

	switch state {
	case ThreadExited:
		return ErrThreadExited
	case ThreadRunning:
		if err := t.proxy.Interrupt(ctx); err != nil {
			t.mu.Lock()
			t.internalPause = false
			t.mu.Unlock()
			return fmt.Errorf("interrupt thread %s: %w", t.proxy.Name(), err)
		}
		if err := t.waitPaused(ctx); err != nil {
			return fmt.Errorf("await pause of thread %s: %w", t.proxy.Name(), err)
		}
		defer func() {
			t.mu.Lock()
			t.internalResume = true
			t.mu.Unlock()
			if err := t.proxy.Resume(context.WithoutCancel(ctx)); err != nil {
				t.mu.Lock()
				t.internalResume = false
				t.mu.Unlock()
				t.log.Warn("resume after internal pause failed",
					zap.String("actor", t.proxy.Name()),
					zap.Error(err))
			}
		}()
	}

	return work(ctx)
}

// start attaches to the thread actor and resumes it. Threads pause on
// attach; that pause and the matching resume are bookkeeping, not user
// visible, so both are marked internal.
func (t *ThreadAdapter) start(ctx context.Context) error {
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()

	t.mu.Lock()
	t.internalPause = true
	t.mu.Unlock()
	if err := t.proxy.Attach(ctx); err != nil {
		t.mu.Lock()
		t.internalPause = false
		t.mu.Unlock()
		return err
	}
	if err := t.waitPaused(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.internalResume = true
	t.mu.Unlock()
	if err := t.proxy.Resume(ctx); err != nil {
		t.mu.Lock()
		t.internalResume = false
		t.mu.Unlock()
		return err
	}
	return nil
}

// Pause asks the server to interrupt the thread. The state change and the
// stopped notification follow from the paused event, not from the reply.
func (t *ThreadAdapter) Pause(ctx context.Context) error {
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()

	switch t.State() {
	case ThreadExited:
		return ErrThreadExited
	case ThreadPaused:
		return nil
	}
	if err := t.proxy.Interrupt(ctx); err != nil {
		return fmt.Errorf("interrupt thread %s: %w", t.proxy.Name(), err)
	}
	return nil
}

// Resume asks the server to resume the thread.
func (t *ThreadAdapter) Resume(ctx context.Context) error {
	return t.runControl(ctx, (*rdp.ThreadProxy).Resume)
}

// StepOver resumes the thread until the next statement in the same frame.
func (t *ThreadAdapter) StepOver(ctx context.Context) error {
	return t.runControl(ctx, (*rdp.ThreadProxy).StepOver)
}

// StepInto resumes the thread until the next statement, entering calls.
func (t *ThreadAdapter) StepInto(ctx context.Context) error {
	return t.runControl(ctx, (*rdp.ThreadProxy).StepInto)
}

// StepOut resumes the thread until the current frame returns.
func (t *ThreadAdapter) StepOut(ctx context.Context) error {
	return t.runControl(ctx, (*rdp.ThreadProxy).StepOut)
}

func (t *ThreadAdapter) runControl(ctx context.Context, op func(*rdp.ThreadProxy, context.Context) error) error {
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()

	switch t.State() {
	case ThreadExited:
		return ErrThreadExited
	case ThreadRunning:
		return ErrNotPaused
	}
	if err := op(t.proxy, ctx); err != nil {
		return fmt.Errorf("resume thread %s: %w", t.proxy.Name(), err)
	}
	return nil
}

// Frames fetches the call stack. The thread must be paused.
func (t *ThreadAdapter) Frames(ctx context.Context) ([]rdp.Frame, error) {
	switch t.State() {
	case ThreadExited:
		return nil, ErrThreadExited
	case ThreadRunning:
		return nil, ErrNotPaused
	}
	return t.proxy.Frames(ctx)
}

// Evaluate runs an expression in the context of the given frame actor and
// returns the resulting grip. The thread must be paused.
func (t *ThreadAdapter) Evaluate(ctx context.Context, expression, frameActor string) (rdp.Grip, error) {
	switch t.State() {
	case ThreadExited:
		return rdp.Grip{}, ErrThreadExited
	case ThreadRunning:
		return rdp.Grip{}, ErrNotPaused
	}
	return t.proxy.Evaluate(ctx, expression, frameActor)
}

// Detach detaches from the thread actor.
func (t *ThreadAdapter) Detach(ctx context.Context) error {
	return t.proxy.Detach(ctx)
}
