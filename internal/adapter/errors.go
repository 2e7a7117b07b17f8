package adapter

import "errors"

// Sentinel errors surfaced by session and thread operations. Callers match
// with errors.Is; the front-protocol layer maps them to request failures.
var (
	// ErrUnknownThread indicates a thread handle that is not registered,
	// either because it never existed or because the thread exited.
	ErrUnknownThread = errors.New("adapter: unknown thread handle")

	// ErrUnknownFrame indicates a frame handle from a previous pause cycle
	// or one that was never issued.
	ErrUnknownFrame = errors.New("adapter: unknown frame handle")

	// ErrUnknownVariables indicates a variables handle from a previous
	// pause cycle or one that was never issued.
	ErrUnknownVariables = errors.New("adapter: unknown variables handle")

	// ErrNotPaused is returned by operations that require a paused thread,
	// such as stack traces and stepping.
	ErrNotPaused = errors.New("adapter: thread is not paused")

	// ErrThreadExited is returned when an operation targets a thread whose
	// exit notification has already been received.
	ErrThreadExited = errors.New("adapter: thread has exited")

	// ErrNoTab indicates that the server reported no debuggable tabs
	// during the attach bootstrap.
	ErrNoTab = errors.New("adapter: no debuggable tab available")

	// ErrNotAttached indicates a session operation before Attach succeeded.
	ErrNotAttached = errors.New("adapter: session is not attached")
)
