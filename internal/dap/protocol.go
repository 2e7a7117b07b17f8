package dap

import "encoding/json"

// ProtocolMessage is the base of every protocol message.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"` // "request", "response", "event"
}

// Request is an editor request.
type Request struct {
	ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response answers one request.
type Response struct {
	ProtocolMessage
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
	Command    string `json:"command"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// Event is an unsolicited notification to the editor.
type Event struct {
	ProtocolMessage
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// Capabilities announces the supported feature set.
type Capabilities struct {
	SupportsConfigurationDoneRequest bool `json:"supportsConfigurationDoneRequest,omitempty"`
	SupportsEvaluateForHovers        bool `json:"supportsEvaluateForHovers,omitempty"`
	SupportTerminateDebuggee         bool `json:"supportTerminateDebuggee,omitempty"`
}

// InitializeArguments are the arguments of the initialize request. The
// line and column bases decide how positions are translated on the wire.
type InitializeArguments struct {
	ClientID        string `json:"clientID,omitempty"`
	AdapterID       string `json:"adapterID"`
	LinesStartAt1   *bool  `json:"linesStartAt1,omitempty"`
	ColumnsStartAt1 *bool  `json:"columnsStartAt1,omitempty"`
}

// LaunchArguments configure launching a Firefox instance to debug.
type LaunchArguments struct {
	NoDebug bool `json:"noDebug,omitempty"`

	// URL or File names the page to open.
	URL  string `json:"url,omitempty"`
	File string `json:"file,omitempty"`

	// FirefoxExecutable overrides the discovered executable.
	FirefoxExecutable string `json:"firefoxExecutable,omitempty"`
	// Profile names an existing profile to copy; empty means a fresh
	// temporary profile.
	Profile string `json:"profile,omitempty"`
	// Port is the debugger server port, zero for the configured default.
	Port int `json:"port,omitempty"`
	// FirefoxArgs are extra command line arguments.
	FirefoxArgs []string `json:"firefoxArgs,omitempty"`
}

// AttachArguments configure attaching to a running Firefox instance.
type AttachArguments struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// Source identifies a debuggee source file.
type Source struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// SourceBreakpoint is one requested breakpoint line.
type SourceBreakpoint struct {
	Line      int    `json:"line"`
	Column    int    `json:"column,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// SetBreakpointsArguments replace the breakpoints of one source.
type SetBreakpointsArguments struct {
	Source      Source             `json:"source"`
	Breakpoints []SourceBreakpoint `json:"breakpoints,omitempty"`
	Lines       []int              `json:"lines,omitempty"`
}

// Breakpoint reports the state of one requested breakpoint.
type Breakpoint struct {
	Verified bool    `json:"verified"`
	Line     int     `json:"line,omitempty"`
	Source   *Source `json:"source,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// SetBreakpointsResponseBody mirrors the requested breakpoints in order.
type SetBreakpointsResponseBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

// Thread is one debuggee thread.
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ThreadsResponseBody lists the debuggee threads.
type ThreadsResponseBody struct {
	Threads []Thread `json:"threads"`
}

// StackTraceArguments ask for the call stack of a thread.
type StackTraceArguments struct {
	ThreadID   int `json:"threadId"`
	StartFrame int `json:"startFrame,omitempty"`
	Levels     int `json:"levels,omitempty"`
}

// StackFrame is one frame of a stack trace.
type StackFrame struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Source *Source `json:"source,omitempty"`
	Line   int     `json:"line"`
	Column int     `json:"column"`
}

// StackTraceResponseBody carries the frames, youngest first.
type StackTraceResponseBody struct {
	StackFrames []StackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames,omitempty"`
}

// ScopesArguments ask for the scopes of a frame.
type ScopesArguments struct {
	FrameID int `json:"frameId"`
}

// Scope is one scope of a frame.
type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
	Expensive          bool   `json:"expensive"`
}

// ScopesResponseBody carries the scopes, innermost first.
type ScopesResponseBody struct {
	Scopes []Scope `json:"scopes"`
}

// VariablesArguments ask for the contents of a variable container.
type VariablesArguments struct {
	VariablesReference int `json:"variablesReference"`
}

// Variable is one named value.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	VariablesReference int    `json:"variablesReference"`
}

// VariablesResponseBody carries the resolved variables.
type VariablesResponseBody struct {
	Variables []Variable `json:"variables"`
}

// EvaluateArguments ask to evaluate an expression in a frame.
type EvaluateArguments struct {
	Expression string `json:"expression"`
	FrameID    int    `json:"frameId,omitempty"`
	Context    string `json:"context,omitempty"`
}

// EvaluateResponseBody carries the evaluation result.
type EvaluateResponseBody struct {
	Result             string `json:"result"`
	VariablesReference int    `json:"variablesReference"`
}

// ContinueArguments resume a thread.
type ContinueArguments struct {
	ThreadID int `json:"threadId"`
}

// ContinueResponseBody reports the resume scope.
type ContinueResponseBody struct {
	AllThreadsContinued bool `json:"allThreadsContinued,omitempty"`
}

// NextArguments step over in a thread.
type NextArguments struct {
	ThreadID int `json:"threadId"`
}

// StepInArguments step into in a thread.
type StepInArguments struct {
	ThreadID int `json:"threadId"`
}

// StepOutArguments step out in a thread.
type StepOutArguments struct {
	ThreadID int `json:"threadId"`
}

// PauseArguments interrupt a thread.
type PauseArguments struct {
	ThreadID int `json:"threadId"`
}

// DisconnectArguments end the session.
type DisconnectArguments struct {
	Restart           bool `json:"restart,omitempty"`
	TerminateDebuggee bool `json:"terminateDebuggee,omitempty"`
}

// StoppedEventBody reports a user-visible pause.
type StoppedEventBody struct {
	Reason            string `json:"reason"`
	ThreadID          int    `json:"threadId,omitempty"`
	AllThreadsStopped bool   `json:"allThreadsStopped,omitempty"`
}

// ContinuedEventBody reports a user-visible resume.
type ContinuedEventBody struct {
	ThreadID int `json:"threadId"`
}

// ThreadEventBody reports a thread starting or exiting.
type ThreadEventBody struct {
	Reason   string `json:"reason"` // "started" or "exited"
	ThreadID int    `json:"threadId"`
}

// BreakpointEventBody reports a breakpoint changing state.
type BreakpointEventBody struct {
	Reason     string     `json:"reason"` // "changed", "new", "removed"
	Breakpoint Breakpoint `json:"breakpoint"`
}

// TerminatedEventBody reports the end of the debuggee.
type TerminatedEventBody struct{}

// OutputEventBody carries adapter diagnostics to the editor console.
type OutputEventBody struct {
	Category string `json:"category,omitempty"`
	Output   string `json:"output"`
}
