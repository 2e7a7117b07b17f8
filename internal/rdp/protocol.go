package rdp

import (
	"encoding/json"
	"fmt"
)

// SourceForm describes a source known to a thread.
type SourceForm struct {
	// Actor is the source actor name.
	Actor string `json:"actor"`

	// URL is the source identity as seen by the debuggee.
	URL string `json:"url"`

	// IsBlackBoxed indicates the source is excluded from debugging.
	IsBlackBoxed bool `json:"isBlackBoxed,omitempty"`
}

// Location is a position within a source.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column,omitempty"`
}

// FrameWhere locates a frame within a source.
type FrameWhere struct {
	Source *SourceForm `json:"source,omitempty"`
	Line   int         `json:"line"`
	Column int         `json:"column,omitempty"`
}

// Frame kinds reported by the thread actor.
const (
	FrameTypeCall           = "call"
	FrameTypeGlobal         = "global"
	FrameTypeEval           = "eval"
	FrameTypeClientEvaluate = "clientEvaluate"
	FrameTypeWasmCall       = "wasmcall"
)

// Frame describes one captured stack frame.
type Frame struct {
	// Actor is the frame actor name.
	Actor string `json:"actor"`

	// Type is the frame kind (call, global, eval, clientEvaluate, wasmcall).
	Type string `json:"type"`

	// DisplayName is the declared function name, empty for anonymous
	// functions and non-call frames.
	DisplayName string `json:"displayName,omitempty"`

	// Where is the current position of the frame.
	Where FrameWhere `json:"where"`

	// This is the frame's receiver value, if any.
	This *Grip `json:"this,omitempty"`

	// Environment is the innermost lexical environment of the frame.
	Environment *Environment `json:"environment,omitempty"`
}

// Environment kinds.
const (
	EnvironmentTypeFunction = "function"
	EnvironmentTypeBlock    = "block"
	EnvironmentTypeWith     = "with"
	EnvironmentTypeObject   = "object"
)

// Environment is the remote representation of one lexical scope. Parent
// links form the scope chain, innermost first.
type Environment struct {
	// Actor is the environment actor name.
	Actor string `json:"actor"`

	// Type is the environment kind (function, block, with, object).
	Type string `json:"type"`

	// Bindings holds the scope's bindings for function and block
	// environments.
	Bindings *Bindings `json:"bindings,omitempty"`

	// FunctionName names the function for function environments.
	FunctionName string `json:"functionName,omitempty"`

	// Object is the backing object grip for with and object environments.
	Object *Grip `json:"object,omitempty"`

	// Parent is the enclosing environment, nil at the outermost scope.
	Parent *Environment `json:"parent,omitempty"`
}

// Bindings are the named values of a function or block environment.
type Bindings struct {
	// Arguments lists the formal parameters in declaration order; each
	// entry maps one name to its descriptor.
	Arguments []map[string]PropertyDescriptor `json:"arguments,omitempty"`

	// Variables maps variable names to descriptors.
	Variables map[string]PropertyDescriptor `json:"variables,omitempty"`
}

// PropertyDescriptor describes one binding or object property.
type PropertyDescriptor struct {
	Value      Grip `json:"value"`
	Enumerable bool `json:"enumerable,omitempty"`
	Writable   bool `json:"writable,omitempty"`
}

// Grip is a compact reference to a remote value. Primitive values are
// carried inline; objects are carried as a form with a dedicated actor
// that must be queried for properties.
type Grip struct {
	// Kind is the value kind: "string", "number", "boolean", "null",
	// "undefined", "object", or "longString".
	Kind string

	// Actor is the object actor name for object and longString grips.
	Actor string

	// Class is the object class ("Object", "Function", "Array", ...).
	Class string

	// Name is the display name for function grips.
	Name string

	// Primitive is the raw JSON of an inline primitive value.
	Primitive json.RawMessage
}

// gripForm is the wire shape of non-primitive grips.
type gripForm struct {
	Type  string `json:"type"`
	Actor string `json:"actor,omitempty"`
	Class string `json:"class,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UnmarshalJSON decodes either an inline primitive or an object form.
func (g *Grip) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty grip")
	}

	if data[0] == '{' {
		var form gripForm
		if err := json.Unmarshal(data, &form); err != nil {
			return fmt.Errorf("unmarshal grip form: %w", err)
		}
		g.Kind = form.Type
		g.Actor = form.Actor
		g.Class = form.Class
		g.Name = form.Name
		return nil
	}

	g.Primitive = append(json.RawMessage(nil), data...)
	switch data[0] {
	case '"':
		g.Kind = "string"
	case 't', 'f':
		g.Kind = "boolean"
	default:
		g.Kind = "number"
	}
	return nil
}

// MarshalJSON encodes the grip back to its wire shape.
func (g Grip) MarshalJSON() ([]byte, error) {
	if g.Primitive != nil {
		return g.Primitive, nil
	}
	return json.Marshal(gripForm{
		Type:  g.Kind,
		Actor: g.Actor,
		Class: g.Class,
		Name:  g.Name,
	})
}

// IsObject reports whether the grip references a remote object that can be
// queried for properties.
func (g Grip) IsObject() bool {
	return g.Kind == "object" && g.Actor != ""
}

// String renders the grip for display.
func (g Grip) String() string {
	switch g.Kind {
	case "null":
		return "null"
	case "undefined":
		return "undefined"
	case "string", "number", "boolean":
		return string(g.Primitive)
	case "longString":
		return "<long string>"
	case "object":
		if g.Class == "Function" {
			if g.Name != "" {
				return "function " + g.Name + "()"
			}
			return "function ()"
		}
		if g.Class != "" {
			return g.Class
		}
		return "Object"
	default:
		return "<" + g.Kind + ">"
	}
}

// Unsolicited event types. Packets carrying one of these types are routed
// to the owning actor proxy instead of resolving a pending request.
const (
	EventHello        = "hello"
	EventPaused       = "paused"
	EventResumed      = "resumed"
	EventNewSource    = "newSource"
	EventTabNavigated = "tabNavigated"
	EventTabDetached  = "tabDetached"
	EventThreadExited = "threadExited"
)

// Pause reasons carried by paused events.
const (
	PauseReasonAttached    = "attached"
	PauseReasonInterrupt   = "interrupt"
	PauseReasonBreakpoint  = "breakpoint"
	PauseReasonResumeLimit = "resumeLimit"
	PauseReasonException   = "exception"
	PauseReasonDebugger    = "debuggerStatement"
)

// PausedEvent is delivered by a thread actor when the debuggee stops.
type PausedEvent struct {
	// Why carries the pause reason.
	Why struct {
		Type string `json:"type"`
	} `json:"why"`

	// Frame is the frame the debuggee stopped in, if known.
	Frame *Frame `json:"frame,omitempty"`
}

// NewSourceEvent is delivered by a thread actor when a source is loaded.
type NewSourceEvent struct {
	Source SourceForm `json:"source"`
}

// TabNavigatedEvent is delivered by a tab actor on navigation.
type TabNavigatedEvent struct {
	URL   string `json:"url"`
	State string `json:"state"` // "start" or "stop"
}

// HelloEvent is the greeting sent by the root actor on connect.
type HelloEvent struct {
	ApplicationType string `json:"applicationType"`
	TraitsVersion   string `json:"traitsVersion,omitempty"`
}

// TabDescriptor describes one browser tab in a listTabs reply.
type TabDescriptor struct {
	Actor    string `json:"actor"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Selected bool   `json:"selected,omitempty"`
}

// listTabsReply is the reply to a root listTabs request.
type listTabsReply struct {
	Tabs     []TabDescriptor `json:"tabs"`
	Selected int             `json:"selected"`
}

// attachTabReply is the reply to a tab attach request.
type attachTabReply struct {
	ThreadActor string `json:"threadActor"`
}

// framesReply is the reply to a thread frames request.
type framesReply struct {
	Frames []Frame `json:"frames"`
}

// sourcesReply is the reply to a thread sources request.
type sourcesReply struct {
	Sources []SourceForm `json:"sources"`
}

// SetBreakpointReply is the reply to a source setBreakpoint request.
type SetBreakpointReply struct {
	// Actor is the new breakpoint actor name.
	Actor string `json:"actor"`

	// ActualLocation is set when the server relocated the breakpoint to
	// the nearest breakable line.
	ActualLocation *Location `json:"actualLocation,omitempty"`
}

// evaluateReply is the reply to a thread clientEvaluate request.
type evaluateReply struct {
	Result Grip `json:"result"`
}

// prototypeAndPropertiesReply is the reply to an object grip query.
type prototypeAndPropertiesReply struct {
	OwnProperties map[string]PropertyDescriptor `json:"ownProperties"`
	Prototype     *Grip                         `json:"prototype,omitempty"`
}

// Resume limit kinds for stepping.
const (
	ResumeLimitNext   = "next"
	ResumeLimitStep   = "step"
	ResumeLimitFinish = "finish"
)

// resumeLimit selects a stepping mode on a resume request.
type resumeLimit struct {
	Type string `json:"type"`
}

