// Package adapter implements the stateful core of the debug adapter: the
// coordination logic that makes the remote, asynchronous actor tree of the
// Firefox debugger server presentable as a conventional synchronous
// debugging model (threads, frames, scopes, variables, breakpoints).
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Session                              │
//	│  - attach bootstrap (root -> tab -> thread)                 │
//	│  - handle registries (threads / frames / variables)         │
//	│  - source adapters and pending breakpoint wishes            │
//	└─────────────────────────────────────────────────────────────┘
//	                │                │                 │
//	                ▼                ▼                 ▼
//	┌────────────────────┐ ┌──────────────────┐ ┌────────────────────┐
//	│   ThreadAdapter     │ │  SourceAdapter   │ │    FrameAdapter     │
//	│  pause/resume state │ │  breakpoint      │ │  scope chain and    │
//	│  machine, RunOn-    │ │  reconciliation  │ │  lazy variable      │
//	│  Paused serializer  │ │                  │ │  containers         │
//	└────────────────────┘ └──────────────────┘ └────────────────────┘
//
// # Handle lifecycles
//
// Thread handles live for the whole session. Frame and variable-container
// handles live for one pause cycle: both registries are cleared together
// on every resume, and the object actors fetched during the pause are
// released at the same time. A front-protocol request carrying a stale
// handle fails lookup; it cannot alias a newer object.
//
// # Mutual exclusion
//
// ThreadAdapter.RunOnPaused is the only mutual-exclusion primitive:
// operations that require a quiescent debuggee (breakpoint edits) run
// under it, interleaved neither with each other nor with user-driven
// resume and step requests. Per-source reconciliation is additionally
// serialized by the source adapter so two reconciliations never diff
// against the same stale base.
package adapter
