// Package rdp implements a client for the remote debugging protocol spoken
// by the Firefox debugger server.
//
// The protocol is actor based: every remote entity (the root, tabs, threads,
// sources, breakpoints, object grips) is a named actor reachable only
// through asynchronous request/reply exchanges and unsolicited events.
// Packets are length-prefixed JSON objects; requests carry the target actor
// in "to", replies and events carry the originating actor in "from".
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                      Connection                           │
//	│  - owns the transport and the receive loop               │
//	│  - correlates replies with pending requests (per-actor   │
//	│    FIFO)                                                 │
//	│  - routes unsolicited events to actor proxies by name    │
//	└──────────────────────────────────────────────────────────┘
//	                            │
//	                            ▼
//	┌──────────────────────────────────────────────────────────┐
//	│                     Actor proxies                         │
//	│  Root, Tab, Thread, Source, Breakpoint, Object           │
//	│  - one proxy per actor name, memoized on the connection  │
//	│  - typed request methods, event callbacks                │
//	└──────────────────────────────────────────────────────────┘
//
// Replies to requests sent to the same actor arrive in request order, so a
// pending reply is matched to the oldest outstanding request for that
// actor. Packets whose type is in the unsolicited event set (paused,
// resumed, newSource, tabNavigated, tabDetached, threadExited) are always
// routed as events, never consumed as replies.
//
// Proxies never block anything but the calling goroutine; the connection
// keeps serving other requests and events while a request is outstanding.
package rdp
