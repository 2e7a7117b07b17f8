package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/SkyN9ne/firefox-debugger/internal/rdp"
)

const (
	testTabActor    = "tab1"
	testThreadActor = "thread1"
	testSourceActor = "source1"
	testSourceURL   = "file:///tmp/app.js"
)

// fakeFirefox scripts the debugger server side of the wire. It answers
// requests synchronously and queues unsolicited events behind the replies
// they follow, so tests observe a deterministic packet order.
type fakeFirefox struct {
	t *testing.T

	recv   chan json.RawMessage
	closed chan struct{}
	once   sync.Once

	mu          sync.Mutex
	paused      bool
	nextBP      int
	breakpoints map[string]int // live breakpoint actor -> requested line
	setLines    []int          // setBreakpoint lines in arrival order
	deleted     []string       // deleted breakpoint actors
	relocate    map[int]int    // requested line -> server-chosen line
	failLines   map[int]bool   // lines whose setBreakpoint fails
	sources     []rdp.SourceForm
	frames      []rdp.Frame
	objects     map[string]map[string]rdp.PropertyDescriptor
	fetches     map[string]int // object actor -> prototypeAndProperties count
	resumes     int
	interrupts  int
}

func newFakeFirefox(t *testing.T) *fakeFirefox {
	f := &fakeFirefox{
		t:           t,
		recv:        make(chan json.RawMessage, 64),
		closed:      make(chan struct{}),
		breakpoints: make(map[string]int),
		relocate:    make(map[int]int),
		failLines:   make(map[int]bool),
		objects:     make(map[string]map[string]rdp.PropertyDescriptor),
		fetches:     make(map[string]int),
	}
	f.push(`{"from":"root","applicationType":"browser","traits":{}}`)
	return f
}

func (f *fakeFirefox) push(s string) {
	select {
	case f.recv <- json.RawMessage(s):
	default:
		f.t.Fatalf("fake server queue overflow")
	}
}

func (f *fakeFirefox) pushJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		f.t.Fatalf("marshal fake packet: %v", err)
	}
	f.push(string(b))
}

func (f *fakeFirefox) Receive() (json.RawMessage, error) {
	select {
	case packet := <-f.recv:
		return packet, nil
	case <-f.closed:
		return nil, fmt.Errorf("fake server closed")
	}
}

func (f *fakeFirefox) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeFirefox) Send(packet json.RawMessage) error {
	to := gjson.GetBytes(packet, "to").String()
	typ := gjson.GetBytes(packet, "type").String()

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case to == "root" && typ == "listTabs":
		f.push(fmt.Sprintf(
			`{"from":"root","tabs":[{"actor":%q,"title":"Test Tab","url":"http://localhost/","selected":true}],"selected":0}`,
			testTabActor))

	case to == testTabActor && typ == "attach":
		f.push(fmt.Sprintf(`{"from":%q,"threadActor":%q}`, testTabActor, testThreadActor))

	case to == testTabActor && typ == "detach":
		f.push(fmt.Sprintf(`{"from":%q}`, testTabActor))

	case to == testThreadActor:
		f.handleThread(typ, packet)

	case strings.HasPrefix(to, "source"):
		f.handleSource(to, typ, packet)

	case strings.HasPrefix(to, "bp"):
		if typ == "delete" {
			f.deleted = append(f.deleted, to)
			delete(f.breakpoints, to)
			f.push(fmt.Sprintf(`{"from":%q}`, to))
		}

	case strings.HasPrefix(to, "obj"):
		if typ == "prototypeAndProperties" {
			f.fetches[to]++
			f.pushJSON(map[string]any{
				"from":          to,
				"ownProperties": f.objects[to],
				"prototype":     map[string]any{"type": "null"},
			})
		}

	default:
		f.t.Logf("fake server: unhandled request to=%s type=%s", to, typ)
		f.push(fmt.Sprintf(`{"from":%q,"error":"unrecognizedPacketType","message":"unhandled"}`, to))
	}
	return nil
}

func (f *fakeFirefox) handleThread(typ string, packet json.RawMessage) {
	switch typ {
	case "attach":
		f.push(fmt.Sprintf(`{"from":%q}`, testThreadActor))
		f.paused = true
		f.push(fmt.Sprintf(`{"from":%q,"type":"paused","why":{"type":"attached"}}`, testThreadActor))

	case "interrupt":
		f.interrupts++
		f.push(fmt.Sprintf(`{"from":%q}`, testThreadActor))
		if !f.paused {
			f.paused = true
			f.push(fmt.Sprintf(`{"from":%q,"type":"paused","why":{"type":"interrupt"}}`, testThreadActor))
		}

	case "resume":
		f.resumes++
		f.push(fmt.Sprintf(`{"from":%q}`, testThreadActor))
		if f.paused {
			f.push(fmt.Sprintf(`{"from":%q,"type":"resumed"}`, testThreadActor))
		}
		if gjson.GetBytes(packet, "resumeLimit").Exists() {
			f.push(fmt.Sprintf(`{"from":%q,"type":"paused","why":{"type":"resumeLimit"}}`, testThreadActor))
		} else {
			f.paused = false
		}

	case "frames":
		f.pushJSON(map[string]any{"from": testThreadActor, "frames": f.frames})

	case "sources":
		f.pushJSON(map[string]any{"from": testThreadActor, "sources": f.sources})

	case "clientEvaluate":
		expr := gjson.GetBytes(packet, "expression").String()
		f.pushJSON(map[string]any{
			"from":   testThreadActor,
			"result": json.RawMessage(fmt.Sprintf(`"eval:%s"`, expr)),
		})

	case "detach":
		f.push(fmt.Sprintf(`{"from":%q}`, testThreadActor))
	}
}

func (f *fakeFirefox) handleSource(to, typ string, packet json.RawMessage) {
	if typ != "setBreakpoint" {
		return
	}
	line := int(gjson.GetBytes(packet, "location.line").Int())
	f.setLines = append(f.setLines, line)
	if f.failLines[line] {
		f.push(fmt.Sprintf(`{"from":%q,"error":"noScript","message":"no breakable line"}`, to))
		return
	}

	f.nextBP++
	actor := fmt.Sprintf("bp%d", f.nextBP)
	f.breakpoints[actor] = line
	if actual, ok := f.relocate[line]; ok {
		f.push(fmt.Sprintf(`{"from":%q,"actor":%q,"actualLocation":{"line":%d}}`, to, actor, actual))
	} else {
		f.push(fmt.Sprintf(`{"from":%q,"actor":%q}`, to, actor))
	}
}

// emitPaused delivers an unsolicited pause, as a breakpoint hit would.
func (f *fakeFirefox) emitPaused(reason string) {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
	f.push(fmt.Sprintf(`{"from":%q,"type":"paused","why":{"type":%q}}`, testThreadActor, reason))
}

// deletedLines maps the deleted actors back to the lines they were set on.
func (f *fakeFirefox) deletedLines() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	// breakpoints drops entries on delete, so remember lines separately.
	lines := make([]int, 0, len(f.deleted))
	for _, actor := range f.deleted {
		lines = append(lines, f.deletedLine(actor))
	}
	return lines
}

// deletedLine recovers the requested line of a deleted actor from the set
// history: actors are handed out in setBreakpoint arrival order.
func (f *fakeFirefox) deletedLine(actor string) int {
	n := 0
	fmt.Sscanf(actor, "bp%d", &n)
	succeeded := 0
	for _, line := range f.setLines {
		if f.failLines[line] {
			continue
		}
		succeeded++
		if succeeded == n {
			return line
		}
	}
	return -1
}

func (f *fakeFirefox) stats() (sets, deletes, resumes, interrupts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.setLines), len(f.deleted), f.resumes, f.interrupts
}

func (f *fakeFirefox) setObject(actor string, props map[string]rdp.PropertyDescriptor) {
	f.mu.Lock()
	f.objects[actor] = props
	f.mu.Unlock()
}

func (f *fakeFirefox) setFrames(frames []rdp.Frame) {
	f.mu.Lock()
	f.frames = frames
	f.mu.Unlock()
}

func (f *fakeFirefox) objectFetches(actor string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[actor]
}

// harness wires a session to a fake server and records notifications.
type harness struct {
	t            *testing.T
	fake         *fakeFirefox
	conn         *rdp.Connection
	session      *Session
	threadHandle int

	stopped    chan string
	continued  chan int
	bound      chan []BreakpointResult
	terminated chan struct{}
}

// newHarness attaches a session over the fake server. configure runs
// before the attach bootstrap so tests can preset sources and frames.
func newHarness(t *testing.T, configure func(*fakeFirefox)) *harness {
	t.Helper()

	fake := newFakeFirefox(t)
	if configure != nil {
		configure(fake)
	}

	h := &harness{
		t:          t,
		fake:       fake,
		stopped:    make(chan string, 16),
		continued:  make(chan int, 16),
		bound:      make(chan []BreakpointResult, 16),
		terminated: make(chan struct{}, 1),
	}
	h.conn = rdp.NewConnection(fake, zap.NewNop())
	h.session = NewSession(h.conn, zap.NewNop(), Handlers{
		OnStopped:   func(_ int, reason string) { h.stopped <- reason },
		OnContinued: func(handle int) { h.continued <- handle },
		OnBreakpointsBound: func(_ string, results []BreakpointResult) {
			h.bound <- results
		},
		OnTerminated: func() {
			select {
			case h.terminated <- struct{}{}:
			default:
			}
		},
	})
	t.Cleanup(func() { h.conn.Close() })

	handle, err := h.session.Attach(testContext(t))
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	h.threadHandle = handle
	h.waitState(ThreadRunning)
	return h
}

func (h *harness) thread() *ThreadAdapter {
	h.t.Helper()
	thread, err := h.session.Thread(h.threadHandle)
	if err != nil {
		h.t.Fatalf("Thread(%d) error = %v", h.threadHandle, err)
	}
	return thread
}

// waitState polls until the thread reaches the wanted state.
func (h *harness) waitState(want ThreadState) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.thread().State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("thread state = %v, want %v", h.thread().State(), want)
}

// pause interrupts the thread and waits for the user-visible stop.
func (h *harness) pause() {
	h.t.Helper()
	if err := h.thread().Pause(testContext(h.t)); err != nil {
		h.t.Fatalf("Pause() error = %v", err)
	}
	h.waitState(ThreadPaused)
}

func (h *harness) awaitStopped() string {
	h.t.Helper()
	select {
	case reason := <-h.stopped:
		return reason
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for stopped notification")
		return ""
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testSource is the source form most tests preload.
func testSource() rdp.SourceForm {
	return rdp.SourceForm{Actor: testSourceActor, URL: testSourceURL}
}
