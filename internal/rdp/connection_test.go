package rdp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu       sync.Mutex
	sent     []json.RawMessage
	recvChan chan json.RawMessage
	closed   bool
	onSend   func(json.RawMessage)
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		recvChan: make(chan json.RawMessage, 16),
	}
}

func (t *mockTransport) Send(packet json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return io.ErrClosedPipe
	}
	t.sent = append(t.sent, packet)
	if t.onSend != nil {
		t.onSend(packet)
	}
	return nil
}

func (t *mockTransport) Receive() (json.RawMessage, error) {
	packet, ok := <-t.recvChan
	if !ok {
		return nil, io.EOF
	}
	return packet, nil
}

func (t *mockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.recvChan)
	}
	return nil
}

func (t *mockTransport) queue(packet string) {
	t.recvChan <- json.RawMessage(packet)
}

func (t *mockTransport) sentPackets() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]json.RawMessage{}, t.sent...)
}

// fakeActor records delivered events.
type fakeActor struct {
	name   string
	events chan string
}

func (a *fakeActor) Name() string { return a.name }

func (a *fakeActor) HandleEvent(event string, body json.RawMessage) {
	a.events <- event
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectionRequestReply(t *testing.T) {
	mt := newMockTransport()
	mt.onSend = func(packet json.RawMessage) {
		to := gjson.GetBytes(packet, "to").String()
		mt.queue(`{"from":"` + to + `","answer":42}`)
	}

	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	reply, err := conn.Request(testContext(t), "server1.conn1.child42", typeOnly{Type: "ping"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := gjson.GetBytes(reply, "answer").Int(); got != 42 {
		t.Errorf("answer = %d, want 42", got)
	}

	sent := mt.sentPackets()
	if len(sent) != 1 {
		t.Fatalf("sent %d packets, want 1", len(sent))
	}
	if to := gjson.GetBytes(sent[0], "to").String(); to != "server1.conn1.child42" {
		t.Errorf("to = %q", to)
	}
	if typ := gjson.GetBytes(sent[0], "type").String(); typ != "ping" {
		t.Errorf("type = %q", typ)
	}
}

func TestConnectionRemoteError(t *testing.T) {
	mt := newMockTransport()
	mt.onSend = func(packet json.RawMessage) {
		mt.queue(`{"from":"tab1","error":"noSuchActor","message":"tab is gone"}`)
	}

	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	_, err := conn.Request(testContext(t), "tab1", typeOnly{Type: "attach"})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remote.Code != "noSuchActor" || remote.Message != "tab is gone" {
		t.Errorf("remote error = %+v", remote)
	}
}

func TestConnectionPerActorFIFO(t *testing.T) {
	mt := newMockTransport()
	sent := make(chan struct{}, 2)
	mt.onSend = func(json.RawMessage) { sent <- struct{}{} }

	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	type result struct {
		reply json.RawMessage
		err   error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		reply, err := conn.Request(testContext(t), "thread1", typeOnly{Type: "frames"})
		first <- result{reply, err}
	}()
	<-sent

	go func() {
		reply, err := conn.Request(testContext(t), "thread1", typeOnly{Type: "sources"})
		second <- result{reply, err}
	}()
	<-sent

	mt.queue(`{"from":"thread1","seq":1}`)
	mt.queue(`{"from":"thread1","seq":2}`)

	r1 := <-first
	r2 := <-second
	if r1.err != nil || r2.err != nil {
		t.Fatalf("errors: %v, %v", r1.err, r2.err)
	}
	if gjson.GetBytes(r1.reply, "seq").Int() != 1 {
		t.Errorf("first reply = %s, want seq 1", r1.reply)
	}
	if gjson.GetBytes(r2.reply, "seq").Int() != 2 {
		t.Errorf("second reply = %s, want seq 2", r2.reply)
	}
}

func TestConnectionEventRouting(t *testing.T) {
	mt := newMockTransport()
	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	actor := &fakeActor{name: "thread1", events: make(chan string, 1)}
	conn.GetOrCreate("thread1", func() Actor { return actor })

	mt.queue(`{"from":"thread1","type":"paused","why":{"type":"breakpoint"}}`)

	select {
	case event := <-actor.events:
		if event != EventPaused {
			t.Errorf("event = %q, want %q", event, EventPaused)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestConnectionEventBeforeReplyNotConsumed(t *testing.T) {
	// An event from an actor with a pending request must not resolve the
	// pending request.
	mt := newMockTransport()
	sent := make(chan struct{}, 1)
	mt.onSend = func(json.RawMessage) { sent <- struct{}{} }

	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	actor := &fakeActor{name: "thread1", events: make(chan string, 1)}
	conn.GetOrCreate("thread1", func() Actor { return actor })

	done := make(chan json.RawMessage, 1)
	go func() {
		reply, err := conn.Request(testContext(t), "thread1", typeOnly{Type: "interrupt"})
		if err != nil {
			t.Errorf("Request: %v", err)
		}
		done <- reply
	}()
	<-sent

	mt.queue(`{"from":"thread1","type":"paused","why":{"type":"interrupt"}}`)
	mt.queue(`{"from":"thread1"}`)

	reply := <-done
	if typ := gjson.GetBytes(reply, "type").String(); typ == "paused" {
		t.Error("pause event consumed as interrupt reply")
	}
	if event := <-actor.events; event != EventPaused {
		t.Errorf("event = %q, want %q", event, EventPaused)
	}
}

func TestConnectionUnknownActorEventDropped(t *testing.T) {
	mt := newMockTransport()
	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	mt.queue(`{"from":"nobody","type":"paused"}`)
	mt.queue(`{"from":"stranger","inexplicable":true}`)

	// The connection must keep working after dropping both packets.
	mt.onSend = func(packet json.RawMessage) {
		mt.queue(`{"from":"root","tabs":[]}`)
	}
	if _, err := conn.Request(testContext(t), "root", typeOnly{Type: "listTabs"}); err != nil {
		t.Fatalf("Request after dropped packets: %v", err)
	}
}

func TestConnectionCloseFailsPending(t *testing.T) {
	mt := newMockTransport()
	sent := make(chan struct{}, 1)
	mt.onSend = func(json.RawMessage) { sent <- struct{}{} }

	conn := NewConnection(mt, zap.NewNop())

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Request(testContext(t), "thread1", typeOnly{Type: "frames"})
		errCh <- err
	}()
	<-sent

	conn.Close()

	if err := <-errCh; !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}

	// Requests after close fail immediately.
	if _, err := conn.Request(testContext(t), "thread1", typeOnly{Type: "frames"}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err after close = %v, want ErrConnectionClosed", err)
	}
}

func TestGetOrCreateMemoizes(t *testing.T) {
	mt := newMockTransport()
	conn := NewConnection(mt, zap.NewNop())
	defer conn.Close()

	calls := 0
	factory := func() Actor {
		calls++
		return &fakeActor{name: "tab1", events: make(chan string, 1)}
	}

	a := conn.GetOrCreate("tab1", factory)
	b := conn.GetOrCreate("tab1", factory)

	if a != b {
		t.Error("GetOrCreate returned different proxies for the same name")
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}

	conn.Release("tab1")
	c := conn.GetOrCreate("tab1", factory)
	if c == a {
		t.Error("GetOrCreate returned released proxy")
	}
	if calls != 2 {
		t.Errorf("factory called %d times after release, want 2", calls)
	}
}
