package rdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// TabProxy represents one browser tab actor.
type TabProxy struct {
	ActorProxy

	mu          sync.Mutex
	onNavigated func(TabNavigatedEvent)
	onDetached  func()
}

// TabFor returns the memoized tab proxy for an actor name.
func TabFor(conn *Connection, name string) *TabProxy {
	return conn.GetOrCreate(name, func() Actor {
		return &TabProxy{ActorProxy: ActorProxy{name: name, conn: conn}}
	}).(*TabProxy)
}

// OnNavigated sets the handler for tab navigation events.
func (p *TabProxy) OnNavigated(handler func(TabNavigatedEvent)) {
	p.mu.Lock()
	p.onNavigated = handler
	p.mu.Unlock()
}

// OnDetached sets the handler for tab detach events.
func (p *TabProxy) OnDetached(handler func()) {
	p.mu.Lock()
	p.onDetached = handler
	p.mu.Unlock()
}

// HandleEvent dispatches tab events.
func (p *TabProxy) HandleEvent(event string, body json.RawMessage) {
	p.mu.Lock()
	onNavigated := p.onNavigated
	onDetached := p.onDetached
	p.mu.Unlock()

	switch event {
	case EventTabNavigated:
		if onNavigated != nil {
			var evt TabNavigatedEvent
			if err := json.Unmarshal(body, &evt); err == nil {
				onNavigated(evt)
			}
		}
	case EventTabDetached:
		if onDetached != nil {
			onDetached()
		}
	}
}

// Attach attaches to the tab and returns its thread actor name.
func (p *TabProxy) Attach(ctx context.Context) (string, error) {
	var reply attachTabReply
	if err := p.requestInto(ctx, typeOnly{Type: "attach"}, &reply); err != nil {
		return "", fmt.Errorf("attach tab %s: %w", p.name, err)
	}
	if reply.ThreadActor == "" {
		return "", fmt.Errorf("attach tab %s: no thread actor in reply", p.name)
	}
	return reply.ThreadActor, nil
}

// Detach detaches from the tab.
func (p *TabProxy) Detach(ctx context.Context) error {
	if _, err := p.request(ctx, typeOnly{Type: "detach"}); err != nil {
		return fmt.Errorf("detach tab %s: %w", p.name, err)
	}
	return nil
}

// NavigateTo asks the tab to navigate to a URL.
func (p *TabProxy) NavigateTo(ctx context.Context, url string) error {
	payload := struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}{Type: "navigateTo", URL: url}

	if _, err := p.request(ctx, payload); err != nil {
		return fmt.Errorf("navigate tab %s: %w", p.name, err)
	}
	return nil
}
