package activity

import (
	"context"
	"sync"
)

// CaptureHook keeps every event it is notified of, for tests and examples
// that assert on registry activity. Err, when set, is returned from Notify
// after the event is recorded.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Verbs lists the captured verbs in notification order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.Events))
	for i, event := range h.Events {
		verbs[i] = event.Verb
	}
	return verbs
}

// ForModel returns the captured events about the model named name.
func (h *CaptureHook) ForModel(name string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, event := range h.Events {
		if event.ModelName == name {
			out = append(out, event)
		}
	}
	return out
}

// Reset drops every captured event.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = nil
}
