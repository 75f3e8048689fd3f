package hubitat

import (
	"context"
	"strings"
	"sync"
	"time"
)

// fakeGetter returns canned values keyed by URL path fragment and records
// every URL it was asked for.
type fakeGetter struct {
	mu        sync.Mutex
	responses map[string]any
	calls     []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{responses: make(map[string]any)}
}

func (f *fakeGetter) set(fragment string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[fragment] = value
}

func (f *fakeGetter) Get(_ context.Context, rawURL string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	for fragment, v := range f.responses {
		if strings.Contains(rawURL, fragment) {
			return v
		}
	}
	return nil
}

func (f *fakeGetter) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func device(id any, label, typ string, caps []any, attrs map[string]any) map[string]any {
	return map[string]any{
		"id":           id,
		"label":        label,
		"type":         typ,
		"capabilities": caps,
		"attributes":   attrs,
	}
}
