package hubitat

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoller_TickFlushesBeforeRefresh(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{})
	q := NewCommandQueue()
	reg := NewRegistry(gw, "http://hub/", "tok", zerolog.Nop())
	p := NewPoller(gw, q, reg, "http://hub/", "tok", time.Second, zerolog.Nop())

	var notified int
	p.OnTick(func(r TickResult) { notified++ })

	q.Enqueue("8", "off")
	res := p.Tick(context.Background())

	urls := gw.urls()
	if len(urls) != 2 {
		t.Fatalf("calls: got %v", urls)
	}
	if !strings.Contains(urls[0], "devices/8/off") || !strings.Contains(urls[1], "devices/all") {
		t.Errorf("order: got %v", urls)
	}
	if res.Sent == nil || !res.Refreshed {
		t.Errorf("result: got %+v", res)
	}
	if notified != 1 {
		t.Errorf("listeners: got %d calls, want 1", notified)
	}
}

func TestPoller_StartStop(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{})
	reg := NewRegistry(gw, "http://hub/", "tok", zerolog.Nop())
	p := NewPoller(gw, NewCommandQueue(), reg, "http://hub/", "tok", 5*time.Millisecond, zerolog.Nop())

	var ticks atomic.Int32
	p.OnTick(func(TickResult) { ticks.Add(1) })

	if p.State() != PollerIdle {
		t.Fatalf("state: got %s, want idle", p.State())
	}

	p.Start(context.Background(), 5*time.Millisecond)
	p.Start(context.Background(), 5*time.Millisecond) // no second loop
	if p.State() != PollerTicking {
		t.Fatalf("state: got %s, want ticking", p.State())
	}

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Fatalf("ticks: got %d, want at least 3", ticks.Load())
	}

	p.Stop()
	if p.State() != PollerIdle {
		t.Errorf("state after stop: got %s", p.State())
	}

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != after {
		t.Error("ticks continued after stop")
	}
}

func TestTask_UsesReturnedDelay(t *testing.T) {
	var runs atomic.Int32
	task := StartTask(context.Background(), time.Millisecond, func(ctx context.Context) time.Duration {
		if runs.Add(1) == 1 {
			return time.Hour
		}
		return time.Millisecond
	})

	time.Sleep(50 * time.Millisecond)
	task.Stop()
	task.Stop()

	if runs.Load() != 1 {
		t.Errorf("runs: got %d, want 1 (second run is an hour away)", runs.Load())
	}
	select {
	case <-task.Done():
	default:
		t.Error("done channel should be closed after stop")
	}
}

func TestTask_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := StartTask(ctx, time.Hour, func(context.Context) time.Duration { return time.Hour })
	cancel()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop when the parent context was cancelled")
	}
}
