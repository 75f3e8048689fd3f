package hubitat

import (
	"context"
	"sync"
	"time"
)

// Task runs a function after a delay and keeps rescheduling it with the
// delay the function returns. Runs never overlap. Stop cancels the task
// and waits for an in-flight run to return.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartTask schedules fn to run after firstDelay. Each run returns the
// delay before the next one.
func StartTask(ctx context.Context, firstDelay time.Duration, fn func(context.Context) time.Duration) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		timer := time.NewTimer(firstDelay)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				next := fn(ctx)
				if ctx.Err() != nil {
					return
				}
				timer.Reset(next)
			}
		}
	}()

	return t
}

// Stop cancels the task. It is safe to call more than once.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has stopped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
