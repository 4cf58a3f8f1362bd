// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Every piece of add-on state (watcher counters, display mode, feature
// visibility) is only touched from inside a Loop callback, so none of it
// needs locking. Blocking work is never done on the loop; "wait until the
// element exists" style logic reschedules itself with After instead.
package eventloop

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"kongaddon/internal/logging"
)

// Loop is a FIFO queue of funcs drained by one goroutine.
type Loop struct {
	name string

	mu      sync.Mutex
	pending []func()
	timers  map[*time.Timer]struct{}
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// New starts a loop. The name only shows up in logs.
func New(name string) *Loop {
	l := &Loop{
		name:   name,
		timers: make(map[*time.Timer]struct{}),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn. It returns false once the loop is closed.
// Post is safe to call from any goroutine, including from inside a callback.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// After posts fn once d has elapsed. Timers still pending at Close are discarded.
func (l *Loop) After(d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		l.Post(fn)
	})
	l.timers[t] = struct{}{}
}

// Sync blocks until every callback posted before it has run.
// Never call Sync from inside a callback: it would wait on itself.
func (l *Loop) Sync() {
	ch := make(chan struct{})
	if !l.Post(func() { close(ch) }) {
		return
	}
	select {
	case <-ch:
	case <-l.done:
	}
}

// Pending reports queued callbacks and armed timers.
func (l *Loop) Pending() (queued, timers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending), len(l.timers)
}

// Close stops accepting work, discards armed timers, drains what is already
// queued and waits for the goroutine to exit. Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		for t := range l.timers {
			t.Stop()
			delete(l.timers, t)
		}
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return
			}
			<-l.wake
			continue
		}
		fn := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		l.mu.Unlock()

		l.exec(fn)
	}
}

// exec runs one callback. A panicking callback is logged and the loop keeps going.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.BootWarn("eventloop %s: callback panicked: %v\n%s", l.name, r, debug.Stack())
		}
	}()
	fn()
}

// String implements fmt.Stringer.
func (l *Loop) String() string {
	q, t := l.Pending()
	return fmt.Sprintf("eventloop(%s, queued=%d, timers=%d)", l.name, q, t)
}
