// Package chat watches the live message container and rewrites each new
// message once.
//
// Writing a rewritten message back into the container triggers another
// notification. Those self-inflicted notifications are absorbed by the
// empty-text guard and the count comparison, never by a lock.
package chat

import (
	"context"
	"errors"
	"fmt"

	"kongaddon/internal/logging"

	"github.com/google/uuid"
)

// ErrMessageChanged is returned by a Container when the last message no
// longer holds the text the rewrite was computed from.
var ErrMessageChanged = errors.New("last message changed before write-back")

// Container is the observed message list.
type Container interface {
	// MessageCount returns the number of messages currently rendered.
	MessageCount(ctx context.Context) (int, error)
	// LastMessage returns the markup of the most recent message. It is ""
	// while the host is re-rendering that message.
	LastMessage(ctx context.Context) (string, error)
	// ReplaceLastMessage swaps the last message markup, but only while it
	// still equals expected.
	ReplaceLastMessage(ctx context.Context, expected, html string) error
}

// Rewriter turns raw message markup into its linked form.
type Rewriter interface {
	Rewrite(text string) string
}

// State of the watcher.
type State int

const (
	Idle State = iota
	ProcessingNotification
)

func (s State) String() string {
	if s == ProcessingNotification {
		return "processing"
	}
	return "idle"
}

// MessageRecord describes the message handled by the latest notification.
type MessageRecord struct {
	ContainerID    string
	RawText        string
	RewrittenText  *string
	LastSeenLength int
}

// Stats counts what notifications turned out to be.
type Stats struct {
	Notifications int
	Rewrites      int
	SelfInflicted int
	Resets        int
	Reentrant     int
	Unchanged     int
	Errors        int
}

// Watcher reacts to container notifications. It is not safe for concurrent
// use; drive it from a single event loop.
type Watcher struct {
	id        string
	container Container
	rewriter  Rewriter

	state   State
	tracked int
	last    *MessageRecord
	stats   Stats
}

// NewWatcher creates a watcher with a fresh container id.
func NewWatcher(c Container, r Rewriter) *Watcher {
	return &Watcher{
		id:        uuid.NewString(),
		container: c,
		rewriter:  r,
	}
}

// ID identifies the observed container in logs and records.
func (w *Watcher) ID() string { return w.id }

// State returns the current state.
func (w *Watcher) State() State { return w.state }

// Tracked returns the message count the watcher last synchronized to.
func (w *Watcher) Tracked() int { return w.tracked }

// LastRecord returns the record of the latest notification that read a message.
func (w *Watcher) LastRecord() *MessageRecord { return w.last }

// Stats returns a copy of the counters.
func (w *Watcher) Stats() Stats { return w.stats }

// Notify handles one container notification.
func (w *Watcher) Notify(ctx context.Context) {
	w.stats.Notifications++
	if w.state == ProcessingNotification {
		w.stats.Reentrant++
		logging.ChatDebug("[%s] re-entrant notification dropped", w.id[:8])
		return
	}
	w.state = ProcessingNotification
	defer func() { w.state = Idle }()

	if err := w.process(ctx); err != nil {
		w.stats.Errors++
		logging.ChatWarn("[%s] %v", w.id[:8], err)
	}
}

func (w *Watcher) process(ctx context.Context) error {
	msg, err := w.container.LastMessage(ctx)
	if err != nil {
		return fmt.Errorf("read last message: %w", err)
	}
	count, err := w.container.MessageCount(ctx)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}

	// The host empties a message node before refilling it; that transient
	// state is our own write-back echoing, so only resync.
	if msg == "" {
		w.stats.SelfInflicted++
		w.tracked = count
		return nil
	}

	switch {
	case count < w.tracked:
		logging.ChatDebug("[%s] container reset: %d -> %d", w.id[:8], w.tracked, count)
		w.stats.Resets++
		w.tracked = count
		return nil
	case count == w.tracked:
		return nil
	}

	rec := &MessageRecord{ContainerID: w.id, RawText: msg, LastSeenLength: count}
	w.last = rec
	w.tracked = count

	out := w.rewriter.Rewrite(msg)
	if out == msg {
		w.stats.Unchanged++
		return nil
	}
	rec.RewrittenText = &out

	if err := w.container.ReplaceLastMessage(ctx, msg, out); err != nil {
		if errors.Is(err, ErrMessageChanged) {
			logging.ChatDebug("[%s] message changed under us, skipping write-back", w.id[:8])
			return nil
		}
		return fmt.Errorf("write back: %w", err)
	}
	w.stats.Rewrites++
	logging.Chat("[%s] rewrote message %d", w.id[:8], count)
	return nil
}
