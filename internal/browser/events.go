package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kongaddon/internal/addon"
	"kongaddon/internal/config"
	"kongaddon/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/errgroup"
)

// ErrNavigated ends a stream when the main frame navigates away; the
// add-on has to be installed again on the new document.
var ErrNavigated = errors.New("page navigated")

// jsHooks buffers page events in window.__kongaddonEvents. It is idempotent
// per document.
const jsHooks = `(win, unread) => {
	const w = window;
	if (w.__kongaddonHooked) return true;
	w.__kongaddonHooked = true;
	w.__kongaddonEvents = [];
	const push = (e) => w.__kongaddonEvents.push(e);

	const watch = (sel, kind) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		new MutationObserver(() => push({ kind })).observe(el, { childList: true, subtree: true, characterData: true });
		return true;
	};
	watch(win, "chat");
	watch(unread, "unread");

	document.addEventListener("click", (ev) => {
		const t = ev.target && ev.target.closest ? ev.target.closest("button[id], #forth_ping_icon") : null;
		if (t && t.id) push({ kind: "click", id: t.id });
	}, true);
	document.addEventListener("change", (ev) => {
		const t = ev.target || {};
		if (t.id) push({ kind: "change", id: t.id, value: String(t.value || "") });
	}, true);
	window.addEventListener("resize", () => push({ kind: "resize" }));
	return true;
}`

const jsDrain = `() => {
	const e = window.__kongaddonEvents || [];
	window.__kongaddonEvents = [];
	return e;
}`

// Stream moves buffered page events into a sink.
type Stream struct {
	page     *rod.Page
	sel      config.SelectorConfig
	interval time.Duration
	sink     func(addon.Event)
}

// NewStream creates a stream draining every interval.
func NewStream(page *rod.Page, sel config.SelectorConfig, interval time.Duration, sink func(addon.Event)) *Stream {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Stream{page: page, sel: sel, interval: interval, sink: sink}
}

// Hook installs the in-page listeners.
func (s *Stream) Hook(ctx context.Context) error {
	_, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           jsHooks,
		JSArgs:       []any{s.sel.MessageWindow, s.sel.UnreadCount},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("install event hooks: %w", err)
	}
	return nil
}

// Run drains events until ctx ends, an evaluation fails or the page
// navigates (ErrNavigated).
func (s *Stream) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := s.drain(gctx); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	})

	g.Go(func() error {
		navigated := false
		wait := s.page.Context(gctx).EachEvent(func(ev *proto.PageFrameNavigated) bool {
			if ev.Frame.ParentID != "" {
				return false
			}
			logging.Browser("main frame navigated to %s", ev.Frame.URL)
			navigated = true
			return true
		})
		wait()
		if navigated {
			return ErrNavigated
		}
		return nil
	})

	return g.Wait()
}

type pageEvent struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (s *Stream) drain(ctx context.Context) error {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{JS: jsDrain, ByValue: true})
	if err != nil {
		return fmt.Errorf("drain events: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	var events []pageEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}
	s.deliver(events)
	return nil
}

func (s *Stream) deliver(events []pageEvent) {
	chatSeen := false
	for _, e := range events {
		// one notification per batch is enough; the watcher re-reads the count
		if e.Kind == "chat" {
			if chatSeen {
				continue
			}
			chatSeen = true
		}
		logging.BrowserDebug("event %s %s %q", e.Kind, e.ID, e.Value)
		s.sink(addon.Event{Kind: e.Kind, ID: e.ID, Value: e.Value})
	}
}
