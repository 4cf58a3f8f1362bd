package browser

import (
	"testing"

	"kongaddon/internal/addon"
	"kongaddon/internal/config"

	"github.com/google/go-cmp/cmp"
)

func TestDeliverCoalescesChatEvents(t *testing.T) {
	var got []addon.Event
	s := NewStream(nil, config.DefaultConfig().Browser.Selectors, 0, func(e addon.Event) { got = append(got, e) })

	s.deliver([]pageEvent{
		{Kind: "chat"},
		{Kind: "click", ID: "bt_lockscreen"},
		{Kind: "chat"},
		{Kind: "change", ID: "slt_fontsize", Value: "14"},
		{Kind: "chat"},
	})

	want := []addon.Event{
		{Kind: "chat"},
		{Kind: "click", ID: "bt_lockscreen"},
		{Kind: "change", ID: "slt_fontsize", Value: "14"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delivered events mismatch (-want +got):\n%s", diff)
	}
}

func TestNewStreamDefaultsInterval(t *testing.T) {
	s := NewStream(nil, config.DefaultConfig().Browser.Selectors, 0, func(addon.Event) {})
	if s.interval <= 0 {
		t.Fatalf("interval = %v, want a positive default", s.interval)
	}
}
