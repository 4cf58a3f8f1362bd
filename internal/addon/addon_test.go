package addon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"kongaddon/internal/chat"
	"kongaddon/internal/config"
	"kongaddon/internal/eventloop"
	"kongaddon/internal/features"
	"kongaddon/internal/layout"
	"kongaddon/internal/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHost records every page mutation.
type fakeHost struct {
	mu sync.Mutex

	texts      map[string]string
	frameWidth int
	messages   []string

	css      map[string]string
	shown    map[string]bool
	classes  map[string]bool
	inner    map[string]string
	titles   map[string]string
	inserted []string
	removed  []string
	moves    []string
	volumes  []float64
	applied  []layout.Dimensions
	centered int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		texts:      map[string]string{},
		frameWidth: 800,
		css:        map[string]string{},
		shown:      map[string]bool{},
		classes:    map[string]bool{},
		inner:      map[string]string{},
		titles:     map[string]string{},
	}
}

func (h *fakeHost) MessageCount(context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages), nil
}

func (h *fakeHost) LastMessage(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return "", nil
	}
	return h.messages[len(h.messages)-1], nil
}

func (h *fakeHost) ReplaceLastMessage(_ context.Context, expected, markup string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := len(h.messages) - 1
	if i < 0 || h.messages[i] != expected {
		return chat.ErrMessageChanged
	}
	h.messages[i] = markup
	return nil
}

func (h *fakeHost) InsertBefore(_ context.Context, anchor, markup string) error {
	return h.Insert(context.Background(), anchor, "beforebegin", markup)
}

func (h *fakeHost) SetVisible(_ context.Context, id string, visible bool) error {
	return h.Show(context.Background(), "#"+id, visible)
}

func (h *fakeHost) SetInnerHTML(_ context.Context, id, markup string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inner[id] = markup
	return nil
}

func (h *fakeHost) SetTitle(_ context.Context, id, title string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.titles[id] = title
	return nil
}

func (h *fakeHost) GameFrameWidth(context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frameWidth, nil
}

func (h *fakeHost) Apply(_ context.Context, d layout.Dimensions) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applied = append(h.applied, d)
	return nil
}

func (h *fakeHost) SetVolume(_ context.Context, v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volumes = append(h.volumes, v)
	return nil
}

func (h *fakeHost) Text(_ context.Context, selector string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.texts[selector], nil
}

func (h *fakeHost) Insert(_ context.Context, selector, position, markup string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inserted = append(h.inserted, position+" "+selector+" "+markup)
	return nil
}

func (h *fakeHost) Move(_ context.Context, selector, target, position string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.moves = append(h.moves, selector+" "+position+" "+target)
	return nil
}

func (h *fakeHost) Remove(_ context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, selector)
	return nil
}

func (h *fakeHost) Show(_ context.Context, selector string, visible bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown[selector] = visible
	return nil
}

func (h *fakeHost) SetClass(_ context.Context, selector, class string, on bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.classes[selector+"."+class] = on
	return nil
}

func (h *fakeHost) CSSRule(_ context.Context, selector, property, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.css[selector+"|"+property] = value
	return nil
}

func (h *fakeHost) Center(context.Context, string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.centered++
	return nil
}

func (h *fakeHost) lastVolume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.volumes) == 0 {
		return -1
	}
	return h.volumes[len(h.volumes)-1]
}

type harness struct {
	addon *Addon
	host  *fakeHost
	store *prefs.Store
	loop  *eventloop.Loop
}

func newHarness(t *testing.T, mutate func(*config.Config, *fakeHost, *prefs.Store)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Preferences.Backend = "memory"
	cfg.Layout.RetryInterval = "5ms"

	host := newFakeHost()
	host.texts[cfg.Browser.Selectors.GameTitle] = "  Gem Quest "
	store := prefs.New(prefs.NewMemoryBackend(), prefs.WithPrefix(cfg.Preferences.Prefix), prefs.WithContext("Gem Quest"))
	if mutate != nil {
		mutate(cfg, host, store)
	}

	loop := eventloop.New("test")
	t.Cleanup(loop.Close)

	a, err := New(cfg, Deps{Host: host, Store: store, Loop: loop})
	require.NoError(t, err)
	require.NoError(t, a.Start(t.Context()))
	return &harness{addon: a, host: host, store: store, loop: loop}
}

// on runs fn on the loop and waits for it.
func (h *harness) on(fn func()) {
	h.loop.Post(fn)
	h.loop.Sync()
}

func TestInstallDefaults(t *testing.T) {
	h := newHarness(t, nil)

	h.on(func() {
		assert.True(t, h.addon.Registry().HasPanel())
		assert.Equal(t, layout.Both, h.addon.Layout().Mode())
		assert.Equal(t, "Gem_Quest", h.store.Context())
	})

	host := h.host
	host.mu.Lock()
	defer host.mu.Unlock()

	assert.Contains(t, host.inner, features.PanelID)
	panel := host.inner[features.PanelID]
	assert.Less(t, strings.Index(panel, "forth_quicklinks"), strings.Index(panel, "forth_displaymode"))

	assert.Equal(t, "12px", host.css[textSizeSelectors[0]+"|font-size"])
	assert.Equal(t, "brightness(100%)", host.css[selGameFilter+"|filter"])
	assert.Equal(t, "none", host.css[selQuickLinkRest+"|display"])
	assert.Contains(t, host.removed, selFacebookLink)
	assert.Contains(t, host.removed, selCinematicLink)
	assert.Equal(t, 0.5, host.volumes[0])
	assert.True(t, host.classes["#"+idGameNChat+".active"])
	assert.False(t, host.classes["#"+idGameOnly+".active"])
	require.NotEmpty(t, host.applied)
	assert.Equal(t, 1103, host.applied[len(host.applied)-1].BoxWidth)
	assert.Contains(t, host.inserted, `beforebegin `+selQuickLinks+` <span class="onlyGameOrChat" style="display:none">Gem Quest</span>`)
}

func TestInstallRestoresPersistedGameOnly(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, _ *fakeHost, s *prefs.Store) {
		require.NoError(t, s.Set(prefs.KeyDisplayMode, int(layout.PrimaryOnly), 30, prefs.PerContext))
		require.NoError(t, s.Set(prefs.KeyVolumePing, 0.7, 30, prefs.PerContext))
	})

	h.on(func() {
		assert.Equal(t, layout.PrimaryOnly, h.addon.Layout().Mode())
		assert.Equal(t, 0.7, h.addon.Layout().Session().SavedVolume)
		d, ok := h.addon.Layout().LastApplied()
		require.True(t, ok)
		assert.Equal(t, 800, d.BoxWidth)
		assert.True(t, d.GameAtOrigin)
	})

	assert.Equal(t, 0.0, h.host.lastVolume())
	assert.Equal(t, 0.7, h.store.GetFloat(prefs.KeyVolumePing, prefs.PerContext, 0))

	h.host.mu.Lock()
	assert.Contains(t, h.host.moves, selPanel+" afterbegin "+selFeatureCell)
	assert.True(t, h.host.shown["#"+idFeatureRow])
	assert.False(t, h.host.shown[selQuickLinks])
	h.host.mu.Unlock()

	h.addon.ClickDisplayMode(layout.Both)
	h.loop.Sync()
	assert.Equal(t, 0.7, h.host.lastVolume())
	assert.Equal(t, int(layout.Both), h.store.GetInt(prefs.KeyDisplayMode, prefs.PerContext, 99))
}

func TestDeferredLayoutRetriesUntilFrameIsReady(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, host *fakeHost, s *prefs.Store) {
		host.frameWidth = 0
		require.NoError(t, s.Set(prefs.KeyDisplayMode, int(layout.PrimaryOnly), 30, prefs.PerContext))
	})

	h.on(func() { assert.True(t, h.addon.Layout().LayoutPending()) })

	h.host.mu.Lock()
	h.host.frameWidth = 640
	h.host.mu.Unlock()

	require.Eventually(t, func() bool {
		pending := true
		h.on(func() { pending = h.addon.Layout().LayoutPending() })
		return !pending
	}, 2*time.Second, 10*time.Millisecond)

	h.on(func() {
		d, ok := h.addon.Layout().LastApplied()
		require.True(t, ok)
		assert.Equal(t, 640, d.BoxWidth)
	})
}

func TestLockScreenAndUnreadMessages(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, host *fakeHost, _ *prefs.Store) {
		host.texts[cfg.Browser.Selectors.UnreadCount] = "3"
	})

	h.on(func() { assert.False(t, h.addon.Registry().IsVisible(features.UnreadMessages)) })

	h.addon.Dispatch(Event{Kind: "click", ID: idLockScreen})
	h.loop.Sync()

	h.on(func() { assert.True(t, h.addon.Registry().IsVisible(features.UnreadMessages)) })
	assert.True(t, h.store.GetBool(prefs.KeyLockScreen, prefs.PerContext, false))

	h.host.mu.Lock()
	assert.True(t, h.host.shown["#"+idFullscreen])
	assert.True(t, h.host.classes[selGameHolder+".game_ahead"])
	assert.Equal(t, "hidden", h.host.css[selBody+"|overflow"])
	assert.Equal(t, "0px", h.host.css[selGameHolder+"|padding-top"])
	assert.Equal(t, "3", h.host.inner[idUnreadCount])
	assert.Equal(t, 1, h.host.centered)
	h.host.mu.Unlock()

	h.addon.ToggleLockScreen()
	h.loop.Sync()
	h.on(func() { assert.False(t, h.addon.Registry().IsVisible(features.UnreadMessages)) })
	assert.False(t, h.store.GetBool(prefs.KeyLockScreen, prefs.PerContext, true))
}

func TestPersistedLockScreenIsRestored(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, _ *fakeHost, s *prefs.Store) {
		require.NoError(t, s.Set(prefs.KeyLockScreen, true, 30, prefs.PerContext))
	})
	h.host.mu.Lock()
	defer h.host.mu.Unlock()
	assert.True(t, h.host.shown["#"+idFullscreen])
	assert.Equal(t, iconLockOn, strings.TrimSuffix(strings.TrimPrefix(h.host.inner[idLockScreen], `<i class="`), `"></i>`))
}

func TestOnlinePlayersToggle(t *testing.T) {
	h := newHarness(t, nil)

	h.addon.ToggleOnlinePlayers()
	h.loop.Sync()
	assert.False(t, h.store.GetBool(prefs.KeyShowPlayers, prefs.Global, true))
	h.host.mu.Lock()
	assert.Equal(t, "none", h.host.css[selUsersInRoom+"|display"])
	assert.Equal(t, playersTitle(false), h.host.titles[idOnlinePlayers])
	h.host.mu.Unlock()

	h.addon.Dispatch(Event{Kind: "click", ID: idOnlinePlayers})
	h.loop.Sync()
	assert.True(t, h.store.GetBool(prefs.KeyShowPlayers, prefs.Global, false))
}

func TestTextSizeAndBrightness(t *testing.T) {
	h := newHarness(t, nil)

	h.addon.Dispatch(Event{Kind: "change", ID: idFontSize, Value: "16"})
	h.addon.SetTextSize(40)
	h.addon.Dispatch(Event{Kind: "change", ID: idFontSize, Value: "big"})
	h.addon.SetBrightness("80%")
	h.addon.Dispatch(Event{Kind: "change", ID: idBrightness, Value: "dim"})
	h.loop.Sync()

	assert.Equal(t, 16, h.store.GetInt(prefs.KeyFontSize, prefs.Global, 0))
	assert.Equal(t, "80%", h.store.GetString(prefs.KeyBrightness, prefs.PerContext, ""))

	h.host.mu.Lock()
	defer h.host.mu.Unlock()
	for _, sel := range textSizeSelectors {
		assert.Equal(t, "16px", h.host.css[sel+"|font-size"], sel)
	}
	assert.Equal(t, "brightness(80%)", h.host.css[selGameFilter+"|filter"])
}

func TestVolumeControls(t *testing.T) {
	h := newHarness(t, nil)

	h.addon.Dispatch(Event{Kind: "change", ID: idVolume, Value: "0.3"})
	h.loop.Sync()
	assert.Equal(t, 0.3, h.host.lastVolume())
	assert.Equal(t, 0.3, h.store.GetFloat(prefs.KeyVolumePing, prefs.PerContext, 0))

	h.addon.Dispatch(Event{Kind: "click", ID: idPingIcon})
	h.loop.Sync()
	assert.Equal(t, 0.0, h.host.lastVolume())
	h.host.mu.Lock()
	assert.Contains(t, h.host.inner[idPingIcon], iconMuted)
	h.host.mu.Unlock()

	h.addon.ToggleMute()
	h.loop.Sync()
	assert.Equal(t, 0.3, h.host.lastVolume())

	h.addon.SetVolume(4)
	h.loop.Sync()
	assert.Equal(t, 1.0, h.host.lastVolume())
}

func TestQuickLinksToggle(t *testing.T) {
	h := newHarness(t, nil)

	h.addon.ToggleQuickLinks()
	h.loop.Sync()
	h.host.mu.Lock()
	assert.Equal(t, "list-item", h.host.css[selQuickLinkRest+"|display"])
	h.host.mu.Unlock()

	h.addon.Dispatch(Event{Kind: "click", ID: idQuickLinks})
	h.loop.Sync()
	h.host.mu.Lock()
	assert.Equal(t, "none", h.host.css[selQuickLinkRest+"|display"])
	h.host.mu.Unlock()
}

func TestInactiveFeaturesIgnoreControls(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *fakeHost, _ *prefs.Store) {
		cfg.Features.Positions["textsize"] = -1
		cfg.Features.Positions["lockscreen"] = -1
	})

	h.addon.SetTextSize(16)
	h.addon.ToggleLockScreen()
	h.loop.Sync()

	assert.Equal(t, 0, h.store.GetInt(prefs.KeyFontSize, prefs.Global, 0))
	h.on(func() {
		assert.False(t, h.addon.Registry().Active(features.UnreadMessages))
	})
	h.host.mu.Lock()
	defer h.host.mu.Unlock()
	assert.NotContains(t, h.host.inner[features.PanelID], "forth_textsize")
	assert.NotContains(t, h.host.inner[features.PanelID], "forth_unreadmessages")
	assert.NotContains(t, h.host.shown, "#"+idFullscreen)
}

func TestChatEventsRewriteLastMessage(t *testing.T) {
	h := newHarness(t, nil)

	h.host.mu.Lock()
	h.host.messages = append(h.host.messages, "see [[Mana Potion]] and /accounts/bob")
	h.host.mu.Unlock()

	h.addon.Dispatch(Event{Kind: "chat"})
	h.loop.Sync()

	h.host.mu.Lock()
	got := h.host.messages[0]
	h.host.mu.Unlock()
	assert.Contains(t, got, `href="https://kongregate.fandom.com/wiki/Mana_Potion"`)
	assert.Contains(t, got, `href="https://www.kongregate.com/accounts/bob"`)

	h.on(func() {
		assert.Equal(t, 1, h.addon.Watcher().Stats().Rewrites)
		assert.Equal(t, 1, h.addon.Watcher().Tracked())
	})
}

func TestApplyConfigSwapsClassifier(t *testing.T) {
	h := newHarness(t, nil)

	reloaded := config.DefaultConfig()
	reloaded.Classifier.CrossLink.BaseURL = "https://wiki.example.org/"
	reloaded.Classifier.ProfileLink.Pattern = `(^|\s)(@@([\w-]+))`
	h.addon.ApplyConfig(reloaded)

	h.host.mu.Lock()
	h.host.messages = append(h.host.messages, "ask @@alice about /accounts/bob and [[Mana Potion]]")
	h.host.mu.Unlock()
	h.addon.Dispatch(Event{Kind: "chat"})
	h.loop.Sync()

	h.host.mu.Lock()
	got := h.host.messages[0]
	h.host.mu.Unlock()
	assert.Contains(t, got, "@alice</a>")
	assert.Contains(t, got, "/accounts/bob")
	assert.Contains(t, got, `href="https://wiki.example.org/Mana_Potion"`)
}

func TestApplyConfigKeepsClassifierOnBadPattern(t *testing.T) {
	h := newHarness(t, nil)

	bad := config.DefaultConfig()
	bad.Classifier.CrossLink.Pattern = `([`
	h.addon.ApplyConfig(bad)

	h.host.mu.Lock()
	h.host.messages = append(h.host.messages, "[[Mana Potion]]")
	h.host.mu.Unlock()
	h.addon.Dispatch(Event{Kind: "chat"})
	h.loop.Sync()

	h.host.mu.Lock()
	defer h.host.mu.Unlock()
	assert.Contains(t, h.host.messages[0], "Mana_Potion")
}

func TestNewRejectsBadPatterns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Classifier.ResourceLink.Pattern = `(`
	loop := eventloop.New("test")
	defer loop.Close()
	_, err := New(cfg, Deps{Host: newFakeHost(), Store: prefs.New(prefs.NewMemoryBackend()), Loop: loop})
	assert.Error(t, err)
}
