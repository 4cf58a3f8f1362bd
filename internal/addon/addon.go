// Package addon wires the registry, the layout orchestrator and the chat
// watcher to a page host and keeps every callback on one event loop.
package addon

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"kongaddon/internal/chat"
	"kongaddon/internal/classify"
	"kongaddon/internal/config"
	"kongaddon/internal/eventloop"
	"kongaddon/internal/features"
	"kongaddon/internal/layout"
	"kongaddon/internal/logging"
	"kongaddon/internal/prefs"
	"kongaddon/internal/rewrite"
)

// Host is everything the add-on needs from the page.
// Position arguments take insertAdjacentHTML values
// ("beforebegin", "afterbegin", "beforeend", "afterend").
type Host interface {
	chat.Container
	features.Surface
	layout.Viewport
	layout.Audio

	Text(ctx context.Context, selector string) (string, error)
	Insert(ctx context.Context, selector, position, markup string) error
	Move(ctx context.Context, selector, target, position string) error
	Remove(ctx context.Context, selector string) error
	Show(ctx context.Context, selector string, visible bool) error
	SetClass(ctx context.Context, selector, class string, on bool) error
	CSSRule(ctx context.Context, selector, property, value string) error
	Center(ctx context.Context, selector string) error
}

// Event is a page event reported by the host.
type Event struct {
	Kind  string // chat, click, change, unread, resize
	ID    string // element id for click and change
	Value string // new value for change
}

// Deps are the add-on's collaborators.
type Deps struct {
	Host  Host
	Store *prefs.Store
	Loop  *eventloop.Loop
}

// Addon is the installed add-on. All state below is owned by the loop.
type Addon struct {
	cfg   *config.Config
	host  Host
	store *prefs.Store
	loop  *eventloop.Loop
	ctx   context.Context

	registry *features.Registry
	session  *layout.Session
	layout   *layout.Orchestrator
	rewriter *rewrite.Rewriter
	watcher  *chat.Watcher

	// gameName is the trimmed title shown in single-region modes.
	gameName string

	locked         bool
	showPlayers    bool
	quickLinksOpen bool
	fontSize       int
	brightness     string
	installed      bool
}

// New builds the add-on from configuration. Nothing touches the page until Install.
func New(cfg *config.Config, deps Deps) (*Addon, error) {
	classifier, err := classify.FromConfig(cfg.Classifier, cfg.GetMatchTimeout())
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	a := &Addon{
		cfg:      cfg,
		host:     deps.Host,
		store:    deps.Store,
		loop:     deps.Loop,
		ctx:      context.Background(),
		registry: features.NewRegistry(deps.Host),
		rewriter: rewrite.New(classifier, rewrite.NewLinkRenderer(cfg.Classifier)),
	}
	a.watcher = chat.NewWatcher(deps.Host, a.rewriter)

	for _, d := range a.descriptors() {
		if err := a.registry.Register(d); err != nil {
			return nil, err
		}
	}

	a.session = layout.NewSession(layout.Defaults{
		BothWidth:         cfg.Layout.BothWidth,
		BothHeight:        cfg.Layout.BothHeight,
		GameWidth:         cfg.Layout.GameWidth,
		ChatWidth:         cfg.Layout.ChatWidth,
		EnlargedChatWidth: cfg.Layout.EnlargedChatWidth,
		MenuHeight:        cfg.Layout.MenuHeight,
	}, 0)
	a.layout = layout.New(a.session, layout.Deps{
		Features:  a.registry,
		Viewport:  deps.Host,
		Audio:     pingAudio{a},
		Indicator: indicator{a},
		Store:     deps.Store,
		Loop:      deps.Loop,
	}, layout.Options{
		RetryInterval: cfg.GetRetryInterval(),
		MaxRetries:    cfg.Layout.MaxRetries,
		TTLDays:       cfg.Preferences.TTLDays,
	})
	return a, nil
}

func (a *Addon) position(name features.Name, def int) int {
	if p, ok := a.cfg.Features.Positions[string(name)]; ok {
		return p
	}
	return def
}

func (a *Addon) descriptors() []features.Descriptor {
	lockActive := func() bool { return a.position(features.LockScreen, 1) >= 0 }
	return []features.Descriptor{
		{Name: features.QuickLinks, Position: a.position(features.QuickLinks, 0)},
		{Name: features.LockScreen, Position: a.position(features.LockScreen, 1)},
		{
			Name:     features.UnreadMessages,
			Position: a.position(features.UnreadMessages, 2),
			// the unread button only makes sense over the lock screen
			IsActive: func() bool { return a.position(features.UnreadMessages, 2) >= 0 && lockActive() },
		},
		{Name: features.OnlinePlayers, Position: a.position(features.OnlinePlayers, 3)},
		{Name: features.TextSize, Position: a.position(features.TextSize, 4), Title: "Select the text size of your choice"},
		{Name: features.Brightness, Position: a.position(features.Brightness, 5), Title: "Select the brightness of your choice"},
		{Name: features.Ping, Position: a.position(features.Ping, 6), Title: "Select the volume of your choice"},
		{Name: features.DisplayMode, Position: a.position(features.DisplayMode, 7)},
	}
}

// Registry exposes the feature registry.
func (a *Addon) Registry() *features.Registry { return a.registry }

// Layout exposes the orchestrator.
func (a *Addon) Layout() *layout.Orchestrator { return a.layout }

// Watcher exposes the chat watcher.
func (a *Addon) Watcher() *chat.Watcher { return a.watcher }

// Start runs Install on the loop and waits for it.
func (a *Addon) Start(ctx context.Context) error {
	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	if !a.loop.Post(func() {
		defer wg.Done()
		err = a.Install(ctx)
	}) {
		return fmt.Errorf("start: event loop closed")
	}
	wg.Wait()
	return err
}

// Install builds every control on the page and restores preferences.
// It must run on the loop.
func (a *Addon) Install(ctx context.Context) error {
	if a.installed {
		return nil
	}
	a.ctx = ctx
	timer := logging.StartTimer(logging.CategoryBoot, "install")
	defer timer.StopWithThreshold(a.cfg.GetNavigationTimeout())

	a.bindContext(ctx)

	persistedMode := a.store.GetInt(prefs.KeyDisplayMode, prefs.PerContext, int(layout.Both))
	a.session.Volume = a.store.GetFloat(prefs.KeyVolumePing, prefs.PerContext, 0.5)
	a.fontSize = a.store.GetInt(prefs.KeyFontSize, prefs.Global, 12)
	a.brightness = a.store.GetString(prefs.KeyBrightness, prefs.PerContext, "100%")
	a.showPlayers = a.store.GetBool(prefs.KeyShowPlayers, prefs.Global, true)
	lock := a.store.GetBool(prefs.KeyLockScreen, prefs.PerContext, false)

	a.installQuickLinks(ctx)

	if a.registry.ActiveCount() > 0 {
		if _, err := a.registry.AddContainerIn(ctx, a.cfg.Browser.Selectors.PanelAnchor); err != nil {
			return fmt.Errorf("install panel: %w", err)
		}
		if _, err := a.registry.AddSubContainers(ctx); err != nil {
			return fmt.Errorf("install panel: %w", err)
		}
	}

	a.installLockScreen(ctx, lock)
	a.installOnlinePlayers(ctx)
	a.installTextSize(ctx)
	a.installBrightness(ctx)
	a.installPing(ctx)
	a.installDisplayMode(ctx, persistedMode)
	a.installUnreadMessages(ctx)

	a.installed = true
	logging.Boot("add-on installed: %d active features, mode %s", a.registry.ActiveCount(), a.layout.Mode())
	return nil
}

// bindContext names the hosted game for per-context preferences.
func (a *Addon) bindContext(ctx context.Context) {
	name := a.cfg.Context
	if name == "" {
		title, err := a.host.Text(ctx, a.cfg.Browser.Selectors.GameTitle)
		if err != nil {
			logging.BootWarn("read game title: %v", err)
		}
		name = title
	}
	a.gameName = strings.TrimSpace(name)
	a.store.SetContext(a.gameName)
	logging.Boot("preference context %q", a.store.Context())
}

// Dispatch posts a host event onto the loop.
func (a *Addon) Dispatch(ev Event) {
	a.loop.Post(func() { a.handle(ev) })
}

func (a *Addon) handle(ev Event) {
	ctx := a.ctx
	switch ev.Kind {
	case "chat":
		a.watcher.Notify(ctx)
	case "unread":
		a.updateUnreadMessages(ctx)
	case "resize":
		a.onResize(ctx)
	case "click":
		a.click(ctx, ev.ID)
	case "change":
		a.change(ctx, ev.ID, ev.Value)
	default:
		logging.Get(logging.CategoryBrowser).Debug("ignored event %s#%s", ev.Kind, ev.ID)
	}
}

func (a *Addon) click(ctx context.Context, id string) {
	switch id {
	case idLockScreen:
		a.toggleLockScreen(ctx)
	case idOnlinePlayers:
		a.toggleOnlinePlayers(ctx)
	case idQuickLinks:
		a.toggleQuickLinks(ctx)
	case idPingIcon:
		a.toggleMute(ctx)
	case idGameOnly:
		a.clickDisplayMode(ctx, layout.PrimaryOnly)
	case idGameNChat:
		a.clickDisplayMode(ctx, layout.Both)
	case idChatOnly:
		a.clickDisplayMode(ctx, layout.CompanionOnly)
	case idUnread:
		a.openUnreadMessages(ctx)
	}
}

func (a *Addon) change(ctx context.Context, id, value string) {
	switch id {
	case idFontSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			logging.Get(logging.CategoryFeatures).Warn("text size %q: %v", value, err)
			return
		}
		a.setTextSize(ctx, n)
	case idBrightness:
		a.setBrightness(ctx, value)
	case idVolume:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			logging.Get(logging.CategoryFeatures).Warn("volume %q: %v", value, err)
			return
		}
		a.setVolume(ctx, v)
	}
}

// ApplyConfig swaps in reloaded classifier patterns, link base URLs and log settings.
func (a *Addon) ApplyConfig(cfg *config.Config) {
	a.loop.Post(func() {
		classifier, err := classify.FromConfig(cfg.Classifier, cfg.GetMatchTimeout())
		if err != nil {
			logging.Get(logging.CategoryConfig).Warn("reload classifier: %v", err)
			return
		}
		a.rewriter.SetClassifier(classifier)
		a.rewriter.SetRenderer(rewrite.NewLinkRenderer(cfg.Classifier))
		logging.Configure(cfg.Logging.Options())
		a.cfg.Classifier = cfg.Classifier
		a.cfg.Logging = cfg.Logging
		logging.Get(logging.CategoryConfig).Info("applied reloaded classifier and logging config")
	})
}
