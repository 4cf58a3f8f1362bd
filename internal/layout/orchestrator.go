package layout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kongaddon/internal/features"
	"kongaddon/internal/logging"
	"kongaddon/internal/prefs"
)

// Viewport resizes the game and chat regions.
type Viewport interface {
	// GameFrameWidth measures the rendered game frame. 0 means not laid out yet.
	GameFrameWidth(ctx context.Context) (int, error)
	// Apply sets the geometry. It returns ErrTargetNotReady while anchors are missing.
	Apply(ctx context.Context, d Dimensions) error
}

// Audio controls the chat notification sound.
type Audio interface {
	SetVolume(ctx context.Context, v float64) error
}

// Indicator reflects the current mode in the controls.
type Indicator interface {
	ShowMode(ctx context.Context, m DisplayMode) error
}

// Visibility is the slice of the feature registry transitions use.
type Visibility interface {
	Show(ctx context.Context, name features.Name)
	Hide(ctx context.Context, name features.Name)
	Active(name features.Name) bool
}

// Store persists mode and volume.
type Store interface {
	Set(key string, value any, ttlDays int, scope prefs.Scope) error
}

// Scheduler runs fn later on the event loop.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Features  Visibility
	Viewport  Viewport
	Audio     Audio
	Indicator Indicator
	Store     Store
	Loop      Scheduler
}

// Options tune deferred layout and persistence.
type Options struct {
	RetryInterval time.Duration
	MaxRetries    int
	TTLDays       int
}

// visibility is the per-mode feature table.
var visibility = map[DisplayMode]map[features.Name]bool{
	Both:          {features.Brightness: true, features.OnlinePlayers: true, features.TextSize: true},
	PrimaryOnly:   {features.Brightness: true, features.OnlinePlayers: false, features.TextSize: false},
	CompanionOnly: {features.Brightness: false, features.OnlinePlayers: true, features.TextSize: true},
}

// Orchestrator runs display mode transitions. Every method must be called
// from the event loop.
type Orchestrator struct {
	session *Session
	deps    Deps
	opts    Options

	layoutGen   int
	pending     bool
	lastApplied *Dimensions
	retries     int
}

// New creates an orchestrator over session.
func New(session *Session, deps Deps, opts Options) *Orchestrator {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	if opts.TTLDays <= 0 {
		opts.TTLDays = 30
	}
	return &Orchestrator{session: session, deps: deps, opts: opts}
}

// Session returns the shared session state.
func (o *Orchestrator) Session() *Session { return o.session }

// Mode returns the current display mode.
func (o *Orchestrator) Mode() DisplayMode { return o.session.Mode }

// LayoutPending reports whether a deferred layout is still waiting on its target.
func (o *Orchestrator) LayoutPending() bool { return o.pending }

// LastApplied returns the geometry most recently applied to the viewport.
func (o *Orchestrator) LastApplied() (Dimensions, bool) {
	if o.lastApplied == nil {
		return Dimensions{}, false
	}
	return *o.lastApplied, true
}

// Retries counts deferred layout attempts since startup.
func (o *Orchestrator) Retries() int { return o.retries }

// Transition switches to mode. Switching to the current mode does nothing
// and returns false.
func (o *Orchestrator) Transition(ctx context.Context, mode DisplayMode) (bool, error) {
	if _, ok := ParseDisplayMode(int(mode)); !ok {
		return false, fmt.Errorf("transition: unknown display mode %d", int(mode))
	}
	if mode == o.session.Mode && o.session.Restored {
		return false, nil
	}
	o.apply(ctx, mode)
	return true, nil
}

// Restore applies the persisted mode at startup, including Both.
func (o *Orchestrator) Restore(ctx context.Context, persisted int) DisplayMode {
	mode, ok := ParseDisplayMode(persisted)
	if !ok {
		logging.LayoutWarn("persisted display mode %d unknown, using %s", persisted, Both)
	}
	o.apply(ctx, mode)
	return mode
}

func (o *Orchestrator) apply(ctx context.Context, mode DisplayMode) {
	from := o.session.Mode
	logging.Layout("transition %s -> %s", from, mode)

	// 1. feature visibility
	for name, show := range visibility[mode] {
		if show {
			o.deps.Features.Show(ctx, name)
		} else {
			o.deps.Features.Hide(ctx, name)
		}
	}

	// 2. geometry, deferred while the target is missing
	o.layoutGen++
	o.applyLayout(ctx, mode, o.layoutGen, 0)

	// 3. ping volume
	if o.deps.Features.Active(features.Ping) {
		switch {
		case mode == PrimaryOnly && (from != PrimaryOnly || !o.session.Restored):
			o.session.SavedVolume = max(o.session.Volume, 0)
			o.session.Volume = 0
			o.pushVolume(ctx, false)
		case mode != PrimaryOnly && from == PrimaryOnly && o.session.SavedVolume > 0:
			o.session.Volume = o.session.SavedVolume
			o.session.SavedVolume = 0
			o.pushVolume(ctx, false)
		}
	}

	// 4. persist
	if err := o.deps.Store.Set(prefs.KeyDisplayMode, int(mode), o.opts.TTLDays, prefs.PerContext); err != nil {
		logging.LayoutWarn("persist display mode: %v", err)
	}

	// 5. indicator
	if err := o.deps.Indicator.ShowMode(ctx, mode); err != nil {
		logging.LayoutWarn("mode indicator: %v", err)
	}

	o.session.Mode = mode
	o.session.Restored = true
}

func (o *Orchestrator) applyLayout(ctx context.Context, mode DisplayMode, gen, attempt int) {
	err := o.tryLayout(ctx, mode)
	if err == nil {
		o.pending = false
		return
	}
	if !errors.Is(err, ErrTargetNotReady) {
		o.pending = false
		logging.LayoutWarn("apply %s layout: %v", mode, err)
		return
	}
	if attempt >= o.opts.MaxRetries {
		o.pending = false
		logging.LayoutWarn("apply %s layout: gave up after %d retries", mode, attempt)
		return
	}

	o.pending = true
	logging.LayoutDebug("%s layout target not ready, retry %d in %v", mode, attempt+1, o.opts.RetryInterval)
	o.deps.Loop.After(o.opts.RetryInterval, func() {
		if gen != o.layoutGen {
			return // superseded by a newer transition
		}
		o.retries++
		o.applyLayout(ctx, mode, gen, attempt+1)
	})
}

func (o *Orchestrator) tryLayout(ctx context.Context, mode DisplayMode) error {
	width := 0
	if mode == PrimaryOnly {
		w, err := o.deps.Viewport.GameFrameWidth(ctx)
		if err != nil {
			return err
		}
		if w <= 0 {
			return ErrTargetNotReady
		}
		width = w
	}
	dims := o.session.Target(mode, width)
	if err := o.deps.Viewport.Apply(ctx, dims); err != nil {
		return err
	}
	o.lastApplied = &dims
	return nil
}

// SetVolume selects a new ping volume and remembers the previous one.
func (o *Orchestrator) SetVolume(ctx context.Context, v float64) {
	o.session.SavedVolume = o.session.Volume
	o.session.Volume = clampVolume(v)
	o.pushVolume(ctx, true)
}

// ToggleMute swaps the current volume with the saved one.
func (o *Orchestrator) ToggleMute(ctx context.Context) {
	if o.session.Volume == 0 {
		o.session.Volume = o.session.SavedVolume
	} else {
		o.session.SavedVolume = o.session.Volume
		o.session.Volume = 0
	}
	o.pushVolume(ctx, true)
}

// pushVolume applies the session volume. Mode-driven mutes pass persist=false.
func (o *Orchestrator) pushVolume(ctx context.Context, persist bool) {
	v := o.session.Volume
	if err := o.deps.Audio.SetVolume(ctx, v); err != nil {
		logging.LayoutWarn("set volume %.2f: %v", v, err)
	}
	if !persist {
		return
	}
	if err := o.deps.Store.Set(prefs.KeyVolumePing, v, o.opts.TTLDays, prefs.PerContext); err != nil {
		logging.LayoutWarn("persist volume: %v", err)
	}
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}
