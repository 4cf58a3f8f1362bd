// Package features keeps the registry of optional UI modules.
//
// Every mutation of a feature goes through With, which runs only for a
// registered and active feature. Callers never test for presence themselves.
package features

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"kongaddon/internal/logging"

	"golang.org/x/net/html"
)

// ErrNotRegistered is returned when an operation names an unknown feature.
var ErrNotRegistered = errors.New("feature not registered")

// Name is one of the closed set of feature names.
type Name string

const (
	QuickLinks     Name = "quickLinks"
	LockScreen     Name = "lockscreen"
	OnlinePlayers  Name = "onlineplayers"
	TextSize       Name = "textsize"
	Brightness     Name = "brightness"
	Ping           Name = "ping"
	DisplayMode    Name = "displayMode"
	UnreadMessages Name = "unreadMessages"
)

// Names lists every feature name.
var Names = []Name{QuickLinks, LockScreen, OnlinePlayers, TextSize, Brightness, Ping, DisplayMode, UnreadMessages}

// Parse validates a feature name.
func Parse(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// PanelID is the id of the aggregate panel.
const PanelID = "forth_features"

// Surface is the host side of the registry.
type Surface interface {
	// InsertBefore inserts markup as a sibling right before the anchor selector.
	InsertBefore(ctx context.Context, anchor, markup string) error
	// SetVisible shows or hides the element with the given id.
	SetVisible(ctx context.Context, id string, visible bool) error
	// SetInnerHTML replaces the children of the element with the given id.
	SetInnerHTML(ctx context.Context, id, markup string) error
	// SetTitle sets the title attribute of the element with the given id.
	SetTitle(ctx context.Context, id, title string) error
}

// Descriptor is the static part of a feature.
type Descriptor struct {
	Name     Name
	DivName  string
	Position int
	Title    string
	// IsActive defaults to Position >= 0.
	IsActive func() bool
	// Render builds the initial content of the sub-container. May be nil.
	Render func() *html.Node
}

// Feature is a registered descriptor plus its visibility.
type Feature struct {
	Descriptor
	visible  bool
	rendered bool
}

// Active evaluates the activation predicate.
func (f *Feature) Active() bool {
	if f.IsActive != nil {
		return f.IsActive()
	}
	return f.Position >= 0
}

// Visible reports the last visibility applied.
func (f *Feature) Visible() bool { return f.visible }

// Registry holds the features and the panel they render into.
type Registry struct {
	surface  Surface
	features map[Name]*Feature
	panel    bool
}

// NewRegistry creates an empty registry over surface.
func NewRegistry(surface Surface) *Registry {
	return &Registry{surface: surface, features: make(map[Name]*Feature)}
}

// Register adds a descriptor. Each name registers once.
func (r *Registry) Register(d Descriptor) error {
	if _, ok := Parse(string(d.Name)); !ok {
		return fmt.Errorf("register %q: unknown feature name", d.Name)
	}
	if _, dup := r.features[d.Name]; dup {
		return fmt.Errorf("register %s: already registered", d.Name)
	}
	if d.DivName == "" {
		d.DivName = "forth_" + strings.ToLower(string(d.Name))
	}
	r.features[d.Name] = &Feature{Descriptor: d}
	logging.FeaturesDebug("registered %s at position %d", d.Name, d.Position)
	return nil
}

// Lookup returns the feature or false.
func (r *Registry) Lookup(name Name) (*Feature, bool) {
	f, ok := r.features[name]
	return f, ok
}

// With runs fn only when name is registered and active, and reports whether it ran.
func (r *Registry) With(name Name, fn func(*Feature)) bool {
	f, ok := r.features[name]
	if !ok || !f.Active() {
		return false
	}
	fn(f)
	return true
}

// Active reports whether name is registered and active.
func (r *Registry) Active(name Name) bool {
	return r.With(name, func(*Feature) {})
}

// ActiveCount counts descriptors with a non-negative position.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, f := range r.features {
		if f.Position >= 0 {
			n++
		}
	}
	return n
}

// Ordered returns the active features by ascending position.
func (r *Registry) Ordered() []*Feature {
	var out []*Feature
	for _, f := range r.features {
		if f.Position >= 0 && f.Active() {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// HasPanel reports whether the aggregate panel was created.
func (r *Registry) HasPanel() bool { return r.panel }

// AddContainerIn creates the aggregate panel before anchor. It does nothing
// when the panel already exists or no feature is active.
func (r *Registry) AddContainerIn(ctx context.Context, anchor string) (bool, error) {
	if r.panel || r.ActiveCount() == 0 {
		return false, nil
	}
	markup, err := renderNode(Element("div", Attr{"id", PanelID}))
	if err != nil {
		return false, err
	}
	if err := r.surface.InsertBefore(ctx, anchor, markup); err != nil {
		return false, fmt.Errorf("insert panel before %s: %w", anchor, err)
	}
	r.panel = true
	logging.Features("panel created before %s", anchor)
	return true, nil
}

// AddSubContainers renders one sub-container per active feature into the
// panel, in ascending position order, and returns the names rendered.
func (r *Registry) AddSubContainers(ctx context.Context) ([]Name, error) {
	if !r.panel {
		return nil, fmt.Errorf("add sub-containers: panel %s missing", PanelID)
	}

	var names []Name
	var b strings.Builder
	for _, f := range r.Ordered() {
		div := Element("div", Attr{"id", f.DivName}, Attr{"class", "forth_feature"})
		if f.Title != "" {
			div.Attr = append(div.Attr, html.Attribute{Key: "title", Val: f.Title})
		}
		if f.Render != nil {
			if child := f.Render(); child != nil {
				div.AppendChild(child)
			}
		}
		if err := html.Render(&b, div); err != nil {
			return nil, fmt.Errorf("render %s: %w", f.Name, err)
		}
		f.rendered = true
		f.visible = true
		names = append(names, f.Name)
	}

	if err := r.surface.SetInnerHTML(ctx, PanelID, b.String()); err != nil {
		return nil, fmt.Errorf("fill panel: %w", err)
	}
	logging.Features("rendered %d sub-containers", len(names))
	return names, nil
}

// Show makes a feature's sub-container visible. Unregistered or inactive
// features are left alone.
func (r *Registry) Show(ctx context.Context, name Name) {
	r.setVisible(ctx, name, true)
}

// Hide hides a feature's sub-container. Unregistered or inactive features
// are left alone.
func (r *Registry) Hide(ctx context.Context, name Name) {
	r.setVisible(ctx, name, false)
}

func (r *Registry) setVisible(ctx context.Context, name Name, visible bool) {
	r.With(name, func(f *Feature) {
		if err := r.surface.SetVisible(ctx, f.DivName, visible); err != nil {
			logging.Get(logging.CategoryFeatures).Warn("%s visible=%v: %v", name, visible, err)
			return
		}
		f.visible = visible
	})
}

// IsVisible reports the visibility flag; false for unknown features.
func (r *Registry) IsVisible(name Name) bool {
	f, ok := r.features[name]
	return ok && f.visible
}

// AddDiv replaces the content of a feature's sub-container.
func (r *Registry) AddDiv(ctx context.Context, name Name, markup string) error {
	var err error
	if !r.With(name, func(f *Feature) {
		err = r.surface.SetInnerHTML(ctx, f.DivName, markup)
	}) {
		return fmt.Errorf("add div %s: %w", name, ErrNotRegistered)
	}
	return err
}

// AddNode renders node into a feature's sub-container.
func (r *Registry) AddNode(ctx context.Context, name Name, nodes ...*html.Node) error {
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
	}
	return r.AddDiv(ctx, name, b.String())
}

// SetTitle sets the hover title of a feature's sub-container.
func (r *Registry) SetTitle(ctx context.Context, name Name, title string) error {
	var err error
	if !r.With(name, func(f *Feature) {
		f.Title = title
		err = r.surface.SetTitle(ctx, f.DivName, title)
	}) {
		return fmt.Errorf("set title %s: %w", name, ErrNotRegistered)
	}
	return err
}
