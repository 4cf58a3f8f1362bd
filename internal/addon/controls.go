package addon

import (
	"context"
	"strconv"
	"strings"

	"kongaddon/internal/features"
	"kongaddon/internal/layout"
	"kongaddon/internal/logging"
	"kongaddon/internal/prefs"

	"golang.org/x/net/html"
)

// validBrightness accepts "<n>%" with n in 1..999.
func validBrightness(v string) bool {
	n, err := strconv.Atoi(strings.TrimSuffix(v, "%"))
	return err == nil && strings.HasSuffix(v, "%") && n > 0 && n < 1000
}

func (a *Addon) warn(op string, err error) {
	if err != nil {
		logging.Get(logging.CategoryFeatures).Warn("%s: %v", op, err)
	}
}

func (a *Addon) persist(key string, value any, scope prefs.Scope) {
	if err := a.store.Set(key, value, a.cfg.Preferences.TTLDays, scope); err != nil {
		logging.PrefsWarn("persist %s: %v", key, err)
	}
}

func (a *Addon) setButton(ctx context.Context, id, icon, title string) {
	a.warn("icon "+id, a.host.SetInnerHTML(ctx, id, features.Render(features.Icon(icon))))
	a.warn("title "+id, a.host.SetTitle(ctx, id, title))
}

// ---------------------------------------------------------------------------
// install
// ---------------------------------------------------------------------------

func (a *Addon) installQuickLinks(ctx context.Context) {
	a.registry.With(features.QuickLinks, func(*features.Feature) {
		item := features.Element("li")
		item.AppendChild(features.Button(idQuickLinks, "Show the quick links", features.Icon(quickLinksIcon(false))))
		a.warn("quick links button", a.host.Insert(ctx, selQuickLinks, "afterbegin", features.Render(item)))
		a.warn("remove facebook link", a.host.Remove(ctx, selFacebookLink))
		a.warn("collapse quick links", a.host.CSSRule(ctx, selQuickLinkRest, "display", "none"))
	})
}

func (a *Addon) installLockScreen(ctx context.Context, lock bool) {
	a.registry.With(features.LockScreen, func(*features.Feature) {
		overlay := features.Element("div", features.Attr{Key: "id", Val: idFullscreen}, features.Attr{Key: "style", Val: "display:none"})
		a.warn("lock overlay", a.host.Insert(ctx, selBody, "beforeend", features.Render(overlay)))
		a.warn("lock button", a.registry.AddNode(ctx, features.LockScreen,
			features.Button(idLockScreen, lockTitle(false), features.Icon(lockIcon(false)))))
		a.warn("remove cinematic link", a.host.Remove(ctx, selCinematicLink))
		if lock {
			a.toggleLockScreen(ctx)
		}
	})
}

func (a *Addon) installOnlinePlayers(ctx context.Context) {
	a.registry.With(features.OnlinePlayers, func(*features.Feature) {
		a.warn("players button", a.registry.AddNode(ctx, features.OnlinePlayers,
			features.Button(idOnlinePlayers, playersTitle(a.showPlayers), features.Icon(playersIcon(a.showPlayers)))))
		if !a.showPlayers {
			a.warn("hide players", a.host.CSSRule(ctx, selUsersInRoom, "display", "none"))
		}
	})
}

func (a *Addon) installTextSize(ctx context.Context) {
	a.registry.With(features.TextSize, func(f *features.Feature) {
		a.warn("text size select", a.registry.AddNode(ctx, features.TextSize,
			features.Select(idFontSize, iconTextSize, fontSizeOptions(a.fontSize))...))
		a.warn("text size title", a.registry.SetTitle(ctx, features.TextSize, f.Title))
		a.applyTextSize(ctx)
	})
}

func (a *Addon) installBrightness(ctx context.Context) {
	a.registry.With(features.Brightness, func(f *features.Feature) {
		a.warn("brightness select", a.registry.AddNode(ctx, features.Brightness,
			features.Select(idBrightness, iconBrightness, brightnessOptions(a.brightness))...))
		a.warn("brightness title", a.registry.SetTitle(ctx, features.Brightness, f.Title))
		a.applyBrightness(ctx)
	})
}

func (a *Addon) installPing(ctx context.Context) {
	a.registry.With(features.Ping, func(f *features.Feature) {
		v := a.session.Volume
		icon := features.Element("span", features.Attr{Key: "id", Val: idPingIcon}, features.Attr{Key: "title", Val: "Mute or unmute"})
		icon.AppendChild(features.Icon(volumeIcon(v)))
		sel := features.Select(idVolume, volumeIcon(v), volumeOptions(v))
		a.warn("ping select", a.registry.AddNode(ctx, features.Ping, icon, sel[1]))
		a.warn("ping title", a.registry.SetTitle(ctx, features.Ping, f.Title))
		a.warn("ping volume", a.host.SetVolume(ctx, v))
	})
}

func (a *Addon) installDisplayMode(ctx context.Context, persisted int) {
	if !a.registry.With(features.DisplayMode, func(*features.Feature) {
		nodes := make([]*html.Node, 0, len(modeButtons))
		for _, b := range modeButtons {
			nodes = append(nodes, features.Button(b.id, b.title, features.Icon(b.icon)))
		}
		a.warn("mode buttons", a.registry.AddNode(ctx, features.DisplayMode, nodes...))

		row := features.Element("tr", features.Attr{Key: "id", Val: idFeatureRow}, features.Attr{Key: "style", Val: "display:none"})
		row.AppendChild(features.Element("td", features.Attr{Key: "colspan", Val: "2"}))
		a.warn("feature row", a.host.Insert(ctx, selGameTableRow, "afterend", features.Render(row)))

		name := features.Element("span", features.Attr{Key: "class", Val: "onlyGameOrChat"}, features.Attr{Key: "style", Val: "display:none"})
		name.AppendChild(features.Text(a.gameName))
		a.warn("game name", a.host.Insert(ctx, selQuickLinks, "beforebegin", features.Render(name)))

		a.layout.Restore(ctx, persisted)
	}) {
		logging.Features("display mode inactive, layout stays %s", a.layout.Mode())
	}
}

func (a *Addon) installUnreadMessages(ctx context.Context) {
	a.registry.With(features.UnreadMessages, func(*features.Feature) {
		count := features.Element("span", features.Attr{Key: "id", Val: idUnreadCount})
		a.warn("unread button", a.registry.AddNode(ctx, features.UnreadMessages,
			features.Button(idUnread, "Open your messages", features.Icon(iconUnread), count)))
		a.registry.Hide(ctx, features.UnreadMessages)
		a.updateUnreadMessages(ctx)
	})
}

// ---------------------------------------------------------------------------
// controls
// ---------------------------------------------------------------------------

// ToggleLockScreen flips the lock screen.
func (a *Addon) ToggleLockScreen() { a.loop.Post(func() { a.toggleLockScreen(a.ctx) }) }

// ToggleOnlinePlayers flips the online players list.
func (a *Addon) ToggleOnlinePlayers() { a.loop.Post(func() { a.toggleOnlinePlayers(a.ctx) }) }

// ToggleQuickLinks expands or collapses the quick links.
func (a *Addon) ToggleQuickLinks() { a.loop.Post(func() { a.toggleQuickLinks(a.ctx) }) }

// SetTextSize selects a chat font size in pixels.
func (a *Addon) SetTextSize(px int) { a.loop.Post(func() { a.setTextSize(a.ctx, px) }) }

// SetBrightness selects a game brightness such as "80%".
func (a *Addon) SetBrightness(v string) { a.loop.Post(func() { a.setBrightness(a.ctx, v) }) }

// SetVolume selects a ping volume in [0,1].
func (a *Addon) SetVolume(v float64) { a.loop.Post(func() { a.setVolume(a.ctx, v) }) }

// ToggleMute mutes or restores the ping volume.
func (a *Addon) ToggleMute() { a.loop.Post(func() { a.toggleMute(a.ctx) }) }

// ClickDisplayMode switches the display mode.
func (a *Addon) ClickDisplayMode(m layout.DisplayMode) {
	a.loop.Post(func() { a.clickDisplayMode(a.ctx, m) })
}

// UpdateUnreadMessages refreshes the unread counter.
func (a *Addon) UpdateUnreadMessages() { a.loop.Post(func() { a.updateUnreadMessages(a.ctx) }) }

func (a *Addon) toggleLockScreen(ctx context.Context) {
	a.registry.With(features.LockScreen, func(*features.Feature) {
		a.locked = !a.locked
		overflow, padding := "", "4px"
		if a.locked {
			overflow, padding = "hidden", "0px"
		}
		a.warn("lock overlay", a.host.Show(ctx, "#"+idFullscreen, a.locked))
		a.warn("game ahead", a.host.SetClass(ctx, selGameHolder, "game_ahead", a.locked))
		a.warn("body overflow", a.host.CSSRule(ctx, selBody, "overflow", overflow))
		a.warn("game padding", a.host.CSSRule(ctx, selGameHolder, "padding-top", padding))
		a.setButton(ctx, idLockScreen, lockIcon(a.locked), lockTitle(a.locked))
		if a.locked {
			a.warn("center game", a.host.Center(ctx, selGameHolder))
		}
		a.persist(prefs.KeyLockScreen, a.locked, prefs.PerContext)
		logging.Features("lock screen %v", a.locked)
		a.updateUnreadMessages(ctx)
	})
}

func (a *Addon) toggleOnlinePlayers(ctx context.Context) {
	a.registry.With(features.OnlinePlayers, func(*features.Feature) {
		a.showPlayers = !a.showPlayers
		display := "none"
		if a.showPlayers {
			display = ""
		}
		a.warn("players list", a.host.CSSRule(ctx, selUsersInRoom, "display", display))
		a.setButton(ctx, idOnlinePlayers, playersIcon(a.showPlayers), playersTitle(a.showPlayers))
		a.persist(prefs.KeyShowPlayers, a.showPlayers, prefs.Global)
	})
}

func (a *Addon) toggleQuickLinks(ctx context.Context) {
	a.registry.With(features.QuickLinks, func(*features.Feature) {
		a.quickLinksOpen = !a.quickLinksOpen
		display, title := "none", "Show the quick links"
		if a.quickLinksOpen {
			display, title = "list-item", "Hide the quick links"
		}
		a.warn("quick links", a.host.CSSRule(ctx, selQuickLinkRest, "display", display))
		a.setButton(ctx, idQuickLinks, quickLinksIcon(a.quickLinksOpen), title)
	})
}

func (a *Addon) setTextSize(ctx context.Context, px int) {
	a.registry.With(features.TextSize, func(*features.Feature) {
		if px < fontSizeExtra || px > fontSizeMax {
			logging.Get(logging.CategoryFeatures).Warn("text size %dpx out of range", px)
			return
		}
		a.fontSize = px
		a.applyTextSize(ctx)
		a.persist(prefs.KeyFontSize, px, prefs.Global)
	})
}

func (a *Addon) applyTextSize(ctx context.Context) {
	size := strconv.Itoa(a.fontSize) + "px"
	for _, sel := range textSizeSelectors {
		a.warn("text size "+sel, a.host.CSSRule(ctx, sel, "font-size", size))
	}
}

func (a *Addon) setBrightness(ctx context.Context, v string) {
	a.registry.With(features.Brightness, func(*features.Feature) {
		v = strings.TrimSpace(v)
		if !validBrightness(v) {
			logging.Get(logging.CategoryFeatures).Warn("brightness %q rejected", v)
			return
		}
		a.brightness = v
		a.applyBrightness(ctx)
		a.persist(prefs.KeyBrightness, v, prefs.PerContext)
	})
}

func (a *Addon) applyBrightness(ctx context.Context) {
	a.warn("brightness", a.host.CSSRule(ctx, selGameFilter, "filter", "brightness("+a.brightness+")"))
}

func (a *Addon) setVolume(ctx context.Context, v float64) {
	a.registry.With(features.Ping, func(*features.Feature) {
		a.layout.SetVolume(ctx, v)
	})
}

func (a *Addon) toggleMute(ctx context.Context) {
	a.registry.With(features.Ping, func(*features.Feature) {
		a.layout.ToggleMute(ctx)
	})
}

func (a *Addon) clickDisplayMode(ctx context.Context, m layout.DisplayMode) {
	a.registry.With(features.DisplayMode, func(*features.Feature) {
		changed, err := a.layout.Transition(ctx, m)
		if err != nil {
			logging.LayoutWarn("display mode click: %v", err)
			return
		}
		if !changed {
			logging.LayoutDebug("display mode %s already applied", m)
		}
	})
}

func (a *Addon) updateUnreadMessages(ctx context.Context) {
	a.registry.With(features.UnreadMessages, func(*features.Feature) {
		text, err := a.host.Text(ctx, a.cfg.Browser.Selectors.UnreadCount)
		if err != nil {
			a.warn("unread count", err)
			return
		}
		n, _ := strconv.Atoi(strings.TrimSpace(text))
		if n > 0 && a.locked {
			a.warn("unread text", a.host.SetInnerHTML(ctx, idUnreadCount, strconv.Itoa(n)))
			a.registry.Show(ctx, features.UnreadMessages)
			return
		}
		a.registry.Hide(ctx, features.UnreadMessages)
	})
}

func (a *Addon) openUnreadMessages(ctx context.Context) {
	a.registry.With(features.UnreadMessages, func(*features.Feature) {
		a.registry.Hide(ctx, features.UnreadMessages)
		a.warn("open messages", a.host.SetClass(ctx, "#my-messages-link", "open", true))
	})
}

func (a *Addon) onResize(ctx context.Context) {
	if a.locked {
		a.warn("center game", a.host.Center(ctx, selGameHolder))
	}
}

// ---------------------------------------------------------------------------
// layout collaborators
// ---------------------------------------------------------------------------

// pingAudio keeps the ping icon in step with the volume.
type pingAudio struct{ a *Addon }

func (p pingAudio) SetVolume(ctx context.Context, v float64) error {
	if err := p.a.host.SetVolume(ctx, v); err != nil {
		return err
	}
	p.a.warn("ping icon", p.a.host.SetInnerHTML(ctx, idPingIcon, features.Render(features.Icon(volumeIcon(v)))))
	return nil
}

// indicator highlights the mode button and moves the panel next to
// whichever region stays visible.
type indicator struct{ a *Addon }

func (i indicator) ShowMode(ctx context.Context, m layout.DisplayMode) error {
	a := i.a
	for _, b := range modeButtons {
		if err := a.host.SetClass(ctx, "#"+b.id, "active", b.mode == m); err != nil {
			return err
		}
	}

	single := m != layout.Both
	a.warn("panel class", a.host.SetClass(ctx, selPanel, "onlyGameOrChat", single))
	a.warn("quick links", a.host.Show(ctx, selQuickLinks, !single))
	a.warn("feature row", a.host.Show(ctx, "#"+idFeatureRow, single))
	a.warn("game name", a.host.Show(ctx, selGameName, single))
	if single {
		if err := a.host.Move(ctx, selPanel, selFeatureCell, "afterbegin"); err != nil {
			return err
		}
		if a.locked {
			a.warn("center game", a.host.Center(ctx, selGameHolder))
		}
		return nil
	}
	return a.host.Move(ctx, selPanel, a.cfg.Browser.Selectors.PanelAnchor, "beforebegin")
}
