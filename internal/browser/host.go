package browser

import (
	"context"
	"errors"
	"fmt"

	"kongaddon/internal/addon"
	"kongaddon/internal/chat"
	"kongaddon/internal/config"
	"kongaddon/internal/layout"
	"kongaddon/internal/logging"

	"github.com/go-rod/rod"
)

// ErrNotFound is returned when a selector matches nothing on the page.
var ErrNotFound = errors.New("element not found")

var _ addon.Host = (*PageHost)(nil)

// PageHost drives the add-on's page operations with in-page JavaScript.
type PageHost struct {
	page *rod.Page
	sel  config.SelectorConfig
}

// NewPageHost wraps page.
func NewPageHost(page *rod.Page, sel config.SelectorConfig) *PageHost {
	return &PageHost{page: page, sel: sel}
}

type evalResult interface {
	Int() int
	Str() string
	Bool() bool
	Nil() bool
}

func (h *PageHost) eval(ctx context.Context, js string, args ...any) (evalResult, error) {
	res, err := h.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("empty evaluation result")
	}
	return res.Value, nil
}

// found runs js, which must return a boolean "matched anything".
func (h *PageHost) found(ctx context.Context, what, selector, js string, args ...any) error {
	v, err := h.eval(ctx, js, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, selector, err)
	}
	if !v.Bool() {
		return fmt.Errorf("%s %s: %w", what, selector, ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// chat.Container
// ---------------------------------------------------------------------------

const jsMessages = `(win, msg) => {
	const w = document.querySelector(win);
	return w ? Array.from(w.querySelectorAll(msg)) : [];
}`

func (h *PageHost) MessageCount(ctx context.Context) (int, error) {
	v, err := h.eval(ctx, `(win, msg) => {
		const w = document.querySelector(win);
		return w ? w.querySelectorAll(msg).length : 0;
	}`, h.sel.MessageWindow, h.sel.Message)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return v.Int(), nil
}

func (h *PageHost) LastMessage(ctx context.Context) (string, error) {
	v, err := h.eval(ctx, `(win, msg) => {
		const all = (`+jsMessages+`)(win, msg);
		return all.length ? all[all.length - 1].innerHTML : "";
	}`, h.sel.MessageWindow, h.sel.Message)
	if err != nil {
		return "", fmt.Errorf("read last message: %w", err)
	}
	return v.Str(), nil
}

func (h *PageHost) ReplaceLastMessage(ctx context.Context, expected, markup string) error {
	v, err := h.eval(ctx, `(win, msg, expected, markup) => {
		const all = (`+jsMessages+`)(win, msg);
		if (!all.length) return false;
		const last = all[all.length - 1];
		if (last.innerHTML !== expected) return false;
		last.innerHTML = markup;
		return true;
	}`, h.sel.MessageWindow, h.sel.Message, expected, markup)
	if err != nil {
		return fmt.Errorf("replace last message: %w", err)
	}
	if !v.Bool() {
		return chat.ErrMessageChanged
	}
	return nil
}

// ---------------------------------------------------------------------------
// features.Surface
// ---------------------------------------------------------------------------

func (h *PageHost) InsertBefore(ctx context.Context, anchor, markup string) error {
	return h.Insert(ctx, anchor, "beforebegin", markup)
}

func (h *PageHost) SetVisible(ctx context.Context, id string, visible bool) error {
	return h.found(ctx, "set visible", "#"+id, `(id, visible) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.style.display = visible ? "" : "none";
		return true;
	}`, id, visible)
}

func (h *PageHost) SetInnerHTML(ctx context.Context, id, markup string) error {
	return h.found(ctx, "set content", "#"+id, `(id, markup) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.innerHTML = markup;
		return true;
	}`, id, markup)
}

func (h *PageHost) SetTitle(ctx context.Context, id, title string) error {
	return h.found(ctx, "set title", "#"+id, `(id, title) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.title = title;
		return true;
	}`, id, title)
}

// ---------------------------------------------------------------------------
// layout.Viewport and layout.Audio
// ---------------------------------------------------------------------------

func (h *PageHost) GameFrameWidth(ctx context.Context) (int, error) {
	v, err := h.eval(ctx, `(sel) => {
		const el = document.querySelector(sel);
		return el ? el.offsetWidth : 0;
	}`, h.sel.GameFrame)
	if err != nil {
		return 0, fmt.Errorf("measure game frame: %w", err)
	}
	return v.Int(), nil
}

// Apply resizes the game box, the game holder and the chat column.
func (h *PageHost) Apply(ctx context.Context, d layout.Dimensions) error {
	v, err := h.eval(ctx, `(d) => {
		const box = document.getElementById("maingame");
		const content = document.getElementById("maingamecontent");
		const game = document.getElementById("gameholder");
		const chat = document.getElementById("chat_container_cell");
		if (!box || !content || !game || !chat) return false;
		const px = (n) => n > 0 ? n + "px" : "";
		box.style.width = px(d.BoxWidth);
		box.style.height = px(d.BoxHeight);
		content.style.width = px(d.BoxWidth);
		game.style.width = px(d.GameWidth);
		game.style.display = d.GameVisible ? "" : "none";
		game.style.left = d.GameAtOrigin ? "0px" : "";
		chat.style.width = px(d.ChatWidth);
		chat.style.display = d.ChatVisible ? "" : "none";
		return true;
	}`, d)
	if err != nil {
		return fmt.Errorf("apply layout: %w", err)
	}
	if !v.Bool() {
		return layout.ErrTargetNotReady
	}
	return nil
}

// SetVolume sets the volume of the page's message sound.
func (h *PageHost) SetVolume(ctx context.Context, vol float64) error {
	v, err := h.eval(ctx, `(v) => {
		if (typeof songMsg === "undefined") return false;
		songMsg.volume = v;
		return true;
	}`, vol)
	if err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	if !v.Bool() {
		logging.BrowserDebug("page has no message sound yet, volume %.2f not applied", vol)
	}
	return nil
}

// ---------------------------------------------------------------------------
// page helpers
// ---------------------------------------------------------------------------

func (h *PageHost) Text(ctx context.Context, selector string) (string, error) {
	v, err := h.eval(ctx, `(sel) => {
		const el = document.querySelector(sel);
		return el ? el.textContent : "";
	}`, selector)
	if err != nil {
		return "", fmt.Errorf("read text %s: %w", selector, err)
	}
	return v.Str(), nil
}

func (h *PageHost) Insert(ctx context.Context, selector, position, markup string) error {
	return h.found(ctx, "insert at", selector, `(sel, pos, markup) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.insertAdjacentHTML(pos, markup);
		return true;
	}`, selector, position, markup)
}

func (h *PageHost) Move(ctx context.Context, selector, target, position string) error {
	return h.found(ctx, "move", selector, `(sel, target, pos) => {
		const el = document.querySelector(sel);
		const to = document.querySelector(target);
		if (!el || !to) return false;
		to.insertAdjacentElement(pos, el);
		return true;
	}`, selector, target, position)
}

// Remove deletes every match. Nothing matching is not an error.
func (h *PageHost) Remove(ctx context.Context, selector string) error {
	_, err := h.eval(ctx, `(sel) => {
		document.querySelectorAll(sel).forEach((el) => el.remove());
		return true;
	}`, selector)
	if err != nil {
		return fmt.Errorf("remove %s: %w", selector, err)
	}
	return nil
}

func (h *PageHost) Show(ctx context.Context, selector string, visible bool) error {
	return h.found(ctx, "show", selector, `(sel, visible) => {
		const all = document.querySelectorAll(sel);
		all.forEach((el) => { el.style.display = visible ? "" : "none"; });
		return all.length > 0;
	}`, selector, visible)
}

func (h *PageHost) SetClass(ctx context.Context, selector, class string, on bool) error {
	return h.found(ctx, "toggle class on", selector, `(sel, cls, on) => {
		const all = document.querySelectorAll(sel);
		all.forEach((el) => el.classList.toggle(cls, on));
		return all.length > 0;
	}`, selector, class, on)
}

// CSSRule sets one property in the add-on's own stylesheet, so the rule
// also applies to elements the page creates later. An empty value removes it.
func (h *PageHost) CSSRule(ctx context.Context, selector, property, value string) error {
	_, err := h.eval(ctx, `(sel, prop, value) => {
		let style = document.getElementById("forth_rules");
		if (!style) {
			style = document.createElement("style");
			style.id = "forth_rules";
			document.head.appendChild(style);
		}
		const sheet = style.sheet;
		let rule = Array.from(sheet.cssRules).find((r) => r.selectorText === sel);
		if (!rule) {
			sheet.insertRule(sel + " {}", sheet.cssRules.length);
			rule = sheet.cssRules[sheet.cssRules.length - 1];
		}
		if (value === "") rule.style.removeProperty(prop);
		else rule.style.setProperty(prop, value, "important");
		return true;
	}`, selector, property, value)
	if err != nil {
		return fmt.Errorf("css rule %s { %s }: %w", selector, property, err)
	}
	return nil
}

// Center positions the element vertically in the window.
func (h *PageHost) Center(ctx context.Context, selector string) error {
	return h.found(ctx, "center", selector, `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.style.position = "absolute";
		el.style.top = Math.max(0, (window.innerHeight - el.offsetHeight) / 2 + window.scrollY) + "px";
		return true;
	}`, selector)
}
