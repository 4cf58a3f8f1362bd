// Package rewrite turns classified references into links.
package rewrite

import (
	"strings"
	"unicode"

	"kongaddon/internal/classify"
	"kongaddon/internal/logging"
)

// Renderer produces the markup that replaces one match.
type Renderer interface {
	Render(m classify.Match) string
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(classify.Match) string

func (f RendererFunc) Render(m classify.Match) string { return f(m) }

// DefaultMarker is the character pulled into a link it was left dangling after.
const DefaultMarker = '#'

// Rewriter applies a classifier and a renderer to raw message text.
type Rewriter struct {
	classifier *classify.Classifier
	renderer   Renderer
	marker     rune
}

// New creates a Rewriter.
func New(c *classify.Classifier, r Renderer) *Rewriter {
	return &Rewriter{classifier: c, renderer: r, marker: DefaultMarker}
}

// SetClassifier swaps the patterns, e.g. after a config reload.
func (w *Rewriter) SetClassifier(c *classify.Classifier) {
	w.classifier = c
}

// SetRenderer swaps the link renderer, e.g. after base URLs change.
func (w *Rewriter) SetRenderer(r Renderer) {
	w.renderer = r
}

type segment struct {
	text      string
	generated bool
}

// Rewrite returns text with every classified reference replaced by its link.
// Output is a fixed point: rewriting it again changes nothing, because the
// generated links are protected regions on the next pass.
func (w *Rewriter) Rewrite(text string) string {
	matches := w.classifier.Classify(text)
	if len(matches) == 0 {
		return text
	}

	runes := []rune(text)
	segs := make([]segment, 0, 2*len(matches)+1)
	cursor := 0
	for _, m := range matches {
		if m.Span.Start > cursor {
			segs = append(segs, segment{text: string(runes[cursor:m.Span.Start])})
		}
		segs = append(segs, segment{text: w.renderer.Render(m), generated: true})
		cursor = m.Span.End
	}
	if cursor < len(runes) {
		segs = append(segs, segment{text: string(runes[cursor:])})
	}

	out := w.cleanup(segs)
	logging.Get(logging.CategoryRewrite).Debug("rewrote %d references", len(matches))
	return out
}

// cleanup repairs adjacency artifacts around generated links: a space
// before the closing "]</a>" is dropped, and a marker left dangling right
// after a link moves inside it.
func (w *Rewriter) cleanup(segs []segment) string {
	var b strings.Builder
	for i := 0; i < len(segs); i++ {
		s := segs[i]
		if !s.generated {
			b.WriteString(s.text)
			continue
		}
		link := strings.ReplaceAll(s.text, " ]</a>", "]</a>")

		if i+1 < len(segs) && !segs[i+1].generated {
			if rest, ok := w.danglingMarker(segs[i+1].text); ok && strings.HasSuffix(link, "</a>") {
				link = strings.TrimSuffix(link, "</a>") + string(w.marker) + "</a>"
				segs[i+1].text = rest
			}
		}
		b.WriteString(link)
	}
	return b.String()
}

// danglingMarker reports whether next starts with a lone marker (followed by
// a space or the end of text) and returns what remains after it.
func (w *Rewriter) danglingMarker(next string) (string, bool) {
	r := []rune(next)
	if len(r) == 0 || r[0] != w.marker {
		return next, false
	}
	if len(r) > 1 && !unicode.IsSpace(r[1]) {
		return next, false
	}
	return string(r[1:]), true
}
