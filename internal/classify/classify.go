// Package classify finds typed references in raw chat text.
//
// Three kinds are scanned in priority order. A candidate is dropped when it
// overlaps a span claimed by an earlier kind or a protected region (markup
// tags and the body of an existing link), so already-rewritten text never
// matches again.
package classify

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"kongaddon/internal/config"
	"kongaddon/internal/logging"

	"github.com/dlclark/regexp2"
)

// Kind is a reference category.
type Kind int

const (
	CrossLink Kind = iota
	ResourceLink
	ProfileLink
)

// Priority is the fixed scan order.
var Priority = []Kind{CrossLink, ResourceLink, ProfileLink}

func (k Kind) String() string {
	switch k {
	case CrossLink:
		return "cross"
	case ResourceLink:
		return "resource"
	case ProfileLink:
		return "profile"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Span is a half-open rune range.
type Span struct {
	Start, End int
}

// Overlaps reports whether two spans share at least one rune.
// An empty span overlaps a span that strictly contains its position.
func (s Span) Overlaps(o Span) bool {
	if s.Start == s.End {
		return o.Start < s.Start && s.Start < o.End
	}
	if o.Start == o.End {
		return s.Start < o.Start && o.Start < s.End
	}
	return s.Start < o.End && o.Start < s.End
}

// Len is the span length in runes.
func (s Span) Len() int { return s.End - s.Start }

// Match is one classified reference.
type Match struct {
	Kind    Kind
	Span    Span
	Payload string
	// Groups holds every capture group; non-participating groups are "".
	Groups []string
}

// Pattern is a compiled matcher for one kind.
type Pattern struct {
	kind         Kind
	re           *regexp2.Regexp
	spanGroup    int
	payloadGroup int
}

// Compile builds a Pattern from an ECMAScript regular expression.
// spanGroup selects the replaced extent (0 = whole match); payloadGroup
// selects the payload text.
func Compile(kind Kind, expr string, spanGroup, payloadGroup int, timeout time.Duration) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern: %w", kind, err)
	}
	groups := len(re.GetGroupNumbers()) - 1
	if spanGroup < 0 || spanGroup > groups || payloadGroup < 0 || payloadGroup > groups {
		return nil, fmt.Errorf("compile %s pattern: group out of range (have %d)", kind, groups)
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return &Pattern{kind: kind, re: re, spanGroup: spanGroup, payloadGroup: payloadGroup}, nil
}

// Kind returns the pattern's kind.
func (p *Pattern) Kind() Kind { return p.kind }

// Classifier holds at most one pattern per kind.
type Classifier struct {
	patterns map[Kind]*Pattern
}

// New builds a classifier. Kinds without a pattern are simply never produced.
func New(patterns ...*Pattern) (*Classifier, error) {
	c := &Classifier{patterns: make(map[Kind]*Pattern, len(patterns))}
	for _, p := range patterns {
		if p == nil {
			continue
		}
		if _, dup := c.patterns[p.kind]; dup {
			return nil, fmt.Errorf("duplicate %s pattern", p.kind)
		}
		c.patterns[p.kind] = p
	}
	return c, nil
}

// FromConfig compiles the configured patterns. Empty patterns disable a kind.
func FromConfig(cfg config.ClassifierConfig, timeout time.Duration) (*Classifier, error) {
	sources := []struct {
		kind Kind
		pc   config.PatternConfig
	}{
		{CrossLink, cfg.CrossLink},
		{ResourceLink, cfg.ResourceLink},
		{ProfileLink, cfg.ProfileLink},
	}

	var patterns []*Pattern
	for _, s := range sources {
		if s.pc.Pattern == "" {
			continue
		}
		p, err := Compile(s.kind, s.pc.Pattern, s.pc.SpanGroup, s.pc.PayloadGroup, timeout)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return New(patterns...)
}

// Classify returns every accepted match in span order.
// Each call owns its cursors; a Classifier is safe for concurrent use.
func (c *Classifier) Classify(text string) []Match {
	if text == "" || len(c.patterns) == 0 {
		return nil
	}
	runes := []rune(text)
	claimed := ProtectedRegions(text)
	protected := len(claimed)

	var out []Match
	for _, kind := range Priority {
		p, ok := c.patterns[kind]
		if !ok {
			continue
		}
		err := p.each(runes, func(m Match) {
			for _, s := range claimed {
				if m.Span.Overlaps(s) {
					return
				}
			}
			claimed = append(claimed, m.Span)
			out = append(out, m)
		})
		if err != nil {
			logging.Get(logging.CategoryClassify).Warn("%s scan stopped: %v", kind, err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	logging.Get(logging.CategoryClassify).Debug("classified %d runes: %d protected regions, %d matches", len(runes), protected, len(out))
	return out
}

// Scan yields the Classify result lazily in span order.
func (c *Classifier) Scan(text string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for _, m := range c.Classify(text) {
			if !yield(m) {
				return
			}
		}
	}
}

// each runs the pattern over runes from left to right. A zero-width match
// moves the cursor one rune so the scan always terminates.
func (p *Pattern) each(runes []rune, fn func(Match)) error {
	pos := 0
	for pos <= len(runes) {
		m, err := p.re.FindRunesMatchStartingAt(runes, pos)
		if err != nil {
			return err
		}
		if m == nil {
			return nil
		}

		fn(p.build(m))

		next := m.Index + m.Length
		if m.Length == 0 || next <= pos {
			next = m.Index + 1
		}
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return nil
}

func (p *Pattern) build(m *regexp2.Match) Match {
	groups := m.Groups()
	out := Match{
		Kind:   p.kind,
		Span:   Span{Start: m.Index, End: m.Index + m.Length},
		Groups: make([]string, len(groups)),
	}
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out.Groups[i] = g.String()
		}
	}
	if p.spanGroup > 0 {
		if g := m.GroupByNumber(p.spanGroup); g != nil && len(g.Captures) > 0 {
			out.Span = Span{Start: g.Index, End: g.Index + g.Length}
		}
	}
	if p.payloadGroup < len(out.Groups) {
		out.Payload = out.Groups[p.payloadGroup]
	}
	return out
}
