package rewrite

import (
	"fmt"
	"net/url"
	"strings"

	"kongaddon/internal/classify"
	"kongaddon/internal/config"

	"golang.org/x/net/html"
)

// LinkRenderer renders anchors for the three reference kinds.
type LinkRenderer struct {
	WikiBase    string // CrossLink: base + page title
	GameBase    string // ResourceLink: base + /games/<dev>/<slug>
	ProfileBase string // ProfileLink: base + name
}

// NewLinkRenderer takes the base URLs from the classifier config.
func NewLinkRenderer(cfg config.ClassifierConfig) LinkRenderer {
	return LinkRenderer{
		WikiBase:    cfg.CrossLink.BaseURL,
		GameBase:    cfg.ResourceLink.BaseURL,
		ProfileBase: cfg.ProfileLink.BaseURL,
	}
}

func (r LinkRenderer) Render(m classify.Match) string {
	switch m.Kind {
	case classify.CrossLink:
		title := strings.TrimSpace(html.UnescapeString(m.Payload))
		label := title
		if len(m.Groups) > 2 && strings.TrimSpace(m.Groups[2]) != "" {
			label = strings.TrimSpace(html.UnescapeString(m.Groups[2]))
		}
		href := r.WikiBase + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
		return anchor(m.Kind, href, label)

	case classify.ResourceLink:
		path := m.Payload
		slug := path[strings.LastIndex(path, "/")+1:]
		return anchor(m.Kind, r.GameBase+path, "["+humanize(slug)+"]")

	case classify.ProfileLink:
		return anchor(m.Kind, r.ProfileBase+url.PathEscape(m.Payload), "@"+m.Payload)

	default:
		return html.EscapeString(m.Payload)
	}
}

// anchor escapes label as text; callers pass it unescaped.
func anchor(kind classify.Kind, href, label string) string {
	return fmt.Sprintf(`<a class="kl-ref kl-%s" href="%s" target="_blank">%s</a>`,
		kind, html.EscapeString(href), html.EscapeString(label))
}

// humanize turns a url slug into a readable title: "idle-miner_2" -> "idle miner 2".
func humanize(slug string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, slug)
}
