// Package route names the portal page a URL points at.
package route

import (
	"net/url"
	"strings"

	"kongaddon/internal/logging"
)

// Page ids.
const (
	Home        = "accueil"
	AllGames    = "allgames"
	Games       = "games"
	Accounts    = "accounts"
	NewAccount  = "newaccount"
	Awards      = "awards"
	Badges      = "badges"
	Forums      = "forums"
	Topics      = "topics"
	Comments    = "comments"
	Feedbacks   = "feedbacks"
	Privacy     = "privacy"
	Kreds       = "kreds"
	Posts       = "posts"
	GamesExport = "gamesexport"
	Search      = "search"
	Minus       = "minus"
	Spellstone  = "spellstone"
	About       = "about"
	AdSpecs     = "adspecs"
	Conduct     = "conduct"
	Logos       = "logos"
	Jobs        = "jobs"
	// Unsupported marks pages the add-on leaves alone.
	Unsupported = ""
)

var singleSegment = map[string]string{
	"my_favorites":        AllGames,
	"recommended-badges":  Badges,
	"badges":              Badges,
	"minus":               Minus,
	"forums":              Forums,
	"community":           Accounts,
	"cookie-policy":       Privacy,
	"privacy":             Privacy,
	"user-agreement":      Privacy,
	"kreds":               Kreds,
	"posts":               Posts,
	"games_for_your_site": GamesExport,
	"search":              Search,
	"stickers":            Unsupported,
}

var staticPages = map[string]string{
	"bartender-ballerina":           Unsupported,
	"luck-of-the-draw-sweeps":       Spellstone,
	"luck-of-the-draw-sweeps-rules": Spellstone,
	"about":                         About,
	"kongregate-ad-specs":           AdSpecs,
	"logos-and-branding":            Logos,
	"jobs":                          Jobs,
}

// PageID maps a portal URL to a page id. Unparsable URLs and the root map to Home.
func PageID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		logging.Get(logging.CategoryRoute).Debug("unparsable url %q: %v", rawURL, err)
		return Home
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return Home
	}
	seg := strings.Split(path, "/")

	switch len(seg) {
	case 1:
		if id, ok := singleSegment[seg[0]]; ok {
			return id
		}
		return AllGames

	case 2:
		switch {
		case seg[0] == "badge_quests" && seg[1] == "your_first":
			return Badges
		case seg[0] == "accounts" && seg[1] == "new":
			return NewAccount
		case seg[0] == "pages":
			if id, ok := staticPages[seg[1]]; ok {
				return id
			}
			if strings.HasPrefix(seg[1], "conduct") {
				return Conduct
			}
		case seg[0] == "forums":
			return Forums
		case seg[0] == "feedbacks":
			return Feedbacks
		case seg[0] == "games":
			return AllGames // developer page
		}

	case 3:
		switch {
		case seg[0] == "accounts" && seg[2] == "awards":
			return Awards
		case seg[0] == "pages" && strings.HasPrefix(seg[2], "conduct"):
			return Conduct
		}

	case 4:
		switch {
		case seg[0] == "forums" && seg[2] == "topics":
			return Topics
		case seg[0] == "games" && seg[3] == "comments":
			return Comments
		}
	}

	switch seg[0] {
	case "games":
		return Games
	case "accounts":
		return Accounts
	}
	return Home
}

// IsGamePage reports whether game-page features apply to rawURL.
func IsGamePage(rawURL string) bool {
	return PageID(rawURL) == Games
}
