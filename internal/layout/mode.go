// Package layout switches the page between showing the game, the chat, or both.
package layout

import (
	"errors"
	"fmt"
)

// ErrTargetNotReady means a required element is not rendered yet.
var ErrTargetNotReady = errors.New("layout target not ready")

// DisplayMode is the persisted arrangement. The integer values are stored as is.
type DisplayMode int

const (
	Both          DisplayMode = 0
	PrimaryOnly   DisplayMode = -1
	CompanionOnly DisplayMode = 1
)

func (m DisplayMode) String() string {
	switch m {
	case Both:
		return "both"
	case PrimaryOnly:
		return "game-only"
	case CompanionOnly:
		return "chat-only"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseDisplayMode accepts a persisted integer.
func ParseDisplayMode(v int) (DisplayMode, bool) {
	switch DisplayMode(v) {
	case Both, PrimaryOnly, CompanionOnly:
		return DisplayMode(v), true
	}
	return Both, false
}

// Defaults are the box dimensions cached at startup, in CSS pixels.
type Defaults struct {
	BothWidth         int
	BothHeight        int
	GameWidth         int
	ChatWidth         int
	EnlargedChatWidth int
	MenuHeight        int
}

// Dimensions is the target geometry for one mode.
type Dimensions struct {
	BoxWidth  int
	BoxHeight int
	GameWidth int
	// ChatWidth 0 means the host default width.
	ChatWidth   int
	GameVisible bool
	ChatVisible bool
	// GameAtOrigin pins the game frame to left 0; otherwise the default offset is restored.
	GameAtOrigin bool
}

// Session is the mutable state shared by every transition.
type Session struct {
	Mode        DisplayMode
	Volume      float64
	SavedVolume float64
	Defaults    Defaults
	// Restored is set once the persisted mode has been applied.
	Restored bool
}

// NewSession builds a session with cached defaults and the persisted volume.
func NewSession(d Defaults, volume float64) *Session {
	return &Session{Mode: Both, Volume: volume, Defaults: d}
}

// Target computes the geometry of mode. gameFrameWidth is the measured
// width of the game frame and is only needed for PrimaryOnly.
func (s *Session) Target(mode DisplayMode, gameFrameWidth int) Dimensions {
	d := s.Defaults
	switch mode {
	case PrimaryOnly:
		return Dimensions{
			BoxWidth:     gameFrameWidth,
			BoxHeight:    d.BothHeight + d.MenuHeight,
			GameWidth:    gameFrameWidth,
			GameVisible:  true,
			GameAtOrigin: true,
		}
	case CompanionOnly:
		return Dimensions{
			BoxWidth:    d.ChatWidth + d.EnlargedChatWidth - 3,
			BoxHeight:   d.BothHeight + d.MenuHeight,
			GameWidth:   d.GameWidth,
			ChatWidth:   d.EnlargedChatWidth,
			ChatVisible: true,
		}
	default:
		return Dimensions{
			BoxWidth:    d.BothWidth,
			BoxHeight:   d.BothHeight,
			GameWidth:   d.GameWidth,
			GameVisible: true,
			ChatVisible: true,
		}
	}
}
