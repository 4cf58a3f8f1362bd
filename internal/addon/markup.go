package addon

import (
	"strconv"

	"kongaddon/internal/features"
	"kongaddon/internal/layout"
)

// Element ids owned by the add-on.
const (
	idFullscreen    = "forth_fullscreen"
	idLockScreen    = "bt_lockscreen"
	idOnlinePlayers = "bt_onlineplayers"
	idQuickLinks    = "bt_showquicklinks"
	idFontSize      = "slt_fontsize"
	idBrightness    = "slt_brightness"
	idVolume        = "slt_volume"
	idPingIcon      = "forth_ping_icon"
	idGameOnly      = "bt_gameOnly"
	idGameNChat     = "bt_gameNchat"
	idChatOnly      = "bt_chatOnly"
	idUnread        = "bt_unreadMessages"
	idUnreadCount   = "forth_unread_count"
	idFeatureRow    = "tr_features"
)

// Host page selectors.
const (
	selBody          = "body"
	selGameHolder    = "#floating_game_holder"
	selGameFilter    = "#maingamecontent #gameholder"
	selGameTableRow  = "#maingamecontent > tbody > tr:first-child"
	selUsersInRoom   = ".chat_room_template > .users_in_room"
	selQuickLinks    = "#quicklinks"
	selQuickLinkRest = "#quicklinks > li:not(:first-child)"
	selFacebookLink  = "#quicklinks_facebook"
	selCinematicLink = "#cinematic_mode_quicklink"
	selGameName      = "span.onlyGameOrChat"
	selPanel         = "#" + features.PanelID
	selFeatureCell   = "#" + idFeatureRow + " > td"
)

// textSizeSelectors receive the chosen font size.
var textSizeSelectors = []string{
	"#chat_rooms_container .chat_message_window p",
	"#chat_rooms_container .chat_message_window .username",
	"#chat_rooms_container .chat_message_window .message",
	"#chat_rooms_container .chat_message_window .timestamp",
	"#chat_rooms_container .chat_message_window .hyperlink",
}

const (
	iconLockOff    = "fas fa-lock-open"
	iconLockOn     = "fas fa-lock"
	iconPlayersOn  = "fas fa-user"
	iconPlayersOff = "fas fa-user-slash"
	iconLinksOpen  = "fas fa-angle-double-left"
	iconLinksShut  = "fas fa-angle-double-right"
	iconTextSize   = "fas fa-text-height"
	iconBrightness = "fas fa-sun"
	iconMuted      = "fas fa-volume-mute"
	iconVolumeLow  = "fas fa-volume-down"
	iconVolumeHigh = "fas fa-volume-up"
	iconGameOnly   = "fas fa-gamepad"
	iconGameNChat  = "fas fa-columns"
	iconChatOnly   = "fas fa-comments"
	iconUnread     = "fas fa-envelope"
)

// Select ranges.
const (
	fontSizeMin      = 12
	fontSizeMax      = 20
	fontSizeExtra    = 11
	brightnessMin    = 50
	brightnessMax    = 150
	brightnessStep   = 10
	volumeStepsCount = 10
)

func lockTitle(locked bool) string {
	if locked {
		return "Unlock the screen"
	}
	return "Lock the screen on the game"
}

func lockIcon(locked bool) string {
	if locked {
		return iconLockOn
	}
	return iconLockOff
}

func playersTitle(show bool) string {
	if show {
		return "Hide the online players"
	}
	return "Show the online players"
}

func playersIcon(show bool) string {
	if show {
		return iconPlayersOn
	}
	return iconPlayersOff
}

func quickLinksIcon(open bool) string {
	if open {
		return iconLinksOpen
	}
	return iconLinksShut
}

func volumeIcon(v float64) string {
	switch {
	case v <= 0:
		return iconMuted
	case v < 0.5:
		return iconVolumeLow
	default:
		return iconVolumeHigh
	}
}

// fontSizeOptions lists 11 followed by min..max in steps of 2.
func fontSizeOptions(current int) []features.Option {
	sizes := []int{fontSizeExtra}
	for s := fontSizeMin; s <= fontSizeMax; s += 2 {
		sizes = append(sizes, s)
	}
	opts := make([]features.Option, 0, len(sizes))
	for _, s := range sizes {
		v := strconv.Itoa(s)
		opts = append(opts, features.Option{Value: v, Label: v + "px", Selected: s == current})
	}
	return opts
}

func brightnessOptions(current string) []features.Option {
	var opts []features.Option
	for b := brightnessMin; b <= brightnessMax; b += brightnessStep {
		v := strconv.Itoa(b) + "%"
		opts = append(opts, features.Option{Value: v, Label: v, Selected: v == current})
	}
	return opts
}

// volumeOptions lists 0..100% in steps of 10; 0 reads "Muted".
func volumeOptions(current float64) []features.Option {
	var opts []features.Option
	for i := 0; i <= volumeStepsCount; i++ {
		v := float64(i) / volumeStepsCount
		label := strconv.Itoa(i*10) + "%"
		if i == 0 {
			label = "Muted"
		}
		opts = append(opts, features.Option{
			Value:    strconv.FormatFloat(v, 'f', 1, 64),
			Label:    label,
			Selected: int(current*volumeStepsCount+0.5) == i,
		})
	}
	return opts
}

type modeButton struct {
	mode  layout.DisplayMode
	id    string
	icon  string
	title string
}

var modeButtons = []modeButton{
	{layout.PrimaryOnly, idGameOnly, iconGameOnly, "Show only the game"},
	{layout.Both, idGameNChat, iconGameNChat, "Show the game and the chat"},
	{layout.CompanionOnly, idChatOnly, iconChatOnly, "Show only the chat"},
}
