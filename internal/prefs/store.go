// Package prefs is the typed preference store. Reads never fail: a missing
// or unreadable value yields the caller's default. Writes fully replace the
// previous value and report an unusable backend as ErrStoreUnavailable.
package prefs

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"kongaddon/internal/logging"
)

// ErrStoreUnavailable is wrapped by every failed write.
var ErrStoreUnavailable = errors.New("preference store unavailable")

// Logical keys.
const (
	KeyDisplayMode = "DisplayMode" // int, per context
	KeyVolumePing  = "VolumePing"  // float, per context
	KeyFontSize    = "FontSize"    // int, global
	KeyBrightness  = "Brightness"  // "<n>%", per context
	KeyShowPlayers = "ShowPlayers" // bool, global
	KeyLockScreen  = "LockScreen"  // bool, per context
	KeyDarkMode    = "DarkMode"    // bool, global
)

// Scope decides whether a key is shared or bound to the hosted item.
type Scope int

const (
	Global Scope = iota
	PerContext
)

func (s Scope) String() string {
	if s == PerContext {
		return "context"
	}
	return "global"
}

// Backend is the raw key-value storage behind a Store.
type Backend interface {
	// Get returns ok=false for absent or expired keys.
	Get(key string) (value string, ok bool, err error)
	// Set stores value for ttl. ttl <= 0 means no expiry.
	Set(key, value string, ttl time.Duration) error
	Delete(key string) error
	// Keys lists live keys.
	Keys() ([]string, error)
}

// Store layers key naming and typed coercion over a Backend.
type Store struct {
	backend Backend
	prefix  string
	context string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. The default is "forth_".
func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

// WithContext binds PerContext keys to the hosted item name.
func WithContext(name string) Option {
	return func(s *Store) { s.context = sanitize(name) }
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, prefix: "forth_"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetContext rebinds PerContext keys, e.g. once the game title is known.
func (s *Store) SetContext(name string) {
	s.context = sanitize(name)
}

// Context returns the sanitized context name.
func (s *Store) Context() string {
	return s.context
}

// Key returns the backend key name for a logical key.
func (s *Store) Key(key string, scope Scope) string {
	if scope == PerContext && s.context != "" {
		return s.prefix + s.context + "_" + key
	}
	return s.prefix + key
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

func (s *Store) raw(key string, scope Scope) (string, bool) {
	name := s.Key(key, scope)
	v, ok, err := s.backend.Get(name)
	if err != nil {
		logging.PrefsWarn("read %s: %v", name, err)
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// GetString returns the stored string or def.
func (s *Store) GetString(key string, scope Scope, def string) string {
	if v, ok := s.raw(key, scope); ok {
		return v
	}
	return def
}

// GetBool returns true only for the stored string "true"; absent yields def.
func (s *Store) GetBool(key string, scope Scope, def bool) bool {
	v, ok := s.raw(key, scope)
	if !ok {
		return def
	}
	return v == "true"
}

// GetInt returns the stored integer or def when absent or unparsable.
func (s *Store) GetInt(key string, scope Scope, def int) int {
	v, ok := s.raw(key, scope)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logging.PrefsDebug("%s: %q is not an int, using %d", s.Key(key, scope), v, def)
		return def
	}
	return n
}

// GetFloat returns the stored float or def when absent or unparsable.
func (s *Store) GetFloat(key string, scope Scope, def float64) float64 {
	v, ok := s.raw(key, scope)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logging.PrefsDebug("%s: %q is not a float, using %g", s.Key(key, scope), v, def)
		return def
	}
	return f
}

// Set removes the previous value then stores value for ttlDays.
// Supported value types are string, bool, int, int64 and float64.
func (s *Store) Set(key string, value any, ttlDays int, scope Scope) error {
	name := s.Key(key, scope)
	str, err := format(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}

	if err := s.backend.Delete(name); err != nil {
		return unavailable(name, err)
	}
	ttl := time.Duration(ttlDays) * 24 * time.Hour
	if err := s.backend.Set(name, str, ttl); err != nil {
		return unavailable(name, err)
	}
	logging.PrefsDebug("set %s=%s (ttl %dd)", name, str, ttlDays)
	return nil
}

func unavailable(name string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return fmt.Errorf("set %s: %w: %v", name, ErrStoreUnavailable, err)
}

func format(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported preference type %T", value)
	}
}

// Entry is one live key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Snapshot lists every live key under the store prefix, sorted by key.
func (s *Store) Snapshot() ([]Entry, error) {
	keys, err := s.backend.Keys()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w: %v", ErrStoreUnavailable, err)
	}
	sort.Strings(keys)

	var out []Entry
	for _, k := range keys {
		if !strings.HasPrefix(k, s.prefix) {
			continue
		}
		v, ok, err := s.backend.Get(k)
		if err != nil || !ok {
			continue
		}
		out = append(out, Entry{Key: k, Value: v})
	}
	return out, nil
}
