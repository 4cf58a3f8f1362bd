package prefs

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenBackend fails every call, like a browser with storage disabled.
type brokenBackend struct{}

var errDisabled = errors.New("cookies disabled")

func (brokenBackend) Get(string) (string, bool, error)         { return "", false, errDisabled }
func (brokenBackend) Set(string, string, time.Duration) error { return errDisabled }
func (brokenBackend) Delete(string) error                     { return errDisabled }
func (brokenBackend) Keys() ([]string, error)                 { return nil, errDisabled }

func TestKeyNaming(t *testing.T) {
	s := New(NewMemoryBackend(), WithContext("Realm Grinder"))
	assert.Equal(t, "forth_Realm_Grinder_DisplayMode", s.Key(KeyDisplayMode, PerContext))
	assert.Equal(t, "forth_FontSize", s.Key(KeyFontSize, Global))

	bare := New(NewMemoryBackend(), WithPrefix("kl_"))
	assert.Equal(t, "kl_DisplayMode", bare.Key(KeyDisplayMode, PerContext))
}

func TestTypedDefaults(t *testing.T) {
	s := New(NewMemoryBackend())

	assert.Equal(t, "100%", s.GetString(KeyBrightness, PerContext, "100%"))
	assert.True(t, s.GetBool(KeyShowPlayers, Global, true))
	assert.Equal(t, 12, s.GetInt(KeyFontSize, Global, 12))
	assert.Equal(t, 0.1, s.GetFloat(KeyVolumePing, PerContext, 0.1))
}

func TestSetThenGet(t *testing.T) {
	s := New(NewMemoryBackend(), WithContext("game"))

	require.NoError(t, s.Set(KeyDisplayMode, -1, 30, PerContext))
	require.NoError(t, s.Set(KeyVolumePing, 0.4, 30, PerContext))
	require.NoError(t, s.Set(KeyShowPlayers, false, 30, Global))
	require.NoError(t, s.Set(KeyBrightness, "80%", 30, PerContext))

	assert.Equal(t, -1, s.GetInt(KeyDisplayMode, PerContext, 0))
	assert.Equal(t, 0.4, s.GetFloat(KeyVolumePing, PerContext, 0))
	assert.False(t, s.GetBool(KeyShowPlayers, Global, true))
	assert.Equal(t, "80%", s.GetString(KeyBrightness, PerContext, "100%"))

	// full replacement
	require.NoError(t, s.Set(KeyDisplayMode, 1, 30, PerContext))
	assert.Equal(t, 1, s.GetInt(KeyDisplayMode, PerContext, 0))
}

func TestUnparsableFallsBack(t *testing.T) {
	s := New(NewMemoryBackend())
	require.NoError(t, s.Set(KeyFontSize, "big", 30, Global))
	assert.Equal(t, 12, s.GetInt(KeyFontSize, Global, 12))

	require.NoError(t, s.Set(KeyShowPlayers, "yes", 30, Global))
	assert.False(t, s.GetBool(KeyShowPlayers, Global, true))
}

func TestUnsupportedType(t *testing.T) {
	s := New(NewMemoryBackend())
	err := s.Set(KeyFontSize, []int{1}, 30, Global)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
}

func TestStoreUnavailable(t *testing.T) {
	s := New(brokenBackend{})

	err := s.Set(KeyDarkMode, true, 30, Global)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// reads degrade to defaults
	assert.True(t, s.GetBool(KeyDarkMode, Global, true))

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMemoryBackendExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryBackend()
	m.now = func() time.Time { return now }
	s := New(m)

	require.NoError(t, s.Set(KeyFontSize, 14, 1, Global))
	assert.Equal(t, 14, s.GetInt(KeyFontSize, Global, 12))

	now = now.Add(25 * time.Hour)
	assert.Equal(t, 12, s.GetInt(KeyFontSize, Global, 12))
	keys, _ := m.Keys()
	assert.Empty(t, keys)
}

func TestSnapshot(t *testing.T) {
	m := NewMemoryBackend()
	require.NoError(t, m.Set("other_key", "x", 0))
	s := New(m, WithContext("g"))
	require.NoError(t, s.Set(KeyFontSize, 14, 30, Global))
	require.NoError(t, s.Set(KeyDisplayMode, 1, 30, PerContext))

	got, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "forth_FontSize", Value: "14"},
		{Key: "forth_g_DisplayMode", Value: "1"},
	}, got)
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs", "prefs.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, path, b.Path())

	s := New(b, WithContext("game"))
	require.NoError(t, s.Set(KeyDisplayMode, -1, 30, PerContext))
	require.NoError(t, s.Set(KeyDisplayMode, 1, 30, PerContext))
	assert.Equal(t, 1, s.GetInt(KeyDisplayMode, PerContext, 0))

	entries, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: "forth_game_DisplayMode", Value: "1"}}, entries)
}

func TestSQLiteBackendExpiredRowsReadAbsent(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	defer b.Close()

	now := time.Now()
	b.now = func() time.Time { return now }
	require.NoError(t, b.Set("forth_FontSize", "16", time.Hour))

	v, ok, err := b.Get("forth_FontSize")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "16", v)

	now = now.Add(2 * time.Hour)
	_, ok, err = b.Get("forth_FontSize")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := b.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSQLiteBackendPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, New(b).Set(KeyDarkMode, true, 30, Global))
	require.NoError(t, b.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b2.Close()
	assert.True(t, New(b2).GetBool(KeyDarkMode, Global, false))
}
