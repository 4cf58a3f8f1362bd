package browser

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"kongaddon/internal/logging"
	"kongaddon/internal/prefs"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var _ prefs.Backend = (*CookieBackend)(nil)

// CookieBackend keeps preferences in the page's cookies, path "/".
type CookieBackend struct {
	page *rod.Page
}

// NewCookieBackend stores cookies for the page's current URL.
func NewCookieBackend(page *rod.Page) *CookieBackend {
	return &CookieBackend{page: page}
}

func (c *CookieBackend) pageURL() (string, error) {
	info, err := c.page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (c *CookieBackend) Get(key string) (string, bool, error) {
	cookies, err := c.page.Cookies(nil)
	if err != nil {
		return "", false, fmt.Errorf("read cookies: %w", err)
	}
	for _, ck := range cookies {
		if ck.Name != key {
			continue
		}
		v, err := url.QueryUnescape(ck.Value)
		if err != nil {
			logging.BrowserWarn("cookie %s: undecodable value, using raw", key)
			return ck.Value, true, nil
		}
		return v, true, nil
	}
	return "", false, nil
}

// Set writes a cookie; ttl <= 0 writes a session cookie.
func (c *CookieBackend) Set(key, value string, ttl time.Duration) error {
	u, err := c.pageURL()
	if err != nil {
		return err
	}
	param := &proto.NetworkCookieParam{
		Name:  key,
		Value: url.QueryEscape(value),
		URL:   u,
		Path:  "/",
	}
	if ttl > 0 {
		param.Expires = proto.TimeSinceEpoch(time.Now().Add(ttl).Unix())
	}
	if err := c.page.SetCookies([]*proto.NetworkCookieParam{param}); err != nil {
		return fmt.Errorf("set cookie %s: %w", key, err)
	}
	return nil
}

func (c *CookieBackend) Delete(key string) error {
	u, err := c.pageURL()
	if err != nil {
		return err
	}
	if err := (proto.NetworkDeleteCookies{Name: key, URL: u, Path: "/"}).Call(c.page); err != nil {
		return fmt.Errorf("delete cookie %s: %w", key, err)
	}
	return nil
}

func (c *CookieBackend) Keys() ([]string, error) {
	cookies, err := c.page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	keys := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		keys = append(keys, ck.Name)
	}
	sort.Strings(keys)
	return keys, nil
}
