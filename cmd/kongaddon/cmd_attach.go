package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kongaddon/internal/addon"
	"kongaddon/internal/browser"
	"kongaddon/internal/config"
	"kongaddon/internal/eventloop"
	"kongaddon/internal/prefs"
	"kongaddon/internal/route"

	"github.com/go-rod/rod"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var attachExisting bool

var attachCmd = &cobra.Command{
	Use:   "attach [url]",
	Short: "Run the add-on on a game page until interrupted",
	Long: `Opens the page (or, with --existing, binds to an open tab whose URL
contains the argument), installs the add-on and keeps it running. The add-on
is installed again after every navigation to a game page.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sm := browser.NewSessionManager(cfg.Browser, cfg.GetNavigationTimeout())
	if err := sm.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sm.Shutdown(context.Background()); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
	}()

	var err error
	if attachExisting {
		_, err = sm.Attach(ctx, args[0])
	} else {
		_, err = sm.Open(ctx, args[0])
	}
	if err != nil {
		return err
	}
	page, err := sm.Page()
	if err != nil {
		return err
	}

	for {
		err := runOnPage(ctx, sm, page)
		if errors.Is(err, browser.ErrNavigated) {
			if werr := page.Context(ctx).WaitLoad(); werr != nil {
				return fmt.Errorf("wait for navigation: %w", werr)
			}
			continue
		}
		if ctx.Err() != nil {
			logger.Info("Received shutdown signal")
			return nil
		}
		return err
	}
}

// runOnPage installs the add-on on the current document and streams events
// until the page navigates or ctx ends.
func runOnPage(ctx context.Context, sm *browser.SessionManager, page *rod.Page) error {
	info, err := page.Info()
	if err != nil {
		return fmt.Errorf("page info: %w", err)
	}
	sm.Touch(info.URL)
	id := route.PageID(info.URL)
	logger.Info("page loaded", zap.String("url", info.URL), zap.String("page", id))

	sel := cfg.Browser.Selectors
	stream := browser.NewStream(page, sel, cfg.GetPollInterval(), func(addon.Event) {})
	if !route.IsGamePage(info.URL) {
		// nothing to install; wait for the next navigation
		return stream.Run(ctx)
	}

	backend, closeBackend, err := openBackend(cfg, page)
	if err != nil {
		return err
	}
	defer closeBackend()

	loop := eventloop.New("page")
	defer loop.Close()

	store := prefs.New(backend, prefs.WithPrefix(cfg.Preferences.Prefix), prefs.WithContext(cfg.Context))
	a, err := addon.New(cfg, addon.Deps{
		Host:  browser.NewPageHost(page, sel),
		Store: store,
		Loop:  loop,
	})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("install add-on: %w", err)
	}

	watcher, err := config.NewWatcher(configFile(), a.ApplyConfig)
	if err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	stream = browser.NewStream(page, sel, cfg.GetPollInterval(), a.Dispatch)
	if err := stream.Hook(ctx); err != nil {
		return err
	}
	logger.Info("add-on running", zap.String("context", store.Context()), zap.Int("features", a.Registry().ActiveCount()))
	return stream.Run(ctx)
}

// openBackend returns the configured preference backend and its closer.
// The cookie backend needs a page. A relative sqlite path lives in the workspace.
func openBackend(c *config.Config, page *rod.Page) (prefs.Backend, func(), error) {
	switch c.Preferences.Backend {
	case "memory":
		return prefs.NewMemoryBackend(), func() {}, nil
	case "sqlite":
		b, err := prefs.NewSQLiteBackend(inWorkspace(c.Preferences.Path))
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				logger.Warn("close preferences", zap.Error(err))
			}
		}, nil
	case "cookie":
		if page == nil {
			return nil, nil, fmt.Errorf("cookie preferences need a browser page; use attach or another backend")
		}
		return browser.NewCookieBackend(page), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown preferences backend %q", c.Preferences.Backend)
	}
}
