// Package app wires configuration into a running service.
package app

import (
	"context"
	"fmt"

	"voledge/internal/config"
	"voledge/internal/ledger"
	"voledge/internal/logger"
	"voledge/internal/store"
	"voledge/internal/store/journal"
	apihttp "voledge/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns the assembled components and their lifecycle.
type App struct {
	cfg     *config.Config
	store   store.Store
	journal *journal.RunJournal
	book    *ledger.Ledger
	server  *apihttp.Server
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.store.Close()
	if a.journal != nil {
		defer a.journal.Close()
	}

	logger.Infof("[app] listening on %s (env=%s)", a.server.Addr(), a.cfg.App.Env)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Ledger exposes the ticket ledger, used by test harnesses.
func (a *App) Ledger() *ledger.Ledger {
	if a == nil {
		return nil
	}
	return a.book
}
