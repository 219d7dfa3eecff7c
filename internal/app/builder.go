package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"voledge/internal/config"
	"voledge/internal/edge"
	"voledge/internal/engine"
	"voledge/internal/gate"
	"voledge/internal/ledger"
	"voledge/internal/logger"
	"voledge/internal/market"
	"voledge/internal/profile"
	"voledge/internal/regime"
	"voledge/internal/sizer"
	"voledge/internal/store"
	"voledge/internal/store/journal"
	"voledge/internal/store/sqlite"
	apihttp "voledge/internal/transport/http"
)

// AppBuilder assembles the component graph. The fn fields exist so
// tests can substitute individual stages.
type AppBuilder struct {
	cfg *config.Config

	storeFn   func(config.StoreConfig) (store.Store, error)
	sourceFn  func(config.MarketConfig) (market.Source, error)
	profileFn func(config.ProfilesConfig) (*profile.Registry, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		storeFn:   buildStore,
		sourceFn:  buildSource,
		profileFn: buildProfiles,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithStore overrides the persistence layer.
func WithStore(st store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(config.StoreConfig) (store.Store, error) { return st, nil }
	}
}

// WithSource overrides the market data source.
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(config.MarketConfig) (market.Source, error) { return src, nil }
	}
}

// Build constructs every component and hydrates the ledger.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	st, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store failed: %w", err)
	}

	source, err := b.sourceFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("open market source failed: %w", err)
	}

	scorer, err := edge.NewScorer(cfg.Edge.Weights)
	if err != nil {
		return nil, fmt.Errorf("build edge scorer failed: %w", err)
	}

	profiles, err := b.profileFn(cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("load strategy profiles failed: %w", err)
	}

	gates := gate.NewEvaluator(cfg.Gate, profiles)
	regimeProvider := regime.NewProvider(regime.NewClassifier(cfg.Regime), source)
	portfolio := engine.NewPortfolioView(cfg.Gate.AccountEquity)

	book, err := ledger.New(ctx, st, gates, regimeProvider, portfolio)
	if err != nil {
		return nil, fmt.Errorf("hydrate ledger failed: %w", err)
	}
	portfolio.Bind(book)

	eng := engine.New(cfg, source, scorer, profiles, sizer.NewSizer(cfg.Sizer),
		gates, regimeProvider, portfolio, book)

	var runs *journal.RunJournal
	if cfg.Store.JournalPath != "" {
		runs, err = journal.Open(cfg.Store.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open run journal failed: %w", err)
		}
		eng.AttachJournal(runs)
	}

	router := apihttp.NewRouter(eng, book, regimeProvider)
	if runs != nil {
		router.WithJournal(runs)
	}
	server, err := apihttp.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		return nil, fmt.Errorf("build http server failed: %w", err)
	}

	return &App{cfg: cfg, store: st, journal: runs, book: book, server: server}, nil
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	st, err := sqlite.NewSqliteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func buildSource(cfg config.MarketConfig) (market.Source, error) {
	src, err := market.NewFixtureSource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// buildProfiles tolerates a missing profile file: built-in family
// rules still gate every ticket.
func buildProfiles(cfg config.ProfilesConfig) (*profile.Registry, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		logger.Warnf("[app] strategy profiles unavailable at %s, using built-in rules only", cfg.Path)
		return profile.NewRegistry(nil), nil
	}
	ld, err := profile.NewLoader(cfg.Path)
	if err != nil {
		return nil, err
	}
	return profile.NewRegistry(ld), nil
}
