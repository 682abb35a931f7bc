// Package app wires the platform services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dedpost/platform/internal/app/services/accounts"
	adminsvc "github.com/dedpost/platform/internal/app/services/admin"
	"github.com/dedpost/platform/internal/app/services/engagement"
	"github.com/dedpost/platform/internal/app/services/payouts"
	postssvc "github.com/dedpost/platform/internal/app/services/posts"
	settingssvc "github.com/dedpost/platform/internal/app/services/settings"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/internal/app/storage/memory"
	"github.com/dedpost/platform/internal/app/system"
	"github.com/dedpost/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Posts    storage.PostStore
	Settings storage.SettingsStore
	Ledger   storage.LedgerStore
	Stats    storage.StatsStore
}

// Options tunes application behaviour beyond its stores.
type Options struct {
	SettingsCacheTTL   time.Duration
	PostRetries        int
	ReconcileInterval  time.Duration
	ReconcileGraceAge  time.Duration
	ReconcileBatchSize int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts   *accounts.Service
	Posts      *postssvc.Service
	Settings   *settingssvc.Service
	Engagement *engagement.Service
	Payouts    *payouts.Service
	Admin      *adminsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Posts == nil {
		stores.Posts = mem
	}
	if stores.Settings == nil {
		stores.Settings = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.Stats == nil {
		stores.Stats = mem
	}

	manager := system.NewManager()

	settingsService := settingssvc.NewService(stores.Settings, opts.SettingsCacheTTL, log)
	accountsService := accounts.NewService(stores.Users, log)
	postsService := postssvc.NewService(stores.Posts, stores.Users, log)
	engagementService := engagement.NewService(stores.Posts, stores.Ledger, settingsService, opts.PostRetries, log)
	payoutsService := payouts.NewService(stores.Users, log)
	adminService := adminsvc.NewService(stores.Stats, stores.Posts, settingsService, log)

	for _, name := range []string{"accounts", "posts", "settings", "payouts"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	reconciler := engagement.NewReconciler(stores.Ledger,
		opts.ReconcileInterval, opts.ReconcileGraceAge, opts.ReconcileBatchSize, log)
	if err := manager.Register(reconciler); err != nil {
		return nil, fmt.Errorf("register %s: %w", reconciler.Name(), err)
	}

	return &Application{
		manager:    manager,
		log:        log,
		Accounts:   accountsService,
		Posts:      postsService,
		Settings:   settingsService,
		Engagement: engagementService,
		Payouts:    payoutsService,
		Admin:      adminService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
