// Package settings manages the singleton platform rate configuration.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/pkg/logger"
)

// Service reads and updates the platform settings record. Reads are served
// from a short-lived cache so per-request rate lookups do not hammer the
// store; updates invalidate the cache immediately.
type Service struct {
	store    storage.SettingsStore
	log      *logger.Logger
	cacheTTL time.Duration

	mu        sync.RWMutex
	cached    settings.Settings
	cachedAt  time.Time
	haveCache bool
}

// NewService creates a settings service backed by the given store. A zero
// cacheTTL disables caching.
func NewService(store storage.SettingsStore, cacheTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("settings")
	}
	return &Service{store: store, log: log, cacheTTL: cacheTTL}
}

// Get returns the current settings, creating the record with defaults on
// first access.
func (s *Service) Get(ctx context.Context) (settings.Settings, error) {
	if s.cacheTTL > 0 {
		s.mu.RLock()
		if s.haveCache && time.Since(s.cachedAt) < s.cacheTTL {
			cached := s.cached
			s.mu.RUnlock()
			return cached, nil
		}
		s.mu.RUnlock()
	}

	cfg, err := s.store.GetSettings(ctx)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.cached = cfg
	s.cachedAt = time.Now()
	s.haveCache = true
	s.mu.Unlock()

	return cfg, nil
}

// Update applies the non-nil fields of upd to the current settings and
// persists the result.
func (s *Service) Update(ctx context.Context, upd settings.Update) (settings.Settings, error) {
	if err := validateUpdate(upd); err != nil {
		return settings.Settings{}, err
	}

	current, err := s.store.GetSettings(ctx)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	applyUpdate(&current, upd)

	saved, err := s.store.PutSettings(ctx, current)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	s.cached = saved
	s.cachedAt = time.Now()
	s.haveCache = true
	s.mu.Unlock()

	s.log.WithField("view_rate", saved.ViewRate).
		WithField("like_rate", saved.LikeRate).
		WithField("earnings_enabled", saved.EarningsEnabled).
		Info("platform settings updated")

	return saved, nil
}

// Invalidate drops the cached settings so the next Get reloads from the store.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.haveCache = false
	s.mu.Unlock()
}

func validateUpdate(upd settings.Update) error {
	if upd.ViewRate != nil && *upd.ViewRate < 0 {
		return fmt.Errorf("view rate must not be negative: %w", storage.ErrInvalidInput)
	}
	if upd.LikeRate != nil && *upd.LikeRate < 0 {
		return fmt.Errorf("like rate must not be negative: %w", storage.ErrInvalidInput)
	}
	if upd.MinPayoutAmount != nil && *upd.MinPayoutAmount < 0 {
		return fmt.Errorf("minimum payout amount must not be negative: %w", storage.ErrInvalidInput)
	}
	if upd.AutoPayoutThreshold != nil && *upd.AutoPayoutThreshold < 0 {
		return fmt.Errorf("auto payout threshold must not be negative: %w", storage.ErrInvalidInput)
	}
	if upd.MaxFileSize != nil && *upd.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive: %w", storage.ErrInvalidInput)
	}
	if upd.PlatformName != nil && strings.TrimSpace(*upd.PlatformName) == "" {
		return fmt.Errorf("platform name must not be empty: %w", storage.ErrInvalidInput)
	}
	return nil
}

func applyUpdate(cfg *settings.Settings, upd settings.Update) {
	if upd.ViewRate != nil {
		cfg.ViewRate = *upd.ViewRate
	}
	if upd.LikeRate != nil {
		cfg.LikeRate = *upd.LikeRate
	}
	if upd.EarningsEnabled != nil {
		cfg.EarningsEnabled = *upd.EarningsEnabled
	}
	if upd.PlatformName != nil {
		cfg.PlatformName = strings.TrimSpace(*upd.PlatformName)
	}
	if upd.Currency != nil {
		cfg.Currency = *upd.Currency
	}
	if upd.CurrencySymbol != nil {
		cfg.CurrencySymbol = *upd.CurrencySymbol
	}
	if upd.MinPayoutAmount != nil {
		cfg.MinPayoutAmount = *upd.MinPayoutAmount
	}
	if upd.AutoPayoutEnabled != nil {
		cfg.AutoPayoutEnabled = *upd.AutoPayoutEnabled
	}
	if upd.AutoPayoutThreshold != nil {
		cfg.AutoPayoutThreshold = *upd.AutoPayoutThreshold
	}
	if upd.MaxFileSize != nil {
		cfg.MaxFileSize = *upd.MaxFileSize
	}
	if upd.AllowImageUploads != nil {
		cfg.AllowImageUploads = *upd.AllowImageUploads
	}
	if upd.AllowVideoUploads != nil {
		cfg.AllowVideoUploads = *upd.AllowVideoUploads
	}
}
