// Package admin assembles the administrative dashboard view.
package admin

import (
	"context"
	"fmt"

	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/pkg/logger"
)

// Dashboard is the aggregate view served to administrators.
type Dashboard struct {
	Stats       storage.PlatformStats `json:"stats"`
	TopEarning  []post.Post           `json:"top_earning_posts"`
	RecentPosts []post.Post           `json:"recent_posts"`
	Rates       RateSummary           `json:"rates"`
}

// RateSummary is the subset of settings surfaced on the dashboard.
type RateSummary struct {
	ViewRate        float64 `json:"view_rate"`
	LikeRate        float64 `json:"like_rate"`
	EarningsEnabled bool    `json:"earnings_enabled"`
	MinPayoutAmount float64 `json:"min_payout_amount"`
	Currency        string  `json:"currency"`
}

// RateSource supplies the current settings.
type RateSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Service builds dashboards from platform aggregates.
type Service struct {
	stats storage.StatsStore
	posts storage.PostStore
	rates RateSource
	log   *logger.Logger
}

// NewService creates an admin service.
func NewService(stats storage.StatsStore, posts storage.PostStore, rates RateSource, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	return &Service{stats: stats, posts: posts, rates: rates, log: log}
}

// Dashboard returns platform totals, the highest-earning posts, the newest
// posts, and the rates currently in force.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	stats, err := s.stats.PlatformStats(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("platform stats: %w", err)
	}

	top, err := s.posts.ListTopEarning(ctx, 5)
	if err != nil {
		return Dashboard{}, fmt.Errorf("top earning posts: %w", err)
	}

	recent, _, err := s.posts.ListFeed(ctx, 0, 5)
	if err != nil {
		return Dashboard{}, fmt.Errorf("recent posts: %w", err)
	}

	cfg, err := s.rates.Get(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load rates: %w", err)
	}

	return Dashboard{
		Stats:       stats,
		TopEarning:  top,
		RecentPosts: recent,
		Rates: RateSummary{
			ViewRate:        cfg.ViewRate,
			LikeRate:        cfg.LikeRate,
			EarningsEnabled: cfg.EarningsEnabled,
			MinPayoutAmount: cfg.MinPayoutAmount,
			Currency:        cfg.Currency,
		},
	}, nil
}
