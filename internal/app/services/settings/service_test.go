package settings

import (
	"context"
	"testing"
	"time"

	domain "github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/storage/memory"
)

func TestGetCreatesDefaults(t *testing.T) {
	svc := NewService(memory.New(), 0, nil)

	cfg, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.ViewRate != 0.01 {
		t.Fatalf("expected default view rate 0.01, got %v", cfg.ViewRate)
	}
	if cfg.LikeRate != 0.05 {
		t.Fatalf("expected default like rate 0.05, got %v", cfg.LikeRate)
	}
	if !cfg.EarningsEnabled {
		t.Fatalf("expected earnings enabled by default")
	}
	if cfg.MinPayoutAmount != 10.00 {
		t.Fatalf("expected default minimum payout 10.00, got %v", cfg.MinPayoutAmount)
	}
}

func TestUpdatePartialFields(t *testing.T) {
	svc := NewService(memory.New(), 0, nil)
	ctx := context.Background()

	rate := 0.02
	enabled := false
	updated, err := svc.Update(ctx, domain.Update{ViewRate: &rate, EarningsEnabled: &enabled})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ViewRate != 0.02 {
		t.Fatalf("expected view rate 0.02, got %v", updated.ViewRate)
	}
	if updated.EarningsEnabled {
		t.Fatalf("expected earnings disabled")
	}
	if updated.LikeRate != 0.05 {
		t.Fatalf("untouched like rate changed: %v", updated.LikeRate)
	}

	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.ViewRate != 0.02 || got.EarningsEnabled {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestUpdateRejectsNegativeRates(t *testing.T) {
	svc := NewService(memory.New(), 0, nil)

	bad := -0.01
	if _, err := svc.Update(context.Background(), domain.Update{ViewRate: &bad}); err == nil {
		t.Fatalf("expected error for negative view rate")
	}
	if _, err := svc.Update(context.Background(), domain.Update{LikeRate: &bad}); err == nil {
		t.Fatalf("expected error for negative like rate")
	}
}

func TestZeroRateIsValid(t *testing.T) {
	svc := NewService(memory.New(), 0, nil)

	zero := 0.0
	updated, err := svc.Update(context.Background(), domain.Update{ViewRate: &zero, LikeRate: &zero})
	if err != nil {
		t.Fatalf("Update with zero rates: %v", err)
	}
	if updated.ViewRate != 0 || updated.LikeRate != 0 {
		t.Fatalf("expected zero rates, got %v/%v", updated.ViewRate, updated.LikeRate)
	}
}

func TestCacheServesRepeatReads(t *testing.T) {
	store := memory.New()
	svc := NewService(store, time.Minute, nil)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Change the record behind the service's back; the cached value should
	// still be served until the TTL elapses or an update invalidates it.
	changed := first
	changed.ViewRate = 0.99
	if _, err := store.PutSettings(ctx, changed); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}

	cached, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get cached: %v", err)
	}
	if cached.ViewRate != first.ViewRate {
		t.Fatalf("expected cached view rate %v, got %v", first.ViewRate, cached.ViewRate)
	}

	svc.Invalidate()
	fresh, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if fresh.ViewRate != 0.99 {
		t.Fatalf("expected fresh view rate 0.99, got %v", fresh.ViewRate)
	}
}
