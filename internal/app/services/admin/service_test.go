package admin

import (
	"context"
	"math"
	"testing"

	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/user"
	settingssvc "github.com/dedpost/platform/internal/app/services/settings"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/internal/app/storage/memory"
)

func TestDashboardAggregates(t *testing.T) {
	store := memory.New()
	svc := NewService(store, store, settingssvc.NewService(store, 0, nil), nil)
	ctx := context.Background()

	author, err := store.CreateUser(ctx, user.User{Username: "author", Email: "author@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	low, err := store.CreatePost(ctx, post.Post{AuthorID: author.ID, Caption: "low", MediaURL: "https://x/1.jpg", MediaType: post.MediaImage})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	high, err := store.CreatePost(ctx, post.Post{AuthorID: author.ID, Caption: "high", MediaURL: "https://x/2.jpg", MediaType: post.MediaImage})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if err := store.IncrementEarnings(ctx, low.ID, storage.EarningsView, 0.10); err != nil {
		t.Fatalf("IncrementEarnings: %v", err)
	}
	if err := store.IncrementEarnings(ctx, high.ID, storage.EarningsLike, 2.50); err != nil {
		t.Fatalf("IncrementEarnings: %v", err)
	}

	dash, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if dash.Stats.TotalUsers != 1 || dash.Stats.TotalPosts != 2 {
		t.Fatalf("unexpected totals: %+v", dash.Stats)
	}
	if math.Abs(dash.Stats.TotalEarnings-2.60) > 1e-9 {
		t.Fatalf("expected total earnings 2.60, got %v", dash.Stats.TotalEarnings)
	}
	if len(dash.TopEarning) != 2 || dash.TopEarning[0].ID != high.ID {
		t.Fatalf("expected high-earning post first, got %+v", dash.TopEarning)
	}
	if len(dash.RecentPosts) != 2 || dash.RecentPosts[0].ID != high.ID {
		t.Fatalf("expected newest post first, got %+v", dash.RecentPosts)
	}
	if dash.Rates.ViewRate != 0.01 || dash.Rates.LikeRate != 0.05 || !dash.Rates.EarningsEnabled {
		t.Fatalf("unexpected rate summary: %+v", dash.Rates)
	}
}
