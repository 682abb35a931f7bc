package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/dedpost/platform/internal/app/domain/ledger"
	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	store := New(db)
	suffix := time.Now().UnixNano()

	author, err := store.CreateUser(ctx, user.User{
		Username: fmt.Sprintf("author-%d", suffix),
		Email:    fmt.Sprintf("author-%d@example.com", suffix),
	})
	if err != nil {
		t.Fatalf("create author: %v", err)
	}

	p, err := store.CreatePost(ctx, post.Post{
		AuthorID:  author.ID,
		Caption:   "integration",
		MediaURL:  "https://cdn.example.com/x.jpg",
		MediaType: post.MediaImage,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	viewerID := author.ID // any existing uuid works for the membership set

	inserted, fresh, err := store.InsertView(ctx, p.ID, viewerID, time.Now())
	if err != nil {
		t.Fatalf("insert view: %v", err)
	}
	if !inserted || fresh.ViewsCount != 1 {
		t.Fatalf("expected first view to insert, got inserted=%t count=%d", inserted, fresh.ViewsCount)
	}

	inserted, fresh, err = store.InsertView(ctx, p.ID, viewerID, time.Now())
	if err != nil {
		t.Fatalf("repeat view: %v", err)
	}
	if inserted || fresh.ViewsCount != 1 {
		t.Fatalf("expected repeat view ignored, got inserted=%t count=%d", inserted, fresh.ViewsCount)
	}

	liked, fresh, err := store.ToggleLike(ctx, p.ID, viewerID, time.Now())
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if !liked || fresh.LikesCount != 1 {
		t.Fatalf("expected like, got liked=%t count=%d", liked, fresh.LikesCount)
	}
	liked, fresh, err = store.ToggleLike(ctx, p.ID, viewerID, time.Now())
	if err != nil {
		t.Fatalf("toggle unlike: %v", err)
	}
	if liked || fresh.LikesCount != 0 {
		t.Fatalf("expected unlike, got liked=%t count=%d", liked, fresh.LikesCount)
	}

	ev, err := store.AppendEvent(ctx, ledger.Event{
		PostID:   p.ID,
		UserID:   viewerID,
		AuthorID: author.ID,
		Type:     ledger.EventView,
		Delta:    0.25,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	applied, err := store.ApplyEventToPost(ctx, ev.ID)
	if err != nil {
		t.Fatalf("apply event to post: %v", err)
	}
	if !applied {
		t.Fatalf("expected post side applied")
	}
	applied, err = store.ApplyEventToPost(ctx, ev.ID)
	if err != nil {
		t.Fatalf("re-apply event to post: %v", err)
	}
	if applied {
		t.Fatalf("expected repeat post apply to be a no-op")
	}
	credited, err := store.GetPost(ctx, p.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if math.Abs(credited.ViewEarnings-0.25) > 1e-9 || math.Abs(credited.TotalEarnings-0.25) > 1e-9 {
		t.Fatalf("unexpected post earnings: %+v", credited)
	}

	applied, err = store.ApplyEventToAuthor(ctx, ev.ID)
	if err != nil {
		t.Fatalf("apply event: %v", err)
	}
	if !applied {
		t.Fatalf("expected event applied")
	}
	applied, err = store.ApplyEventToAuthor(ctx, ev.ID)
	if err != nil {
		t.Fatalf("re-apply event: %v", err)
	}
	if applied {
		t.Fatalf("expected repeat apply to be a no-op")
	}

	settled, err := store.SettlePayout(ctx, author.ID, 0.25)
	if err != nil {
		t.Fatalf("settle payout: %v", err)
	}
	if math.Abs(settled.PendingEarnings) > 1e-9 || math.Abs(settled.PaidEarnings-0.25) > 1e-9 {
		t.Fatalf("unexpected balances after settlement: %+v", settled)
	}

	if _, err := store.SettlePayout(ctx, author.ID, 1); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// A debit applied after the settlement lands on pending, keeping
	// total = pending + paid.
	reversal, err := store.AppendEvent(ctx, ledger.Event{
		PostID:   p.ID,
		UserID:   viewerID,
		AuthorID: author.ID,
		Type:     ledger.EventUnlike,
		Delta:    -0.25,
	})
	if err != nil {
		t.Fatalf("append reversal: %v", err)
	}
	if _, err := store.ApplyEventToAuthor(ctx, reversal.ID); err != nil {
		t.Fatalf("apply reversal: %v", err)
	}
	balanced, err := store.GetUser(ctx, author.ID)
	if err != nil {
		t.Fatalf("get author: %v", err)
	}
	if math.Abs(balanced.TotalEarnings-(balanced.PendingEarnings+balanced.PaidEarnings)) > 1e-9 {
		t.Fatalf("ledger conservation broken: %+v", balanced)
	}
	if math.Abs(balanced.PendingEarnings+0.25) > 1e-9 {
		t.Fatalf("expected pending -0.25 after reversal, got %v", balanced.PendingEarnings)
	}

	cfg, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if cfg.ViewRate <= 0 {
		t.Fatalf("expected seeded settings, got %+v", cfg)
	}
}
