package posts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/internal/app/storage/memory"
)

func newFixture(t *testing.T) (*Service, *memory.Store, user.User) {
	t.Helper()
	store := memory.New()
	author, err := store.CreateUser(context.Background(), user.User{Username: "author", Email: "author@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return NewService(store, store, nil), store, author
}

func TestCreateAndFeed(t *testing.T) {
	svc, store, author := newFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, author.ID, "first post", "https://cdn.example.com/a.jpg", post.MediaImage)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Active {
		t.Fatalf("expected new post to be active")
	}

	feed, total, err := svc.Feed(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if total != 1 || len(feed) != 1 {
		t.Fatalf("expected one post in feed, got total=%d len=%d", total, len(feed))
	}

	u, err := store.GetUser(ctx, author.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.PostsCount != 1 {
		t.Fatalf("expected posts count 1, got %d", u.PostsCount)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, author := newFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, author.ID, "  ", "https://x/y.jpg", post.MediaImage); err == nil {
		t.Fatalf("expected error for blank caption")
	}
	long := strings.Repeat("x", maxCaptionLength+1)
	if _, err := svc.Create(ctx, author.ID, long, "https://x/y.jpg", post.MediaImage); err == nil {
		t.Fatalf("expected error for oversize caption")
	}
	if _, err := svc.Create(ctx, author.ID, "ok", "https://x/y.gif", "gif"); err == nil {
		t.Fatalf("expected error for unsupported media type")
	}
	if _, err := svc.Create(ctx, "missing", "ok", "https://x/y.jpg", post.MediaImage); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing author, got %v", err)
	}
}

func TestSoftDeleteOwnership(t *testing.T) {
	svc, store, author := newFixture(t)
	ctx := context.Background()

	other, err := store.CreateUser(ctx, user.User{Username: "other", Email: "other@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	p, err := svc.Create(ctx, author.ID, "to remove", "https://x/y.jpg", post.MediaImage)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SoftDelete(ctx, other.ID, false, p.ID); err == nil {
		t.Fatalf("expected error when a non-owner deletes")
	}
	if err := svc.SoftDelete(ctx, other.ID, true, p.ID); err != nil {
		t.Fatalf("admin SoftDelete: %v", err)
	}

	_, total, err := svc.Feed(ctx, 0, 10)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected empty feed after delete, got %d", total)
	}

	u, err := store.GetUser(ctx, author.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.PostsCount != 0 {
		t.Fatalf("expected posts count back to 0, got %d", u.PostsCount)
	}
}

func TestSoftDeleteKeepsEarnings(t *testing.T) {
	svc, store, author := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, author.ID, "earning post", "https://x/y.jpg", post.MediaImage)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.IncrementEarnings(ctx, p.ID, storage.EarningsView, 0.05); err != nil {
		t.Fatalf("IncrementEarnings: %v", err)
	}

	if err := svc.SoftDelete(ctx, author.ID, false, p.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Active {
		t.Fatalf("expected post inactive")
	}
	if got.TotalEarnings != 0.05 {
		t.Fatalf("expected earnings preserved, got %v", got.TotalEarnings)
	}
}
