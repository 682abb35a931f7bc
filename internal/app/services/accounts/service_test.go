package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/internal/app/storage/memory"
)

func TestRegisterAndGet(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	created, err := svc.Register(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !created.Active {
		t.Fatalf("expected new account to be active")
	}
	if created.PendingEarnings != 0 || created.TotalEarnings != 0 {
		t.Fatalf("expected zero balances, got %+v", created)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("expected username alice, got %s", got.Username)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "short@example.com"); err == nil {
		t.Fatalf("expected error for short username")
	}
	if _, err := svc.Register(ctx, "valid_name", "not-an-email"); err == nil {
		t.Fatalf("expected error for invalid email")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.com"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "Alice", "other@example.com")
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for case-insensitive username clash, got %v", err)
	}
}

func TestSetStatusGuardsSelfDeactivation(t *testing.T) {
	svc := NewService(memory.New(), nil)
	ctx := context.Background()

	admin, err := svc.Register(ctx, "admin_user", "admin@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.SetStatus(ctx, admin.ID, admin.ID, false); err == nil {
		t.Fatalf("expected error when deactivating own account")
	}

	target, err := svc.Register(ctx, "target_user", "target@example.com")
	if err != nil {
		t.Fatalf("Register target: %v", err)
	}
	updated, err := svc.SetStatus(ctx, admin.ID, target.ID, false)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if updated.Active {
		t.Fatalf("expected target to be deactivated")
	}
}

func TestGetMissing(t *testing.T) {
	svc := NewService(memory.New(), nil)

	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
