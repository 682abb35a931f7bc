package payouts

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dedpost/platform/internal/app/domain/ledger"
	"github.com/dedpost/platform/internal/app/domain/payout"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/internal/app/storage/memory"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func seedUser(t *testing.T, store *memory.Store, username string, pending float64) user.User {
	t.Helper()
	ctx := context.Background()
	u, err := store.CreateUser(ctx, user.User{Username: username, Email: username + "@example.com"})
	if err != nil {
		t.Fatalf("CreateUser %s: %v", username, err)
	}
	if pending <= 0 {
		return u
	}
	ev, err := store.AppendEvent(ctx, ledger.Event{
		PostID:   "seed",
		UserID:   "seed",
		AuthorID: u.ID,
		Type:     ledger.EventView,
		Delta:    pending,
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if _, err := store.ApplyEventToAuthor(ctx, ev.ID); err != nil {
		t.Fatalf("ApplyEventToAuthor: %v", err)
	}
	seeded, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return seeded
}

func TestApproveMovesPendingToPaid(t *testing.T) {
	store := memory.New()
	svc := NewService(store, nil)
	ctx := context.Background()

	creator := seedUser(t, store, "creator", 50)

	receipt, err := svc.Approve(ctx, payout.Request{UserID: creator.ID, Amount: 30})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !approxEqual(receipt.PendingEarnings, 20) || !approxEqual(receipt.PaidEarnings, 30) {
		t.Fatalf("expected pending=20 paid=30, got %+v", receipt)
	}

	u, err := store.GetUser(ctx, creator.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !approxEqual(u.TotalEarnings, 50) {
		t.Fatalf("settlement must not change total earnings, got %v", u.TotalEarnings)
	}
}

func TestApproveInsufficientFundsLeavesBalances(t *testing.T) {
	store := memory.New()
	svc := NewService(store, nil)
	ctx := context.Background()

	creator := seedUser(t, store, "creator", 50)

	_, err := svc.Approve(ctx, payout.Request{UserID: creator.ID, Amount: 60})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	u, err := store.GetUser(ctx, creator.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !approxEqual(u.PendingEarnings, 50) || !approxEqual(u.PaidEarnings, 0) {
		t.Fatalf("failed settlement must not move money, got pending=%v paid=%v", u.PendingEarnings, u.PaidEarnings)
	}

	// The full balance is still settleable afterwards.
	receipt, err := svc.Approve(ctx, payout.Request{UserID: creator.ID, Amount: 50})
	if err != nil {
		t.Fatalf("Approve full balance: %v", err)
	}
	if !approxEqual(receipt.PendingEarnings, 0) || !approxEqual(receipt.PaidEarnings, 50) {
		t.Fatalf("expected pending=0 paid=50, got %+v", receipt)
	}
}

func TestApproveValidation(t *testing.T) {
	store := memory.New()
	svc := NewService(store, nil)
	ctx := context.Background()

	creator := seedUser(t, store, "creator", 50)

	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := svc.Approve(ctx, payout.Request{UserID: creator.ID, Amount: amount})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount for %v, got %v", amount, err)
		}
	}

	_, err := svc.Approve(ctx, payout.Request{UserID: "missing", Amount: 10})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBulkApprovePartialSuccess(t *testing.T) {
	store := memory.New()
	svc := NewService(store, nil)
	ctx := context.Background()

	a := seedUser(t, store, "alice", 100)
	b := seedUser(t, store, "bob", 10)
	c := seedUser(t, store, "carol", 40)

	result, err := svc.BulkApprove(ctx, []payout.Request{
		{UserID: a.ID, Amount: 80},
		{UserID: b.ID, Amount: 50}, // more than bob has pending
		{UserID: c.ID, Amount: 40},
	})
	if err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}

	if result.Successful != 2 || result.Failed != 1 || result.TotalProcessed != 3 {
		t.Fatalf("expected 2/1/3, got %+v", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].UserID != b.ID {
		t.Fatalf("expected bob's request to fail, got %+v", result.Failures)
	}
	if result.Failures[0].Reason != "insufficient pending earnings" {
		t.Fatalf("unexpected failure reason %q", result.Failures[0].Reason)
	}

	// A failure mid-batch must not roll back earlier or block later requests.
	gotA, _ := store.GetUser(ctx, a.ID)
	gotB, _ := store.GetUser(ctx, b.ID)
	gotC, _ := store.GetUser(ctx, c.ID)
	if !approxEqual(gotA.PaidEarnings, 80) || !approxEqual(gotB.PaidEarnings, 0) || !approxEqual(gotC.PaidEarnings, 40) {
		t.Fatalf("unexpected paid balances: a=%v b=%v c=%v", gotA.PaidEarnings, gotB.PaidEarnings, gotC.PaidEarnings)
	}
}

func TestBulkApproveEmpty(t *testing.T) {
	svc := NewService(memory.New(), nil)
	if _, err := svc.BulkApprove(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}

func TestListEligible(t *testing.T) {
	store := memory.New()
	svc := NewService(store, nil)
	ctx := context.Background()

	seedUser(t, store, "small", 5)
	big := seedUser(t, store, "big", 120)
	mid := seedUser(t, store, "mid", 30)

	// Admins never appear in the payable list.
	if _, err := store.CreateUser(ctx, user.User{Username: "boss", Email: "boss@example.com", Role: user.RoleAdmin}); err != nil {
		t.Fatalf("CreateUser admin: %v", err)
	}

	list, err := svc.ListEligible(ctx, 10, 0, 20)
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if list.Total != 2 {
		t.Fatalf("expected 2 eligible accounts, got %d", list.Total)
	}
	if len(list.Users) != 2 || list.Users[0].ID != big.ID || list.Users[1].ID != mid.ID {
		t.Fatalf("expected [big, mid] ordering, got %+v", list.Users)
	}
	if !approxEqual(list.TotalPayable, 150) {
		t.Fatalf("expected total payable 150, got %v", list.TotalPayable)
	}

	if _, err := svc.ListEligible(ctx, -1, 0, 20); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative threshold, got %v", err)
	}
}
