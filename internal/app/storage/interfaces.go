package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dedpost/platform/internal/app/domain/ledger"
	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/domain/user"
)

// Sentinel errors for the platform's error taxonomy. Services and handlers
// branch on these with errors.Is; anything else is treated as a transient
// storage failure.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientFunds = errors.New("insufficient pending earnings")

	// ErrInvalidInput marks a request rejected by validation. Services wrap
	// it so the HTTP layer can tell a caller mistake from a storage failure.
	ErrInvalidInput = errors.New("invalid input")
)

// EarningsKind selects which per-post earnings accumulator a delta applies to.
type EarningsKind string

const (
	EarningsView EarningsKind = "view"
	EarningsLike EarningsKind = "like"
)

// UserStore persists platform accounts and their earnings ledgers.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]user.User, int64, error)
	SetUserStatus(ctx context.Context, id string, active bool) (user.User, error)
	AdjustPostsCount(ctx context.Context, id string, delta int64) error

	// SettlePayout moves amount from pending to paid as a single conditional
	// update. It returns ErrInsufficientFunds without changing balances when
	// amount exceeds the current pending earnings.
	SettlePayout(ctx context.Context, id string, amount float64) (user.User, error)

	// ListPayable returns active non-admin accounts whose pending earnings
	// meet minAmount, ordered by pending earnings descending, together with
	// the matching account count and the summed payable amount.
	ListPayable(ctx context.Context, minAmount float64, offset, limit int) ([]user.User, int64, float64, error)
}

// PostStore persists content items, their interaction sets, and counters.
//
// InsertView and ToggleLike are the linearization points for engagement:
// they perform an atomic insert-if-absent (respectively toggle) on the
// per-user membership set and adjust the matching counter in the same
// operation, so concurrent duplicate requests cannot double-count.
type PostStore interface {
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)
	GetPost(ctx context.Context, id string) (post.Post, error)
	ListFeed(ctx context.Context, offset, limit int) ([]post.Post, int64, error)
	ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]post.Post, int64, error)
	ListTopEarning(ctx context.Context, limit int) ([]post.Post, error)
	DeactivatePost(ctx context.Context, id string) error

	// InsertView adds userID to the post's view set once, ever. It returns
	// the refreshed post and whether this call performed the insertion.
	// ErrNotFound covers both missing and inactive posts.
	InsertView(ctx context.Context, postID, userID string, at time.Time) (bool, post.Post, error)

	// ToggleLike inserts userID into the like set if absent, removes it if
	// present, and reports the resulting membership.
	ToggleLike(ctx context.Context, postID, userID string, at time.Time) (bool, post.Post, error)

	HasViewed(ctx context.Context, postID, userID string) (bool, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)

	// IncrementEarnings atomically adds delta to the selected accumulator
	// and to the post's total earnings.
	IncrementEarnings(ctx context.Context, postID string, kind EarningsKind, delta float64) error
}

// SettingsStore persists the singleton rate configuration. Get must create
// the record with defaults when absent, using an upsert so concurrent first
// readers cannot race a duplicate into existence.
type SettingsStore interface {
	GetSettings(ctx context.Context) (settings.Settings, error)
	PutSettings(ctx context.Context, s settings.Settings) (settings.Settings, error)
}

// LedgerStore persists engagement accrual events and applies each of their
// two sides exactly once.
type LedgerStore interface {
	AppendEvent(ctx context.Context, ev ledger.Event) (ledger.Event, error)
	GetEvent(ctx context.Context, id string) (ledger.Event, error)

	// ApplyEventToPost credits the event's delta to the post's view or like
	// earnings accumulator and to its total, and marks the post side applied,
	// atomically with respect to repeated calls for the same event. It
	// reports whether this call performed the credit.
	ApplyEventToPost(ctx context.Context, eventID string) (bool, error)

	// ApplyEventToAuthor credits the event's delta to the author's total and
	// pending earnings and marks the author side applied, atomically with
	// respect to repeated calls for the same event. It reports whether this
	// call performed the credit.
	ApplyEventToAuthor(ctx context.Context, eventID string) (bool, error)

	// ListUnapplied returns events created before the cutoff with either
	// side still pending, oldest first.
	ListUnapplied(ctx context.Context, olderThan time.Time, limit int) ([]ledger.Event, error)
}

// PlatformStats aggregates the figures shown on the admin dashboard.
type PlatformStats struct {
	TotalUsers    int64   `json:"total_users"`
	TotalPosts    int64   `json:"total_posts"`
	TotalViews    int64   `json:"total_views"`
	TotalLikes    int64   `json:"total_likes"`
	TotalComments int64   `json:"total_comments"`
	TotalEarnings float64 `json:"total_earnings"`
	TotalPayable  float64 `json:"total_payable"`
}

// StatsStore computes platform-wide aggregates over active records.
type StatsStore interface {
	PlatformStats(ctx context.Context) (PlatformStats, error)
}
