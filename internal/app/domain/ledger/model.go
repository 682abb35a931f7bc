// Package ledger defines earnings accrual events. Each engagement that earns
// money produces one event; the event is applied to the post's accumulators
// and to the author's account exactly once per side, either inline or by the
// reconciler.
package ledger

import "time"

// EventType identifies what kind of engagement produced an event.
type EventType string

const (
	EventView   EventType = "view"
	EventLike   EventType = "like"
	EventUnlike EventType = "unlike"
)

// Event is one earnings accrual. Delta is the signed amount the engagement is
// worth (negative for unlikes). The two applied markers track each side of
// the money independently: PostAppliedAt is nil until the post's accumulators
// have been credited, AppliedAt is nil until the author's account has.
type Event struct {
	ID            string     `json:"id"`
	PostID        string     `json:"post_id"`
	UserID        string     `json:"user_id"`
	AuthorID      string     `json:"author_id"`
	Type          EventType  `json:"type"`
	Delta         float64    `json:"delta"`
	CreatedAt     time.Time  `json:"created_at"`
	PostAppliedAt *time.Time `json:"post_applied_at,omitempty"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
}