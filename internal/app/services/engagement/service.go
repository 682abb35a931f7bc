// Package engagement records views and likes and posts the earnings they
// accrue. Recording an engagement and crediting the money are separate
// writes: the membership set is the source of truth for whether an
// engagement counted, and a ledger event bridges the gap between the
// content-side and account-side earnings updates so a crash between the two
// cannot double-credit or silently drop money.
package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/dedpost/platform/internal/app/domain/ledger"
	"github.com/dedpost/platform/internal/app/domain/post"
	domainsettings "github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/metrics"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/pkg/logger"
)

// RateSource supplies the current engagement rates. The settings service
// implements it.
type RateSource interface {
	Get(ctx context.Context) (domainsettings.Settings, error)
}

// ViewResult reports the outcome of a view request. Deferred is set when the
// engagement counted but its accrual has not landed yet and is left to the
// reconciler.
type ViewResult struct {
	Counted    bool    `json:"counted"`
	ViewsCount int64   `json:"views_count"`
	Earned     float64 `json:"earned"`
	Deferred   bool    `json:"accrual_deferred,omitempty"`
}

// LikeResult reports the outcome of a like toggle.
type LikeResult struct {
	Liked      bool    `json:"liked"`
	LikesCount int64   `json:"likes_count"`
	Earned     float64 `json:"earned"`
	Deferred   bool    `json:"accrual_deferred,omitempty"`
}

// Service implements engagement recording and earnings posting.
type Service struct {
	posts   storage.PostStore
	ledger  storage.LedgerStore
	rates   RateSource
	log     *logger.Logger
	retries int
}

// NewService creates an engagement service. retries bounds the inline
// attempts to credit the author before the event is left for the reconciler.
func NewService(posts storage.PostStore, ledgerStore storage.LedgerStore, rates RateSource, retries int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("engagement")
	}
	if retries < 1 {
		retries = 1
	}
	return &Service{posts: posts, ledger: ledgerStore, rates: rates, log: log, retries: retries}
}

// RecordView counts one view of postID by userID. Repeat views by the same
// user never count again and never accrue again; the first view accrues the
// current view rate to the post's author when earnings are enabled.
func (s *Service) RecordView(ctx context.Context, postID, userID string) (ViewResult, error) {
	if postID == "" || userID == "" {
		return ViewResult{}, fmt.Errorf("post id and user id are required: %w", storage.ErrInvalidInput)
	}

	inserted, p, err := s.posts.InsertView(ctx, postID, userID, time.Now().UTC())
	if err != nil {
		return ViewResult{}, fmt.Errorf("record view on post %s: %w", postID, err)
	}
	metrics.RecordEngagement("view", inserted)

	result := ViewResult{Counted: inserted, ViewsCount: p.ViewsCount}
	if !inserted {
		return result, nil
	}

	earned, err := s.accrue(ctx, p, userID, ledger.EventView, storage.EarningsView)
	if err != nil {
		// The view itself counted; the accrual failure is logged and the
		// unapplied event, if any, will be replayed by the reconciler.
		s.log.WithError(err).WithField("post_id", postID).Error("view accrual failed")
		result.Deferred = true
		return result, nil
	}
	result.Earned = earned
	return result, nil
}

// ToggleLike flips userID's membership in postID's like set. Liking accrues
// the like rate to the author; unliking reverses exactly one like's worth.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (LikeResult, error) {
	if postID == "" || userID == "" {
		return LikeResult{}, fmt.Errorf("post id and user id are required: %w", storage.ErrInvalidInput)
	}

	liked, p, err := s.posts.ToggleLike(ctx, postID, userID, time.Now().UTC())
	if err != nil {
		return LikeResult{}, fmt.Errorf("toggle like on post %s: %w", postID, err)
	}
	metrics.RecordEngagement("like", liked)

	result := LikeResult{Liked: liked, LikesCount: p.LikesCount}

	eventType := ledger.EventLike
	if !liked {
		eventType = ledger.EventUnlike
	}
	earned, err := s.accrue(ctx, p, userID, eventType, storage.EarningsLike)
	if err != nil {
		s.log.WithError(err).WithField("post_id", postID).Error("like accrual failed")
		result.Deferred = true
		return result, nil
	}
	result.Earned = earned
	return result, nil
}

// HasViewed reports whether userID has ever viewed postID.
func (s *Service) HasViewed(ctx context.Context, postID, userID string) (bool, error) {
	return s.posts.HasViewed(ctx, postID, userID)
}

// HasLiked reports whether userID currently likes postID.
func (s *Service) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	return s.posts.HasLiked(ctx, postID, userID)
}

// accrue posts the earnings for one engagement: append the ledger event,
// credit the post-side accumulator, then credit the author with bounded
// retries. The event append is the commit point for the money; both credits
// are keyed by the event and replayable, so a failure on either side leaves
// the reconciler something it can finish rather than a half-applied delta.
func (s *Service) accrue(ctx context.Context, p post.Post, userID string, eventType ledger.EventType, kind storage.EarningsKind) (float64, error) {
	cfg, err := s.rates.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rates: %w", err)
	}
	if !cfg.EarningsEnabled {
		return 0, nil
	}

	rate := cfg.ViewRate
	if kind == storage.EarningsLike {
		rate = cfg.LikeRate
	}
	if rate <= 0 {
		return 0, nil
	}

	delta := rate
	if eventType == ledger.EventUnlike {
		delta = -rate
	}

	ev, err := s.ledger.AppendEvent(ctx, ledger.Event{
		PostID:   p.ID,
		UserID:   userID,
		AuthorID: p.AuthorID,
		Type:     eventType,
		Delta:    delta,
	})
	if err != nil {
		metrics.RecordAccrual("append_failed")
		return 0, fmt.Errorf("append ledger event: %w", err)
	}

	// The post side goes first; if it fails the author side is not touched
	// and the reconciler replays both sides in the same order.
	if _, err := s.ledger.ApplyEventToPost(ctx, ev.ID); err != nil {
		metrics.RecordAccrual("content_failed")
		return 0, fmt.Errorf("credit post %s: %w", p.ID, err)
	}

	if err := s.applyWithRetry(ctx, ev.ID); err != nil {
		metrics.RecordAccrual("account_deferred")
		return 0, fmt.Errorf("credit author %s: %w", p.AuthorID, err)
	}

	metrics.RecordAccrual("applied")
	return delta, nil
}

func (s *Service) applyWithRetry(ctx context.Context, eventID string) error {
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		_, err := s.ledger.ApplyEventToAuthor(ctx, eventID)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}
