package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/dedpost/platform/internal/app/metrics"
	"github.com/dedpost/platform/internal/app/storage"
	"github.com/dedpost/platform/internal/app/system"
	"github.com/dedpost/platform/pkg/logger"
)

// Reconciler replays ledger events with an unfinished side: first the
// post-side credit, then the author-side credit, the same order the inline
// path uses. Events younger than graceAge are skipped so the poller does not
// race the inline retry path.
type Reconciler struct {
	ledger    storage.LedgerStore
	interval  time.Duration
	graceAge  time.Duration
	batchSize int
	log       *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Reconciler)(nil)

// NewReconciler creates a reconciler over the ledger store.
func NewReconciler(ledgerStore storage.LedgerStore, interval, graceAge time.Duration, batchSize int, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("ledger-reconciler")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if graceAge <= 0 {
		graceAge = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		ledger:    ledgerStore,
		interval:  interval,
		graceAge:  graceAge,
		batchSize: batchSize,
		log:       log,
	}
}

func (r *Reconciler) Name() string { return "ledger-reconciler" }

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.Tick(runCtx)
			}
		}
	}()

	r.log.Info("ledger reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Tick replays one batch of stale unapplied events. It is exported so tests
// and operators can drive a pass without the ticker.
func (r *Reconciler) Tick(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.graceAge)
	events, err := r.ledger.ListUnapplied(ctx, cutoff, r.batchSize)
	if err != nil {
		r.log.WithError(err).Warn("list unapplied events failed")
		return
	}

	for _, ev := range events {
		if ev.PostAppliedAt == nil {
			applied, err := r.ledger.ApplyEventToPost(ctx, ev.ID)
			if err != nil {
				// The author side stays untouched until the post side lands.
				metrics.RecordReconcilerReplay("post_error")
				r.log.WithError(err).Warnf("post-side replay of event %s failed", ev.ID)
				continue
			}
			if applied {
				metrics.RecordReconcilerReplay("post_applied")
				r.log.WithField("event_id", ev.ID).
					WithField("post_id", ev.PostID).
					Infof("replayed post-side %s accrual of %.4f", ev.Type, ev.Delta)
			}
		}

		if ev.AppliedAt != nil {
			continue
		}
		applied, err := r.ledger.ApplyEventToAuthor(ctx, ev.ID)
		if err != nil {
			metrics.RecordReconcilerReplay("error")
			r.log.WithError(err).Warnf("replay of event %s failed", ev.ID)
			continue
		}
		if applied {
			metrics.RecordReconcilerReplay("applied")
			r.log.WithField("event_id", ev.ID).
				WithField("author_id", ev.AuthorID).
				Infof("replayed %s accrual of %.4f", ev.Type, ev.Delta)
		} else {
			metrics.RecordReconcilerReplay("already_applied")
		}
	}
}
