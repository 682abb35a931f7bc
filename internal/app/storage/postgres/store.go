// Package postgres implements the storage interfaces backed by PostgreSQL.
// Membership sets are rows with composite primary keys so that set-insert and
// toggle are single atomic statements rather than read-modify-write cycles on
// a loaded document.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dedpost/platform/internal/app/domain/ledger"
	"github.com/dedpost/platform/internal/app/domain/post"
	"github.com/dedpost/platform/internal/app/domain/settings"
	"github.com/dedpost/platform/internal/app/domain/user"
	"github.com/dedpost/platform/internal/app/storage"
)

const moneyEpsilon = 1e-9

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.SettingsStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.StatsStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, username, email, role, total_earnings, pending_earnings, paid_earnings, posts_count, active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.TotalEarnings,
		&u.PendingEarnings, &u.PaidEarnings, &u.PostsCount, &u.Active,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const postColumns = `id, author_id, caption, media_url, media_type, views_count, likes_count, comments_count, view_earnings, like_earnings, total_earnings, active, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (post.Post, error) {
	var p post.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Caption, &p.MediaURL, &p.MediaType,
		&p.ViewsCount, &p.LikesCount, &p.CommentsCount, &p.ViewEarnings,
		&p.LikeEarnings, &p.TotalEarnings, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func mapError(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrDuplicate)
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = user.RoleUser
	}
	now := time.Now().UTC()
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Username, u.Email, u.Role, u.TotalEarnings, u.PendingEarnings,
		u.PaidEarnings, u.PostsCount, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err, "user", u.Username)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapError(err, "user", id)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]user.User, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, maxInt(offset, 0), normalizeLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *Store) SetUserStatus(ctx context.Context, id string, active bool) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET active = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id, active, time.Now().UTC())
	u, err := scanUser(row)
	if err != nil {
		return user.User{}, mapError(err, "user", id)
	}
	return u, nil
}

func (s *Store) AdjustPostsCount(ctx context.Context, id string, delta int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET posts_count = GREATEST(posts_count + $2, 0), updated_at = $3
		WHERE id = $1
	`, id, delta, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) SettlePayout(ctx context.Context, id string, amount float64) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET pending_earnings = GREATEST(pending_earnings - $2, 0),
		    paid_earnings = paid_earnings + $2,
		    updated_at = $3
		WHERE id = $1 AND pending_earnings + $4 >= $2
		RETURNING `+userColumns+`
	`, id, amount, time.Now().UTC(), moneyEpsilon)

	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return user.User{}, err
	}

	// The conditional update matched nothing: distinguish a missing account
	// from an insufficient balance.
	if _, getErr := s.GetUser(ctx, id); getErr != nil {
		return user.User{}, getErr
	}
	return user.User{}, fmt.Errorf("settle %.4f for user %s: %w", amount, id, storage.ErrInsufficientFunds)
}

func (s *Store) ListPayable(ctx context.Context, minAmount float64, offset, limit int) ([]user.User, int64, float64, error) {
	var (
		total        int64
		totalPayable float64
	)
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(pending_earnings), 0)
		FROM users
		WHERE active AND role = 'user' AND pending_earnings + $2 >= $1
	`, minAmount, moneyEpsilon).Scan(&total, &totalPayable); err != nil {
		return nil, 0, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE active AND role = 'user' AND pending_earnings + $4 >= $1
		ORDER BY pending_earnings DESC, id
		OFFSET $2 LIMIT $3
	`, minAmount, maxInt(offset, 0), normalizeLimit(limit), moneyEpsilon)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, 0, err
		}
		users = append(users, u)
	}
	return users, total, totalPayable, rows.Err()
}

// --- PostStore --------------------------------------------------------------

func (s *Store) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.Active = true
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.AuthorID, p.Caption, p.MediaURL, p.MediaType, p.ViewsCount,
		p.LikesCount, p.CommentsCount, p.ViewEarnings, p.LikeEarnings,
		p.TotalEarnings, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return post.Post{}, fmt.Errorf("author %s: %w", p.AuthorID, storage.ErrNotFound)
		}
		return post.Post{}, mapError(err, "post", p.ID)
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (post.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if err != nil {
		return post.Post{}, mapError(err, "post", id)
	}
	return p, nil
}

func (s *Store) ListFeed(ctx context.Context, offset, limit int) ([]post.Post, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE active
		ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2
	`, maxInt(offset, 0), normalizeLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	posts, err := collectPosts(rows)
	return posts, total, err
}

func (s *Store) ListByAuthor(ctx context.Context, authorID string, offset, limit int) ([]post.Post, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE active AND author_id = $1`, authorID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE active AND author_id = $1
		ORDER BY created_at DESC, id
		OFFSET $2 LIMIT $3
	`, authorID, maxInt(offset, 0), normalizeLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	posts, err := collectPosts(rows)
	return posts, total, err
}

func (s *Store) ListTopEarning(ctx context.Context, limit int) ([]post.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE active
		ORDER BY total_earnings DESC, id
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

func (s *Store) DeactivatePost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts SET active = FALSE, updated_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) InsertView(ctx context.Context, postID, userID string, at time.Time) (bool, post.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, post.Post{}, err
	}
	defer tx.Rollback()

	// The guarded insert is the test-and-set: it only fires for an active
	// post and at most once per (post, user).
	result, err := tx.ExecContext(ctx, `
		INSERT INTO post_views (post_id, user_id, created_at)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM posts WHERE id = $1 AND active)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, postID, userID, at.UTC())
	if err != nil {
		return false, post.Post{}, err
	}
	rows, _ := result.RowsAffected()

	if rows == 1 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET views_count = views_count + 1, updated_at = $2 WHERE id = $1
		`, postID, time.Now().UTC()); err != nil {
			return false, post.Post{}, err
		}
	}

	row := tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID)
	p, err := scanPost(row)
	if err != nil {
		return false, post.Post{}, mapError(err, "post", postID)
	}
	if !p.Active {
		return false, post.Post{}, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return false, post.Post{}, err
	}
	return rows == 1, p, nil
}

func (s *Store) ToggleLike(ctx context.Context, postID, userID string, at time.Time) (bool, post.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, post.Post{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, postID)
	p, err := scanPost(row)
	if err != nil {
		return false, post.Post{}, mapError(err, "post", postID)
	}
	if !p.Active {
		return false, post.Post{}, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, post.Post{}, err
	}
	removed, _ := result.RowsAffected()

	liked := false
	if removed == 1 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET likes_count = GREATEST(likes_count - 1, 0), updated_at = $2 WHERE id = $1
		`, postID, time.Now().UTC()); err != nil {
			return false, post.Post{}, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
		`, postID, userID, at.UTC()); err != nil {
			return false, post.Post{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET likes_count = likes_count + 1, updated_at = $2 WHERE id = $1
		`, postID, time.Now().UTC()); err != nil {
			return false, post.Post{}, err
		}
		liked = true
	}

	row = tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID)
	p, err = scanPost(row)
	if err != nil {
		return false, post.Post{}, mapError(err, "post", postID)
	}

	if err := tx.Commit(); err != nil {
		return false, post.Post{}, err
	}
	return liked, p, nil
}

func (s *Store) HasViewed(ctx context.Context, postID, userID string) (bool, error) {
	return s.hasInteraction(ctx, "post_views", postID, userID)
}

func (s *Store) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	return s.hasInteraction(ctx, "post_likes", postID, userID)
}

func (s *Store) hasInteraction(ctx context.Context, table, postID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM `+table+` WHERE post_id = $1 AND user_id = $2)
	`, postID, userID).Scan(&exists)
	return exists, err
}

func (s *Store) IncrementEarnings(ctx context.Context, postID string, kind storage.EarningsKind, delta float64) error {
	var column string
	switch kind {
	case storage.EarningsView:
		column = "view_earnings"
	case storage.EarningsLike:
		column = "like_earnings"
	default:
		return fmt.Errorf("unknown earnings kind %q", kind)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET `+column+` = `+column+` + $2,
		    total_earnings = total_earnings + $2,
		    updated_at = $3
		WHERE id = $1
	`, postID, delta, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}
	return nil
}

// --- SettingsStore ----------------------------------------------------------

const settingsColumns = `view_rate, like_rate, earnings_enabled, platform_name, currency, currency_symbol, min_payout_amount, auto_payout_enabled, auto_payout_threshold, max_file_size, allow_image_uploads, allow_video_uploads, updated_at`

func (s *Store) GetSettings(ctx context.Context) (settings.Settings, error) {
	defaults := settings.Defaults()
	// Upsert-then-read: concurrent first readers cannot create duplicates
	// because the singleton row is keyed by a constant id.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO platform_settings (id, `+settingsColumns+`)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`, defaults.ViewRate, defaults.LikeRate, defaults.EarningsEnabled,
		defaults.PlatformName, defaults.Currency, defaults.CurrencySymbol,
		defaults.MinPayoutAmount, defaults.AutoPayoutEnabled, defaults.AutoPayoutThreshold,
		defaults.MaxFileSize, defaults.AllowImageUploads, defaults.AllowVideoUploads,
		time.Now().UTC()); err != nil {
		return settings.Settings{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM platform_settings WHERE id = 1`)
	var cfg settings.Settings
	if err := row.Scan(&cfg.ViewRate, &cfg.LikeRate, &cfg.EarningsEnabled,
		&cfg.PlatformName, &cfg.Currency, &cfg.CurrencySymbol,
		&cfg.MinPayoutAmount, &cfg.AutoPayoutEnabled, &cfg.AutoPayoutThreshold,
		&cfg.MaxFileSize, &cfg.AllowImageUploads, &cfg.AllowVideoUploads,
		&cfg.UpdatedAt); err != nil {
		return settings.Settings{}, err
	}
	return cfg, nil
}

func (s *Store) PutSettings(ctx context.Context, cfg settings.Settings) (settings.Settings, error) {
	cfg.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO platform_settings (id, `+settingsColumns+`)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			view_rate = EXCLUDED.view_rate,
			like_rate = EXCLUDED.like_rate,
			earnings_enabled = EXCLUDED.earnings_enabled,
			platform_name = EXCLUDED.platform_name,
			currency = EXCLUDED.currency,
			currency_symbol = EXCLUDED.currency_symbol,
			min_payout_amount = EXCLUDED.min_payout_amount,
			auto_payout_enabled = EXCLUDED.auto_payout_enabled,
			auto_payout_threshold = EXCLUDED.auto_payout_threshold,
			max_file_size = EXCLUDED.max_file_size,
			allow_image_uploads = EXCLUDED.allow_image_uploads,
			allow_video_uploads = EXCLUDED.allow_video_uploads,
			updated_at = EXCLUDED.updated_at
	`, cfg.ViewRate, cfg.LikeRate, cfg.EarningsEnabled,
		cfg.PlatformName, cfg.Currency, cfg.CurrencySymbol,
		cfg.MinPayoutAmount, cfg.AutoPayoutEnabled, cfg.AutoPayoutThreshold,
		cfg.MaxFileSize, cfg.AllowImageUploads, cfg.AllowVideoUploads,
		cfg.UpdatedAt)
	if err != nil {
		return settings.Settings{}, err
	}
	return cfg, nil
}

// --- LedgerStore ------------------------------------------------------------

func (s *Store) AppendEvent(ctx context.Context, ev ledger.Event) (ledger.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.PostAppliedAt = nil
	ev.AppliedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_events (id, post_id, user_id, author_id, type, delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, ev.PostID, ev.UserID, ev.AuthorID, ev.Type, ev.Delta, ev.CreatedAt)
	if err != nil {
		return ledger.Event{}, mapError(err, "event", ev.ID)
	}
	return ev, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (ledger.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, post_id, user_id, author_id, type, delta, created_at, post_applied_at, applied_at
		FROM ledger_events WHERE id = $1
	`, id)
	var ev ledger.Event
	if err := row.Scan(&ev.ID, &ev.PostID, &ev.UserID, &ev.AuthorID, &ev.Type,
		&ev.Delta, &ev.CreatedAt, &ev.PostAppliedAt, &ev.AppliedAt); err != nil {
		return ledger.Event{}, mapError(err, "event", id)
	}
	return ev, nil
}

func (s *Store) ApplyEventToPost(ctx context.Context, eventID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT post_id, type, delta, post_applied_at FROM ledger_events WHERE id = $1 FOR UPDATE
	`, eventID)
	var (
		postID    string
		evType    string
		delta     float64
		appliedAt sql.NullTime
	)
	if err := row.Scan(&postID, &evType, &delta, &appliedAt); err != nil {
		return false, mapError(err, "event", eventID)
	}
	if appliedAt.Valid {
		return false, nil
	}

	column := "like_earnings"
	if evType == string(ledger.EventView) {
		column = "view_earnings"
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE posts
		SET `+column+` = `+column+` + $2,
		    total_earnings = total_earnings + $2,
		    updated_at = $3
		WHERE id = $1
	`, postID, delta, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, fmt.Errorf("post %s: %w", postID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger_events SET post_applied_at = $2 WHERE id = $1
	`, eventID, time.Now().UTC()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ApplyEventToAuthor(ctx context.Context, eventID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT author_id, delta, applied_at FROM ledger_events WHERE id = $1 FOR UPDATE
	`, eventID)
	var (
		authorID  string
		delta     float64
		appliedAt sql.NullTime
	)
	if err := row.Scan(&authorID, &delta, &appliedAt); err != nil {
		return false, mapError(err, "event", eventID)
	}
	if appliedAt.Valid {
		return false, nil
	}

	// Total and pending move together by the raw delta so total always stays
	// pending + paid; a reversal after a settlement leaves pending negative
	// rather than silently dropping the debit.
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_earnings = total_earnings + $2,
		    pending_earnings = pending_earnings + $2,
		    updated_at = $3
		WHERE id = $1
	`, authorID, delta, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, fmt.Errorf("author %s: %w", authorID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger_events SET applied_at = $2 WHERE id = $1
	`, eventID, time.Now().UTC()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListUnapplied(ctx context.Context, olderThan time.Time, limit int) ([]ledger.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, author_id, type, delta, created_at, post_applied_at, applied_at
		FROM ledger_events
		WHERE (post_applied_at IS NULL OR applied_at IS NULL) AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan.UTC(), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]ledger.Event, 0)
	for rows.Next() {
		var ev ledger.Event
		if err := rows.Scan(&ev.ID, &ev.PostID, &ev.UserID, &ev.AuthorID,
			&ev.Type, &ev.Delta, &ev.CreatedAt, &ev.PostAppliedAt, &ev.AppliedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- StatsStore -------------------------------------------------------------

func (s *Store) PlatformStats(ctx context.Context) (storage.PlatformStats, error) {
	var stats storage.PlatformStats

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(pending_earnings) FILTER (WHERE role = 'user'), 0)
		FROM users WHERE active
	`).Scan(&stats.TotalUsers, &stats.TotalPayable); err != nil {
		return storage.PlatformStats{}, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(views_count), 0),
		       COALESCE(SUM(likes_count), 0),
		       COALESCE(SUM(comments_count), 0),
		       COALESCE(SUM(total_earnings), 0)
		FROM posts WHERE active
	`).Scan(&stats.TotalPosts, &stats.TotalViews, &stats.TotalLikes,
		&stats.TotalComments, &stats.TotalEarnings); err != nil {
		return storage.PlatformStats{}, err
	}

	return stats, nil
}

// helpers ---------------------------------------------------------------------

func collectPosts(rows *sql.Rows) ([]post.Post, error) {
	posts := make([]post.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func maxInt(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}
