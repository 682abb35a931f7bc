package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL for the platform tables. Statements are idempotent so
// EnsureSchema can run at every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id               UUID PRIMARY KEY,
	username         TEXT NOT NULL,
	email            TEXT NOT NULL,
	role             TEXT NOT NULL DEFAULT 'user',
	total_earnings   DOUBLE PRECISION NOT NULL DEFAULT 0,
	pending_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
	paid_earnings    DOUBLE PRECISION NOT NULL DEFAULT 0,
	posts_count      BIGINT NOT NULL DEFAULT 0,
	active           BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (LOWER(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email));
CREATE INDEX IF NOT EXISTS users_pending_idx ON users (pending_earnings DESC)
	WHERE active AND role = 'user';

CREATE TABLE IF NOT EXISTS posts (
	id             UUID PRIMARY KEY,
	author_id      UUID NOT NULL REFERENCES users (id),
	caption        TEXT NOT NULL,
	media_url      TEXT NOT NULL,
	media_type     TEXT NOT NULL,
	views_count    BIGINT NOT NULL DEFAULT 0,
	likes_count    BIGINT NOT NULL DEFAULT 0,
	comments_count BIGINT NOT NULL DEFAULT 0,
	view_earnings  DOUBLE PRECISION NOT NULL DEFAULT 0,
	like_earnings  DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS posts_created_idx ON posts (created_at DESC) WHERE active;

CREATE TABLE IF NOT EXISTS post_views (
	post_id    UUID NOT NULL REFERENCES posts (id),
	user_id    UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS post_likes (
	post_id    UUID NOT NULL REFERENCES posts (id),
	user_id    UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS platform_settings (
	id                    SMALLINT PRIMARY KEY CHECK (id = 1),
	view_rate             DOUBLE PRECISION NOT NULL,
	like_rate             DOUBLE PRECISION NOT NULL,
	earnings_enabled      BOOLEAN NOT NULL,
	platform_name         TEXT NOT NULL,
	currency              TEXT NOT NULL,
	currency_symbol       TEXT NOT NULL,
	min_payout_amount     DOUBLE PRECISION NOT NULL,
	auto_payout_enabled   BOOLEAN NOT NULL,
	auto_payout_threshold DOUBLE PRECISION NOT NULL,
	max_file_size         BIGINT NOT NULL,
	allow_image_uploads   BOOLEAN NOT NULL,
	allow_video_uploads   BOOLEAN NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id              UUID PRIMARY KEY,
	post_id         UUID NOT NULL,
	user_id         UUID NOT NULL,
	author_id       UUID NOT NULL,
	type            TEXT NOT NULL,
	delta           DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	post_applied_at TIMESTAMPTZ,
	applied_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS ledger_events_unapplied_idx ON ledger_events (created_at)
	WHERE post_applied_at IS NULL OR applied_at IS NULL;
`

// EnsureSchema creates the platform tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
