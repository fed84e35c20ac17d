package store

import (
	"context"
	"fmt"
)

// Schema creates the tables this service owns. Every statement is
// idempotent so Migrate can run on each start.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	subtitle         TEXT,
	brand            TEXT,
	price_text       TEXT,
	price            NUMERIC(12, 2),
	rating           DOUBLE PRECISION,
	review_count     DOUBLE PRECISION,
	url              TEXT,
	image_url        TEXT,
	source           TEXT,
	is_best_seller   BOOLEAN NOT NULL DEFAULT FALSE,
	is_prime         BOOLEAN NOT NULL DEFAULT FALSE,
	is_eco_friendly  BOOLEAN NOT NULL DEFAULT FALSE,
	is_amazon_choice BOOLEAN NOT NULL DEFAULT FALSE,
	is_deal          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS products_created_at_idx ON products (created_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS audit_log_created_at_idx ON audit_log (created_at DESC);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
