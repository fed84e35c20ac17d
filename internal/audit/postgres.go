package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

// Postgres persists entries in the audit_log table.
type Postgres struct {
	db     DBTX
	logger *slog.Logger
}

var (
	_ Sink   = (*Postgres)(nil)
	_ Lister = (*Postgres)(nil)
)

// NewPostgres returns a sink writing through db.
func NewPostgres(db DBTX, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger}
}

func (p *Postgres) Record(ctx context.Context, e Entry) {
	e = e.normalize(ctx, time.Now())

	_, err := p.db.Exec(ctx,
		`INSERT INTO audit_log (id, title, details, kind, severity, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Title, e.Details, string(e.Kind), string(e.Severity), e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		p.logger.Error("failed to write audit entry",
			"error", err,
			"title", e.Title,
			"kind", e.Kind,
		)
	}
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultMemoryCapacity
	}

	rows, err := p.db.Query(ctx,
		`SELECT id::text, title, details, kind, severity, ip_address, user_agent, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e              Entry
			kind, severity string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Details, &kind, &severity, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.Severity = Severity(severity)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
