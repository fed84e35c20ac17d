// Package audit records operator-visible history: imports, exports,
// deletions, extractions and their failures.
//
// A Sink is injected wherever an action is taken. Recording never fails the
// caller; sinks that can fail log the problem and move on.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an entry the way the operator sees it.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Severity is derived from Kind and used for filtering.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor maps a kind to its severity. Unknown kinds are low.
func SeverityFor(k Kind) Severity {
	switch k {
	case KindError:
		return SeverityHigh
	case KindWarning:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Entry is one audit record.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Details   string    `json:"details,omitempty"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// normalize fills ID, Kind, Severity, CreatedAt and the request origin
// when unset.
func (e Entry) normalize(ctx context.Context, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == "" {
		e.Kind = KindInfo
	}
	if e.Severity == "" {
		e.Severity = SeverityFor(e.Kind)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = IPAddressFromContext(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = UserAgentFromContext(ctx)
	}
	return e
}

// Sink receives audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// Lister is a Sink that can return recent entries, newest first.
type Lister interface {
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Nop discards every entry. It is the default when no sink is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Slog writes entries to a structured logger.
type Slog struct {
	Logger *slog.Logger
}

func (s Slog) Record(ctx context.Context, e Entry) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e = e.normalize(ctx, time.Now())

	level := slog.LevelInfo
	switch e.Severity {
	case SeverityHigh:
		level = slog.LevelError
	case SeverityMedium:
		level = slog.LevelWarn
	}

	logger.Log(ctx, level, "audit",
		"title", e.Title,
		"details", e.Details,
		"kind", e.Kind,
		"audit_id", e.ID,
		"ip", e.IPAddress,
	)
}

// Multi fans an entry out to several sinks. Every sink sees the same ID and
// timestamp.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Entry) {
	e = e.normalize(ctx, time.Now())
	for _, s := range m {
		if s != nil {
			s.Record(ctx, e)
		}
	}
}

// Record is shorthand for sending a title/details/kind triple to s, which
// may be nil.
func Record(ctx context.Context, s Sink, title, details string, kind Kind) {
	OrNop(s).Record(ctx, Entry{Title: title, Details: details, Kind: kind})
}
