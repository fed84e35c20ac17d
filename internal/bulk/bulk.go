// Package bulk runs operator actions over a collection and a selection:
// export, delete, save-for-later, import and persist.
//
// Every action returns a Result. Collaborator failures are caught here and
// turned into a failed Result carrying the collaborator's message; nothing
// panics or returns an error past this package.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/kv"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
	"github.com/JonMunkholm/catalogdesk/internal/store"
)

// Action names a bulk operation.
type Action string

const (
	ActionExport  Action = "export"
	ActionDelete  Action = "delete"
	ActionSave    Action = "save"
	ActionImport  Action = "import"
	ActionPersist Action = "persist"
)

// Validation errors. The collaborator is not called when one of these is
// returned.
var (
	ErrNoSelection       = errors.New("no products selected")
	ErrSelectionNotFound = errors.New("none of the selected products are in the current list")
	ErrNoColumns         = errors.New("no export columns selected")
	ErrNoFile            = errors.New("no file provided")
	ErrNoRecords         = errors.New("no records to save")
)

// ErrMirrorUpdate wraps a saved-products mirror failure that happened after
// the remote delete succeeded.
var ErrMirrorUpdate = errors.New("saved products could not be updated")

// Result is the uniform outcome of every bulk action.
type Result struct {
	Success  bool              `json:"success"`
	Action   Action            `json:"action"`
	Count    int               `json:"count,omitempty"`
	Error    string            `json:"error,omitempty"`
	FileName string            `json:"fileName,omitempty"`
	Records  []catalog.Product `json:"records,omitempty"`

	// Err is the underlying error, for callers that map errors to codes.
	Err error `json:"-"`
}

// Deps are the collaborators a Coordinator delegates to.
type Deps struct {
	Store   store.Store
	Codec   sheet.Codec
	KV      kv.Store
	Audit   audit.Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Coordinator runs bulk actions.
type Coordinator struct {
	store   store.Store
	codec   sheet.Codec
	kv      kv.Store
	audit   audit.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a Coordinator. Audit, Metrics and Logger are optional.
func New(d Deps) *Coordinator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   d.Store,
		codec:   d.Codec,
		kv:      d.KV,
		audit:   audit.OrNop(d.Audit),
		metrics: d.Metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Export writes the selected subset of collection, in collection order, to
// w. onProgress is called with (current, total) after each record.
//
// Callers writing to an HTTP response should export into a buffer first so
// a failure never leaves a half-written file.
func (c *Coordinator) Export(ctx context.Context, w io.Writer, collection []catalog.Product, ids, columns []string, onProgress sheet.ProgressFunc) Result {
	return c.ExportAs(ctx, w, sheet.FormatXLSX, collection, ids, columns, onProgress)
}

// ExportAs is Export in the given format. Codecs that cannot switch format
// export in their own.
func (c *Coordinator) ExportAs(ctx context.Context, w io.Writer, format sheet.Format, collection []catalog.Product, ids, columns []string, onProgress sheet.ProgressFunc) Result {
	if len(ids) == 0 {
		return c.fail(ctx, ActionExport, ErrNoSelection)
	}
	if len(columns) == 0 {
		return c.fail(ctx, ActionExport, ErrNoColumns)
	}

	subset := catalog.Subset(collection, ids)
	if len(subset) == 0 {
		return c.fail(ctx, ActionExport, ErrSelectionNotFound)
	}

	codec := c.codec
	if f, ok := codec.(sheet.Formatter); ok {
		codec = f.ForFormat(format)
	}
	if err := codec.Export(w, subset, columns, onProgress); err != nil {
		return c.fail(ctx, ActionExport, fmt.Errorf("export failed: %w", err))
	}

	return c.succeed(ctx, Result{
		Action:   ActionExport,
		Count:    len(subset),
		FileName: ExportFileName(c.now(), format),
	}, fmt.Sprintf("Exported %d products", len(subset)))
}

// Delete removes ids from the remote store and, only if that succeeds, from
// the saved-products mirror.
func (c *Coordinator) Delete(ctx context.Context, ids []string) Result {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return c.fail(ctx, ActionDelete, ErrNoSelection)
	}

	deleted, err := c.store.DeleteWhere(ctx, ids)
	if err != nil {
		return c.fail(ctx, ActionDelete, fmt.Errorf("delete failed: %w", err))
	}

	if err := c.removeFromMirror(ctx, ids); err != nil {
		c.logger.Error("remote delete succeeded but mirror update failed",
			"error", err,
			"deleted", deleted,
		)
		return c.fail(ctx, ActionDelete, fmt.Errorf("%w: %v", ErrMirrorUpdate, err))
	}

	return c.succeed(ctx, Result{Action: ActionDelete, Count: deleted},
		fmt.Sprintf("Deleted %d products", deleted))
}

func (c *Coordinator) removeFromMirror(ctx context.Context, ids []string) error {
	var saved []catalog.Product
	err := c.kv.Get(ctx, kv.KeySavedProducts, &saved)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := make([]catalog.Product, 0, len(saved))
	for _, p := range saved {
		if !drop[p.ID] {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(saved) {
		return nil
	}
	return c.kv.Set(ctx, kv.KeySavedProducts, kept)
}

// SaveForLater writes the selected subset verbatim to the saved-products
// mirror, replacing what was there.
func (c *Coordinator) SaveForLater(ctx context.Context, collection []catalog.Product, ids []string) Result {
	if len(ids) == 0 {
		return c.fail(ctx, ActionSave, ErrNoSelection)
	}

	subset := catalog.Subset(collection, ids)
	if len(subset) == 0 {
		return c.fail(ctx, ActionSave, ErrSelectionNotFound)
	}

	if err := c.kv.Set(ctx, kv.KeySavedProducts, subset); err != nil {
		return c.fail(ctx, ActionSave, fmt.Errorf("save failed: %w", err))
	}

	return c.succeed(ctx, Result{Action: ActionSave, Count: len(subset)},
		fmt.Sprintf("Saved %d products for later", len(subset)))
}

// Saved returns the saved-products mirror; an unset mirror is empty.
func (c *Coordinator) Saved(ctx context.Context) ([]catalog.Product, error) {
	var saved []catalog.Product
	err := c.kv.Get(ctx, kv.KeySavedProducts, &saved)
	if errors.Is(err, kv.ErrNotFound) {
		return []catalog.Product{}, nil
	}
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Import parses a spreadsheet. On failure no records are returned.
func (c *Coordinator) Import(ctx context.Context, filename string, r io.Reader) Result {
	if r == nil || strings.TrimSpace(filename) == "" {
		return c.fail(ctx, ActionImport, ErrNoFile)
	}

	records, err := c.codec.Import(filename, r)
	if err != nil {
		return c.fail(ctx, ActionImport, fmt.Errorf("import failed: %w", err))
	}

	return c.succeed(ctx, Result{
		Action:   ActionImport,
		Count:    len(records),
		FileName: filename,
		Records:  records,
	}, fmt.Sprintf("Imported %d products from %s", len(records), filename))
}

// Persist inserts records into the remote store.
func (c *Coordinator) Persist(ctx context.Context, records []catalog.Product) Result {
	if len(records) == 0 {
		return c.fail(ctx, ActionPersist, ErrNoRecords)
	}

	n, err := c.store.Insert(ctx, records)
	if err != nil {
		return c.fail(ctx, ActionPersist, fmt.Errorf("save to catalog failed: %w", err))
	}

	return c.succeed(ctx, Result{Action: ActionPersist, Count: n},
		fmt.Sprintf("Added %d products to the catalog", n))
}

// ExportFileName is the download name for an export made at t.
func ExportFileName(t time.Time, format sheet.Format) string {
	if format == "" {
		format = sheet.FormatXLSX
	}
	return fmt.Sprintf("products-%s.%s", t.Format("20060102-150405"), format)
}

func (c *Coordinator) succeed(ctx context.Context, r Result, title string) Result {
	r.Success = true
	c.metrics.IncBulkAction(string(r.Action), true)
	c.audit.Record(ctx, audit.Entry{Title: title, Kind: audit.KindSuccess})
	c.logger.Info("bulk action completed", "action", r.Action, "count", r.Count)
	return r
}

// Fail records a failure that happened before action could be handed to the
// coordinator, such as loading the collection, and returns its Result.
func (c *Coordinator) Fail(ctx context.Context, action Action, err error) Result {
	return c.fail(ctx, action, err)
}

func (c *Coordinator) fail(ctx context.Context, action Action, err error) Result {
	c.metrics.IncBulkAction(string(action), false)

	if isValidation(err) {
		c.logger.Debug("bulk action rejected", "action", action, "reason", err)
	} else {
		c.audit.Record(ctx, audit.Entry{
			Title:   fmt.Sprintf("%s failed", titleCase(action)),
			Details: err.Error(),
			Kind:    audit.KindError,
		})
		c.logger.Error("bulk action failed", "action", action, "error", err)
	}

	return Result{Action: action, Error: err.Error(), Err: err}
}

func isValidation(err error) bool {
	return errors.Is(err, ErrNoSelection) ||
		errors.Is(err, ErrSelectionNotFound) ||
		errors.Is(err, ErrNoColumns) ||
		errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrNoRecords)
}

func titleCase(a Action) string {
	s := string(a)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
