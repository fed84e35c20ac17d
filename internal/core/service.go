package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/bulk"
	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/deals"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
	"github.com/JonMunkholm/catalogdesk/internal/prefs"
	"github.com/JonMunkholm/catalogdesk/internal/review"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
	"github.com/JonMunkholm/catalogdesk/internal/store"
)

// ErrDealsUnavailable is returned when the service has no deal client.
var ErrDealsUnavailable = errors.New("deal API client is not configured")

// DealSource is the part of the deal client the service uses.
type DealSource interface {
	GetDealsWithFilter(ctx context.Context, opts deals.Options) (deals.Response, error)
	BestSellers(ctx context.Context, category string) ([]catalog.Product, error)
	Search(ctx context.Context, term string) ([]catalog.Product, error)
	SetAPIKey(key string)
	HasAPIKey() bool
}

// Extractor turns a product page URL into a product.
type Extractor interface {
	ExtractFromURL(ctx context.Context, url string) (*catalog.Product, error)
}

// Deps are the collaborators a Service is built from. Deals, Extractor,
// AuditLog, Metrics and Jobs are optional.
type Deps struct {
	Store     store.Store
	Selection *prefs.SelectionStore
	Columns   *prefs.ColumnStore
	Templates *review.TemplateStore
	Bulk      *bulk.Coordinator
	Jobs      *JobLimiter
	Deals     DealSource
	Extractor Extractor
	AuditLog  audit.Lister
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Locale    language.Tag
}

// Service is the single entry point the transport layer talks to.
type Service struct {
	store     store.Store
	selection *prefs.SelectionStore
	columns   *prefs.ColumnStore
	templates *review.TemplateStore
	bulk      *bulk.Coordinator
	jobs      *JobLimiter
	deals     DealSource
	extractor Extractor
	auditLog  audit.Lister
	metrics   *metrics.Metrics
	logger    *slog.Logger

	products  *catalog.Engine[catalog.Product]
	dealsView *catalog.Engine[deals.Deal]
	now       func() time.Time
}

// NewService wires a Service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	jobs := d.Jobs
	if jobs == nil {
		jobs = NewJobLimiter(0, 0)
	}
	locale := d.Locale
	if locale == language.Und {
		locale = language.English
	}
	return &Service{
		store:     d.Store,
		selection: d.Selection,
		columns:   d.Columns,
		templates: d.Templates,
		bulk:      d.Bulk,
		jobs:      jobs,
		deals:     d.Deals,
		extractor: d.Extractor,
		auditLog:  d.AuditLog,
		metrics:   d.Metrics,
		logger:    logger,
		products:  catalog.NewProductEngine(locale),
		dealsView: deals.NewEngine(locale),
		now:       time.Now,
	}
}

// Products returns the catalog derived by spec.
func (s *Service) Products(ctx context.Context, spec catalog.FilterSpec) (catalog.View[catalog.Product], error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return catalog.View[catalog.Product]{}, fmt.Errorf("load products: %w", err)
	}

	start := time.Now()
	view := s.products.Derive(all, spec)
	s.metrics.ObserveDerive("products", time.Since(start))
	return view, nil
}

// DealsView is a derived deal list. A failed fetch leaves Items empty and
// sets Error; it is not returned as an error. Deals that are inactive or
// outside their window are dropped and counted in Expired.
type DealsView struct {
	catalog.View[deals.Deal]
	Expired int    `json:"expired"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Deals fetches live deals matching opts and derives them by spec.
func (s *Service) Deals(ctx context.Context, opts deals.Options, spec catalog.FilterSpec) DealsView {
	live, expired, status, err := s.liveDeals(ctx, opts)
	if err != nil {
		return s.dealsFailure(err, status)
	}

	start := time.Now()
	view := s.dealsView.Derive(live, spec)
	s.metrics.ObserveDerive("deals", time.Since(start))
	return DealsView{View: view, Expired: expired, Status: status}
}

func (s *Service) liveDeals(ctx context.Context, opts deals.Options) ([]deals.Deal, int, string, error) {
	if s.deals == nil {
		return nil, 0, "", deals.ErrMissingAPIKey
	}

	resp, err := s.deals.GetDealsWithFilter(ctx, opts)
	if err != nil {
		s.logger.Warn("deal fetch failed", "error", err)
		return nil, 0, resp.Status, err
	}

	now := s.now()
	live := make([]deals.Deal, 0, len(resp.Deals))
	for _, d := range resp.Deals {
		if d.IsLive(now) {
			live = append(live, d)
		}
	}
	return live, len(resp.Deals) - len(live), resp.Status, nil
}

// ImportDeals adds the live deals matching opts whose id or ASIN is in ids
// to the catalog as deal-flagged products.
func (s *Service) ImportDeals(ctx context.Context, opts deals.Options, ids []string) bulk.Result {
	if len(ids) == 0 {
		return s.bulk.Persist(ctx, nil)
	}
	live, _, _, err := s.liveDeals(ctx, opts)
	if err != nil {
		return s.bulk.Fail(ctx, bulk.ActionPersist, fmt.Errorf("fetch deals: %w", err))
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	now := s.now()
	var records []catalog.Product
	for _, d := range live {
		if !wanted[d.ID] && !wanted[d.ASIN] {
			continue
		}
		p := d.ToProduct()
		p.CreatedAt = now
		records = append(records, p)
	}
	if len(records) == 0 {
		return s.bulk.Fail(ctx, bulk.ActionPersist, bulk.ErrSelectionNotFound)
	}
	return s.bulk.Persist(ctx, records)
}

// DealsKeyConfigured reports whether the deal API has a key.
func (s *Service) DealsKeyConfigured() bool {
	return s.deals != nil && s.deals.HasAPIKey()
}

// SetDealsAPIKey replaces the deal API key at runtime.
func (s *Service) SetDealsAPIKey(key string) error {
	if s.deals == nil {
		return ErrDealsUnavailable
	}
	if strings.TrimSpace(key) == "" {
		return deals.ErrMissingAPIKey
	}
	s.deals.SetAPIKey(key)
	s.logger.Info("deal API key updated")
	return nil
}

func (s *Service) dealsFailure(err error, status string) DealsView {
	msg := MapError(err)
	return DealsView{
		View:   catalog.View[deals.Deal]{Items: []deals.Deal{}},
		Status: status,
		Error:  FormatUserError(err),
		Code:   msg.Code,
	}
}

// BestSellers fetches best sellers for category and derives them by spec.
func (s *Service) BestSellers(ctx context.Context, category string, spec catalog.FilterSpec) (catalog.View[catalog.Product], error) {
	if s.deals == nil {
		return catalog.View[catalog.Product]{}, deals.ErrMissingAPIKey
	}
	items, err := s.deals.BestSellers(ctx, category)
	if err != nil {
		return catalog.View[catalog.Product]{}, err
	}
	return s.products.Derive(items, spec), nil
}

// Search runs a product search and derives the results by spec.
func (s *Service) Search(ctx context.Context, term string, spec catalog.FilterSpec) (catalog.View[catalog.Product], error) {
	if s.deals == nil {
		return catalog.View[catalog.Product]{}, deals.ErrMissingAPIKey
	}
	items, err := s.deals.Search(ctx, term)
	if err != nil {
		return catalog.View[catalog.Product]{}, err
	}
	return s.products.Derive(items, spec), nil
}

// Extract reads a product from a product page URL.
func (s *Service) Extract(ctx context.Context, url string) (*catalog.Product, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("extractor is not configured")
	}
	return s.extractor.ExtractFromURL(ctx, url)
}

// Persist inserts records into the catalog.
func (s *Service) Persist(ctx context.Context, records []catalog.Product) bulk.Result {
	return s.bulk.Persist(ctx, records)
}

// SelectionState is the selection as the UI sees it.
type SelectionState struct {
	IDs    []string      `json:"ids"`
	Count  int           `json:"count"`
	Recent []prefs.Entry `json:"recent"`
}

// Selection returns the current selection.
func (s *Service) Selection() SelectionState {
	ids := s.selection.SelectedIDs()
	return SelectionState{IDs: ids, Count: len(ids), Recent: s.selection.RecentlyAdded(5)}
}

// Toggle flips one product's selection and reports the new state.
func (s *Service) Toggle(ctx context.Context, id string) (bool, error) {
	return s.selection.Toggle(ctx, id)
}

// SelectVisible selects every product visible under spec.
func (s *Service) SelectVisible(ctx context.Context, spec catalog.FilterSpec) (SelectionState, error) {
	view, err := s.Products(ctx, spec)
	if err != nil {
		return SelectionState{}, err
	}
	if err := s.selection.SelectAll(ctx, productIDs(view.Items)); err != nil {
		return SelectionState{}, err
	}
	return s.Selection(), nil
}

// InvertVisible flips the selection of every product visible under spec.
func (s *Service) InvertVisible(ctx context.Context, spec catalog.FilterSpec) (SelectionState, error) {
	view, err := s.Products(ctx, spec)
	if err != nil {
		return SelectionState{}, err
	}
	if err := s.selection.Invert(ctx, productIDs(view.Items)); err != nil {
		return SelectionState{}, err
	}
	return s.Selection(), nil
}

// ClearSelection deselects everything.
func (s *Service) ClearSelection(ctx context.Context) (SelectionState, error) {
	if err := s.selection.ClearAll(ctx); err != nil {
		return SelectionState{}, err
	}
	return s.Selection(), nil
}

// Columns returns the saved export columns.
func (s *Service) Columns(ctx context.Context) ([]string, error) {
	return s.columns.Load(ctx)
}

// SaveColumns replaces the export columns and returns what was stored.
func (s *Service) SaveColumns(ctx context.Context, cols []string) ([]string, error) {
	return s.columns.Save(ctx, cols)
}

// ExportSelected writes the selected products, with the saved columns, to w
// in format.
func (s *Service) ExportSelected(ctx context.Context, w io.Writer, format sheet.Format, onProgress sheet.ProgressFunc) bulk.Result {
	if err := s.jobs.Acquire(ctx); err != nil {
		return bulk.Result{Action: bulk.ActionExport, Error: err.Error(), Err: err}
	}
	defer s.jobs.Release()

	all, err := s.store.All(ctx)
	if err != nil {
		return s.bulk.Fail(ctx, bulk.ActionExport, fmt.Errorf("load products: %w", err))
	}
	cols, err := s.columns.Load(ctx)
	if err != nil {
		return s.bulk.Fail(ctx, bulk.ActionExport, fmt.Errorf("load columns: %w", err))
	}
	return s.bulk.ExportAs(ctx, w, format, all, s.selection.SelectedIDs(), cols, onProgress)
}

// DeleteSelected deletes the selected products. On success the selection
// is cleared.
func (s *Service) DeleteSelected(ctx context.Context) bulk.Result {
	res := s.bulk.Delete(ctx, s.selection.SelectedIDs())
	if !res.Success {
		return res
	}
	if err := s.selection.ClearAll(ctx); err != nil {
		s.logger.Warn("selection not cleared after delete", "error", err)
	}
	return res
}

// SaveSelected mirrors the selected products for later.
func (s *Service) SaveSelected(ctx context.Context) bulk.Result {
	all, err := s.store.All(ctx)
	if err != nil {
		return s.bulk.Fail(ctx, bulk.ActionSave, fmt.Errorf("load products: %w", err))
	}
	return s.bulk.SaveForLater(ctx, all, s.selection.SelectedIDs())
}

// Saved returns the saved-for-later products.
func (s *Service) Saved(ctx context.Context) ([]catalog.Product, error) {
	return s.bulk.Saved(ctx)
}

// Import parses a spreadsheet; the records are returned, not stored.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) bulk.Result {
	if err := s.jobs.Acquire(ctx); err != nil {
		return bulk.Result{Action: bulk.ActionImport, Error: err.Error(), Err: err}
	}
	defer s.jobs.Release()
	return s.bulk.Import(ctx, filename, r)
}

// WaitForJobs blocks until running imports and exports finish.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.jobs.WaitForDrain(ctx)
}

// JobStatus reports spreadsheet job slot usage.
func (s *Service) JobStatus() JobLimiterStatus {
	return s.jobs.Status()
}

// Template returns the saved review template.
func (s *Service) Template(ctx context.Context) (string, error) {
	return s.templates.Load(ctx)
}

// SaveTemplate stores the review template.
func (s *Service) SaveTemplate(ctx context.Context, text string) error {
	return s.templates.Save(ctx, text)
}

// ResetTemplate restores the default review template.
func (s *Service) ResetTemplate(ctx context.Context) error {
	return s.templates.Reset(ctx)
}

// PreviewTemplate renders text against the selected products, or the
// saved template when text is empty.
func (s *Service) PreviewTemplate(ctx context.Context, text, postTitle string) (string, error) {
	if text == "" {
		var err error
		if text, err = s.templates.Load(ctx); err != nil {
			return "", err
		}
	}

	all, err := s.store.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load products: %w", err)
	}
	products := catalog.Subset(all, s.selection.SelectedIDs())

	if postTitle == "" {
		postTitle = "Our Top Picks"
	}
	return review.Render(text, review.Data{
		Vars: map[string]string{
			"postTitle":    postTitle,
			"productCount": strconv.Itoa(len(products)),
			"date":         s.now().Format("January 2, 2006"),
		},
		Products: products,
	}), nil
}

// AuditLog returns the newest audit entries.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	if s.auditLog == nil {
		return []audit.Entry{}, nil
	}
	return s.auditLog.List(ctx, limit)
}

func productIDs(items []catalog.Product) []string {
	ids := make([]string, len(items))
	for i, p := range items {
		ids[i] = p.ID
	}
	return ids
}
