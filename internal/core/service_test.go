package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/bulk"
	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/deals"
	"github.com/JonMunkholm/catalogdesk/internal/kv"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
	"github.com/JonMunkholm/catalogdesk/internal/prefs"
	"github.com/JonMunkholm/catalogdesk/internal/review"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
	"github.com/JonMunkholm/catalogdesk/internal/store"
)

type fakeDeals struct {
	resp deals.Response
	err  error
	key  string
}

func (f *fakeDeals) SetAPIKey(key string) { f.key = key }

func (f *fakeDeals) HasAPIKey() bool { return f.key != "" }

func (f *fakeDeals) GetDealsWithFilter(context.Context, deals.Options) (deals.Response, error) {
	return f.resp, f.err
}

func (f *fakeDeals) BestSellers(context.Context, string) ([]catalog.Product, error) {
	return nil, f.err
}

func (f *fakeDeals) Search(context.Context, string) ([]catalog.Product, error) {
	return nil, f.err
}

func seedProducts() []catalog.Product {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return []catalog.Product{
		{
			ID: "A", Title: "Sony Headphones", Price: catalog.PriceFromString("$348"),
			Rating: catalog.NewNumber(4.6), CreatedAt: base.Add(3 * time.Hour),
			Flags: catalog.Flags{IsBestSeller: true},
		},
		{
			ID: "B", Title: "Kettle", Price: catalog.PriceFromFloat(24.5),
			Rating: catalog.NewNumber(4.1), CreatedAt: base.Add(2 * time.Hour),
		},
		{
			ID: "C", Title: "Bamboo Toothbrush", Price: catalog.PriceFromString("$8.00"),
			CreatedAt: base.Add(time.Hour), Flags: catalog.Flags{IsEcoFriendly: true},
		},
	}
}

type serviceFixture struct {
	svc   *Service
	store *store.Memory
	audit *audit.Memory
	deals *fakeDeals
}

func newServiceFixture(t *testing.T, jobs *JobLimiter) *serviceFixture {
	t.Helper()
	ctx := context.Background()

	mem := kv.NewMemoryStore(0)
	sel, err := prefs.NewSelectionStore(ctx, mem)
	require.NoError(t, err)

	f := &serviceFixture{
		store: store.NewMemory(seedProducts()...),
		audit: audit.NewMemory(50),
		deals: &fakeDeals{},
	}
	m := metrics.New()

	f.svc = NewService(Deps{
		Store:     f.store,
		Selection: sel,
		Columns:   prefs.NewColumnStore(mem, sheet.ColumnNames(), sheet.DefaultColumns),
		Templates: review.NewTemplateStore(mem, nil),
		Bulk: bulk.New(bulk.Deps{
			Store: f.store, Codec: sheet.New(), KV: mem, Audit: f.audit, Metrics: m,
		}),
		Jobs:     jobs,
		Deals:    f.deals,
		AuditLog: f.audit,
		Metrics:  m,
	})
	f.svc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return f
}

func titles(items []catalog.Product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.Title
	}
	return out
}

func TestService_Products(t *testing.T) {
	f := newServiceFixture(t, nil)

	view, err := f.svc.Products(context.Background(), catalog.FilterSpec{Search: "kettle"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Kettle"}, titles(view.Items))
	assert.Equal(t, 1, view.FilteredCount)
	assert.Equal(t, 3, view.TotalCount)

	view, err = f.svc.Products(context.Background(), catalog.DefaultFilterSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"Sony Headphones", "Kettle", "Bamboo Toothbrush"}, titles(view.Items), "newest first")
}

func TestService_SelectVisibleActsOnFilteredView(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	state, err := f.svc.SelectVisible(ctx, catalog.FilterSpec{PriceRange: catalog.PriceUnder25})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "C"}, state.IDs)
	assert.Equal(t, 2, state.Count)

	state, err = f.svc.InvertVisible(ctx, catalog.DefaultFilterSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, state.IDs)

	state, err = f.svc.ClearSelection(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.IDs)
	assert.Len(t, state.Recent, 3, "clearing keeps the entries")
}

func TestService_DeleteSelectedClearsSelection(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Toggle(ctx, "A")
	require.NoError(t, err)

	res := f.svc.DeleteSelected(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Count)

	all, _ := f.store.All(ctx)
	assert.Equal(t, []string{"Kettle", "Bamboo Toothbrush"}, titles(all))
	assert.Empty(t, f.svc.Selection().IDs)

	entries, err := f.svc.AuditLog(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.KindSuccess, entries[0].Kind)
}

func TestService_DeleteSelectedWithoutSelection(t *testing.T) {
	f := newServiceFixture(t, nil)

	res := f.svc.DeleteSelected(context.Background())
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, bulk.ErrNoSelection)
}

func TestService_ExportSelected(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Toggle(ctx, "B")
	require.NoError(t, err)

	var buf bytes.Buffer
	var calls int
	res := f.svc.ExportSelected(ctx, &buf, sheet.FormatXLSX, func(current, total int) { calls++ })

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, calls)
	assert.NotZero(t, buf.Len())
	assert.Equal(t, 0, f.svc.JobStatus().Active, "slot released")
}

func TestService_ExportRejectedWhenJobsBusy(t *testing.T) {
	jobs := NewJobLimiter(1, 10*time.Millisecond)
	f := newServiceFixture(t, jobs)
	require.NoError(t, jobs.Acquire(context.Background()))
	defer jobs.Release()

	res := f.svc.ExportSelected(context.Background(), &bytes.Buffer{}, sheet.FormatXLSX, nil)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrTooManyJobs)
	assert.Equal(t, "BLK008", MapError(res.Err).Code)
}

func TestService_ImportThenPersist(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	res := f.svc.Import(ctx, "new.csv", strings.NewReader("ID,Title,Price\nD,Desk Lamp,$19.99\n"))
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Records, 1)

	all, _ := f.store.All(ctx)
	assert.Len(t, all, 3, "import alone does not store")

	res = f.svc.Persist(ctx, res.Records)
	require.True(t, res.Success, res.Error)

	all, _ = f.store.All(ctx)
	assert.Len(t, all, 4)
}

func TestService_PreviewTemplate(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Toggle(ctx, "A")
	require.NoError(t, err)

	got, err := f.svc.PreviewTemplate(ctx,
		"{{postTitle}}|{{productCount}}|{{date}}|{{#each products}}{{title}} {{price}}{{/each}}", "")
	require.NoError(t, err)
	assert.Equal(t, "Our Top Picks|1|October 18, 2026|Sony Headphones $348", got)

	require.NoError(t, f.svc.SaveTemplate(ctx, "{{postTitle}}"))
	got, err = f.svc.PreviewTemplate(ctx, "", "Gift Guide")
	require.NoError(t, err)
	assert.Equal(t, "Gift Guide", got)
}

func TestService_DealsFailureIsEmptyListWithMessage(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.deals.err = &deals.HTTPError{StatusCode: 429}

	view := f.svc.Deals(context.Background(), deals.Options{}, catalog.DefaultFilterSpec())
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.Equal(t, "API004", view.Code)
	assert.Contains(t, view.Error, "rate limit")
}

func TestService_DealsDerived(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.deals.resp = deals.Response{Status: deals.StatusOK, Deals: []deals.Deal{
		{ID: "d1", Title: "Cheap Mouse", Price: catalog.PriceFromFloat(9.99), Active: true},
		{ID: "d2", Title: "Monitor", Price: catalog.PriceFromFloat(199), Active: true},
	}}

	view := f.svc.Deals(context.Background(), deals.Options{}, catalog.FilterSpec{Sort: catalog.SortPriceDesc})
	assert.Empty(t, view.Error)
	assert.Equal(t, deals.StatusOK, view.Status)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Monitor", view.Items[0].Title)
}

func TestService_WithoutOptionalCollaborators(t *testing.T) {
	svc := NewService(Deps{Store: store.NewMemory()})
	ctx := context.Background()

	view := svc.Deals(ctx, deals.Options{}, catalog.DefaultFilterSpec())
	assert.Equal(t, "API001", view.Code)

	_, err := svc.BestSellers(ctx, "", catalog.DefaultFilterSpec())
	assert.True(t, errors.Is(err, deals.ErrMissingAPIKey))

	_, err = svc.Extract(ctx, "https://example.test/p")
	assert.Error(t, err)

	entries, err := svc.AuditLog(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func liveAndExpiredDeals() []deals.Deal {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return []deals.Deal{
		{ID: "d1", ASIN: "B01", Title: "Cheap Mouse", Price: catalog.PriceFromFloat(9.99), Active: true,
			StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
		{ID: "d2", ASIN: "B02", Title: "Monitor", Price: catalog.PriceFromFloat(199), Active: true,
			EndsAt: now.Add(-time.Minute)},
		{ID: "d3", ASIN: "B03", Title: "Webcam", Price: catalog.PriceFromFloat(49), Active: false},
	}
}

func TestService_DealsDropsExpired(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.deals.resp = deals.Response{Status: deals.StatusOK, Deals: liveAndExpiredDeals()}

	view := f.svc.Deals(context.Background(), deals.Options{}, catalog.DefaultFilterSpec())
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Cheap Mouse", view.Items[0].Title)
	assert.Equal(t, 1, view.TotalCount)
	assert.Equal(t, 2, view.Expired)
}

func TestService_ImportDeals(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.deals.resp = deals.Response{Status: deals.StatusOK, Deals: liveAndExpiredDeals()}
	ctx := context.Background()

	res := f.svc.ImportDeals(ctx, deals.Options{}, []string{"B01", "d2"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Count, "expired deals are not imported")

	all, err := f.store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "B01", all[0].ID, "imported deal is newest")
	assert.True(t, all[0].IsDeal)
	assert.Equal(t, "deals", all[0].Source)

	res = f.svc.ImportDeals(ctx, deals.Options{}, []string{"d3"})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, bulk.ErrSelectionNotFound)

	res = f.svc.ImportDeals(ctx, deals.Options{}, nil)
	assert.ErrorIs(t, res.Err, bulk.ErrNoRecords)

	f.deals.err = &deals.HTTPError{StatusCode: 429}
	res = f.svc.ImportDeals(ctx, deals.Options{}, []string{"B01"})
	assert.False(t, res.Success)
	assert.Equal(t, "API004", MapError(res.Err).Code)
}

func TestService_SetDealsAPIKey(t *testing.T) {
	f := newServiceFixture(t, nil)

	assert.False(t, f.svc.DealsKeyConfigured())
	assert.ErrorIs(t, f.svc.SetDealsAPIKey("  "), deals.ErrMissingAPIKey)

	require.NoError(t, f.svc.SetDealsAPIKey("k-123"))
	assert.True(t, f.svc.DealsKeyConfigured())
	assert.Equal(t, "k-123", f.deals.key)

	bare := NewService(Deps{Store: store.NewMemory()})
	assert.ErrorIs(t, bare.SetDealsAPIKey("k"), ErrDealsUnavailable)
}

// unavailableStore fails every read.
type unavailableStore struct {
	*store.Memory
}

func (unavailableStore) All(context.Context) ([]catalog.Product, error) {
	return nil, errors.New("dial tcp 127.0.0.1:5432: connection refused")
}

func TestService_LoadFailuresAreAudited(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Toggle(ctx, "A")
	require.NoError(t, err)

	f.svc.store = unavailableStore{Memory: f.store}

	res := f.svc.ExportSelected(ctx, &bytes.Buffer{}, sheet.FormatCSV, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "STO003", MapError(res.Err).Code)

	res = f.svc.SaveSelected(ctx)
	assert.False(t, res.Success)

	entries, err := f.audit.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Save failed", entries[0].Title)
	assert.Equal(t, "Export failed", entries[1].Title)
	assert.Equal(t, audit.KindError, entries[1].Kind)
}
