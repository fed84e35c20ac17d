package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/deals"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
	"github.com/JonMunkholm/catalogdesk/internal/web/views"
)

// handleProductsPage renders the grid page with the filter from the query.
func (s *Server) handleProductsPage(w http.ResponseWriter, r *http.Request) {
	params, err := s.productsParams(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	_ = views.ProductsPage(params).Render(r.Context(), w)
}

// handleProductGrid renders only the grid, for htmx filter changes.
func (s *Server) handleProductGrid(w http.ResponseWriter, r *http.Request) {
	params, err := s.productsParams(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	_ = views.ProductGrid(params).Render(r.Context(), w)
}

func (s *Server) productsParams(r *http.Request) (views.ProductsParams, error) {
	spec := catalog.ParseFilterSpec(r.URL.Query())
	view, err := s.service.Products(r.Context(), spec)
	if err != nil {
		return views.ProductsParams{}, err
	}
	cols, err := s.service.Columns(r.Context())
	if err != nil {
		return views.ProductsParams{}, err
	}

	sel := s.service.Selection()
	selected := make(map[string]bool, len(sel.IDs))
	for _, id := range sel.IDs {
		selected[id] = true
	}
	return views.ProductsParams{
		View:      view,
		Spec:      spec,
		Selected:  selected,
		Columns:   cols,
		Available: sheet.ColumnNames(),
	}, nil
}

// handleListProducts returns {items, filteredCount, totalCount}.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Products(r.Context(), catalog.ParseFilterSpec(r.URL.Query()))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type persistRequest struct {
	Records []catalog.Product `json:"records"`
}

// handlePersistProducts adds records (from an import or extraction) to the
// catalog.
func (s *Server) handlePersistProducts(w http.ResponseWriter, r *http.Request) {
	var req persistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.respondResult(w, r, s.service.Persist(r.Context(), req.Records))
}

// handleListDeals always answers 200; a failed fetch is an empty list with
// an error message in the body.
func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := deals.ParseOptions(q)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Deals(r.Context(), opts, catalog.ParseFilterSpec(q)))
}

func (s *Server) handleBestSellers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.service.BestSellers(r.Context(), q.Get("type"), catalog.ParseFilterSpec(q))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSearch queries the product API. The filter's own search box is
// "search"; the API term is "q".
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.service.Search(r.Context(), q.Get("q"), catalog.ParseFilterSpec(q))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type dealImportRequest struct {
	IDs []string `json:"ids"`
}

// handleImportDeals adds the chosen live deals to the catalog. Deal options
// come from the query, as for the listing.
func (s *Server) handleImportDeals(w http.ResponseWriter, r *http.Request) {
	opts, err := deals.ParseOptions(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var req dealImportRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	} else if err := r.ParseForm(); err == nil {
		req.IDs = r.PostForm["ids"]
	}
	s.respondResult(w, r, s.service.ImportDeals(r.Context(), opts, req.IDs))
}

type dealsKeyRequest struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handleDealsKeyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"configured": s.service.DealsKeyConfigured()})
}

// handleSetDealsKey swaps the deal API key without a restart. The key is
// never echoed back.
func (s *Server) handleSetDealsKey(w http.ResponseWriter, r *http.Request) {
	var req dealsKeyRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	} else {
		req.APIKey = r.FormValue("apiKey")
	}
	if err := s.service.SetDealsAPIKey(req.APIKey); err != nil {
		status := 0
		if errors.Is(err, deals.ErrMissingAPIKey) {
			status = http.StatusBadRequest
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"configured": true})
}

type extractRequest struct {
	URL     string `json:"url"`
	Persist bool   `json:"persist"`
}

type extractResponse struct {
	Product *catalog.Product `json:"product"`
	Saved   bool             `json:"saved"`
}

// handleExtract reads a product from a page URL and optionally stores it.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	} else {
		req.URL = r.FormValue("url")
		req.Persist = r.FormValue("persist") == "true"
	}

	product, err := s.service.Extract(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp := extractResponse{Product: product}
	if req.Persist {
		res := s.service.Persist(r.Context(), []catalog.Product{*product})
		if !res.Success {
			s.respondResult(w, r, res)
			return
		}
		resp.Saved = true
	}
	writeJSON(w, http.StatusOK, resp)
}
