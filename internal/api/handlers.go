package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marketnotes/internal/apperr"
	"github.com/starford/marketnotes/internal/pageservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *pageservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *pageservice.Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts the path after the route prefix. Encoded slashes
// (stocks%2Fibm.md) are accepted.
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPages handles GET /api/pages.
//
//	@Summary		List indexed pages with optional pagination and filtering
//	@Tags			pages
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, path)
//	@Success		200		{object}	PageListResponse
//	@Failure		400		{object}	errResponse
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListPages(r.Context(), limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		if errors.Is(err, apperr.ErrInvalid) {
			writeError(w, http.StatusBadRequest, "unsupported sort")
		} else {
			internalError(w, "list pages", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: items, Total: total})
}

// GetPage handles GET /api/pages/*.
//
//	@Summary		Get a single page by its docs-relative path
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	true	"Page path"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Router			/pages/{path} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	page, err := h.svc.GetPage(r.Context(), p)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			internalError(w, "get page", err, slog.String("path", p))
		}
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across pages
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		internalError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the page link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		internalError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// ListDatasets handles GET /api/datasets.
//
//	@Summary		List fetched data snapshots, newest first
//	@Tags			datasets
//	@Produce		json
//	@Param			source	query		string	false	"Filter by source"	Enums(stock, news)
//	@Success		200		{object}	DatasetListResponse
//	@Router			/datasets [get]
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.ListDatasets(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		internalError(w, "list datasets", err)
		return
	}
	writeJSON(w, http.StatusOK, DatasetListResponse{Datasets: ds})
}

// GetDataset handles GET /api/datasets/*.
//
//	@Summary		Get catalog metadata for one data file
//	@Tags			datasets
//	@Produce		json
//	@Param			path	path		string	true	"Data file path"
//	@Success		200		{object}	models.Dataset
//	@Failure		404		{object}	errResponse
//	@Router			/datasets/{path} [get]
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	p := wildcardPath(r)
	if p == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	ds, err := h.svc.GetDataset(r.Context(), p)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			internalError(w, "get dataset", err, slog.String("path", p))
		}
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
