package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marketnotes/internal/pageservice"
)

// NewRouter creates a chi router with the read-only preview API.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *pageservice.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Get("/pages", h.ListPages)
	r.Get("/pages/*", h.GetPage)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	r.Get("/datasets", h.ListDatasets)
	r.Get("/datasets/*", h.GetDataset)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
