package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/standgames/stand/internal/stand"
)

// ReplaceCatalogRequest is the request body for PUT /api/admin/catalogs/{catalogID}.
type ReplaceCatalogRequest struct {
	Characters []stand.Character `json:"characters"`
}

func handleGetCatalog(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := opts.Catalog.Characters(r.Context(), chi.URLParam(r, "catalogID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"characters": items})
	}
}

func handleReplaceCatalog(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReplaceCatalogRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Characters) == 0 {
			writeError(w, http.StatusBadRequest, "characters is required")
			return
		}
		for _, c := range req.Characters {
			if strings.TrimSpace(c.CharacterName) == "" || c.PairID == "" {
				writeError(w, http.StatusBadRequest, "every character needs a name and a pairId")
				return
			}
		}

		catalogID := chi.URLParam(r, "catalogID")
		if err := opts.Catalog.Replace(r.Context(), catalogID, req.Characters); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"catalogId": catalogID, "characters": len(req.Characters)})
	}
}
