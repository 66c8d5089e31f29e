package handlers

import (
	"net/http"

	"github.com/suporte-lab/app-sub000/internal/importer"
)

type createMunicipalityRequest struct {
	State string `json:"state" validate:"required,len=2"`
	Name  string `json:"name" validate:"required"`
}

// CreateMunicipalityHandler resolves (or creates) one municipality outside any
// import run. Same resolution path the pipeline uses, with a fresh
// request-scoped resolver.
func (h *Handler) CreateMunicipalityHandler(w http.ResponseWriter, r *http.Request) {
	var req createMunicipalityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	municipality, err := h.newResolver().ResolveMunicipality(r.Context(), req.State, req.Name)
	if err != nil {
		if importer.IsRowError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "Failed to resolve municipality", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, municipality)
}

// ListMunicipalitiesHandler handles GET /api/municipalities.
func (h *Handler) ListMunicipalitiesHandler(w http.ResponseWriter, r *http.Request) {
	municipalities, err := h.Store.ListMunicipalities(r.Context())
	if err != nil {
		http.Error(w, "Failed to list municipalities", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, municipalities)
}

// ListCategoriesHandler handles GET /api/categories.
func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		http.Error(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
