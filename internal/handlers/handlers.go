package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/suporte-lab/app-sub000/internal/importer"
)

// Handler wires storage and the external clients into the HTTP surface.
type Handler struct {
	Store     StorageInterface
	Directory importer.DirectoryClient
	Geocoder  importer.Geocoder

	validate *validator.Validate
}

func NewHandler(store StorageInterface, dir importer.DirectoryClient, geo importer.Geocoder) *Handler {
	return &Handler{
		Store:     store,
		Directory: dir,
		Geocoder:  geo,
		validate:  validator.New(),
	}
}

// newResolver builds a request-scoped resolver. Caches must not outlive the
// request: concurrent imports each pay the external-call cost independently.
func (h *Handler) newResolver() *importer.Resolver {
	return importer.NewResolver(h.Store, h.Directory, h.Geocoder)
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
