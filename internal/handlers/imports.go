package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/suporte-lab/app-sub000/internal/importer"
)

const maxImportSize = 16 << 20

// ImportProjectsHandler runs the project pipeline over an uploaded sheet.
// POST /api/projects/import, multipart field "file".
func (h *Handler) ImportProjectsHandler(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	imp := importer.NewProjectImporter(h.Store, h.newResolver(), h.Geocoder)
	report, err := imp.Run(r.Context(), http.MaxBytesReader(w, file, maxImportSize))
	if err != nil {
		h.importError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ProjectTemplateHandler serves the header-only sheet that round-trips into
// ImportProjectsHandler.
func (h *Handler) ProjectTemplateHandler(w http.ResponseWriter, r *http.Request) {
	data, err := importer.ProjectTemplate()
	if err != nil {
		http.Error(w, "Failed to build template", http.StatusInternalServerError)
		return
	}
	writeCSV(w, "projetos.csv", data)
}

// ImportAnswersHandler runs the answer pipeline for one research.
// POST /api/research/{researchId}/answers/import, multipart field "file".
func (h *Handler) ImportAnswersHandler(w http.ResponseWriter, r *http.Request) {
	researchID, err := strconv.Atoi(chi.URLParam(r, "researchId"))
	if err != nil {
		http.Error(w, "Invalid research id", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	imp := importer.NewAnswerImporter(h.Store)
	report, err := imp.Run(r.Context(), researchID, http.MaxBytesReader(w, file, maxImportSize))
	if err != nil {
		h.importError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AnswerTemplateHandler serves the answer sheet for one research: question
// headers plus one blank row per eligible project.
func (h *Handler) AnswerTemplateHandler(w http.ResponseWriter, r *http.Request) {
	researchID, err := strconv.Atoi(chi.URLParam(r, "researchId"))
	if err != nil {
		http.Error(w, "Invalid research id", http.StatusBadRequest)
		return
	}
	research, err := h.Store.GetResearch(r.Context(), researchID)
	if err != nil {
		http.Error(w, "Research not found", http.StatusNotFound)
		return
	}
	questions, err := h.Store.ListQuestionsBySurvey(r.Context(), research.SurveyID)
	if err != nil {
		http.Error(w, "Failed to load questions", http.StatusInternalServerError)
		return
	}
	projects, err := h.Store.ListProjectsByMunicipality(r.Context(), research.MunicipalityID)
	if err != nil {
		http.Error(w, "Failed to load projects", http.StatusInternalServerError)
		return
	}
	data, err := importer.AnswerTemplate(questions, projects)
	if err != nil {
		http.Error(w, "Failed to build template", http.StatusInternalServerError)
		return
	}
	writeCSV(w, "respostas.csv", data)
}

// importError maps fatal pipeline failures. Row-scoped problems never reach
// here; they are already inside the report.
func (h *Handler) importError(w http.ResponseWriter, err error) {
	slog.Error("import failed", "err", err)
	switch {
	case errors.Is(err, importer.ErrUnknownEncoding):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, importer.ErrDirectoryUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "Import failed", http.StatusInternalServerError)
	}
}
