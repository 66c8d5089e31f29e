package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/suporte-lab/app-sub000/db"
)

type createResearchRequest struct {
	SurveyID       int    `json:"surveyId" validate:"required"`
	MunicipalityID int    `json:"municipalityId" validate:"required"`
	Name           string `json:"name" validate:"required,max=200"`
}

// CreateResearchHandler deploys a survey to a municipality as a new wave.
// POST /api/research/new. Slug collisions get a random suffix so two waves
// may share a name.
func (h *Handler) CreateResearchHandler(w http.ResponseWriter, r *http.Request) {
	var req createResearchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if _, err := h.Store.GetSurvey(r.Context(), req.SurveyID); err != nil {
		http.Error(w, "Survey not found", http.StatusNotFound)
		return
	}
	if _, err := h.Store.GetMunicipality(r.Context(), req.MunicipalityID); err != nil {
		http.Error(w, "Municipality not found", http.StatusNotFound)
		return
	}

	research := &db.Research{
		SurveyID:       req.SurveyID,
		MunicipalityID: req.MunicipalityID,
		Name:           req.Name,
		Slug:           slug.Make(req.Name),
	}
	err := h.Store.CreateResearch(r.Context(), research)
	if db.IsUniqueViolation(err) {
		research.Slug = slug.Make(req.Name) + "-" + uuid.NewString()[:8]
		err = h.Store.CreateResearch(r.Context(), research)
	}
	if err != nil {
		http.Error(w, "Failed to create research", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, research)
}

// ListResearchesHandler handles GET /api/research.
func (h *Handler) ListResearchesHandler(w http.ResponseWriter, r *http.Request) {
	researches, err := h.Store.ListResearches(r.Context())
	if err != nil {
		http.Error(w, "Failed to list researches", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, researches)
}

// DeleteResearchHandler soft-deletes a research.
func (h *Handler) DeleteResearchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "researchId"))
	if err != nil {
		http.Error(w, "Invalid research id", http.StatusBadRequest)
		return
	}
	if err := h.Store.SoftDeleteResearch(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete research", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type researchStatusResponse struct {
	Research         db.Research `json:"research"`
	EligibleProjects int         `json:"eligibleProjects"`
	AnsweredProjects []int       `json:"answeredProjects"`
}

// ResearchStatusHandler reports completion: a project is complete when it
// holds at least one answer for the research.
func (h *Handler) ResearchStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "researchId"))
	if err != nil {
		http.Error(w, "Invalid research id", http.StatusBadRequest)
		return
	}
	research, err := h.Store.GetResearch(r.Context(), id)
	if err != nil {
		http.Error(w, "Research not found", http.StatusNotFound)
		return
	}
	projects, err := h.Store.ListProjectsByMunicipality(r.Context(), research.MunicipalityID)
	if err != nil {
		http.Error(w, "Failed to load projects", http.StatusInternalServerError)
		return
	}
	answered, err := h.Store.ListAnsweredProjectIDs(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load answers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, researchStatusResponse{
		Research:         *research,
		EligibleProjects: len(projects),
		AnsweredProjects: answered,
	})
}
