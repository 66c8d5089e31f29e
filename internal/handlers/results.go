package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/suporte-lab/app-sub000/internal/results"
)

// ResultsHandler handles GET /api/results. Query params: questionId
// (required), researchIds, projectIds, categoryIds (comma-separated),
// municipalityId, mode (total|percentage, default total). Empty data renders
// as an empty series, not an error.
func (h *Handler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	questionID, err := strconv.Atoi(q.Get("questionId"))
	if err != nil || questionID <= 0 {
		http.Error(w, "questionId is required", http.StatusBadRequest)
		return
	}
	mode := results.Mode(q.Get("mode"))
	switch mode {
	case "":
		mode = results.ModeTotal
	case results.ModeTotal, results.ModePercentage:
	default:
		http.Error(w, "mode must be total or percentage", http.StatusBadRequest)
		return
	}

	sel := results.Selection{
		QuestionID: questionID,
		Mode:       mode,
	}
	if sel.ResearchIDs, err = parseIDList(q.Get("researchIds")); err != nil {
		http.Error(w, "Invalid researchIds", http.StatusBadRequest)
		return
	}
	if sel.ProjectIDs, err = parseIDList(q.Get("projectIds")); err != nil {
		http.Error(w, "Invalid projectIds", http.StatusBadRequest)
		return
	}
	if sel.CategoryIDs, err = parseIDList(q.Get("categoryIds")); err != nil {
		http.Error(w, "Invalid categoryIds", http.StatusBadRequest)
		return
	}
	if raw := q.Get("municipalityId"); raw != "" {
		if sel.MunicipalityID, err = strconv.Atoi(raw); err != nil {
			http.Error(w, "Invalid municipalityId", http.StatusBadRequest)
			return
		}
	}

	rows, err := h.Store.ListResearchResults(r.Context(), sel.ResearchIDs)
	if err != nil {
		http.Error(w, "Failed to load results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results.Aggregate(rows, sel))
}

func parseIDList(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
