package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/suporte-lab/app-sub000/db"
)

type createSurveyRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// CreateSurveyHandler handles POST /api/surveys/new.
func (h *Handler) CreateSurveyHandler(w http.ResponseWriter, r *http.Request) {
	var req createSurveyRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	survey := &db.Survey{Name: req.Name}
	if err := h.Store.CreateSurvey(r.Context(), survey); err != nil {
		http.Error(w, "Failed to create survey", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, survey)
}

type questionWithOptions struct {
	db.Question
	Options []db.QuestionOption `json:"options,omitempty"`
}

type surveyResponse struct {
	db.Survey
	Questions []questionWithOptions `json:"questions"`
}

// GetSurveyHandler returns one survey with its ordered questions and, for
// select questions, their live option sets.
func (h *Handler) GetSurveyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "surveyId"))
	if err != nil {
		http.Error(w, "Invalid survey id", http.StatusBadRequest)
		return
	}
	survey, err := h.Store.GetSurvey(r.Context(), id)
	if err != nil {
		http.Error(w, "Survey not found", http.StatusNotFound)
		return
	}
	questions, err := h.Store.ListQuestionsBySurvey(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load questions", http.StatusInternalServerError)
		return
	}
	resp := surveyResponse{Survey: *survey, Questions: make([]questionWithOptions, 0, len(questions))}
	for _, q := range questions {
		item := questionWithOptions{Question: q}
		if q.Type == db.QuestionSelect {
			opts, err := h.Store.ListOptionsByQuestion(r.Context(), q.ID)
			if err != nil {
				http.Error(w, "Failed to load options", http.StatusInternalServerError)
				return
			}
			item.Options = opts
		}
		resp.Questions = append(resp.Questions, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSurveysHandler handles GET /api/surveys.
func (h *Handler) ListSurveysHandler(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.Store.ListSurveys(r.Context())
	if err != nil {
		http.Error(w, "Failed to list surveys", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, surveys)
}

// DeleteSurveyHandler soft-deletes a survey.
func (h *Handler) DeleteSurveyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "surveyId"))
	if err != nil {
		http.Error(w, "Invalid survey id", http.StatusBadRequest)
		return
	}
	if err := h.Store.SoftDeleteSurvey(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete survey", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type createQuestionRequest struct {
	SurveyID    int      `json:"surveyId" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=text number boolean select"`
	Question    string   `json:"question" validate:"required"`
	Description string   `json:"description"`
	IsPublic    bool     `json:"isPublic"`
	Options     []string `json:"options" validate:"required_if=Type select,dive,required"`
}

// CreateQuestionHandler appends a question to a survey; select questions get
// their option set written in the same call.
func (h *Handler) CreateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	question := &db.Question{
		SurveyID:    req.SurveyID,
		Type:        req.Type,
		Question:    req.Question,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if err := h.Store.CreateQuestion(r.Context(), question); err != nil {
		http.Error(w, "Failed to create question", http.StatusInternalServerError)
		return
	}
	if req.Type == db.QuestionSelect {
		if err := h.Store.ReplaceQuestionOptions(r.Context(), question.ID, req.Options); err != nil {
			http.Error(w, "Failed to save options", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, question)
}

type reorderQuestionsRequest struct {
	QuestionIDs []int `json:"questionIds" validate:"required,min=1"`
}

// ReorderQuestionsHandler rewrites position for every question of a survey.
// PUT /api/surveys/{surveyId}/questions/reorder. Client-driven bulk rewrite:
// the body carries the full new order.
func (h *Handler) ReorderQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	surveyID, err := strconv.Atoi(chi.URLParam(r, "surveyId"))
	if err != nil {
		http.Error(w, "Invalid survey id", http.StatusBadRequest)
		return
	}
	var req reorderQuestionsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.Store.UpdateQuestionPositions(r.Context(), surveyID, req.QuestionIDs); err != nil {
		http.Error(w, "Failed to reorder questions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteQuestionHandler soft-deletes a question.
func (h *Handler) DeleteQuestionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "questionId"))
	if err != nil {
		http.Error(w, "Invalid question id", http.StatusBadRequest)
		return
	}
	if _, err := h.Store.GetQuestion(r.Context(), id); err != nil {
		http.Error(w, "Question not found", http.StatusNotFound)
		return
	}
	if err := h.Store.SoftDeleteQuestion(r.Context(), id); err != nil {
		http.Error(w, "Failed to delete question", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
