package handlers_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/suporte-lab/app-sub000/db"
	"github.com/suporte-lab/app-sub000/internal/directory"
	"github.com/suporte-lab/app-sub000/internal/geocode"
	"github.com/suporte-lab/app-sub000/internal/handlers"
	"github.com/suporte-lab/app-sub000/internal/handlers/testutils"
)

// MockStorage implements StorageInterface
type MockStorage struct {
	municipality      *db.Municipality
	research          *db.Research
	questions         []db.Question
	projects          []db.Project
	resultRows        []db.ResultRow
	createResearchErr error
	createdResearches []db.Research
}

func (m *MockStorage) GetMunicipalityByNameState(ctx context.Context, name, state string) (*db.Municipality, error) {
	if m.municipality == nil {
		return nil, sql.ErrNoRows
	}
	return m.municipality, nil
}
func (m *MockStorage) ReviveMunicipality(ctx context.Context, id int) error { return nil }
func (m *MockStorage) FindOrCreateMunicipality(ctx context.Context, mu *db.Municipality) (*db.Municipality, bool, error) {
	mu.ID = 1
	return mu, true, nil
}
func (m *MockStorage) FindOrCreateCategory(ctx context.Context, name string) (*db.Category, bool, error) {
	return &db.Category{ID: 1, Name: name}, true, nil
}
func (m *MockStorage) GetMunicipality(ctx context.Context, id int) (*db.Municipality, error) {
	if m.municipality == nil {
		return nil, sql.ErrNoRows
	}
	return m.municipality, nil
}
func (m *MockStorage) ListMunicipalities(ctx context.Context) ([]db.Municipality, error) {
	if m.municipality == nil {
		return []db.Municipality{}, nil
	}
	return []db.Municipality{*m.municipality}, nil
}
func (m *MockStorage) ListCategories(ctx context.Context) ([]db.Category, error) {
	return []db.Category{{ID: 1, Name: "Escola"}}, nil
}

func (m *MockStorage) GetLiveProjectByNameMunicipality(ctx context.Context, name string, municipalityID int) (*db.Project, error) {
	return nil, sql.ErrNoRows
}
func (m *MockStorage) CreateProject(ctx context.Context, p *db.Project) error { return nil }
func (m *MockStorage) ListProjectsByMunicipality(ctx context.Context, municipalityID int) ([]db.Project, error) {
	return m.projects, nil
}

func (m *MockStorage) CreateSurvey(ctx context.Context, sv *db.Survey) error {
	sv.ID = 10
	return nil
}
func (m *MockStorage) GetSurvey(ctx context.Context, id int) (*db.Survey, error) {
	return &db.Survey{ID: id, Name: "Test Survey"}, nil
}
func (m *MockStorage) ListSurveys(ctx context.Context) ([]db.Survey, error) {
	return []db.Survey{{ID: 10, Name: "Test Survey"}}, nil
}
func (m *MockStorage) SoftDeleteSurvey(ctx context.Context, id int) error { return nil }
func (m *MockStorage) CreateQuestion(ctx context.Context, q *db.Question) error {
	q.ID = 100
	return nil
}
func (m *MockStorage) GetQuestion(ctx context.Context, id int) (*db.Question, error) {
	return &db.Question{ID: id, SurveyID: 10, Type: db.QuestionText, Question: "Q"}, nil
}
func (m *MockStorage) ListQuestionsBySurvey(ctx context.Context, surveyID int) ([]db.Question, error) {
	return m.questions, nil
}
func (m *MockStorage) UpdateQuestionPositions(ctx context.Context, surveyID int, orderedIDs []int) error {
	return nil
}
func (m *MockStorage) SoftDeleteQuestion(ctx context.Context, id int) error { return nil }
func (m *MockStorage) ReplaceQuestionOptions(ctx context.Context, questionID int, values []string) error {
	return nil
}
func (m *MockStorage) ListOptionsByQuestion(ctx context.Context, questionID int) ([]db.QuestionOption, error) {
	return []db.QuestionOption{{ID: 1, QuestionID: questionID, Value: "Sim"}}, nil
}

func (m *MockStorage) CreateResearch(ctx context.Context, r *db.Research) error {
	if m.createResearchErr != nil {
		err := m.createResearchErr
		m.createResearchErr = nil
		return err
	}
	r.ID = 5
	r.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.createdResearches = append(m.createdResearches, *r)
	return nil
}
func (m *MockStorage) GetResearch(ctx context.Context, id int) (*db.Research, error) {
	if m.research == nil {
		return nil, sql.ErrNoRows
	}
	return m.research, nil
}
func (m *MockStorage) ListResearches(ctx context.Context) ([]db.Research, error) {
	if m.research == nil {
		return []db.Research{}, nil
	}
	return []db.Research{*m.research}, nil
}
func (m *MockStorage) SoftDeleteResearch(ctx context.Context, id int) error { return nil }
func (m *MockStorage) UpsertAnswer(ctx context.Context, a *db.Answer) error { return nil }
func (m *MockStorage) ListAnsweredProjectIDs(ctx context.Context, researchID int) ([]int, error) {
	return []int{51}, nil
}
func (m *MockStorage) ListResearchResults(ctx context.Context, researchIDs []int) ([]db.ResultRow, error) {
	return m.resultRows, nil
}

type stubDirectory struct{}

func (stubDirectory) States(context.Context) ([]directory.State, error) {
	return []directory.State{{Code: "SP", Name: "São Paulo"}}, nil
}
func (stubDirectory) Municipalities(context.Context, string) ([]directory.Municipality, error) {
	return []directory.Municipality{{Code: 1, Name: "Guarujá"}}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) CityCenter(context.Context, string, string) (geocode.Point, error) {
	return geocode.Point{Latitude: -23.99, Longitude: -46.25}, nil
}
func (stubGeocoder) Address(context.Context, string, string, string, string) (geocode.Point, error) {
	return geocode.Point{Latitude: -23.96, Longitude: -46.33}, nil
}

func newTestHandler(store *MockStorage) *handlers.Handler {
	return handlers.NewHandler(store, stubDirectory{}, stubGeocoder{})
}

func TestPingHandler(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	h.PingHandler(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestCreateSurveyHandler(t *testing.T) {
	h := newTestHandler(&MockStorage{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/surveys/new", strings.NewReader(`{"name":"Censo 2024"}`))
	h.CreateSurveyHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var survey db.Survey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &survey))
	require.Equal(t, 10, survey.ID)
	require.Equal(t, "Censo 2024", survey.Name)
}

func TestCreateSurveyHandlerRejectsEmptyName(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/surveys/new", strings.NewReader(`{"name":""}`))
	h.CreateSurveyHandler(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateQuestionHandlerRequiresOptionsForSelect(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	body := `{"surveyId":10,"type":"select","question":"Possui biblioteca?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/questions/new", strings.NewReader(body))
	h.CreateQuestionHandler(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateQuestionHandler(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	body := `{"surveyId":10,"type":"select","question":"Possui biblioteca?","options":["Sim","Não"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/questions/new", strings.NewReader(body))
	h.CreateQuestionHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateResearchHandlerGeneratesSlug(t *testing.T) {
	store := &MockStorage{municipality: &db.Municipality{ID: 1, Name: "Guarujá", State: "SP"}}
	h := newTestHandler(store)
	rec := httptest.NewRecorder()
	body := `{"surveyId":10,"municipalityId":1,"name":"Onda de Verão 2024"}`
	req := httptest.NewRequest(http.MethodPost, "/api/research/new", strings.NewReader(body))
	h.CreateResearchHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.createdResearches, 1)
	require.Equal(t, "onda-de-verao-2024", store.createdResearches[0].Slug)
}

func TestCreateResearchHandlerRetriesSlugOnConflict(t *testing.T) {
	store := &MockStorage{
		municipality:      &db.Municipality{ID: 1, Name: "Guarujá", State: "SP"},
		createResearchErr: &pq.Error{Code: "23505"},
	}
	h := newTestHandler(store)
	rec := httptest.NewRecorder()
	body := `{"surveyId":10,"municipalityId":1,"name":"Onda 1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/research/new", strings.NewReader(body))
	h.CreateResearchHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.createdResearches, 1)
	slug := store.createdResearches[0].Slug
	require.True(t, strings.HasPrefix(slug, "onda-1-"))
	require.Greater(t, len(slug), len("onda-1-"))
}

func TestCreateMunicipalityHandler(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	body := `{"state":"SP","name":"Guarujá"}`
	req := httptest.NewRequest(http.MethodPost, "/api/municipalities", strings.NewReader(body))
	h.CreateMunicipalityHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var m db.Municipality
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Equal(t, "Guarujá", m.Name)
	require.Equal(t, -23.99, m.Latitude)
}

func TestCreateMunicipalityHandlerUnknown(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	body := `{"state":"SP","name":"Atlantis"}`
	req := httptest.NewRequest(http.MethodPost, "/api/municipalities", strings.NewReader(body))
	h.CreateMunicipalityHandler(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResultsHandlerRequiresQuestion(t *testing.T) {
	h := newTestHandler(&MockStorage{})
	rec := httptest.NewRecorder()
	h.ResultsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultsHandler(t *testing.T) {
	store := &MockStorage{
		resultRows: []db.ResultRow{{
			ResearchID:   5,
			ResearchDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ProjectID:    51, MunicipalityID: 1, CategoryID: 1, CategoryName: "Escola",
			QuestionID: 100, QuestionType: db.QuestionNumber, Answer: "10",
		}},
	}
	h := newTestHandler(store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/results?questionId=100&researchIds=5", nil)
	h.ResultsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var series []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Len(t, series, 1)
	require.Equal(t, "01/01/2024", series[0]["name"])
	require.Equal(t, 10.0, series[0]["Escola"])
}

func TestAnswerTemplateHandler(t *testing.T) {
	store := &MockStorage{
		research:  &db.Research{ID: 5, SurveyID: 10, MunicipalityID: 1, Name: "Onda 1"},
		questions: []db.Question{{ID: 100, Question: "Quantos alunos atendidos?"}},
		projects:  []db.Project{{ID: 51, Name: "Projeto Ler", MunicipalityID: 1}},
	}
	h := newTestHandler(store)
	rec := httptest.NewRecorder()
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodGet, "/api/research/5/answers/template", nil),
		map[string]string{"researchId": "5"},
	)
	h.AnswerTemplateHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, rec.Body.String(), "Projeto,Quantos alunos atendidos?")
	require.Contains(t, rec.Body.String(), "Projeto Ler")
}

func TestResearchStatusHandler(t *testing.T) {
	store := &MockStorage{
		research: &db.Research{ID: 5, SurveyID: 10, MunicipalityID: 1, Name: "Onda 1"},
		projects: []db.Project{{ID: 51, MunicipalityID: 1}, {ID: 52, MunicipalityID: 1}},
	}
	h := newTestHandler(store)
	rec := httptest.NewRecorder()
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodGet, "/api/research/5/status", nil),
		map[string]string{"researchId": "5"},
	)
	h.ResearchStatusHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		EligibleProjects int   `json:"eligibleProjects"`
		AnsweredProjects []int `json:"answeredProjects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, 2, status.EligibleProjects)
	require.Equal(t, []int{51}, status.AnsweredProjects)
}
