package handlers

import (
	"context"

	"github.com/suporte-lab/app-sub000/db"
)

// StorageInterface is everything the HTTP surface needs from storage. It is a
// superset of the narrower interfaces the import pipelines consume, so
// *db.Storage satisfies all of them at once.
type StorageInterface interface {
	// reference resolution
	GetMunicipalityByNameState(ctx context.Context, name, state string) (*db.Municipality, error)
	ReviveMunicipality(ctx context.Context, id int) error
	FindOrCreateMunicipality(ctx context.Context, m *db.Municipality) (*db.Municipality, bool, error)
	FindOrCreateCategory(ctx context.Context, name string) (*db.Category, bool, error)
	GetMunicipality(ctx context.Context, id int) (*db.Municipality, error)
	ListMunicipalities(ctx context.Context) ([]db.Municipality, error)
	ListCategories(ctx context.Context) ([]db.Category, error)

	// projects
	GetLiveProjectByNameMunicipality(ctx context.Context, name string, municipalityID int) (*db.Project, error)
	CreateProject(ctx context.Context, p *db.Project) error
	ListProjectsByMunicipality(ctx context.Context, municipalityID int) ([]db.Project, error)

	// surveys and questions
	CreateSurvey(ctx context.Context, sv *db.Survey) error
	GetSurvey(ctx context.Context, id int) (*db.Survey, error)
	ListSurveys(ctx context.Context) ([]db.Survey, error)
	SoftDeleteSurvey(ctx context.Context, id int) error
	CreateQuestion(ctx context.Context, q *db.Question) error
	GetQuestion(ctx context.Context, id int) (*db.Question, error)
	ListQuestionsBySurvey(ctx context.Context, surveyID int) ([]db.Question, error)
	UpdateQuestionPositions(ctx context.Context, surveyID int, orderedIDs []int) error
	SoftDeleteQuestion(ctx context.Context, id int) error
	ReplaceQuestionOptions(ctx context.Context, questionID int, values []string) error
	ListOptionsByQuestion(ctx context.Context, questionID int) ([]db.QuestionOption, error)

	// researches and answers
	CreateResearch(ctx context.Context, r *db.Research) error
	GetResearch(ctx context.Context, id int) (*db.Research, error)
	ListResearches(ctx context.Context) ([]db.Research, error)
	SoftDeleteResearch(ctx context.Context, id int) error
	UpsertAnswer(ctx context.Context, a *db.Answer) error
	ListAnsweredProjectIDs(ctx context.Context, researchID int) ([]int, error)
	ListResearchResults(ctx context.Context, researchIDs []int) ([]db.ResultRow, error)
}
