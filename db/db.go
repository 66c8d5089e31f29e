package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Question types. The set is closed; answer validation switches over it exhaustively.
const (
	QuestionText    = "text"
	QuestionNumber  = "number"
	QuestionBoolean = "boolean"
	QuestionSelect  = "select"
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// findOrCreate is the single check-then-insert primitive used for every entity
// with a uniqueness key. A conflicting concurrent insert is not an error: the
// row already exists, so it is re-fetched. The returned bool is true when this
// call created the row.
func findOrCreate[T any](get func() (*T, error), create func() (*T, error)) (*T, bool, error) {
	v, err := get()
	if err == nil {
		return v, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	v, err = create()
	if err == nil {
		return v, true, nil
	}
	if IsUniqueViolation(err) {
		v, err = get()
		return v, false, err
	}
	return nil, false, err
}

// Municipality (Município)

type Municipality struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	State     string    `db:"state" json:"state"`
	Latitude  float64   `db:"latitude" json:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// GetMunicipalityByNameState also matches soft-deleted rows: callers revive
// instead of inserting a duplicate for the same (name, state) pair.
func (s *Storage) GetMunicipalityByNameState(ctx context.Context, name, state string) (*Municipality, error) {
	m := &Municipality{}
	query := `SELECT * FROM municipality WHERE name=$1 AND state=$2`
	err := s.db.GetContext(ctx, m, query, name, state)
	return m, err
}

func (s *Storage) GetMunicipality(ctx context.Context, id int) (*Municipality, error) {
	m := &Municipality{}
	query := `SELECT * FROM municipality WHERE id=$1`
	err := s.db.GetContext(ctx, m, query, id)
	return m, err
}

func (s *Storage) ListMunicipalities(ctx context.Context) ([]Municipality, error) {
	ms := []Municipality{}
	query := `SELECT * FROM municipality WHERE NOT deleted ORDER BY state, name`
	err := s.db.SelectContext(ctx, &ms, query)
	return ms, err
}

func (s *Storage) FindOrCreateMunicipality(ctx context.Context, m *Municipality) (*Municipality, bool, error) {
	return findOrCreate(
		func() (*Municipality, error) {
			return s.GetMunicipalityByNameState(ctx, m.Name, m.State)
		},
		func() (*Municipality, error) {
			query := `
        INSERT INTO municipality (name, state, latitude, longitude)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
			err := s.db.QueryRowContext(ctx, query, m.Name, m.State, m.Latitude, m.Longitude).
				Scan(&m.ID, &m.CreatedAt)
			return m, err
		},
	)
}

func (s *Storage) ReviveMunicipality(ctx context.Context, id int) error {
	query := `UPDATE municipality SET deleted=false WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

func (s *Storage) SoftDeleteMunicipality(ctx context.Context, id int) error {
	query := `UPDATE municipality SET deleted=true WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Category (Categoria)

type Category struct {
	ID      int    `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Deleted bool   `db:"deleted" json:"deleted"`
}

func (s *Storage) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	c := &Category{}
	query := `SELECT * FROM category WHERE name=$1`
	err := s.db.GetContext(ctx, c, query, name)
	return c, err
}

func (s *Storage) ListCategories(ctx context.Context) ([]Category, error) {
	cs := []Category{}
	query := `SELECT * FROM category WHERE NOT deleted ORDER BY name`
	err := s.db.SelectContext(ctx, &cs, query)
	return cs, err
}

func (s *Storage) FindOrCreateCategory(ctx context.Context, name string) (*Category, bool, error) {
	return findOrCreate(
		func() (*Category, error) { return s.GetCategoryByName(ctx, name) },
		func() (*Category, error) {
			c := &Category{Name: name}
			query := `INSERT INTO category (name) VALUES ($1) RETURNING id`
			err := s.db.QueryRowContext(ctx, query, name).Scan(&c.ID)
			return c, err
		},
	)
}

func (s *Storage) SoftDeleteCategory(ctx context.Context, id int) error {
	query := `UPDATE category SET deleted=true WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Project (Projeto)

type Project struct {
	ID               int       `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	CategoryID       int       `db:"category_id" json:"categoryId"`
	MunicipalityID   int       `db:"municipality_id" json:"municipalityId"`
	ResponsibleName  string    `db:"responsible_name" json:"responsibleName"`
	ResponsibleRole  string    `db:"responsible_role" json:"responsibleRole"`
	ResponsiblePhone string    `db:"responsible_phone" json:"responsiblePhone"`
	ResponsibleEmail string    `db:"responsible_email" json:"responsibleEmail"`
	Street           string    `db:"street" json:"street"`
	Number           string    `db:"number" json:"number"`
	ZipCode          string    `db:"zip_code" json:"zipCode"`
	Latitude         float64   `db:"latitude" json:"latitude"`
	Longitude        float64   `db:"longitude" json:"longitude"`
	Deleted          bool      `db:"deleted" json:"deleted"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) CreateProject(ctx context.Context, p *Project) error {
	query := `
        INSERT INTO project
            (name, category_id, municipality_id, responsible_name, responsible_role,
             responsible_phone, responsible_email, street, number, zip_code, latitude, longitude)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query,
		p.Name, p.CategoryID, p.MunicipalityID, p.ResponsibleName, p.ResponsibleRole,
		p.ResponsiblePhone, p.ResponsibleEmail, p.Street, p.Number, p.ZipCode, p.Latitude, p.Longitude).
		Scan(&p.ID, &p.CreatedAt)
}

func (s *Storage) GetProject(ctx context.Context, id int) (*Project, error) {
	p := &Project{}
	query := `SELECT * FROM project WHERE id=$1`
	err := s.db.GetContext(ctx, p, query, id)
	return p, err
}

// GetLiveProjectByNameMunicipality backs the import duplicate check: only
// non-deleted rows count, regardless of category.
func (s *Storage) GetLiveProjectByNameMunicipality(ctx context.Context, name string, municipalityID int) (*Project, error) {
	p := &Project{}
	query := `SELECT * FROM project WHERE name=$1 AND municipality_id=$2 AND NOT deleted LIMIT 1`
	err := s.db.GetContext(ctx, p, query, name, municipalityID)
	return p, err
}

func (s *Storage) ListProjectsByMunicipality(ctx context.Context, municipalityID int) ([]Project, error) {
	ps := []Project{}
	query := `SELECT * FROM project WHERE municipality_id=$1 AND NOT deleted ORDER BY name`
	err := s.db.SelectContext(ctx, &ps, query, municipalityID)
	return ps, err
}

func (s *Storage) SoftDeleteProject(ctx context.Context, id int) error {
	query := `UPDATE project SET deleted=true WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Survey (Questionário)

type Survey struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) CreateSurvey(ctx context.Context, sv *Survey) error {
	query := `INSERT INTO survey (name) VALUES ($1) RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query, sv.Name).Scan(&sv.ID, &sv.CreatedAt)
}

func (s *Storage) GetSurvey(ctx context.Context, id int) (*Survey, error) {
	sv := &Survey{}
	query := `SELECT * FROM survey WHERE id=$1`
	err := s.db.GetContext(ctx, sv, query, id)
	return sv, err
}

func (s *Storage) ListSurveys(ctx context.Context) ([]Survey, error) {
	svs := []Survey{}
	query := `SELECT * FROM survey WHERE NOT deleted ORDER BY name`
	err := s.db.SelectContext(ctx, &svs, query)
	return svs, err
}

func (s *Storage) SoftDeleteSurvey(ctx context.Context, id int) error {
	query := `UPDATE survey SET deleted=true WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Question (Pergunta)

type Question struct {
	ID          int    `db:"id" json:"id"`
	SurveyID    int    `db:"survey_id" json:"surveyId"`
	Type        string `db:"type" json:"type"`
	Question    string `db:"question" json:"question"`
	Description string `db:"description" json:"description"`
	Position    int    `db:"position" json:"position"`
	IsPublic    bool   `db:"is_public" json:"isPublic"`
	Deleted     bool   `db:"deleted" json:"deleted"`
}

func (s *Storage) CreateQuestion(ctx context.Context, q *Question) error {
	query := `
        INSERT INTO question (survey_id, type, question, description, position, is_public)
        VALUES ($1, $2, $3, $4,
            COALESCE((SELECT MAX(position)+1 FROM question WHERE survey_id=$1), 0), $5)
        RETURNING id, position`
	return s.db.QueryRowContext(ctx, query,
		q.SurveyID, q.Type, q.Question, q.Description, q.IsPublic).
		Scan(&q.ID, &q.Position)
}

func (s *Storage) GetQuestion(ctx context.Context, id int) (*Question, error) {
	q := &Question{}
	query := `SELECT * FROM question WHERE id=$1`
	err := s.db.GetContext(ctx, q, query, id)
	return q, err
}

func (s *Storage) ListQuestionsBySurvey(ctx context.Context, surveyID int) ([]Question, error) {
	qs := []Question{}
	query := `SELECT * FROM question WHERE survey_id=$1 AND NOT deleted ORDER BY position`
	err := s.db.SelectContext(ctx, &qs, query, surveyID)
	return qs, err
}

// UpdateQuestionPositions rewrites position for every listed question of the
// survey. orderedIDs is the new order, the first id gets position 0.
func (s *Storage) UpdateQuestionPositions(ctx context.Context, surveyID int, orderedIDs []int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	query := `UPDATE question SET position=$1 WHERE id=$2 AND survey_id=$3`
	for pos, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx, query, pos, id, surveyID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Storage) SoftDeleteQuestion(ctx context.Context, id int) error {
	query := `UPDATE question SET deleted=true WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// QuestionOption

type QuestionOption struct {
	ID         int    `db:"id" json:"id"`
	QuestionID int    `db:"question_id" json:"questionId"`
	Value      string `db:"value" json:"value"`
	Position   int    `db:"position" json:"position"`
	Deleted    bool   `db:"deleted" json:"deleted"`
}

// ReplaceQuestionOptions soft-deletes the current option set and writes the new
// one. Answers referencing retired values keep their raw strings; validation
// only consults live options.
func (s *Storage) ReplaceQuestionOptions(ctx context.Context, questionID int, values []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`UPDATE question_option SET deleted=true WHERE question_id=$1`, questionID); err != nil {
		return err
	}
	query := `INSERT INTO question_option (question_id, value, position) VALUES ($1, $2, $3)`
	for pos, v := range values {
		if _, err := tx.ExecContext(ctx, query, questionID, v, pos); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Storage) ListOptionsByQuestion(ctx context.Context, questionID int) ([]QuestionOption, error) {
	opts := []QuestionOption{}
	query := `SELECT * FROM question_option WHERE question_id=$1 AND NOT deleted ORDER BY position`
	err := s.db.SelectContext(ctx, &opts, query, questionID)
	return opts, err
}

// Research (Pesquisa) — one deployment of a survey to one municipality;
// created_at is the wave date.

type Research struct {
	ID             int       `db:"id" json:"id"`
	SurveyID       int       `db:"survey_id" json:"surveyId"`
	MunicipalityID int       `db:"municipality_id" json:"municipalityId"`
	Name           string    `db:"name" json:"name"`
	Slug           string    `db:"slug" json:"slug"`
	Deleted        bool      `db:"deleted" json:"deleted"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

func (s *Storage) CreateResearch(ctx context.Context, r *Research) error {
	query := `
        INSERT INTO research (survey_id, municipality_id, name, slug)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query, r.SurveyID, r.MunicipalityID, r.Name, r.Slug).
		Scan(&r.ID, &r.CreatedAt)
}

func (s *Storage) GetResearch(ctx context.Context, id int) (*Research, error) {
	r := &Research{}
	query := `SELECT * FROM research WHERE id=$1`
	err := s.db.GetContext(ctx, r, query, id)
	return r, err
}

func (s *Storage) GetResearchBySlug(ctx context.Context, slug string) (*Research, error) {
	r := &Research{}
	query := `SELECT * FROM research WHERE slug=$1`
	err := s.db.GetContext(ctx, r, query, slug)
	return r, err
}

func (s *Storage) ListResearches(ctx context.Context) ([]Research, error) {
	rs := []Research{}
	query := `SELECT * FROM research WHERE NOT deleted ORDER BY created_at`
	err := s.db.SelectContext(ctx, &rs, query)
	return rs, err
}

func (s *Storage) SoftDeleteResearch(ctx context.Context, id int) error {
	query := `UPDATE research SET deleted=true WHERE id=$1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Answer (Resposta)

type Answer struct {
	ID         int    `db:"id" json:"id"`
	ProjectID  int    `db:"project_id" json:"projectId"`
	ResearchID int    `db:"research_id" json:"researchId"`
	SurveyID   int    `db:"survey_id" json:"surveyId"`
	QuestionID int    `db:"question_id" json:"questionId"`
	Answer     string `db:"answer" json:"answer"`
}

// UpsertAnswer is the one true-upsert write path: at most one row per
// (project, research, question), re-submitting overwrites the value.
func (s *Storage) UpsertAnswer(ctx context.Context, a *Answer) error {
	query := `
        INSERT INTO answer (project_id, research_id, survey_id, question_id, answer)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (project_id, research_id, question_id)
        DO UPDATE SET answer = EXCLUDED.answer
        RETURNING id`
	return s.db.QueryRowContext(ctx, query,
		a.ProjectID, a.ResearchID, a.SurveyID, a.QuestionID, a.Answer).
		Scan(&a.ID)
}

func (s *Storage) GetAnswer(ctx context.Context, projectID, researchID, questionID int) (*Answer, error) {
	a := &Answer{}
	query := `SELECT * FROM answer WHERE project_id=$1 AND research_id=$2 AND question_id=$3`
	err := s.db.GetContext(ctx, a, query, projectID, researchID, questionID)
	return a, err
}

// ListAnsweredProjectIDs returns the projects holding at least one answer for
// the research, i.e. the "complete" population.
func (s *Storage) ListAnsweredProjectIDs(ctx context.Context, researchID int) ([]int, error) {
	ids := []int{}
	query := `SELECT DISTINCT project_id FROM answer WHERE research_id=$1 ORDER BY project_id`
	err := s.db.SelectContext(ctx, &ids, query, researchID)
	return ids, err
}

// ResultRow is one flattened answer as consumed by the aggregation engine.
type ResultRow struct {
	ResearchID     int       `db:"research_id"`
	ResearchDate   time.Time `db:"research_date"`
	ProjectID      int       `db:"project_id"`
	MunicipalityID int       `db:"municipality_id"`
	CategoryID     int       `db:"category_id"`
	CategoryName   string    `db:"category_name"`
	QuestionID     int       `db:"question_id"`
	QuestionType   string    `db:"question_type"`
	Answer         string    `db:"answer"`
}

// ListResearchResults loads the flattened result set for the given researches
// (all live researches when researchIDs is empty).
func (s *Storage) ListResearchResults(ctx context.Context, researchIDs []int) ([]ResultRow, error) {
	baseQuery := `
        SELECT
            r.id AS research_id,
            r.created_at AS research_date,
            p.id AS project_id,
            p.municipality_id AS municipality_id,
            c.id AS category_id,
            c.name AS category_name,
            q.id AS question_id,
            q.type AS question_type,
            a.answer AS answer
        FROM answer a
        JOIN research r ON r.id = a.research_id
        JOIN project p ON p.id = a.project_id
        JOIN category c ON c.id = p.category_id
        JOIN question q ON q.id = a.question_id
        WHERE NOT r.deleted AND NOT p.deleted AND NOT q.deleted`
	var args []interface{}
	filter := ""
	if len(researchIDs) > 0 {
		placeholders := make([]string, len(researchIDs))
		for i, id := range researchIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, id)
		}
		filter = fmt.Sprintf(" AND r.id IN (%s)", strings.Join(placeholders, ", "))
	}
	query := baseQuery + filter + " ORDER BY r.created_at, p.id, q.position"

	rows := []ResultRow{}
	err := s.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
