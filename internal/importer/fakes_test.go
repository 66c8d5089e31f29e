package importer_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/suporte-lab/app-sub000/db"
	"github.com/suporte-lab/app-sub000/internal/directory"
	"github.com/suporte-lab/app-sub000/internal/geocode"
)

// fakeStore is an in-memory stand-in for db.Storage covering the interfaces
// the pipelines consume.
type fakeStore struct {
	municipalities []*db.Municipality
	categories     []*db.Category
	projects       []*db.Project
	questions      []db.Question
	options        map[int][]db.QuestionOption
	researches     map[int]*db.Research
	answers        map[string]*db.Answer

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		options:    map[int][]db.QuestionOption{},
		researches: map[int]*db.Research{},
		answers:    map[string]*db.Answer{},
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) GetMunicipalityByNameState(_ context.Context, name, state string) (*db.Municipality, error) {
	for _, m := range s.municipalities {
		if m.Name == name && m.State == state {
			return m, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) ReviveMunicipality(_ context.Context, id int) error {
	for _, m := range s.municipalities {
		if m.ID == id {
			m.Deleted = false
			return nil
		}
	}
	return errors.New("not found")
}

func (s *fakeStore) FindOrCreateMunicipality(ctx context.Context, m *db.Municipality) (*db.Municipality, bool, error) {
	if existing, err := s.GetMunicipalityByNameState(ctx, m.Name, m.State); err == nil {
		return existing, false, nil
	}
	m.ID = s.id()
	s.municipalities = append(s.municipalities, m)
	return m, true, nil
}

func (s *fakeStore) FindOrCreateCategory(_ context.Context, name string) (*db.Category, bool, error) {
	for _, c := range s.categories {
		if c.Name == name {
			return c, false, nil
		}
	}
	c := &db.Category{ID: s.id(), Name: name}
	s.categories = append(s.categories, c)
	return c, true, nil
}

func (s *fakeStore) GetLiveProjectByNameMunicipality(_ context.Context, name string, municipalityID int) (*db.Project, error) {
	for _, p := range s.projects {
		if p.Name == name && p.MunicipalityID == municipalityID && !p.Deleted {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) CreateProject(_ context.Context, p *db.Project) error {
	p.ID = s.id()
	s.projects = append(s.projects, p)
	return nil
}

func (s *fakeStore) GetResearch(_ context.Context, id int) (*db.Research, error) {
	r, ok := s.researches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (s *fakeStore) ListQuestionsBySurvey(_ context.Context, surveyID int) ([]db.Question, error) {
	var out []db.Question
	for _, q := range s.questions {
		if q.SurveyID == surveyID && !q.Deleted {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeStore) ListOptionsByQuestion(_ context.Context, questionID int) ([]db.QuestionOption, error) {
	return s.options[questionID], nil
}

func (s *fakeStore) ListProjectsByMunicipality(_ context.Context, municipalityID int) ([]db.Project, error) {
	var out []db.Project
	for _, p := range s.projects {
		if p.MunicipalityID == municipalityID && !p.Deleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func answerKey(projectID, researchID, questionID int) string {
	return fmt.Sprintf("%d/%d/%d", projectID, researchID, questionID)
}

func (s *fakeStore) UpsertAnswer(_ context.Context, a *db.Answer) error {
	key := answerKey(a.ProjectID, a.ResearchID, a.QuestionID)
	if existing, ok := s.answers[key]; ok {
		existing.Answer = a.Answer
		a.ID = existing.ID
		return nil
	}
	a.ID = s.id()
	stored := *a
	s.answers[key] = &stored
	return nil
}

// fakeDirectory counts calls so tests can assert the per-run caching.
type fakeDirectory struct {
	states            []directory.State
	byState           map[string][]directory.Municipality
	statesCalls       int
	municipalityCalls int
	err               error
}

func (d *fakeDirectory) States(context.Context) ([]directory.State, error) {
	d.statesCalls++
	if d.err != nil {
		return nil, d.err
	}
	return d.states, nil
}

func (d *fakeDirectory) Municipalities(_ context.Context, stateCode string) ([]directory.Municipality, error) {
	d.municipalityCalls++
	if d.err != nil {
		return nil, d.err
	}
	return d.byState[stateCode], nil
}

type fakeGeocoder struct {
	cityCalls    int
	addressCalls int
	cityErr      error
	addressErr   error
}

func (g *fakeGeocoder) CityCenter(context.Context, string, string) (geocode.Point, error) {
	g.cityCalls++
	if g.cityErr != nil {
		return geocode.Point{}, g.cityErr
	}
	return geocode.Point{Latitude: -23.99, Longitude: -46.25}, nil
}

func (g *fakeGeocoder) Address(context.Context, string, string, string, string) (geocode.Point, error) {
	g.addressCalls++
	if g.addressErr != nil {
		return geocode.Point{}, g.addressErr
	}
	return geocode.Point{Latitude: -23.96, Longitude: -46.33}, nil
}

func guarujaDirectory() *fakeDirectory {
	return &fakeDirectory{
		states: []directory.State{{Code: "SP", Name: "São Paulo"}, {Code: "RJ", Name: "Rio de Janeiro"}},
		byState: map[string][]directory.Municipality{
			"SP": {{Code: 3518701, Name: "Guarujá"}, {Code: 3548500, Name: "Santos"}},
			"RJ": {{Code: 3304557, Name: "Rio de Janeiro"}},
		},
	}
}
