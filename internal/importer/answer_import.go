package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/suporte-lab/app-sub000/db"
)

type AnswerStore interface {
	GetResearch(ctx context.Context, id int) (*db.Research, error)
	ListQuestionsBySurvey(ctx context.Context, surveyID int) ([]db.Question, error)
	ListOptionsByQuestion(ctx context.Context, questionID int) ([]db.QuestionOption, error)
	ListProjectsByMunicipality(ctx context.Context, municipalityID int) ([]db.Project, error)
	UpsertAnswer(ctx context.Context, a *db.Answer) error
}

// AnswerImporter ingests a wide answer sheet for one research: first column is
// the project name, each remaining column is headed by the exact text of a
// question of the research's survey.
type AnswerImporter struct {
	store AnswerStore
}

func NewAnswerImporter(store AnswerStore) *AnswerImporter {
	return &AnswerImporter{store: store}
}

func (imp *AnswerImporter) Run(ctx context.Context, researchID int, r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	report := newReport()
	if len(records) == 0 {
		return report, nil
	}

	research, err := imp.store.GetResearch(ctx, researchID)
	if err != nil {
		return nil, fmt.Errorf("load research %d: %w", researchID, err)
	}
	questions, err := imp.store.ListQuestionsBySurvey(ctx, research.SurveyID)
	if err != nil {
		return nil, err
	}
	// The eligible project population is exactly the projects of the
	// research's municipality.
	projects, err := imp.store.ListProjectsByMunicipality(ctx, research.MunicipalityID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[string]*db.Question, len(questions))
	for i := range questions {
		byQuestion[questions[i].Question] = &questions[i]
	}
	byProject := make(map[string]*db.Project, len(projects))
	for i := range projects {
		byProject[projects[i].Name] = &projects[i]
	}

	// Header cells that don't match a question stay nil; those columns are
	// expected sheet noise and are skipped silently.
	header := records[0]
	columns := make([]*db.Question, len(header))
	for j := 1; j < len(header); j++ {
		columns[j] = byQuestion[strings.TrimSpace(header[j])]
	}

	options := make(map[int][]string)
	for i, record := range records[1:] {
		row := i + 2 // 1-based position in the input, header is row 1
		if err := imp.importRow(ctx, report, research, byProject, columns, options, row, record); err != nil {
			return nil, err
		}
	}
	return report, nil
}

type pendingAnswer struct {
	question *db.Question
	value    string
}

func (imp *AnswerImporter) importRow(
	ctx context.Context,
	report *Report,
	research *db.Research,
	byProject map[string]*db.Project,
	columns []*db.Question,
	options map[int][]string,
	row int,
	record []string,
) error {
	projectName := cell(record, 0)
	if projectName == "" {
		return nil
	}
	project, ok := byProject[projectName]
	if !ok {
		return nil // stale or foreign project name, skip silently
	}

	// Validation pass: every cell of the row is checked before anything is
	// written, so one bad cell voids the whole row.
	var pending []pendingAnswer
	valid := true
	for j := 1; j < len(record) && j < len(columns); j++ {
		question := columns[j]
		if question == nil {
			continue
		}
		raw := strings.TrimSpace(record[j])
		if raw == "" {
			continue
		}
		opts, err := imp.questionOptions(ctx, options, question)
		if err != nil {
			return err
		}
		if err := ValidateAnswer(question, opts, raw); err != nil {
			report.add(LogError, "row %d: %v", row, err)
			valid = false
			continue
		}
		pending = append(pending, pendingAnswer{question: question, value: raw})
	}
	if !valid || len(pending) == 0 {
		return nil
	}

	// Write pass.
	for _, p := range pending {
		a := &db.Answer{
			ProjectID:  project.ID,
			ResearchID: research.ID,
			SurveyID:   research.SurveyID,
			QuestionID: p.question.ID,
			Answer:     p.value,
		}
		if err := imp.store.UpsertAnswer(ctx, a); err != nil {
			return err
		}
	}
	report.NewRows++
	report.add(LogSuccess, "row %d updated", row)
	return nil
}

func (imp *AnswerImporter) questionOptions(ctx context.Context, cache map[int][]string, q *db.Question) ([]string, error) {
	if q.Type != db.QuestionSelect {
		return nil, nil
	}
	if opts, ok := cache[q.ID]; ok {
		return opts, nil
	}
	rows, err := imp.store.ListOptionsByQuestion(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	opts := make([]string, 0, len(rows))
	for _, o := range rows {
		opts = append(opts, o.Value)
	}
	cache[q.ID] = opts
	return opts, nil
}
