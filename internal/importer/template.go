package importer

import (
	"bytes"
	"encoding/csv"

	"github.com/suporte-lab/app-sub000/db"
)

// projectImportHeader names the 11 positional columns of the project sheet,
// in import order. The template generator and the import contract share it.
var projectImportHeader = []string{
	"UF",
	"Município",
	"Categoria",
	"Projeto",
	"Responsável",
	"Cargo",
	"Telefone",
	"Email",
	"Rua",
	"Número",
	"CEP",
}

// ProjectTemplate renders the header-only CSV users download, fill in and
// re-import.
func ProjectTemplate() ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(projectImportHeader); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// AnswerTemplate renders the answer sheet for one research: header row with
// the project column followed by the survey's question texts, then one blank
// row per eligible project. The headers are what the answer import matches on.
func AnswerTemplate(questions []db.Question, projects []db.Project) ([]byte, error) {
	header := make([]string, 0, 1+len(questions))
	header = append(header, "Projeto")
	for _, q := range questions {
		header = append(header, q.Question)
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, p := range projects {
		row := make([]string, len(header))
		row[0] = p.Name
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
