package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/suporte-lab/app-sub000/db"
)

// Fixed positional layout of the project import sheet.
const (
	colState = iota
	colMunicipality
	colCategory
	colProject
	colResponsibleName
	colResponsibleRole
	colResponsiblePhone
	colResponsibleEmail
	colStreet
	colNumber
	colZipCode
)

type ProjectStore interface {
	GetLiveProjectByNameMunicipality(ctx context.Context, name string, municipalityID int) (*db.Project, error)
	CreateProject(ctx context.Context, p *db.Project) error
}

// ProjectImporter ingests a project spreadsheet, resolving each row against
// the reference data and inserting new projects. One importer serves one run:
// the resolver's caches are scoped to it.
type ProjectImporter struct {
	store    ProjectStore
	resolver *Resolver
	geo      Geocoder
}

func NewProjectImporter(store ProjectStore, resolver *Resolver, geo Geocoder) *ProjectImporter {
	return &ProjectImporter{store: store, resolver: resolver, geo: geo}
}

// Run processes the whole sheet in row order, continuing past row-scoped
// failures. It returns an error only for fatal conditions (undetectable
// encoding, unreadable CSV, directory unreachable, storage failure); in that
// case no partial report is produced.
func (imp *ProjectImporter) Run(ctx context.Context, r io.Reader) (*Report, error) {
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
	for i, record := range records {
		row := i + 1 // 1-based position in the input, blank rows included
		if err := imp.importRow(ctx, report, row, record); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (imp *ProjectImporter) importRow(ctx context.Context, report *Report, row int, record []string) error {
	if cell(record, colState) == "" {
		return nil // blank line
	}

	municipality, err := imp.resolver.ResolveMunicipality(ctx, cell(record, colState), cell(record, colMunicipality))
	if err != nil {
		if IsRowError(err) {
			report.add(LogError, "row %d: %v", row, err)
			return nil
		}
		return err
	}

	categoryName := cell(record, colCategory)
	if categoryName == "" {
		report.add(LogError, "row %d: missing category", row)
		return nil
	}
	category, err := imp.resolver.ResolveCategory(ctx, categoryName)
	if err != nil {
		return err
	}

	street, number, zip := cell(record, colStreet), cell(record, colNumber), cell(record, colZipCode)
	if street == "" || number == "" || zip == "" {
		report.add(LogError, "row %d: missing address (street, number and zip code are required)", row)
		return nil
	}
	point, err := imp.geo.Address(ctx, street, number, zip, municipality.Name)
	if err != nil {
		report.add(LogError, "row %d: address geocode failed: %v", row, err)
		return nil
	}

	name, email := cell(record, colProject), cell(record, colResponsibleEmail)
	if name == "" || email == "" {
		report.add(LogError, "row %d: missing project name or responsible email", row)
		return nil
	}

	// Imports only ever create projects. An existing live project with the
	// same name in the municipality is skipped, never updated.
	_, err = imp.store.GetLiveProjectByNameMunicipality(ctx, name, municipality.ID)
	if err == nil {
		report.add(LogWarning, "row %d: project %q already exists in %s", row, name, municipality.Name)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	project := &db.Project{
		Name:             name,
		CategoryID:       category.ID,
		MunicipalityID:   municipality.ID,
		ResponsibleName:  cell(record, colResponsibleName),
		ResponsibleRole:  cell(record, colResponsibleRole),
		ResponsiblePhone: cell(record, colResponsiblePhone),
		ResponsibleEmail: email,
		Street:           street,
		Number:           number,
		ZipCode:          zip,
		Latitude:         point.Latitude,
		Longitude:        point.Longitude,
	}
	if err := imp.store.CreateProject(ctx, project); err != nil {
		if db.IsUniqueViolation(err) {
			report.add(LogWarning, "row %d: project %q already exists in %s", row, name, municipality.Name)
			return nil
		}
		return err
	}
	report.NewRows++
	report.add(LogSuccess, "row %d: project %q created", row, name)
	return nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
