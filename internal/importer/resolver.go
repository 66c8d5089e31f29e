package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/suporte-lab/app-sub000/db"
	"github.com/suporte-lab/app-sub000/internal/directory"
	"github.com/suporte-lab/app-sub000/internal/geocode"
)

// Row-scoped resolution failures. Anything else coming out of the resolver is
// treated as fatal by the pipelines.
var (
	ErrUnknownState        = errors.New("unknown state")
	ErrUnknownMunicipality = errors.New("unknown municipality")
	ErrGeocodeFailed       = errors.New("geocode failed")
)

// ErrDirectoryUnavailable wraps directory transport failures; there is no way
// to keep importing without the directory, so the run aborts.
var ErrDirectoryUnavailable = errors.New("reference directory unavailable")

type DirectoryClient interface {
	States(ctx context.Context) ([]directory.State, error)
	Municipalities(ctx context.Context, stateCode string) ([]directory.Municipality, error)
}

type Geocoder interface {
	CityCenter(ctx context.Context, city, state string) (geocode.Point, error)
	Address(ctx context.Context, street, number, zipCode, city string) (geocode.Point, error)
}

type ResolverStore interface {
	GetMunicipalityByNameState(ctx context.Context, name, state string) (*db.Municipality, error)
	ReviveMunicipality(ctx context.Context, id int) error
	FindOrCreateMunicipality(ctx context.Context, m *db.Municipality) (*db.Municipality, bool, error)
	FindOrCreateCategory(ctx context.Context, name string) (*db.Category, bool, error)
}

// Resolver turns (state code, municipality name) pairs into canonical
// municipality rows and free-text category names into category rows. All
// caches are owned by the instance: build one per import run (or per request)
// and throw it away, so concurrent runs never share state.
type Resolver struct {
	store ResolverStore
	dir   DirectoryClient
	geo   Geocoder

	states         []directory.State
	municipalities map[string][]directory.Municipality
	cityPoints     map[string]geocode.Point
}

func NewResolver(store ResolverStore, dir DirectoryClient, geo Geocoder) *Resolver {
	return &Resolver{
		store:          store,
		dir:            dir,
		geo:            geo,
		municipalities: make(map[string][]directory.Municipality),
		cityPoints:     make(map[string]geocode.Point),
	}
}

// ResolveMunicipality returns the canonical municipality for a state code and
// name, creating (or reviving) the local row as needed. The state list and the
// per-state roster are fetched at most once per resolver lifetime; the
// directory is rate-limited and every row of an import goes through here.
func (r *Resolver) ResolveMunicipality(ctx context.Context, stateCode, name string) (*db.Municipality, error) {
	stateCode = strings.ToUpper(strings.TrimSpace(stateCode))
	name = strings.TrimSpace(name)

	state, err := r.findState(ctx, stateCode)
	if err != nil {
		return nil, err
	}
	official, err := r.findOfficialName(ctx, state.Code, name)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.GetMunicipalityByNameState(ctx, official, state.Code)
	if err == nil {
		if existing.Deleted {
			if err := r.store.ReviveMunicipality(ctx, existing.ID); err != nil {
				return nil, err
			}
			existing.Deleted = false
		}
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	point, err := r.CityCenter(ctx, official, state.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrGeocodeFailed, state.Code, official, err)
	}
	m := &db.Municipality{
		Name:      official,
		State:     state.Code,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
	}
	m, _, err = r.store.FindOrCreateMunicipality(ctx, m)
	return m, err
}

// ResolveCategory is a pure upsert-by-name: no directory, no geocode.
func (r *Resolver) ResolveCategory(ctx context.Context, name string) (*db.Category, error) {
	c, _, err := r.store.FindOrCreateCategory(ctx, strings.TrimSpace(name))
	return c, err
}

// CityCenter geocodes a municipality center, caching per name for the
// resolver's lifetime. Exposed because the municipality-creation endpoint
// reuses the same lookup outside the pipelines.
func (r *Resolver) CityCenter(ctx context.Context, city, state string) (geocode.Point, error) {
	key := state + "/" + city
	if p, ok := r.cityPoints[key]; ok {
		return p, nil
	}
	p, err := r.geo.CityCenter(ctx, city, state)
	if err != nil {
		return geocode.Point{}, err
	}
	r.cityPoints[key] = p
	return p, nil
}

func (r *Resolver) findState(ctx context.Context, stateCode string) (*directory.State, error) {
	if r.states == nil {
		states, err := r.dir.States(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		r.states = states
	}
	for i := range r.states {
		if strings.EqualFold(r.states[i].Code, stateCode) {
			return &r.states[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownState, stateCode)
}

// findOfficialName matches by exact uppercase name against the state roster
// and returns the directory's official spelling.
func (r *Resolver) findOfficialName(ctx context.Context, stateCode, name string) (string, error) {
	roster, ok := r.municipalities[stateCode]
	if !ok {
		var err error
		roster, err = r.dir.Municipalities(ctx, stateCode)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		r.municipalities[stateCode] = roster
	}
	want := strings.ToUpper(name)
	for _, m := range roster {
		if strings.ToUpper(m.Name) == want {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnknownMunicipality, name, stateCode)
}

// IsRowError reports whether a resolution failure is row-scoped (log and skip)
// as opposed to fatal for the run.
func IsRowError(err error) bool {
	return errors.Is(err, ErrUnknownState) ||
		errors.Is(err, ErrUnknownMunicipality) ||
		errors.Is(err, ErrGeocodeFailed)
}
