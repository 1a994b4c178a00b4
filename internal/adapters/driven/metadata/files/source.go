// Package files loads the metadata hierarchy from CSV and JSON files,
// either from a directory or from the defaults compiled into the binary.
//
// A metadata directory holds four files:
//
//	indicators.csv       one row per indicator, with its pillar and category
//	intermediates.csv    one row per intermediate of a composite indicator
//	datasets.json        dataset details and source bindings
//	country_groups.json  named country lists
//
// List-valued CSV columns separate entries with ";".
package files

import (
	"context"
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// File names inside a metadata directory.
const (
	IndicatorsFile    = "indicators.csv"
	IntermediatesFile = "intermediates.csv"
	DatasetsFile      = "datasets.json"
	CountryGroupsFile = "country_groups.json"
)

//go:embed defaults/*
var defaults embed.FS

// Ensure Source implements the interface.
var _ driven.MetadataSource = (*Source)(nil)

// Source reads metadata from a filesystem.
type Source struct {
	fsys fs.FS
	name string
}

// NewSource reads from fsys. name is used in error messages.
func NewSource(fsys fs.FS, name string) *Source {
	return &Source{fsys: fsys, name: name}
}

// NewDirSource reads from dir on disk.
func NewDirSource(dir string) *Source {
	return NewSource(os.DirFS(dir), dir)
}

// NewDefaultSource reads the embedded defaults.
func NewDefaultSource() *Source {
	sub, err := fs.Sub(defaults, "defaults")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return NewSource(sub, "embedded defaults")
}

// Load parses every file and validates the resulting set.
func (s *Source) Load(ctx context.Context) (*domain.MetadataSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set := &domain.MetadataSet{}

	if err := s.loadIndicators(set); err != nil {
		return nil, err
	}
	if err := s.loadIntermediates(set); err != nil {
		return nil, err
	}
	if err := s.readJSON(DatasetsFile, &set.Datasets); err != nil {
		return nil, err
	}
	groups := map[string][]string{}
	if err := s.readJSON(CountryGroupsFile, &set.CountryGroups); err != nil {
		// The map form {"SSPI49": [...]} is accepted as well.
		if err2 := s.readJSON(CountryGroupsFile, &groups); err2 != nil {
			return nil, err
		}
		set.CountryGroups = groupsFromMap(groups)
	}

	if err := set.Validate(); err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%s: %w", s.name, err))
	}
	return set, nil
}

func groupsFromMap(m map[string][]string) []domain.CountryGroup {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.CountryGroup, 0, len(names))
	for _, name := range names {
		out = append(out, domain.CountryGroup{Name: name, Countries: m[name]})
	}
	return out
}

func (s *Source) readJSON(file string, v any) error {
	b, err := fs.ReadFile(s.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errkind.Configuration.Wrap(fmt.Errorf("%s/%s: %w", s.name, file, err))
	}
	return nil
}

// table is a parsed CSV file addressed by header name.
type table struct {
	file   string
	header map[string]int
	rows   [][]string
}

func (s *Source) readCSV(file string, required ...string) (*table, error) {
	f, err := s.fsys.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return &table{file: file}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &table{file: file}, nil
	}
	if err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%s/%s: %w", s.name, file, err))
	}
	t := &table{file: file, header: make(map[string]int, len(header))}
	for i, h := range header {
		t.header[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := t.header[col]; !ok {
			return nil, errkind.Configuration.New("%s/%s: missing column %s", s.name, file, col)
		}
	}
	if t.rows, err = r.ReadAll(); err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%s/%s: %w", s.name, file, err))
	}
	return t, nil
}

// row gives typed access to one record; the first parse error sticks.
type row struct {
	t    *table
	line int
	rec  []string
	err  error
}

func (t *table) each(fn func(r *row) error) error {
	for i, rec := range t.rows {
		r := &row{t: t, line: i + 2, rec: rec}
		if err := fn(r); err != nil {
			return err
		}
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func (r *row) str(col string) string {
	i, ok := r.t.header[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *row) list(col string) []string {
	var out []string
	for _, part := range strings.Split(r.str(col), ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *row) float(col string) float64 {
	v := r.optFloat(col)
	if v == nil {
		r.fail(col, "a number")
		return 0
	}
	return *v
}

func (r *row) optFloat(col string) *float64 {
	s := r.str(col)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, "a number")
		return nil
	}
	return &v
}

func (r *row) boolean(col string) bool {
	s := r.str(col)
	if s == "" {
		return false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		r.fail(col, "a boolean")
	}
	return b
}

func (r *row) fail(col, want string) {
	if r.err == nil {
		r.err = errkind.Configuration.New("%s line %d: %s=%q is not %s", r.t.file, r.line, col, r.str(col), want)
	}
}

func (s *Source) loadIndicators(set *domain.MetadataSet) error {
	t, err := s.readCSV(IndicatorsFile, "PillarCode", "CategoryCode", "IndicatorCode", "LowerGoalpost", "UpperGoalpost")
	if err != nil {
		return err
	}
	pillars := map[string]int{}
	categories := map[string]int{}

	return t.each(func(r *row) error {
		ind := domain.IndicatorDetail{
			IndicatorCode:     r.str("IndicatorCode"),
			Name:              r.str("Indicator"),
			PillarCode:        r.str("PillarCode"),
			CategoryCode:      r.str("CategoryCode"),
			LowerGoalpost:     r.float("LowerGoalpost"),
			UpperGoalpost:     r.float("UpperGoalpost"),
			Inverted:          r.boolean("Inverted"),
			DatasetCodes:      r.list("DatasetCodes"),
			IntermediateCodes: r.list("IntermediateCodes"),
			ScoreBy:           domain.ScoreMode(r.str("ScoreBy")),
			ScoreFunction:     r.str("ScoreFunction"),
			ValueFunction:     r.str("ValueFunction"),
			UnitFunction:      r.str("UnitFunction"),
			Unit:              r.str("Unit"),
		}
		if ind.IndicatorCode == "" {
			return errkind.Configuration.New("%s line %d: empty IndicatorCode", t.file, r.line)
		}

		if ind.PillarCode != "" {
			i, ok := pillars[ind.PillarCode]
			if !ok {
				i = len(set.Pillars)
				pillars[ind.PillarCode] = i
				set.Pillars = append(set.Pillars, domain.PillarDetail{PillarCode: ind.PillarCode, Name: r.str("Pillar")})
			}
			if ind.CategoryCode != "" && !contains(set.Pillars[i].CategoryCodes, ind.CategoryCode) {
				set.Pillars[i].CategoryCodes = append(set.Pillars[i].CategoryCodes, ind.CategoryCode)
			}
		}
		if ind.CategoryCode != "" {
			i, ok := categories[ind.CategoryCode]
			if !ok {
				i = len(set.Categories)
				categories[ind.CategoryCode] = i
				set.Categories = append(set.Categories, domain.CategoryDetail{
					CategoryCode: ind.CategoryCode, PillarCode: ind.PillarCode, Name: r.str("Category"),
				})
			}
			set.Categories[i].IndicatorCodes = append(set.Categories[i].IndicatorCodes, ind.IndicatorCode)
		}
		set.Indicators = append(set.Indicators, ind)
		return nil
	})
}

func (s *Source) loadIntermediates(set *domain.MetadataSet) error {
	t, err := s.readCSV(IntermediatesFile, "IntermediateCode", "IndicatorCode", "DatasetCode")
	if err != nil {
		return err
	}
	return t.each(func(r *row) error {
		im := domain.IntermediateDetail{
			IntermediateCode: r.str("IntermediateCode"),
			IndicatorCode:    r.str("IndicatorCode"),
			Name:             r.str("Intermediate"),
			DatasetCode:      r.str("DatasetCode"),
			LowerGoalpost:    r.optFloat("LowerGoalpost"),
			UpperGoalpost:    r.optFloat("UpperGoalpost"),
			Inverted:         r.boolean("Inverted"),
			Unit:             r.str("Unit"),
		}
		if im.IntermediateCode == "" {
			return errkind.Configuration.New("%s line %d: empty IntermediateCode", t.file, r.line)
		}
		if (im.LowerGoalpost == nil) != (im.UpperGoalpost == nil) {
			return errkind.Configuration.New("%s line %d: %s has only one goalpost", t.file, r.line, im.IntermediateCode)
		}
		set.Intermediates = append(set.Intermediates, im)
		return nil
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
