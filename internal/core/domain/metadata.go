package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DocumentType names a kind of metadata document.
type DocumentType string

const (
	DocPillarCodes        DocumentType = "PillarCodes"
	DocCategoryCodes      DocumentType = "CategoryCodes"
	DocIndicatorCodes     DocumentType = "IndicatorCodes"
	DocIntermediateCodes  DocumentType = "IntermediateCodes"
	DocDatasetCodes       DocumentType = "DatasetCodes"
	DocPillarDetail       DocumentType = "PillarDetail"
	DocCategoryDetail     DocumentType = "CategoryDetail"
	DocIndicatorDetail    DocumentType = "IndicatorDetail"
	DocIntermediateDetail DocumentType = "IntermediateDetail"
	DocDatasetDetail      DocumentType = "DatasetDetail"
	DocCountryGroup       DocumentType = "CountryGroup"
)

// ParseDocumentType accepts both the canonical names and the snake_case
// path forms used over HTTP (indicator_details, country_groups, ...).
func ParseDocumentType(s string) (DocumentType, bool) {
	key := strings.ReplaceAll(strings.ToLower(s), "_", "")
	switch key {
	case "pillarcodes":
		return DocPillarCodes, true
	case "categorycodes":
		return DocCategoryCodes, true
	case "indicatorcodes":
		return DocIndicatorCodes, true
	case "intermediatecodes":
		return DocIntermediateCodes, true
	case "datasetcodes":
		return DocDatasetCodes, true
	case "pillardetail", "pillardetails":
		return DocPillarDetail, true
	case "categorydetail", "categorydetails":
		return DocCategoryDetail, true
	case "indicatordetail", "indicatordetails":
		return DocIndicatorDetail, true
	case "intermediatedetail", "intermediatedetails":
		return DocIntermediateDetail, true
	case "datasetdetail", "datasetdetails":
		return DocDatasetDetail, true
	case "countrygroup", "countrygroups":
		return DocCountryGroup, true
	}
	return "", false
}

// ScoreMode selects how composite functions bind their variables.
type ScoreMode string

const (
	// ScoreByScore binds intermediate scores (or values when unscored).
	ScoreByScore ScoreMode = "Score"

	// ScoreByValue binds intermediate values and goalposts the result.
	ScoreByValue ScoreMode = "Value"
)

// Goalposts bound the goalposting transform.
type Goalposts struct {
	Lower float64 `json:"LowerGoalpost"`
	Upper float64 `json:"UpperGoalpost"`
}

// Validate rejects equal or non-finite goalposts.
func (g Goalposts) Validate() error {
	for _, v := range []float64{g.Lower, g.Upper} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound", ErrInvalidGoalposts)
		}
	}
	if g.Lower == g.Upper {
		return fmt.Errorf("%w: lower equals upper (%v)", ErrInvalidGoalposts, g.Lower)
	}
	return nil
}

// PillarDetail is the top of the hierarchy.
type PillarDetail struct {
	PillarCode    string   `json:"PillarCode"`
	Name          string   `json:"Name"`
	CategoryCodes []string `json:"CategoryCodes"`
}

// CategoryDetail groups indicators within a pillar.
type CategoryDetail struct {
	CategoryCode   string   `json:"CategoryCode"`
	PillarCode     string   `json:"PillarCode"`
	Name           string   `json:"Name"`
	IndicatorCodes []string `json:"IndicatorCodes"`
}

// IndicatorDetail describes a scored indicator.
type IndicatorDetail struct {
	IndicatorCode     string    `json:"IndicatorCode"`
	Name              string    `json:"Name"`
	PillarCode        string    `json:"PillarCode"`
	CategoryCode      string    `json:"CategoryCode"`
	LowerGoalpost     float64   `json:"LowerGoalpost"`
	UpperGoalpost     float64   `json:"UpperGoalpost"`
	Inverted          bool      `json:"Inverted"`
	IntermediateCodes []string  `json:"IntermediateCodes,omitempty"`
	DatasetCodes      []string  `json:"DatasetCodes,omitempty"`
	ScoreFunction     string    `json:"ScoreFunction,omitempty"`
	ValueFunction     string    `json:"ValueFunction,omitempty"`
	UnitFunction      string    `json:"UnitFunction,omitempty"`
	ScoreBy           ScoreMode `json:"ScoreBy,omitempty"`
	Unit              string    `json:"Unit,omitempty"`
}

// Goalposts returns the indicator's goalposts.
func (d IndicatorDetail) Goalposts() Goalposts {
	return Goalposts{Lower: d.LowerGoalpost, Upper: d.UpperGoalpost}
}

// Mode returns ScoreBy with the Score default applied.
func (d IndicatorDetail) Mode() ScoreMode {
	if d.ScoreBy == "" {
		return ScoreByScore
	}
	return d.ScoreBy
}

// IsComposite reports whether the indicator is zipped from intermediates.
func (d IndicatorDetail) IsComposite() bool {
	return len(d.IntermediateCodes) > 0
}

// IntermediateDetail describes an input to a composite indicator.
// Goalposts are optional; when set the intermediate is scored.
type IntermediateDetail struct {
	IntermediateCode string   `json:"IntermediateCode"`
	IndicatorCode    string   `json:"IndicatorCode"`
	Name             string   `json:"Name"`
	DatasetCode      string   `json:"DatasetCode"`
	LowerGoalpost    *float64 `json:"LowerGoalpost,omitempty"`
	UpperGoalpost    *float64 `json:"UpperGoalpost,omitempty"`
	Inverted         bool     `json:"Inverted"`
	Unit             string   `json:"Unit,omitempty"`
}

// Goalposts returns the intermediate's goalposts and whether it has any.
func (d IntermediateDetail) Goalposts() (Goalposts, bool) {
	if d.LowerGoalpost == nil || d.UpperGoalpost == nil {
		return Goalposts{}, false
	}
	return Goalposts{Lower: *d.LowerGoalpost, Upper: *d.UpperGoalpost}, true
}

// DatasetDetail describes a cleaned upstream dataset.
type DatasetDetail struct {
	DatasetCode string        `json:"DatasetCode"`
	Name        string        `json:"Name"`
	Description string        `json:"Description,omitempty"`
	Unit        string        `json:"Unit,omitempty"`
	Source      SourceBinding `json:"Source"`
	MinYear     int           `json:"MinYear,omitempty"`
	MaxYear     int           `json:"MaxYear,omitempty"`
}

// CountryGroup is a named list of country codes.
type CountryGroup struct {
	Name      string   `json:"Name"`
	Countries []string `json:"Countries"`
}

// MetadataSet is the complete metadata hierarchy as loaded.
type MetadataSet struct {
	Pillars       []PillarDetail       `json:"Pillars"`
	Categories    []CategoryDetail     `json:"Categories"`
	Indicators    []IndicatorDetail    `json:"Indicators"`
	Intermediates []IntermediateDetail `json:"Intermediates"`
	Datasets      []DatasetDetail      `json:"Datasets"`
	CountryGroups []CountryGroup       `json:"CountryGroups"`
}

// Validate checks referential integrity and rejects cycles. A code is a
// single node regardless of level, so reusing a code at two levels that
// link to each other is reported as a cycle. Goalposts are checked when
// an indicator is scored.
func (m *MetadataSet) Validate() error {
	pillars := map[string]bool{}
	categories := map[string]bool{}
	indicators := map[string]IndicatorDetail{}
	intermediates := map[string]IntermediateDetail{}
	datasets := map[string]bool{}

	for _, p := range m.Pillars {
		if p.PillarCode == "" {
			return fmt.Errorf("%w: pillar without code", ErrInvalidMetadata)
		}
		if pillars[p.PillarCode] {
			return fmt.Errorf("%w: duplicate pillar %s", ErrInvalidMetadata, p.PillarCode)
		}
		pillars[p.PillarCode] = true
	}
	for _, c := range m.Categories {
		if categories[c.CategoryCode] {
			return fmt.Errorf("%w: duplicate category %s", ErrInvalidMetadata, c.CategoryCode)
		}
		if c.PillarCode != "" && !pillars[c.PillarCode] {
			return fmt.Errorf("%w: category %s references unknown pillar %s",
				ErrInvalidMetadata, c.CategoryCode, c.PillarCode)
		}
		categories[c.CategoryCode] = true
	}
	for _, d := range m.Datasets {
		if d.DatasetCode == "" {
			return fmt.Errorf("%w: dataset without code", ErrInvalidMetadata)
		}
		if datasets[d.DatasetCode] {
			return fmt.Errorf("%w: duplicate dataset %s", ErrInvalidMetadata, d.DatasetCode)
		}
		datasets[d.DatasetCode] = true
	}
	if err := m.validateBindings(); err != nil {
		return err
	}
	for _, ind := range m.Indicators {
		if _, dup := indicators[ind.IndicatorCode]; dup {
			return fmt.Errorf("%w: duplicate indicator %s", ErrInvalidMetadata, ind.IndicatorCode)
		}
		if ind.CategoryCode != "" && !categories[ind.CategoryCode] {
			return fmt.Errorf("%w: indicator %s references unknown category %s",
				ErrInvalidMetadata, ind.IndicatorCode, ind.CategoryCode)
		}
		for _, ds := range ind.DatasetCodes {
			if !datasets[ds] {
				return fmt.Errorf("%w: indicator %s references unknown dataset %s",
					ErrInvalidMetadata, ind.IndicatorCode, ds)
			}
		}
		if ind.ScoreBy != "" && ind.ScoreBy != ScoreByScore && ind.ScoreBy != ScoreByValue {
			return fmt.Errorf("%w: indicator %s has ScoreBy %q",
				ErrInvalidMetadata, ind.IndicatorCode, ind.ScoreBy)
		}
		indicators[ind.IndicatorCode] = ind
	}
	for _, im := range m.Intermediates {
		if _, dup := intermediates[im.IntermediateCode]; dup {
			return fmt.Errorf("%w: duplicate intermediate %s", ErrInvalidMetadata, im.IntermediateCode)
		}
		parent, ok := indicators[im.IndicatorCode]
		if !ok || !contains(parent.IntermediateCodes, im.IntermediateCode) {
			return fmt.Errorf("%w: intermediate %s is not listed by indicator %q",
				ErrInvalidMetadata, im.IntermediateCode, im.IndicatorCode)
		}
		if im.DatasetCode != "" && !datasets[im.DatasetCode] {
			return fmt.Errorf("%w: intermediate %s references unknown dataset %s",
				ErrInvalidMetadata, im.IntermediateCode, im.DatasetCode)
		}
		intermediates[im.IntermediateCode] = im
	}
	for _, ind := range m.Indicators {
		for _, code := range ind.IntermediateCodes {
			if _, ok := intermediates[code]; !ok {
				return fmt.Errorf("%w: indicator %s lists undefined intermediate %s",
					ErrInvalidMetadata, ind.IndicatorCode, code)
			}
		}
	}
	for _, g := range m.CountryGroups {
		if g.Name == "" {
			return fmt.Errorf("%w: country group without name", ErrInvalidMetadata)
		}
	}
	return m.checkAcyclic()
}

func (m *MetadataSet) validateBindings() error {
	seen := map[string]string{}
	for _, d := range m.Datasets {
		if d.Source.IsZero() {
			continue
		}
		key := d.Source.OrganizationCode + "\x00" + d.Source.QueryCode + "\x00" + canonicalParams(d.Source.Params)
		if other, dup := seen[key]; dup {
			return fmt.Errorf("%w: datasets %s and %s share source %s/%s",
				ErrInvalidMetadata, other, d.DatasetCode, d.Source.OrganizationCode, d.Source.QueryCode)
		}
		seen[key] = d.DatasetCode
	}
	return nil
}

func canonicalParams(p map[string]string) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + p[k] + ";")
	}
	return b.String()
}

// edges returns parent -> children over all levels.
func (m *MetadataSet) edges() map[string][]string {
	g := map[string][]string{}
	add := func(from string, to ...string) {
		g[from] = append(g[from], to...)
	}
	for _, p := range m.Pillars {
		add(p.PillarCode, p.CategoryCodes...)
	}
	for _, c := range m.Categories {
		add(c.CategoryCode, c.IndicatorCodes...)
		if c.PillarCode != "" {
			add(c.PillarCode, c.CategoryCode)
		}
	}
	for _, i := range m.Indicators {
		add(i.IndicatorCode, i.IntermediateCodes...)
		add(i.IndicatorCode, i.DatasetCodes...)
		if i.CategoryCode != "" {
			add(i.CategoryCode, i.IndicatorCode)
		}
	}
	for _, im := range m.Intermediates {
		if im.DatasetCode != "" {
			add(im.IntermediateCode, im.DatasetCode)
		}
	}
	return g
}

func (m *MetadataSet) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	g := m.edges()
	state := map[string]int{}

	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var visit func(n string, path []string) error
	visit = func(n string, path []string) error {
		switch state[n] {
		case grey:
			return fmt.Errorf("%w: %s", ErrMetadataCycle, strings.Join(append(path, n), " -> "))
		case black:
			return nil
		}
		state[n] = grey
		for _, child := range g[n] {
			if child == "" {
				continue
			}
			if err := visit(child, append(path, n)); err != nil {
				return err
			}
		}
		state[n] = black
		return nil
	}
	for _, n := range nodes {
		if err := visit(n, nil); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
