package oecd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Message is the subset of an SDMX-JSON data message the collector reads.
// Version 2 messages carry "structures"; version 1 a single "structure".
type Message struct {
	Data struct {
		DataSets   []DataSet   `json:"dataSets"`
		Structures []Structure `json:"structures"`
		Structure  *Structure  `json:"structure"`
	} `json:"data"`
}

// DataSet maps "i:j:k" dimension index keys to [value, attributes...].
type DataSet struct {
	Observations map[string][]json.RawMessage `json:"observations"`
}

// Structure describes the observation dimensions.
type Structure struct {
	Dimensions struct {
		Observation []Dimension `json:"observation"`
	} `json:"dimensions"`
}

// Dimension is one axis of an observation key.
type Dimension struct {
	ID     string `json:"id"`
	Values []struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
	} `json:"values"`
}

// Flatten resolves every observation key into dimension values. The
// output is ordered by key so repeated collections emit the same order.
func (m *Message) Flatten() ([]Record, error) {
	var st *Structure
	switch {
	case len(m.Data.Structures) > 0:
		st = &m.Data.Structures[0]
	case m.Data.Structure != nil:
		st = m.Data.Structure
	default:
		return nil, errors.New("sdmx message without structure")
	}
	dims := st.Dimensions.Observation

	var out []Record
	for _, ds := range m.Data.DataSets {
		keys := make([]string, 0, len(ds.Observations))
		for k := range ds.Observations {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			rec, err := resolve(k, dims)
			if err != nil {
				return nil, err
			}
			if vals := ds.Observations[k]; len(vals) > 0 {
				var v any
				if err := json.Unmarshal(vals[0], &v); err != nil {
					return nil, fmt.Errorf("observation %s: %w", k, err)
				}
				rec.Value = v
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func resolve(key string, dims []Dimension) (Record, error) {
	parts := strings.Split(key, ":")
	if len(parts) != len(dims) {
		return Record{}, fmt.Errorf("observation %s: %d indices for %d dimensions", key, len(parts), len(dims))
	}
	rec := Record{Dimensions: make(map[string]string, len(dims))}
	for i, p := range parts {
		idx, err := strconv.Atoi(p)
		if err != nil || idx < 0 || idx >= len(dims[i].Values) {
			return Record{}, fmt.Errorf("observation %s: bad index %q for %s", key, p, dims[i].ID)
		}
		rec.Dimensions[dims[i].ID] = dims[i].Values[idx].ID
	}
	return rec, nil
}
