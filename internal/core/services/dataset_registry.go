package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// Ensure DatasetRegistry implements the interface.
var _ driven.DatasetRegistrar = (*DatasetRegistry)(nil)

// DatasetRegistry maps dataset codes to their collector and cleaner.
// Registration happens explicitly at start-up.
type DatasetRegistry struct {
	mu       sync.RWMutex
	adapters map[string]driven.DatasetAdapter
}

// NewDatasetRegistry creates an empty registry.
func NewDatasetRegistry() *DatasetRegistry {
	return &DatasetRegistry{adapters: make(map[string]driven.DatasetAdapter)}
}

// Register binds code to adapter. Codes may only be registered once.
func (r *DatasetRegistry) Register(code string, adapter driven.DatasetAdapter) error {
	if code == "" || adapter.Collector == nil || adapter.Cleaner == nil {
		return fmt.Errorf("%w: dataset %q needs a collector and a cleaner", domain.ErrInvalidInput, code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[code]; ok {
		return fmt.Errorf("%w: dataset %s", domain.ErrAlreadyRegistered, code)
	}
	r.adapters[code] = adapter
	return nil
}

// Lookup returns the adapter of code.
func (r *DatasetRegistry) Lookup(code string) (driven.DatasetAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	if !ok {
		return driven.DatasetAdapter{}, errkind.Configuration.Wrap(fmt.Errorf("%w: %s", domain.ErrUnknownDataset, code))
	}
	return a, nil
}

// Codes returns every registered code, sorted.
func (r *DatasetRegistry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
