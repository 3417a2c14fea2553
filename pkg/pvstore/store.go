// Package pvstore stores the upper-triangular matrix of p-value rasters
// produced by the change detection engine, keyed by the (start, end) indices
// of the tested sub-sequence. Entries are written once during the populate
// phase and read back during synthesis; the choice of backing store is an
// implementation detail behind the Store interface.
package pvstore

import "fmt"

// Store is a key-value store for p-value rasters. Put is called by a single
// writer per entry during population; Get may be called freely once the
// populate phase has completed.
type Store interface {
	// Put records the p-value plane for entry (ell, j).
	Put(ell, j int, pv []float64) error

	// Get retrieves the p-value plane for entry (ell, j).
	Get(ell, j int) ([]float64, error)

	// Close releases any resources held by the backing store.
	Close() error
}

// Memory is an in-memory Store suitable for scenes whose k^2/2 full
// resolution rasters fit comfortably in RAM.
type Memory struct {
	entries map[[2]int][]float64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[[2]int][]float64)}
}

// Put records the plane for (ell, j), keeping its own copy.
func (m *Memory) Put(ell, j int, pv []float64) error {
	m.entries[[2]int{ell, j}] = append([]float64(nil), pv...)
	return nil
}

// Get retrieves the plane for (ell, j).
func (m *Memory) Get(ell, j int) ([]float64, error) {
	pv, ok := m.entries[[2]int{ell, j}]
	if !ok {
		return nil, fmt.Errorf("no p-value entry for (%d,%d)", ell, j)
	}
	return pv, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
