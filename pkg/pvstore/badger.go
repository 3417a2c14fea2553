package pvstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a disk-backed Store built on BadgerDB. It keeps the p-value
// matrix out of working memory, which matters for full satellite scenes
// with many acquisitions where the populate phase produces O(k^2) planes.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens a disk-backed store rooted at dir. The directory is
// created if it does not exist.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(false).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open p-value store at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

// OpenBadgerInMemory opens a store with no disk persistence. Intended for
// tests and small scenes.
func OpenBadgerInMemory() (*Badger, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory p-value store: %w", err)
	}
	return &Badger{db: db}, nil
}

// key builds the store key for entry (ell, j).
func key(ell, j int) []byte {
	return []byte(fmt.Sprintf("pv/%d/%d", ell, j))
}

// Put encodes the plane little-endian and writes it in one transaction.
func (s *Badger) Put(ell, j int, pv []float64) error {
	buf := make([]byte, 8*len(pv))
	for i, v := range pv {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(ell, j), buf)
	})
	if err != nil {
		return fmt.Errorf("failed to store p-value entry (%d,%d): %w", ell, j, err)
	}
	return nil
}

// Get reads and decodes the plane for (ell, j).
func (s *Badger) Get(ell, j int) ([]float64, error) {
	var pv []float64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(ell, j))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			pv = make([]float64, len(val)/8)
			for i := range pv {
				pv[i] = math.Float64frombits(binary.LittleEndian.Uint64(val[8*i:]))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("no p-value entry for (%d,%d): %w", ell, j, err)
	}
	return pv, nil
}

// Close closes the underlying database.
func (s *Badger) Close() error {
	return s.db.Close()
}
