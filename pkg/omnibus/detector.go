package omnibus

import (
	"fmt"
	"runtime"
	"sync"

	"sarseq/internal/models"
	"sarseq/pkg/filter"
	"sarseq/pkg/polmat"
	"sarseq/pkg/pvstore"
)

// Params holds the detection configuration.
type Params struct {
	// Looks is the equivalent number of looks, a positive scalar supplied
	// by the preprocessing chain
	Looks float64

	// Significance is the p-value threshold below which a change is
	// declared (default 0.01)
	Significance float64

	// MedianFilter enables a 3x3 median pass over each p-value plane to
	// suppress speckle-induced false positives
	MedianFilter bool

	// NumCores bounds the number of worker goroutines used during the
	// populate phase; zero means all available cores
	NumCores int

	// Verbose enables per-entry progress output
	Verbose bool
}

// Detector drives the two phases of sequential change detection: populating
// the p-value matrix (parallel, entries independent) and synthesizing the
// change maps from it (sequential traversal).
type Detector struct {
	params Params
	stack  []*polmat.Matrix
	store  pvstore.Store
	cols   int
	rows   int
}

// NewDetector validates the stack and returns a detector writing p-value
// planes to the given store. All stack members must share spatial
// dimensions and matrix dimension, and the stack must hold at least two
// acquisitions.
func NewDetector(params Params, stack []*polmat.Matrix, store pvstore.Store) (*Detector, error) {
	if len(stack) < 2 {
		return nil, fmt.Errorf("need at least 2 acquisitions, got %d", len(stack))
	}
	if params.Looks <= 0 {
		return nil, fmt.Errorf("equivalent number of looks must be positive, got %g", params.Looks)
	}
	if params.Significance <= 0 || params.Significance >= 1 {
		return nil, fmt.Errorf("significance must be in (0,1), got %g", params.Significance)
	}
	first := stack[0]
	for i, m := range stack[1:] {
		if m.Cols != first.Cols || m.Rows != first.Rows || m.Dim != first.Dim {
			return nil, fmt.Errorf("acquisition %d has shape %dx%d dim %d, expected %dx%d dim %d",
				i+1, m.Cols, m.Rows, m.Dim, first.Cols, first.Rows, first.Dim)
		}
	}
	if params.NumCores <= 0 {
		params.NumCores = runtime.NumCPU()
	}
	return &Detector{
		params: params,
		stack:  stack,
		store:  store,
		cols:   first.Cols,
		rows:   first.Rows,
	}, nil
}

// Run executes both phases and returns the change maps.
func (d *Detector) Run() (*models.ChangeMaps, error) {
	if err := d.Populate(); err != nil {
		return nil, err
	}
	return d.Synthesize()
}

// entryResult carries one computed p-value plane back to the collector.
type entryResult struct {
	ell, j int
	pv     []float64
}

// Populate computes every entry (ell, j), 0 <= ell <= j <= k-2, of the
// p-value matrix. Entries are independent, so they are fanned out to a
// bounded pool of workers; the collector goroutine is the store's single
// writer. The optional median filter is applied per entry before storing.
func (d *Detector) Populate() error {
	k := len(d.stack)
	engine := &Engine{Looks: d.params.Looks, Dim: d.stack[0].Dim}

	type task struct{ ell, j int }
	tasks := make([]task, 0, (k-1)*k/2)
	for ell := 0; ell < k-1; ell++ {
		for j := ell; j < k-1; j++ {
			tasks = append(tasks, task{ell, j})
		}
	}

	taskCh := make(chan task)
	resultCh := make(chan entryResult)

	workers := d.params.NumCores
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				pv := engine.PValues(d.stack, t.ell, t.j)
				if d.params.MedianFilter {
					pv = filter.Median3x3(pv, d.cols, d.rows)
				}
				resultCh <- entryResult{ell: t.ell, j: t.j, pv: pv}
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			taskCh <- t
		}
		close(taskCh)
		wg.Wait()
		close(resultCh)
	}()

	// Collect and store results; the collector is the only writer. On a
	// store failure the channel must still be drained, otherwise the feeder
	// and workers stay blocked on their unbuffered sends.
	done := 0
	var firstErr error
	for res := range resultCh {
		if firstErr != nil {
			continue
		}
		if err := d.store.Put(res.ell, res.j, res.pv); err != nil {
			firstErr = fmt.Errorf("failed to store p-value entry: %w", err)
			continue
		}
		done++
		if d.params.Verbose {
			fmt.Printf("\rPre-calculating p-values: %d/%d entries", done, len(tasks))
		}
	}
	if d.params.Verbose {
		fmt.Println()
	}
	return firstErr
}
