package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sarseq/internal/models"
	"sarseq/pkg/config"
	"sarseq/pkg/omnibus"
	"sarseq/pkg/polmat"
	"sarseq/pkg/pvstore"
	"sarseq/pkg/raster"
	"sarseq/pkg/register"
)

func main() {
	// Parse command line arguments
	inFiles := flag.String("infiles", "", "Comma-separated input raster paths in chronological order")
	outName := flag.String("out", "sarseq_change", "Output name stem (written next to the first input)")
	looks := flag.Float64("enl", 0, "Equivalent number of looks of the input imagery")
	significance := flag.Float64("s", 0, "Significance level for change detection")
	medianFilter := flag.Bool("m", false, "Apply a 3x3 median filter to p-value maps")
	dims := flag.String("d", "", "Subset window \"x0,y0,cols,rows\" for co-registration of unaligned inputs")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: all available)")
	storeKind := flag.String("store", "", "P-value store backend: memory or disk")
	configPath := flag.String("config", "sarseq.yaml", "Optional YAML configuration file")
	flag.Parse()

	if *inFiles == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Explicit flags override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "enl":
			cfg.Processing.Looks = *looks
		case "s":
			cfg.Processing.Significance = *significance
		case "m":
			cfg.Processing.MedianFilter = *medianFilter
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "store":
			cfg.Storage.Backend = *storeKind
		}
	})

	fns := strings.Split(*inFiles, ",")
	k := len(fns)

	fmt.Println("===============================================")
	fmt.Println("     Multi-temporal SAR Change Detection")
	fmt.Println("===============================================")
	start := time.Now()

	// First (reference) image determines dimensions and polarimetric mode
	first, err := raster.Open(fns[0])
	if err != nil {
		log.Fatalf("Failed to read first input: %v", err)
	}
	p, err := polmat.DimFromBands(first.Bands)
	if err != nil {
		log.Fatalf("Unusable input %s: %v", fns[0], err)
	}

	// Co-register to a subset of the first image when requested
	if *dims != "" {
		win, err := parseWindow(*dims)
		if err != nil {
			log.Fatalf("Invalid -d window: %v", err)
		}
		fns, err = coregister(fns, win, cfg.Processing.NumCores)
		if err != nil {
			log.Fatalf("Co-registration failed: %v", err)
		}
		// Re-open the subset reference for geo propagation
		first, err = raster.Open(fns[0])
		if err != nil {
			log.Fatalf("Failed to read subset reference: %v", err)
		}
	}

	fmt.Printf("First (reference) filename: %s\n", fns[0])
	fmt.Printf("Number of images: %d\n", k)
	fmt.Printf("Polarimetric dimension: %d\n", p)
	fmt.Printf("Equivalent number of looks: %g\n", cfg.Processing.Looks)
	fmt.Printf("Significance level: %g\n", cfg.Processing.Significance)

	// Load the full stack of per-pixel matrices
	stack := make([]*polmat.Matrix, k)
	for i, fn := range fns {
		ds := first
		if i > 0 {
			if ds, err = raster.Open(fn); err != nil {
				log.Fatalf("Failed to read input: %v", err)
			}
		}
		if stack[i], err = polmat.ReadMatrix(ds); err != nil {
			log.Fatalf("Unusable input: %v", err)
		}
	}

	outDir := filepath.Dir(fns[0])
	store, err := openStore(cfg, outDir)
	if err != nil {
		log.Fatalf("Failed to open p-value store: %v", err)
	}
	defer store.Close()

	detector, err := omnibus.NewDetector(omnibus.Params{
		Looks:        cfg.Processing.Looks,
		Significance: cfg.Processing.Significance,
		MedianFilter: cfg.Processing.MedianFilter,
		NumCores:     cfg.Processing.NumCores,
		Verbose:      cfg.Output.Verbose,
	}, stack, store)
	if err != nil {
		log.Fatalf("Cannot run change detection: %v", err)
	}

	fmt.Println("Pre-calculating test statistics and p-values...")
	maps, err := detector.Run()
	if err != nil {
		log.Fatalf("Change detection failed: %v", err)
	}

	// Persist the four products next to the first input
	stem := filepath.Join(outDir, *outName)
	writeMap := func(suffix string, bands [][]uint8) string {
		path := stem + suffix
		if err := raster.WriteUint8(path, maps.Cols, maps.Rows, bands, first.Geo); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		return path
	}
	fmt.Printf("Most recent change map written to: %s\n", writeMap("_cmap", [][]uint8{maps.CMap}))
	fmt.Printf("Frequency map written to: %s\n", writeMap("_fmap", [][]uint8{maps.FMap}))
	fmt.Printf("Bitemporal map image written to: %s\n", writeMap("_bmap", maps.BMap))
	fmt.Printf("First change map written to: %s\n", writeMap("_smap", [][]uint8{maps.SMap}))

	fmt.Printf("Total elapsed time: %.2f seconds\n", time.Since(start).Seconds())
}

// coregister subsets the first image to the window and aligns all others to
// it, preferring parallel execution with a sequential fallback. Returns the
// replacement file list.
func coregister(fns []string, win models.Window, cores int) ([]string, error) {
	fmt.Println("Attempting parallel execution of co-registration...")
	regStart := time.Now()

	refPath, err := register.Subset(fns[0], win)
	if err != nil {
		return nil, err
	}

	tasks := make([]register.Task, len(fns)-1)
	for i, fn := range fns[1:] {
		tasks[i] = register.Task{Ref: refPath, Target: fn, Window: win}
	}
	warped, err := register.RegisterAll(tasks, cores)
	if err != nil {
		return nil, err
	}

	fmt.Printf("Elapsed time for co-registration: %.2f seconds\n", time.Since(regStart).Seconds())
	return append([]string{refPath}, warped...), nil
}

// openStore selects the p-value matrix backend from the configuration.
func openStore(cfg *config.Config, outDir string) (pvstore.Store, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return pvstore.NewMemory(), nil
	case "disk":
		return pvstore.OpenBadger(filepath.Join(outDir, cfg.Storage.Dir))
	}
	return nil, fmt.Errorf("unknown storage backend %q: expected memory or disk", cfg.Storage.Backend)
}

// parseWindow parses the "x0,y0,cols,rows" subset specification.
func parseWindow(s string) (models.Window, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.Window{}, fmt.Errorf("expected x0,y0,cols,rows, got %q", s)
	}
	vals := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return models.Window{}, fmt.Errorf("bad window component %q: %w", part, err)
		}
		vals[i] = v
	}
	return models.Window{X0: vals[0], Y0: vals[1], Cols: vals[2], Rows: vals[3]}, nil
}
