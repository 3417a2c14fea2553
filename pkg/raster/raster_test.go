package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestWriteOpenFloat32 verifies that a written float32 raster reads back
// with identical dimensions, values and geo metadata.
func TestWriteOpenFloat32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene")
	geo := Geo{
		MapInfo:    "UTM, 1, 1, 500000, 4000000, 10, 10, 33, North, WGS-84",
		Projection: "PROJCS[\"WGS 84 / UTM zone 33N\"]",
	}
	bands := [][]float64{
		{1, 2, 3, 4, 5, 6},
		{0.5, -1.25, 0, 100, 7, 8},
	}

	if err := WriteFloat32(path, 3, 2, bands, geo); err != nil {
		t.Fatalf("WriteFloat32 failed: %v", err)
	}

	ds, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ds.Cols != 3 || ds.Rows != 2 || ds.Bands != 2 {
		t.Errorf("Expected 3x2x2 raster, got %dx%dx%d", ds.Cols, ds.Rows, ds.Bands)
	}
	if ds.Type != Float32 {
		t.Errorf("Expected data type %d, got %d", Float32, ds.Type)
	}
	if ds.Geo.MapInfo != geo.MapInfo {
		t.Errorf("Expected map info %q, got %q", geo.MapInfo, ds.Geo.MapInfo)
	}
	if ds.Geo.Projection != geo.Projection {
		t.Errorf("Expected projection %q, got %q", geo.Projection, ds.Geo.Projection)
	}
	for b := range bands {
		plane := ds.Band(b)
		for i, want := range bands[b] {
			if plane[i] != want {
				t.Errorf("Band %d pixel %d: expected %g, got %g", b, i, want, plane[i])
			}
		}
	}
}

// TestWriteOpenFloat64 verifies that the 64-bit float path preserves values
// that have no exact float32 representation.
func TestWriteOpenFloat64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene64")
	bands := [][]float64{{math.Pi, 1e-300, -math.Sqrt2, 0}}

	if err := WriteFloat64(path, 2, 2, bands, Geo{}); err != nil {
		t.Fatalf("WriteFloat64 failed: %v", err)
	}

	ds, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ds.Type != Float64 {
		t.Errorf("Expected data type %d, got %d", Float64, ds.Type)
	}
	for i, want := range bands[0] {
		if ds.Band(0)[i] != want {
			t.Errorf("Pixel %d: expected %g, got %g", i, want, ds.Band(0)[i])
		}
	}
}

// TestWriteOpenUint8 verifies the 8-bit output path used for change maps.
func TestWriteOpenUint8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmap")
	bands := [][]uint8{
		{0, 1, 2, 255},
		{255, 0, 0, 3},
	}

	if err := WriteUint8(path, 2, 2, bands, Geo{}); err != nil {
		t.Fatalf("WriteUint8 failed: %v", err)
	}

	ds, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if ds.Type != Byte {
		t.Errorf("Expected data type %d, got %d", Byte, ds.Type)
	}
	for b := range bands {
		plane := ds.Band(b)
		for i, want := range bands[b] {
			if plane[i] != float64(want) {
				t.Errorf("Band %d pixel %d: expected %d, got %g", b, i, want, plane[i])
			}
		}
	}
}

// TestOpenMissing verifies that a missing raster is reported as an error
// rather than a panic or empty dataset.
func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Errorf("Expected an error opening a missing raster")
	}
}

// TestOpenTruncated verifies that a data file shorter than the header
// promises is rejected.
func TestOpenTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")
	if err := WriteFloat32(path, 4, 4, [][]float64{make([]float64, 16)}, Geo{}); err != nil {
		t.Fatalf("WriteFloat32 failed: %v", err)
	}
	if err := os.Truncate(path, 10); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Errorf("Expected an error opening a truncated raster")
	}
}

// TestWriteBandSizeMismatch verifies that malformed planes are rejected
// before anything is written.
func TestWriteBandSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad")
	if err := WriteUint8(path, 2, 2, [][]uint8{{1, 2, 3}}, Geo{}); err == nil {
		t.Errorf("Expected an error for a mis-sized band plane")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no data file after a rejected write")
	}
}
