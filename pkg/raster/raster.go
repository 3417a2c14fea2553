// Package raster reads and writes multi-band imagery in the ENVI flat-binary
// layout: a raw band-sequential (BSQ) data file accompanied by a small text
// header describing dimensions, sample type and georeferencing. Geospatial
// metadata is carried as opaque strings and propagated from input to output
// without interpretation.
package raster

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// DataType identifies the per-sample encoding of a raster, using the ENVI
// data type codes.
type DataType int

const (
	// Byte is an 8-bit unsigned sample (ENVI type 1)
	Byte DataType = 1

	// Float32 is a 32-bit IEEE float sample (ENVI type 4)
	Float32 DataType = 4

	// Float64 is a 64-bit IEEE float sample (ENVI type 5)
	Float64 DataType = 5
)

// size returns the number of bytes per sample for the data type.
func (t DataType) size() int {
	switch t {
	case Byte:
		return 1
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Geo carries the georeferencing metadata of a raster. Both fields are
// opaque strings in the source header's own syntax; they are copied from
// input to output verbatim.
type Geo struct {
	// MapInfo is the ENVI "map info" entry (tie point, pixel size, datum)
	MapInfo string

	// Projection is the ENVI "coordinate system string" entry
	Projection string
}

// Dataset is an opened raster with all band planes decoded to float64.
type Dataset struct {
	// Path is the location of the raw data file
	Path string

	// Cols, Rows and Bands are the raster dimensions
	Cols, Rows, Bands int

	// Type is the on-disk sample encoding
	Type DataType

	// Geo is the georeferencing metadata from the header
	Geo Geo

	// bands holds one cols*rows plane per band, in band order
	bands [][]float64
}

// Open reads the header and raw data file for the raster at path. The
// header is expected at path+".hdr"; the raw file is band-sequential,
// little-endian. All bands are decoded into float64 planes.
func Open(path string) (*Dataset, error) {
	ds, err := openHeader(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster data %s: %w", path, err)
	}

	npix := ds.Cols * ds.Rows
	want := npix * ds.Bands * ds.Type.size()
	if len(raw) < want {
		return nil, fmt.Errorf("raster %s truncated: have %d bytes, need %d", path, len(raw), want)
	}

	ds.bands = make([][]float64, ds.Bands)
	for b := 0; b < ds.Bands; b++ {
		plane := make([]float64, npix)
		off := b * npix * ds.Type.size()
		switch ds.Type {
		case Byte:
			for i := 0; i < npix; i++ {
				plane[i] = float64(raw[off+i])
			}
		case Float32:
			for i := 0; i < npix; i++ {
				bits := binary.LittleEndian.Uint32(raw[off+4*i:])
				plane[i] = float64(math.Float32frombits(bits))
			}
		case Float64:
			for i := 0; i < npix; i++ {
				bits := binary.LittleEndian.Uint64(raw[off+8*i:])
				plane[i] = math.Float64frombits(bits)
			}
		}
		ds.bands[b] = plane
	}

	return ds, nil
}

// openHeader parses the ENVI text header for path without touching the raw
// data file.
func openHeader(path string) (*Dataset, error) {
	f, err := os.Open(path + ".hdr")
	if err != nil {
		return nil, fmt.Errorf("failed to read raster header for %s: %w", path, err)
	}
	defer f.Close()

	ds := &Dataset{Path: path, Type: Float32}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)
		// Brace-wrapped values may span multiple lines
		if strings.HasPrefix(value, "{") && !strings.HasSuffix(value, "}") {
			for scanner.Scan() {
				value += " " + strings.TrimSpace(scanner.Text())
				if strings.HasSuffix(value, "}") {
					break
				}
			}
		}

		switch key {
		case "samples":
			ds.Cols, err = strconv.Atoi(value)
		case "lines":
			ds.Rows, err = strconv.Atoi(value)
		case "bands":
			ds.Bands, err = strconv.Atoi(value)
		case "data type":
			var t int
			t, err = strconv.Atoi(value)
			ds.Type = DataType(t)
		case "map info":
			ds.Geo.MapInfo = strings.Trim(value, "{} ")
		case "coordinate system string":
			ds.Geo.Projection = strings.Trim(value, "{} ")
		}
		if err != nil {
			return nil, fmt.Errorf("malformed header entry %q in %s.hdr: %w", line, path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raster header for %s: %w", path, err)
	}

	if ds.Cols <= 0 || ds.Rows <= 0 || ds.Bands <= 0 {
		return nil, fmt.Errorf("raster header %s.hdr missing dimensions", path)
	}
	if ds.Type.size() == 0 {
		return nil, fmt.Errorf("raster header %s.hdr has unsupported data type %d", path, ds.Type)
	}

	return ds, nil
}

// Band returns the plane of band b (0-based) as a cols*rows float64 slice
// in row-major order. The returned slice aliases the dataset's storage.
func (d *Dataset) Band(b int) []float64 {
	return d.bands[b]
}

// WriteUint8 writes a multi-band 8-bit raster at path with the given geo
// metadata. Each band is a cols*rows plane in row-major order. The raw file
// is fully assembled in memory before anything is written, so a failure
// here cannot leave a partially written data file behind an intact header.
func WriteUint8(path string, cols, rows int, bands [][]uint8, geo Geo) error {
	var buf bytes.Buffer
	buf.Grow(cols * rows * len(bands))
	for _, plane := range bands {
		if len(plane) != cols*rows {
			return fmt.Errorf("band plane has %d samples, expected %d", len(plane), cols*rows)
		}
		buf.Write(plane)
	}
	return writeRaw(path, cols, rows, len(bands), Byte, buf.Bytes(), geo)
}

// WriteFloat32 writes a multi-band 32-bit float raster at path with the
// given geo metadata. Values are truncated from float64 planes.
func WriteFloat32(path string, cols, rows int, bands [][]float64, geo Geo) error {
	var buf bytes.Buffer
	buf.Grow(cols * rows * len(bands) * 4)
	scratch := make([]byte, 4)
	for _, plane := range bands {
		if len(plane) != cols*rows {
			return fmt.Errorf("band plane has %d samples, expected %d", len(plane), cols*rows)
		}
		for _, v := range plane {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(float32(v)))
			buf.Write(scratch)
		}
	}
	return writeRaw(path, cols, rows, len(bands), Float32, buf.Bytes(), geo)
}

// WriteFloat64 writes a multi-band 64-bit float raster at path with the
// given geo metadata.
func WriteFloat64(path string, cols, rows int, bands [][]float64, geo Geo) error {
	var buf bytes.Buffer
	buf.Grow(cols * rows * len(bands) * 8)
	scratch := make([]byte, 8)
	for _, plane := range bands {
		if len(plane) != cols*rows {
			return fmt.Errorf("band plane has %d samples, expected %d", len(plane), cols*rows)
		}
		for _, v := range plane {
			binary.LittleEndian.PutUint64(scratch, math.Float64bits(v))
			buf.Write(scratch)
		}
	}
	return writeRaw(path, cols, rows, len(bands), Float64, buf.Bytes(), geo)
}

// writeRaw persists the assembled raw data followed by its header. The
// header is written last so that a header on disk always describes a
// complete data file.
func writeRaw(path string, cols, rows, bands int, t DataType, raw []byte, geo Geo) error {
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write raster data %s: %w", path, err)
	}

	var hdr strings.Builder
	hdr.WriteString("ENVI\n")
	fmt.Fprintf(&hdr, "samples = %d\n", cols)
	fmt.Fprintf(&hdr, "lines = %d\n", rows)
	fmt.Fprintf(&hdr, "bands = %d\n", bands)
	hdr.WriteString("header offset = 0\n")
	hdr.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&hdr, "data type = %d\n", t)
	hdr.WriteString("interleave = bsq\n")
	hdr.WriteString("byte order = 0\n")
	if geo.MapInfo != "" {
		fmt.Fprintf(&hdr, "map info = {%s}\n", geo.MapInfo)
	}
	if geo.Projection != "" {
		fmt.Fprintf(&hdr, "coordinate system string = {%s}\n", geo.Projection)
	}

	if err := os.WriteFile(path+".hdr", []byte(hdr.String()), 0644); err != nil {
		return fmt.Errorf("failed to write raster header %s.hdr: %w", path, err)
	}
	return nil
}
