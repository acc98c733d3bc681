// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gorgonia.org/tensor"

	"github.com/pdiddy/imgfx/pkg/types"
)

// ErrUnknownFormat is returned for feature files whose extension names no
// supported format.
var ErrUnknownFormat = errors.New("unknown feature format")

// FormatForPath reports the output format a file name carries and whether it
// is gzip-compressed.
func FormatForPath(path string) (types.OutputFormat, bool, error) {
	name := strings.ToLower(path)
	compressed := strings.HasSuffix(name, gzExt)
	name = strings.TrimSuffix(name, gzExt)

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, f := range types.OutputFormats {
		if f.Extension() == ext {
			return f, compressed, nil
		}
	}
	if ext == "h5" {
		return types.FormatHDF5, compressed, nil
	}
	return "", compressed, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Read loads a feature file written by Write, including its ".gz" variants.
// dataset names the HDF5 dataset and is ignored by the other formats.
func Read(path, dataset string) (*tensor.Dense, error) {
	format, compressed, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	if dataset == "" {
		dataset = types.DefaultDataset
	}

	var shape []int
	var data []float32
	switch {
	case format == types.FormatCSV:
		shape, data, err = readCSVFile(path, compressed)
	case compressed:
		var tmp string
		tmp, err = decompressToTemp(path, "."+format.Extension())
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		shape, data, err = readBinary(tmp, format, dataset)
	default:
		shape, data, err = readBinary(path, format, dataset)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)), nil
}

func readBinary(path string, format types.OutputFormat, dataset string) ([]int, []float32, error) {
	switch format {
	case types.FormatHDF5:
		return readHDF5(path, dataset)
	case types.FormatNPY:
		return readNPY(path)
	case types.FormatSQLite:
		return readSQLite(path)
	}
	return nil, nil, fmt.Errorf("format %q is not binary", format)
}

func readCSVFile(path string, compressed bool) ([]int, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if !compressed {
		return readCSV(f)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()
	return readCSV(gz)
}
