// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package writer persists feature tensors as HDF5, NPY, CSV, or SQLite files,
// optionally gzip-compressed, and reads them back.
package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"gorgonia.org/tensor"

	"github.com/pdiddy/imgfx/pkg/types"
)

// OutputPath returns the file Write creates for cfg. Compressed CSV is
// streamed straight to a ".csv.gz" file; the binary formats are written
// uncompressed first (see Write).
func OutputPath(cfg types.OutputConfig) string {
	path := cfg.Path + "." + cfg.Format.Extension()
	if cfg.Compress && cfg.Format == types.FormatCSV {
		path += gzExt
	}
	return path
}

// Write saves features in cfg.Format and returns the paths written. rows,
// when it has one entry per feature row, is stored alongside the vectors by
// formats that keep provenance (sqlite).
//
// Binary formats with cfg.Compress are closed before a ".gz" sibling is
// produced; the uncompressed file is kept. A format outside
// types.OutputFormats writes nothing and returns no error.
func Write(features *tensor.Dense, cfg types.OutputConfig, rows []types.PatchSource) ([]string, error) {
	data, ok := features.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("write: want float32 features, got %v", features.Dtype())
	}
	shape := []int(features.Shape())
	path := OutputPath(cfg)

	var err error
	switch cfg.Format {
	case types.FormatHDF5:
		err = writeHDF5(path, cfg.Dataset, shape, data)
	case types.FormatNPY:
		err = writeNPY(path, shape, data)
	case types.FormatCSV:
		err = writeCSV(path, shape, data, cfg.Compress)
	case types.FormatSQLite:
		err = writeSQLite(path, shape, data, rows)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	written := []string{path}
	if cfg.Compress && cfg.Format.Binary() {
		gz, err := compressFile(path)
		if err != nil {
			return written, fmt.Errorf("compressing %s: %w", path, err)
		}
		written = append(written, gz)
	}
	return written, nil
}

// atomicWrite calls fill with a temporary path next to dest and renames it
// into place once fill returns without error.
func atomicWrite(dest string, fill func(tmpPath string) error) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".imgfx-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := fill(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions on %s: %w", dest, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// createFile opens path for writing and runs fn, closing the file afterwards
// and reporting the first error.
func createFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
