// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const gzExt = ".gz"

// compressFile writes a gzip copy of src to src+".gz" and returns its path.
// src is left in place.
func compressFile(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dest := src + gzExt
	err = atomicWrite(dest, func(tmp string) error {
		return createFile(tmp, func(f *os.File) error {
			gz, err := gzip.NewWriterLevel(f, gzip.BestCompression)
			if err != nil {
				return err
			}
			gz.Name = filepath.Base(src)
			if _, err := io.Copy(gz, in); err != nil {
				gz.Close()
				return err
			}
			return gz.Close()
		})
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// decompressToTemp expands a gzip file into a temporary file carrying the
// given extension and returns its path. The caller removes it.
func decompressToTemp(src, ext string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	out, err := os.CreateTemp("", "imgfx-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("decompressing %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
