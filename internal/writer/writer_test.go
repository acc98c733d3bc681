// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/pdiddy/imgfx/pkg/types"
)

// features builds a tensor of the given shape holding 0.5, 1.5, 2.5, ...
func features(shape ...int) *tensor.Dense {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i) + 0.5
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func outputConfig(dir string, format types.OutputFormat, compress bool) types.OutputConfig {
	return types.OutputConfig{
		Path:     filepath.Join(dir, "out", "features"),
		Format:   format,
		Compress: compress,
		Dataset:  types.DefaultDataset,
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, types.FormatCSV, false)

	files, err := Write(features(3, 10), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, []string{cfg.Path + ".csv"}, files)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		fields := strings.Split(line, " ")
		require.Len(t, fields, 10)
		for _, f := range fields {
			dot := strings.IndexByte(f, '.')
			require.GreaterOrEqual(t, dot, 0, "value %q has no decimals", f)
			assert.Len(t, f[dot+1:], 5, "value %q", f)
		}
	}
	assert.True(t, strings.HasPrefix(lines[0], "0.50000 1.50000 "))
}

func TestWriteCSVCompressed(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, types.FormatCSV, true)

	files, err := Write(features(2, 3), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, []string{cfg.Path + ".csv.gz"}, files)
	assert.NoFileExists(t, cfg.Path+".csv")

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	text, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "0.50000 1.50000 2.50000\n3.50000 4.50000 5.50000\n", string(text))
}

func TestWriteCSVRejectsHigherRank(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(features(2, 2, 2), outputConfig(dir, types.FormatCSV, false), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2-D")
}

func TestWriteUnknownFormatIsNoop(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, "txt", false)

	files, err := Write(features(2, 2), cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		format   types.OutputFormat
		compress bool
		shape    []int
		want     []string
	}{
		{name: "npy 4d", format: types.FormatNPY, shape: []int{2, 3, 3, 4}, want: []string{".npy"}},
		{name: "npy gz", format: types.FormatNPY, compress: true, shape: []int{5, 7}, want: []string{".npy", ".npy.gz"}},
		{name: "hdf5 4d", format: types.FormatHDF5, shape: []int{2, 2, 2, 8}, want: []string{".hdf5"}},
		{name: "hdf5 gz", format: types.FormatHDF5, compress: true, shape: []int{3, 6}, want: []string{".hdf5", ".hdf5.gz"}},
		{name: "csv", format: types.FormatCSV, shape: []int{4, 2}, want: []string{".csv"}},
		{name: "csv gz", format: types.FormatCSV, compress: true, shape: []int{4, 2}, want: []string{".csv.gz"}},
		{name: "sqlite 4d", format: types.FormatSQLite, shape: []int{3, 1, 1, 5}, want: []string{".db"}},
		{name: "sqlite gz", format: types.FormatSQLite, compress: true, shape: []int{2, 4}, want: []string{".db", ".db.gz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := outputConfig(dir, tt.format, tt.compress)
			in := features(tt.shape...)

			files, err := Write(in, cfg, nil)
			require.NoError(t, err)
			require.Len(t, files, len(tt.want))
			for i, ext := range tt.want {
				assert.Equal(t, cfg.Path+ext, files[i])
				assert.FileExists(t, files[i])
			}

			for _, f := range files {
				got, err := Read(f, cfg.Dataset)
				require.NoError(t, err, f)
				assert.Equal(t, tt.shape, []int(got.Shape()), f)
				assert.InDeltaSlice(t, in.Data(), got.Data(), 1e-5, f)
			}
		})
	}
}

func TestWriteEveryFormat(t *testing.T) {
	dir := t.TempDir()
	for _, f := range types.OutputFormats {
		cfg := outputConfig(dir, f, false)
		cfg.Path = filepath.Join(dir, string(f))
		files, err := Write(features(2, 3), cfg, nil)
		require.NoError(t, err, f)
		assert.Len(t, files, 1, "format %s must have a writer", f)
	}
}

func TestHDF5CustomDataset(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, types.FormatHDF5, false)
	cfg.Dataset = "resnet_pool"

	files, err := Write(features(2, 4), cfg, nil)
	require.NoError(t, err)

	_, err = Read(files[0], types.DefaultDataset)
	assert.Error(t, err)
	got, err := Read(files[0], "resnet_pool")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, []int(got.Shape()))
}

func TestNPYHeader(t *testing.T) {
	for _, shape := range [][]int{{7}, {3, 10}, {5, 6, 6, 2048}} {
		h := npyHeader(shape)
		assert.Zero(t, len(h)%64, "header for %v not aligned", shape)
		assert.True(t, strings.HasPrefix(h, "\x93NUMPY\x01\x00"))
		assert.True(t, strings.HasSuffix(h, "\n"))
		assert.Contains(t, h, "'descr': '<f4'")
	}
	assert.Contains(t, npyHeader([]int{7}), "'shape': (7,)")
	assert.Contains(t, npyHeader([]int{3, 10}), "'shape': (3, 10)")
}

func TestSQLiteProvenance(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, types.FormatSQLite, false)
	rows := []types.PatchSource{{Source: "a.png"}, {Source: "b.png", X: 256, Y: 0}}

	files, err := Write(features(2, 3), cfg, rows)
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", files[0])
	require.NoError(t, err)
	defer db.Close()

	var src string
	var x int
	require.NoError(t, db.QueryRow(`SELECT source, x FROM features WHERE row = 1`).Scan(&src, &x))
	assert.Equal(t, "b.png", src)
	assert.Equal(t, 256, x)
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path       string
		want       types.OutputFormat
		compressed bool
		wantErr    bool
	}{
		{path: "f.hdf5", want: types.FormatHDF5},
		{path: "f.h5.gz", want: types.FormatHDF5, compressed: true},
		{path: "dir/f.NPY", want: types.FormatNPY},
		{path: "f.csv.gz", want: types.FormatCSV, compressed: true},
		{path: "f.db", want: types.FormatSQLite},
		{path: "f.txt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, compressed, err := FormatForPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.compressed, compressed)
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "features")
	m := types.Manifest{
		Format:        types.FormatNPY,
		Files:         []string{out + ".npy"},
		Shape:         []int{2, 2048},
		Flattened:     true,
		Mode:          types.ModeMulti,
		Model:         "models/inception.onnx",
		Normalization: types.NormalizeCaffe,
		PatchSize:     256,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Rows:          []types.PatchSource{{Source: "a1.png"}, {Source: "b2.png"}},
	}

	path, err := WriteManifest(out, m)
	require.NoError(t, err)
	assert.Equal(t, out+".yaml", path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(raw, []byte("source: a1.png")))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWrittenFilesAreWorldReadable(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, types.FormatNPY, true)

	files, err := Write(features(2, 3), cfg, nil)
	require.NoError(t, err)
	manifest, err := WriteManifest(cfg.Path, types.Manifest{Format: types.FormatNPY})
	require.NoError(t, err)

	for _, f := range append(files, manifest) {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm(), f)
	}
}

func TestCSVNonFiniteValues(t *testing.T) {
	dir := t.TempDir()
	cfg := outputConfig(dir, types.FormatCSV, false)
	data := []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1)), -0.25}
	in := tensor.New(tensor.WithShape(1, 4), tensor.WithBacking(data))

	files, err := Write(in, cfg, nil)
	require.NoError(t, err)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "nan inf -inf -0.25000\n", string(raw))

	got, err := Read(files[0], "")
	require.NoError(t, err)
	back := got.Data().([]float32)
	assert.True(t, math.IsNaN(float64(back[0])))
	assert.True(t, math.IsInf(float64(back[1]), 1))
	assert.True(t, math.IsInf(float64(back[2]), -1))
	assert.Equal(t, float32(-0.25), back[3])
}
