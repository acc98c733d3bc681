// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/pdiddy/imgfx/internal/extractor"
	"github.com/pdiddy/imgfx/internal/writer"
	"github.com/pdiddy/imgfx/pkg/types"
)

// constNetwork returns ones for every output value.
type constNetwork struct {
	in, out []int
	closed  bool
}

func (c *constNetwork) InputShape() []int        { return c.in }
func (c *constNetwork) OutputShape() []int       { return c.out }
func (c *constNetwork) Layout() extractor.Layout { return extractor.LayoutNHWC }
func (c *constNetwork) BatchSize() int           { return 2 }
func (c *constNetwork) Close() error             { c.closed = true; return nil }

func (c *constNetwork) Run(input []float32) ([]float32, error) {
	n := 2
	for _, d := range c.out {
		n *= d
	}
	res := make([]float32, n)
	for i := range res {
		res[i] = 1
	}
	return res, nil
}

func testViper(t *testing.T, set map[string]string) *viper.Viper {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addModelFlags(cmd)
	addExtractFlags(cmd)
	cmd.Flags().AddFlagSet(cmd.PersistentFlags())
	for k, v := range set {
		require.NoError(t, cmd.Flags().Set(k, v), k)
	}
	v := viper.New()
	require.NoError(t, v.BindPFlags(cmd.PersistentFlags()))
	require.NoError(t, v.BindPFlags(cmd.Flags()))
	v.SetEnvPrefix("IMGFX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func writePNG(t *testing.T, path string, size int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.RGBA{A: 255})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRunConfigDefaults(t *testing.T) {
	cfg := runConfig(testViper(t, nil), nil)
	want := types.NewRunConfig()
	want.Model.CacheDir = cfg.Model.CacheDir

	assert.Equal(t, want, cfg)
	_, err := cfg.Validate()
	assert.NoError(t, err)
}

func TestRunConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("IMGFX_PATCH_SIZE", "128")
	t.Setenv("IMGFX_NORMALIZE", "torch")

	v := testViper(t, map[string]string{
		"mode":        "single",
		"format":      "csv",
		"compress":    "true",
		"max-patches": "10",
		"seed":        "42",
		"batch-size":  "8",
	})
	cfg := runConfig(v, []string{"scan.png"})

	assert.Equal(t, "scan.png", cfg.Loader.ImagePath)
	assert.Equal(t, types.ModeSingle, cfg.Loader.Mode)
	assert.Equal(t, 128, cfg.Loader.PatchSize)
	assert.Equal(t, 10, cfg.Loader.MaxPatches)
	assert.Equal(t, int64(42), cfg.Loader.Seed)
	assert.Equal(t, types.FormatCSV, cfg.Output.Format)
	assert.True(t, cfg.Output.Compress)
	assert.True(t, cfg.FlattenOutput())
	assert.Equal(t, 8, cfg.Model.BatchSize)
	assert.Equal(t, types.NormalizeTorch, cfg.Model.Normalization)
}

func TestExtractWithFakeNetwork(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a1.png", "b2.png", "c3.png", "skip.jpg"} {
		writePNG(t, filepath.Join(dir, "images", name), 16)
	}
	model := filepath.Join(dir, "net.onnx")
	require.NoError(t, os.WriteFile(model, []byte("onnx"), 0o644))

	net := &constNetwork{in: []int{8, 8, 3}, out: []int{4}}
	old := openNetwork
	openNetwork = func(cfg types.ModelConfig) (extractor.Network, error) {
		assert.Equal(t, model, cfg.Path)
		return net, nil
	}
	defer func() { openNetwork = old }()

	cfg := types.NewRunConfig()
	cfg.Loader.ImagePath = filepath.Join(dir, "images")
	cfg.Loader.PatchSize = 8
	cfg.Model.Path = model
	cfg.Output.Path = filepath.Join(dir, "out", "features")
	cfg.Output.Format = types.FormatNPY

	var out bytes.Buffer
	require.NoError(t, extract(context.Background(), cfg, &out))
	assert.True(t, net.closed)

	got, err := writer.Read(cfg.Output.Path+".npy", "")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, []int(got.Shape()))
	assert.Contains(t, out.String(), "Run summary: 3 patches from 3 images")
}

func TestExtractMissingModel(t *testing.T) {
	cfg := types.NewRunConfig()
	cfg.Model.Path = filepath.Join(t.TempDir(), "absent.onnx")
	err := extract(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--model-url")
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "features")
	data := []float32{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}
	features := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking(data))
	files, err := writer.Write(features, types.OutputConfig{Path: out, Format: types.FormatNPY, Compress: true}, nil)
	require.NoError(t, err)
	_, err = writer.WriteManifest(out, types.Manifest{
		Format: types.FormatNPY, Model: "net.onnx", Normalization: types.NormalizeCaffe,
		Mode: types.ModeMulti, Rows: make([]types.PatchSource, 2),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, inspect(&buf, files[1], "", 3))
	text := buf.String()
	assert.Contains(t, text, "format: npy (gzip)")
	assert.Contains(t, text, "shape:  [2 3]")
	assert.Contains(t, text, "head:   [0.50000 1.50000 2.50000]")
	assert.Contains(t, text, "model:  net.onnx (caffe)")
	assert.Contains(t, text, "rows:   2 from multi mode")

	assert.Error(t, inspect(&buf, filepath.Join(dir, "features.txt"), "", 3))
}

func TestRootDryRun(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	old := stdout
	stdout = &out
	defer func() { stdout = old }()

	rootCmd.SetArgs([]string{"--format", "txt", "--dry-run", dir})
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "txt"`)

	rootCmd.SetArgs([]string{"--format", "npy", "--dry-run", dir})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "dry run")
	assert.Contains(t, out.String(), "img_path: "+dir)
	assert.Contains(t, out.String(), "format: npy")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	old := stdout
	stdout = &out
	defer func() { stdout = old }()

	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "imgfx dev ("+runtime.Version()+", "+runtime.GOOS+"/"+runtime.GOARCH+")\n", out.String())
}

func TestFetchModel(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		url     string
		cancel  bool
		wantErr error
		errText string
	}{
		{name: "missing url", errText: "--model-url is required"},
		{name: "cancelled", url: srv.URL + "/net.onnx", cancel: true, wantErr: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			cfg := types.ModelConfig{URL: tt.url, CacheDir: dir}
			err := fetchModel(ctx, cfg, &bytes.Buffer{})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
			assert.NoFileExists(t, filepath.Join(dir, "net.onnx"))
		})
	}
	assert.Zero(t, hits)
}
