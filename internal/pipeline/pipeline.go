// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one extraction: load images, normalize, extract
// features, write them, and record a manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/imgfx/internal/extractor"
	"github.com/pdiddy/imgfx/internal/loader"
	"github.com/pdiddy/imgfx/internal/writer"
	"github.com/pdiddy/imgfx/pkg/types"
)

// now is overridden in tests.
var now = time.Now

// Result summarizes a completed run.
type Result struct {
	Images   int
	Patches  int
	Shape    []int
	Files    []string
	Manifest string
	Elapsed  time.Duration
}

// Run executes the full extraction for cfg using ext, printing progress to
// w. ext is reused as is; the caller owns and closes it.
func Run(ctx context.Context, cfg types.RunConfig, ext *extractor.Extractor, w io.Writer) (Result, error) {
	start := now()
	var res Result

	patches, err := loader.Load(ctx, cfg.Loader, w)
	if err != nil {
		return res, fmt.Errorf("loading images: %w", err)
	}
	rows := provenance(patches)
	res.Patches = len(rows)
	res.Images = countSources(rows)

	batch, err := loader.Stack(patches)
	if errors.Is(err, loader.ErrEmptyBatch) {
		return res, fmt.Errorf("%w in %s", extractor.ErrNoPatches, cfg.Loader.ImagePath)
	}
	if err != nil {
		return res, fmt.Errorf("stacking patches: %w", err)
	}
	patches = nil

	norm := normalization(cfg.Model, ext.Network())
	if err := loader.Normalize(batch, norm); err != nil {
		return res, err
	}

	if !cfg.Quiet {
		ext.Progress = w
	}
	features, err := ext.Extract(ctx, batch, cfg.FlattenOutput())
	if err != nil {
		return res, fmt.Errorf("extracting features: %w", err)
	}
	res.Shape = []int(features.Shape().Clone())

	files, err := writer.Write(features, cfg.Output, rows)
	if err != nil {
		return res, err
	}
	res.Files = files
	for _, f := range files {
		fmt.Fprintf(w, "wrote: %s\n", f)
	}

	if len(files) > 0 {
		m := types.Manifest{
			Format:        cfg.Output.Format,
			Files:         files,
			Shape:         res.Shape,
			Flattened:     cfg.FlattenOutput(),
			Mode:          cfg.Loader.Mode,
			Model:         cfg.Model.Path,
			Normalization: norm,
			PatchSize:     cfg.Loader.PatchSize,
			CreatedAt:     now().UTC(),
			Rows:          rows,
		}
		if cfg.Output.Format == types.FormatHDF5 {
			m.Dataset = cfg.Output.Dataset
		}
		res.Manifest, err = writer.WriteManifest(cfg.Output.Path, m)
		if err != nil {
			return res, err
		}
		fmt.Fprintf(w, "wrote: %s\n", res.Manifest)
	}

	res.Elapsed = now().Sub(start)
	fmt.Fprintf(w, "\nRun summary: %d patches from %d images, features %v, %d files written (%s)\n",
		res.Patches, res.Images, res.Shape, len(res.Files), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// normalization picks the configured scheme, deferring to the network when
// it declares one.
func normalization(cfg types.ModelConfig, net extractor.Network) types.Normalization {
	if n, ok := net.(extractor.Normalizer); ok && n.Normalization() != "" {
		return n.Normalization()
	}
	if cfg.Normalization != "" {
		return cfg.Normalization
	}
	return types.NormalizeCaffe
}

func provenance(patches []loader.Patch) []types.PatchSource {
	rows := make([]types.PatchSource, len(patches))
	for i, p := range patches {
		rows[i] = types.PatchSource{Source: p.Source, X: p.X, Y: p.Y}
	}
	return rows
}

func countSources(rows []types.PatchSource) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Source] = struct{}{}
	}
	return len(seen)
}
