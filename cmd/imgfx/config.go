// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/imgfx/internal/weights"
	"github.com/pdiddy/imgfx/pkg/types"
)

// addModelFlags registers the network flags shared by extraction and
// fetch-model.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("model", types.DefaultModelPath, "ONNX feature network (classification head removed)")
	f.String("model-meta", "", "model metadata YAML/JSON (default: --model with .yaml extension)")
	f.String("model-url", "", "download URL used when --model is missing")
	f.String("cache-dir", weights.DefaultCacheDir(), "directory for downloaded models")
	f.String("ort-lib", "", "path to the onnxruntime shared library")
	f.Int("batch-size", types.DefaultBatchSize, "inference batch size")
	f.Int("threads", 0, "intra-op threads (0: runtime default)")
	f.String("normalize", "", "input normalization: caffe, tf, or torch (default: from model metadata)")
}

// addExtractFlags registers the loader and writer flags of the root command.
func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("mode", string(types.ModeMulti), "extractor mode: multi (directory) or single (one image, patches)")
	f.String("pattern", types.DefaultPattern, "file name pattern for multi mode")
	f.Int("patch-size", types.DefaultPatchSize, "square patch edge in pixels")
	f.Int("stride", 0, "single mode grid step (0: patch size, 1: every position)")
	f.Int("max-patches", 0, "single mode: sample this many random patches instead of a grid")
	f.Int64("seed", 0, "seed for random patch sampling")
	f.String("interpolation", string(types.DefaultInterpolation), "multi mode resize filter: nearest, bilinear, bicubic, lanczos3")

	f.String("out", types.DefaultOutPath, "output path without extension")
	f.String("format", string(types.FormatHDF5), "output format: hdf5, npy, csv, or sqlite")
	f.Bool("compress", false, "gzip the output")
	f.Bool("flatten", false, "flatten each patch's features to one dimension")
	f.String("dataset", types.DefaultDataset, "HDF5 dataset name")
	f.Bool("quiet", false, "suppress progress output")
	f.Bool("dry-run", false, "validate configuration and exit without extracting")
}

// modelConfig reads the network settings from v.
func modelConfig(v *viper.Viper) types.ModelConfig {
	return types.ModelConfig{
		Path:          v.GetString("model"),
		MetadataPath:  v.GetString("model-meta"),
		URL:           v.GetString("model-url"),
		CacheDir:      v.GetString("cache-dir"),
		SharedLibrary: v.GetString("ort-lib"),
		BatchSize:     v.GetInt("batch-size"),
		Threads:       v.GetInt("threads"),
		Normalization: types.Normalization(v.GetString("normalize")),
	}
}

// runConfig resolves a RunConfig from v (flags, config file, environment)
// and the optional img_path argument.
func runConfig(v *viper.Viper, args []string) types.RunConfig {
	cfg := types.NewRunConfig()
	if len(args) > 0 {
		cfg.Loader.ImagePath = args[0]
	} else if p := v.GetString("img_path"); p != "" {
		cfg.Loader.ImagePath = p
	}

	cfg.Loader.Mode = types.ExtractorMode(v.GetString("mode"))
	cfg.Loader.Pattern = v.GetString("pattern")
	cfg.Loader.PatchSize = v.GetInt("patch-size")
	cfg.Loader.Stride = v.GetInt("stride")
	cfg.Loader.MaxPatches = v.GetInt("max-patches")
	cfg.Loader.Seed = v.GetInt64("seed")
	cfg.Loader.Interpolation = types.Interpolation(v.GetString("interpolation"))

	cfg.Model = modelConfig(v)

	cfg.Output.Path = v.GetString("out")
	cfg.Output.Format = types.OutputFormat(v.GetString("format"))
	cfg.Output.Compress = v.GetBool("compress")
	cfg.Output.Dataset = v.GetString("dataset")

	cfg.Flatten = v.GetBool("flatten")
	cfg.Quiet = v.GetBool("quiet")
	return cfg
}
