// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ExtractorMode selects whether extraction runs over a directory of images
// or over patches of a single image.
type ExtractorMode string

const (
	ModeMulti  ExtractorMode = "multi"
	ModeSingle ExtractorMode = "single"
)

// OutputFormat identifies the on-disk feature format. The set is closed:
// every value in OutputFormats has exactly one writer.
type OutputFormat string

const (
	FormatHDF5   OutputFormat = "hdf5"
	FormatNPY    OutputFormat = "npy"
	FormatCSV    OutputFormat = "csv"
	FormatSQLite OutputFormat = "sqlite"
)

// OutputFormats lists every supported output format in display order.
var OutputFormats = []OutputFormat{FormatHDF5, FormatNPY, FormatCSV, FormatSQLite}

// Valid reports whether f is one of OutputFormats.
func (f OutputFormat) Valid() bool {
	for _, known := range OutputFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Extension returns the file extension (without the dot) used for f.
func (f OutputFormat) Extension() string {
	if f == FormatSQLite {
		return "db"
	}
	return string(f)
}

// Binary reports whether f is a binary container (compressed after write
// rather than streamed through gzip).
func (f OutputFormat) Binary() bool {
	return f != FormatCSV
}

// Normalization names an ImageNet input normalization scheme.
type Normalization string

const (
	// NormalizeCaffe converts RGB to BGR and subtracts the ImageNet channel
	// means without scaling.
	NormalizeCaffe Normalization = "caffe"
	// NormalizeTF scales pixels to [-1, 1].
	NormalizeTF Normalization = "tf"
	// NormalizeTorch scales to [0, 1] and standardizes per channel.
	NormalizeTorch Normalization = "torch"
)

// Valid reports whether n is a known normalization scheme.
func (n Normalization) Valid() bool {
	switch n {
	case NormalizeCaffe, NormalizeTF, NormalizeTorch:
		return true
	}
	return false
}

// Interpolation names the resampling filter used in multi mode.
type Interpolation string

const (
	InterpNearest  Interpolation = "nearest"
	InterpBilinear Interpolation = "bilinear"
	InterpBicubic  Interpolation = "bicubic"
	InterpLanczos3 Interpolation = "lanczos3"
)

// Valid reports whether i is a known interpolation filter.
func (i Interpolation) Valid() bool {
	switch i {
	case InterpNearest, InterpBilinear, InterpBicubic, InterpLanczos3:
		return true
	}
	return false
}

// Defaults applied by NewRunConfig and by the CLI flag definitions.
const (
	DefaultImagePath     = "./images"
	DefaultOutPath       = "./output/features"
	DefaultPattern       = `^[a-zA-Z]+\d+\.png$`
	DefaultPatchSize     = 256
	DefaultBatchSize     = 2
	DefaultModelPath     = "./models/inception_v3_notop.onnx"
	DefaultDataset       = "features"
	DefaultInterpolation = InterpBilinear
)

// LoaderConfig holds settings for image discovery and patch extraction.
type LoaderConfig struct {
	// ImagePath is a directory (multi mode) or an image file (single mode).
	ImagePath string `json:"img_path" yaml:"img_path"`

	// Mode selects multi (directory walk) or single (one image, patches).
	Mode ExtractorMode `json:"mode" yaml:"mode"`

	// Pattern is the regular expression matched against base file names in
	// multi mode.
	Pattern string `json:"pattern" yaml:"pattern"`

	// PatchSize is the square patch edge in pixels (default 256).
	PatchSize int `json:"patch_size" yaml:"patch_size"`

	// Stride is the grid step for single mode. Zero means PatchSize.
	Stride int `json:"stride" yaml:"stride"`

	// MaxPatches switches single mode to random sampling when positive.
	MaxPatches int `json:"max_patches" yaml:"max_patches"`

	// Seed seeds random patch sampling.
	Seed int64 `json:"seed" yaml:"seed"`

	// Interpolation is the resize filter for multi mode.
	Interpolation Interpolation `json:"interpolation" yaml:"interpolation"`
}

// ModelConfig holds settings for the pretrained feature network.
type ModelConfig struct {
	// Path is the ONNX model file.
	Path string `json:"path" yaml:"path"`

	// MetadataPath is the YAML or JSON sidecar describing tensor names and
	// shapes. Empty means Path with its extension replaced by ".yaml".
	MetadataPath string `json:"metadata_path" yaml:"metadata_path"`

	// URL, when set, is where the model is downloaded from if Path is missing.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// CacheDir receives downloaded models.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// SharedLibrary is the path to the onnxruntime shared library. Empty
	// uses the platform default.
	SharedLibrary string `json:"shared_library,omitempty" yaml:"shared_library,omitempty"`

	// BatchSize is the inference batch size (default 2).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Threads caps intra-op threads. Zero leaves the runtime default.
	Threads int `json:"threads" yaml:"threads"`

	// Normalization overrides the scheme named in the model metadata.
	Normalization Normalization `json:"normalization,omitempty" yaml:"normalization,omitempty"`
}

// MetadataFile returns the metadata sidecar path, deriving it from Path
// when MetadataPath is empty.
func (m ModelConfig) MetadataFile() string {
	if m.MetadataPath != "" {
		return m.MetadataPath
	}
	if i := strings.LastIndex(m.Path, "."); i > strings.LastIndex(m.Path, "/") {
		return m.Path[:i] + ".yaml"
	}
	return m.Path + ".yaml"
}

// OutputConfig holds settings for the feature writer.
type OutputConfig struct {
	// Path is the output path without extension (e.g. "./output/features").
	Path string `json:"out_path" yaml:"out_path"`

	// Format selects the writer.
	Format OutputFormat `json:"format" yaml:"format"`

	// Compress requests gzip output.
	Compress bool `json:"compress" yaml:"compress"`

	// Dataset names the HDF5 dataset holding the tensor.
	Dataset string `json:"dataset" yaml:"dataset"`
}

// RunConfig is the fully resolved configuration for one extraction run.
type RunConfig struct {
	Loader LoaderConfig `json:"loader" yaml:"loader"`
	Model  ModelConfig  `json:"model" yaml:"model"`
	Output OutputConfig `json:"output" yaml:"output"`

	// Flatten collapses each feature tensor to one dimension per patch.
	Flatten bool `json:"flatten" yaml:"flatten"`

	// Quiet discards progress output.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// NewRunConfig returns a RunConfig populated with defaults.
func NewRunConfig() RunConfig {
	return RunConfig{
		Loader: LoaderConfig{
			ImagePath:     DefaultImagePath,
			Mode:          ModeMulti,
			Pattern:       DefaultPattern,
			PatchSize:     DefaultPatchSize,
			Interpolation: DefaultInterpolation,
		},
		Model: ModelConfig{
			Path:      DefaultModelPath,
			BatchSize: DefaultBatchSize,
		},
		Output: OutputConfig{
			Path:    DefaultOutPath,
			Format:  FormatHDF5,
			Dataset: DefaultDataset,
		},
	}
}

// FlattenOutput reports whether features are flattened to one dimension per
// patch. Text output is always flattened.
func (c RunConfig) FlattenOutput() bool {
	return c.Flatten || c.Output.Format == FormatCSV
}

// Validate checks every field independently and returns all problems at
// once. Warnings are advisory and do not make the config invalid.
func (c RunConfig) Validate() (warnings []string, err error) {
	var errs []error

	if c.Loader.ImagePath == "" {
		errs = append(errs, errors.New("img_path must not be empty"))
	}
	switch c.Loader.Mode {
	case ModeMulti, ModeSingle:
	default:
		errs = append(errs, fmt.Errorf("unknown extractor mode %q: use multi or single", c.Loader.Mode))
	}
	if c.Loader.Mode == ModeMulti {
		if _, reErr := regexp.Compile(c.Loader.Pattern); reErr != nil {
			errs = append(errs, fmt.Errorf("invalid pattern %q: %w", c.Loader.Pattern, reErr))
		}
	}
	if c.Loader.PatchSize <= 0 {
		errs = append(errs, fmt.Errorf("patch size must be positive, got %d", c.Loader.PatchSize))
	}
	if c.Loader.Stride < 0 {
		errs = append(errs, fmt.Errorf("stride must not be negative, got %d", c.Loader.Stride))
	}
	if c.Loader.MaxPatches < 0 {
		errs = append(errs, fmt.Errorf("max patches must not be negative, got %d", c.Loader.MaxPatches))
	}
	if !c.Loader.Interpolation.Valid() {
		errs = append(errs, fmt.Errorf("unknown interpolation %q", c.Loader.Interpolation))
	}

	if c.Model.Path == "" {
		errs = append(errs, errors.New("model path must not be empty"))
	}
	if c.Model.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.Model.BatchSize))
	}
	if c.Model.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative, got %d", c.Model.Threads))
	}
	if c.Model.Normalization != "" && !c.Model.Normalization.Valid() {
		errs = append(errs, fmt.Errorf("unknown normalization %q: use caffe, tf, or torch", c.Model.Normalization))
	}

	if c.Output.Path == "" {
		errs = append(errs, errors.New("output path must not be empty"))
	}
	if !c.Output.Format.Valid() {
		errs = append(errs, fmt.Errorf("unsupported format %q: use %s", c.Output.Format, formatList()))
	}
	if c.Output.Format == FormatHDF5 {
		if c.Output.Dataset == "" || strings.Contains(c.Output.Dataset, "/") {
			errs = append(errs, fmt.Errorf("invalid dataset name %q", c.Output.Dataset))
		}
	}

	if c.Output.Compress && c.Output.Format.Valid() && c.Output.Format.Binary() {
		warnings = append(warnings, "non-text compression is experimental")
	}
	if !c.Output.Compress && c.Output.Format == FormatCSV {
		warnings = append(warnings, "non-compressed csv output is extremely large; recommend re-running with --compress")
	}

	return warnings, errors.Join(errs...)
}

func formatList() string {
	names := make([]string, len(OutputFormats))
	for i, f := range OutputFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
