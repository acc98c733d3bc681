// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/imgfx/pkg/types"
)

// Layout is the memory order a network expects for one input sample.
type Layout string

const (
	// LayoutNHWC is channels-last (Keras/TensorFlow exports).
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is channels-first (PyTorch exports).
	LayoutNCHW Layout = "nchw"
)

// Network runs a truncated, pretrained classification network. Shapes are
// per sample; the leading batch dimension is implied by BatchSize.
type Network interface {
	// InputShape is one sample's input shape in the network's layout.
	InputShape() []int

	// OutputShape is one sample's output shape.
	OutputShape() []int

	// Layout reports whether InputShape is channels-last or channels-first.
	Layout() Layout

	// BatchSize is the fixed number of samples per Run call.
	BatchSize() int

	// Run executes one forward pass. input holds exactly BatchSize samples
	// and the result holds BatchSize outputs.
	Run(input []float32) ([]float32, error)

	// Close releases runtime resources.
	Close() error
}

// Normalizer is implemented by networks that know which input
// normalization they were trained with.
type Normalizer interface {
	Normalization() types.Normalization
}

// Metadata is the sidecar that accompanies an exported model. It may be
// written as YAML or JSON.
type Metadata struct {
	// Name is a human-readable model name (e.g. "InceptionV3").
	Name string `json:"name" yaml:"name"`

	// InputName and OutputName are the graph tensor names.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`

	// InputShape and OutputShape are per-sample shapes.
	InputShape  []int `json:"input_shape" yaml:"input_shape"`
	OutputShape []int `json:"output_shape" yaml:"output_shape"`

	// Layout is "nhwc" (default) or "nchw".
	Layout Layout `json:"layout" yaml:"layout"`

	// Normalization is the input transform the network was trained with.
	Normalization types.Normalization `json:"normalization" yaml:"normalization"`
}

// LoadMetadata reads and validates a model metadata sidecar.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading model metadata: %w", err)
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parsing model metadata %s: %w", path, err)
	}

	meta.Layout = Layout(strings.ToLower(string(meta.Layout)))
	if meta.Layout == "" {
		meta.Layout = LayoutNHWC
	}
	if meta.Normalization == "" {
		meta.Normalization = types.NormalizeCaffe
	}

	if err := meta.validate(); err != nil {
		return Metadata{}, fmt.Errorf("model metadata %s: %w", path, err)
	}
	return meta, nil
}

func (m Metadata) validate() error {
	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("input_name and output_name are required")
	}
	if len(m.InputShape) != 3 {
		return fmt.Errorf("input_shape must have 3 dimensions, got %v", m.InputShape)
	}
	if len(m.OutputShape) == 0 {
		return fmt.Errorf("output_shape is required")
	}
	for _, d := range append(append([]int{}, m.InputShape...), m.OutputShape...) {
		if d <= 0 {
			return fmt.Errorf("shapes must be fully specified, got input %v output %v", m.InputShape, m.OutputShape)
		}
	}
	switch m.Layout {
	case LayoutNHWC, LayoutNCHW:
	default:
		return fmt.Errorf("unknown layout %q", m.Layout)
	}
	if !m.Normalization.Valid() {
		return fmt.Errorf("unknown normalization %q", m.Normalization)
	}
	return nil
}

// numel returns the product of dims.
func numel(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
