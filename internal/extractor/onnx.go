// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"fmt"
	"slices"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/pdiddy/imgfx/pkg/types"
)

// ONNXNetwork runs an exported headless ImageNet network (for example
// InceptionV3 with include_top=False) through ONNX Runtime. Input and output
// tensors are allocated once at BatchSize and reused by every Run.
type ONNXNetwork struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	meta         Metadata
	batchSize    int
	ownsEnv      bool
}

// OpenONNX loads the model and metadata named by cfg and prepares a session.
func OpenONNX(cfg types.ModelConfig) (*ONNXNetwork, error) {
	meta, err := LoadMetadata(cfg.MetadataFile())
	if err != nil {
		return nil, err
	}
	if cfg.Normalization != "" {
		meta.Normalization = cfg.Normalization
	}

	ownsEnv := false
	if !ort.IsInitialized() {
		if cfg.SharedLibrary != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		ownsEnv = true
	}

	n := &ONNXNetwork{meta: meta, batchSize: cfg.BatchSize, ownsEnv: ownsEnv}
	if err := n.init(cfg); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func (n *ONNXNetwork) init(cfg types.ModelConfig) error {
	inputShape := batchShape(n.batchSize, n.meta.InputShape)
	outputShape := batchShape(n.batchSize, n.meta.OutputShape)

	var err error
	n.inputTensor, err = ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	n.outputTensor, err = ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	var options *ort.SessionOptions
	if cfg.Threads > 0 {
		options, err = ort.NewSessionOptions()
		if err != nil {
			return fmt.Errorf("failed to create session options: %w", err)
		}
		defer options.Destroy()
		if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return fmt.Errorf("setting intra-op threads: %w", err)
		}
	}

	n.session, err = ort.NewAdvancedSession(cfg.Path,
		[]string{n.meta.InputName}, []string{n.meta.OutputName},
		[]ort.ArbitraryTensor{n.inputTensor}, []ort.ArbitraryTensor{n.outputTensor},
		options)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session for %s: %w", cfg.Path, err)
	}
	return nil
}

// Metadata returns the model's metadata, with any normalization override applied.
func (n *ONNXNetwork) Metadata() Metadata { return n.meta }

func (n *ONNXNetwork) InputShape() []int  { return slices.Clone(n.meta.InputShape) }
func (n *ONNXNetwork) OutputShape() []int { return slices.Clone(n.meta.OutputShape) }
func (n *ONNXNetwork) Layout() Layout     { return n.meta.Layout }
func (n *ONNXNetwork) BatchSize() int     { return n.batchSize }

func (n *ONNXNetwork) Normalization() types.Normalization { return n.meta.Normalization }

// Run copies input into the session's input tensor, runs inference, and
// returns a copy of the output tensor.
func (n *ONNXNetwork) Run(input []float32) ([]float32, error) {
	dst := n.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, session expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return slices.Clone(n.outputTensor.GetData()), nil
}

// Close destroys the session and tensors, and the runtime environment if
// OpenONNX created it.
func (n *ONNXNetwork) Close() error {
	if n.session != nil {
		n.session.Destroy()
		n.session = nil
	}
	if n.inputTensor != nil {
		n.inputTensor.Destroy()
		n.inputTensor = nil
	}
	if n.outputTensor != nil {
		n.outputTensor.Destroy()
		n.outputTensor = nil
	}
	if n.ownsEnv {
		n.ownsEnv = false
		return ort.DestroyEnvironment()
	}
	return nil
}

func batchShape(batch int, sample []int) ort.Shape {
	dims := make([]int64, 0, len(sample)+1)
	dims = append(dims, int64(batch))
	for _, d := range sample {
		dims = append(dims, int64(d))
	}
	return ort.NewShape(dims...)
}
