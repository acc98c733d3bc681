// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package loader

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"

	"github.com/pdiddy/imgfx/pkg/types"
)

// ErrEmptyBatch is returned when stacking zero patches.
var ErrEmptyBatch = errors.New("no patches to stack")

// ImageNet channel statistics in RGB order.
var (
	caffeMeanBGR = [channels]float32{103.939, 116.779, 123.68}
	torchMean    = [channels]float32{0.485, 0.456, 0.406}
	torchStd     = [channels]float32{0.229, 0.224, 0.225}
)

// Stack copies patches into one float32 tensor of shape (N, size, size, 3).
// All patches must share the same size.
func Stack(patches []Patch) (*tensor.Dense, error) {
	if len(patches) == 0 {
		return nil, ErrEmptyBatch
	}
	size := patches[0].Size
	per := size * size * channels

	buf := make([]float32, 0, len(patches)*per)
	for i, p := range patches {
		if p.Size != size || len(p.Pixels) != per {
			return nil, fmt.Errorf("patch %d from %s is %dx%d (%d values), want %dx%d",
				i, p.Source, p.Size, p.Size, len(p.Pixels), size, size)
		}
		buf = append(buf, p.Pixels...)
	}
	return tensor.New(
		tensor.WithShape(len(patches), size, size, channels),
		tensor.WithBacking(buf),
	), nil
}

// Normalize applies an ImageNet input transform in place to a channels-last
// float32 tensor with values in [0, 255].
func Normalize(t *tensor.Dense, mode types.Normalization) error {
	data, ok := t.Data().([]float32)
	if !ok {
		return fmt.Errorf("normalize: want float32 tensor, got %v", t.Dtype())
	}
	shape := t.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != channels {
		return fmt.Errorf("normalize: want channels-last tensor with %d channels, got shape %v", channels, shape)
	}

	switch mode {
	case types.NormalizeCaffe, "":
		for i := 0; i < len(data); i += channels {
			r, g, b := data[i], data[i+1], data[i+2]
			data[i] = b - caffeMeanBGR[0]
			data[i+1] = g - caffeMeanBGR[1]
			data[i+2] = r - caffeMeanBGR[2]
		}
	case types.NormalizeTF:
		for i := range data {
			data[i] = data[i]/127.5 - 1
		}
	case types.NormalizeTorch:
		for i := range data {
			c := i % channels
			data[i] = (data[i]/255 - torchMean[c]) / torchStd[c]
		}
	default:
		return fmt.Errorf("normalize: unknown scheme %q", mode)
	}
	return nil
}
