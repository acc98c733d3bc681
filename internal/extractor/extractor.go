// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extractor turns batches of preprocessed patches into feature
// tensors by running them through a truncated pretrained network.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/cheggaaa/pb.v1"
	"gorgonia.org/tensor"
)

var (
	// ErrNoPatches is returned when there is nothing to extract.
	ErrNoPatches = errors.New("no patches to extract features from")

	// ErrShapeMismatch is returned when patches do not match the network input.
	ErrShapeMismatch = errors.New("patch shape does not match network input")
)

// Extractor wraps a Network built once and reused for every Extract call.
type Extractor struct {
	net Network

	// Progress, when non-nil, receives a progress bar over batches.
	Progress io.Writer
}

// New returns an Extractor backed by net.
func New(net Network) *Extractor {
	return &Extractor{net: net}
}

// Network returns the underlying network.
func (e *Extractor) Network() Network {
	return e.net
}

// Close releases the underlying network.
func (e *Extractor) Close() error {
	return e.net.Close()
}

// PatchShape returns the channels-last (H, W, C) shape patches must have.
func (e *Extractor) PatchShape() []int {
	in := e.net.InputShape()
	if e.net.Layout() == LayoutNCHW {
		return []int{in[1], in[2], in[0]}
	}
	return slices.Clone(in)
}

// Extract runs batch, a channels-last tensor of shape (N, H, W, C), through
// the network and returns a tensor whose first dimension is N. With flatten
// the result is (N, F); otherwise (N, OutputShape...). The last partial batch
// is zero-padded and the padded rows are dropped from the result.
func (e *Extractor) Extract(ctx context.Context, batch *tensor.Dense, flatten bool) (*tensor.Dense, error) {
	if batch == nil || batch.Shape().TotalSize() == 0 {
		return nil, ErrNoPatches
	}
	shape := batch.Shape()
	if !slices.Equal([]int(shape[1:]), e.PatchShape()) {
		return nil, fmt.Errorf("%w: got %v, network wants %v", ErrShapeMismatch, []int(shape[1:]), e.PatchShape())
	}
	data, ok := batch.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("extract: want float32 batch, got %v", batch.Dtype())
	}

	n := shape[0]
	bs := e.net.BatchSize()
	inSize := numel(e.net.InputShape())
	outShape := e.net.OutputShape()
	outSize := numel(outShape)

	in := make([]float32, bs*inSize)
	out := make([]float32, 0, n*outSize)

	batches := (n + bs - 1) / bs
	var bar *pb.ProgressBar
	if e.Progress != nil {
		bar = pb.New(batches).Prefix("extract ")
		bar.Output = e.Progress
		bar.ShowSpeed = false
		bar.Start()
		defer bar.Finish()
	}

	for start := 0; start < n; start += bs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		count := min(bs, n-start)
		src := data[start*inSize : (start+count)*inSize]
		if e.net.Layout() == LayoutNCHW {
			h, w, c := shape[1], shape[2], shape[3]
			for i := 0; i < count; i++ {
				toCHW(in[i*inSize:(i+1)*inSize], src[i*inSize:(i+1)*inSize], h, w, c)
			}
		} else {
			copy(in, src)
		}
		clear(in[count*inSize:])

		res, err := e.net.Run(in)
		if err != nil {
			return nil, fmt.Errorf("inference on patches %d-%d: %w", start, start+count-1, err)
		}
		if len(res) < count*outSize {
			return nil, fmt.Errorf("inference on patches %d-%d: got %d values, want %d",
				start, start+count-1, len(res), count*outSize)
		}
		out = append(out, res[:count*outSize]...)

		if bar != nil {
			bar.Increment()
		}
	}

	dims := append([]int{n}, outShape...)
	if flatten {
		dims = []int{n, outSize}
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(out)), nil
}

// toCHW converts one HWC sample into CHW order.
func toCHW(dst, src []float32, h, w, c int) {
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := y*w + x
			for ch := 0; ch < c; ch++ {
				dst[ch*plane+p] = src[p*c+ch]
			}
		}
	}
}
