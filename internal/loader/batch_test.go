// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package loader

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/imgfx/pkg/types"
)

func solidPatch(size int, r, g, b float32) Patch {
	px := make([]float32, size*size*3)
	for i := 0; i < len(px); i += 3 {
		px[i], px[i+1], px[i+2] = r, g, b
	}
	return Patch{Source: "mem", Size: size, Pixels: px}
}

func TestStack(t *testing.T) {
	batch, err := Stack([]Patch{solidPatch(4, 1, 2, 3), solidPatch(4, 4, 5, 6)})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 4, 3}, []int(batch.Shape()))

	data := batch.Data().([]float32)
	assert.Equal(t, []float32{1, 2, 3}, data[:3])
	assert.Equal(t, []float32{4, 5, 6}, data[4*4*3:4*4*3+3])
}

func TestStackErrors(t *testing.T) {
	_, err := Stack(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = Stack([]Patch{solidPatch(4, 0, 0, 0), solidPatch(8, 0, 0, 0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patch 1")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		mode types.Normalization
		want []float32
	}{
		{"caffe swaps to BGR and subtracts means", types.NormalizeCaffe, []float32{30 - 103.939, 20 - 116.779, 10 - 123.68}},
		{"empty defaults to caffe", "", []float32{30 - 103.939, 20 - 116.779, 10 - 123.68}},
		{"tf scales to [-1, 1]", types.NormalizeTF, []float32{10/127.5 - 1, 20/127.5 - 1, 30/127.5 - 1}},
		{"torch standardizes", types.NormalizeTorch, []float32{
			(10.0/255 - 0.485) / 0.229,
			(20.0/255 - 0.456) / 0.224,
			(30.0/255 - 0.406) / 0.225,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Stack([]Patch{solidPatch(2, 10, 20, 30)})
			require.NoError(t, err)
			require.NoError(t, Normalize(batch, tt.mode))
			data := batch.Data().([]float32)
			assert.InDeltaSlice(t, tt.want, data[:3], 1e-4)
			assert.InDeltaSlice(t, tt.want, data[len(data)-3:], 1e-4)
		})
	}
}

func TestNormalizeUnknown(t *testing.T) {
	batch, err := Stack([]Patch{solidPatch(2, 1, 1, 1)})
	require.NoError(t, err)
	assert.Error(t, Normalize(batch, "vgg"))
}

func TestPositions(t *testing.T) {
	tests := []struct {
		name               string
		w, h, size, stride int
		want               int
		last               image.Point
	}{
		{"exact fit", 256, 256, 256, 0, 1, image.Pt(0, 0)},
		{"grid default stride", 600, 520, 256, 0, 4, image.Pt(256, 256)},
		{"exhaustive stride 1", 258, 257, 256, 1, 6, image.Pt(2, 1)},
		{"stride 100", 512, 256, 256, 100, 3, image.Pt(200, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, err := Positions(tt.w, tt.h, tt.size, tt.stride, 0, 0)
			require.NoError(t, err)
			require.Len(t, pts, tt.want)
			assert.Equal(t, tt.last, pts[len(pts)-1])
		})
	}
}

func TestPositionsRandom(t *testing.T) {
	a, err := Positions(1000, 800, 256, 0, 25, 42)
	require.NoError(t, err)
	require.Len(t, a, 25)
	for _, p := range a {
		assert.True(t, p.X >= 0 && p.X <= 1000-256, "x out of range: %v", p)
		assert.True(t, p.Y >= 0 && p.Y <= 800-256, "y out of range: %v", p)
	}

	b, err := Positions(1000, 800, 256, 0, 25, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed yields same positions")
}

func TestPositionsErrors(t *testing.T) {
	_, err := Positions(100, 100, 256, 0, 0, 0)
	assert.Error(t, err)
	_, err = Positions(100, 100, 0, 0, 0, 0)
	assert.Error(t, err)
}
