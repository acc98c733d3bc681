// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package loader

import (
	"fmt"
	"image"
	"math/rand/v2"
)

// Positions returns the top-left corners of size x size patches inside a
// width x height image.
//
// With maxPatches > 0, maxPatches corners are drawn uniformly (with
// replacement) from all valid positions using seed. Otherwise corners lie on
// a grid with the given stride; a stride of 0 means size (non-overlapping
// tiles) and a stride of 1 enumerates every valid position.
func Positions(width, height, size, stride, maxPatches int, seed int64) ([]image.Point, error) {
	if size <= 0 {
		return nil, fmt.Errorf("patch size must be positive, got %d", size)
	}
	if width < size || height < size {
		return nil, fmt.Errorf("image %dx%d is smaller than patch %dx%d", width, height, size, size)
	}

	nx := width - size + 1
	ny := height - size + 1

	if maxPatches > 0 {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
		pts := make([]image.Point, maxPatches)
		for i := range pts {
			pts[i] = image.Pt(rng.IntN(nx), rng.IntN(ny))
		}
		return pts, nil
	}

	if stride <= 0 {
		stride = size
	}
	pts := make([]image.Point, 0, ((nx-1)/stride+1)*((ny-1)/stride+1))
	for y := 0; y < ny; y += stride {
		for x := 0; x < nx; x += stride {
			pts = append(pts, image.Pt(x, y))
		}
	}
	return pts, nil
}
