// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package loader discovers, decodes, and cuts images into fixed-size patches
// ready for the feature network.
package loader

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pdiddy/imgfx/pkg/types"
)

// channels is the number of color channels in every patch (RGB).
const channels = 3

// Patch is one square RGB crop in HWC order with values in [0, 255].
type Patch struct {
	// Source is the image file the patch was taken from.
	Source string

	// X and Y locate the patch's top-left pixel in the source image.
	X, Y int

	// Size is the patch edge length in pixels.
	Size int

	// Pixels holds Size*Size*3 values, row-major, RGB interleaved.
	Pixels []float32
}

// Load produces patches according to cfg.Mode, printing one status line per
// decoded image to w.
func Load(ctx context.Context, cfg types.LoaderConfig, w io.Writer) ([]Patch, error) {
	switch cfg.Mode {
	case types.ModeMulti:
		return LoadMulti(ctx, cfg, w)
	case types.ModeSingle:
		return LoadSingle(cfg, w)
	default:
		return nil, fmt.Errorf("unknown extractor mode %q", cfg.Mode)
	}
}

// LoadMulti walks cfg.ImagePath, decodes every file whose base name matches
// cfg.Pattern, and resizes each to PatchSize x PatchSize. Files that do not
// match are skipped. Patches are returned in path order.
func LoadMulti(ctx context.Context, cfg types.LoaderConfig, w io.Writer) ([]Patch, error) {
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", cfg.Pattern, err)
	}

	paths, err := Discover(cfg.ImagePath, re)
	if err != nil {
		return nil, err
	}

	filter := resampler(cfg.Interpolation)
	size := uint(cfg.PatchSize)

	patches := make([]Patch, 0, len(paths))
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := Decode(path)
		if err != nil {
			return nil, err
		}
		resized := resize.Resize(size, size, img, filter)
		patches = append(patches, Patch{
			Source: path,
			Size:   cfg.PatchSize,
			Pixels: rgbPixels(imaging.Clone(resized)),
		})
		fmt.Fprintf(w, "loaded: %s\n", path)
	}
	return patches, nil
}

// Discover walks root and returns the sorted paths of regular files whose
// base name matches re.
func Discover(root string, re *regexp.Regexp) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if re.MatchString(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadSingle decodes cfg.ImagePath and cuts it into PatchSize patches using
// grid or random sampling (see Positions).
func LoadSingle(cfg types.LoaderConfig, w io.Writer) ([]Patch, error) {
	img, err := Decode(cfg.ImagePath)
	if err != nil {
		return nil, err
	}
	src := imaging.Clone(img)
	bounds := src.Bounds()

	positions, err := Positions(bounds.Dx(), bounds.Dy(), cfg.PatchSize, cfg.Stride, cfg.MaxPatches, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.ImagePath, err)
	}

	patches := make([]Patch, len(positions))
	for i, pt := range positions {
		crop := imaging.Crop(src, image.Rect(pt.X, pt.Y, pt.X+cfg.PatchSize, pt.Y+cfg.PatchSize))
		patches[i] = Patch{
			Source: cfg.ImagePath,
			X:      pt.X,
			Y:      pt.Y,
			Size:   cfg.PatchSize,
			Pixels: rgbPixels(crop),
		}
	}
	fmt.Fprintf(w, "loaded: %s (%dx%d, %d patches)\n", cfg.ImagePath, bounds.Dx(), bounds.Dy(), len(patches))
	return patches, nil
}

// Decode opens and decodes an image file, applying EXIF orientation.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// rgbPixels flattens an NRGBA image to HWC RGB float32, dropping alpha.
func rgbPixels(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, w*h*channels)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			o := (y*w + x) * channels
			out[o] = float32(row[x*4])
			out[o+1] = float32(row[x*4+1])
			out[o+2] = float32(row[x*4+2])
		}
	}
	return out
}

func resampler(i types.Interpolation) resize.InterpolationFunction {
	switch i {
	case types.InterpNearest:
		return resize.NearestNeighbor
	case types.InterpBicubic:
		return resize.Bicubic
	case types.InterpLanczos3:
		return resize.Lanczos3
	default:
		return resize.Bilinear
	}
}
