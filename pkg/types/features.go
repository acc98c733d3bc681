// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PatchSource records where one feature row came from.
type PatchSource struct {
	// Source is the image file the patch was cut from.
	Source string `json:"source" yaml:"source"`

	// X and Y are the top-left pixel of the patch in the source image.
	// Both are zero for resized whole images (multi mode).
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Manifest describes a written feature file. It is stored as a YAML sidecar
// next to the features so downstream tools can map rows back to images.
type Manifest struct {
	// Format is the output format of the feature file.
	Format OutputFormat `json:"format" yaml:"format"`

	// Files lists every file written for this run, compressed siblings included.
	Files []string `json:"files" yaml:"files"`

	// Dataset is the HDF5 dataset name (hdf5 only).
	Dataset string `json:"dataset,omitempty" yaml:"dataset,omitempty"`

	// Shape is the feature tensor shape; Shape[0] equals len(Rows).
	Shape []int `json:"shape" yaml:"shape"`

	// Flattened reports whether per-patch features were flattened.
	Flattened bool `json:"flattened" yaml:"flattened"`

	// Mode is the extractor mode used to produce the patches.
	Mode ExtractorMode `json:"mode" yaml:"mode"`

	// Model is the path of the network used.
	Model string `json:"model" yaml:"model"`

	// Normalization is the input normalization applied.
	Normalization Normalization `json:"normalization" yaml:"normalization"`

	// PatchSize is the square patch edge in pixels.
	PatchSize int `json:"patch_size" yaml:"patch_size"`

	// CreatedAt is when the run finished.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Rows holds per-row provenance in tensor order.
	Rows []PatchSource `json:"rows" yaml:"rows"`
}
