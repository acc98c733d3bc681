//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Extract runs feature extraction over ./images with the default model.
// Extra CLI arguments can be passed in IMGFX_ARGS.
func Extract() error {
	mg.Deps(Init)
	args := []string{"images"}
	if extra := os.Getenv("IMGFX_ARGS"); extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	return sh.RunV(binary(), args...)
}

// FetchModel downloads the model named by IMGFX_MODEL_URL into the cache.
func FetchModel() error {
	if os.Getenv("IMGFX_MODEL_URL") == "" {
		return fmt.Errorf("set IMGFX_MODEL_URL to the ONNX model to download")
	}
	return sh.RunV(binary(), "fetch-model")
}
