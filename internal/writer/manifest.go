// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/imgfx/pkg/types"
)

// ManifestPath returns the YAML sidecar path for an output base path.
func ManifestPath(outPath string) string {
	return outPath + ".yaml"
}

// WriteManifest records how a feature file was produced next to it.
func WriteManifest(outPath string, m types.Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	path := ManifestPath(outPath)
	err = atomicWrite(path, func(tmp string) error {
		return os.WriteFile(tmp, data, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return path, nil
}

// ReadManifest loads a sidecar written by WriteManifest.
func ReadManifest(path string) (types.Manifest, error) {
	var m types.Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}
