// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the file name is the key and the trimmed contents
// are the value. An IMGFX_<KEY> environment variable overrides the file.
//
// Supported keys: model-hub-token.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDir is where secrets are read from, relative to the working directory.
	DefaultDir = ".secrets"

	// ModelHubToken is the bearer token sent when downloading model files.
	ModelHubToken = "model-hub-token"
)

// Load reads all regular, non-hidden files in dir. A missing directory
// yields an empty map. Unreadable files are reported to warn and skipped.
func Load(dir string, warn io.Writer) (map[string]string, error) {
	if warn == nil {
		warn = io.Discard
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(warn, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// EnvName returns the environment variable that overrides key,
// e.g. IMGFX_MODEL_HUB_TOKEN for model-hub-token.
func EnvName(key string) string {
	return "IMGFX_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Get returns key from the environment when set, else from secrets.
func Get(secrets map[string]string, key string) string {
	if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
		return v
	}
	return secrets[key]
}
