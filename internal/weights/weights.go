// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package weights downloads pretrained network files into a local cache the
// first time they are needed.
package weights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/cheggaaa/pb.v1"

	"github.com/pdiddy/imgfx/internal/httputil"
	"github.com/pdiddy/imgfx/pkg/types"
)

// ErrModelMissing is returned when the model file is absent and no download
// URL is configured.
var ErrModelMissing = errors.New("model file not found")

const defaultUserAgent = "imgfx"

// DefaultCacheDir returns the per-user model cache, ~/.cache/imgfx/models on
// Linux.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = ".cache"
	}
	return filepath.Join(base, "imgfx", "models")
}

// Fetcher downloads model files over HTTP.
type Fetcher struct {
	Client *http.Client

	// Token, when set, is sent as a bearer token.
	Token string

	UserAgent  string
	MaxRetries int

	// Log receives status lines ("downloading: ...", "cached: ...") and a
	// progress bar. Nil discards them.
	Log io.Writer
}

// NewFetcher returns a Fetcher with a generous timeout for large files.
func NewFetcher(token string, log io.Writer) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: 30 * time.Minute},
		Token:     token,
		UserAgent: defaultUserAgent,
		Log:       log,
	}
}

// Resolve returns cfg unchanged when cfg.Path exists. Otherwise it downloads
// the model from cfg.URL and returns cfg pointing at the cached copy.
func (f *Fetcher) Resolve(ctx context.Context, cfg types.ModelConfig) (types.ModelConfig, error) {
	if cfg.Path != "" {
		if _, err := os.Stat(cfg.Path); err == nil {
			return cfg, nil
		}
	}
	if cfg.URL == "" {
		return cfg, fmt.Errorf("%w: %q (set --model-url to download it)", ErrModelMissing, cfg.Path)
	}
	return f.Fetch(ctx, cfg)
}

// Fetch downloads the model at cfg.URL and, unless cfg.MetadataPath is set,
// its metadata sidecar (same URL with a ".yaml" extension) into
// cfg.CacheDir. Files already in the cache are not downloaded again.
func (f *Fetcher) Fetch(ctx context.Context, cfg types.ModelConfig) (types.ModelConfig, error) {
	modelURL, err := url.Parse(cfg.URL)
	if err != nil {
		return cfg, fmt.Errorf("parsing model URL: %w", err)
	}
	name := path.Base(modelURL.Path)
	if name == "" || name == "." || name == "/" {
		return cfg, fmt.Errorf("model URL %q has no file name", cfg.URL)
	}

	dir := cfg.CacheDir
	if dir == "" {
		dir = DefaultCacheDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cfg, fmt.Errorf("creating cache directory: %w", err)
	}

	cfg.Path = filepath.Join(dir, name)
	if err := f.fetchOnce(ctx, modelURL.String(), cfg.Path); err != nil {
		return cfg, err
	}

	if cfg.MetadataPath == "" {
		metaURL := sidecarURL(*modelURL)
		cfg.MetadataPath = filepath.Join(dir, path.Base(metaURL.Path))
		if err := f.fetchOnce(ctx, metaURL.String(), cfg.MetadataPath); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		fmt.Fprintf(f.log(), "cached: %s\n", dest)
		return nil
	}
	fmt.Fprintf(f.log(), "downloading: %s\n", src)
	if err := f.download(ctx, src, dest); err != nil {
		return fmt.Errorf("downloading %s: %w", src, err)
	}
	fmt.Fprintf(f.log(), "saved: %s\n", dest)
	return nil
}

// download streams src into a temp file next to destPath and renames it
// into place on success.
func (f *Fetcher) download(ctx context.Context, src, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, f.MaxRetries, f.log())
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, src)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".weights-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	var body io.Reader = resp.Body
	var bar *pb.ProgressBar
	if f.Log != nil && f.Log != io.Discard {
		bar = pb.New64(max(resp.ContentLength, 0)).SetUnits(pb.U_BYTES).Prefix(path.Base(destPath) + " ")
		bar.Output = f.Log
		bar.Start()
		body = bar.NewProxyReader(resp.Body)
	}

	_, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if bar != nil {
		bar.Finish()
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (f *Fetcher) log() io.Writer {
	if f.Log == nil {
		return io.Discard
	}
	return f.Log
}

// sidecarURL swaps the file extension of u's path for ".yaml".
func sidecarURL(u url.URL) url.URL {
	p := u.Path
	if ext := path.Ext(p); ext != "" {
		p = strings.TrimSuffix(p, ext)
	}
	u.Path = p + ".yaml"
	u.RawPath = ""
	return u
}
