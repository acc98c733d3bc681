// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/imgfx/internal/secrets"
	"github.com/pdiddy/imgfx/internal/weights"
	"github.com/pdiddy/imgfx/pkg/types"
)

var fetchModelCmd = &cobra.Command{
	Use:   "fetch-model",
	Short: "Download a model and its metadata into the cache",
	Long: `fetch-model downloads --model-url and its metadata sidecar (the same URL
with a .yaml extension, unless --model-meta is given) into --cache-dir.
Files already cached are kept. A bearer token is read from
.secrets/model-hub-token or IMGFX_MODEL_HUB_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runFetchModel,
}

func init() {
	rootCmd.AddCommand(fetchModelCmd)
}

func runFetchModel(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return fetchModel(ctx, modelConfig(viper.GetViper()), stdout)
}

// fetchModel downloads the configured model into the cache. Cancelling ctx
// aborts a download in progress.
func fetchModel(ctx context.Context, cfg types.ModelConfig, out io.Writer) error {
	if cfg.URL == "" {
		return fmt.Errorf("--model-url is required")
	}

	fetcher := weights.NewFetcher(secrets.Get(loadedSecrets, secrets.ModelHubToken), out)
	cfg, err := fetcher.Fetch(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "model:    %s\nmetadata: %s\n", cfg.Path, cfg.MetadataFile())
	return nil
}
