// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/imgfx/internal/extractor"
	"github.com/pdiddy/imgfx/internal/pipeline"
	"github.com/pdiddy/imgfx/internal/secrets"
	"github.com/pdiddy/imgfx/internal/weights"
	"github.com/pdiddy/imgfx/pkg/types"
)

// openNetwork builds the feature network. Tests replace it with a fake.
var openNetwork = func(cfg types.ModelConfig) (extractor.Network, error) {
	n, err := extractor.OpenONNX(cfg)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// stdout is where progress and dry-run output go.
var stdout io.Writer = os.Stdout

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := runConfig(viper.GetViper(), args)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	if err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	if viper.GetBool("dry-run") {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling configuration: %w", err)
		}
		fmt.Fprintf(stdout, "dry run, resolved configuration:\n%s", data)
		return nil
	}

	out := stdout
	if cfg.Quiet {
		out = io.Discard
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = extract(ctx, cfg, out)
	runtime.GC()
	return err
}

// extract resolves the model, builds the network once and runs the pipeline.
func extract(ctx context.Context, cfg types.RunConfig, out io.Writer) error {
	fetcher := weights.NewFetcher(secrets.Get(loadedSecrets, secrets.ModelHubToken), out)
	model, err := fetcher.Resolve(ctx, cfg.Model)
	if err != nil {
		return err
	}
	cfg.Model = model

	net, err := openNetwork(cfg.Model)
	if err != nil {
		return fmt.Errorf("opening network: %w", err)
	}
	ext := extractor.New(net)
	defer ext.Close()

	_, err = pipeline.Run(ctx, cfg, ext, out)
	return err
}
