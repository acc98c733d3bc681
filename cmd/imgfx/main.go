// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the imgfx CLI: it extracts image
// features with an ImageNet-pretrained network and writes them as HDF5, NPY,
// CSV, or SQLite.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/imgfx/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd extracts features; subcommands inspect output and manage models.
var rootCmd = &cobra.Command{
	Use:   "imgfx [img_path]",
	Short: "Extract image features with a pretrained ImageNet network",
	Long: `imgfx feeds images through a convolutional network pretrained on ImageNet,
with its classification head removed, and saves the resulting feature tensors.

In multi mode (default) every file under img_path whose name matches --pattern
is resized to one patch. In single mode img_path is one image cut into patches
on a grid (--stride) or at random (--max-patches).

Features are written to --out with the extension of --format.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir, os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
	RunE: runExtract,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./imgfx.yaml or ~/.config/imgfx/imgfx.yaml)")
	addModelFlags(rootCmd)
	addExtractFlags(rootCmd)

	viper.BindPFlags(rootCmd.PersistentFlags())
	viper.BindPFlags(rootCmd.Flags())
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("imgfx")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "imgfx"))
		}
	}

	viper.SetEnvPrefix("IMGFX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
