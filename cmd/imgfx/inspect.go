// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/imgfx/internal/writer"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the format, shape and first values of a feature file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().Int("head", 8, "number of leading values to print")
	inspectCmd.Flags().String("dataset", "", "HDF5 dataset name (default: features)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	head, _ := cmd.Flags().GetInt("head")
	dataset, _ := cmd.Flags().GetString("dataset")
	if dataset == "" {
		dataset = viper.GetString("dataset")
	}
	return inspect(stdout, args[0], dataset, head)
}

func inspect(w io.Writer, path, dataset string, head int) error {
	format, compressed, err := writer.FormatForPath(path)
	if err != nil {
		return err
	}
	t, err := writer.Read(path, dataset)
	if err != nil {
		return err
	}
	data := t.Data().([]float32)

	fmt.Fprintf(w, "file:   %s\n", path)
	if compressed {
		fmt.Fprintf(w, "format: %s (gzip)\n", format)
	} else {
		fmt.Fprintf(w, "format: %s\n", format)
	}
	fmt.Fprintf(w, "shape:  %v\n", []int(t.Shape()))

	n := min(max(head, 0), len(data))
	vals := make([]string, n)
	for i, v := range data[:n] {
		vals[i] = fmt.Sprintf("%.5f", v)
	}
	fmt.Fprintf(w, "head:   [%s]\n", strings.Join(vals, " "))

	base := strings.TrimSuffix(path, ".gz")
	base = strings.TrimSuffix(base, "."+format.Extension())
	if m, err := writer.ReadManifest(writer.ManifestPath(base)); err == nil {
		fmt.Fprintf(w, "model:  %s (%s)\n", m.Model, m.Normalization)
		fmt.Fprintf(w, "rows:   %d from %s mode, created %s\n", len(m.Rows), m.Mode, m.CreatedAt.Format("2006-01-02 15:04:05"))
	} else if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "manifest: %v\n", err)
	}
	return nil
}
