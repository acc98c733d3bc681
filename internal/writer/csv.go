// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// csvDecimals is the fixed number of decimals written per value.
const csvDecimals = 5

// writeCSV writes one space-delimited line per row of a 2-D tensor. With
// compress the text is gzip-encoded on the way to disk.
func writeCSV(path string, shape []int, data []float32, compress bool) error {
	if len(shape) != 2 {
		return fmt.Errorf("csv output needs 2-D features, got shape %v (use flatten)", shape)
	}
	return atomicWrite(path, func(tmp string) error {
		return createFile(tmp, func(f *os.File) error {
			if !compress {
				return encodeCSV(f, shape, data)
			}
			gz := gzip.NewWriter(f)
			if err := encodeCSV(gz, shape, data); err != nil {
				gz.Close()
				return err
			}
			return gz.Close()
		})
	})
}

func encodeCSV(w io.Writer, shape []int, data []float32) error {
	cw := csv.NewWriter(w)
	cw.Comma = ' '

	rows, cols := shape[0], shape[1]
	record := make([]string, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			record[c] = strconv.FormatFloat(float64(data[r*cols+c]), 'f', csvDecimals, 32)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatValue renders v with csvDecimals decimals. Non-finite values are
// spelled nan, inf and -inf as numpy's savetxt writes them.
func formatValue(v float32) string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', csvDecimals, 32)
}

// readCSV parses space-delimited rows into a (rows, cols) tensor.
func readCSV(r io.Reader) ([]int, []float32, error) {
	cr := csv.NewReader(r)
	cr.Comma = ' '
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv file has no rows")
	}

	cols := len(records[0])
	data := make([]float32, 0, len(records)*cols)
	for i, rec := range records {
		for _, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			data = append(data, float32(v))
		}
	}
	return []int{len(records), cols}, data, nil
}
