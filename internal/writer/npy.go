// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
)

const (
	npyMagic     = "\x93NUMPY"
	npyAlignment = 64
	npyFloat32   = "<f4"
)

// writeNPY writes an NPY v1.0 file holding little-endian float32 data in C
// order with the given shape.
func writeNPY(path string, shape []int, data []float32) error {
	return atomicWrite(path, func(tmp string) error {
		return createFile(tmp, func(f *os.File) error {
			bw := bufio.NewWriter(f)
			if _, err := bw.WriteString(npyHeader(shape)); err != nil {
				return err
			}
			if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
				return err
			}
			return bw.Flush()
		})
	})
}

// npyHeader returns the magic string, version, header length, and the
// space-padded header dictionary.
func npyHeader(shape []int) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	tuple += ")"

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", npyFloat32, tuple)

	// magic(6) + version(2) + header length(2) + dict + trailing newline
	prefix := len(npyMagic) + 4
	pad := (npyAlignment - (prefix+len(dict)+1)%npyAlignment) % npyAlignment
	dict += strings.Repeat(" ", pad) + "\n"

	var b strings.Builder
	b.WriteString(npyMagic)
	b.WriteByte(1)
	b.WriteByte(0)
	b.WriteByte(byte(len(dict)))
	b.WriteByte(byte(len(dict) >> 8))
	b.WriteString(dict)
	return b.String()
}

// readNPY loads a float32 NPY file.
func readNPY(path string) ([]int, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading npy header: %w", err)
	}
	if r.Header.Descr.Type != npyFloat32 {
		return nil, nil, fmt.Errorf("unsupported npy dtype %q, want %q", r.Header.Descr.Type, npyFloat32)
	}

	shape := append([]int(nil), r.Header.Descr.Shape...)
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("reading npy data: %w", err)
	}
	return shape, data, nil
}
