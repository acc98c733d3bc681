// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"errors"
	"fmt"

	"gonum.org/v1/hdf5"
)

// writeHDF5 stores data with its full shape as a float32 dataset.
func writeHDF5(path, dataset string, shape []int, data []float32) error {
	return atomicWrite(path, func(tmp string) error {
		f, err := hdf5.CreateFile(tmp, hdf5.F_ACC_TRUNC)
		if err != nil {
			return fmt.Errorf("creating hdf5 file: %w", err)
		}

		dims := make([]uint, len(shape))
		for i, d := range shape {
			dims[i] = uint(d)
		}
		space, err := hdf5.CreateSimpleDataspace(dims, nil)
		if err != nil {
			f.Close()
			return fmt.Errorf("creating dataspace: %w", err)
		}

		dset, err := f.CreateDataset(dataset, hdf5.T_NATIVE_FLOAT, space)
		if err != nil {
			space.Close()
			f.Close()
			return fmt.Errorf("creating dataset %q: %w", dataset, err)
		}

		writeErr := dset.Write(&data)
		return errors.Join(writeErr, dset.Close(), space.Close(), f.Close())
	})
}

// readHDF5 loads a float32 dataset and its shape.
func readHDF5(path, dataset string) ([]int, []float32, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, nil, fmt.Errorf("opening hdf5 file: %w", err)
	}
	defer f.Close()

	dset, err := f.OpenDataset(dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("opening dataset %q: %w", dataset, err)
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, nil, fmt.Errorf("reading dataset shape: %w", err)
	}

	shape := make([]int, len(dims))
	n := 1
	for i, d := range dims {
		shape[i] = int(d)
		n *= int(d)
	}
	data := make([]float32, n)
	if err := dset.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("reading dataset %q: %w", dataset, err)
	}
	return shape, data, nil
}
