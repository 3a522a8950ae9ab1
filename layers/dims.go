// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	"slices"

	"github.com/pkg/errors"
)

// Dims describes the logical shape of a layer input or output as
// [channels, spatial-x, spatial-y], optionally followed by a fourth entry for
// the number of time lags when the value has been time-expanded.
//
// Values flow between layers as flat [batch, Size()] nodes; Dims records how
// that flat axis unfolds. The flat ordering is row-major over
// [spatial-x, spatial-y, channels, lags], i.e. channels vary faster than
// space and lags vary fastest of all.
type Dims []int

// SizeDims normalizes a declared layer size. A single entry n is interpreted
// as n units with no spatial extent, [1, n, 1]. Two or three entries are
// taken as [channels, spatial-x(, spatial-y)] and right-padded with 1s to
// rank 3.
func SizeDims(size []int) (Dims, error) {
	switch len(size) {
	case 0:
		return nil, errors.Wrap(ErrMissingConfiguration, "layer size is empty")
	case 1:
		if size[0] <= 0 {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "layer size %d must be positive", size[0])
		}
		return Dims{1, size[0], 1}, nil
	case 2, 3:
		d := make(Dims, 3)
		copy(d, size)
		for i := len(size); i < 3; i++ {
			d[i] = 1
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfiguration, "layer size %v has more than 3 dimensions", size)
}

// Validate checks that every entry is positive.
func (d Dims) Validate() error {
	if len(d) < 3 {
		return errors.Wrapf(ErrInvalidConfiguration, "dimensions %v must have rank 3 or 4", []int(d))
	}
	for _, v := range d {
		if v <= 0 {
			return errors.Wrapf(ErrInvalidConfiguration, "dimensions %v must be positive", []int(d))
		}
	}
	return nil
}

// Size returns the number of flat units, the product of all entries.
func (d Dims) Size() int {
	size := 1
	for _, v := range d {
		size *= v
	}
	return size
}

// Rank returns the number of entries.
func (d Dims) Rank() int { return len(d) }

// Channels returns the leading (channel) entry.
func (d Dims) Channels() int { return d[0] }

// Spatial returns the two spatial entries.
func (d Dims) Spatial() (x, y int) { return d[1], d[2] }

// SpatialSize returns the number of spatial positions.
func (d Dims) SpatialSize() int { return d[1] * d[2] }

// LagsSize returns the product of the trailing lag entries, or 1 when the
// value carries no lags.
func (d Dims) LagsSize() int {
	size := 1
	for _, v := range d[3:] {
		size *= v
	}
	return size
}

// WithLag returns a copy with numLags appended as a trailing lag dimension.
func (d Dims) WithLag(numLags int) Dims {
	out := make(Dims, len(d), len(d)+1)
	copy(out, d)
	return append(out, numLags)
}

// CollapseLags folds any trailing lag entries into the channel entry,
// returning a rank-3 [channels*lags, spatial-x, spatial-y].
func (d Dims) CollapseLags() Dims {
	return Dims{d.Channels() * d.LagsSize(), d[1], d[2]}
}

// Clone returns an independent copy.
func (d Dims) Clone() Dims {
	return slices.Clone(d)
}
