// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import "github.com/pkg/errors"

// Kind enumerates the supported layer types. The string form of each value is
// its configuration tag, e.g. KindConvSep is "conv_sep".
type Kind int

//go:generate go tool enumer -type Kind -trimprefix=Kind -transform=snake -output=gen_kind_enumer.go kind.go

const (
	// KindNormal is a fully connected layer.
	KindNormal Kind = iota
	// KindSep is a fully connected layer with weights factorized into a
	// channel part and a spatial part.
	KindSep
	// KindReadout is a fully connected layer intended as a final readout.
	KindReadout
	// KindAdd sums equally sized input streams with per-stream unit weights.
	KindAdd
	// KindMult modulates the first input stream by gains derived from the
	// remaining streams.
	KindMult
	// KindFilter applies a per-unit gain and bias.
	KindFilter
	// KindSpkNL applies a per-unit scaled softplus spiking nonlinearity.
	KindSpkNL
	// KindSpikeHistory mixes the lag taps of each unit with per-unit
	// temporal weights.
	KindSpikeHistory
	// KindConv is a 2D (or degenerate 1D) convolution over the input grid.
	KindConv
	// KindConvSep is a convolution with a factorized channel/spatial kernel.
	KindConvSep
	// KindBiconv is a binocular convolution: the convolved grid is split in
	// half along spatial-x and the halves are stacked as channels.
	KindBiconv
	// KindConvLNL is a convolution used as the linear stage of an LNL
	// cascade.
	KindConvLNL
	// KindConvXY reads one grid position per filter, fixed by configuration.
	KindConvXY
	// KindConvReadout reads a fixed grid position per output neuron across
	// all input channels.
	KindConvReadout
	// KindTemporal convolves each unit over time with a bank of temporal
	// kernels, consuming the layer's time expansion itself.
	KindTemporal
	// KindTemporalSpecific applies one private temporal kernel per unit,
	// consuming the layer's time expansion itself.
	KindTemporalSpecific
	// KindGridShift offsets learned per-neuron grid positions by an input
	// shift signal.
	KindGridShift
	// KindGridSample bilinearly samples an input grid at externally provided
	// locations.
	KindGridSample
)

// KindFromName converts a configuration tag like "conv_sep" into its Kind.
func KindFromName(name string) (Kind, error) {
	k, err := KindString(name)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfiguration, "unknown layer type %q", name)
	}
	return k, nil
}

// IsConvFamily reports whether the kind preserves a spatial grid in its
// output, which is what side networks require of every contributing layer to
// aggregate on a common grid.
func (k Kind) IsConvFamily() bool {
	switch k {
	case KindConv, KindConvSep, KindBiconv, KindConvLNL:
		return true
	}
	return false
}

// ConsumesLags reports whether the kind handles its own time expansion
// internally, so the network must not expand its input.
func (k Kind) ConsumesLags() bool {
	switch k {
	case KindTemporal, KindTemporalSpecific:
		return true
	}
	return false
}
