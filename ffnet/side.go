// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package ffnet

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"

	"github.com/kovacspe/NDN3/layers"
)

// SideNetwork is a network whose input is not a stimulus but the activity of
// every layer of one or more upstream networks. Its input dimensions are
// derived at construction from the upstream architectures.
//
// When every upstream layer is convolutional the aggregation stays spatial:
// each layer contributes its filters at every grid position, and the side
// network input keeps the upstream spatial extent. A binocular upstream
// layer halves that extent on the width axis and the activity of full-width
// layers is folded into twice the channels. Any non-convolutional upstream
// layer switches the whole aggregation to flat accounting, where each layer
// contributes its flattened units.
type SideNetwork struct {
	*Network

	sources     []sideSource
	contributed []int
	unitsPer    []int
	folded      []bool
	numSpace    int
	nx, ny      int
}

// sideSource identifies one upstream layer feeding the aggregation.
type sideSource struct {
	net   *Network
	layer int
}

// NewSide constructs a side network over the given upstream networks, which
// must already be constructed. The upstream order fixes the concatenation
// order of their layer outputs. Input dimensions are derived, so
// cfg.InputDims is ignored.
func NewSide(ctx *context.Context, scope string, upstreams []*Network, cfg *Config) (*SideNetwork, error) {
	if len(upstreams) == 0 {
		return nil, errors.Wrap(layers.ErrMissingConfiguration, "at least one upstream network is required")
	}
	var sources []sideSource
	spatial := true
	binocular := false
	for i, u := range upstreams {
		if u == nil {
			return nil, errors.Wrapf(layers.ErrMissingConfiguration, "upstream network #%d is nil", i)
		}
		for j := 0; j < u.NumLayers(); j++ {
			kind := u.Layer(j).Kind()
			if !kind.IsConvFamily() {
				spatial = false
			}
			if kind == layers.KindBiconv {
				binocular = true
			}
			sources = append(sources, sideSource{net: u, layer: j})
		}
	}

	s := &SideNetwork{sources: sources}
	var derived layers.Dims
	var err error
	if spatial {
		derived, err = s.resolveSpatial(upstreams, binocular)
	} else {
		derived, err = s.resolveFlat()
	}
	if err != nil {
		return nil, err
	}
	s.Network, err = newNetwork(ctx, scope, derived, cfg, false)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// resolveSpatial derives the input dimensions when every upstream layer is
// convolutional. Contributed unit counts follow the declared accounting,
// filters times the full upstream extent, doubled by the binocular split;
// the concatenation channel counts come from the real layer output shapes.
func (s *SideNetwork) resolveSpatial(upstreams []*Network, binocular bool) (layers.Dims, error) {
	nx, ny := upstreams[0].InputDims().Spatial()
	for _, u := range upstreams[1:] {
		ux, uy := u.InputDims().Spatial()
		if ux != nx || uy != ny {
			return nil, errors.Wrapf(layers.ErrShapeMismatch,
				"upstream networks disagree on spatial extent: %q is %dx%d, %q is %dx%d",
				upstreams[0].Name(), nx, ny, u.Name(), ux, uy)
		}
	}
	fullSpace := nx * ny
	if binocular {
		if nx%2 != 0 {
			return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
				"binocular aggregation needs an even upstream width, got %d", nx)
		}
		nx /= 2
	}
	s.nx, s.ny = nx, ny
	s.numSpace = nx * ny

	totalChannels := 0
	for _, src := range s.sources {
		out := src.net.Layer(src.layer).OutputDims()
		native := out.SpatialSize()
		if native != s.numSpace && native != 2*s.numSpace {
			return nil, errors.Wrapf(layers.ErrShapeMismatch,
				"layer %s of network %q spans %d grid positions, the aggregator handles %d or %d",
				src.net.Layer(src.layer).Name(), src.net.Name(), native, s.numSpace, 2*s.numSpace)
		}
		s.folded = append(s.folded, native == 2*s.numSpace)
		s.contributed = append(s.contributed, out.Channels()*fullSpace)
		s.unitsPer = append(s.unitsPer, out.Size()/s.numSpace)
		totalChannels += out.Size() / s.numSpace
	}
	return layers.Dims{totalChannels, nx, ny}, nil
}

// resolveFlat derives the input dimensions for flat accounting. Layers of an
// upstream with a convolutional first layer contribute their filters times
// the full upstream extent, doubled for binocular layers; all other layers
// contribute their declared size. Each count must match the layer's real
// flat output.
func (s *SideNetwork) resolveFlat() (layers.Dims, error) {
	total := 0
	for _, src := range s.sources {
		layer := src.net.Layer(src.layer)
		out := layer.OutputDims()
		units := out.Size()
		if layer.Kind().IsConvFamily() {
			if src.net.Layer(0).Kind().IsConvFamily() {
				units = out.Channels() * src.net.InputDims().SpatialSize()
			} else if layer.Kind() == layers.KindBiconv {
				units = out.Channels() / 2
			} else {
				units = out.Channels()
			}
		}
		if units != out.Size() {
			return nil, errors.Wrapf(layers.ErrShapeMismatch,
				"layer %s of network %q contributes %d units but produces %v",
				layer.Name(), src.net.Name(), units, out)
		}
		s.folded = append(s.folded, false)
		s.contributed = append(s.contributed, units)
		s.unitsPer = append(s.unitsPer, units)
		total += units
	}
	s.nx, s.ny = 1, 1
	s.numSpace = 1
	return layers.Dims{total, 1, 1}, nil
}

// Build assembles the side network on top of the upstream networks' layer
// outputs; every upstream must have been built into the same graph first.
// It returns the final layer's output.
func (s *SideNetwork) Build() *Node {
	parts := make([]*Node, 0, len(s.sources))
	batch := 0
	for k, src := range s.sources {
		layer := src.net.Layer(src.layer)
		out := src.net.LayerOutput(src.layer)
		if out == nil {
			Panicf("side network %q aggregates layer %s of network %q, which has not been built",
				s.name, layer.Name(), src.net.Name())
		}
		if out.Rank() != 2 {
			Panicf("side network %q: layer %s of network %q built shape %s, want rank 2",
				s.name, layer.Name(), src.net.Name(), out.Shape())
		}
		batch = out.Shape().Dim(0)
		if got := out.Shape().Dim(1); got != s.unitsPer[k]*s.numSpace {
			Panicf("side network %q: layer %s of network %q built %d values, aggregator expects %d units at %d positions",
				s.name, layer.Name(), src.net.Name(), got, s.unitsPer[k], s.numSpace)
		}
		var slice *Node
		if s.folded[k] {
			// Full-width activity in binocular mode: split the two eyes
			// along the grid and stack them as channels.
			channels := s.unitsPer[k] / 2
			grid := Reshape(out, batch, 1, 2*s.numSpace, channels)
			left := SliceAxis(grid, 2, AxisRangeFromStart(s.numSpace))
			right := SliceAxis(grid, 2, AxisRangeToEnd(s.numSpace))
			slice = Reshape(Concatenate([]*Node{left, right}, 3), batch, s.numSpace, s.unitsPer[k])
		} else {
			slice = Reshape(out, batch, s.numSpace, s.unitsPer[k])
		}
		parts = append(parts, slice)
	}
	total := 0
	for _, u := range s.unitsPer {
		total += u
	}
	x := Reshape(Concatenate(parts, 2), batch, s.numSpace*total)
	return s.buildStack(x, nil)
}

// ContributedUnits returns the unit count each upstream layer contributes,
// in aggregation order, following the declared accounting: convolutional
// layers count filters times the full upstream extent, doubled for
// binocular layers.
func (s *SideNetwork) ContributedUnits() []int {
	out := make([]int, len(s.contributed))
	copy(out, s.contributed)
	return out
}

// TotalContributedUnits returns the summed declared contribution of all
// upstream layers.
func (s *SideNetwork) TotalContributedUnits() int {
	total := 0
	for _, c := range s.contributed {
		total += c
	}
	return total
}

// NumSpace returns the number of grid positions of the aggregated input, 1
// under flat accounting.
func (s *SideNetwork) NumSpace() int { return s.numSpace }

// SpatialExtent returns the aggregated input grid, halved on the width axis
// in binocular mode.
func (s *SideNetwork) SpatialExtent() (nx, ny int) { return s.nx, s.ny }
