// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package ffnet

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/initializer"
	"github.com/gomlx/gomlx/pkg/ml/random"
	"github.com/pkg/errors"

	"github.com/kovacspe/NDN3/layers"
)

// SamplerNetwork is a network that reads its image input at a set of 2D
// locations through grid_sample layers. The locations are a second graph
// input: either a variable owned by the network, fitted like any layer
// parameter, or the output of a separate location network passed in at
// build time.
type SamplerNetwork struct {
	*Network

	numLocations int
	locationsVar *context.Variable
	locationNet  *Network
}

// NewSampler constructs a sampler network. cfg.NumLocations sets the number
// of owned xy locations, initialized per cfg.LocationsInit ("normal",
// "trunc_normal", "zeros"); alternatively cfg.LocationNetwork names a
// constructed network whose output provides the locations, in which case no
// variable is created.
func NewSampler(ctx *context.Context, scope string, inputDims any, cfg *Config) (*SamplerNetwork, error) {
	base, err := newNetwork(ctx, scope, inputDims, cfg, true)
	if err != nil {
		return nil, err
	}
	s := &SamplerNetwork{Network: base, locationNet: cfg.LocationNetwork}
	if cfg.LocationNetwork != nil {
		flat := cfg.LocationNetwork.OutputDims().Size()
		if flat%2 != 0 {
			return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
				"location network %q produces %d values, want xy pairs", cfg.LocationNetwork.Name(), flat)
		}
		s.numLocations = flat / 2
	} else {
		if cfg.NumLocations <= 0 {
			return nil, errors.Wrap(layers.ErrMissingConfiguration,
				"the number of sampling locations is required")
		}
		s.numLocations = cfg.NumLocations
		init, err := locationsInitializer(base.rng, cfg.LocationsInit)
		if err != nil {
			return nil, err
		}
		s.locationsVar = base.ctx.WithInitializer(init).VariableWithShape(
			"locations", shapes.Make(base.dtype, 1, 2*cfg.NumLocations))
	}
	for i := 0; i < base.NumLayers(); i++ {
		gs, ok := base.Layer(i).(*layers.GridSample)
		if !ok {
			continue
		}
		if n := gs.OutputDims().Size(); n != s.numLocations {
			return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
				"layer #%d samples %d locations, the network provides %d", i, n, s.numLocations)
		}
		if gs.InputDims().Size() != base.inputDims.Size() {
			return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
				"layer #%d samples the network input, but follows layers that reshape it", i)
		}
	}
	return s, nil
}

func locationsInitializer(rng *random.Random, name string) (initializer.Initializer, error) {
	switch name {
	case "", "normal", "trunc_normal":
		return initializer.Normal(rng, 0.1), nil
	case "zeros":
		return initializer.Zero, nil
	}
	return nil, errors.Wrapf(layers.ErrInvalidConfiguration, "unknown locations initializer %q", name)
}

// Build assembles the sampler network's graph. inputs is the image node
// alone, or the image followed by explicit locations shaped [1, 2N] or
// [batch, 2N]. Without explicit locations the owned locations variable is
// read; a sampler driven by a location network always needs them passed in.
func (s *SamplerNetwork) Build(inputs ...*Node) *Node {
	var image, locations *Node
	switch len(inputs) {
	case 1:
		image = inputs[0]
	case 2:
		image, locations = inputs[0], inputs[1]
	default:
		Panicf("sampler network %q takes an image and optional locations, got %d inputs",
			s.name, len(inputs))
	}
	if image == nil {
		Panicf("sampler network %q built with a nil image", s.name)
	}
	if locations == nil {
		if s.locationsVar == nil {
			Panicf("sampler network %q does not own its locations, pass them explicitly", s.name)
		}
		locations = s.locationsVar.ValueGraph(image.Graph())
	}
	return s.buildStack(image, func(gs *layers.GridSample) *Node {
		return gs.BuildSampled(image, locations)
	})
}

// FitVariables resolves a per-layer selection into the variables to fit.
// The owned locations variable participates when the first entry of the
// selection asks for locations.
func (s *SamplerNetwork) FitVariables(sel []FitSelection) ([]*context.Variable, error) {
	vars, err := s.Network.FitVariables(sel)
	if err != nil {
		return nil, err
	}
	if s.locationsVar != nil && sel[0].Locations {
		vars = append(vars, s.locationsVar)
	}
	return vars, nil
}

// NumLocations returns the number of xy sampling locations.
func (s *SamplerNetwork) NumLocations() int { return s.numLocations }

// LocationsVar returns the owned locations variable, nil when a location
// network provides the locations.
func (s *SamplerNetwork) LocationsVar() *context.Variable { return s.locationsVar }

// Locations returns the current values of the owned locations variable.
func (s *SamplerNetwork) Locations() (*tensors.Tensor, error) {
	if s.locationsVar == nil {
		return nil, errors.Wrapf(layers.ErrMissingConfiguration,
			"sampler network %q does not own its locations", s.name)
	}
	values, err := s.locationsVar.Value()
	if err != nil {
		return nil, errors.WithMessagef(err, "reading locations of network %q", s.name)
	}
	return values, nil
}

// SetLocations assigns the owned locations variable, shaped [1, 2N].
func (s *SamplerNetwork) SetLocations(values *tensors.Tensor) error {
	if s.locationsVar == nil {
		return errors.Wrapf(layers.ErrMissingConfiguration,
			"sampler network %q does not own its locations", s.name)
	}
	if !values.Shape().Equal(s.locationsVar.Shape()) {
		return errors.Wrapf(layers.ErrShapeMismatch,
			"locations of network %q are %s, got %s", s.name, s.locationsVar.Shape(), values.Shape())
	}
	if err := s.locationsVar.SetValue(values); err != nil {
		return errors.WithMessagef(err, "assigning locations of network %q", s.name)
	}
	return nil
}

// NumParameters returns the total size of the network's variables, the
// owned locations included.
func (s *SamplerNetwork) NumParameters() int {
	total := s.Network.NumParameters()
	if s.locationsVar != nil {
		total += s.locationsVar.Shape().Size()
	}
	return total
}
