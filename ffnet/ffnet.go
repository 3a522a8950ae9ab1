// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

// Package ffnet assembles feed-forward networks out of the layer kinds in
// package layers: plain stacks, side networks that aggregate the activity of
// upstream networks, and sampler networks that read stimulus grids at
// learnable locations.
//
// A network is constructed eagerly: New resolves the per-layer configuration
// lists, threads dimensions from layer to layer, and creates every variable
// in the scoped context, so all configuration and shape errors surface
// before any graph exists. Build then only emits graph nodes and panics on
// programming errors.
package ffnet

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/random"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/kovacspe/NDN3/layers"
	"github.com/kovacspe/NDN3/layers/reg"
)

// Config describes a network as per-layer configuration lists. LayerSizes
// and LayerTypes must have one entry per layer; every other list may be
// empty (defaults apply to all layers), hold a single entry (broadcast to
// all layers), or hold exactly one entry per layer.
type Config struct {
	// InputDims is the network input, used when New is not given input
	// dimensions directly: [channels, x, y] with fewer entries right-padded,
	// plus an optional trailing lag count for pre-lagged inputs.
	InputDims []int

	// LayerSizes declares each layer's size: {n} means n units without
	// spatial structure, {c, x} and {c, x, y} declare a grid. Convolutional
	// kinds read the total as their filter count.
	LayerSizes [][]int

	// LayerTypes selects each layer's kind.
	LayerTypes []layers.Kind

	// Activations defaults to relu.
	Activations []activations.Type

	// WeightsInits and BiasesInits name variable initializers
	// ("trunc_normal", "normal", "zeros", "ones", "glorot_uniform"). Empty
	// entries pick each kind's default.
	WeightsInits []string
	BiasesInits  []string

	// Reg configures per-layer weight penalties. nil entries mean none.
	Reg []reg.Spec

	// NumInhibitory marks how many trailing units of each layer contribute
	// negatively downstream.
	NumInhibitory []int

	// PositiveConstraints clamp weights at zero on use.
	PositiveConstraints []bool

	// NormalizeWeights, when > 0, L2-normalizes each unit's weights on use.
	NormalizeWeights []int

	// TimeExpand asks the network to feed a layer the last n time steps of
	// its input. The temporal kinds consume their entry themselves.
	TimeExpand []int

	// Dilations spread the taps of temporal kernels. Defaults to 1.
	Dilations []int

	// FilterWidths set convolution filter widths; 0 spans the input grid.
	FilterWidths []int

	// ShiftSpacings set convolution strides. Defaults to 1.
	ShiftSpacings []int

	// XYPositions fixes the readout points of conv_xy and conv_readout
	// layers. When set, it needs one (possibly nil) entry per layer; it is
	// never broadcast.
	XYPositions [][][2]int

	// DType of all variables. Defaults to float32.
	DType dtypes.DType

	// Seed drives the random initializers; 0 seeds from entropy.
	Seed int64

	// NumLocations, LocationsInit and LocationNetwork configure sampler
	// networks (see NewSampler); plain networks ignore them.
	NumLocations    int
	LocationsInit   string
	LocationNetwork *Network
}

// Network is a constructed feed-forward network: a stack of layers with
// resolved shapes and materialized variables, ready to be built into graphs.
type Network struct {
	ctx   *context.Context
	name  string
	dtype dtypes.DType
	rng   *random.Random

	inputDims    layers.Dims
	stack        []layers.Layer
	declaredLags []int
	lags         []int

	outputs []*Node
}

// FitSelection says which of a layer's variables take part in fitting.
// Locations only applies to the first entry of a sampler network selection.
type FitSelection struct {
	Weights   bool
	Biases    bool
	Locations bool
}

// New constructs a network under the given scope of ctx. inputDims may be an
// int (n units without spatial structure), an []int or layers.Dims (right-
// padded to [channels, x, y], rank 4 for pre-lagged input), or nil to use
// cfg.InputDims.
func New(ctx *context.Context, scope string, inputDims any, cfg *Config) (*Network, error) {
	return newNetwork(ctx, scope, inputDims, cfg, false)
}

func newNetwork(ctx *context.Context, scope string, inputDims any, cfg *Config, allowGridSample bool) (*Network, error) {
	if ctx == nil {
		return nil, errors.Wrap(layers.ErrMissingConfiguration, "graph context is required")
	}
	if scope == "" {
		return nil, errors.Wrap(layers.ErrMissingConfiguration, "network scope is required")
	}
	if cfg == nil {
		return nil, errors.Wrap(layers.ErrMissingConfiguration, "network configuration is required")
	}
	numLayers := len(cfg.LayerSizes)
	if numLayers == 0 {
		return nil, errors.Wrap(layers.ErrMissingConfiguration, "layer sizes are required")
	}
	if len(cfg.LayerTypes) != numLayers {
		return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
			"layer types: got %d entries for %d layers", len(cfg.LayerTypes), numLayers)
	}
	dims, err := resolveInputDims(inputDims, cfg.InputDims)
	if err != nil {
		return nil, err
	}

	acts, err := broadcast("activations", cfg.Activations, activations.TypeRelu, numLayers)
	if err != nil {
		return nil, err
	}
	weightsInits, err := broadcast("weights initializers", cfg.WeightsInits, "", numLayers)
	if err != nil {
		return nil, err
	}
	biasesInits, err := broadcast("biases initializers", cfg.BiasesInits, "", numLayers)
	if err != nil {
		return nil, err
	}
	regs, err := broadcast[reg.Spec]("regularization", cfg.Reg, nil, numLayers)
	if err != nil {
		return nil, err
	}
	inhibitory, err := broadcast("inhibitory units", cfg.NumInhibitory, 0, numLayers)
	if err != nil {
		return nil, err
	}
	positives, err := broadcast("positive constraints", cfg.PositiveConstraints, false, numLayers)
	if err != nil {
		return nil, err
	}
	normalize, err := broadcast("weight normalization", cfg.NormalizeWeights, 0, numLayers)
	if err != nil {
		return nil, err
	}
	timeExpand, err := broadcast("time expansion", cfg.TimeExpand, 0, numLayers)
	if err != nil {
		return nil, err
	}
	dilations, err := broadcast("dilations", cfg.Dilations, 1, numLayers)
	if err != nil {
		return nil, err
	}
	widths, err := broadcast("filter widths", cfg.FilterWidths, 0, numLayers)
	if err != nil {
		return nil, err
	}
	strides, err := broadcast("shift spacings", cfg.ShiftSpacings, 1, numLayers)
	if err != nil {
		return nil, err
	}
	if cfg.XYPositions != nil && len(cfg.XYPositions) != numLayers {
		return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
			"xy positions: got %d entries for %d layers", len(cfg.XYPositions), numLayers)
	}

	dtype := cfg.DType
	if dtype == dtypes.InvalidDType {
		dtype = dtypes.Float32
	}
	rng := random.New()
	if cfg.Seed != 0 {
		rng = random.NewWithSeed(cfg.Seed)
	}

	n := &Network{
		ctx:          ctx.In(scope),
		name:         scope,
		dtype:        dtype,
		rng:          rng,
		inputDims:    dims,
		stack:        make([]layers.Layer, 0, numLayers),
		declaredLags: timeExpand,
		lags:         make([]int, numLayers),
	}
	current := dims
	for i := 0; i < numLayers; i++ {
		kind := cfg.LayerTypes[i]
		if kind == layers.KindGridSample {
			if !allowGridSample {
				return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
					"layer #%d: grid_sample only works in a sampler network", i)
			}
			if timeExpand[i] > 0 {
				return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
					"layer #%d: grid_sample cannot be time-expanded", i)
			}
		}
		size, err := layers.SizeDims(cfg.LayerSizes[i])
		if err != nil {
			return nil, errors.WithMessagef(err, "layer #%d", i)
		}
		if timeExpand[i] < 0 {
			return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
				"layer #%d: negative time expansion %d", i, timeExpand[i])
		}
		layerInput := current
		if timeExpand[i] > 0 && !kind.ConsumesLags() {
			layerInput = current.WithLag(timeExpand[i])
		}
		spec := layers.Spec{
			Index:         i,
			Kind:          kind,
			InputDims:     layerInput,
			OutputSize:    size,
			DType:         dtype,
			Activation:    acts[i],
			WeightsInit:   weightsInits[i],
			BiasesInit:    biasesInits[i],
			Reg:           regs[i],
			NumInhibitory: inhibitory[i],
			Positive:      positives[i],
			Normalize:     normalize[i],
			FilterWidth:   widths[i],
			Stride:        strides[i],
			NumLags:       timeExpand[i],
			Dilation:      dilations[i],
			RNG:           rng,
		}
		if cfg.XYPositions != nil {
			spec.Positions = cfg.XYPositions[i]
		}
		layer, lagsConsumed, err := layers.New(n.ctx, spec)
		if err != nil {
			return nil, err
		}
		n.stack = append(n.stack, layer)
		if !lagsConsumed {
			n.lags[i] = timeExpand[i]
		}
		current = layer.OutputDims()
	}
	klog.V(1).Infof("assembled network %q: input %v, output %v, %s parameters",
		scope, n.inputDims, current, humanize.Comma(int64(n.NumParameters())))
	return n, nil
}

// resolveInputDims normalizes the network input dimensions from either the
// direct argument or the config fallback.
func resolveInputDims(arg any, fromConfig []int) (layers.Dims, error) {
	var raw []int
	switch v := arg.(type) {
	case nil:
		raw = fromConfig
	case int:
		if v <= 0 {
			return nil, errors.Wrapf(layers.ErrInvalidConfiguration, "input dimensions: %d units", v)
		}
		return layers.Dims{1, v, 1}, nil
	case []int:
		raw = v
	case layers.Dims:
		raw = v
	default:
		return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
			"input dimensions: unsupported type %T", arg)
	}
	if len(raw) == 0 {
		return nil, errors.Wrap(layers.ErrMissingConfiguration, "input dimensions are required")
	}
	if len(raw) > 4 {
		return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
			"input dimensions %v have more than 4 entries", raw)
	}
	dims := make(layers.Dims, max(3, len(raw)))
	for i := range dims {
		dims[i] = 1
	}
	copy(dims, raw)
	if err := dims.Validate(); err != nil {
		return nil, errors.WithMessage(err, "input")
	}
	return dims, nil
}

// broadcast resolves a per-layer configuration list: empty lists fall back
// to the default for every layer, single entries apply to every layer, and
// full-length lists are copied as-is.
func broadcast[T any](name string, values []T, fallback T, numLayers int) ([]T, error) {
	out := make([]T, numLayers)
	switch len(values) {
	case 0:
		for i := range out {
			out[i] = fallback
		}
	case 1:
		for i := range out {
			out[i] = values[0]
		}
	case numLayers:
		copy(out, values)
	default:
		return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
			"%s: got %d entries for %d layers", name, len(values), numLayers)
	}
	return out, nil
}

// Build assembles the network's graph on top of x, a flat
// [batch, input units] node, and returns the final layer's output. Outputs
// of every layer are retained for aggregators (see LayerOutput).
func (n *Network) Build(x *Node) *Node {
	if x == nil {
		Panicf("network %q built with a nil input", n.name)
	}
	return n.buildStack(x, nil)
}

// buildStack runs the layer loop, time-expanding where the network owns the
// lag. sampled, when set, intercepts grid_sample layers, which read the
// sampler's image and locations instead of the running activations.
func (n *Network) buildStack(x *Node, sampled func(*layers.GridSample) *Node) *Node {
	n.outputs = make([]*Node, 0, len(n.stack))
	for i, layer := range n.stack {
		if gs, ok := layer.(*layers.GridSample); ok && sampled != nil {
			x = sampled(gs)
		} else {
			if n.lags[i] > 0 {
				x = layers.TimeEmbed(x, n.lags[i])
			}
			x = layer.Build(x)
		}
		n.outputs = append(n.outputs, x)
	}
	return x
}

// LayerOutput returns the output node of layer i from the most recent Build,
// or nil if the network has not been built.
func (n *Network) LayerOutput(i int) *Node {
	if i < 0 || i >= len(n.stack) {
		Panicf("network %q has no layer #%d", n.name, i)
	}
	if n.outputs == nil {
		return nil
	}
	return n.outputs[i]
}

// Name returns the network's scope name.
func (n *Network) Name() string { return n.name }

// Context returns the network's scoped context, under which all its
// variables live.
func (n *Network) Context() *context.Context { return n.ctx }

// NumLayers returns the number of layers.
func (n *Network) NumLayers() int { return len(n.stack) }

// Layer returns layer i.
func (n *Network) Layer(i int) layers.Layer { return n.stack[i] }

// InputDims returns the resolved network input dimensions.
func (n *Network) InputDims() layers.Dims { return n.inputDims.Clone() }

// OutputDims returns the final layer's output dimensions.
func (n *Network) OutputDims() layers.Dims {
	return n.stack[len(n.stack)-1].OutputDims()
}

// TimeExpand returns the effective per-layer lag counts: entries consumed by
// temporal layers are zero.
func (n *Network) TimeExpand() []int {
	out := make([]int, len(n.lags))
	copy(out, n.lags)
	return out
}

// TimeSpread returns the total declared time expansion of the network, the
// number of contiguous time steps one output depends on.
func (n *Network) TimeSpread() int {
	total := 0
	for _, l := range n.declaredLags {
		total += l
	}
	return total
}

// FitAll returns a selection fitting every variable of every layer.
func (n *Network) FitAll() []FitSelection {
	sel := make([]FitSelection, len(n.stack))
	for i := range sel {
		sel[i] = FitSelection{Weights: true, Biases: true, Locations: true}
	}
	return sel
}

// FitVariables resolves a per-layer selection into the variables to fit.
// Layers without the selected variable contribute nothing.
func (n *Network) FitVariables(sel []FitSelection) ([]*context.Variable, error) {
	if len(sel) != len(n.stack) {
		return nil, errors.Wrapf(layers.ErrInvalidConfiguration,
			"fit selection: got %d entries for %d layers", len(sel), len(n.stack))
	}
	var vars []*context.Variable
	for i, layer := range n.stack {
		if sel[i].Weights && layer.WeightsVar() != nil {
			vars = append(vars, layer.WeightsVar())
		}
		if sel[i].Biases && layer.BiasesVar() != nil {
			vars = append(vars, layer.BiasesVar())
		}
	}
	return vars, nil
}

// LayerParams holds one layer's parameter values. Absent variables are nil.
type LayerParams struct {
	Weights *tensors.Tensor
	Biases  *tensors.Tensor
}

// WriteParams reads the current parameter values of every layer. Values
// exist after the first execution or an explicit assignment.
func (n *Network) WriteParams() ([]LayerParams, error) {
	out := make([]LayerParams, len(n.stack))
	for i, layer := range n.stack {
		weights, biases, err := layer.Params()
		if err != nil {
			return nil, err
		}
		out[i] = LayerParams{Weights: weights, Biases: biases}
	}
	return out, nil
}

// AssignParams sets the parameter values of every layer. nil tensors leave
// the corresponding variable untouched.
func (n *Network) AssignParams(params []LayerParams) error {
	if len(params) != len(n.stack) {
		return errors.Wrapf(layers.ErrInvalidConfiguration,
			"parameters: got %d entries for %d layers", len(params), len(n.stack))
	}
	for i, layer := range n.stack {
		if err := layer.SetParams(params[i].Weights, params[i].Biases); err != nil {
			return err
		}
	}
	return nil
}

// CopyParamsFrom copies all parameter values from a network with the same
// architecture.
func (n *Network) CopyParamsFrom(origin *Network) error {
	if origin == nil {
		return errors.Wrap(layers.ErrMissingConfiguration, "origin network is required")
	}
	if len(origin.stack) != len(n.stack) {
		return errors.Wrapf(layers.ErrShapeMismatch,
			"network %q has %d layers, origin %q has %d",
			n.name, len(n.stack), origin.name, len(origin.stack))
	}
	for i, layer := range n.stack {
		if err := layer.CopyParamsFrom(origin.stack[i]); err != nil {
			return err
		}
	}
	return nil
}

// regLoss sums the per-layer penalties, nil when no layer is regularized.
func (n *Network) regLoss(g *Graph) *Node {
	var total *Node
	for _, layer := range n.stack {
		p := layer.RegularizationLoss(g)
		if p == nil {
			continue
		}
		if total == nil {
			total = p
		} else {
			total = Add(total, p)
		}
	}
	return total
}

// RegularizationLoss returns the network's summed weight penalties as a
// scalar node, zero when no layer is regularized.
func (n *Network) RegularizationLoss(g *Graph) *Node {
	if total := n.regLoss(g); total != nil {
		return total
	}
	return ScalarZero(g, n.dtype)
}

// AddRegularization adds the network's weight penalties to the losses the
// trainer collects. Without regularized layers it is a no-op.
func (n *Network) AddRegularization(g *Graph) {
	if total := n.regLoss(g); total != nil {
		train.AddLoss(n.ctx, total)
	}
}

// NumParameters returns the total size of the network's variables.
func (n *Network) NumParameters() int {
	total := 0
	for _, layer := range n.stack {
		if v := layer.WeightsVar(); v != nil {
			total += v.Shape().Size()
		}
		if v := layer.BiasesVar(); v != nil {
			total += v.Shape().Size()
		}
	}
	return total
}

// String returns a human-readable summary of the network architecture.
func (n *Network) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Network %q: input %v, %d layers, %s parameters\n",
		n.name, n.inputDims, len(n.stack), humanize.Comma(int64(n.NumParameters())))
	for i, layer := range n.stack {
		fmt.Fprintf(&b, "  #%d %s: %v -> %v", i, layer.Name(), layer.InputDims(), layer.OutputDims())
		if filter := layer.FilterDims(); filter != nil {
			fmt.Fprintf(&b, ", filter %v", filter)
		}
		if n.declaredLags[i] > 0 {
			fmt.Fprintf(&b, ", lags %d", n.declaredLags[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}
