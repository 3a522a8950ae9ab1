// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

// Package layers builds the individual layers of feed-forward neural network
// models of sensory processing: linear and separable dense layers,
// convolutions over stimulus grids, temporal filter banks, and the grid
// shift/sample layers used by sampler networks.
//
// Layers are constructed eagerly by New from a fully resolved Spec: all shape
// arithmetic happens at construction time and every variable is created
// immediately in the layer's scope of the given context. Build only emits
// graph nodes. Configuration problems surface as errors wrapping
// ErrMissingConfiguration, ErrInvalidConfiguration or ErrShapeMismatch;
// passing a malformed node to Build is a programming error and panics.
package layers

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/kovacspe/NDN3/layers/reg"
)

// Layer is one constructed network layer: its resolved shape contract, its
// variables, and its graph-building kernel.
//
// A layer receives and produces flat [batch, units] nodes; InputDims and
// OutputDims record how the flat axes unfold. Variables exist from
// construction on, but hold concrete values only after an execution or an
// explicit assignment.
type Layer interface {
	// Kind returns the layer's kind tag.
	Kind() Kind

	// Name returns the layer's scope name within its network, e.g.
	// "conv_layer_2".
	Name() string

	// InputDims returns the dimensions the layer was built for, including any
	// trailing lag entry when its input is time-expanded by the network.
	InputDims() Dims

	// OutputDims returns the derived output dimensions.
	OutputDims() Dims

	// FilterDims returns the derived filter geometry
	// [channels*lags, width, height] for convolutional kinds, nil otherwise.
	FilterDims() Dims

	// Build appends the layer's computation to the graph of x and returns the
	// flat output node.
	Build(x *Node) *Node

	// WeightsVar returns the weights variable, nil when the kind has none.
	WeightsVar() *context.Variable

	// BiasesVar returns the biases variable, nil when the kind has none.
	BiasesVar() *context.Variable

	// SetParams assigns externally held values to the layer's variables. A nil
	// tensor leaves the corresponding variable untouched.
	SetParams(weights, biases *tensors.Tensor) error

	// Params reads the current variable values, nil for absent variables.
	Params() (weights, biases *tensors.Tensor, err error)

	// CopyParamsFrom copies the variable values of a layer with the same
	// parameter shapes.
	CopyParamsFrom(origin Layer) error

	// RegularizationLoss returns the layer's weighted penalty as a scalar
	// node, or nil when the layer has no regularization.
	RegularizationLoss(g *Graph) *Node
}

// baseLayer carries the state shared by every layer kind and implements the
// parts of Layer that do not depend on the kernel.
type baseLayer struct {
	kind       Kind
	name       string
	inputDims  Dims
	outputDims Dims
	filterDims Dims

	dtype         dtypes.DType
	activation    activations.Type
	numInhibitory int
	positive      bool
	normalize     int
	normAxes      []int
	regSpec       reg.Spec

	weights *context.Variable
	biases  *context.Variable
}

func (l *baseLayer) Kind() Kind                    { return l.kind }
func (l *baseLayer) Name() string                  { return l.name }
func (l *baseLayer) InputDims() Dims               { return l.inputDims.Clone() }
func (l *baseLayer) OutputDims() Dims              { return l.outputDims.Clone() }
func (l *baseLayer) FilterDims() Dims              { return l.filterDims.Clone() }
func (l *baseLayer) WeightsVar() *context.Variable { return l.weights }
func (l *baseLayer) BiasesVar() *context.Variable  { return l.biases }

// checkInput panics unless x is the flat [batch, units] node the layer was
// constructed for.
func (l *baseLayer) checkInput(x *Node) {
	if x.Rank() != 2 || x.Shape().Dim(1) != l.inputDims.Size() {
		Panicf("layer %q expects input shaped [batch, %d], got %s",
			l.name, l.inputDims.Size(), x.Shape())
	}
}

// weightsNode returns the weights with the use-time transforms applied: the
// positive constraint clamps at zero, normalization L2-normalizes each output
// unit over its input taps.
func (l *baseLayer) weightsNode(g *Graph) *Node {
	w := l.weights.ValueGraph(g)
	if l.positive {
		w = Max(w, ZerosLike(w))
	}
	if l.normalize > 0 {
		w = L2Normalize(w, l.normAxes...)
	}
	return w
}

// addBias adds the flat [units] bias to a flat [batch, units] node.
func (l *baseLayer) addBias(x *Node) *Node {
	if l.biases == nil {
		return x
	}
	b := l.biases.ValueGraph(x.Graph())
	return Add(x, InsertAxes(b, 0))
}

// finish applies the activation and the inhibitory sign mask to the flat
// [batch, units] pre-activation.
func (l *baseLayer) finish(pre *Node) *Node {
	out := activations.Apply(l.activation, pre)
	if l.numInhibitory > 0 {
		mask := l.inhibitionMask(out.Graph(), out.Shape().Dim(-1))
		out = Mul(out, InsertAxes(mask, 0))
	}
	return out
}

// inhibitionMask returns a [numUnits] node holding +1 for excitatory units
// and -1 for the trailing numInhibitory units.
func (l *baseLayer) inhibitionMask(g *Graph, numUnits int) *Node {
	mask := make([]float32, numUnits)
	for i := range mask {
		mask[i] = 1
	}
	for i := numUnits - l.numInhibitory; i < numUnits; i++ {
		mask[i] = -1
	}
	return constFlat(g, l.dtype, mask, numUnits)
}

// constFlat builds a constant node from float32 host data, converted to the
// layer dtype.
func constFlat(g *Graph, dtype dtypes.DType, data []float32, dims ...int) *Node {
	c := ConstTensor(g, tensors.FromFlatDataAndDimensions(data, dims...))
	return ConvertDType(c, dtype)
}

func (l *baseLayer) RegularizationLoss(g *Graph) *Node {
	if len(l.regSpec) == 0 || l.weights == nil {
		return nil
	}
	return reg.Compute(l.regSpec, l.weightsNode(g))
}

func (l *baseLayer) SetParams(weights, biases *tensors.Tensor) error {
	if err := l.setVariable(l.weights, weights, "weights"); err != nil {
		return err
	}
	return l.setVariable(l.biases, biases, "biases")
}

func (l *baseLayer) setVariable(v *context.Variable, value *tensors.Tensor, varName string) error {
	if value == nil {
		return nil
	}
	if v == nil {
		return errors.Wrapf(ErrInvalidConfiguration, "layer %q has no %s variable", l.name, varName)
	}
	if !value.Shape().Equal(v.Shape()) {
		return errors.Wrapf(ErrShapeMismatch, "layer %q %s: got shape %s, want %s",
			l.name, varName, value.Shape(), v.Shape())
	}
	return v.SetValue(value)
}

func (l *baseLayer) Params() (weights, biases *tensors.Tensor, err error) {
	if l.weights != nil {
		weights, err = l.weights.Value()
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "reading weights of layer %q", l.name)
		}
	}
	if l.biases != nil {
		biases, err = l.biases.Value()
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "reading biases of layer %q", l.name)
		}
	}
	return weights, biases, nil
}

func (l *baseLayer) CopyParamsFrom(origin Layer) error {
	if err := l.copyVariable(l.weights, origin.WeightsVar(), "weights"); err != nil {
		return err
	}
	return l.copyVariable(l.biases, origin.BiasesVar(), "biases")
}

func (l *baseLayer) copyVariable(dst, src *context.Variable, varName string) error {
	if dst == nil && src == nil {
		return nil
	}
	if dst == nil || src == nil {
		return errors.Wrapf(ErrShapeMismatch, "layer %q: origin layer has a different %s parameterization",
			l.name, varName)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return errors.Wrapf(ErrShapeMismatch, "layer %q %s: origin has shape %s, want %s",
			l.name, varName, src.Shape(), dst.Shape())
	}
	value, err := src.Value()
	if err != nil {
		return errors.WithMessagef(err, "reading origin %s for layer %q", varName, l.name)
	}
	clone, err := value.LocalClone()
	if err != nil {
		return errors.WithMessagef(err, "cloning origin %s for layer %q", varName, l.name)
	}
	return dst.SetValue(clone)
}
