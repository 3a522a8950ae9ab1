// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// toImage unfolds a flat [batch, units] node into the grid
// [batch, x, y, channels*lags] the convolution kernels operate on.
func toImage(l *baseLayer, x *Node) *Node {
	batch := x.Shape().Dim(0)
	spatialX, spatialY := l.inputDims.Spatial()
	channels := l.inputDims.Channels() * l.inputDims.LagsSize()
	return Reshape(x, batch, spatialX, spatialY, channels)
}

// flattenImage folds a [batch, x, y, channels] grid back into the flat
// space-major, channel-fastest layout.
func flattenImage(x *Node) *Node {
	batch := x.Shape().Dim(0)
	return Reshape(x, batch, x.Shape().Size()/batch)
}

// convolveGrid applies the kernel with SAME padding and the layer stride,
// then the per-filter bias and the activation. The result keeps its grid
// shape [batch, x', y', filters].
func convolveGrid(l *baseLayer, x, kernel *Node, stride int) *Node {
	out := Convolve(toImage(l, x), kernel).PadSame().Strides(stride).Done()
	if l.biases != nil {
		b := l.biases.ValueGraph(x.Graph())
		out = Add(out, InsertAxes(b, 0, 0, 0))
	}
	return activations.Apply(l.activation, out)
}

// applyChannelMask multiplies the trailing channel axis by the inhibitory
// sign mask.
func applyChannelMask(l *baseLayer, x *Node) *Node {
	if l.numInhibitory == 0 {
		return x
	}
	mask := l.inhibitionMask(x.Graph(), x.Shape().Dim(-1))
	return Mul(x, InsertAxes(mask, 0, 0, 0))
}

// Conv convolves the input grid with a bank of filters, SAME-padded and
// optionally strided. It implements both the "conv" and "conv_lnl" kinds; the
// latter is the linear stage of an LNL cascade and differs only in how model
// builders use it. The kernel variable is [width, height, channels, filters].
type Conv struct {
	baseLayer
	stride int
}

func (l *Conv) Build(x *Node) *Node {
	l.checkInput(x)
	out := convolveGrid(&l.baseLayer, x, l.weightsNode(x.Graph()), l.stride)
	return flattenImage(applyChannelMask(&l.baseLayer, out))
}

// ConvSep is a convolution whose kernel is factorized like Sep weights: the
// variable stacks channel rows [0, channels) and spatial rows
// [channels, channels+width*height) on its leading axis, per filter. The
// effective kernel is their outer product.
type ConvSep struct {
	baseLayer
	stride int
}

func (l *ConvSep) Build(x *Node) *Node {
	l.checkInput(x)
	g := x.Graph()
	w := l.weightsNode(g)
	channels, width, height := l.filterDims[0], l.filterDims[1], l.filterDims[2]

	wChannel := SliceAxis(w, 0, AxisRangeFromStart(channels))
	wSpace := SliceAxis(w, 0, AxisRangeToEnd(channels))
	kernel := Einsum("sf,cf->scf", wSpace, wChannel)
	kernel = Reshape(kernel, width, height, channels, l.outputDims.Channels())

	out := convolveGrid(&l.baseLayer, x, kernel, l.stride)
	return flattenImage(applyChannelMask(&l.baseLayer, out))
}

// Biconv is a binocular convolution: the convolved grid is split into left
// and right halves along spatial-x and the halves are stacked on the channel
// axis, so each output position carries both eyes' filter responses. The
// output grid is [2*filters, x'/2, y'].
type Biconv struct {
	baseLayer
	stride int
}

func (l *Biconv) Build(x *Node) *Node {
	l.checkInput(x)
	out := convolveGrid(&l.baseLayer, x, l.weightsNode(x.Graph()), l.stride)
	halves := Split(out, 1, 2)
	out = Concatenate(halves, -1)
	return flattenImage(applyChannelMask(&l.baseLayer, out))
}

// ConvXY convolves the grid and then reads a single fixed position per
// filter, collapsing the output to [filters, 1, 1]. Positions index the
// post-stride output grid.
type ConvXY struct {
	baseLayer
	stride    int
	positions [][2]int
}

func (l *ConvXY) Build(x *Node) *Node {
	l.checkInput(x)
	g := x.Graph()
	out := convolveGrid(&l.baseLayer, x, l.weightsNode(g), l.stride)
	outX, outY := out.Shape().Dim(1), out.Shape().Dim(2)
	numFilters := l.outputDims.Channels()

	sel := make([]float32, outX*outY*numFilters)
	for f, pos := range l.positions {
		sel[(pos[0]*outY+pos[1])*numFilters+f] = 1
	}
	selNode := constFlat(g, l.dtype, sel, outX*outY, numFilters)

	flat := Reshape(out, out.Shape().Dim(0), outX*outY, numFilters)
	picked := ReduceSum(Mul(flat, InsertAxes(selNode, 0)), 1)
	if l.numInhibitory > 0 {
		picked = Mul(picked, InsertAxes(l.inhibitionMask(g, numFilters), 0))
	}
	return picked
}

// ConvReadout reads one fixed grid position per output neuron and weighs the
// input channels found there, without any convolution. Weights are
// [channels*lags, neurons]; the output is [neurons, 1, 1].
type ConvReadout struct {
	baseLayer
	positions [][2]int
}

func (l *ConvReadout) Build(x *Node) *Node {
	l.checkInput(x)
	g := x.Graph()
	spatialX, spatialY := l.inputDims.Spatial()
	channels := l.inputDims.Channels() * l.inputDims.LagsSize()
	numNeurons := l.outputDims.Channels()

	sel := make([]float32, numNeurons*spatialX*spatialY)
	for n, pos := range l.positions {
		sel[n*spatialX*spatialY+pos[0]*spatialY+pos[1]] = 1
	}
	selNode := constFlat(g, l.dtype, sel, numNeurons, spatialX*spatialY)

	grid := Reshape(x, x.Shape().Dim(0), spatialX*spatialY, channels)
	feats := Einsum("ns,bsc->bnc", selNode, grid)
	out := Einsum("bnc,cn->bn", feats, l.weightsNode(g))
	return l.finish(l.addBias(out))
}
