// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gopjrt/dtypes"
)

// GridShift offsets a learned per-neuron grid by an input shift signal. The
// grid lives in the biases variable as [2N] xy pairs (x and y adjacent per
// neuron); the input provides either one global xy shift (2 values) or one
// shift per neuron (2N values). The output is the shifted grid, [2N, 1, 1].
type GridShift struct {
	baseLayer
	numNeurons int
}

func (l *GridShift) Build(x *Node) *Node {
	l.checkInput(x)
	g := x.Graph()
	batch := x.Shape().Dim(0)

	shift := x
	if l.inputDims.Size() == 2 {
		shift = InsertAxes(shift, 1)
		shift = BroadcastToDims(shift, batch, l.numNeurons, 2)
		shift = Reshape(shift, batch, 2*l.numNeurons)
	}
	grid := l.biases.ValueGraph(g)
	return Add(shift, InsertAxes(grid, 0))
}

// GridSample bilinearly samples the input grid at externally provided xy
// locations in [-1, 1] squared, summing over channels, one output per
// location. The layer owns no variables; sampling is differentiable in the
// locations through the bilinear corner weights, so locations can be fitted.
//
// GridSample only works inside a sampler network, which routes the image and
// the locations to BuildSampled.
type GridSample struct {
	baseLayer
	numNeurons int
}

func (l *GridSample) Build(x *Node) *Node {
	Panicf("layer %q samples at external locations; build it through a sampler network", l.name)
	return nil
}

// BuildSampled samples image (flat, matching the layer input dimensions) at
// locations, shaped [1, 2N] for shared locations or [batch, 2N] for
// per-example ones, with x and y adjacent per location.
func (l *GridSample) BuildSampled(image, locations *Node) *Node {
	l.checkInput(image)
	if locations.Rank() != 2 || locations.Shape().Dim(1) != 2*l.numNeurons {
		Panicf("layer %q expects locations shaped [1, %d] or [batch, %d], got %s",
			l.name, 2*l.numNeurons, 2*l.numNeurons, locations.Shape())
	}
	batch := image.Shape().Dim(0)
	locBatch := locations.Shape().Dim(0)
	if locBatch != 1 && locBatch != batch {
		Panicf("layer %q: locations batch %d does not match image batch %d",
			l.name, locBatch, batch)
	}
	spatialX, spatialY := l.inputDims.Spatial()
	img := toImage(&l.baseLayer, image)

	pairs := Reshape(locations, locBatch, l.numNeurons, 2)
	px := toGridPosition(Reshape(SliceAxis(pairs, 2, AxisElem(0)), locBatch, l.numNeurons), spatialX)
	py := toGridPosition(Reshape(SliceAxis(pairs, 2, AxisElem(1)), locBatch, l.numNeurons), spatialY)
	sampleX := bilinearMatrix(px, spatialX) // [locBatch, N, X]
	sampleY := bilinearMatrix(py, spatialY) // [locBatch, N, Y]

	var out *Node
	if locBatch == 1 {
		sampleX = Reshape(sampleX, l.numNeurons, spatialX)
		sampleY = Reshape(sampleY, l.numNeurons, spatialY)
		out = Einsum("nx,bxyc->bnyc", sampleX, img)
		out = Einsum("bnyc,ny->bnc", out, sampleY)
	} else {
		out = Einsum("bnx,bxyc->bnyc", sampleX, img)
		out = Einsum("bnyc,bny->bnc", out, sampleY)
	}
	return ReduceSum(out, -1)
}

// toGridPosition maps locations from [-1, 1] to [0, extent-1] grid
// coordinates, clamping anything outside the domain to the border.
func toGridPosition(loc *Node, extent int) *Node {
	g := loc.Graph()
	dtype := loc.DType()
	p := MulScalar(AddScalar(loc, 1), float64(extent-1)/2)
	return Clip(p, ScalarZero(g, dtype), Scalar(g, dtype, float64(extent-1)))
}

// bilinearMatrix turns grid positions [d, N] into sampling matrices
// [d, N, extent] that pick the two nearest grid lines weighted by proximity.
// The fractional part keeps the gradient with respect to the positions.
func bilinearMatrix(p *Node, extent int) *Node {
	g := p.Graph()
	dtype := p.DType()
	p0 := Floor(p)
	frac := Sub(p, p0)

	lo := ConvertDType(p0, dtypes.Int32)
	hi := ConvertDType(
		Clip(AddScalar(p0, 1), ScalarZero(g, dtype), Scalar(g, dtype, float64(extent-1))),
		dtypes.Int32)
	near := OneHot(lo, extent, dtype)
	far := OneHot(hi, extent, dtype)

	wFar := InsertAxes(frac, -1)
	wNear := InsertAxes(Sub(OnesLike(frac), frac), -1)
	return Add(Mul(near, wNear), Mul(far, wFar))
}
