// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Additive sums equally sized input streams with per-stream, per-unit
// weights. The input concatenates numStreams streams of U units each;
// weights are [numStreams, U].
type Additive struct {
	baseLayer
	numStreams int
}

func (l *Additive) Build(x *Node) *Node {
	l.checkInput(x)
	numUnits := l.outputDims.Size()
	streams := Reshape(x, x.Shape().Dim(0), l.numStreams, numUnits)
	out := Einsum("bku,ku->bu", streams, l.weightsNode(x.Graph()))
	return l.finish(l.addBias(out))
}

// Multiplicative gates its first input stream by the remaining ones: the
// output is base*(1 + sum of weighted modulator streams) per unit. Weights
// are [numStreams-1, U] and start at zero, so the layer is initially the
// identity on the base stream.
type Multiplicative struct {
	baseLayer
	numStreams int
}

func (l *Multiplicative) Build(x *Node) *Node {
	l.checkInput(x)
	g := x.Graph()
	batch := x.Shape().Dim(0)
	numUnits := l.outputDims.Size()
	streams := Reshape(x, batch, l.numStreams, numUnits)

	base := Reshape(SliceAxis(streams, 1, AxisElem(0)), batch, numUnits)
	modulators := SliceAxis(streams, 1, AxisRangeToEnd(1))
	gain := OnePlus(Einsum("bku,ku->bu", modulators, l.weightsNode(g)))

	out := Mul(base, gain)
	return l.finish(l.addBias(out))
}

// Filter applies an independent gain and bias to every unit, leaving the
// dimensions unchanged (lags folded into channels).
type Filter struct {
	baseLayer
}

func (l *Filter) Build(x *Node) *Node {
	l.checkInput(x)
	w := l.weightsNode(x.Graph())
	out := Mul(x, InsertAxes(w, 0))
	return l.finish(l.addBias(out))
}

// SpkNL is a parametric spiking nonlinearity: softplus(w*x + b) per unit.
// Any configured activation is ignored; the softplus is the nonlinearity.
type SpkNL struct {
	baseLayer
}

func (l *SpkNL) Build(x *Node) *Node {
	l.checkInput(x)
	w := l.weightsNode(x.Graph())
	z := l.addBias(Mul(x, InsertAxes(w, 0)))
	return l.finish(softplus(z))
}

// softplus computes log(1+exp(x)) in the overflow-safe form
// max(x, 0) + log1p(exp(-|x|)).
func softplus(x *Node) *Node {
	return Add(Max(x, ZerosLike(x)), Log(OnePlus(Exp(Neg(Abs(x))))))
}

// SpikeHistory projects each unit's own lag window through a per-unit
// temporal kernel: input [U*L] with lags adjacent per unit, weights [L, U],
// output [U].
type SpikeHistory struct {
	baseLayer
	numLags int
}

func (l *SpikeHistory) Build(x *Node) *Node {
	l.checkInput(x)
	numUnits := l.outputDims.Size()
	taps := Reshape(x, x.Shape().Dim(0), numUnits, l.numLags)
	out := Einsum("bul,lu->bu", taps, l.weightsNode(x.Graph()))
	return l.finish(l.addBias(out))
}
