// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// TimeEmbed expands a flat [batch, features] node into its lagged copies,
// treating the batch axis as contiguous time. The result is
// [batch, features*numLags] with
//
//	out[b, f*numLags+l] = x[b-l, f]  for b >= l, and 0 otherwise.
//
// Lags vary fastest, so each feature's taps are adjacent in the output. With
// numLags == 0 the input is returned unchanged.
func TimeEmbed(x *Node, numLags int) *Node {
	return TimeEmbedDilated(x, numLags, 1)
}

// TimeEmbedDilated is TimeEmbed with tap l reading x[b-l*dilation, f],
// the form temporal layers use to spread their kernels over longer windows.
func TimeEmbedDilated(x *Node, numLags, dilation int) *Node {
	if numLags < 0 {
		Panicf("time embedding requires a non-negative lag count, got %d", numLags)
	}
	if numLags == 0 {
		return x
	}
	if x.Rank() != 2 {
		Panicf("time embedding expects a flat [batch, features] input, got %s", x.Shape())
	}
	if dilation < 1 {
		Panicf("time embedding requires dilation >= 1, got %d", dilation)
	}
	g := x.Graph()
	batch := x.Shape().Dim(0)
	features := x.Shape().Dim(1)

	// Shift matrix S[b, l, j] = 1 iff j == b - l*dilation: one lagged copy of
	// the batch per l, with rows before the start zeroed.
	idxShape := shapes.Make(dtypes.Int32, batch, numLags, batch)
	rows := Iota(g, idxShape, 0)
	lags := Iota(g, idxShape, 1)
	cols := Iota(g, idxShape, 2)
	if dilation > 1 {
		lags = MulScalar(lags, float64(dilation))
	}
	shift := ConvertDType(Equal(Sub(rows, cols), lags), x.DType())

	embedded := Einsum("blj,jf->blf", shift, x)
	embedded = TransposeAllAxes(embedded, 0, 2, 1)
	return Reshape(embedded, batch, features*numLags)
}
