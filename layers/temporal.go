// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Temporal convolves the input over time: it embeds its own (possibly
// dilated) lag window and maps the embedded [in*L] taps densely onto the
// declared units. The layer consumes the network's time expansion, so its
// input arrives unexpanded.
type Temporal struct {
	baseLayer
	numLags  int
	dilation int
}

func (l *Temporal) Build(x *Node) *Node {
	l.checkInput(x)
	embedded := TimeEmbedDilated(x, l.numLags, l.dilation)
	out := Dot(embedded, l.weightsNode(x.Graph()))
	return l.finish(l.addBias(out))
}

// TemporalSpecific gives every unit one private temporal kernel: it embeds
// its own lag window and projects each unit's taps through weights [L, U].
// Units are preserved; the layer consumes the network's time expansion.
type TemporalSpecific struct {
	baseLayer
	numLags  int
	dilation int
}

func (l *TemporalSpecific) Build(x *Node) *Node {
	l.checkInput(x)
	numUnits := l.outputDims.Size()
	embedded := TimeEmbedDilated(x, l.numLags, l.dilation)
	taps := Reshape(embedded, x.Shape().Dim(0), numUnits, l.numLags)
	out := Einsum("bul,lu->bu", taps, l.weightsNode(x.Graph()))
	return l.finish(l.addBias(out))
}
