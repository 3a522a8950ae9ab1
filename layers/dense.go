// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Dense is the fully connected layer behind the "normal" and "readout" kinds:
// out = act(x*W + b) with W shaped [input units, output units].
type Dense struct {
	baseLayer
}

func (l *Dense) Build(x *Node) *Node {
	l.checkInput(x)
	out := Dot(x, l.weightsNode(x.Graph()))
	return l.finish(l.addBias(out))
}

// Sep is a fully connected layer with each output unit's weights factorized
// into a channel part and a spatial part. The weights variable stacks both
// parts on its leading axis: rows [0, channels*lags) hold the channel
// weights, the remaining rows the spatial weights. The effective dense matrix
// is their outer product, matching the input's space-major, channel-fastest
// flat ordering.
type Sep struct {
	baseLayer
}

func (l *Sep) Build(x *Node) *Node {
	l.checkInput(x)
	g := x.Graph()
	w := l.weightsNode(g)
	numChannels := l.inputDims.Channels() * l.inputDims.LagsSize()
	numSpace := l.inputDims.SpatialSize()
	numUnits := l.outputDims.Size()

	wChannel := SliceAxis(w, 0, AxisRangeFromStart(numChannels))
	wSpace := SliceAxis(w, 0, AxisRangeToEnd(numChannels))
	full := Einsum("su,cu->scu", wSpace, wChannel)
	full = Reshape(full, numSpace*numChannels, numUnits)

	out := Dot(x, full)
	return l.finish(l.addBias(out))
}
