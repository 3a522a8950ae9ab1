// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

// Package reg defines the weight penalties that layers can attach to their
// parameters.
//
// A layer carries a Spec mapping penalty names to strengths; Compute turns it
// into a scalar graph node. The network sums the per-layer nodes and feeds
// the total to the trainer loss (train.AddLoss).
package reg

import (
	"maps"
	"slices"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/pkg/errors"
)

// Spec maps penalty names to non-negative strengths. A nil or empty Spec
// means no regularization. Entries with strength 0 are ignored.
type Spec map[string]float64

// Penalty computes an unweighted scalar penalty for a weights node. The
// leading axis of w indexes the input taps of each output unit, which is the
// axis the smoothness penalties differentiate along.
type Penalty func(w *Node) *Node

// Penalties maps the recognized penalty names to their implementations.
//
// "d2t" and "d2x" share the same second-difference math and differ only in
// which weight geometry they are meant for: temporal kernels store lags on
// the leading axis, spatial kernels store grid positions there.
var Penalties = map[string]Penalty{
	"l1":    L1,
	"l2":    L2,
	"d2t":   D2T,
	"d2x":   D2X,
	"norm2": Norm2,
}

// Validate checks that every name in the spec is recognized and every
// strength is non-negative.
func Validate(spec Spec) error {
	for _, name := range slices.Sorted(maps.Keys(spec)) {
		if _, ok := Penalties[name]; !ok {
			return errors.Errorf("unknown regularization type %q (valid: %v)",
				name, slices.Sorted(maps.Keys(Penalties)))
		}
		if spec[name] < 0 {
			return errors.Errorf("regularization %q has negative strength %g", name, spec[name])
		}
	}
	return nil
}

// Compute returns the weighted sum of the spec's penalties over w, or nil if
// the spec holds no active penalty. Penalties are summed in name order so the
// graph is deterministic for a given spec.
func Compute(spec Spec, w *Node) *Node {
	var total *Node
	for _, name := range slices.Sorted(maps.Keys(spec)) {
		strength := spec[name]
		if strength == 0 {
			continue
		}
		p := MulScalar(Penalties[name](w), strength)
		if total == nil {
			total = p
		} else {
			total = Add(total, p)
		}
	}
	return total
}

// L1 is the sum of absolute values.
func L1(w *Node) *Node {
	return ReduceAllSum(Abs(w))
}

// L2 is the sum of squares.
func L2(w *Node) *Node {
	return ReduceAllSum(Square(w))
}

// D2T penalizes curvature along the leading axis, which holds the lag taps of
// temporal kernels.
func D2T(w *Node) *Node {
	return secondDifference(w, 0)
}

// D2X penalizes curvature along the spatial axes. For rank-4 convolution
// kernels [width, height, channels, filters] both spatial axes contribute;
// for flat weights only the leading axis does.
func D2X(w *Node) *Node {
	p := secondDifference(w, 0)
	if w.Rank() == 4 {
		p = Add(p, secondDifference(w, 1))
	}
	return p
}

// Norm2 pulls the squared L2 norm of each output unit towards one. The last
// axis indexes output units; all other axes are that unit's taps.
func Norm2(w *Node) *Node {
	sq := Square(w)
	if w.Rank() > 1 {
		axes := make([]int, 0, w.Rank()-1)
		for axis := 0; axis < w.Rank()-1; axis++ {
			axes = append(axes, axis)
		}
		sq = ReduceSum(sq, axes...)
	}
	return ReduceAllSum(Square(AddScalar(sq, -1)))
}

// secondDifference sums the squared discrete second derivative along axis.
// Axes too short to have a second difference contribute zero.
func secondDifference(w *Node, axis int) *Node {
	if w.Shape().Dim(axis) < 3 {
		return ScalarZero(w.Graph(), w.DType())
	}
	d := ConsecutiveDifference(w, axis, false)
	d = ConsecutiveDifference(d, axis, false)
	return ReduceAllSum(Square(d))
}
