package reg

import (
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

func evalPenalty(t *testing.T, fn Penalty, w *tensors.Tensor) float32 {
	backend := graphtest.BuildTestBackend()
	got := MustExecOnce(backend, func(w *Node) *Node { return fn(w) }, w)
	flat := tensors.MustCopyFlatData[float32](got)
	require.Len(t, flat, 1)
	return flat[0]
}

func TestPenalties(t *testing.T) {
	w := tensors.FromFlatDataAndDimensions([]float32{1, -2, 3, 0}, 2, 2)

	t.Run("l1", func(t *testing.T) {
		require.InDelta(t, 6.0, evalPenalty(t, L1, w), 1e-5)
	})
	t.Run("l2", func(t *testing.T) {
		require.InDelta(t, 14.0, evalPenalty(t, L2, w), 1e-5)
	})
	t.Run("norm2", func(t *testing.T) {
		// Unit squared norms are 10 and 4, so (10-1)^2 + (4-1)^2.
		require.InDelta(t, 90.0, evalPenalty(t, Norm2, w), 1e-5)
	})
	t.Run("norm2-flat", func(t *testing.T) {
		flat := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3)
		require.InDelta(t, 73.0, evalPenalty(t, Norm2, flat), 1e-5)
	})
	t.Run("d2t", func(t *testing.T) {
		// Both unit columns are {1, 4, 9}, curvature 2 each.
		quadratic := tensors.FromFlatDataAndDimensions([]float32{1, 1, 4, 4, 9, 9}, 3, 2)
		require.InDelta(t, 8.0, evalPenalty(t, D2T, quadratic), 1e-5)
	})
	t.Run("d2t-too-short", func(t *testing.T) {
		require.InDelta(t, 0.0, evalPenalty(t, D2T, w), 1e-5)
	})
	t.Run("d2x-kernel", func(t *testing.T) {
		// kernel[x, y] = x^2 + y^2, curvature 2 along both spatial axes.
		kernel := tensors.FromFlatDataAndDimensions(
			[]float32{0, 1, 4, 1, 2, 5, 4, 5, 8}, 3, 3, 1, 1)
		require.InDelta(t, 24.0, evalPenalty(t, D2X, kernel), 1e-5)
	})
}

func TestCompute(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	w := tensors.FromFlatDataAndDimensions([]float32{1, -2, 3}, 3)

	got := MustExecOnce(backend, func(w *Node) *Node {
		return Compute(Spec{"l1": 0.5, "l2": 2}, w)
	}, w)
	require.InDelta(t, 31.0, tensors.MustCopyFlatData[float32](got)[0], 1e-5)

	MustExecOnce(backend, func(w *Node) *Node {
		require.Nil(t, Compute(nil, w))
		require.Nil(t, Compute(Spec{}, w))
		require.Nil(t, Compute(Spec{"l1": 0}, w))
		return w
	}, w)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(nil))
	require.NoError(t, Validate(Spec{"l1": 0.1, "d2x": 0}))

	err := Validate(Spec{"ridge": 1})
	require.ErrorContains(t, err, "unknown regularization")

	err = Validate(Spec{"l2": -0.5})
	require.ErrorContains(t, err, "negative strength")
}
