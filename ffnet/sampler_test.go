package ffnet

import (
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/kovacspe/NDN3/layers"
)

// samplerReadout is a two-location sampler over a 3-pixel image followed by
// a linear readout.
func samplerReadout() *Config {
	return &Config{
		LayerSizes:    [][]int{{2}, {1}},
		LayerTypes:    []layers.Kind{layers.KindGridSample, layers.KindNormal},
		Activations:   []activations.Type{activations.TypeNone},
		NumLocations:  2,
		LocationsInit: "zeros",
	}
}

func assignReadout(t *testing.T, s *SamplerNetwork) {
	t.Helper()
	require.NoError(t, s.AssignParams([]LayerParams{
		{},
		{
			Weights: tensors.FromFlatDataAndDimensions([]float32{1, 10}, 2, 1),
			Biases:  tensors.FromFlatDataAndDimensions([]float32{0}, 1),
		},
	}))
}

func TestSamplerErrors(t *testing.T) {
	t.Run("missing-locations", func(t *testing.T) {
		cfg := samplerReadout()
		cfg.NumLocations = 0
		_, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, cfg)
		require.ErrorIs(t, err, layers.ErrMissingConfiguration)
		require.ErrorContains(t, err, "sampling locations")
	})

	t.Run("unknown-initializer", func(t *testing.T) {
		cfg := samplerReadout()
		cfg.LocationsInit = "uniform"
		_, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, cfg)
		require.ErrorIs(t, err, layers.ErrInvalidConfiguration)
		require.ErrorContains(t, err, "unknown locations initializer")
	})

	t.Run("location-network-odd-output", func(t *testing.T) {
		ctx := context.New()
		locNet, err := New(ctx, "loc", 2, &Config{
			LayerSizes: [][]int{{3}},
			LayerTypes: []layers.Kind{layers.KindNormal},
		})
		require.NoError(t, err)
		cfg := samplerReadout()
		cfg.NumLocations = 0
		cfg.LocationNetwork = locNet
		_, err = NewSampler(ctx, "samp", []int{1, 3, 1}, cfg)
		require.ErrorIs(t, err, layers.ErrInvalidConfiguration)
		require.ErrorContains(t, err, "want xy pairs")
	})

	t.Run("location-count-mismatch", func(t *testing.T) {
		cfg := samplerReadout()
		cfg.LayerSizes = [][]int{{3}, {1}}
		_, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, cfg)
		require.ErrorIs(t, err, layers.ErrInvalidConfiguration)
		require.ErrorContains(t, err, "samples 3 locations, the network provides 2")
	})

	t.Run("sampling-after-reshape", func(t *testing.T) {
		cfg := samplerReadout()
		cfg.LayerSizes = [][]int{{4}, {2}}
		cfg.LayerTypes = []layers.Kind{layers.KindNormal, layers.KindGridSample}
		_, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, cfg)
		require.ErrorIs(t, err, layers.ErrInvalidConfiguration)
		require.ErrorContains(t, err, "follows layers that reshape it")
	})

	t.Run("time-expanded-sampling", func(t *testing.T) {
		cfg := samplerReadout()
		cfg.TimeExpand = []int{2, 0}
		_, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, cfg)
		require.ErrorIs(t, err, layers.ErrInvalidConfiguration)
		require.ErrorContains(t, err, "time-expanded")
	})
}

func TestSamplerLocationsVariable(t *testing.T) {
	cfg := samplerReadout()
	cfg.NumLocations = 3
	cfg.LayerSizes = [][]int{{3}, {1}}
	s, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, cfg)
	require.NoError(t, err)

	require.Equal(t, 3, s.NumLocations())
	v := s.LocationsVar()
	require.NotNil(t, v)
	require.NoError(t, v.Shape().Check(dtypes.F32, 1, 6))

	want := []float32{-1, 0, 0, 0, 1, 0}
	require.NoError(t, s.SetLocations(tensors.FromFlatDataAndDimensions(want, 1, 6)))
	got, err := s.Locations()
	require.NoError(t, err)
	require.Equal(t, want, tensors.MustCopyFlatData[float32](got))

	err = s.SetLocations(tensors.FromFlatDataAndDimensions(want, 6))
	require.ErrorIs(t, err, layers.ErrShapeMismatch)
}

func TestSamplerBuild(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	s, err := NewSampler(ctx, "samp", []int{1, 3, 1}, samplerReadout())
	require.NoError(t, err)
	assignReadout(t, s)

	// Zero-initialized locations sample the image center.
	image := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 1, 3)
	got := context.MustExecOnce(backend, ctx, func(ctx *context.Context, image *Node) *Node {
		return s.Build(image)
	}, image)
	require.Equal(t, []float32{22}, tensors.MustCopyFlatData[float32](got))

	fitted := tensors.FromFlatDataAndDimensions([]float32{-1, 0, 1, 0}, 1, 4)
	require.NoError(t, s.SetLocations(fitted))
	got = context.MustExecOnce(backend, ctx, func(ctx *context.Context, image *Node) *Node {
		return s.Build(image)
	}, image)
	require.Equal(t, []float32{31}, tensors.MustCopyFlatData[float32](got))
}

func TestSamplerExplicitLocations(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	s, err := NewSampler(ctx, "samp", []int{1, 3, 1}, samplerReadout())
	require.NoError(t, err)
	assignReadout(t, s)

	image := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 10, 20, 30}, 2, 3)
	locations := tensors.FromFlatDataAndDimensions([]float32{-1, -1, 1, 1, 1, 1, -1, -1}, 2, 4)
	got := context.MustExecOnce(backend, ctx, func(ctx *context.Context, image, locations *Node) *Node {
		return s.Build(image, locations)
	}, image, locations)
	require.Equal(t, []float32{31, 130}, tensors.MustCopyFlatData[float32](got))
}

func TestSamplerInputCount(t *testing.T) {
	s, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, samplerReadout())
	require.NoError(t, err)
	require.Panics(t, func() { s.Build() })
	require.Panics(t, func() { s.Build(nil) })
	require.Panics(t, func() { s.Build(nil, nil, nil) })
}

func TestSamplerFitVariables(t *testing.T) {
	s, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, samplerReadout())
	require.NoError(t, err)

	all, err := s.FitVariables(s.FitAll())
	require.NoError(t, err)
	require.Len(t, all, 3)

	frozen, err := s.FitVariables([]FitSelection{{}, {Weights: true, Biases: true}})
	require.NoError(t, err)
	require.Len(t, frozen, 2)

	only, err := s.FitVariables([]FitSelection{{Locations: true}, {}})
	require.NoError(t, err)
	require.Len(t, only, 1)
	require.Same(t, s.LocationsVar(), only[0])
}

func TestSamplerLocationNetwork(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	locNet, err := New(ctx, "loc", 2, &Config{
		LayerSizes:  [][]int{{4}},
		LayerTypes:  []layers.Kind{layers.KindNormal},
		Activations: []activations.Type{activations.TypeNone},
	})
	require.NoError(t, err)
	require.NoError(t, locNet.AssignParams([]LayerParams{
		{
			Weights: tensors.FromFlatDataAndDimensions(make([]float32, 8), 2, 4),
			Biases:  tensors.FromFlatDataAndDimensions([]float32{-1, 0, 1, 0}, 4),
		},
	}))

	cfg := samplerReadout()
	cfg.NumLocations = 0
	cfg.LocationNetwork = locNet
	s, err := NewSampler(ctx, "samp", []int{1, 3, 1}, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, s.NumLocations())
	require.Nil(t, s.LocationsVar())
	_, err = s.Locations()
	require.ErrorIs(t, err, layers.ErrMissingConfiguration)
	assignReadout(t, s)

	image := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 1, 3)
	shift := tensors.FromFlatDataAndDimensions([]float32{0, 0}, 1, 2)
	got := context.MustExecOnce(backend, ctx, func(ctx *context.Context, image, shift *Node) *Node {
		return s.Build(image, locNet.Build(shift))
	}, image, shift)
	require.Equal(t, []float32{31}, tensors.MustCopyFlatData[float32](got))

	require.Panics(t, func() {
		context.MustExecOnce(backend, ctx, func(ctx *context.Context, image *Node) *Node {
			return s.Build(image)
		}, image)
	})
}

func TestSamplerNumParameters(t *testing.T) {
	s, err := NewSampler(context.New(), "samp", []int{1, 3, 1}, samplerReadout())
	require.NoError(t, err)

	// Readout weights and bias plus the four owned location coordinates.
	require.Equal(t, 7, s.NumParameters())
}
