package layers

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/kovacspe/NDN3/layers/reg"
)

func checkVar(t *testing.T, v *context.Variable, dims []int) {
	t.Helper()
	if dims == nil {
		require.Nil(t, v)
		return
	}
	require.NotNil(t, v)
	require.NoError(t, v.Shape().Check(dtypes.F32, dims...))
}

func TestFactoryShapes(t *testing.T) {
	tests := []struct {
		name       string
		spec       Spec
		wantOut    Dims
		wantFilter Dims
		wantW      []int
		wantB      []int
	}{
		{
			name:    "dense",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}},
			wantOut: Dims{1, 4, 1},
			wantW:   []int{8, 4},
			wantB:   []int{4},
		},
		{
			name:    "dense-lagged-input",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1, 3}, OutputSize: Dims{1, 4, 1}},
			wantOut: Dims{1, 4, 1},
			wantW:   []int{24, 4},
			wantB:   []int{4},
		},
		{
			name:    "readout",
			spec:    Spec{Kind: KindReadout, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 2, 1}},
			wantOut: Dims{1, 2, 1},
			wantW:   []int{8, 2},
			wantB:   []int{2},
		},
		{
			name:    "sep",
			spec:    Spec{Kind: KindSep, InputDims: Dims{2, 6, 5}, OutputSize: Dims{1, 10, 1}},
			wantOut: Dims{1, 10, 1},
			wantW:   []int{32, 10},
			wantB:   []int{10},
		},
		{
			name:    "sep-lagged-input",
			spec:    Spec{Kind: KindSep, InputDims: Dims{2, 6, 5, 2}, OutputSize: Dims{1, 10, 1}},
			wantOut: Dims{1, 10, 1},
			wantW:   []int{34, 10},
			wantB:   []int{10},
		},
		{
			name:       "conv",
			spec:       Spec{Kind: KindConv, InputDims: Dims{2, 16, 16}, OutputSize: Dims{1, 6, 1}, FilterWidth: 5},
			wantOut:    Dims{6, 16, 16},
			wantFilter: Dims{2, 5, 5},
			wantW:      []int{5, 5, 2, 6},
			wantB:      []int{6},
		},
		{
			name:       "conv-1d",
			spec:       Spec{Kind: KindConv, InputDims: Dims{1, 24, 1}, OutputSize: Dims{1, 6, 1}, FilterWidth: 5},
			wantOut:    Dims{6, 24, 1},
			wantFilter: Dims{1, 5, 1},
			wantW:      []int{5, 1, 1, 6},
			wantB:      []int{6},
		},
		{
			name:       "conv-lagged-input",
			spec:       Spec{Kind: KindConv, InputDims: Dims{2, 16, 16, 3}, OutputSize: Dims{1, 4, 1}, FilterWidth: 5},
			wantOut:    Dims{4, 16, 16},
			wantFilter: Dims{6, 5, 5},
			wantW:      []int{5, 5, 6, 4},
			wantB:      []int{4},
		},
		{
			name:       "conv-full-field",
			spec:       Spec{Kind: KindConv, InputDims: Dims{2, 12, 10}, OutputSize: Dims{1, 3, 1}},
			wantOut:    Dims{3, 12, 10},
			wantFilter: Dims{2, 12, 10},
			wantW:      []int{12, 10, 2, 3},
			wantB:      []int{3},
		},
		{
			name:       "conv-strided",
			spec:       Spec{Kind: KindConv, InputDims: Dims{1, 16, 16}, OutputSize: Dims{1, 3, 1}, FilterWidth: 4, Stride: 2},
			wantOut:    Dims{3, 8, 8},
			wantFilter: Dims{1, 4, 4},
			wantW:      []int{4, 4, 1, 3},
			wantB:      []int{3},
		},
		{
			name:       "conv-strided-uneven",
			spec:       Spec{Kind: KindConv, InputDims: Dims{1, 16, 1}, OutputSize: Dims{1, 3, 1}, FilterWidth: 4, Stride: 3},
			wantOut:    Dims{3, 6, 1},
			wantFilter: Dims{1, 4, 1},
			wantW:      []int{4, 1, 1, 3},
			wantB:      []int{3},
		},
		{
			name:       "conv_sep",
			spec:       Spec{Kind: KindConvSep, InputDims: Dims{2, 8, 8}, OutputSize: Dims{1, 4, 1}, FilterWidth: 3},
			wantOut:    Dims{4, 8, 8},
			wantFilter: Dims{2, 3, 3},
			wantW:      []int{11, 4},
			wantB:      []int{4},
		},
		{
			name:       "biconv",
			spec:       Spec{Kind: KindBiconv, InputDims: Dims{1, 16, 1}, OutputSize: Dims{1, 4, 1}, FilterWidth: 5},
			wantOut:    Dims{8, 8, 1},
			wantFilter: Dims{1, 5, 1},
			wantW:      []int{5, 1, 1, 4},
			wantB:      []int{4},
		},
		{
			name:       "conv_lnl",
			spec:       Spec{Kind: KindConvLNL, InputDims: Dims{2, 16, 16}, OutputSize: Dims{1, 6, 1}, FilterWidth: 5},
			wantOut:    Dims{6, 16, 16},
			wantFilter: Dims{2, 5, 5},
			wantW:      []int{5, 5, 2, 6},
			wantB:      []int{6},
		},
		{
			name: "conv_xy",
			spec: Spec{Kind: KindConvXY, InputDims: Dims{3, 8, 8}, OutputSize: Dims{1, 2, 1},
				FilterWidth: 3, Positions: [][2]int{{0, 0}, {3, 4}}},
			wantOut:    Dims{2, 1, 1},
			wantFilter: Dims{3, 3, 3},
			wantW:      []int{3, 3, 3, 2},
			wantB:      []int{2},
		},
		{
			name: "conv_xy-strided",
			spec: Spec{Kind: KindConvXY, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 1, 1},
				FilterWidth: 3, Stride: 2, Positions: [][2]int{{3, 0}}},
			wantOut:    Dims{1, 1, 1},
			wantFilter: Dims{1, 3, 1},
			wantW:      []int{3, 1, 1, 1},
			wantB:      []int{1},
		},
		{
			name: "conv_readout",
			spec: Spec{Kind: KindConvReadout, InputDims: Dims{4, 8, 8}, OutputSize: Dims{1, 3, 1},
				Positions: [][2]int{{0, 0}, {3, 4}, {7, 7}}},
			wantOut: Dims{3, 1, 1},
			wantW:   []int{4, 3},
			wantB:   []int{3},
		},
		{
			name:    "temporal",
			spec:    Spec{Kind: KindTemporal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 6, 1}, NumLags: 4},
			wantOut: Dims{1, 6, 1},
			wantW:   []int{32, 6},
			wantB:   []int{6},
		},
		{
			name:    "temporal_specific",
			spec:    Spec{Kind: KindTemporalSpecific, InputDims: Dims{1, 6, 1}, OutputSize: Dims{1, 6, 1}, NumLags: 3},
			wantOut: Dims{1, 6, 1},
			wantW:   []int{3, 6},
			wantB:   []int{6},
		},
		{
			name:    "spk_nl",
			spec:    Spec{Kind: KindSpkNL, InputDims: Dims{1, 5, 1}},
			wantOut: Dims{1, 5, 1},
			wantW:   []int{5},
			wantB:   []int{5},
		},
		{
			name:    "filter",
			spec:    Spec{Kind: KindFilter, InputDims: Dims{2, 4, 4}},
			wantOut: Dims{2, 4, 4},
			wantW:   []int{32},
			wantB:   []int{32},
		},
		{
			name:    "filter-lagged-input",
			spec:    Spec{Kind: KindFilter, InputDims: Dims{2, 4, 4, 2}},
			wantOut: Dims{4, 4, 4},
			wantW:   []int{64},
			wantB:   []int{64},
		},
		{
			name:    "add",
			spec:    Spec{Kind: KindAdd, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}},
			wantOut: Dims{1, 4, 1},
			wantW:   []int{2, 4},
			wantB:   []int{4},
		},
		{
			name:    "mult",
			spec:    Spec{Kind: KindMult, InputDims: Dims{1, 6, 1}, OutputSize: Dims{1, 2, 1}},
			wantOut: Dims{1, 2, 1},
			wantW:   []int{2, 2},
			wantB:   []int{2},
		},
		{
			name:    "spike_history",
			spec:    Spec{Kind: KindSpikeHistory, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}},
			wantOut: Dims{1, 4, 1},
			wantW:   []int{2, 4},
			wantB:   []int{4},
		},
		{
			name:    "grid_shift-global",
			spec:    Spec{Kind: KindGridShift, InputDims: Dims{1, 2, 1}, OutputSize: Dims{1, 5, 1}},
			wantOut: Dims{10, 1, 1},
			wantB:   []int{10},
		},
		{
			name:    "grid_shift-per-neuron",
			spec:    Spec{Kind: KindGridShift, InputDims: Dims{1, 10, 1}, OutputSize: Dims{1, 5, 1}},
			wantOut: Dims{10, 1, 1},
			wantB:   []int{10},
		},
		{
			name:    "grid_sample",
			spec:    Spec{Kind: KindGridSample, InputDims: Dims{1, 8, 8}, OutputSize: Dims{1, 4, 1}},
			wantOut: Dims{4, 1, 1},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			layer, _, err := New(context.New(), test.spec)
			require.NoError(t, err)
			require.Equal(t, test.spec.Kind, layer.Kind())
			require.Equal(t, test.wantOut, layer.OutputDims())
			require.Equal(t, test.wantFilter, layer.FilterDims())
			checkVar(t, layer.WeightsVar(), test.wantW)
			checkVar(t, layer.BiasesVar(), test.wantB)
		})
	}
}

func TestFactoryErrors(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		wantErr  error
		contains string
	}{
		{
			name:     "unknown-kind",
			spec:     Spec{Kind: Kind(99), InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}},
			wantErr:  ErrInvalidConfiguration,
			contains: "unknown layer kind",
		},
		{
			name:     "missing-size",
			spec:     Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}},
			wantErr:  ErrMissingConfiguration,
			contains: "layer size",
		},
		{
			name:    "bad-size-rank",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{4, 4}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:     "temporal-without-lags",
			spec:     Spec{Kind: KindTemporal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 6, 1}},
			wantErr:  ErrInvalidConfiguration,
			contains: "time expansion",
		},
		{
			name:    "temporal_specific-changes-units",
			spec:    Spec{Kind: KindTemporalSpecific, InputDims: Dims{1, 6, 1}, OutputSize: Dims{1, 5, 1}, NumLags: 2},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:     "biconv-odd-width",
			spec:     Spec{Kind: KindBiconv, InputDims: Dims{1, 15, 1}, OutputSize: Dims{1, 4, 1}, FilterWidth: 3},
			wantErr:  ErrInvalidConfiguration,
			contains: "even output width",
		},
		{
			name:    "conv_xy-missing-positions",
			spec:    Spec{Kind: KindConvXY, InputDims: Dims{1, 8, 8}, OutputSize: Dims{1, 2, 1}, FilterWidth: 3},
			wantErr: ErrMissingConfiguration,
		},
		{
			name: "conv_xy-wrong-position-count",
			spec: Spec{Kind: KindConvXY, InputDims: Dims{1, 8, 8}, OutputSize: Dims{1, 2, 1},
				FilterWidth: 3, Positions: [][2]int{{0, 0}}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name: "conv_xy-position-outside-strided-grid",
			spec: Spec{Kind: KindConvXY, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 1, 1},
				FilterWidth: 3, Stride: 2, Positions: [][2]int{{4, 0}}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name: "conv_readout-position-outside-grid",
			spec: Spec{Kind: KindConvReadout, InputDims: Dims{4, 8, 8}, OutputSize: Dims{1, 1, 1},
				Positions: [][2]int{{8, 0}}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "add-indivisible",
			spec:    Spec{Kind: KindAdd, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 3, 1}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "mult-single-stream",
			spec:    Spec{Kind: KindMult, InputDims: Dims{1, 6, 1}, OutputSize: Dims{1, 6, 1}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "spike_history-indivisible",
			spec:    Spec{Kind: KindSpikeHistory, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 3, 1}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "grid_shift-bad-input",
			spec:    Spec{Kind: KindGridShift, InputDims: Dims{1, 3, 1}, OutputSize: Dims{1, 5, 1}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:     "grid-kind-inhibitory",
			spec:     Spec{Kind: KindGridShift, InputDims: Dims{1, 2, 1}, OutputSize: Dims{1, 5, 1}, NumInhibitory: 1},
			wantErr:  ErrInvalidConfiguration,
			contains: "coordinates",
		},
		{
			name:    "too-many-inhibitory",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}, NumInhibitory: 5},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "unknown-initializer",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}, WeightsInit: "xavier"},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "unknown-regularization",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}, Reg: reg.Spec{"ridge": 1}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "negative-regularization",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}, Reg: reg.Spec{"l2": -1}},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "negative-stride",
			spec:    Spec{Kind: KindConv, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 2, 1}, FilterWidth: 3, Stride: -1},
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "bad-activation",
			spec:    Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}, Activation: activations.Type(99)},
			wantErr: ErrInvalidConfiguration,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := New(context.New(), test.spec)
			require.ErrorIs(t, err, test.wantErr)
			if test.contains != "" {
				require.ErrorContains(t, err, test.contains)
			}
		})
	}

	t.Run("nil-context", func(t *testing.T) {
		_, _, err := New(nil, Spec{Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}})
		require.ErrorIs(t, err, ErrMissingConfiguration)
	})

	t.Run("index-in-message", func(t *testing.T) {
		_, _, err := New(context.New(), Spec{Index: 3, Kind: KindNormal, InputDims: Dims{1, 8, 1}})
		require.ErrorContains(t, err, "layer #3")
	})
}

// minimalSpec returns a valid spec for the kind, over an 8x8 single-channel
// input.
func minimalSpec(kind Kind) Spec {
	spec := Spec{Kind: kind, InputDims: Dims{1, 8, 8}, OutputSize: Dims{1, 4, 1}}
	switch kind {
	case KindConv, KindConvSep, KindBiconv, KindConvLNL:
		spec.FilterWidth = 3
	case KindConvXY:
		spec.FilterWidth = 3
		spec.Positions = [][2]int{{0, 0}, {3, 4}, {7, 7}, {1, 2}}
	case KindConvReadout:
		spec.Positions = [][2]int{{0, 0}, {3, 4}, {7, 7}, {1, 2}}
	case KindTemporal:
		spec.NumLags = 2
	case KindTemporalSpecific:
		spec.OutputSize = Dims{1, 64, 1}
		spec.NumLags = 2
	case KindGridShift:
		spec.OutputSize = Dims{1, 32, 1}
	}
	return spec
}

func TestFactoryDispatch(t *testing.T) {
	for _, kind := range KindValues() {
		t.Run(kind.String(), func(t *testing.T) {
			layer, lagsConsumed, err := New(context.New(), minimalSpec(kind))
			require.NoError(t, err)
			require.Equal(t, kind, layer.Kind())
			require.Equal(t, kind.ConsumesLags(), lagsConsumed)
		})
	}
}

func TestFactoryScopes(t *testing.T) {
	ctx := context.New()
	_, _, err := New(ctx, Spec{Index: 0, Kind: KindNormal, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 4, 1}})
	require.NoError(t, err)
	_, _, err = New(ctx, Spec{Index: 2, Kind: KindConv, InputDims: Dims{1, 8, 1}, OutputSize: Dims{1, 2, 1}, FilterWidth: 3})
	require.NoError(t, err)

	require.NotNil(t, ctx.GetVariableByScopeAndName("/layer_0", "weights"))
	require.NotNil(t, ctx.GetVariableByScopeAndName("/layer_0", "biases"))
	require.NotNil(t, ctx.GetVariableByScopeAndName("/conv_layer_2", "weights"))
	require.Nil(t, ctx.GetVariableByScopeAndName("/layer_1", "weights"))
}
