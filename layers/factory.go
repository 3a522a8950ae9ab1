// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/initializer"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/random"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/kovacspe/NDN3/layers/reg"
)

// Spec carries one layer's fully resolved configuration. The network
// assembler produces Specs by broadcasting its per-layer configuration
// lists; direct construction works the same way.
type Spec struct {
	// Index of the layer within its network, used in scope names and error
	// messages.
	Index int

	// Kind selects the layer implementation.
	Kind Kind

	// InputDims is the output dimensions of the previous layer (or the
	// network input), including the trailing lag entry when the network
	// time-expands this layer's input.
	InputDims Dims

	// OutputSize is the declared layer size, normalized to rank 3 (see
	// SizeDims). The filter and spk_nl kinds derive their size from the
	// input and ignore it.
	OutputSize Dims

	// DType of the layer variables. Defaults to float32.
	DType dtypes.DType

	// Activation applied after the kernel. Ignored by spk_nl (which is its
	// own nonlinearity) and by the grid kinds (which produce coordinates).
	Activation activations.Type

	// WeightsInit and BiasesInit name the variable initializers:
	// "trunc_normal", "normal", "zeros", "ones" or "glorot_uniform". Empty
	// picks the kind's default.
	WeightsInit string
	BiasesInit  string

	// Reg configures the weight penalties by name.
	Reg reg.Spec

	// NumInhibitory trailing units (filters, for the convolutional kinds)
	// have their outputs sign-flipped so they contribute negatively
	// downstream.
	NumInhibitory int

	// Positive clamps weights at zero on use.
	Positive bool

	// Normalize, when > 0, L2-normalizes each unit's weights on use.
	Normalize int

	// FilterWidth is the convolution filter width; 0 spans the input grid.
	FilterWidth int

	// Stride is the convolution shift spacing. 0 means 1.
	Stride int

	// Positions fixes the xy readout points of the conv_xy and conv_readout
	// kinds, one per filter or neuron.
	Positions [][2]int

	// NumLags is the network's declared time expansion for this layer. The
	// temporal kinds consume it internally and require it to be positive.
	NumLags int

	// Dilation spreads the taps of temporal kernels. 0 means 1.
	Dilation int

	// RNG drives the random initializers. nil creates a fresh generator.
	RNG *random.Random
}

// New constructs the layer described by spec, creating its variables in ctx
// under the layer's scope name. The second result reports whether the layer
// consumed the spec's time expansion itself, in which case the network must
// not expand the layer's input.
func New(ctx *context.Context, spec Spec) (Layer, bool, error) {
	if ctx == nil {
		return nil, false, errors.Wrap(ErrMissingConfiguration, "graph context is required")
	}
	if !spec.Kind.IsAKind() {
		return nil, false, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: unknown layer kind %d (valid kinds: %s)",
			spec.Index, int(spec.Kind), strings.Join(KindStrings(), ", "))
	}
	if err := spec.validate(); err != nil {
		return nil, false, err
	}
	layer, err := kindBuilders[spec.Kind](ctx, &spec)
	if err != nil {
		return nil, false, err
	}
	klog.V(1).Infof("assembled %s: %v -> %v", layer.Name(), layer.InputDims(), layer.OutputDims())
	return layer, spec.Kind.ConsumesLags(), nil
}

var kindBuilders = map[Kind]func(ctx *context.Context, s *Spec) (Layer, error){
	KindNormal:           newDense,
	KindReadout:          newDense,
	KindSep:              newSep,
	KindAdd:              newAdditive,
	KindMult:             newMultiplicative,
	KindFilter:           newFilter,
	KindSpkNL:            newSpkNL,
	KindSpikeHistory:     newSpikeHistory,
	KindConv:             newConv,
	KindConvLNL:          newConv,
	KindConvSep:          newConvSep,
	KindBiconv:           newBiconv,
	KindConvXY:           newConvXY,
	KindConvReadout:      newConvReadout,
	KindTemporal:         newTemporal,
	KindTemporalSpecific: newTemporalSpecific,
	KindGridShift:        newGridShift,
	KindGridSample:       newGridSample,
}

// validate checks the kind-independent parts of the spec and fills defaults.
func (s *Spec) validate() error {
	if len(s.InputDims) == 0 {
		return errors.Wrapf(ErrMissingConfiguration, "layer #%d: input dimensions are required", s.Index)
	}
	if err := s.InputDims.Validate(); err != nil {
		return errors.WithMessagef(err, "layer #%d input", s.Index)
	}
	if s.NumInhibitory < 0 {
		return errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: negative inhibitory unit count %d", s.Index, s.NumInhibitory)
	}
	if s.Normalize < 0 {
		return errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: negative normalization mode %d", s.Index, s.Normalize)
	}
	if s.NumLags < 0 {
		return errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: negative time expansion %d", s.Index, s.NumLags)
	}
	if s.Stride < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "layer #%d: negative stride %d", s.Index, s.Stride)
	} else if s.Stride == 0 {
		s.Stride = 1
	}
	if s.Dilation < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "layer #%d: negative dilation %d", s.Index, s.Dilation)
	} else if s.Dilation == 0 {
		s.Dilation = 1
	}
	if !slices.Contains(activations.TypeValues(), s.Activation) {
		return errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: unknown activation %d", s.Index, int(s.Activation))
	}
	if err := reg.Validate(s.Reg); err != nil {
		return errors.Wrapf(ErrInvalidConfiguration, "layer #%d: %v", s.Index, err)
	}
	if s.DType == dtypes.InvalidDType {
		s.DType = dtypes.Float32
	}
	if s.RNG == nil {
		s.RNG = random.New()
	}
	return nil
}

// scopeName derives the layer's variable scope: plain dense layers are
// "layer_<i>", every other kind is "<kind>_layer_<i>".
func (s *Spec) scopeName() string {
	if s.Kind == KindNormal {
		return fmt.Sprintf("layer_%d", s.Index)
	}
	return fmt.Sprintf("%s_layer_%d", s.Kind, s.Index)
}

// base builds the layer state shared by all kinds.
func (s *Spec) base(outputDims Dims) baseLayer {
	return baseLayer{
		kind:          s.Kind,
		name:          s.scopeName(),
		inputDims:     s.InputDims.Clone(),
		outputDims:    outputDims,
		dtype:         s.DType,
		activation:    s.Activation,
		numInhibitory: s.NumInhibitory,
		positive:      s.Positive,
		normalize:     s.Normalize,
		normAxes:      []int{0},
		regSpec:       maps.Clone(s.Reg),
	}
}

// declared returns the declared size, which must be present and rank 3.
func (s *Spec) declared() (Dims, error) {
	if len(s.OutputSize) == 0 {
		return nil, errors.Wrapf(ErrMissingConfiguration, "layer #%d: layer size is required", s.Index)
	}
	if s.OutputSize.Rank() != 3 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: layer size %v must be normalized to rank 3", s.Index, s.OutputSize)
	}
	if err := s.OutputSize.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "layer #%d size", s.Index)
	}
	return s.OutputSize.Clone(), nil
}

// initializers resolves the weights and biases initializers, falling back to
// the kind's defaults.
func (s *Spec) initializers(weightsDefault, biasesDefault string) (w, b initializer.Initializer, err error) {
	wName, bName := s.WeightsInit, s.BiasesInit
	if wName == "" {
		wName = weightsDefault
	}
	if bName == "" {
		bName = biasesDefault
	}
	w, err = initializerByName(s.RNG, wName)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidConfiguration, "layer #%d weights: %v", s.Index, err)
	}
	b, err = initializerByName(s.RNG, bName)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidConfiguration, "layer #%d biases: %v", s.Index, err)
	}
	return w, b, nil
}

func initializerByName(rng *random.Random, name string) (initializer.Initializer, error) {
	switch name {
	case "trunc_normal", "normal":
		return initializer.Normal(rng, 0.1), nil
	case "zeros":
		return initializer.Zero, nil
	case "ones":
		return initializer.One, nil
	case "glorot_uniform":
		return initializer.GlorotUniform(rng), nil
	}
	return nil, errors.Errorf("unknown initializer %q", name)
}

// checkInhibitory validates the inhibitory count against the number of
// maskable units.
func (s *Spec) checkInhibitory(numUnits int) error {
	if s.NumInhibitory > numUnits {
		return errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: %d inhibitory units exceed the layer's %d units",
			s.Index, s.NumInhibitory, numUnits)
	}
	return nil
}

// checkPositions validates the xy readout positions against a grid.
func (s *Spec) checkPositions(count, maxX, maxY int) error {
	if s.Positions == nil {
		return errors.Wrapf(ErrMissingConfiguration, "layer #%d: xy readout positions are required", s.Index)
	}
	if len(s.Positions) != count {
		return errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: got %d xy positions for %d units", s.Index, len(s.Positions), count)
	}
	for i, pos := range s.Positions {
		if pos[0] < 0 || pos[0] >= maxX || pos[1] < 0 || pos[1] >= maxY {
			return errors.Wrapf(ErrInvalidConfiguration,
				"layer #%d: xy position #%d (%d, %d) is outside the %dx%d grid",
				s.Index, i, pos[0], pos[1], maxX, maxY)
		}
	}
	return nil
}

// convFilterSize derives the filter geometry [channels*lags, width, height]:
// an unset width spans the whole input grid, a set width is square on 2D
// inputs and [width, 1] on 1D inputs.
func convFilterSize(in Dims, width int) Dims {
	channels := in.Channels() * in.LagsSize()
	switch {
	case width <= 0:
		return Dims{channels, in[1], in[2]}
	case in[2] > 1:
		return Dims{channels, width, width}
	default:
		return Dims{channels, width, 1}
	}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func newDense(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numUnits := size.Size()
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	l := &Dense{baseLayer: s.base(size)}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, s.InputDims.Size(), numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newSep(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numUnits := size.Size()
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	numChannels := s.InputDims.Channels() * s.InputDims.LagsSize()
	numSpace := s.InputDims.SpatialSize()
	l := &Sep{baseLayer: s.base(size)}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, numChannels+numSpace, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newAdditive(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numUnits := size.Size()
	numInputs := s.InputDims.Size()
	if numInputs%numUnits != 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: input units %d are not divisible into streams of %d output units",
			s.Index, numInputs, numUnits)
	}
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("ones", "zeros")
	if err != nil {
		return nil, err
	}
	l := &Additive{baseLayer: s.base(size), numStreams: numInputs / numUnits}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, l.numStreams, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newMultiplicative(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numUnits := size.Size()
	numInputs := s.InputDims.Size()
	if numInputs%numUnits != 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: input units %d are not divisible into streams of %d output units",
			s.Index, numInputs, numUnits)
	}
	numStreams := numInputs / numUnits
	if numStreams < 2 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: mult layer needs a base and at least one modulator stream, got %d stream(s)",
			s.Index, numStreams)
	}
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("zeros", "zeros")
	if err != nil {
		return nil, err
	}
	l := &Multiplicative{baseLayer: s.base(size), numStreams: numStreams}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, numStreams-1, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newFilter(ctx *context.Context, s *Spec) (Layer, error) {
	size := s.InputDims.CollapseLags()
	numUnits := size.Size()
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	l := &Filter{baseLayer: s.base(size)}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newSpkNL(ctx *context.Context, s *Spec) (Layer, error) {
	size := s.InputDims.CollapseLags()
	numUnits := size.Size()
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("ones", "zeros")
	if err != nil {
		return nil, err
	}
	l := &SpkNL{baseLayer: s.base(size)}
	l.activation = activations.TypeNone
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newSpikeHistory(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numUnits := size.Size()
	numInputs := s.InputDims.Size()
	if numInputs%numUnits != 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: input units %d do not hold whole lag windows for %d output units",
			s.Index, numInputs, numUnits)
	}
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	l := &SpikeHistory{baseLayer: s.base(size), numLags: numInputs / numUnits}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, l.numLags, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newConv(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numFilters := size.Size()
	if err := s.checkInhibitory(numFilters); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	filter := convFilterSize(s.InputDims, s.FilterWidth)
	out := Dims{numFilters, ceilDiv(s.InputDims[1], s.Stride), ceilDiv(s.InputDims[2], s.Stride)}
	l := &Conv{baseLayer: s.base(out), stride: s.Stride}
	l.filterDims = filter
	l.normAxes = []int{0, 1, 2}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, filter[1], filter[2], filter[0], numFilters))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numFilters))
	return l, nil
}

func newConvSep(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numFilters := size.Size()
	if err := s.checkInhibitory(numFilters); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	filter := convFilterSize(s.InputDims, s.FilterWidth)
	out := Dims{numFilters, ceilDiv(s.InputDims[1], s.Stride), ceilDiv(s.InputDims[2], s.Stride)}
	l := &ConvSep{baseLayer: s.base(out), stride: s.Stride}
	l.filterDims = filter
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, filter[0]+filter[1]*filter[2], numFilters))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numFilters))
	return l, nil
}

func newBiconv(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numFilters := size.Size()
	if err := s.checkInhibitory(2 * numFilters); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	outX := ceilDiv(s.InputDims[1], s.Stride)
	if outX%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: binocular split needs an even output width, got %d", s.Index, outX)
	}
	filter := convFilterSize(s.InputDims, s.FilterWidth)
	out := Dims{2 * numFilters, outX / 2, ceilDiv(s.InputDims[2], s.Stride)}
	l := &Biconv{baseLayer: s.base(out), stride: s.Stride}
	l.filterDims = filter
	l.normAxes = []int{0, 1, 2}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, filter[1], filter[2], filter[0], numFilters))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numFilters))
	return l, nil
}

func newConvXY(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numFilters := size.Size()
	outX := ceilDiv(s.InputDims[1], s.Stride)
	outY := ceilDiv(s.InputDims[2], s.Stride)
	if err := s.checkPositions(numFilters, outX, outY); err != nil {
		return nil, err
	}
	if err := s.checkInhibitory(numFilters); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	filter := convFilterSize(s.InputDims, s.FilterWidth)
	l := &ConvXY{
		baseLayer: s.base(Dims{numFilters, 1, 1}),
		stride:    s.Stride,
		positions: slices.Clone(s.Positions),
	}
	l.filterDims = filter
	l.normAxes = []int{0, 1, 2}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, filter[1], filter[2], filter[0], numFilters))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numFilters))
	return l, nil
}

func newConvReadout(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numNeurons := size.Size()
	if err := s.checkPositions(numNeurons, s.InputDims[1], s.InputDims[2]); err != nil {
		return nil, err
	}
	if err := s.checkInhibitory(numNeurons); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	numChannels := s.InputDims.Channels() * s.InputDims.LagsSize()
	l := &ConvReadout{
		baseLayer: s.base(Dims{numNeurons, 1, 1}),
		positions: slices.Clone(s.Positions),
	}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, numChannels, numNeurons))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numNeurons))
	return l, nil
}

func newTemporal(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	if s.NumLags == 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: temporal layer requires a positive time expansion", s.Index)
	}
	numUnits := size.Size()
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	l := &Temporal{baseLayer: s.base(size), numLags: s.NumLags, dilation: s.Dilation}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, s.InputDims.Size()*s.NumLags, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newTemporalSpecific(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	if s.NumLags == 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: temporal layer requires a positive time expansion", s.Index)
	}
	numUnits := size.Size()
	if numUnits != s.InputDims.Size() {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: temporal_specific preserves units, declared %d for %d inputs",
			s.Index, numUnits, s.InputDims.Size())
	}
	if err := s.checkInhibitory(numUnits); err != nil {
		return nil, err
	}
	wInit, bInit, err := s.initializers("trunc_normal", "zeros")
	if err != nil {
		return nil, err
	}
	l := &TemporalSpecific{baseLayer: s.base(size), numLags: s.NumLags, dilation: s.Dilation}
	scoped := ctx.In(l.name)
	l.weights = scoped.WithInitializer(wInit).VariableWithShape(
		"weights", shapes.Make(s.DType, s.NumLags, numUnits))
	l.biases = scoped.WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, numUnits))
	return l, nil
}

func newGridShift(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numNeurons := size.Size()
	numInputs := s.InputDims.Size()
	if numInputs != 2 && numInputs != 2*numNeurons {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: grid_shift takes one global or one per-neuron xy shift, got %d inputs for %d neurons",
			s.Index, numInputs, numNeurons)
	}
	if s.NumInhibitory > 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: grid layers produce coordinates and cannot have inhibitory units", s.Index)
	}
	_, bInit, err := s.initializers("zeros", "zeros")
	if err != nil {
		return nil, err
	}
	l := &GridShift{baseLayer: s.base(Dims{2 * numNeurons, 1, 1}), numNeurons: numNeurons}
	l.activation = activations.TypeNone
	l.biases = ctx.In(l.name).WithInitializer(bInit).VariableWithShape(
		"biases", shapes.Make(s.DType, 2*numNeurons))
	return l, nil
}

func newGridSample(ctx *context.Context, s *Spec) (Layer, error) {
	size, err := s.declared()
	if err != nil {
		return nil, err
	}
	numNeurons := size.Size()
	if s.NumInhibitory > 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration,
			"layer #%d: grid layers produce coordinates and cannot have inhibitory units", s.Index)
	}
	l := &GridSample{baseLayer: s.base(Dims{numNeurons, 1, 1}), numNeurons: numNeurons}
	l.activation = activations.TypeNone
	return l, nil
}
