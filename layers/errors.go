// Copyright 2026 The NDN3 Authors. SPDX-License-Identifier: Apache-2.0

package layers

import "github.com/pkg/errors"

// Construction errors are classified by one of the three sentinels below, so
// callers can branch with errors.Is without parsing messages. The wrapped
// message always names the offending layer (by index or scope name) and the
// configuration field involved.
var (
	// ErrMissingConfiguration indicates a required configuration entry was
	// absent: no layer sizes, no input dimensions, no graph context.
	ErrMissingConfiguration = errors.New("missing configuration")

	// ErrInvalidConfiguration indicates a configuration entry was present but
	// unusable: unknown layer kind, bad initializer name, a per-layer list
	// whose length matches neither 1 nor the number of layers.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrShapeMismatch indicates dimensions that fail a structural
	// compatibility check: an upstream output that cannot be re-gridded, a
	// parameter tensor assigned to a variable of another shape.
	ErrShapeMismatch = errors.New("shape mismatch")
)
