// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package dimension defines the fixed set of resource domains subject to
// admission control.
package dimension

import (
	"strings"

	"github.com/samber/oops"
)

// Dimension identifies one of the gated resource domains.
// The zero value is Overworld.
type Dimension uint8

// The closed set of dimensions. Count must stay last.
const (
	Overworld Dimension = iota
	Nether
	End

	Count
)

// CodeUnknownDimension is the error code returned by Parse for unrecognized tokens.
const CodeUnknownDimension = "UNKNOWN_DIMENSION"

// All returns every dimension in declaration order.
func All() []Dimension {
	return []Dimension{Overworld, Nether, End}
}

// Valid reports whether d is a member of the closed set.
func (d Dimension) Valid() bool {
	return d < Count
}

// String returns the canonical lowercase token used in config files,
// storage keys, and metric labels.
func (d Dimension) String() string {
	switch d {
	case Overworld:
		return "overworld"
	case Nether:
		return "nether"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// DisplayName returns the human-facing name.
func (d Dimension) DisplayName() string {
	switch d {
	case Overworld:
		return "Overworld"
	case Nether:
		return "Nether"
	case End:
		return "End"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so dimensions can be map keys
// in JSON and YAML documents.
func (d Dimension) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, oops.In("dimension").Code(CodeUnknownDimension).With("value", uint8(d)).Errorf("invalid dimension")
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dimension) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse converts a config or command token into a Dimension.
// Matching is case-insensitive; "world" and "normal" are accepted as aliases
// for the overworld and "the_end" for the end.
func Parse(token string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "world", "overworld", "normal":
		return Overworld, nil
	case "nether":
		return Nether, nil
	case "end", "the_end":
		return End, nil
	default:
		return 0, oops.In("dimension").
			Code(CodeUnknownDimension).
			With("token", token).
			Errorf("unknown dimension %q", token)
	}
}

// StatusText renders an open flag as "Open" or "Closed".
func StatusText(open bool) string {
	if open {
		return "Open"
	}
	return "Closed"
}
