// Package attr holds the camcorder attribute table: typed, validated values
// with state-dependent mutability, paired width/height constraints and
// per-group commit handlers that push accepted values into live hardware.
package attr

import (
	"fmt"
	"math"
	"slices"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

// Kind is the value kind of an attribute
type Kind uint8

const (
	KindInt Kind = iota
	KindDouble
	KindString
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Flags describe how an attribute may be accessed
type Flags uint8

const (
	FlagReadable Flags = 1 << iota
	FlagWritable
	FlagDisabled

	FlagsReadOnly  = FlagReadable
	FlagsReadWrite = FlagReadable | FlagWritable
)

// Writable reports whether the attribute accepts application writes
func (f Flags) Writable() bool {
	return f&FlagWritable != 0 && f&FlagDisabled == 0
}

// Disabled reports whether the attribute is disabled by configuration
func (f Flags) Disabled() bool {
	return f&FlagDisabled != 0
}

func (f Flags) String() string {
	s := ""
	if f&FlagReadable != 0 {
		s += "R"
	}
	if f&FlagWritable != 0 {
		s += "W"
	}
	if f&FlagDisabled != 0 {
		s += "D"
	}
	if s == "" {
		return "-"
	}
	return s
}

// ValidityKind is the shape of an attribute's constraint
type ValidityKind uint8

const (
	ValidityNone ValidityKind = iota
	ValidityIntRange
	ValidityIntArray
	ValidityDoubleRange
	ValidityDoubleArray
)

func (v ValidityKind) String() string {
	switch v {
	case ValidityNone:
		return "none"
	case ValidityIntRange:
		return "int-range"
	case ValidityIntArray:
		return "int-array"
	case ValidityDoubleRange:
		return "double-range"
	case ValidityDoubleArray:
		return "double-array"
	default:
		return "unknown"
	}
}

// Validity constrains the values an attribute accepts. Only the fields
// matching Kind are meaningful.
type Validity struct {
	Kind      ValidityKind `json:"kind"`
	IntMin    int          `json:"int_min,omitempty"`
	IntMax    int          `json:"int_max,omitempty"`
	Ints      []int        `json:"ints,omitempty"`
	DoubleMin float64      `json:"double_min,omitempty"`
	DoubleMax float64      `json:"double_max,omitempty"`
	Doubles   []float64    `json:"doubles,omitempty"`
}

// Check validates a normalized value against the constraint
func (v Validity) Check(value any) error {
	switch v.Kind {
	case ValidityIntRange:
		n, ok := value.(int)
		if !ok {
			return camerr.ErrInvalidArgument
		}
		if n < v.IntMin || n > v.IntMax {
			return fmt.Errorf("%d not in [%d,%d]: %w", n, v.IntMin, v.IntMax, camerr.ErrOutOfRange)
		}
	case ValidityIntArray:
		n, ok := value.(int)
		if !ok {
			return camerr.ErrInvalidArgument
		}
		if !slices.Contains(v.Ints, n) {
			return fmt.Errorf("%d not in %v: %w", n, v.Ints, camerr.ErrOutOfRange)
		}
	case ValidityDoubleRange:
		d, ok := value.(float64)
		if !ok {
			return camerr.ErrInvalidArgument
		}
		if d < v.DoubleMin || d > v.DoubleMax || math.IsNaN(d) {
			return fmt.Errorf("%g not in [%g,%g]: %w", d, v.DoubleMin, v.DoubleMax, camerr.ErrOutOfRange)
		}
	case ValidityDoubleArray:
		d, ok := value.(float64)
		if !ok {
			return camerr.ErrInvalidArgument
		}
		if !slices.Contains(v.Doubles, d) {
			return fmt.Errorf("%g not in %v: %w", d, v.Doubles, camerr.ErrOutOfRange)
		}
	}
	return nil
}

// Info is the public description of an attribute
type Info struct {
	ID       ID              `json:"id"`
	Name     string          `json:"name"`
	Kind     Kind            `json:"kind"`
	Flags    Flags           `json:"flags"`
	Writable state.StateMask `json:"writable_states"`
	Validity Validity        `json:"validity"`
	Default  any             `json:"default"`
}

// Pair is one (name, value) entry of an ordered set request
type Pair struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// P builds a Pair
func P(name string, value any) Pair {
	return Pair{Name: name, Value: value}
}

// normalize converts value to the canonical Go type of kind:
// int, float64, string or []byte
func normalize(kind Kind, value any) (any, error) {
	switch kind {
	case KindInt:
		switch n := value.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		case uint32:
			return int(n), nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int(n), nil
			}
		case bool:
			if n {
				return 1, nil
			}
			return 0, nil
		}
	case KindDouble:
		switch n := value.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindData:
		switch b := value.(type) {
		case []byte:
			return append([]byte(nil), b...), nil
		case string:
			return []byte(b), nil
		}
	}
	return nil, fmt.Errorf("%T is not a %s value: %w", value, kind, camerr.ErrInvalidArgument)
}
