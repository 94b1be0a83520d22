// Package types defines the dynamically-typed value system shared by the
// expression engine, the variable store, and the IR executor.
package types

import (
	"math"
	"strconv"
	"strings"
)

// Epsilon is the tolerance used for numeric equality and zero-divisor checks.
const Epsilon = 2.220446049250313e-16

// ValueKind represents the kind of a runtime value.
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindBoolean
	KindNumber
	KindString
)

// String returns the user-facing kind name.
func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged-union runtime value: String, Number, Boolean, or Undefined.
type Value struct {
	kind    ValueKind
	boolVal bool
	numVal  float64
	strVal  string
}

// Undefined is the singleton undefined value.
var Undefined = Value{kind: KindUndefined}

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	return Value{kind: KindBoolean, boolVal: v}
}

// NewNumber creates a numeric value.
func NewNumber(v float64) Value {
	return Value{kind: KindNumber, numVal: v}
}

// NewString creates a string value.
func NewString(v string) Value {
	return Value{kind: KindString, strVal: v}
}

// Kind returns the value's kind tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsUndefined reports whether the value is undefined.
func (v Value) IsUndefined() bool {
	return v.kind == KindUndefined
}

// Bool returns the raw boolean. Only meaningful when Kind() == KindBoolean.
func (v Value) Bool() bool {
	return v.boolVal
}

// Number returns the raw float64. Only meaningful when Kind() == KindNumber.
func (v Value) Number() float64 {
	return v.numVal
}

// Str returns the raw string. Only meaningful when Kind() == KindString.
func (v Value) Str() string {
	return v.strVal
}

// ToBool converts the value to a boolean. Only booleans convert; everything
// else is a hard error, which keeps logical operators strict.
func (v Value) ToBool() (bool, error) {
	if v.kind == KindBoolean {
		return v.boolVal, nil
	}
	return false, NewTypeError("Expected boolean, got " + v.kind.String())
}

// ToNumber converts the value to a number. Booleans become 1/0 and numeric
// strings are parsed; undefined and non-numeric strings are errors.
func (v Value) ToNumber() (float64, error) {
	switch v.kind {
	case KindNumber:
		return v.numVal, nil
	case KindBoolean:
		if v.boolVal {
			return 1, nil
		}
		return 0, nil
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.strVal), 64)
		if err != nil {
			return 0, NewTypeError("Cannot convert string '" + v.strVal + "' to number")
		}
		return n, nil
	default:
		return 0, NewTypeError("Cannot convert undefined value to number")
	}
}

// String returns the display form: booleans as true/false, numbers in their
// shortest decimal form without a trailing .0, undefined as "undefined".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.strVal
	case KindNumber:
		return FormatNumber(v.numVal)
	case KindBoolean:
		if v.boolVal {
			return "true"
		}
		return "false"
	default:
		return "undefined"
	}
}

// FormatNumber renders a float in its shortest round-trippable decimal form.
func FormatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EqualSameKind compares two values of the same kind. Numbers compare within
// Epsilon; the caller is responsible for rejecting cross-kind comparisons.
func (v Value) EqualSameKind(other Value) bool {
	switch v.kind {
	case KindNumber:
		return math.Abs(v.numVal-other.numVal) < Epsilon
	case KindString:
		return v.strVal == other.strVal
	case KindBoolean:
		return v.boolVal == other.boolVal
	default:
		return true
	}
}
