package model

import (
	"strconv"
	"strings"
)

// ValueKind identifies which of the narrow set of scalar kinds a
// configured param value actually holds. Values are always parsed
// from text (scenario files, templates, CLI overrides) into the
// narrowest kind that fits, matching the original model's
// configstrtoval behavior: bool, then int, then float, else string.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindInt
	KindFloat
)

// Value is a single scalar param value in its narrowed-down kind.
type Value struct {
	Kind  ValueKind
	Str   string
	Bool  bool
	Int   int64
	Float float64
}

// String renders the value back to its canonical text form.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

// ParseValue narrows s into the most specific Value kind it parses
// as, trying bool, then int, then float, and falling back to string.
func ParseValue(s string) Value {
	switch strings.ToLower(s) {
	case "true":
		return Value{Kind: KindBool, Bool: true, Str: s}
	case "false":
		return Value{Kind: KindBool, Bool: false, Str: s}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Value{Kind: KindInt, Int: i, Str: s}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Value{Kind: KindFloat, Float: f, Str: s}
	}
	return Value{Kind: KindString, Str: s}
}

// ParseValues narrows a list of raw strings, preserving order.
func ParseValues(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = ParseValue(s)
	}
	return out
}
