package models

import (
	"encoding/json"
	"strconv"
)

// ValueKind tags the scalar held by a Value.
type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
)

// Value is one scalar cell of a normalized record. The zero Value is empty.
type Value struct {
	Kind ValueKind
	Str  string
	Num  json.Number
	Bool bool
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// NumberValue wraps a number, keeping its literal form.
func NumberValue(n json.Number) Value { return Value{Kind: ValueNumber, Num: n} }

// IntValue wraps an int as a number.
func IntValue(i int) Value { return NumberValue(json.Number(strconv.Itoa(i))) }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// IsEmpty reports whether the value is the absent marker.
func (v Value) IsEmpty() bool {
	return v.Kind == ValueEmpty
}

// String renders the value for a CSV cell. Empty renders as "".
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return v.Num.String()
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// MarshalJSON encodes empty values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueNumber:
		return []byte(v.Num.String()), nil
	case ValueBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// Record is a flat normalized product keyed by field name.
type Record map[string]Value

// Row renders the record in the given field order. Missing fields render empty.
func (r Record) Row(fields []string) []string {
	row := make([]string, len(fields))
	for i, field := range fields {
		row[i] = r[field].String()
	}
	return row
}
