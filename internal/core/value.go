package core

// value.go defines the typed cell model and its SQL literal encoding.
//
// A Value is a closed tagged union over Kind. Each kind has exactly one
// encoding rule:
//
//   - KindNull:    NULL
//   - KindInt:     decimal text, unquoted
//   - KindFloat:   shortest round-trip decimal text, unquoted
//   - KindDecimal: exact decimal text, unquoted
//   - KindText:    single-quoted, embedded quotes doubled
//   - KindOther:   text form, single-quoted, embedded quotes doubled
//
// Quote doubling is the only escaping performed. Backslashes and control
// characters pass through unchanged.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the text form of time values in literals.
const TimestampLayout = "2006-01-02 15:04:05"

// Kind is the semantic type of a cell value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindDecimal
	KindText
	KindOther
)

// String returns a lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindText:
		return "text"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Value is a single typed cell. The zero Value is NULL.
type Value struct {
	kind  Kind
	i     int64
	f     float64
	d     decimal.Decimal
	s     string
	other any
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point value. NaN and ±Inf have no SQL literal
// and are treated as missing values.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindFloat, f: f}
}

// Decimal returns an exact decimal value.
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, d: d} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Other wraps any value that has no dedicated kind (booleans, dates, ...).
// It is rendered through its text form. A nil argument yields NULL.
func Other(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindOther, other: v}
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Literal returns the SQL literal text for v.
func (v Value) Literal() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindDecimal:
		return v.d.String()
	case KindText:
		return quote(v.s)
	case KindOther:
		return quote(otherText(v.other))
	default:
		panic(fmt.Sprintf("core: unhandled value kind %d", v.kind))
	}
}

// String returns the literal form, so values print the way they are emitted.
func (v Value) String() string { return v.Literal() }

// Encode returns the SQL literal text for v.
func Encode(v Value) string { return v.Literal() }

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// otherText renders a non-primitive value the way a spreadsheet export
// shows it: booleans capitalized and timestamps as date plus time, without
// zone, even at midnight.
func otherText(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(TimestampLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
