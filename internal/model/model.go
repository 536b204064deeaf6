package model

import (
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single table cell. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Time  time.Time
}

func Null() Value { return Value{Kind: KindNull} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t.UTC()} }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) IsTime() bool { return v.Kind == KindTime }

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == other.Str
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindTime:
		return v.Time.Equal(other.Time)
	default:
		return false
	}
}

// Compare orders two values. Nulls sort first; values of different kinds
// are ordered by kind.
func (v Value) Compare(other Value) int {
	if v.Kind != other.Kind {
		return compareInt(int64(v.Kind), int64(other.Kind))
	}
	switch v.Kind {
	case KindString:
		return strings.Compare(v.Str, other.Str)
	case KindInt:
		return compareInt(v.Int, other.Int)
	case KindFloat:
		switch {
		case v.Float < other.Float:
			return -1
		case v.Float > other.Float:
			return 1
		default:
			return 0
		}
	case KindTime:
		return v.Time.Compare(other.Time)
	default:
		return 0
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
