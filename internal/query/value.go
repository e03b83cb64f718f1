package query

import (
	"strconv"
	"time"
)

// Kind is the semantic type of a column value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDouble
	KindTime
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is one extracted cell: a tagged variant over the supported kinds.
// List values nest one level (elements are scalar values).
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Dbl  float64
	Time time.Time
	List []Value
}

func StringValue(s string) Value    { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value        { return Value{Kind: KindInt, Int: i} }
func DoubleValue(d float64) Value   { return Value{Kind: KindDouble, Dbl: d} }
func TimeValue(t time.Time) Value   { return Value{Kind: KindTime, Time: t} }
func ListValue(elems []Value) Value { return Value{Kind: KindList, List: elems} }

func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func StringListValue(elems []string) Value {
	list := make([]Value, 0, len(elems))
	for _, e := range elems {
		list = append(list, StringValue(e))
	}
	return ListValue(list)
}

// AsString renders the value the way the plain output format does.
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindDouble:
		return strconv.FormatFloat(v.Dbl, 'g', -1, 64)
	case KindTime:
		if v.Time.IsZero() {
			return "0"
		}
		return strconv.FormatInt(v.Time.Unix(), 10)
	case KindList:
		s := ""
		for i, e := range v.List {
			if i > 0 {
				s += ","
			}
			s += e.AsString()
		}
		return s
	}
	return ""
}

// asNumber returns the value on a numeric axis for relational comparison.
func (v Value) asNumber() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindDouble:
		return v.Dbl, true
	case KindTime:
		if v.Time.IsZero() {
			return 0, true
		}
		return float64(v.Time.Unix()), true
	}
	return 0, false
}
