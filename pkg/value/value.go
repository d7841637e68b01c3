// Package value implements the property-graph's scalar value system: a
// discriminated union over null, bool, int64, double, string, list, map and
// the temporal types, plus the query-only graph-reference variants that ride
// the evaluation frame but are never persisted.
package value

import (
	"fmt"
	"time"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindDate
	KindLocalTime
	KindLocalDateTime
	KindDuration

	// Graph-reference kinds. Valid only on the evaluation frame; every
	// durability and replication encoder rejects them (see CheckPersistable).
	KindVertexRef
	KindEdgeRef
	KindPathRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindDate:
		return "date"
	case KindLocalTime:
		return "local_time"
	case KindLocalDateTime:
		return "local_date_time"
	case KindDuration:
		return "duration"
	case KindVertexRef:
		return "vertex"
	case KindEdgeRef:
		return "edge"
	case KindPathRef:
		return "path"
	default:
		return "unknown"
	}
}

// Value is the tagged scalar carried on the evaluation frame, in property
// maps, and (for the persistable kinds) in WAL/snapshot/replication payloads.
//
// Only one of the typed fields is meaningful, selected by Kind. This mirrors
// a C union in spirit but keeps Go's type safety: callers switch on Kind
// rather than probing which field is non-zero.
type Value struct {
	Kind Kind

	B bool
	I int64
	F float64
	S string
	L []Value
	M map[string]Value
	T time.Time // backs Date / LocalTime / LocalDateTime
	D time.Duration

	Ref any // *VertexRef / *EdgeRef / *PathRef; never persisted
}

func Null() Value                   { return Value{Kind: KindNull} }
func Bool(b bool) Value              { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value              { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value          { return Value{Kind: KindFloat, F: f} }
func Str(s string) Value             { return Value{Kind: KindString, S: s} }
func List(vs []Value) Value          { return Value{Kind: KindList, L: vs} }
func Map(m map[string]Value) Value   { return Value{Kind: KindMap, M: m} }
func Date(t time.Time) Value         { return Value{Kind: KindDate, T: t} }
func LocalTime(t time.Time) Value    { return Value{Kind: KindLocalTime, T: t} }
func LocalDateTime(t time.Time) Value {
	return Value{Kind: KindLocalDateTime, T: t}
}
func Dur(d time.Duration) Value { return Value{Kind: KindDuration, D: d} }

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsNumeric reports whether v is Int or Float.
func (v Value) IsNumeric() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// IsContainer reports whether v is List or Map.
func (v Value) IsContainer() bool { return v.Kind == KindList || v.Kind == KindMap }

// AsFloat64 widens an Int or Float value to float64. For any other kind it
// returns (0, false).
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.I), true
	case KindFloat:
		return v.F, true
	default:
		return 0, false
	}
}

// Clone deep-copies container variants; scalars are copied by value already.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		out := make([]Value, len(v.L))
		for i, e := range v.L {
			out[i] = e.Clone()
		}
		return Value{Kind: KindList, L: out}
	case KindMap:
		out := make(map[string]Value, len(v.M))
		for k, e := range v.M {
			out[k] = e.Clone()
		}
		return Value{Kind: KindMap, M: out}
	default:
		return v
	}
}

// CheckPersistable returns an error if v (recursively) contains a
// graph-reference variant, which durability and replication encoders must
// reject rather than silently drop.
func CheckPersistable(v Value) error {
	switch v.Kind {
	case KindVertexRef, KindEdgeRef, KindPathRef:
		return fmt.Errorf("value: %s is a query-only reference and cannot be persisted", v.Kind)
	case KindList:
		for _, e := range v.L {
			if err := CheckPersistable(e); err != nil {
				return err
			}
		}
	case KindMap:
		for _, e := range v.M {
			if err := CheckPersistable(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Equal implements the language's three-valued equality: null compared to
// anything (including another null) is defined here as Go-level equality
// for container structural comparison, but callers that need Cypher's
// null-propagating semantics should use Compare and treat !ok as "unknown".
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		// Cross int/float numeric equality by value, per spec 4.1.
		if v.IsNumeric() && other.IsNumeric() {
			a, _ := v.AsFloat64()
			b, _ := other.AsFloat64()
			return a == b
		}
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.B == other.B
	case KindInt:
		return v.I == other.I
	case KindFloat:
		return v.F == other.F
	case KindString:
		return v.S == other.S
	case KindDate, KindLocalTime, KindLocalDateTime:
		return v.T.Equal(other.T)
	case KindDuration:
		return v.D == other.D
	case KindList:
		if len(v.L) != len(other.L) {
			return false
		}
		for i := range v.L {
			if !v.L[i].Equal(other.L[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.M) != len(other.M) {
			return false
		}
		for k, a := range v.M {
			b, ok := other.M[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Ordering is the result of a three-valued Compare.
type Ordering int

const (
	Less    Ordering = -1
	Equal_  Ordering = 0
	Greater Ordering = 1
)

// Compare implements the ordered-comparison subset defined in spec 4.1:
// it orders number against number and string against string. ok is false
// whenever either operand is null, and for every other pairing (booleans,
// containers, mismatched number/string, temporal values).
func Compare(a, b Value) (Ordering, bool) {
	if a.Kind == KindNull || b.Kind == KindNull {
		return 0, false
	}
	if a.IsNumeric() && b.IsNumeric() {
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		switch {
		case af < bf:
			return Less, true
		case af > bf:
			return Greater, true
		default:
			return Equal_, true
		}
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch {
		case a.S < b.S:
			return Less, true
		case a.S > b.S:
			return Greater, true
		default:
			return Equal_, true
		}
	}
	return 0, false
}
