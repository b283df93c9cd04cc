// Package core implements the value model, cross-type comparator and
// dotted-path resolver shared by the filter compiler, the VM and the
// index key codec.
package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindDecimal
	KindString
	KindBinary
	KindObjectID
	KindDateTime
	KindTimestamp
	KindRegex
	KindArray
	KindDocument
)

// ObjectID is a 16-byte globally unique document identifier, backed by
// a UUID (the corpus has no 12-byte Mongo-style ObjectID generator, but
// google/uuid is already a dependency of the retrieval pack's vector-store
// donor, so it is reused here rather than hand-rolling a counter+random
// scheme).
type ObjectID uuid.UUID

// NewObjectID generates a fresh random ObjectID.
func NewObjectID() ObjectID {
	return ObjectID(uuid.New())
}

func (id ObjectID) String() string { return uuid.UUID(id).String() }

// ParseObjectID parses the canonical string form produced by ObjectID.String.
func ParseObjectID(s string) (ObjectID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ObjectID{}, err
	}
	return ObjectID(u), nil
}

// Regex is the pattern+options pair carried by a KindRegex Value.
// Compilation is deferred (see regexopt.go) so a malformed options
// string only surfaces as an error when the predicate actually runs.
type Regex struct {
	Pattern string
	Options string
}

// Value is a tagged union over the BSON-like variants THE CORE
// understands. Prefer the constructor functions over building a Value
// literal directly.
type Value struct {
	kind Kind
	v    any

	// projected marks a KindArray Value as the flattened result of an
	// implicit array projection (§4.2), out of band from v so AsArray
	// keeps working on it like any other array.
	projected bool
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, v: b} }
func Int32(i int32) Value         { return Value{kind: KindInt32, v: i} }
func Int64(i int64) Value         { return Value{kind: KindInt64, v: i} }
func Double(f float64) Value      { return Value{kind: KindDouble, v: f} }
func Decimal(r *big.Rat) Value    { return Value{kind: KindDecimal, v: r} }
func String(s string) Value       { return Value{kind: KindString, v: s} }
func Binary(b []byte) Value       { return Value{kind: KindBinary, v: b} }
func ObjectIDValue(id ObjectID) Value { return Value{kind: KindObjectID, v: id} }
func DateTime(t time.Time) Value  { return Value{kind: KindDateTime, v: t} }
func Timestamp(t uint64) Value    { return Value{kind: KindTimestamp, v: t} }
func RegexValue(pattern, opts string) Value {
	return Value{kind: KindRegex, v: Regex{Pattern: pattern, Options: opts}}
}
func Array(items []Value) Value    { return Value{kind: KindArray, v: items} }
func DocumentValue(d *Doc) Value   { return Value{kind: KindDocument, v: d} }

func (v Value) AsBool() (bool, bool)         { b, ok := v.v.(bool); return b, ok && v.kind == KindBool }
func (v Value) AsInt32() (int32, bool)       { i, ok := v.v.(int32); return i, ok }
func (v Value) AsInt64() (int64, bool)       { i, ok := v.v.(int64); return i, ok }
func (v Value) AsDouble() (float64, bool)    { f, ok := v.v.(float64); return f, ok }
func (v Value) AsDecimal() (*big.Rat, bool)  { r, ok := v.v.(*big.Rat); return r, ok }
func (v Value) AsString() (string, bool)     { s, ok := v.v.(string); return s, ok }
func (v Value) AsBinary() ([]byte, bool)     { b, ok := v.v.([]byte); return b, ok }
func (v Value) AsObjectID() (ObjectID, bool) { id, ok := v.v.(ObjectID); return id, ok }
func (v Value) AsDateTime() (time.Time, bool) { t, ok := v.v.(time.Time); return t, ok }
func (v Value) AsTimestamp() (uint64, bool)  { t, ok := v.v.(uint64); return t, ok }
func (v Value) AsRegex() (Regex, bool)       { r, ok := v.v.(Regex); return r, ok }
func (v Value) AsArray() ([]Value, bool)     { a, ok := v.v.([]Value); return a, ok }
func (v Value) AsDocument() (*Doc, bool)     { d, ok := v.v.(*Doc); return d, ok }

// IsNumeric reports whether the Value belongs to the int32/int64/double/decimal family.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindInt32, KindInt64, KindDouble, KindDecimal:
		return true
	}
	return false
}

// numericRat widens any numeric Value to an exact rational for comparison
// and arithmetic. NaN doubles return ok=false (NaN compares unequal to
// everything, including itself, per §4.1).
func (v Value) numericRat() (*big.Rat, bool) {
	switch v.kind {
	case KindInt32:
		i, _ := v.AsInt32()
		return new(big.Rat).SetInt64(int64(i)), true
	case KindInt64:
		i, _ := v.AsInt64()
		return new(big.Rat).SetInt64(i), true
	case KindDouble:
		f, _ := v.AsDouble()
		if f != f { // NaN
			return nil, false
		}
		r := new(big.Rat)
		if r.SetFloat64(f) == nil {
			return nil, false // +-Inf
		}
		return r, true
	case KindDecimal:
		d, _ := v.AsDecimal()
		return d, true
	}
	return nil, false
}

// String implements a debug representation; not used for any on-disk
// or comparison semantics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindArray:
		a, _ := v.AsArray()
		return fmt.Sprintf("%v", a)
	default:
		return fmt.Sprintf("%v", v.v)
	}
}
