// Package storage defines THE CORE's storage-facing contracts: the
// ordered-KV Engine interface consumed by the VM's cursor opcodes
// (§6), the composite index key codec and multikey expansion (§4.7),
// and a JSON-based document codec standing in for the out-of-scope
// BSON wire format named in spec.md §1.
package storage

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/axaubet/bunql/internal/core"
)

// Document is THE CORE's in-memory document representation: an
// ordered string->Value mapping (§3).
type Document = core.Doc

// NewDocument creates an empty document.
func NewDocument() *Document { return core.NewDoc() }

// jsonEnvelope is the on-disk shape for a single field: {"k": kind, "v": value}.
// A hand-rolled envelope (rather than encoding/gob or a raw json.Marshal
// of a Go map) is required because core.Value is a closed tagged union
// that plain encoding/json cannot round-trip through 'any' alone
// (e.g. distinguishing int32 from int64 from double, or carrying an
// ObjectID/Regex/decimal). This is the one place THE CORE stands in
// for the spec's out-of-scope BSON codec (§1).
type jsonField struct {
	K string          `json:"k"`
	V json.RawMessage `json:"v"`
}

// Marshal serializes a document to bytes for storage under the
// primary key. Field order is preserved.
func Marshal(d *Document) ([]byte, error) {
	fields := make([]jsonField, 0, d.Len())
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		raw, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		fields = append(fields, jsonField{K: k, V: raw})
	}
	return json.Marshal(fields)
}

// Unmarshal deserializes bytes produced by Marshal back into a document.
func Unmarshal(data []byte) (*Document, error) {
	var fields []jsonField
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	d := core.NewDoc()
	for _, f := range fields {
		v, err := unmarshalValue(f.V)
		if err != nil {
			return nil, fmt.Errorf("unmarshal field %q: %w", f.K, err)
		}
		d.Set(f.K, v)
	}
	return d, nil
}

type wireValue struct {
	Kind uint8           `json:"kind"`
	Num  json.Number     `json:"num,omitempty"`
	Str  string          `json:"str,omitempty"`
	Bin  []byte          `json:"bin,omitempty"`
	Time time.Time       `json:"time,omitempty"`
	Opts string          `json:"opts,omitempty"`
	Arr  []json.RawMessage `json:"arr,omitempty"`
	Doc  []jsonField     `json:"doc,omitempty"`
}

func marshalValue(v core.Value) (json.RawMessage, error) {
	w := wireValue{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case core.KindNull:
	case core.KindBool:
		b, _ := v.AsBool()
		w.Str = fmt.Sprintf("%v", b)
	case core.KindInt32:
		i, _ := v.AsInt32()
		w.Num = json.Number(fmt.Sprintf("%d", i))
	case core.KindInt64:
		i, _ := v.AsInt64()
		w.Num = json.Number(fmt.Sprintf("%d", i))
	case core.KindDouble:
		f, _ := v.AsDouble()
		w.Num = json.Number(fmt.Sprintf("%g", f))
	case core.KindDecimal:
		r, _ := v.AsDecimal()
		w.Str = r.RatString()
	case core.KindString:
		w.Str, _ = v.AsString()
	case core.KindBinary:
		w.Bin, _ = v.AsBinary()
	case core.KindObjectID:
		id, _ := v.AsObjectID()
		w.Str = id.String()
	case core.KindDateTime:
		w.Time, _ = v.AsDateTime()
	case core.KindTimestamp:
		ts, _ := v.AsTimestamp()
		w.Num = json.Number(fmt.Sprintf("%d", ts))
	case core.KindRegex:
		r, _ := v.AsRegex()
		w.Str = r.Pattern
		w.Opts = r.Options
	case core.KindArray:
		items, _ := v.AsArray()
		w.Arr = make([]json.RawMessage, len(items))
		for i, it := range items {
			raw, err := marshalValue(it)
			if err != nil {
				return nil, err
			}
			w.Arr[i] = raw
		}
	case core.KindDocument:
		sub, _ := v.AsDocument()
		for _, k := range sub.Keys() {
			fv, _ := sub.Get(k)
			raw, err := marshalValue(fv)
			if err != nil {
				return nil, err
			}
			w.Doc = append(w.Doc, jsonField{K: k, V: raw})
		}
	default:
		return nil, fmt.Errorf("unsupported value kind %d", v.Kind())
	}
	return json.Marshal(w)
}

func unmarshalValue(raw json.RawMessage) (core.Value, error) {
	var w wireValue
	if err := json.Unmarshal(raw, &w); err != nil {
		return core.Null(), err
	}
	switch core.Kind(w.Kind) {
	case core.KindNull:
		return core.Null(), nil
	case core.KindBool:
		return core.Bool(w.Str == "true"), nil
	case core.KindInt32:
		n, err := w.Num.Int64()
		if err != nil {
			return core.Null(), err
		}
		return core.Int32(int32(n)), nil
	case core.KindInt64:
		n, err := w.Num.Int64()
		if err != nil {
			return core.Null(), err
		}
		return core.Int64(n), nil
	case core.KindDouble:
		f, err := w.Num.Float64()
		if err != nil {
			return core.Null(), err
		}
		return core.Double(f), nil
	case core.KindDecimal:
		r, ok := new(big.Rat).SetString(w.Str)
		if !ok {
			return core.Null(), fmt.Errorf("invalid decimal literal %q", w.Str)
		}
		return core.Decimal(r), nil
	case core.KindString:
		return core.String(w.Str), nil
	case core.KindBinary:
		return core.Binary(w.Bin), nil
	case core.KindObjectID:
		id, err := core.ParseObjectID(w.Str)
		if err != nil {
			return core.Null(), err
		}
		return core.ObjectIDValue(id), nil
	case core.KindDateTime:
		return core.DateTime(w.Time), nil
	case core.KindTimestamp:
		n, err := w.Num.Int64()
		if err != nil {
			return core.Null(), err
		}
		return core.Timestamp(uint64(n)), nil
	case core.KindRegex:
		return core.RegexValue(w.Str, w.Opts), nil
	case core.KindArray:
		items := make([]core.Value, len(w.Arr))
		for i, raw := range w.Arr {
			v, err := unmarshalValue(raw)
			if err != nil {
				return core.Null(), err
			}
			items[i] = v
		}
		return core.Array(items), nil
	case core.KindDocument:
		d := core.NewDoc()
		for _, f := range w.Doc {
			v, err := unmarshalValue(f.V)
			if err != nil {
				return core.Null(), err
			}
			d.Set(f.K, v)
		}
		return core.DocumentValue(d), nil
	}
	return core.Null(), fmt.Errorf("unsupported wire kind %d", w.Kind)
}

// GetID returns the document's _id field as a Value, if present.
func GetID(d *Document) (core.Value, bool) {
	return d.Get("_id")
}
