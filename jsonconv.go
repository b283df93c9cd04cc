package bunql

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/axaubet/bunql/internal/core"
)

// ParseDoc decodes a JSON object into a Doc, the convenience surface
// the shell (cmd/bunqlsh) and callers embedding bunql from outside Go
// use to build filters, update operators and pipeline stages without
// hand-assembling core.Value literals.
//
// encoding/json's map[string]interface{} does not preserve key order,
// so a document built this way loses the insertion-order guarantee
// core.Doc otherwise provides; callers that care about output field
// order (e.g. $addFields) should build the Doc programmatically
// instead.
func ParseDoc(data []byte) (*core.Doc, error) {
	v, err := parseJSONValue(data)
	if err != nil {
		return nil, err
	}
	doc, ok := v.AsDocument()
	if !ok {
		return nil, fmt.Errorf("bunql: expected a JSON object, got kind %d", v.Kind())
	}
	return doc, nil
}

// ParseDocArray decodes a JSON array of objects, the shape an
// aggregation pipeline spec is given in.
func ParseDocArray(data []byte) ([]*core.Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("bunql: decode json array: %w", err)
	}
	out := make([]*core.Doc, 0, len(raw))
	for _, r := range raw {
		d, err := ParseDoc(r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseJSONValue(data []byte) (core.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return core.Null(), fmt.Errorf("bunql: decode json: %w", err)
	}
	return convertJSON(raw), nil
}

func convertJSON(raw interface{}) core.Value {
	switch v := raw.(type) {
	case nil:
		return core.Null()
	case bool:
		return core.Bool(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return core.Int64(i)
		}
		f, _ := v.Float64()
		return core.Double(f)
	case string:
		return core.String(v)
	case []interface{}:
		items := make([]core.Value, len(v))
		for i, it := range v {
			items[i] = convertJSON(it)
		}
		return core.Array(items)
	case map[string]interface{}:
		doc := core.NewDoc()
		for k, fv := range v {
			doc.Set(k, convertJSON(fv))
		}
		return core.DocumentValue(doc)
	default:
		return core.Null()
	}
}
