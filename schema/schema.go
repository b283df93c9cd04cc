// Package schema implements per-collection JSON Schema validation,
// ported from bundoc's Collection.SetSchema/validate (§2.I/§10).
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/axaubet/bunql/internal/core"
)

// Schema is a compiled JSON Schema ready to validate documents.
type Schema struct {
	raw    string
	loader *gojsonschema.Schema
}

// Compile parses and compiles a JSON Schema document. An empty
// schemaJSON clears validation (Validate then always succeeds),
// matching the donor's "schemaLoader = nil" reset path.
func Compile(schemaJSON string) (*Schema, error) {
	if schemaJSON == "" {
		return &Schema{}, nil
	}
	loader := gojsonschema.NewStringLoader(schemaJSON)
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("schema: invalid json schema: %w", err)
	}
	return &Schema{raw: schemaJSON, loader: compiled}, nil
}

// Raw returns the schema's original JSON text.
func (s *Schema) Raw() string { return s.raw }

// Validate checks doc against the schema. A nil/uncompiled Schema
// always validates.
func (s *Schema) Validate(doc *core.Doc) error {
	if s == nil || s.loader == nil {
		return nil
	}

	docLoader := gojsonschema.NewGoLoader(toPlainMap(doc))

	result, err := s.loader.Validate(docLoader)
	if err != nil {
		return fmt.Errorf("schema: validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidField, msgs)
	}
	return nil
}

// toPlainMap mirrors the donor's plain map[string]interface{} document
// model (Collection.validate's gojsonschema.NewGoLoader(doc)), since
// gojsonschema validates against Go values, not core.Value's tagged
// union.
func toPlainMap(doc *core.Doc) map[string]interface{} {
	out := make(map[string]interface{}, doc.Len())
	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)
		out[k] = toPlainValue(v)
	}
	return out
}

func toPlainValue(v core.Value) interface{} {
	switch v.Kind() {
	case core.KindNull:
		return nil
	case core.KindBool:
		b, _ := v.AsBool()
		return b
	case core.KindInt32:
		i, _ := v.AsInt32()
		return i
	case core.KindInt64:
		i, _ := v.AsInt64()
		return i
	case core.KindDouble:
		f, _ := v.AsDouble()
		return f
	case core.KindDecimal:
		r, _ := v.AsDecimal()
		f, _ := r.Float64()
		return f
	case core.KindString:
		s, _ := v.AsString()
		return s
	case core.KindObjectID:
		id, _ := v.AsObjectID()
		return id.String()
	case core.KindArray:
		items, _ := v.AsArray()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = toPlainValue(it)
		}
		return out
	case core.KindDocument:
		d, _ := v.AsDocument()
		return toPlainMap(d)
	default:
		return v.String()
	}
}
