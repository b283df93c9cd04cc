package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/schema"
)

func docOf(fields map[string]core.Value) *core.Doc {
	d := core.NewDoc()
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}

func TestEmptySchemaAlwaysValidates(t *testing.T) {
	s, err := schema.Compile("")
	require.NoError(t, err)
	assert.NoError(t, s.Validate(docOf(map[string]core.Value{"anything": core.Int32(1)})))
}

func TestCompileRejectsInvalidSchema(t *testing.T) {
	_, err := schema.Compile(`{not valid json`)
	assert.Error(t, err)
}

func TestValidateRequiredField(t *testing.T) {
	raw := `{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer", "minimum": 0}
		}
	}`
	s, err := schema.Compile(raw)
	require.NoError(t, err)

	err = s.Validate(docOf(map[string]core.Value{"name": core.String("ada")}))
	assert.NoError(t, err)

	err = s.Validate(docOf(map[string]core.Value{"age": core.Int32(30)}))
	assert.ErrorIs(t, err, core.ErrInvalidField)
}

func TestValidateTypeMismatch(t *testing.T) {
	raw := `{
		"type": "object",
		"properties": {
			"age": {"type": "integer"}
		}
	}`
	s, err := schema.Compile(raw)
	require.NoError(t, err)

	err = s.Validate(docOf(map[string]core.Value{"age": core.String("thirty")}))
	assert.Error(t, err)
}

func TestValidateNestedDocumentAndArray(t *testing.T) {
	raw := `{
		"type": "object",
		"properties": {
			"address": {
				"type": "object",
				"required": ["city"],
				"properties": {"city": {"type": "string"}}
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}`
	s, err := schema.Compile(raw)
	require.NoError(t, err)

	addr := core.NewDoc()
	addr.Set("city", core.String("nyc"))
	doc := docOf(map[string]core.Value{
		"address": core.DocumentValue(addr),
		"tags":    core.Array([]core.Value{core.String("a"), core.String("b")}),
	})
	assert.NoError(t, s.Validate(doc))

	badAddr := core.NewDoc()
	bad := docOf(map[string]core.Value{"address": core.DocumentValue(badAddr)})
	assert.Error(t, s.Validate(bad))
}

func TestRawReturnsOriginalText(t *testing.T) {
	raw := `{"type": "object"}`
	s, err := schema.Compile(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, s.Raw())
}
