package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axaubet/bunql/rules"
)

func TestEvaluateTrueFalseShortCircuit(t *testing.T) {
	e, err := rules.New()
	require.NoError(t, err)

	ok, err := e.Evaluate("true", nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("false", nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateEmptyExpressionDeniesDirectly(t *testing.T) {
	e, err := rules.New()
	require.NoError(t, err)

	ok, err := e.Evaluate("", nil, nil)
	require.NoError(t, err)
	assert.False(t, ok, "Evaluate itself denies on an empty expression; callers treat a missing rule as default-allow without calling Evaluate at all")
}

func TestEvaluateAgainstAuthAndResource(t *testing.T) {
	e, err := rules.New()
	require.NoError(t, err)

	auth := &rules.AuthContext{UID: "user-1"}
	resource := map[string]interface{}{"ownerID": "user-1"}

	ok, err := e.Evaluate(`resource.data.ownerID == request.auth.uid`, auth, resource)
	require.NoError(t, err)
	assert.True(t, ok)

	other := &rules.AuthContext{UID: "user-2"}
	ok, err = e.Evaluate(`resource.data.ownerID == request.auth.uid`, other, resource)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateCompiledProgramIsCached(t *testing.T) {
	e, err := rules.New()
	require.NoError(t, err)

	expr := `resource.data.score > 10`
	for i := 0; i < 3; i++ {
		ok, err := e.Evaluate(expr, nil, map[string]interface{}{"score": 20})
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestEvaluateNonBoolResultErrors(t *testing.T) {
	e, err := rules.New()
	require.NoError(t, err)

	_, err = e.Evaluate(`resource.data.score`, nil, map[string]interface{}{"score": 20})
	assert.Error(t, err)
}
