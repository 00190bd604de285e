package celengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateAttrs(t *testing.T) {
	attrs := StructToMap(struct {
		Cost     int64    `json:"cost"`
		Category string   `json:"category"`
		Allowed  []string `json:"allowed"`
	}{Cost: 450, Category: "travel", Allowed: []string{"travel", "wellness"}})

	ok, err := EvaluateAttrs(`cost <= 500 && category in allowed`, attrs)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = EvaluateAttrs(`cost > 1000`, attrs)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvaluateAttrsDistinctShapes(t *testing.T) {
	ok, err := EvaluateAttrs(`risk == "high"`, map[string]any{"risk": "high"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = EvaluateAttrs(`score > 40`, map[string]any{"score": 55.0})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvaluateNonBool(t *testing.T) {
	_, err := EvaluateAttrs(`score + 1`, map[string]any{"score": 1.0})
	require.Error(t, err)
}

func TestValidateExpression(t *testing.T) {
	env, err := BuildCelEnvFromAttributes(map[string]any{"cost": 1.0})
	require.NoError(t, err)
	require.NoError(t, ValidateExpression(env, "cost < 10"))
	require.Error(t, ValidateExpression(env, "cost <"))
}
