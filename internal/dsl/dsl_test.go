package dsl_test

import (
	"testing"

	"moveregistry-backend/internal/dsl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDSL(t *testing.T) {
	assert.True(t, dsl.IsDSL("dance:wave if tempo > 120"))
	assert.True(t, dsl.IsDSL("dance:idle otherwise"))
	assert.False(t, dsl.IsDSL("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	assert.False(t, dsl.IsDSL("a freeform description of the move"))
	assert.False(t, dsl.IsDSL(""))
}

func TestParse(t *testing.T) {
	conditions, err := dsl.Parse("dance:chest_pop if sentiment > 0.8\ndance:wave if proximity < 2.0\ndance:idle otherwise")
	require.NoError(t, err)
	require.Len(t, conditions, 3)

	assert.Equal(t, dsl.Condition{
		Action:    "dance",
		MoveName:  "chest_pop",
		Variable:  "sentiment",
		Operator:  ">",
		Threshold: 0.8,
	}, conditions[0])
	assert.True(t, conditions[2].Otherwise)
	assert.Equal(t, "idle", conditions[2].MoveName)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"unknown variable", "dance:wave if altitude > 10"},
		{"garbage line among rules", "dance:wave if tempo > 120\nnot a rule"},
		{"empty", "   \n  "},
		{"missing threshold", "dance:wave if tempo >"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dsl.Parse(tc.text)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Empty(t, dsl.Validate("dance:wave if tempo > 120\ndance:idle otherwise"))
	assert.Empty(t, dsl.Validate("just a plain description"), "non-DSL text is accepted as-is")

	assert.Contains(t, dsl.Validate("dance:a otherwise\ndance:b otherwise"), "Only one")
	assert.Contains(t, dsl.Validate("dance:idle otherwise\ndance:wave if tempo > 120"), "must be the last")
	assert.Contains(t, dsl.Validate("dance:wave if altitude > 10"), "Invalid DSL syntax")
}

func TestEvaluate(t *testing.T) {
	conditions, err := dsl.Parse("dance:chest_pop if sentiment > 0.8\ndance:wave if proximity < 2.0\ndance:idle otherwise")
	require.NoError(t, err)

	hit, ok := dsl.Evaluate(conditions, map[string]float64{"sentiment": 0.9, "proximity": 5})
	require.True(t, ok)
	assert.Equal(t, "chest_pop", hit.MoveName)

	hit, ok = dsl.Evaluate(conditions, map[string]float64{"sentiment": 0.1, "proximity": 1.5})
	require.True(t, ok)
	assert.Equal(t, "wave", hit.MoveName)

	hit, ok = dsl.Evaluate(conditions, map[string]float64{"sentiment": 0.1, "proximity": 5})
	require.True(t, ok)
	assert.Equal(t, "idle", hit.MoveName)

	noFallback, err := dsl.Parse("dance:wave if tempo >= 120")
	require.NoError(t, err)
	_, ok = dsl.Evaluate(noFallback, map[string]float64{"tempo": 90})
	assert.False(t, ok)
}
