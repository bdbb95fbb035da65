package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnum string

const (
	testAlpha testEnum = "alpha"
	testBeta  testEnum = "beta"
)

func newTestNormalizer() *Normalizer[testEnum] {
	return NewNormalizer(map[string]testEnum{
		"alpha": testAlpha,
		"a":     testAlpha,
		"beta":  testBeta,
	}, testAlpha)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name     string
		input    string
		expected testEnum
	}{
		{"exact match", "alpha", testAlpha},
		{"case insensitive", "BETA", testBeta},
		{"with spaces", "  beta  ", testBeta},
		{"alias", "A", testAlpha},
		{"invalid input falls back to default", "gamma", testAlpha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Parse(t *testing.T) {
	n := newTestNormalizer()

	v, err := n.Parse(" Beta ")
	require.NoError(t, err)
	assert.Equal(t, testBeta, v)

	_, err = n.Parse("gamma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[a alpha beta]")
}

func TestNormalizer_Known(t *testing.T) {
	n := newTestNormalizer()
	assert.True(t, n.Known(testBeta))
	assert.False(t, n.Known(testEnum("gamma")))
	assert.Equal(t, []string{"a", "alpha", "beta"}, n.ValidKeys())
}
