package canned

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roasting-id/roasting-service/internal/roast"
)

func TestGenerateDeterministic(t *testing.T) {
	g := New()
	s := roast.Startup{URL: "https://keren.io", Name: "Keren", Description: "Platform AI"}

	first, err := g.Generate(t.Context(), s)
	require.NoError(t, err)
	second, err := g.Generate(t.Context(), s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "Keren")
	assert.Contains(t, first, "Platform AI")
}

func TestGenerateHandlesEmptyFields(t *testing.T) {
	text, err := New().Generate(t.Context(), roast.Startup{URL: "https://x.id"})
	require.NoError(t, err)
	assert.Contains(t, text, "Startup misterius ini")
	assert.NotEmpty(t, text)
}
