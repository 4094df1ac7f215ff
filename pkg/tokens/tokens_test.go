package tokens_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remacdev/chatbot/pkg/tokens"
)

func TestCountKnownModel(t *testing.T) {
	c := tokens.NewCounter()
	n, ok := c.Count("gpt-4o", "user: hello there\nassistant: hi")
	require.True(t, ok)
	assert.Greater(t, n, 0)
}

func TestCountLocalModelFallsBack(t *testing.T) {
	c := tokens.NewCounter()
	n, ok := c.Count("mistral", "a reasonably sized prompt for a local model")
	require.True(t, ok)
	assert.Greater(t, n, 0)

	// More text never counts fewer tokens.
	longer, ok := c.Count("mistral", "a reasonably sized prompt for a local model, but longer")
	require.True(t, ok)
	assert.GreaterOrEqual(t, longer, n)
}

func TestCountEmptyText(t *testing.T) {
	c := tokens.NewCounter()
	n, ok := c.Count("mistral", "")
	require.True(t, ok)
	assert.Zero(t, n)
}
