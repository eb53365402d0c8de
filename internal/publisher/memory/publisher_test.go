package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(t.Context(), "roast.created", map[string]string{"roast_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	id, err = p.Publish(t.Context(), "roast.created", map[string]string{"roast_id": "r2"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "roast.created", msgs[0].Event)
	assert.Equal(t, map[string]string{"roast_id": "r1"}, msgs[0].Payload)
}
