package handler

import (
	"testing"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCursor(t *testing.T) {
	created := time.Date(2026, 5, 1, 12, 30, 0, 123, time.UTC)
	encoded := EncodeRunCursor(&store.RunCursor{CreatedAt: created, RunID: "0d6e6c1e-8d3f-4c8e-9a59-9f3b4c6f1a20"})

	decoded, err := DecodeRunCursor(encoded)
	require.NoError(t, err)
	assert.True(t, created.Equal(decoded.CreatedAt))
	assert.Equal(t, "0d6e6c1e-8d3f-4c8e-9a59-9f3b4c6f1a20", decoded.RunID)

	empty, err := DecodeRunCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeRunCursor("%%%")
	assert.Error(t, err)

	_, err = DecodeRunCursor(EncodeRunCursor(&store.RunCursor{CreatedAt: created}))
	assert.Error(t, err)
}
