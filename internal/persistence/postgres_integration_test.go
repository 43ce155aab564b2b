package persistence

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresKV_SessionReset(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that requires database")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	kv, err := ConnectPostgres(ctx, databaseURL)
	require.NoError(t, err)
	defer kv.Close()

	// Unique namespace so parallel runs do not collide.
	b := NewBridge(kv, "test-"+uuid.New().String(), zap.NewNop())

	_, err = b.SessionReset(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, KeyCombinedResumeText, "resume"))

	cleared, err := b.SessionReset(ctx, "sess-2")
	require.NoError(t, err)
	assert.True(t, cleared)

	var text string
	found, err := b.Read(ctx, KeyCombinedResumeText, &text)
	require.NoError(t, err)
	assert.False(t, found)
}
