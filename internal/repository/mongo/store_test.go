package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Rrens/smart-chat/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, config.MongoConfig{URI: uri, Database: "smartchat_test", Collection: "kv"}, 5*time.Second)
	require.NoError(t, err)
	defer store.Close()

	key := "test:" + uuid.NewString()
	t.Cleanup(func() { store.coll.DeleteOne(context.Background(), bson.M{"_id": key}) })

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, key, "first"))
	require.NoError(t, store.Set(ctx, key, "second"))

	value, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", value)
}
