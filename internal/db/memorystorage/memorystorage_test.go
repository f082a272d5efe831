package memorystorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/user"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	userID, err := db.CreateUser(
		context.Background(),
		&user.User{ID: "id-1", Email: "a@x.com", PasswordHash: "hash"},
		nil,
	)
	require.NoError(t, err)

	require.NoError(t, db.InsertShortLink(
		context.Background(),
		&shortlink.ShortLink{ID: "link-1", Short: "abc12345", Full: "https://example.com", OwnerID: userID},
		nil,
	))

	link, found, err := db.FindLinkByShort(context.Background(), "abc12345")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://example.com", link.Full)
}

func TestMemoryStorageCloseAndPingAreNoops(t *testing.T) {
	db, err := New()
	require.NoError(t, err)

	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, db.Close())
}
