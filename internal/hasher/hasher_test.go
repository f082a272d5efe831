package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	theHasher := NewBcrypt(4)

	hash, err := theHasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, theHasher.Verify("correct horse battery staple", hash))
	assert.False(t, theHasher.Verify("wrong password", hash))
	assert.False(t, theHasher.Verify("correct horse battery staple", "not-a-bcrypt-hash"))
}

func TestHashIsSalted(t *testing.T) {
	theHasher := NewBcrypt(4)

	first, err := theHasher.Hash("pw")
	require.NoError(t, err)
	second, err := theHasher.Hash("pw")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
