package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "8ec9eea2-15a7-4f41-9b0b-934a7ea0ecb7"

func newTestService(accessTTL, refreshTTL time.Duration) *Service {
	return New(
		[]byte("test-access-secret"),
		[]byte("test-refresh-secret"),
		accessTTL,
		refreshTTL,
	)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	tokens := newTestService(time.Minute, time.Hour)

	pair, err := tokens.Issue(testUserID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	userID, err := tokens.VerifyAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, testUserID, userID)

	userID, err = tokens.VerifyRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, testUserID, userID)
}

func TestVerifyRejectsCrossTokenUse(t *testing.T) {
	tokens := newTestService(time.Minute, time.Hour)

	pair, err := tokens.Issue(testUserID)
	require.NoError(t, err)

	_, err = tokens.VerifyAccess(pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tokens.VerifyRefresh(pair.Access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	tokens := newTestService(-time.Minute, -time.Minute)

	pair, err := tokens.Issue(testUserID)
	require.NoError(t, err)

	_, err = tokens.VerifyAccess(pair.Access)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = tokens.VerifyRefresh(pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTamperedToken(t *testing.T) {
	tokens := newTestService(time.Minute, time.Hour)

	pair, err := tokens.Issue(testUserID)
	require.NoError(t, err)

	tampered := pair.Access[:len(pair.Access)-2] + "xx"
	_, err = tokens.VerifyAccess(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyMalformedToken(t *testing.T) {
	tokens := newTestService(time.Minute, time.Hour)

	for _, garbage := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := tokens.VerifyAccess(garbage)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestIssueDifferentSecretsPerTokenKind(t *testing.T) {
	otherTokens := New(
		[]byte("other-access-secret"),
		[]byte("other-refresh-secret"),
		time.Minute,
		time.Hour,
	)

	pair, err := otherTokens.Issue(testUserID)
	require.NoError(t, err)

	tokens := newTestService(time.Minute, time.Hour)
	_, err = tokens.VerifyAccess(pair.Access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssueSetsExpirations(t *testing.T) {
	tokens := newTestService(15*time.Minute, 7*24*time.Hour)

	before := time.Now()
	pair, err := tokens.Issue(testUserID)
	require.NoError(t, err)

	assert.WithinDuration(t, before.Add(15*time.Minute), pair.AccessExpiresAt, 5*time.Second)
	assert.WithinDuration(t, before.Add(7*24*time.Hour), pair.RefreshExpiresAt, 5*time.Second)
}
