// Package token implements issuance and verification of the paired
// access and refresh JWTs. The two tokens are signed with independent
// secrets and carry independent lifetimes, so the short-lived access
// token can be verified statelessly on every request while the
// refresh token re-establishes a session without a password.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrTokenExpired is returned when a token's expiration instant has passed.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid is returned when a token's signature does not verify
// or its payload is malformed.
var ErrTokenInvalid = errors.New("token invalid")

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Pair is the transient result of Issue. It is never persisted: the
// refresh token is handed to the caller for cookie storage and the
// access token goes into the response body.
type Pair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service signs and verifies token pairs. It is pure computation and
// holds no mutable state, so it is safe for concurrent use.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// New creates a token Service with the given signing secrets and
// lifetimes. The secrets must differ so a refresh token can never pass
// access verification and vice versa.
func New(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Issue produces a fresh access/refresh token pair for the user.
func (s *Service) Issue(userID string) (*Pair, error) {
	now := time.Now()
	accessExpiresAt := now.Add(s.accessTTL)
	refreshExpiresAt := now.Add(s.refreshTTL)

	access, err := buildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
		},
		UserID: userID,
	}, s.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refresh, err := buildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiresAt),
		},
		UserID: userID,
	}, s.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &Pair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// VerifyAccess checks an access token and returns the embedded user ID.
// It fails with ErrTokenExpired or ErrTokenInvalid.
func (s *Service) VerifyAccess(tokenString string) (string, error) {
	return verify(tokenString, s.accessSecret)
}

// VerifyRefresh checks a refresh token and returns the embedded user ID.
// It fails with ErrTokenExpired or ErrTokenInvalid.
func (s *Service) VerifyRefresh(tokenString string) (string, error) {
	return verify(tokenString, s.refreshSecret)
}

func verify(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		},
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !parsed.Valid || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}

func buildJWTString(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
