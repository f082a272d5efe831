// Package auth provides the session middleware: it extracts the access
// token from the Authorization header or the access cookie, verifies it
// and attaches the resolved user ID to the request context. The
// middleware performs no storage access; verification is stateless.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/patric-chuzhbe/shortly/internal/models"
)

type accessVerifier interface {
	VerifyAccess(tokenString string) (string, error)
}

// Auth authenticates incoming requests with access tokens.
type Auth struct {
	tokens           accessVerifier
	accessCookieName string
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// New creates an Auth middleware around the given token verifier.
func New(tokens accessVerifier, accessCookieName string) *Auth {
	return &Auth{
		tokens:           tokens,
		accessCookieName: accessCookieName,
	}
}

// Authenticate is an HTTP middleware guarding protected endpoints.
// A missing, malformed or expired access token is rejected with 401 and
// the stable "unauthenticated" error code; redirecting to a login page
// is left to the presentation layer.
func (a *Auth) Authenticate(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString := a.getTokenStringFromAuthorizationHeaderOrCookie(request)
		if tokenString == "" {
			rejectUnauthenticated(response)
			return
		}

		userID, err := a.tokens.VerifyAccess(tokenString)
		if err != nil {
			rejectUnauthenticated(response)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// UserIDFromContext returns the authenticated user ID placed into the
// context by Authenticate.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func (a *Auth) getTokenStringFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := request.Header.Get("Authorization")
	if tokenString != "" {
		return strings.TrimPrefix(tokenString, "Bearer ")
	}
	cookie, err := request.Cookie(a.accessCookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}

func rejectUnauthenticated(response http.ResponseWriter) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(response).Encode(models.ErrorResponse{
		Error: "unauthenticated",
	})
}
