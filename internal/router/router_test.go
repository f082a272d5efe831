package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/shortly/internal/auth"
	"github.com/patric-chuzhbe/shortly/internal/clicks"
	"github.com/patric-chuzhbe/shortly/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shortly/internal/hasher"
	"github.com/patric-chuzhbe/shortly/internal/ipchecker"
	"github.com/patric-chuzhbe/shortly/internal/models"
	"github.com/patric-chuzhbe/shortly/internal/quota"
	"github.com/patric-chuzhbe/shortly/internal/service"
	"github.com/patric-chuzhbe/shortly/internal/token"
)

type testServer struct {
	url string
	db  *memorystorage.MemoryStorage
}

func newTestServer(t *testing.T, dailyLimit int, trustedSubnet string) *testServer {
	t.Helper()

	db, err := memorystorage.New()
	require.NoError(t, err)

	tokens := token.New(
		[]byte("test-access-secret"),
		[]byte("test-refresh-secret"),
		15*time.Minute,
		7*24*time.Hour,
	)

	clicksTracker := clicks.New(db, 128, 20*time.Millisecond)
	clicksCtx, stopClicks := context.WithCancel(context.Background())
	clicksTracker.Run(clicksCtx)
	t.Cleanup(stopClicks)

	svc := service.New(
		db,
		tokens,
		hasher.NewBcrypt(4),
		quota.New(db, dailyLimit),
		clicksTracker,
		"http://localhost:8080",
		8,
	)

	ipChecker, err := ipchecker.New(trustedSubnet)
	require.NoError(t, err)

	server := httptest.NewServer(New(
		svc,
		auth.New(tokens, "token"),
		ipChecker,
		"refreshToken",
		7*24*time.Hour,
	))
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, db: db}
}

func (s *testServer) register(t *testing.T, email string) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()

	var authResponse models.AuthResponse
	resp, err := resty.New().R().
		SetBody(models.RegisterRequest{Email: email, Password: "secret123"}).
		SetResult(&authResponse).
		Post(s.url + "/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.NotEmpty(t, authResponse.AccessToken)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refreshToken" {
			refreshCookie = cookie
		}
	}
	require.NotNil(t, refreshCookie)

	return authResponse.AccessToken, refreshCookie
}

func TestPostRegister(t *testing.T) {
	server := newTestServer(t, 100, "")

	_, refreshCookie := server.register(t, "user@example.com")
	assert.True(t, refreshCookie.HttpOnly)
	assert.NotEmpty(t, refreshCookie.Value)
}

func TestPostRegisterDuplicate(t *testing.T) {
	server := newTestServer(t, 100, "")
	server.register(t, "user@example.com")

	var errorResponse models.ErrorResponse
	resp, err := resty.New().R().
		SetBody(models.RegisterRequest{Email: "user@example.com", Password: "another1"}).
		SetError(&errorResponse).
		Post(server.url + "/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "already_exists", errorResponse.Error)
}

func TestPostRegisterInvalidBody(t *testing.T) {
	server := newTestServer(t, 100, "")

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed JSON", body: "{not json"},
		{name: "bad email", body: models.RegisterRequest{Email: "not-an-email", Password: "secret123"}},
		{name: "short password", body: models.RegisterRequest{Email: "user@example.com", Password: "123"}},
		{name: "missing fields", body: map[string]string{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(test.body).
				SetError(&errorResponse).
				Post(server.url + "/register")
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
			assert.Equal(t, "invalid_input", errorResponse.Error)
		})
	}
}

func TestPostLogin(t *testing.T) {
	server := newTestServer(t, 100, "")
	server.register(t, "user@example.com")

	var authResponse models.AuthResponse
	resp, err := resty.New().R().
		SetBody(models.LoginRequest{Email: "user@example.com", Password: "secret123"}).
		SetResult(&authResponse).
		Post(server.url + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.NotEmpty(t, authResponse.AccessToken)
}

func TestPostLoginInvalidCredentials(t *testing.T) {
	server := newTestServer(t, 100, "")
	server.register(t, "user@example.com")

	tests := []struct {
		name  string
		login models.LoginRequest
	}{
		{name: "wrong password", login: models.LoginRequest{Email: "user@example.com", Password: "wrong1"}},
		{name: "unknown email", login: models.LoginRequest{Email: "nobody@example.com", Password: "secret123"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			resp, err := resty.New().R().
				SetBody(test.login).
				SetError(&errorResponse).
				Post(server.url + "/login")
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
			assert.Equal(t, "invalid_credentials", errorResponse.Error)
		})
	}
}

func TestPostRefresh(t *testing.T) {
	server := newTestServer(t, 100, "")
	_, refreshCookie := server.register(t, "user@example.com")

	var authResponse models.AuthResponse
	resp, err := resty.New().R().
		SetCookie(refreshCookie).
		SetResult(&authResponse).
		Post(server.url + "/refresh")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.NotEmpty(t, authResponse.AccessToken)
}

func TestPostRefreshMissingCookie(t *testing.T) {
	server := newTestServer(t, 100, "")

	var errorResponse models.ErrorResponse
	resp, err := resty.New().R().
		SetError(&errorResponse).
		Post(server.url + "/refresh")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	assert.Equal(t, "refresh_missing", errorResponse.Error)
}

func TestPostRefreshRejected(t *testing.T) {
	server := newTestServer(t, 100, "")

	var errorResponse models.ErrorResponse
	resp, err := resty.New().R().
		SetCookie(&http.Cookie{Name: "refreshToken", Value: "not-a-jwt"}).
		SetError(&errorResponse).
		Post(server.url + "/refresh")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	assert.Equal(t, "refresh_rejected", errorResponse.Error)
}

func TestPostShorturls(t *testing.T) {
	server := newTestServer(t, 100, "")
	accessToken, _ := server.register(t, "user@example.com")

	var linkResponse models.ShortLinkResponse
	resp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+accessToken).
		SetBody(models.ShortenRequest{FullURL: "https://example.com/page"}).
		SetResult(&linkResponse).
		Post(server.url + "/shortUrls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Len(t, linkResponse.Short, 8)
	assert.Equal(t, "http://localhost:8080/"+linkResponse.Short, linkResponse.ShortURL)
	assert.Equal(t, "https://example.com/page", linkResponse.FullURL)
	assert.Equal(t, int64(0), linkResponse.Clicks)
}

func TestPostShorturlsRawTokenInAuthorizationHeader(t *testing.T) {
	server := newTestServer(t, 100, "")
	accessToken, _ := server.register(t, "user@example.com")

	resp, err := resty.New().R().
		SetHeader("Authorization", accessToken).
		SetBody(models.ShortenRequest{FullURL: "https://example.com"}).
		Post(server.url + "/shortUrls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
}

func TestPostShorturlsUnauthenticated(t *testing.T) {
	server := newTestServer(t, 100, "")

	tests := []struct {
		name   string
		header string
	}{
		{name: "no token"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var errorResponse models.ErrorResponse
			request := resty.New().R().
				SetBody(models.ShortenRequest{FullURL: "https://example.com"}).
				SetError(&errorResponse)
			if test.header != "" {
				request.SetHeader("Authorization", test.header)
			}
			resp, err := request.Post(server.url + "/shortUrls")
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
			assert.Equal(t, "unauthenticated", errorResponse.Error)
		})
	}
}

func TestPostShorturlsQuotaExceeded(t *testing.T) {
	server := newTestServer(t, 2, "")
	accessToken, _ := server.register(t, "user@example.com")

	client := resty.New()
	for i := 0; i < 2; i++ {
		resp, err := client.R().
			SetHeader("Authorization", "Bearer "+accessToken).
			SetBody(models.ShortenRequest{FullURL: "https://example.com"}).
			Post(server.url + "/shortUrls")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode())
	}

	var errorResponse models.ErrorResponse
	resp, err := client.R().
		SetHeader("Authorization", "Bearer "+accessToken).
		SetBody(models.ShortenRequest{FullURL: "https://example.com"}).
		SetError(&errorResponse).
		Post(server.url + "/shortUrls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode())
	assert.Equal(t, "quota_exceeded", errorResponse.Error)
}

func TestGetRedirecttofullurlCountsClicks(t *testing.T) {
	server := newTestServer(t, 100, "")
	accessToken, _ := server.register(t, "user@example.com")

	var linkResponse models.ShortLinkResponse
	resp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+accessToken).
		SetBody(models.ShortenRequest{FullURL: "https://example.com/page"}).
		SetResult(&linkResponse).
		Post(server.url + "/shortUrls")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	client := resty.New().SetRedirectPolicy(resty.NoRedirectPolicy())
	for i := 0; i < 3; i++ {
		resp, _ := client.R().Get(server.url + "/" + linkResponse.Short)
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode())
		assert.Equal(t, "https://example.com/page", resp.Header().Get("Location"))
	}

	// The click counter is flushed by the background worker.
	assert.Eventually(t, func() bool {
		link, found, err := server.db.FindLinkByShort(context.Background(), linkResponse.Short)
		return err == nil && found && link.Clicks == 3
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGetRedirecttofullurlNotFound(t *testing.T) {
	server := newTestServer(t, 100, "")

	var errorResponse models.ErrorResponse
	resp, err := resty.New().R().
		SetError(&errorResponse).
		Get(server.url + "/NONEXISTENT")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, "not_found", errorResponse.Error)
}

func TestGetUserUrls(t *testing.T) {
	server := newTestServer(t, 100, "")
	accessToken, _ := server.register(t, "user@example.com")

	client := resty.New()
	for _, fullURL := range []string{"https://example.com/1", "https://example.com/2"} {
		resp, err := client.R().
			SetHeader("Authorization", "Bearer "+accessToken).
			SetBody(models.ShortenRequest{FullURL: fullURL}).
			Post(server.url + "/shortUrls")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode())
	}

	var links models.UserLinks
	resp, err := client.R().
		SetHeader("Authorization", "Bearer "+accessToken).
		SetResult(&links).
		Get(server.url + "/api/user/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, links, 2)

	// Another user sees only their own links.
	otherToken, _ := server.register(t, "other@example.com")
	links = nil
	resp, err = client.R().
		SetHeader("Authorization", "Bearer "+otherToken).
		SetResult(&links).
		Get(server.url + "/api/user/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Empty(t, links)
}

func TestGetPing(t *testing.T) {
	server := newTestServer(t, 100, "")

	resp, err := resty.New().R().Get(server.url + "/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestGetInternalStatsForbiddenWithoutTrustedSubnet(t *testing.T) {
	server := newTestServer(t, 100, "")

	resp, err := resty.New().R().Get(server.url + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestGetInternalStats(t *testing.T) {
	server := newTestServer(t, 100, "192.168.1.0/24")
	accessToken, _ := server.register(t, "user@example.com")

	resp, err := resty.New().R().
		SetHeader("Authorization", "Bearer "+accessToken).
		SetBody(models.ShortenRequest{FullURL: "https://example.com"}).
		Post(server.url + "/shortUrls")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var stats models.InternalStatsResponse
	resp, err = resty.New().R().
		SetHeader("X-Real-IP", "192.168.1.42").
		SetResult(&stats).
		Get(server.url + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, int64(1), stats.URLs)
	assert.Equal(t, int64(1), stats.Users)

	// An address outside the subnet is rejected.
	resp, err = resty.New().R().
		SetHeader("X-Real-IP", "10.0.0.1").
		Get(server.url + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}
