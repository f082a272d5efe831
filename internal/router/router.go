// Package router builds the chi HTTP router and translates the
// application core's sentinel errors into status codes and stable
// machine-readable error codes. No internal error detail leaks to the
// caller; storage failures surface as a generic service_unavailable.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shortly/internal/auth"
	"github.com/patric-chuzhbe/shortly/internal/gzippedhttp"
	"github.com/patric-chuzhbe/shortly/internal/ipchecker"
	"github.com/patric-chuzhbe/shortly/internal/logger"
	"github.com/patric-chuzhbe/shortly/internal/models"
	"github.com/patric-chuzhbe/shortly/internal/service"
	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/token"
)

type authenticator interface {
	Authenticate(h http.Handler) http.Handler
}

type shortlyService interface {
	Register(ctx context.Context, email, password string) (*token.Pair, error)
	Login(ctx context.Context, email, password string) (*token.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	CreateShortLink(ctx context.Context, ownerID, fullURL string) (*shortlink.ShortLink, error)
	ResolveShortLink(ctx context.Context, short string) (string, error)
	GetUserLinks(ctx context.Context, userID string) (models.UserLinks, error)
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
	Ping(ctx context.Context) error
	GetShortURL(shortKey string) string
}

// Router holds the HTTP handlers of the service.
type Router struct {
	service           shortlyService
	refreshCookieName string
	refreshTokenTTL   time.Duration
	validate          *validator.Validate
}

// New assembles the chi router with logging, gzip and authentication
// middleware and every endpoint of the service.
func New(
	svc shortlyService,
	theAuth authenticator,
	ipChecker *ipchecker.IPChecker,
	refreshCookieName string,
	refreshTokenTTL time.Duration,
) *chi.Mux {
	theRouter := &Router{
		service:           svc,
		refreshCookieName: refreshCookieName,
		refreshTokenTTL:   refreshTokenTTL,
		validate:          validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipJSONRequest,
	)

	router.With(gzippedhttp.GzipResponse).Post(`/register`, theRouter.PostRegister)
	router.With(gzippedhttp.GzipResponse).Post(`/login`, theRouter.PostLogin)
	router.With(gzippedhttp.GzipResponse).Post(`/refresh`, theRouter.PostRefresh)

	router.With(
		gzippedhttp.GzipResponse,
		theAuth.Authenticate,
	).Post(`/shortUrls`, theRouter.PostShorturls)
	router.With(
		gzippedhttp.GzipResponse,
		theAuth.Authenticate,
	).Get(`/api/user/urls`, theRouter.GetUserUrls)

	router.Get(`/ping`, theRouter.GetPing)
	router.With(theRouter.trustedSubnetOnly(ipChecker)).
		Get(`/api/internal/stats`, theRouter.GetInternalStats)
	router.Get(`/{short}`, theRouter.GetRedirecttofullurl)

	return router
}

// PostRegister handles account creation. On success it returns the
// access token in the body and sets the refresh token cookie.
func (r *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	var registerRequest models.RegisterRequest
	if !r.decodeAndValidate(response, request, &registerRequest) {
		return
	}

	pair, err := r.service.Register(request.Context(), registerRequest.Email, registerRequest.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			writeError(response, http.StatusBadRequest, "already_exists", "user already exists")
			return
		}
		writeInternalError(response, err)
		return
	}

	r.writeTokenPair(response, pair)
}

// PostLogin handles credential login. Unknown email and wrong password
// produce the same response.
func (r *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if !r.decodeAndValidate(response, request, &loginRequest) {
		return
	}

	pair, err := r.service.Login(request.Context(), loginRequest.Email, loginRequest.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(response, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		writeInternalError(response, err)
		return
	}

	r.writeTokenPair(response, pair)
}

// PostRefresh rotates the token pair. The refresh token is accepted
// only from its HTTP-only cookie.
func (r *Router) PostRefresh(response http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(r.refreshCookieName)
	if err != nil {
		writeError(response, http.StatusUnauthorized, "refresh_missing", "refresh token cookie is missing")
		return
	}

	pair, err := r.service.Refresh(request.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshRejected):
			writeError(response, http.StatusForbidden, "refresh_rejected", "invalid refresh token")
		case errors.Is(err, service.ErrUnauthenticated):
			writeError(response, http.StatusUnauthorized, "unauthenticated", "")
		default:
			writeInternalError(response, err)
		}
		return
	}

	r.writeTokenPair(response, pair)
}

// PostShorturls creates a short link for the authenticated user.
func (r *Router) PostShorturls(response http.ResponseWriter, request *http.Request) {
	userID, ok := auth.UserIDFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, "unauthenticated", "")
		return
	}

	var shortenRequest models.ShortenRequest
	if !r.decodeAndValidate(response, request, &shortenRequest) {
		return
	}

	link, err := r.service.CreateShortLink(request.Context(), userID, shortenRequest.FullURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(response, http.StatusBadRequest, "invalid_input", "fullUrl must be a valid http(s) URL")
		case errors.Is(err, service.ErrQuotaExceeded):
			writeError(response, http.StatusTooManyRequests, "quota_exceeded", "daily URL limit reached")
		default:
			writeInternalError(response, err)
		}
		return
	}

	writeJSON(response, http.StatusCreated, models.ShortLinkResponse{
		ID:        link.ID,
		Short:     link.Short,
		ShortURL:  r.service.GetShortURL(link.Short),
		FullURL:   link.Full,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
	})
}

// GetUserUrls lists the authenticated user's links.
func (r *Router) GetUserUrls(response http.ResponseWriter, request *http.Request) {
	userID, ok := auth.UserIDFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, "unauthenticated", "")
		return
	}

	links, err := r.service.GetUserLinks(request.Context(), userID)
	if err != nil {
		writeInternalError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, links)
}

// GetRedirecttofullurl resolves a short key and issues the redirect.
// This path requires no authentication.
func (r *Router) GetRedirecttofullurl(response http.ResponseWriter, request *http.Request) {
	short := chi.URLParam(request, "short")

	full, err := r.service.ResolveShortLink(request.Context(), short)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			writeError(response, http.StatusNotFound, "not_found", "unknown short URL")
			return
		}
		writeInternalError(response, err)
		return
	}

	http.Redirect(response, request, full, http.StatusTemporaryRedirect)
}

// GetPing reports storage health.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.service.Ping(request.Context()); err != nil {
		writeInternalError(response, err)
		return
	}
	response.WriteHeader(http.StatusOK)
}

// GetInternalStats returns service totals. Access is limited to the
// trusted subnet by the middleware.
func (r *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	stats, err := r.service.GetInternalStats(request.Context())
	if err != nil {
		writeInternalError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

func (r *Router) trustedSubnetOnly(ipChecker *ipchecker.IPChecker) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			if ipChecker.IsTrustedSubnetEmpty() {
				writeError(response, http.StatusForbidden, "forbidden", "")
				return
			}
			clientIP, err := ipChecker.GetClientIP(request)
			if err != nil || !ipChecker.Check(clientIP) {
				writeError(response, http.StatusForbidden, "forbidden", "")
				return
			}
			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}

func (r *Router) writeTokenPair(response http.ResponseWriter, pair *token.Pair) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     r.refreshCookieName,
			Value:    pair.Refresh,
			Path:     "/",
			Expires:  pair.RefreshExpiresAt,
			MaxAge:   int(r.refreshTokenTTL.Seconds()),
			HttpOnly: true,
		},
	)

	writeJSON(response, http.StatusOK, models.AuthResponse{AccessToken: pair.Access})
}

func (r *Router) decodeAndValidate(response http.ResponseWriter, request *http.Request, target interface{}) bool {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		writeError(response, http.StatusBadRequest, "invalid_input", "malformed request body")
		return false
	}
	if err := r.validate.Struct(target); err != nil {
		writeError(response, http.StatusBadRequest, "invalid_input", err.Error())
		return false
	}

	return true
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response body:", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, code, message string) {
	writeJSON(response, status, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

func writeInternalError(response http.ResponseWriter, err error) {
	logger.Log.Errorln("Unexpected error while handling the request:", zap.Error(err))
	writeError(response, http.StatusServiceUnavailable, "service_unavailable", "")
}
