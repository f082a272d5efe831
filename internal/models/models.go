package models

import "time"

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the access token back to the client.
// The refresh token travels only in the HTTP-only cookie.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
}

// ShortenRequest is the body of POST /shortUrls.
type ShortenRequest struct {
	FullURL string `json:"fullUrl" validate:"required,url"`
}

// ShortLinkResponse is the record returned after a successful link creation.
type ShortLinkResponse struct {
	ID        string    `json:"id"`
	Short     string    `json:"short"`
	ShortURL  string    `json:"short_url"`
	FullURL   string    `json:"full_url"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// UserLink is one entry of the authenticated user's link listing.
type UserLink struct {
	ShortURL string `json:"short_url"`
	FullURL  string `json:"full_url"`
	Clicks   int64  `json:"clicks"`
}

// UserLinks is the response of GET /api/user/urls.
type UserLinks []UserLink

// InternalStatsResponse is the response of GET /api/internal/stats.
type InternalStatsResponse struct {
	URLs  int64 `json:"urls"`
	Users int64 `json:"users"`
}

// ErrorResponse is the JSON error body used by all endpoints.
// Error holds a stable machine-readable code, Message a human hint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)
