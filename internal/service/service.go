// Package service implements the application core: account
// registration and login, token pair refresh, quota-guarded short link
// creation and redirect resolution.
package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/shortly/internal/db/storage"
	"github.com/patric-chuzhbe/shortly/internal/models"
	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/token"
	"github.com/patric-chuzhbe/shortly/internal/user"
)

// Sentinel errors of the application core. The router translates them
// into status codes and stable machine-readable error codes.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrRefreshRejected    = errors.New("refresh token rejected")
	ErrQuotaExceeded      = errors.New("daily link limit reached")
	ErrLinkNotFound       = errors.New("short link not found")
	ErrInvalidInput       = errors.New("there is no valid URL in the request")
)

// TriesToGenerateUniqueKey bounds the short key collision retry loop.
const TriesToGenerateUniqueKey = 10

const shortKeySymbols = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type usersKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)
	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)
}

type linksKeeper interface {
	InsertShortLink(ctx context.Context, link *shortlink.ShortLink, transaction *sql.Tx) error
	FindLinkByShort(ctx context.Context, short string) (*shortlink.ShortLink, bool, error)
	FindLinksByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error)
	IsShortExists(ctx context.Context, short string) (bool, error)
	GetNumberOfShortLinks(ctx context.Context) (int64, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)
	RollbackTransaction(transaction *sql.Tx) error
	CommitTransaction(transaction *sql.Tx) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type serviceStorage interface {
	usersKeeper
	linksKeeper
	transactioner
	pinger
}

type tokenIssuer interface {
	Issue(userID string) (*token.Pair, error)
	VerifyRefresh(tokenString string) (string, error)
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type quotaTracker interface {
	TryConsume(ctx context.Context, ownerID string, when time.Time, transaction *sql.Tx) (bool, error)
	Release(ctx context.Context, ownerID string, when time.Time, transaction *sql.Tx) error
}

type clicksTracker interface {
	Enqueue(short string)
}

// Service wires storage, tokens, hashing, quota and click accounting
// into the operations exposed over HTTP.
type Service struct {
	db             serviceStorage
	tokens         tokenIssuer
	passwords      passwordHasher
	quota          quotaTracker
	clicks         clicksTracker
	shortURLBase   string
	shortKeyLength int
}

func New(
	db serviceStorage,
	tokens tokenIssuer,
	passwords passwordHasher,
	quota quotaTracker,
	clicks clicksTracker,
	shortURLBase string,
	shortKeyLength int,
) *Service {
	return &Service{
		db:             db,
		tokens:         tokens,
		passwords:      passwords,
		quota:          quota,
		clicks:         clicks,
		shortURLBase:   shortURLBase,
		shortKeyLength: shortKeyLength,
	}
}

// Register creates a new account and returns a fresh token pair.
// Fails with ErrEmailTaken when the email is already registered.
func (s *Service) Register(ctx context.Context, email, password string) (*token.Pair, error) {
	passwordHash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	userID, err := s.db.CreateUser(
		ctx,
		&user.User{
			ID:           uuid.New().String(),
			Email:        email,
			PasswordHash: passwordHash,
		},
		nil,
	)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return s.tokens.Issue(userID)
}

// Login verifies the credentials and returns a fresh token pair.
// Unknown email and wrong password both fail with ErrInvalidCredentials
// so the response cannot be used for account enumeration.
func (s *Service) Login(ctx context.Context, email, password string) (*token.Pair, error) {
	usr, found, err := s.db.GetUserByEmail(ctx, email, nil)
	if err != nil {
		return nil, err
	}
	if !found || !s.passwords.Verify(password, usr.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.tokens.Issue(usr.ID)
}

// Refresh verifies a refresh token and rotates the whole pair.
// A bad token fails with ErrRefreshRejected; a token whose account no
// longer exists fails with ErrUnauthenticated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrRefreshRejected
	}

	usr, err := s.db.GetUserByID(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if usr.ID == "" {
		return nil, ErrUnauthenticated
	}

	return s.tokens.Issue(usr.ID)
}

// CreateShortLink creates a quota-guarded short link for the owner.
// The quota consumption and the link insert share one transaction, so a
// creation that fails downstream never leaves quota consumed.
func (s *Service) CreateShortLink(ctx context.Context, ownerID, fullURL string) (*shortlink.ShortLink, error) {
	if !isValidURL(fullURL) {
		return nil, ErrInvalidInput
	}

	now := time.Now()

	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.db.RollbackTransaction(tx)
	}()

	allowed, err := s.quota.TryConsume(ctx, ownerID, now, tx)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrQuotaExceeded
	}

	short, err := s.generateShortKey(ctx)
	if err != nil {
		if releaseErr := s.quota.Release(ctx, ownerID, now, tx); releaseErr != nil {
			return nil, releaseErr
		}
		return nil, err
	}

	link := &shortlink.ShortLink{
		ID:        uuid.New().String(),
		Short:     short,
		Full:      fullURL,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	if err := s.db.InsertShortLink(ctx, link, tx); err != nil {
		if releaseErr := s.quota.Release(ctx, ownerID, now, tx); releaseErr != nil {
			return nil, releaseErr
		}
		return nil, err
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return nil, err
	}

	return link, nil
}

// ResolveShortLink returns the full URL behind a short key and enqueues
// the click for background counting. The redirect never waits for the
// counter.
func (s *Service) ResolveShortLink(ctx context.Context, short string) (string, error) {
	link, found, err := s.db.FindLinkByShort(ctx, short)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrLinkNotFound
	}

	s.clicks.Enqueue(short)

	return link.Full, nil
}

// GetUserLinks returns every link created by the user.
func (s *Service) GetUserLinks(ctx context.Context, userID string) (models.UserLinks, error) {
	links, err := s.db.FindLinksByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make(models.UserLinks, 0, len(links))
	for _, link := range links {
		result = append(result, models.UserLink{
			ShortURL: s.GetShortURL(link.Short),
			FullURL:  link.Full,
			Clicks:   link.Clicks,
		})
	}

	return result, nil
}

// GetInternalStats returns totals of stored links and registered users.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	urls, err := s.db.GetNumberOfShortLinks(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		URLs:  urls,
		Users: users,
	}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetShortURL renders the public URL for a short key.
func (s *Service) GetShortURL(shortKey string) string {
	return strings.TrimRight(s.shortURLBase, "/") + "/" + shortKey
}

func (s *Service) generateShortKey(ctx context.Context) (string, error) {
	for i := 0; i < TriesToGenerateUniqueKey; i++ {
		shortKey, err := generateRandomString(s.shortKeyLength)
		if err != nil {
			return "", err
		}
		exists, err := s.db.IsShortExists(ctx, shortKey)
		if err != nil {
			return "", err
		}
		if !exists {
			return shortKey, nil
		}
	}

	return "", errors.New("the number of attempts to generate a unique key has been exceeded")
}

func generateRandomString(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		randomIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(shortKeySymbols))))
		if err != nil {
			return "", err
		}
		result[i] = shortKeySymbols[randomIndex.Int64()]
	}

	return string(result), nil
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil &&
		(u.Scheme == "http" || u.Scheme == "https") &&
		u.Host != ""
}
