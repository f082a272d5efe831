// Package storage declares the persistence contract shared by the
// Postgres, JSON-file and in-memory backends, together with the
// storage-level sentinel errors.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/user"
)

// ErrAlreadyExists is returned when a unique constraint is violated,
// e.g. registering an email that is already taken or inserting a
// duplicate short key.
var ErrAlreadyExists = errors.New("record already exists")

// Storage is the full persistence contract of the service.
// Backends that do not support SQL transactions return a nil *sql.Tx
// from BeginTransaction and treat the transaction argument as a no-op.
type Storage interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)

	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)

	// ConsumeDailyQuota atomically increments the owner's counter for the
	// given day key unless it has already reached limit. It reports
	// whether the increment was admitted.
	ConsumeDailyQuota(ctx context.Context, userID, day string, limit int, transaction *sql.Tx) (bool, error)

	// ReleaseDailyQuota compensates a prior ConsumeDailyQuota when the
	// link creation fails downstream. The counter never goes below zero.
	ReleaseDailyQuota(ctx context.Context, userID, day string, transaction *sql.Tx) error

	InsertShortLink(ctx context.Context, link *shortlink.ShortLink, transaction *sql.Tx) error

	FindLinkByShort(ctx context.Context, short string) (*shortlink.ShortLink, bool, error)

	FindLinksByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error)

	IsShortExists(ctx context.Context, short string) (bool, error)

	// AddClicks increases the click counter of the link by delta.
	AddClicks(ctx context.Context, short string, delta int64) error

	GetNumberOfShortLinks(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
