// Package mockstorage provides a testify-based mock implementation
// of the storage contract. It is used for unit testing the service and
// HTTP handlers by simulating storage behavior.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/user"
)

// StorageMock is a testify mock that implements the whole storage
// contract used by the service.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks user creation and returns a generated ID.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (string, error) {
	args := m.Called(ctx, usr, tx)
	return args.String(0), args.Error(1)
}

// GetUserByID mocks fetching a user by their ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string, tx *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, userID, tx)
	return args.Get(0).(*user.User), args.Error(1)
}

// GetUserByEmail mocks fetching a user by their login identity.
func (m *StorageMock) GetUserByEmail(ctx context.Context, email string, tx *sql.Tx) (*user.User, bool, error) {
	args := m.Called(ctx, email, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// ConsumeDailyQuota mocks the atomic quota check-and-increment.
func (m *StorageMock) ConsumeDailyQuota(ctx context.Context, userID, day string, limit int, tx *sql.Tx) (bool, error) {
	args := m.Called(ctx, userID, day, limit, tx)
	return args.Bool(0), args.Error(1)
}

// ReleaseDailyQuota mocks the compensating quota decrement.
func (m *StorageMock) ReleaseDailyQuota(ctx context.Context, userID, day string, tx *sql.Tx) error {
	args := m.Called(ctx, userID, day, tx)
	return args.Error(0)
}

// InsertShortLink mocks inserting a new short link record.
func (m *StorageMock) InsertShortLink(ctx context.Context, link *shortlink.ShortLink, tx *sql.Tx) error {
	args := m.Called(ctx, link, tx)
	return args.Error(0)
}

// FindLinkByShort mocks finding a link by its short key.
func (m *StorageMock) FindLinkByShort(ctx context.Context, short string) (*shortlink.ShortLink, bool, error) {
	args := m.Called(ctx, short)
	link, _ := args.Get(0).(*shortlink.ShortLink)
	return link, args.Bool(1), args.Error(2)
}

// FindLinksByOwner mocks listing a user's links.
func (m *StorageMock) FindLinksByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error) {
	args := m.Called(ctx, ownerID)
	links, _ := args.Get(0).([]shortlink.ShortLink)
	return links, args.Error(1)
}

// IsShortExists mocks checking whether a short key is taken.
func (m *StorageMock) IsShortExists(ctx context.Context, short string) (bool, error) {
	args := m.Called(ctx, short)
	return args.Bool(0), args.Error(1)
}

// AddClicks mocks the click counter increment.
func (m *StorageMock) AddClicks(ctx context.Context, short string, delta int64) error {
	args := m.Called(ctx, short, delta)
	return args.Error(0)
}

// GetNumberOfShortLinks mocks the total link count.
func (m *StorageMock) GetNumberOfShortLinks(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfUsers mocks the total user count.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// Ping mocks the storage health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage and releasing resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
