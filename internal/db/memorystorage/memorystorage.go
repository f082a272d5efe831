// Package memorystorage provides an in-memory storage backend reusing
// the jsondb cache without touching the filesystem. It is the fallback
// when neither a database DSN nor a file path is configured.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/shortly/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
