// Package jsondb provides a JSON-file-backed implementation of the
// storage contract. The whole dataset lives in an in-memory cache that
// is loaded on startup and flushed to the file on Close.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/shortly/internal/db/storage"
	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/user"
)

type JSONDB struct {
	fileName string
	mu       sync.Mutex
	Cache    CacheStruct
}

type CacheStruct struct {
	// Users is keyed by user ID.
	Users map[string]*user.User

	// EmailIndex maps an email to the owning user ID.
	EmailIndex map[string]string

	// Links is keyed by the short key.
	Links map[string]*shortlink.ShortLink
}

func NewCache() CacheStruct {
	return CacheStruct{
		Users:      map[string]*user.User{},
		EmailIndex: map[string]string{},
		Links:      map[string]*shortlink.ShortLink{},
	}
}

func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}

	return &db, nil
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": {},
	"EmailIndex": {},
	"Links": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cacheMap)
	if err != nil {
		return err
	}

	return nil
}

// The file backend has no real transactions: Begin returns a nil *sql.Tx
// and commit/rollback are no-ops. Atomicity is provided by the mutex.
func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.EmailIndex[usr.Email]; exists {
		return "", storage.ErrAlreadyExists
	}

	stored := &user.User{
		ID:              usr.ID,
		Email:           usr.Email,
		PasswordHash:    usr.PasswordHash,
		DailyLinkCounts: map[string]int{},
	}
	db.Cache.Users[stored.ID] = stored
	db.Cache.EmailIndex[stored.Email] = stored.ID

	return stored.ID, nil
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return &user.User{ID: ""}, nil
	}

	return usr, nil
}

func (db *JSONDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	userID, found := db.Cache.EmailIndex[email]
	if !found {
		return nil, false, nil
	}

	return db.Cache.Users[userID], true, nil
}

func (db *JSONDB) ConsumeDailyQuota(
	ctx context.Context,
	userID string,
	day string,
	limit int,
	transaction *sql.Tx,
) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return false, fmt.Errorf("unknown user %q", userID)
	}
	if usr.DailyLinkCounts == nil {
		usr.DailyLinkCounts = map[string]int{}
	}

	if usr.DailyLinkCounts[day] >= limit {
		return false, nil
	}
	usr.DailyLinkCounts[day]++

	return true, nil
}

func (db *JSONDB) ReleaseDailyQuota(
	ctx context.Context,
	userID string,
	day string,
	transaction *sql.Tx,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, found := db.Cache.Users[userID]
	if !found || usr.DailyLinkCounts == nil {
		return nil
	}
	if usr.DailyLinkCounts[day] > 0 {
		usr.DailyLinkCounts[day]--
	}

	return nil
}

func (db *JSONDB) InsertShortLink(ctx context.Context, link *shortlink.ShortLink, transaction *sql.Tx) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Links[link.Short]; exists {
		return storage.ErrAlreadyExists
	}

	stored := *link
	db.Cache.Links[link.Short] = &stored

	return nil
}

func (db *JSONDB) FindLinkByShort(ctx context.Context, short string) (*shortlink.ShortLink, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	link, found := db.Cache.Links[short]
	if !found {
		return nil, false, nil
	}

	copied := *link

	return &copied, true, nil
}

func (db *JSONDB) FindLinksByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	all := make([]shortlink.ShortLink, 0, len(db.Cache.Links))
	for _, link := range db.Cache.Links {
		all = append(all, *link)
	}

	owned := funk.Filter(all, func(link shortlink.ShortLink) bool {
		return link.OwnerID == ownerID
	}).([]shortlink.ShortLink)

	return owned, nil
}

func (db *JSONDB) IsShortExists(ctx context.Context, short string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, exists := db.Cache.Links[short]

	return exists, nil
}

func (db *JSONDB) AddClicks(ctx context.Context, short string, delta int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	link, found := db.Cache.Links[short]
	if !found {
		return fmt.Errorf("unknown short key %q", short)
	}
	link.Clicks += delta

	return nil
}

func (db *JSONDB) GetNumberOfShortLinks(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Links)), nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	err := writeToJSONFile(db.fileName, db.Cache)
	if err != nil {
		return err
	}

	return nil
}
