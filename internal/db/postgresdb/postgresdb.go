// Package postgresdb provides the PostgreSQL implementation of the
// storage contract: user accounts, short links, per-day quota counters
// and click accounting. Schema migrations run through goose on startup.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/shortly/internal/db/storage"
	"github.com/patric-chuzhbe/shortly/internal/shortlink"
	"github.com/patric-chuzhbe/shortly/internal/user"
)

// PostgresDB is a PostgreSQL-backed implementation of the storage contract.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables dropping all public tables before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("resetting database before migration: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return result, nil
}

func (db *PostgresDB) queryerFor(transaction *sql.Tx) queryer {
	if transaction == nil {
		return db.database
	}
	return transaction
}

func (db *PostgresDB) executorFor(transaction *sql.Tx) executor {
	if transaction == nil {
		return db.database
	}
	return transaction
}

// uniqueViolationCode is the PostgreSQL error code for unique_violation.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CreateUser inserts a new user record and returns its generated ID.
// Returns storage.ErrAlreadyExists when the email is already taken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		usr.Email,
		usr.PasswordHash,
	)
	var userIDFromDB string
	err := row.Scan(&userIDFromDB)
	if err != nil {
		if isUniqueViolation(err) {
			return "", storage.ErrAlreadyExists
		}
		return "", err
	}

	return userIDFromDB, nil
}

// GetUserByID fetches a user by their UUID.
// If the user does not exist, it returns a user with an empty ID field.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	if userID == "" {
		return &user.User{ID: ""}, nil
	}

	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE id = $1`,
		userID,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &user.User{ID: ""}, nil
		}
		return &user.User{ID: ""}, err
	}

	return usr, nil
}

// GetUserByEmail fetches a user by their login identity.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`,
		email,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// ConsumeDailyQuota performs the atomic check-and-increment of the
// owner's counter for the given day. The conditional upsert is a single
// statement, so concurrent creations by the same owner serialize on the
// row and can never push the count past the limit.
func (db *PostgresDB) ConsumeDailyQuota(
	ctx context.Context,
	userID string,
	day string,
	limit int,
	transaction *sql.Tx,
) (bool, error) {
	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`
			INSERT INTO user_daily_counts (user_id, day, count)
				VALUES ($1, $2, 1)
				ON CONFLICT (user_id, day) DO UPDATE
				SET count = user_daily_counts.count + 1
				WHERE user_daily_counts.count < $3
				RETURNING count
		`,
		userID,
		day,
		limit,
	)
	var count int
	err := row.Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// ReleaseDailyQuota decrements the owner's counter for the given day,
// never below zero.
func (db *PostgresDB) ReleaseDailyQuota(
	ctx context.Context,
	userID string,
	day string,
	transaction *sql.Tx,
) error {
	_, err := db.executorFor(transaction).ExecContext(
		ctx,
		`
			UPDATE user_daily_counts
				SET count = count - 1
				WHERE user_id = $1 AND day = $2 AND count > 0
		`,
		userID,
		day,
	)

	return err
}

// InsertShortLink creates a new short link record.
// Returns storage.ErrAlreadyExists on a duplicate short key.
func (db *PostgresDB) InsertShortLink(ctx context.Context, link *shortlink.ShortLink, transaction *sql.Tx) error {
	_, err := db.executorFor(transaction).ExecContext(
		ctx,
		`
			INSERT INTO short_links (id, short, "full", owner_id, created_at)
				VALUES ($1, $2, $3, $4, $5)
		`,
		link.ID,
		link.Short,
		link.Full,
		link.OwnerID,
		link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return err
	}

	return nil
}

// FindLinkByShort retrieves the link record for the given short key.
func (db *PostgresDB) FindLinkByShort(ctx context.Context, short string) (*shortlink.ShortLink, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, short, "full", clicks, owner_id, created_at
				FROM short_links
				WHERE short = $1
		`,
		short,
	)
	link := &shortlink.ShortLink{}
	err := row.Scan(&link.ID, &link.Short, &link.Full, &link.Clicks, &link.OwnerID, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return link, true, nil
}

// FindLinksByOwner returns all links created by the given user.
func (db *PostgresDB) FindLinksByOwner(ctx context.Context, ownerID string) ([]shortlink.ShortLink, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, short, "full", clicks, owner_id, created_at
				FROM short_links
				WHERE owner_id = $1
				ORDER BY created_at
		`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []shortlink.ShortLink{}
	for rows.Next() {
		var link shortlink.ShortLink
		err = rows.Scan(&link.ID, &link.Short, &link.Full, &link.Clicks, &link.OwnerID, &link.CreatedAt)
		if err != nil {
			return nil, err
		}

		result = append(result, link)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// IsShortExists checks if the specified short key is already taken.
func (db *PostgresDB) IsShortExists(ctx context.Context, short string) (bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM short_links WHERE short = $1`,
		short,
	)
	var shortCount int
	err := row.Scan(&shortCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	return shortCount > 0, nil
}

// AddClicks increases the click counter of the link by delta.
func (db *PostgresDB) AddClicks(ctx context.Context, short string, delta int64) error {
	_, err := db.database.ExecContext(
		ctx,
		`UPDATE short_links SET clicks = clicks + $2 WHERE short = $1`,
		short,
		delta,
	)

	return err
}

// GetNumberOfShortLinks returns the total number of stored links.
func (db *PostgresDB) GetNumberOfShortLinks(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_links`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("dropping public tables: %w", err)
	}
	return nil
}
