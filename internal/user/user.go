// Package user defines the user model used throughout the application,
// particularly for authentication and per-day link creation accounting.
package user

// User represents a registered account.
// The email is the login identity and is unique across users.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Email is the unique login identity of the user.
	Email string

	// PasswordHash is the opaque one-way hash of the user's password.
	// It is produced and checked only through the hasher package.
	PasswordHash string

	// DailyLinkCounts maps a calendar-day key ("2006-01-02") to the number
	// of links the user created on that day. Entries are mutated only by
	// the quota tracker.
	DailyLinkCounts map[string]int
}
