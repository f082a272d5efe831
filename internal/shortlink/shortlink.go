// Package shortlink defines the short link entity: a mapping from an
// opaque short key to a full URL, owned by the user who created it.
package shortlink

import "time"

// ShortLink maps a short key to a full target URL.
// The short key is unique and immutable after creation.
type ShortLink struct {
	// ID is the unique identifier of the record, meaning a UUID.
	ID string

	// Short is the unique opaque key used in redirect URLs.
	Short string

	// Full is the target URL the short key redirects to.
	Full string

	// Clicks is the number of successful redirects served for this link.
	Clicks int64

	// OwnerID is the ID of the user who created the link.
	OwnerID string

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time
}
