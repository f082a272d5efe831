// Package hasher wraps one-way password hashing behind a small
// capability interface so the rest of the service never touches the
// hashing primitive directly.
package hasher

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes plain passwords and verifies them against a
// stored hash. Verify must not reveal why a mismatch occurred.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// Bcrypt is the default PasswordHasher backed by golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a Bcrypt hasher. A non-positive cost falls back to
// the library default.
func NewBcrypt(cost int) *Bcrypt {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash produces a salted bcrypt hash of the plain password.
func (b *Bcrypt) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}

	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash.
func (b *Bcrypt) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
