package note

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// LocalID identifies a Note in the local store. It is minted once at first
// persistence and never reassigned, so it is the stable join key for anything
// that needs to follow a Note across re-synchronization.
type LocalID string

// NewLocalID mints a new local identifier using ULID
// Format: ULID (e.g., 01JB6X8Y2K9FQR4T3VWHGP5M2C)
func NewLocalID() LocalID {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return LocalID(id.String())
}

// ParseLocalID validates a string as a local identifier
func ParseLocalID(s string) (LocalID, error) {
	if s == "" {
		return "", fmt.Errorf("local id cannot be empty")
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", fmt.Errorf("invalid local id %q: %w", s, err)
	}
	return LocalID(s), nil
}

func (id LocalID) String() string {
	return string(id)
}

// ServerID identifies the same Note on the record service. Empty until the
// first successful upload or until the Note arrives through a sync page.
type ServerID string

func (id ServerID) String() string {
	return string(id)
}

// IsZero reports whether the Note has no remote identity yet
func (id ServerID) IsZero() bool {
	return id == ""
}

// Int64 returns the numeric record id the server assigned
func (id ServerID) Int64() (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid server id %q: %w", string(id), err)
	}
	return n, nil
}
