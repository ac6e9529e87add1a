package profile

import "time"

// Profile is the authenticated user's record, kept in a single-row table and
// read for display only.
type Profile struct {
	username  string
	email     string
	updatedAt time.Time
}

// NewProfile creates a profile snapshot
func NewProfile(username, email string) *Profile {
	return &Profile{username: username, email: email, updatedAt: time.Now().UTC()}
}

// ReconstructProfile rebuilds a Profile from persisted data
func ReconstructProfile(username, email string, updatedAt time.Time) *Profile {
	return &Profile{username: username, email: email, updatedAt: updatedAt}
}

func (p *Profile) Username() string     { return p.username }
func (p *Profile) Email() string        { return p.email }
func (p *Profile) UpdatedAt() time.Time { return p.updatedAt }
