package repository

import (
	"context"
	"errors"

	"github.com/transono/voicememo/internal/domain/model/profile"
)

// ErrNoProfile is returned while nobody has signed in on this device
var ErrNoProfile = errors.New("no stored profile")

// ProfileRepository persists the single authenticated user's profile
type ProfileRepository interface {
	// Save replaces the stored profile
	Save(ctx context.Context, p *profile.Profile) error

	// Load returns the stored profile, or ErrNoProfile
	Load(ctx context.Context) (*profile.Profile, error)

	// Clear removes the stored profile on sign-out
	Clear(ctx context.Context) error
}
