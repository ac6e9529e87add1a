package output

import "context"

// PermissionGate asks the platform for a microphone-use grant
type PermissionGate interface {
	// RequestRecordPermission blocks until the user answered the prompt
	// (or a cached answer exists) and reports whether capture may start
	RequestRecordPermission(ctx context.Context) (bool, error)
}

// Fix is a raw coordinate pair with optionally resolved place names
type Fix struct {
	Latitude   float64
	Longitude  float64
	CityName   string
	StreetName string
}

// LocationProvider supplies the device's current position. Implementations
// may resolve place names later; a Fix with empty names is valid.
type LocationProvider interface {
	// CurrentFix returns the current position or ErrLocationUnavailable
	CurrentFix(ctx context.Context) (*Fix, error)
}

// Severity classifies a user-visible notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier surfaces transient user-visible notifications (toasts). The core
// reports upload failures through it and moves on.
type Notifier interface {
	Notify(severity Severity, message string)
}
