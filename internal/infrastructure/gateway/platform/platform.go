// Package platform adapts device-level collaborator ports for a terminal
// environment, where there is no OS permission prompt or location service.
package platform

import (
	"context"
	"fmt"
	"io"

	"github.com/transono/voicememo/internal/application/port/output"
)

// TerminalPermissionGate grants microphone use unconditionally. Terminal
// processes inherit audio access from the user session; there is no prompt
// to forward.
type TerminalPermissionGate struct{}

func (TerminalPermissionGate) RequestRecordPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// StaticLocationProvider serves a fixed position, or reports the location
// as unavailable when none was configured.
type StaticLocationProvider struct {
	fix *output.Fix
}

// NewStaticLocationProvider returns a provider pinned to the given fix.
// Pass nil to run without location tagging.
func NewStaticLocationProvider(fix *output.Fix) *StaticLocationProvider {
	return &StaticLocationProvider{fix: fix}
}

func (p *StaticLocationProvider) CurrentFix(ctx context.Context) (*output.Fix, error) {
	if p.fix == nil {
		return nil, output.ErrLocationUnavailable
	}
	return p.fix, nil
}

// TerminalNotifier prints user-visible notifications to the given writer
type TerminalNotifier struct {
	w io.Writer
}

func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w}
}

func (n *TerminalNotifier) Notify(severity output.Severity, message string) {
	fmt.Fprintf(n.w, "[%s] %s\n", severity, message)
}
