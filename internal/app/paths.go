package app

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved paths under the voicememo home directory
type Paths struct {
	Home    string // base directory (~/.voicememo)
	Audio   string // finished recordings
	PDF     string // downloaded transcript PDFs
	Capture string // in-progress capture files
	DB      string // notes.db
	Setting string // setting.yaml
}

// ResolvePaths returns all paths based on the VOICEMEMO_HOME environment
// variable, defaulting to ~/.voicememo
func ResolvePaths() Paths {
	home := os.Getenv("VOICEMEMO_HOME")
	if home == "" {
		if userHome, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(userHome, ".voicememo")
		} else {
			home = ".voicememo"
		}
	}

	return Paths{
		Home:    home,
		Audio:   filepath.Join(home, "audio"),
		PDF:     filepath.Join(home, "pdf"),
		Capture: filepath.Join(home, "capture"),
		DB:      filepath.Join(home, "notes.db"),
		Setting: filepath.Join(home, "setting.yaml"),
	}
}

// EnsureDirs creates the home directory tree if it does not exist
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Home, p.Audio, p.PDF, p.Capture} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
