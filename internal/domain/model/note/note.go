package note

import (
	"fmt"
	"strings"
	"time"
)

// DurationUnknown marks a Note whose duration has not been measured yet and
// must be derived from the audio file when needed.
const DurationUnknown = -1

// Note is a recorded memo: its metadata plus a reference to the audio file.
//
// A Note carries two identities. The LocalID is minted locally at first
// persistence and never changes; the ServerID is assigned by the record
// service once an upload succeeds, or comes with the record when the Note is
// first seen on a sync page. The store guarantees at most one Note per
// ServerID.
type Note struct {
	localID       LocalID
	serverID      ServerID
	folderID      string
	title         string
	transcription string
	audioPath     string
	createdAt     time.Time
	updatedAt     time.Time
	duration      int
	location      *Location
}

// NewNote creates a local-only Note as produced by the recording flow.
// It has no server identity yet.
func NewNote(folderID, title, audioPath string, duration int, recordedAt time.Time) (*Note, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	if duration < 0 && duration != DurationUnknown {
		return nil, fmt.Errorf("invalid duration %d", duration)
	}
	ts := recordedAt.UTC()
	return &Note{
		localID:   NewLocalID(),
		folderID:  folderID,
		title:     title,
		audioPath: audioPath,
		createdAt: ts,
		updatedAt: ts,
		duration:  duration,
	}, nil
}

// ReconstructNote rebuilds a Note from persisted data.
// Used by the repository when loading from the database.
func ReconstructNote(
	localID LocalID,
	serverID ServerID,
	folderID string,
	title string,
	transcription string,
	audioPath string,
	createdAt time.Time,
	updatedAt time.Time,
	duration int,
	location *Location,
) *Note {
	return &Note{
		localID:       localID,
		serverID:      serverID,
		folderID:      folderID,
		title:         title,
		transcription: transcription,
		audioPath:     audioPath,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		duration:      duration,
		location:      location,
	}
}

func (n *Note) LocalID() LocalID      { return n.localID }
func (n *Note) ServerID() ServerID    { return n.serverID }
func (n *Note) FolderID() string      { return n.folderID }
func (n *Note) Title() string         { return n.title }
func (n *Note) Transcription() string { return n.transcription }
func (n *Note) AudioPath() string     { return n.audioPath }
func (n *Note) CreatedAt() time.Time  { return n.createdAt }
func (n *Note) UpdatedAt() time.Time  { return n.updatedAt }
func (n *Note) Duration() int         { return n.duration }

// Location returns the recording location, or nil if none was captured
func (n *Note) Location() *Location {
	if n.location == nil {
		return nil
	}
	loc := *n.location
	return &loc
}

// IsLocalOnly reports whether the Note has never been uploaded
func (n *Note) IsLocalOnly() bool {
	return n.serverID.IsZero()
}

// AttachServerID backfills the remote identity after a successful upload.
// A Note's server identity is assigned once and never changes.
func (n *Note) AttachServerID(serverID ServerID) error {
	if serverID.IsZero() {
		return fmt.Errorf("server id cannot be empty")
	}
	if !n.serverID.IsZero() && n.serverID != serverID {
		return fmt.Errorf("note %s already bound to server id %s", n.localID, n.serverID)
	}
	n.serverID = serverID
	n.touch()
	return nil
}

// Rename changes the title
func (n *Note) Rename(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	n.title = title
	n.touch()
	return nil
}

// SetTranscription records the transcription text produced asynchronously
func (n *Note) SetTranscription(text string) {
	n.transcription = text
	n.touch()
}

// SetAudioPath points the Note at a (new) local audio file
func (n *Note) SetAudioPath(path string) {
	n.audioPath = path
	n.touch()
}

// SetDuration stores a measured duration in seconds
func (n *Note) SetDuration(seconds int) {
	n.duration = seconds
	n.touch()
}

// SetLocation attaches or replaces the recording location
func (n *Note) SetLocation(loc *Location) {
	if loc == nil {
		n.location = nil
	} else {
		copied := *loc
		n.location = &copied
	}
	n.touch()
}

// MoveToFolder re-tags the Note with a different category
func (n *Note) MoveToFolder(folderID string) {
	n.folderID = folderID
	n.touch()
}

func (n *Note) touch() {
	n.updatedAt = time.Now().UTC()
}
