// Package memo holds the local-first memo operations: saving a finished
// recording, editing, deleting, and pulling in async artifacts.
package memo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
	"github.com/transono/voicememo/internal/audio/wav"
	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
)

// Uploader pushes a saved Note to the record service in the background
type Uploader interface {
	UploadNote(n *note.Note)
}

// Archiver keeps an off-device copy of recordings. Optional.
type Archiver interface {
	Archive(ctx context.Context, name string, content []byte) (*output.AudioBlobMetadata, error)
}

// Service implements the memo operations on top of the Note store
type Service struct {
	notes    repository.NoteRepository
	storage  output.AudioStorage
	gateway  output.RecordsGateway
	location output.LocationProvider
	uploader Uploader
	archiver Archiver // nil disables archiving
	fs       afero.Fs
}

func NewService(
	notes repository.NoteRepository,
	storage output.AudioStorage,
	gateway output.RecordsGateway,
	location output.LocationProvider,
	uploader Uploader,
	archiver Archiver,
	fs afero.Fs,
) *Service {
	return &Service{
		notes:    notes,
		storage:  storage,
		gateway:  gateway,
		location: location,
		uploader: uploader,
		archiver: archiver,
		fs:       fs,
	}
}

// SaveRecordingRequest describes a finished capture about to become a Note
type SaveRecordingRequest struct {
	CaptureFile string // path of the file the capture service produced
	Title       string
	FolderID    string
	RecordedAt  time.Time
}

// SaveRecording moves the captured file into the audio store, persists a
// local-only Note and hands it to the uploader. The Note counts as saved the
// moment the local write commits; upload and archive outcomes never undo it.
func (s *Service) SaveRecording(ctx context.Context, req SaveRecordingRequest) (*note.Note, error) {
	content, err := afero.ReadFile(s.fs, req.CaptureFile)
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}

	blobName := filepath.Base(req.CaptureFile)
	meta, err := s.storage.Save(ctx, blobName, content)
	if err != nil {
		return nil, err
	}

	duration := note.DurationUnknown
	if samples, format, err := wav.Read(s.fs, meta.StoragePath); err == nil {
		duration = int(wav.Duration(len(samples), format))
	}

	recordedAt := req.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	n, err := note.NewNote(req.FolderID, req.Title, blobName, duration, recordedAt)
	if err != nil {
		return nil, err
	}

	if fix, err := s.location.CurrentFix(ctx); err == nil {
		loc := note.ReconstructLocation(fix.Latitude, fix.Longitude, fix.CityName, fix.StreetName)
		n.SetLocation(&loc)
	} else if !errors.Is(err, output.ErrLocationUnavailable) {
		app.GetLogger().Warn("location fix failed: %v", err)
	}

	saved, err := s.notes.Create(ctx, n)
	if err != nil {
		return nil, err
	}

	// the capture file has a durable home now
	if err := s.fs.Remove(req.CaptureFile); err != nil {
		app.GetLogger().Warn("remove capture file %s: %v", req.CaptureFile, err)
	}

	if s.archiver != nil {
		if _, err := s.archiver.Archive(ctx, blobName, content); err != nil {
			app.GetLogger().Warn("archive %s: %v", blobName, err)
		}
	}

	s.uploader.UploadNote(saved)
	app.GetLogger().Info("saved recording %s as note %s", blobName, saved.LocalID())
	return saved, nil
}

// List returns Notes matching the options
func (s *Service) List(ctx context.Context, opts repository.FetchOptions) ([]*note.Note, error) {
	return s.notes.Fetch(ctx, opts)
}

// Get returns one Note by local identity
func (s *Service) Get(ctx context.Context, id note.LocalID) (*note.Note, error) {
	return s.notes.FindByLocalID(ctx, id)
}

// Rename changes a Note's title
func (s *Service) Rename(ctx context.Context, id note.LocalID, title string) (*note.Note, error) {
	n, err := s.notes.FindByLocalID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := n.Rename(title); err != nil {
		return nil, err
	}
	return s.notes.Upsert(ctx, n)
}

// Delete removes a Note and its local audio blob
func (s *Service) Delete(ctx context.Context, id note.LocalID) error {
	n, err := s.notes.FindByLocalID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		return err
	}
	if n.AudioPath() != "" {
		if err := s.storage.Remove(ctx, n.AudioPath()); err != nil {
			app.GetLogger().Warn("remove audio for note %s: %v", id, err)
		}
	}
	return nil
}

// ApplyTranscription attaches transcription text pushed for a remote record.
// Unknown server identities are ignored; the feed may mention records this
// device never synced.
func (s *Service) ApplyTranscription(ctx context.Context, serverID note.ServerID, text string) error {
	n, err := s.notes.FindByServerID(ctx, serverID)
	if err != nil {
		if errors.Is(err, note.ErrNotFound) {
			app.GetLogger().Debug("transcription for unknown record %s dropped", serverID)
			return nil
		}
		return err
	}
	n.SetTranscription(text)
	_, err = s.notes.Upsert(ctx, n)
	return err
}

// EnsureAudio makes sure the Note's audio exists locally, downloading it from
// the record service when it does not. This is the manual re-entry point for
// a Note whose upload-side audio never arrived.
func (s *Service) EnsureAudio(ctx context.Context, id note.LocalID) (string, error) {
	n, err := s.notes.FindByLocalID(ctx, id)
	if err != nil {
		return "", err
	}

	if n.AudioPath() != "" {
		if path, err := s.storage.Resolve(ctx, n.AudioPath()); err == nil {
			return path, nil
		} else if !errors.Is(err, output.ErrFileMissing) {
			return "", err
		}
	}

	if n.IsLocalOnly() {
		return "", fmt.Errorf("%w: note %s has no remote copy", output.ErrFileMissing, id)
	}

	recordID, err := n.ServerID().Int64()
	if err != nil {
		return "", err
	}
	path, err := s.gateway.DownloadAudio(ctx, recordID)
	if err != nil {
		return "", err
	}

	n.SetAudioPath(filepath.Base(path))
	if _, err := s.notes.Upsert(ctx, n); err != nil {
		return "", err
	}
	app.GetLogger().Info("restored audio for note %s from record %d", id, recordID)
	return path, nil
}

// TranscriptPDF downloads the shareable transcript PDF for a synced Note
func (s *Service) TranscriptPDF(ctx context.Context, id note.LocalID) (string, error) {
	n, err := s.notes.FindByLocalID(ctx, id)
	if err != nil {
		return "", err
	}
	if n.IsLocalOnly() {
		return "", fmt.Errorf("note %s was never uploaded, no transcript available", id)
	}
	recordID, err := n.ServerID().Int64()
	if err != nil {
		return "", err
	}
	return s.gateway.DownloadTranscriptPDF(ctx, recordID)
}
