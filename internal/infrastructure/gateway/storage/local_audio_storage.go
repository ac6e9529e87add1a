// Package storage keeps recording blobs: locally on disk, and optionally
// archived to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/transono/voicememo/internal/application/port/output"
)

// LocalAudioStorage implements output.AudioStorage on the local filesystem.
// Blobs live flat under the audio directory.
type LocalAudioStorage struct {
	fs       afero.Fs
	audioDir string
}

func NewLocalAudioStorage(fs afero.Fs, audioDir string) *LocalAudioStorage {
	return &LocalAudioStorage{fs: fs, audioDir: audioDir}
}

func (s *LocalAudioStorage) Save(ctx context.Context, name string, content []byte) (*output.AudioBlobMetadata, error) {
	path := filepath.Join(s.audioDir, filepath.Base(name))
	if err := s.fs.MkdirAll(s.audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare audio directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write audio blob %s: %w", name, err)
	}

	return &output.AudioBlobMetadata{
		Name:        filepath.Base(name),
		StoragePath: path,
		Size:        int64(len(content)),
		StoredAt:    time.Now(),
	}, nil
}

func (s *LocalAudioStorage) Load(ctx context.Context, name string) ([]byte, error) {
	path, err := s.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read audio blob %s: %w", name, err)
	}
	return data, nil
}

// Resolve maps an audio reference to an absolute local path. References come
// in three shapes: a bare blob name, an absolute path, or a file:// URL kept
// from older installs.
func (s *LocalAudioStorage) Resolve(ctx context.Context, name string) (string, error) {
	ref := strings.TrimPrefix(name, "file://")

	path := ref
	if !filepath.IsAbs(ref) {
		path = filepath.Join(s.audioDir, ref)
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", output.ErrFileMissing, name)
		}
		return "", fmt.Errorf("stat audio blob %s: %w", name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", output.ErrFileMissing, name)
	}
	return path, nil
}

func (s *LocalAudioStorage) Remove(ctx context.Context, name string) error {
	path, err := s.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, output.ErrFileMissing) {
			return nil
		}
		return err
	}
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove audio blob %s: %w", name, err)
	}
	return nil
}
