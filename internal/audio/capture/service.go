// Package capture drives a microphone input stream to a WAV file while
// emitting a live amplitude signal for visualization.
package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
	"github.com/transono/voicememo/internal/audio/wav"
)

// State is the capture state machine: idle -> recording -> idle
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// InputStream is an open microphone stream delivering PCM buffers to the
// callback it was opened with. Stop must not return until no further
// callbacks will fire.
type InputStream interface {
	Start() error
	Stop() error
	Close() error
}

// StreamOpener opens an input stream in the given format. The callback runs
// on the capture thread and must stay cheap.
type StreamOpener func(format wav.Format, onBuffer func([]int16)) (InputStream, error)

// AmplitudeListener receives one band vector per captured buffer. Calls are
// serialized on a single dispatch goroutine, never on the capture thread.
type AmplitudeListener func(bands []float32)

// Service records microphone input to a file. Start is idempotent while
// recording; Stop is awaitable and idempotent.
type Service struct {
	gate       output.PermissionGate
	fs         afero.Fs
	captureDir string
	format     wav.Format
	bandCount  int
	open       StreamOpener

	mu        sync.Mutex
	state     State
	writer    *wav.Writer
	stream    InputStream
	fileName  string
	writeErr  error
	listeners []AmplitudeListener

	// ioMu guards writer access from the capture callback against Stop
	ioMu sync.Mutex

	dispatch     chan []float32
	dispatchDone chan struct{}
}

// NewService creates an idle capture service. The opener defaults to the
// portaudio stream when nil.
func NewService(gate output.PermissionGate, fs afero.Fs, captureDir string, sampleRate, bandCount int, open StreamOpener) *Service {
	if open == nil {
		open = OpenPortaudioStream
	}
	return &Service{
		gate:       gate,
		fs:         fs,
		captureDir: captureDir,
		format:     wav.Format{SampleRate: sampleRate, Channels: 1},
		bandCount:  bandCount,
		open:       open,
		state:      StateIdle,
	}
}

// OnAmplitude registers an amplitude listener. Listeners registered while
// recording start receiving bands with the next buffer.
func (s *Service) OnAmplitude(l AmplitudeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// State returns the current capture state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a capture. A no-op (not an error) while already recording.
// Permission denial leaves the service idle and returns ErrPermissionDenied.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRecording {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	granted, err := s.gate.RequestRecordPermission(ctx)
	if err != nil {
		return fmt.Errorf("request record permission: %w", err)
	}
	if !granted {
		return output.ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRecording {
		return nil
	}

	fileName := uuid.NewString() + ".wav"
	writer, err := wav.NewWriter(s.fs, filepath.Join(s.captureDir, fileName), s.format)
	if err != nil {
		return fmt.Errorf("open capture file: %w", err)
	}

	// Wire up the sinks before the stream starts so the first callback
	// already sees them
	s.ioMu.Lock()
	s.writer = writer
	s.ioMu.Unlock()
	s.fileName = fileName
	s.writeErr = nil
	s.dispatch = make(chan []float32, 1)
	s.dispatchDone = make(chan struct{})
	go s.runDispatch(s.dispatch, s.dispatchDone)

	stream, err := s.open(s.format, s.onBuffer)
	if err == nil {
		err = stream.Start()
		if err != nil {
			stream.Close()
		}
	}
	if err != nil {
		close(s.dispatch)
		<-s.dispatchDone
		s.ioMu.Lock()
		writer.Close()
		s.writer = nil
		s.ioMu.Unlock()
		return fmt.Errorf("open input stream: %w", err)
	}

	s.stream = stream
	s.state = StateRecording
	app.GetLogger().Debug("capture started: %s", fileName)
	return nil
}

// Stop ends the capture. It returns only after the input stream is fully
// released and the file is complete and closed, so a save or transcode step
// immediately after is safe. Repeated stops are no-ops.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return nil
	}
	stream := s.stream
	dispatch := s.dispatch
	done := s.dispatchDone
	s.mu.Unlock()

	// Release the tap first: after Stop returns no callback fires, so the
	// writer can be finalized without racing the capture thread.
	if err := stream.Stop(); err != nil {
		app.GetLogger().Warn("stop input stream: %v", err)
	}
	if err := stream.Close(); err != nil {
		app.GetLogger().Warn("close input stream: %v", err)
	}

	close(dispatch)
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ioMu.Lock()
	err := s.writer.Close()
	s.ioMu.Unlock()

	s.state = StateIdle
	s.stream = nil
	if err != nil {
		return fmt.Errorf("finalize capture file: %w", err)
	}
	if s.writeErr != nil {
		return fmt.Errorf("capture write failed: %w", s.writeErr)
	}
	app.GetLogger().Debug("capture stopped: %s (%.1fs)", s.fileName, s.writer.DurationSeconds())
	return nil
}

// RecordedFile returns the path of the just-finished capture file, ready to
// be read or handed to the save flow. Valid only after Stop completed.
func (s *Service) RecordedFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRecording || s.fileName == "" {
		return ""
	}
	return filepath.Join(s.captureDir, s.fileName)
}

// ElapsedSeconds returns the audio length accumulated so far
func (s *Service) ElapsedSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return 0
	}
	return s.writer.DurationSeconds()
}

// onBuffer runs on the capture thread: append to file, compute bands, hand
// off to the dispatcher. Work here is bounded by the band count; it never
// blocks on the dispatch channel.
func (s *Service) onBuffer(samples []int16) {
	s.ioMu.Lock()
	if s.writer != nil {
		if err := s.writer.WriteSamples(samples); err != nil && s.writeErr == nil {
			s.writeErr = err
		}
	}
	s.ioMu.Unlock()

	bands := ComputeBands(samples, s.bandCount)
	select {
	case s.dispatch <- bands:
	default:
		// A stale frame is worthless for a live meter; drop it
	}
}

// runDispatch delivers band vectors to listeners, serialized on one goroutine
func (s *Service) runDispatch(ch <-chan []float32, done chan<- struct{}) {
	defer close(done)
	for bands := range ch {
		s.mu.Lock()
		listeners := make([]AmplitudeListener, len(s.listeners))
		copy(listeners, s.listeners)
		s.mu.Unlock()

		for _, l := range listeners {
			l(bands)
		}
	}
}
