// Package wav reads and writes 16-bit PCM WAV files, the only format the
// recorder produces. Encoding is delegated to the capture pipeline; this is
// just container plumbing.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

const headerSize = 44

// Format describes the PCM layout of a file
type Format struct {
	SampleRate int
	Channels   int
}

// Writer streams samples into a WAV file, patching the header sizes on Close
type Writer struct {
	file    afero.File
	format  Format
	written int64
	closed  bool
}

// NewWriter creates the file and reserves the header
func NewWriter(fs afero.Fs, path string, format Format) (*Writer, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid wav format %+v", format)
	}

	file, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	w := &Writer{file: file, format: format}
	if err := w.writeHeader(0); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// WriteSamples appends PCM samples
func (w *Writer) WriteSamples(samples []int16) error {
	if w.closed {
		return fmt.Errorf("wav writer is closed")
	}
	if err := binary.Write(w.file, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	w.written += int64(len(samples) * 2)
	return nil
}

// Close patches the header with the final data size and closes the file
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return fmt.Errorf("seek wav header: %w", err)
	}
	if err := w.writeHeader(w.written); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close wav file: %w", err)
	}
	return nil
}

// DurationSeconds returns the length of the audio written so far
func (w *Writer) DurationSeconds() float64 {
	bytesPerSecond := float64(w.format.SampleRate * w.format.Channels * 2)
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(w.written) / bytesPerSecond
}

func (w *Writer) writeHeader(dataSize int64) error {
	header := make([]byte, headerSize)
	bitsPerSample := 16

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // audio format (PCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.format.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.format.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(w.format.SampleRate*w.format.Channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(header[32:34], uint16(w.format.Channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := w.file.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	return nil
}

// Read loads a whole WAV file into memory
func Read(fs afero.Fs, path string) ([]int16, Format, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, Format{}, fmt.Errorf("open wav file: %w", err)
	}
	defer file.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, Format{}, fmt.Errorf("read wav header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("not a valid WAV file")
	}

	format := Format{
		Channels:   int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(header[24:28])),
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, Format{}, fmt.Errorf("invalid wav format in header")
	}

	dataSize := int(binary.LittleEndian.Uint32(header[40:44]))
	raw := make([]byte, dataSize)
	if _, err := io.ReadFull(file, raw); err != nil {
		return nil, Format{}, fmt.Errorf("read wav data: %w", err)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return samples, format, nil
}

// Duration computes the play time of samples in the given format
func Duration(sampleCount int, format Format) float64 {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(format.SampleRate*format.Channels)
}
