package wav

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	format := Format{SampleRate: 8000, Channels: 1}

	w, err := NewWriter(fs, "take.wav", format)
	require.NoError(t, err)

	payload := []int16{0, 100, -100, 32767, -32768, 42}
	require.NoError(t, w.WriteSamples(payload[:3]))
	require.NoError(t, w.WriteSamples(payload[3:]))
	require.NoError(t, w.Close())

	samples, got, err := Read(fs, "take.wav")
	require.NoError(t, err)
	assert.Equal(t, format, got)
	assert.Equal(t, payload, samples)
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(fs, "x.wav", Format{SampleRate: 8000, Channels: 1})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Error(t, w.WriteSamples([]int16{1}))
}

func TestWriterDuration(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := NewWriter(fs, "d.wav", Format{SampleRate: 1000, Channels: 2})
	require.NoError(t, err)

	// 1000 stereo frames at 1 kHz = one second
	require.NoError(t, w.WriteSamples(make([]int16, 2000)))
	assert.InDelta(t, 1.0, w.DurationSeconds(), 1e-9)
	require.NoError(t, w.Close())
}

func TestReadRejectsGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.wav", []byte("definitely not a wav file because"), 0644))

	_, _, err := Read(fs, "bad.wav")
	assert.Error(t, err)
}

func TestDurationHelper(t *testing.T) {
	assert.InDelta(t, 2.0, Duration(16000, Format{SampleRate: 8000, Channels: 1}), 1e-9)
	assert.InDelta(t, 1.0, Duration(16000, Format{SampleRate: 8000, Channels: 2}), 1e-9)
	assert.Zero(t, Duration(100, Format{}))
}
