package playback

import (
	"fmt"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/afero"

	"github.com/transono/voicememo/internal/audio/wav"
)

const outputFramesPerBuffer = 1024

// wavTransport plays a fully-loaded WAV file through the default output
// device. The portaudio callback reads sample data while paused or playing;
// pausing outputs silence rather than stopping the stream, which keeps
// Play/Pause cheap and glitch-free.
type wavTransport struct {
	format wav.Format
	stream *portaudio.Stream

	mu      sync.Mutex
	samples []int16
	cursor  int // sample index, channel-interleaved
	playing bool
	started bool
	lastRMS float64
	closed  bool
}

// OpenWAVTransport loads path into memory and opens an output stream on the
// default device
func OpenWAVTransport(fs afero.Fs, path string) (Transport, error) {
	samples, format, err := wav.Read(fs, path)
	if err != nil {
		return nil, fmt.Errorf("load wav %s: %w", path, err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize audio: %w", err)
	}

	t := &wavTransport{
		format:  format,
		samples: samples,
	}

	stream, err := portaudio.OpenDefaultStream(
		0, format.Channels, float64(format.SampleRate), outputFramesPerBuffer, t.fill)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	t.stream = stream
	return t, nil
}

// fill is the portaudio output callback
func (t *wavTransport) fill(out []int16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.playing {
		for i := range out {
			out[i] = 0
		}
		t.lastRMS = 0
		return
	}

	var sum float64
	for i := range out {
		if t.cursor < len(t.samples) {
			s := t.samples[t.cursor]
			out[i] = s
			f := float64(s) / 32768.0
			sum += f * f
			t.cursor++
		} else {
			out[i] = 0
		}
	}
	t.lastRMS = math.Sqrt(sum / float64(len(out)))
}

func (t *wavTransport) Play() error {
	t.mu.Lock()
	needStart := !t.started
	t.started = true
	t.playing = true
	t.mu.Unlock()

	if needStart {
		if err := t.stream.Start(); err != nil {
			t.mu.Lock()
			t.started = false
			t.playing = false
			t.mu.Unlock()
			return fmt.Errorf("start output stream: %w", err)
		}
	}
	return nil
}

func (t *wavTransport) Pause() {
	t.mu.Lock()
	t.playing = false
	t.mu.Unlock()
}

func (t *wavTransport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.cursor) / float64(t.format.SampleRate*t.format.Channels)
}

func (t *wavTransport) SetPosition(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cursor := int(seconds * float64(t.format.SampleRate*t.format.Channels))
	// align to a frame boundary so channels do not swap
	cursor -= cursor % t.format.Channels
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(t.samples) {
		cursor = len(t.samples)
	}
	t.cursor = cursor
}

func (t *wavTransport) Duration() float64 {
	return float64(len(t.samples)) / float64(t.format.SampleRate*t.format.Channels)
}

// PowerDB reports the output power of the most recent buffer in dBFS
func (t *wavTransport) PowerDB() float64 {
	t.mu.Lock()
	rms := t.lastRMS
	t.mu.Unlock()

	if rms <= 0 {
		return -160
	}
	return 20 * math.Log10(rms)
}

func (t *wavTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.playing = false
	t.mu.Unlock()

	_ = t.stream.Stop()
	err := t.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
