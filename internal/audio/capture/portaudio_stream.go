package capture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/transono/voicememo/internal/audio/wav"
)

const framesPerBuffer = 1024

// portaudioStream adapts a portaudio input stream to InputStream
type portaudioStream struct {
	stream *portaudio.Stream
}

// OpenPortaudioStream opens the default input device. The returned stream
// owns the portaudio initialization; Close terminates it.
func OpenPortaudioStream(format wav.Format, onBuffer func([]int16)) (InputStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		format.Channels, 0, float64(format.SampleRate), framesPerBuffer,
		func(in []int16) {
			onBuffer(in)
		},
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open default input stream: %w", err)
	}

	return &portaudioStream{stream: stream}, nil
}

func (p *portaudioStream) Start() error {
	return p.stream.Start()
}

// Stop blocks until pending callbacks completed; portaudio guarantees no
// callback fires after Stop returns
func (p *portaudioStream) Stop() error {
	return p.stream.Stop()
}

func (p *portaudioStream) Close() error {
	err := p.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
