// Package playback drives file-based audio output with transport controls,
// scrubbing and a derived amplitude visualization.
package playback

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
	"github.com/transono/voicememo/internal/domain/model/note"
)

// State is the playback state machine:
// idle -> loading -> ready -> {playing <-> paused} -> finished -> ready
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

const (
	tickInterval = 100 * time.Millisecond
	decayFactor  = 0.85
	// bands below this are snapped to zero so decay actually settles
	decayFloor = 1e-3
)

// Transport is the underlying audio output. Implementations must be safe for
// use from the tick goroutine and the caller's goroutine.
type Transport interface {
	Play() error
	Pause()
	Position() float64 // seconds
	SetPosition(seconds float64)
	Duration() float64 // seconds
	PowerDB() float64  // instantaneous output power, <= 0 dB
	Close() error
}

// TransportFactory opens a transport for a resolved audio file path
type TransportFactory func(path string) (Transport, error)

// Engine binds one Note's audio file to a transport and a 100 ms tick that
// maintains position, slider fraction and amplitude bands.
type Engine struct {
	bandCount int

	mu          sync.Mutex
	state       State
	transport   Transport
	bands       []float32
	currentTime float64
	fraction    float64
	duration    float64
	scrubbing   bool
	loadErr     error
	rng         *rand.Rand

	tickStop chan struct{}
	tickDone chan struct{}
	closed   bool
}

// NewEngine resolves the Note's audio reference and prepares playback.
//
// If the reference cannot be resolved or the file is missing the engine stays
// in loading permanently with no playback possible; LoadError reports the
// cause. This is signaled but non-fatal; every other method is a safe no-op.
func NewEngine(ctx context.Context, n *note.Note, storage output.AudioStorage, bandCount int, factory TransportFactory) *Engine {
	e := &Engine{
		bandCount: bandCount,
		state:     StateLoading,
		bands:     make([]float32, bandCount),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if n.AudioPath() == "" {
		e.loadErr = output.ErrFileMissing
		app.GetLogger().Warn("note %s has no audio reference", n.LocalID())
		return e
	}

	path, err := storage.Resolve(ctx, n.AudioPath())
	if err != nil {
		e.loadErr = err
		app.GetLogger().Warn("resolve audio for note %s: %v", n.LocalID(), err)
		return e
	}

	transport, err := factory(path)
	if err != nil {
		e.loadErr = errors.Join(output.ErrFileMissing, err)
		app.GetLogger().Error("open audio transport: %v", err)
		return e
	}

	e.transport = transport
	e.duration = transport.Duration()
	e.state = StateReady
	e.tickStop = make(chan struct{})
	e.tickDone = make(chan struct{})
	go e.runTicker()
	return e
}

// State returns the current playback state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsLoading reports whether the engine never became playable
func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateLoading
}

// IsPlaying reports whether audio is currently playing
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StatePlaying
}

// LoadError returns why the engine could not become playable, or nil
func (e *Engine) LoadError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// Duration returns the total play time in seconds
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// CurrentTime returns the displayed position in seconds
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

// Fraction returns the normalized slider position in [0, 1]
func (e *Engine) Fraction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fraction
}

// Bands returns a copy of the current amplitude band vector
func (e *Engine) Bands() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float32, len(e.bands))
	copy(out, e.bands)
	return out
}

// TogglePlayback flips playing/paused. A no-op while loading. Toggling a
// finished engine restarts from the beginning.
func (e *Engine) TogglePlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateLoading, StateIdle:
		return
	case StatePlaying:
		e.transport.Pause()
		e.state = StatePaused
	case StateReady, StatePaused:
		if err := e.transport.Play(); err != nil {
			app.GetLogger().Error("start playback: %v", err)
			return
		}
		e.state = StatePlaying
	case StateFinished:
		e.transport.SetPosition(0)
		if err := e.transport.Play(); err != nil {
			app.GetLogger().Error("restart playback: %v", err)
			return
		}
		e.state = StatePlaying
	}
}

// BeginScrub suppresses tick recomputation, freezing the displayed bars
func (e *Engine) BeginScrub() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrubbing = true
}

// UpdateScrub moves the displayed position without touching the transport
func (e *Engine) UpdateScrub(fraction float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.scrubbing {
		return
	}
	f := clampFraction(fraction)
	e.fraction = f
	e.currentTime = f * e.duration
}

// EndScrub commits the scrub: the transport position moves to
// fraction * duration and normal ticking resumes. The committed position wins
// over any queued tick.
func (e *Engine) EndScrub(fraction float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scrubbing = false
	if e.transport == nil {
		return
	}
	f := clampFraction(fraction)
	target := f * e.duration
	e.transport.SetPosition(target)
	e.currentTime = target
	e.fraction = f
}

// Close cancels the tick and releases the transport. No tick callback fires
// after Close begins waiting; Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	tickStop := e.tickStop
	tickDone := e.tickDone
	transport := e.transport
	e.mu.Unlock()

	if tickStop != nil {
		close(tickStop)
		<-tickDone
	}
	if transport != nil {
		return transport.Close()
	}
	return nil
}

func (e *Engine) runTicker() {
	defer close(e.tickDone)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.tickStop:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick recomputes position and bands. Suppressed entirely during a scrub.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scrubbing || e.transport == nil {
		return
	}

	switch e.state {
	case StatePlaying:
		pos := e.transport.Position()
		if e.duration > 0 && pos >= e.duration {
			e.finishLocked()
			return
		}
		e.currentTime = pos
		e.fraction = e.sliderFractionLocked()
		e.refreshBandsLocked()
	case StateFinished:
		// Finished re-enters ready on the next tick
		e.state = StateReady
	default:
		e.currentTime = e.transport.Position()
		e.fraction = e.sliderFractionLocked()
		e.decayBandsLocked()
	}
}

// finishLocked handles natural end-of-file
func (e *Engine) finishLocked() {
	e.transport.Pause()
	e.transport.SetPosition(0)
	e.state = StateFinished
	e.currentTime = 0
	e.fraction = 0
	for i := range e.bands {
		e.bands[i] = 0
	}
}

func (e *Engine) sliderFractionLocked() float64 {
	if e.duration <= 0 {
		return 0
	}
	return clampFraction(e.currentTime / e.duration)
}

// refreshBandsLocked derives bands from instantaneous output power: dB to
// linear amplitude, then a sine-shaped envelope over the band index with a
// small random jitter for visual liveliness
func (e *Engine) refreshBandsLocked() {
	linear := math.Pow(10, e.transport.PowerDB()/20)
	base := math.Max(0, math.Min(1, linear))

	n := len(e.bands)
	for i := range e.bands {
		normalizedIdx := 0.0
		if n > 1 {
			normalizedIdx = float64(i) / float64(n-1)
		}
		envelope := math.Sin(normalizedIdx*math.Pi) + 0.1
		jitter := 0.5 + e.rng.Float64()
		e.bands[i] = float32(base * envelope * jitter)
	}
}

// decayBandsLocked shrinks bands geometrically toward zero while not playing
func (e *Engine) decayBandsLocked() {
	for i, b := range e.bands {
		v := b * decayFactor
		if v < decayFloor {
			v = 0
		}
		e.bands[i] = v
	}
}

func clampFraction(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
