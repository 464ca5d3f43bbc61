// Package capture owns the recording state machine. The microphone (or any
// other audio input) sits behind the AudioSource capability interface; the
// machine and its ceiling timer never touch a concrete capture API.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
)

var (
	ErrUnsupported      = errors.New("capture: recording not supported")
	ErrPermissionDenied = errors.New("capture: audio input permission denied")
	ErrNotRecording     = errors.New("capture: not recording")
	ErrBusy             = errors.New("capture: recording already in progress")
)

// Blob is one encoded recording.
type Blob struct {
	Data     []byte
	MIMEType string
}

// AudioSource abstracts the exclusively-held audio input. Stop releases the
// underlying resource and must be safe to call more than once.
type AudioSource interface {
	IsSupported() bool
	Start(ctx context.Context) error
	Stop() (Blob, error)
}

// RecordingCeilingSeconds is the hard recording duration limit.
const RecordingCeilingSeconds = 60

// Controller drives idle -> recording -> processing -> idle with an error
// exit back to idle from any state. One controller holds at most one source
// session at a time.
type Controller struct {
	src      AudioSource
	interval time.Duration
	// AutoStop receives the recording when the ceiling forces a stop.
	autoStop func(Blob, error)

	mu       sync.Mutex
	state    State
	elapsed  int
	tickStop chan struct{}
}

type Option func(*Controller)

// WithTickInterval shortens the 1-second tick; tests only.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithAutoStop installs the sink for ceiling-forced stops.
func WithAutoStop(fn func(Blob, error)) Option {
	return func(c *Controller) { c.autoStop = fn }
}

func NewController(src AudioSource, opts ...Option) *Controller {
	c := &Controller{
		src:      src,
		interval: time.Second,
		state:    StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ElapsedSeconds reports whole seconds recorded so far.
func (c *Controller) ElapsedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Start acquires the source and enters recording. On any failure the
// controller stays idle and the source is not held.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrBusy
	}
	if c.src == nil || !c.src.IsSupported() {
		return ErrUnsupported
	}
	if err := c.src.Start(ctx); err != nil {
		_, _ = c.src.Stop()
		return err
	}
	c.state = StateRecording
	c.elapsed = 0
	c.tickStop = make(chan struct{})
	go c.runTicker(c.tickStop)
	return nil
}

func (c *Controller) runTicker(stop chan struct{}) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if blob, err, fired := c.tickLocked(stop); fired {
				if c.autoStop != nil {
					c.autoStop(blob, err)
				}
				return
			}
		}
	}
}

// tickLocked advances elapsed time and force-stops at the ceiling.
func (c *Controller) tickLocked(stop chan struct{}) (Blob, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording || c.tickStop != stop {
		return Blob{}, nil, false
	}
	c.elapsed++
	if c.elapsed < RecordingCeilingSeconds {
		return Blob{}, nil, false
	}
	blob, err := c.stopRecordingLocked()
	return blob, err, true
}

// Stop ends recording explicitly and hands back the buffered audio. The
// source is released whether or not the stop succeeds.
func (c *Controller) Stop() (Blob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return Blob{}, ErrNotRecording
	}
	return c.stopRecordingLocked()
}

func (c *Controller) stopRecordingLocked() (Blob, error) {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
	blob, err := c.src.Stop()
	if err != nil {
		c.state = StateIdle
		return Blob{}, err
	}
	c.state = StateProcessing
	return blob, nil
}

// Finish returns to idle once the extraction call resolved, regardless of
// its outcome.
func (c *Controller) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateProcessing {
		c.state = StateIdle
	}
}

// Close tears the controller down. A recording in progress is stopped and
// its source released; the buffered audio is discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
	if c.state == StateRecording {
		_, _ = c.src.Stop()
	}
	c.state = StateIdle
}
