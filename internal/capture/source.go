package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBufferFull guards against unbounded client streams.
var ErrBufferFull = errors.New("capture: audio buffer limit exceeded")

// DefaultMaxBufferBytes bounds one recording; 60 s of 128 kbit/s opus fits
// with ample headroom.
const DefaultMaxBufferBytes = 8 << 20

// BufferSource is an AudioSource fed by Append calls, used for streamed
// uploads: the transport read loop appends frames while the controller owns
// start/stop. The zero value is not usable; use NewBufferSource.
type BufferSource struct {
	mime string
	max  int

	mu      sync.Mutex
	started bool
	buf     []byte
}

func NewBufferSource(mimeType string, maxBytes int) *BufferSource {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBufferBytes
	}
	return &BufferSource{mime: mimeType, max: maxBytes}
}

func (s *BufferSource) IsSupported() bool { return true }

func (s *BufferSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.buf = s.buf[:0]
	return nil
}

// Append adds one audio frame. Frames arriving while the source is stopped
// are dropped: a late frame after the ceiling fired must not resurrect the
// recording.
func (s *BufferSource) Append(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	if len(s.buf)+len(frame) > s.max {
		return fmt.Errorf("%w (%d bytes)", ErrBufferFull, s.max)
	}
	s.buf = append(s.buf, frame...)
	return nil
}

func (s *BufferSource) Stop() (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return Blob{MIMEType: s.mime}, nil
	}
	s.started = false
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	s.buf = nil
	return Blob{Data: out, MIMEType: s.mime}, nil
}

// UnsupportedSource stands in when the caller's platform cannot record at
// all; starting it is the capture_unsupported fallback path.
type UnsupportedSource struct{}

func (UnsupportedSource) IsSupported() bool              { return false }
func (UnsupportedSource) Start(context.Context) error    { return ErrUnsupported }
func (UnsupportedSource) Stop() (Blob, error)            { return Blob{}, ErrUnsupported }
