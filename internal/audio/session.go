package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

// frameStream feeds buffer frames to a voice as little-endian float32 PCM.
// When the loop flag is set at the moment the end is reached, it wraps to
// the first frame; otherwise it reports io.EOF.
type frameStream struct {
	buffer *Buffer
	loop   *atomic.Bool

	mu     sync.Mutex
	cursor int
	ended  bool
	closed bool
}

func newFrameStream(buffer *Buffer, offset int, loop *atomic.Bool) *frameStream {
	return &frameStream{buffer: buffer, loop: loop, cursor: offset}
}

func (s *frameStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.ended {
		return 0, io.EOF
	}

	frames := s.buffer.Frames()
	samples := s.buffer.Samples()
	n := 0
	for n+frameBytes <= len(p) {
		if s.cursor >= frames {
			if frames == 0 || !s.loop.Load() {
				break
			}
			s.cursor = 0
		}
		base := s.cursor * ChannelCount
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(samples[base]))
		binary.LittleEndian.PutUint32(p[n+bytesPerSample:], math.Float32bits(samples[base+1]))
		s.cursor++
		n += frameBytes
	}

	if n == 0 && len(p) >= frameBytes {
		s.ended = true
		return 0, io.EOF
	}
	return n, nil
}

func (s *frameStream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// position returns the read cursor in frames and whether the source is
// exhausted.
func (s *frameStream) position() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.ended
}

// session is one voice playing a buffer from an offset. A session is never
// restarted; seeking or replaying creates a new one.
type session struct {
	ctx    Context
	voice  Voice
	stream *frameStream
	done   chan struct{}
	once   sync.Once
}

func newSession(ctx Context, voice Voice, stream *frameStream) *session {
	return &session{ctx: ctx, voice: voice, stream: stream, done: make(chan struct{})}
}

// heardFrame returns the frame currently audible: the read cursor minus what
// the voice still buffers, wrapped into the buffer.
func (s *session) heardFrame() int {
	cursor, _ := s.stream.position()
	frames := s.stream.buffer.Frames()
	if frames == 0 {
		return 0
	}
	heard := cursor - s.voice.BufferedSize()/frameBytes
	if heard < 0 {
		heard += frames
	}
	if heard > frames {
		heard %= frames
	}
	return heard
}

// finished reports whether the source ran out and the voice went quiet.
func (s *session) finished() bool {
	_, ended := s.stream.position()
	return ended && !s.voice.IsPlaying()
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.stream.close()
		s.voice.Pause()
		_ = s.voice.Close()
	})
}
