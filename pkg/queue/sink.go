package queue

import (
	"context"
	"io"
)

// Sink plays one audio payload. Play blocks until playback finishes, the
// reader is exhausted, or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, format string, audio io.Reader, gain float64) error
}

// streamReader adapts a chunk channel to io.Reader so streaming synthesis
// feeds the sink the same way buffered audio does.
type streamReader struct {
	ctx    context.Context
	chunks <-chan []byte
	rest   []byte
}

func newStreamReader(ctx context.Context, chunks <-chan []byte) *streamReader {
	return &streamReader{ctx: ctx, chunks: chunks}
}

func (s *streamReader) Read(p []byte) (int, error) {
	for len(s.rest) == 0 {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return 0, io.EOF
			}
			s.rest = chunk
		case <-s.ctx.Done():
			return 0, s.ctx.Err()
		}
	}
	n := copy(p, s.rest)
	s.rest = s.rest[n:]
	return n, nil
}
