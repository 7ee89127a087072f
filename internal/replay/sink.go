package replay

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/joeycumines/go-microbatch"
)

// Sink is an append-only, newline-delimited record emitter. Each Append
// hands one pre-encoded line to a background worker via a
// microbatch.Batcher configured for one job per batch and one worker at a
// time — Submit+Wait gives exactly the "the next tick does not begin until
// the previous tick's record has been handed to the sink" ordering
// guarantee from spec.md §5, while the actual write runs off the caller's
// goroutine as that section permits.
type Sink struct {
	w          io.Writer
	batcher    *microbatch.Batcher[[]byte]
	wroteHeader bool
	failed     error
}

// NewSink wraps w (typically an *os.File opened for append) as a replay
// sink.
func NewSink(w io.Writer) *Sink {
	s := &Sink{w: w}
	s.batcher = microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:        1,
		FlushInterval:  0,
		MaxConcurrency: 1,
	}, s.process)
	return s
}

// process is the microbatch.BatchProcessor: it writes every line in the
// batch (always exactly one, given MaxSize: 1) with a single Write call per
// line, retrying once on failure per the I/O error policy in spec.md §7.
func (s *Sink) process(_ context.Context, lines [][]byte) error {
	for _, line := range lines {
		if _, err := s.w.Write(line); err != nil {
			if _, err2 := s.w.Write(line); err2 != nil {
				return fmt.Errorf("replay: write failed after retry: %w", err2)
			}
		}
	}
	return nil
}

// WriteHeader emits the header record. It must be called exactly once,
// before any AppendTick call.
func (s *Sink) WriteHeader(h *Header) error {
	if s.wroteHeader {
		return fmt.Errorf("replay: header already written")
	}
	s.wroteHeader = true
	line := AppendHeader(make([]byte, 0, 256), h)
	line = append(line, '\n')
	return s.submit(line)
}

// AppendTick encodes and emits one tick record, blocking until the
// background worker has handed it to the underlying writer.
func (s *Sink) AppendTick(rec *TickRecord) error {
	line := AppendTickRecord(make([]byte, 0, 512), rec)
	line = append(line, '\n')
	return s.submit(line)
}

func (s *Sink) submit(line []byte) error {
	if s.failed != nil {
		return s.failed
	}
	result, err := s.batcher.Submit(context.Background(), line)
	if err != nil {
		s.failed = err
		glog.Errorf("replay: submit failed: %v", err)
		return err
	}
	if err := result.Wait(context.Background()); err != nil {
		s.failed = err
		glog.Errorf("replay: write failed: %v", err)
		return err
	}
	return nil
}

// Close shuts down the background worker and, if the sink wraps a
// io.Closer, closes the underlying writer.
func (s *Sink) Close() error {
	if err := s.batcher.Close(); err != nil {
		glog.Warningf("replay: batcher close: %v", err)
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
