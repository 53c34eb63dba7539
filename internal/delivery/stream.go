package delivery

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// ResponseStream is a single-pass, ordered, asynchronous sequence of
// results. Next returns io.EOF after the last result. Ownership of a
// returned result passes to the caller, which must release it.
//
// A stream is consumed by exactly one caller and cannot be restarted.
type ResponseStream interface {
	Next(ctx context.Context) (*QueryResult, error)
}

// sliceStream yields a fixed set of results. Used for outcomes whose
// parts are all known up front, and by tests.
type sliceStream struct {
	results []*QueryResult
	next    int
}

// StreamOf returns a ResponseStream over the given results in order.
func StreamOf(results ...*QueryResult) ResponseStream {
	return &sliceStream{results: results}
}

func (s *sliceStream) Next(ctx context.Context) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.results) {
		return nil, io.EOF
	}
	r := s.results[s.next]
	s.next++
	return r, nil
}

// EmitFunc hands one result to the consumer side of a BufferedStream.
// It blocks while the buffer is full and fails once the stream context
// is done, releasing the rejected result.
type EmitFunc func(*QueryResult) error

// BufferedStream bridges a push-style producer to the pull-style
// ResponseStream the Formatter consumes. The producer runs on its own
// goroutine and blocks when the consumer falls behind, so results are
// delivered with backpressure, in production order.
type BufferedStream struct {
	ch chan *QueryResult
	g  *errgroup.Group
}

// NewBufferedStream starts produce on a supervised goroutine. produce
// emits results through emit and returns when the operation completes;
// a non-nil producer error is surfaced by Next once the buffered results
// have been drained. Results already buffered when the producer fails are
// still delivered, and ownership of each delivered result passes to the
// consumer as usual.
func NewBufferedStream(ctx context.Context, size int, produce func(ctx context.Context, emit EmitFunc) error) *BufferedStream {
	s := &BufferedStream{ch: make(chan *QueryResult, size)}
	g, gctx := errgroup.WithContext(ctx)
	s.g = g
	emit := func(r *QueryResult) error {
		select {
		case s.ch <- r:
			return nil
		case <-gctx.Done():
			r.Release()
			return gctx.Err()
		}
	}
	g.Go(func() error {
		defer close(s.ch)
		return produce(gctx, emit)
	})
	return s
}

func (s *BufferedStream) Next(ctx context.Context) (*QueryResult, error) {
	select {
	case r, ok := <-s.ch:
		if !ok {
			if err := s.g.Wait(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
