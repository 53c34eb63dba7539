package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	eventbus "github.com/hanpama/gqlstream/internal/eventbus"
	events "github.com/hanpama/gqlstream/internal/events"
)

// Sink is the output of one response: an append-only byte destination
// with an explicit flush point. A sink is exclusively owned by one
// in-flight Format call; nothing else may write to it concurrently.
type Sink interface {
	io.Writer
	Flush() error
}

// Multipart framing constants. The boundary value is the single dash "-",
// so parts open with CRLF "---" CRLF (two-dash prefix + boundary) and the
// stream closes with CRLF "-----" CRLF (prefix + boundary + two-dash
// suffix).
var (
	partBoundary     = []byte("\r\n---\r\n")
	partHeader       = []byte("Content-Type: application/json; charset=utf-8\r\n\r\n")
	streamTerminator = []byte("\r\n-----\r\n")
)

// frameWriter writes the fixed framing byte sequences, checking the
// context before every write so a canceled call stops at the next
// suspension point.
type frameWriter struct {
	sink Sink
}

func (fw *frameWriter) write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fw.sink.Write(p); err != nil {
		return fmt.Errorf("delivery: write frame: %w", err)
	}
	return nil
}

func (fw *frameWriter) writePartBoundary(ctx context.Context) error {
	return fw.write(ctx, partBoundary)
}

func (fw *frameWriter) writePartHeader(ctx context.Context) error {
	return fw.write(ctx, partHeader)
}

// writePayload writes the encoded payload with no trailing terminator;
// the next boundary or the stream terminator supplies the separating CRLF.
func (fw *frameWriter) writePayload(ctx context.Context, payload []byte) error {
	return fw.write(ctx, payload)
}

func (fw *frameWriter) writeStreamTerminator(ctx context.Context) error {
	return fw.write(ctx, streamTerminator)
}

func (fw *frameWriter) flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fw.sink.Flush(); err != nil {
		return fmt.Errorf("delivery: flush: %w", err)
	}
	return nil
}

// Formatter emits the complete multipart byte stream for one response.
type Formatter struct {
	enc Encoder
}

// NewFormatter creates a Formatter using enc for payloads. A nil enc
// falls back to compact JSON.
func NewFormatter(enc Encoder) *Formatter {
	if enc == nil {
		enc = &JSONEncoder{}
	}
	return &Formatter{enc: enc}
}

// Format classifies outcome and dispatches to FormatSingle or
// FormatStream. An unrecognized kind fails with
// *UnsupportedResultKindError before any bytes reach the sink.
func (f *Formatter) Format(ctx context.Context, outcome ExecutionOutcome, sink Sink) error {
	switch outcome.Kind {
	case KindSingle:
		return f.FormatSingle(ctx, outcome.Result, sink)
	case KindDeferred, KindBatched, KindSubscription:
		return f.FormatStream(ctx, outcome.Stream, sink)
	default:
		return &UnsupportedResultKindError{Kind: outcome.Kind}
	}
}

// FormatSingle writes one part followed by the stream terminator. The
// result is released whether or not the write succeeds.
func (f *Formatter) FormatSingle(ctx context.Context, result *QueryResult, sink Sink) error {
	start := time.Now()
	eventbus.Publish(ctx, events.DeliveryStart{Mode: events.ModeSingle})
	fw := frameWriter{sink: sink}

	err := f.writePart(ctx, &fw, result, 0)
	if err == nil {
		if err = fw.writeStreamTerminator(ctx); err == nil {
			err = fw.flush(ctx)
		}
	}
	eventbus.Publish(ctx, events.DeliveryFinish{Mode: events.ModeSingle, Parts: 1, Err: err, Duration: time.Since(start)})
	return err
}

// FormatStream pulls results from stream until it is exhausted, writing
// and flushing one part per result. The terminator is written exactly
// once after the stream ends naturally, even when it yielded no results;
// an error or cancellation mid-stream leaves the body truncated so the
// client sees an aborted response rather than a clean end.
func (f *Formatter) FormatStream(ctx context.Context, stream ResponseStream, sink Sink) error {
	start := time.Now()
	eventbus.Publish(ctx, events.DeliveryStart{Mode: events.ModeStream})
	fw := frameWriter{sink: sink}

	parts := 0
	err := func() error {
		for {
			result, err := stream.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			n := parts
			label := result.Label
			if err := f.writePart(ctx, &fw, result, n); err != nil {
				return err
			}
			if err := fw.flush(ctx); err != nil {
				return err
			}
			parts++
			eventbus.Publish(ctx, events.DeliveryPart{Index: n, Label: label})
		}
		if err := fw.writeStreamTerminator(ctx); err != nil {
			return err
		}
		return fw.flush(ctx)
	}()
	eventbus.Publish(ctx, events.DeliveryFinish{Mode: events.ModeStream, Parts: parts, Err: err, Duration: time.Since(start)})
	return err
}

// writePart writes one boundary+header+payload block. The result is
// released on every exit path; the original failure, if any, is returned
// untouched.
func (f *Formatter) writePart(ctx context.Context, fw *frameWriter, result *QueryResult, n int) error {
	defer result.Release()

	if err := fw.writePartBoundary(ctx); err != nil {
		return err
	}
	payload, err := f.enc.Encode(result)
	if err != nil {
		return fmt.Errorf("delivery: encode part %d: %w", n, err)
	}
	if err := fw.writePartHeader(ctx); err != nil {
		return err
	}
	return fw.writePayload(ctx, payload)
}
