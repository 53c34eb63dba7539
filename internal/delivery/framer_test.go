package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Pattern: exact wire bytes for a single result.
func TestFormatSingle_WireBytes(t *testing.T) {
	var released []string
	r := newTrackedResult(&released, "r1", map[string]any{"hello": "world"}, nil)

	sink := &recordSink{}
	f := NewFormatter(nil)
	if err := f.Format(context.Background(), SingleOutcome(r), sink); err != nil {
		t.Fatalf("format: %v", err)
	}

	want := "\r\n---\r\nContent-Type: application/json; charset=utf-8\r\n\r\n" +
		`{"data":{"hello":"world"}}` +
		"\r\n-----\r\n"
	if diff := cmp.Diff(want, string(sink.buf)); diff != "" {
		t.Fatalf("wire bytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"r1"}, released); diff != "" {
		t.Fatalf("release mismatch (-want +got):\n%s", diff)
	}
	if len(sink.flushes) != 1 || sink.flushes[0] != len(sink.buf) {
		t.Fatalf("expected one final flush, got %v", sink.flushes)
	}
}

// Pattern: exact wire bytes and flush points for a two-part stream.
func TestFormatStream_TwoParts(t *testing.T) {
	var released []string
	r1 := newTrackedResult(&released, "r1", map[string]any{"a": 1}, boolp(true))
	r2 := newTrackedResult(&released, "r2", map[string]any{"b": 2}, boolp(false))

	sink := &recordSink{}
	f := NewFormatter(nil)
	outcome := StreamOutcome(KindDeferred, StreamOf(r1, r2))
	if err := f.Format(context.Background(), outcome, sink); err != nil {
		t.Fatalf("format: %v", err)
	}

	p1 := part(`{"data":{"a":1},"hasNext":true}`)
	p2 := part(`{"data":{"b":2},"hasNext":false}`)
	want := p1 + p2 + terminator
	if diff := cmp.Diff(want, string(sink.buf)); diff != "" {
		t.Fatalf("wire bytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"r1", "r2"}, released); diff != "" {
		t.Fatalf("release order mismatch (-want +got):\n%s", diff)
	}
	// One flush per part plus one after the terminator, each observing a
	// fully written prefix.
	wantFlushes := []int{len(p1), len(p1) + len(p2), len(want)}
	if diff := cmp.Diff(wantFlushes, sink.flushes); diff != "" {
		t.Fatalf("flush points mismatch (-want +got):\n%s", diff)
	}
}

// The terminator marks "the stream of parts is over", not "a part was
// sent": an empty stream still gets exactly one terminator.
func TestFormatStream_ZeroParts(t *testing.T) {
	sink := &recordSink{}
	f := NewFormatter(nil)
	if err := f.FormatStream(context.Background(), StreamOf(), sink); err != nil {
		t.Fatalf("format: %v", err)
	}
	if diff := cmp.Diff(terminator, string(sink.buf)); diff != "" {
		t.Fatalf("wire bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestFormat_UnsupportedKind(t *testing.T) {
	sink := &recordSink{}
	f := NewFormatter(nil)
	err := f.Format(context.Background(), ExecutionOutcome{Kind: OutcomeKind(42)}, sink)

	var uerr *UnsupportedResultKindError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedResultKindError, got %v", err)
	}
	if got, want := uerr.Error(), "delivery: unsupported result kind OutcomeKind(42)"; got != want {
		t.Fatalf("error mismatch: got %q want %q", got, want)
	}
	if len(sink.buf) != 0 {
		t.Fatalf("expected zero bytes written, got %q", sink.buf)
	}
}

func TestFormat_StreamingKindsShareFraming(t *testing.T) {
	for _, kind := range []OutcomeKind{KindDeferred, KindBatched, KindSubscription} {
		var released []string
		r := newTrackedResult(&released, "r1", map[string]any{"x": 1}, boolp(false))
		sink := &recordSink{}
		f := NewFormatter(nil)
		if err := f.Format(context.Background(), StreamOutcome(kind, StreamOf(r)), sink); err != nil {
			t.Fatalf("%s: format: %v", kind, err)
		}
		want := part(`{"data":{"x":1},"hasNext":false}`) + terminator
		if diff := cmp.Diff(want, string(sink.buf)); diff != "" {
			t.Fatalf("%s: wire bytes mismatch (-want +got):\n%s", kind, diff)
		}
		if len(released) != 1 {
			t.Fatalf("%s: expected one release, got %v", kind, released)
		}
	}
}

// Cancellation after K parts: no part K+1 boundary, no terminator, and
// every consumed result is released.
func TestFormatStream_CancelBetweenParts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var released []string
	r1 := newTrackedResult(&released, "r1", map[string]any{"a": 1}, boolp(true))
	r2 := newTrackedResult(&released, "r2", map[string]any{"b": 2}, boolp(true))
	r3 := newTrackedResult(&released, "r3", map[string]any{"c": 3}, boolp(false))

	inner := StreamOf(r1, r2, r3)
	stream := &cancelAfterStream{inner: inner, cancel: cancel, after: 2}

	sink := &recordSink{}
	f := NewFormatter(nil)
	err := f.FormatStream(ctx, stream, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	want := part(`{"data":{"a":1},"hasNext":true}`) + part(`{"data":{"b":2},"hasNext":true}`)
	if diff := cmp.Diff(want, string(sink.buf)); diff != "" {
		t.Fatalf("wire bytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"r1", "r2"}, released); diff != "" {
		t.Fatalf("release mismatch (-want +got):\n%s", diff)
	}
	r3.Release() // still owned by the producer side after cancellation
}

// cancelAfterStream cancels the context once `after` results have been
// yielded, simulating a client that goes away mid-stream.
type cancelAfterStream struct {
	inner  ResponseStream
	cancel context.CancelFunc
	after  int
	n      int
}

func (s *cancelAfterStream) Next(ctx context.Context) (*QueryResult, error) {
	if s.n == s.after {
		s.cancel()
	}
	r, err := s.inner.Next(ctx)
	if err == nil {
		s.n++
	}
	return r, err
}

// Encoder failure on part K releases results 1..K and attempts nothing
// further; no terminator is written.
func TestFormatStream_EncoderFailure(t *testing.T) {
	var released []string
	r1 := newTrackedResult(&released, "r1", map[string]any{"a": 1}, boolp(true))
	r2 := newTrackedResult(&released, "r2", map[string]any{"b": 2}, boolp(true))
	r3 := newTrackedResult(&released, "r3", map[string]any{"c": 3}, boolp(false))

	sink := &recordSink{}
	f := NewFormatter(&failEncoder{failAt: 1})
	err := f.FormatStream(context.Background(), StreamOf(r1, r2, r3), sink)
	if !errors.Is(err, errEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
	if got, want := err.Error(), "delivery: encode part 1: encode failed"; got != want {
		t.Fatalf("error mismatch: got %q want %q", got, want)
	}
	if diff := cmp.Diff([]string{"r1", "r2"}, released); diff != "" {
		t.Fatalf("release mismatch (-want +got):\n%s", diff)
	}
	// Part 2's boundary went out before encoding failed; nothing after it.
	want := part(`{"data":{"a":1},"hasNext":true}`) + "\r\n---\r\n"
	if diff := cmp.Diff(want, string(sink.buf)); diff != "" {
		t.Fatalf("wire bytes mismatch (-want +got):\n%s", diff)
	}
	r3.Release()
}

// A sink write failure terminates the loop; the in-flight result is
// still released and no further parts are attempted.
func TestFormatStream_SinkFailure(t *testing.T) {
	var released []string
	r1 := newTrackedResult(&released, "r1", map[string]any{"a": 1}, boolp(true))
	r2 := newTrackedResult(&released, "r2", map[string]any{"b": 2}, boolp(false))

	sink := &failSink{failAt: 1} // boundary of part 0 succeeds, header fails
	f := NewFormatter(nil)
	err := f.FormatStream(context.Background(), StreamOf(r1, r2), sink)
	if !errors.Is(err, errSinkBroken) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if diff := cmp.Diff([]string{"r1"}, released); diff != "" {
		t.Fatalf("release mismatch (-want +got):\n%s", diff)
	}
	r2.Release()
}

func TestFormatSingle_ReleasesOnSinkFailure(t *testing.T) {
	var released []string
	r := newTrackedResult(&released, "r1", map[string]any{"a": 1}, nil)

	sink := &failSink{failAt: 0}
	f := NewFormatter(nil)
	err := f.FormatSingle(context.Background(), r, sink)
	if !errors.Is(err, errSinkBroken) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if diff := cmp.Diff([]string{"r1"}, released); diff != "" {
		t.Fatalf("release mismatch (-want +got):\n%s", diff)
	}
}

// Framing bytes depend only on the payloads: formatting semantically
// identical input twice yields identical byte streams.
func TestFormat_FramingIdempotence(t *testing.T) {
	render := func() string {
		r1 := NewQueryResult()
		r1.Data = map[string]any{"a": 1}
		r1.HasNextValue(true)
		r2 := NewQueryResult()
		r2.Label = "slow"
		r2.Path = Path{"a"}
		r2.Data = map[string]any{"b": 2}
		r2.HasNextValue(false)
		sink := &recordSink{}
		f := NewFormatter(nil)
		if err := f.Format(context.Background(), StreamOutcome(KindDeferred, StreamOf(r1, r2)), sink); err != nil {
			t.Fatalf("format: %v", err)
		}
		return string(sink.buf)
	}
	first := render()
	second := render()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("framing not idempotent (-first +second):\n%s", diff)
	}
}
