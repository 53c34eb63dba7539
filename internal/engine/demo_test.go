package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	delivery "github.com/hanpama/gqlstream/internal/delivery"
	language "github.com/hanpama/gqlstream/internal/language"
)

func demoRequest(t *testing.T, query string) Request {
	t.Helper()
	doc, err := language.ParseQuery(query)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Request{Document: doc, Query: query}
}

func drain(t *testing.T, s delivery.ResponseStream) []*delivery.QueryResult {
	t.Helper()
	var out []*delivery.QueryResult
	for {
		r, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, r)
	}
}

func TestDemo_PlainQueryIsSingle(t *testing.T) {
	d := NewDemo()
	outcome, err := d.Execute(context.Background(), demoRequest(t, `{ hello }`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Kind != delivery.KindSingle {
		t.Fatalf("kind %s", outcome.Kind)
	}
	defer outcome.Result.Release()
	if diff := cmp.Diff(map[string]any{"hello": "world"}, outcome.Result.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestDemo_DeferredQuerySplitsResult(t *testing.T) {
	d := NewDemo()
	outcome, err := d.Execute(context.Background(), demoRequest(t, `{ hello { ... @defer { details } } }`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Kind != delivery.KindDeferred {
		t.Fatalf("kind %s", outcome.Kind)
	}
	results := drain(t, outcome.Stream)
	if len(results) != 2 {
		t.Fatalf("expected initial + patch, got %d results", len(results))
	}
	if results[0].HasNext == nil || !*results[0].HasNext {
		t.Fatalf("initial result must have hasNext=true")
	}
	if results[1].Label != "slow" || results[1].HasNext == nil || *results[1].HasNext {
		t.Fatalf("patch mismatch: %+v", results[1])
	}
	for _, r := range results {
		r.Release()
	}
}

func TestDemo_SubscriptionEmitsEvents(t *testing.T) {
	d := &Demo{Events: 3, Interval: time.Millisecond, Buffer: 1}
	outcome, err := d.Execute(context.Background(), demoRequest(t, `subscription { tick }`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Kind != delivery.KindSubscription {
		t.Fatalf("kind %s", outcome.Kind)
	}
	results := drain(t, outcome.Stream)
	if len(results) != 3 {
		t.Fatalf("expected 3 events, got %d", len(results))
	}
	for i, r := range results {
		if diff := cmp.Diff(map[string]any{"tick": i}, r.Data); diff != "" {
			t.Fatalf("event %d mismatch (-want +got):\n%s", i, diff)
		}
		wantNext := i < 2
		if r.HasNext == nil || *r.HasNext != wantNext {
			t.Fatalf("event %d hasNext mismatch: %v", i, r.HasNext)
		}
		r.Release()
	}
}

func TestDemo_SubscriptionHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Demo{Events: 100, Interval: time.Millisecond, Buffer: 1}
	outcome, err := d.Execute(ctx, demoRequest(t, `subscription { tick }`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	r, err := outcome.Stream.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	r.Release()
	cancel()

	for {
		r, err := outcome.Stream.Next(context.Background())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected canceled, got %v", err)
			}
			return
		}
		r.Release()
	}
}
