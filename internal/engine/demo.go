package engine

import (
	"context"
	"time"

	delivery "github.com/hanpama/gqlstream/internal/delivery"
	language "github.com/hanpama/gqlstream/internal/language"
)

// Demo is a canned engine for exercising incremental delivery end to end
// without a real executor. Queries resolve to a fixed payload; queries
// using @defer or @stream get the payload split into an initial result
// plus one labeled patch; subscriptions emit a counter at a fixed
// interval.
type Demo struct {
	// Events is the number of results a subscription emits.
	Events int
	// Interval is the delay between subscription events.
	Interval time.Duration
	// Buffer is the subscription stream's channel capacity.
	Buffer int
}

func NewDemo() *Demo {
	return &Demo{Events: 5, Interval: time.Second, Buffer: 1}
}

func (d *Demo) Execute(ctx context.Context, req Request) (delivery.ExecutionOutcome, error) {
	op := language.OperationForName(req.Document, req.OperationName)

	if op != nil && op.Operation == language.Subscription {
		return delivery.StreamOutcome(delivery.KindSubscription, d.subscribe(ctx)), nil
	}

	if language.HasIncrementalDirectives(req.Document, op) {
		initial := delivery.NewQueryResult()
		initial.Data = map[string]any{"hello": "world"}
		initial.HasNextValue(true)

		patch := delivery.NewQueryResult()
		patch.Label = "slow"
		patch.Path = delivery.Path{"hello"}
		patch.Data = map[string]any{"details": "deferred"}
		patch.HasNextValue(false)

		return delivery.StreamOutcome(delivery.KindDeferred, delivery.StreamOf(initial, patch)), nil
	}

	r := delivery.NewQueryResult()
	r.Data = map[string]any{"hello": "world"}
	return delivery.SingleOutcome(r), nil
}

func (d *Demo) subscribe(ctx context.Context) delivery.ResponseStream {
	events, interval := d.Events, d.Interval
	return delivery.NewBufferedStream(ctx, d.Buffer, func(ctx context.Context, emit delivery.EmitFunc) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; i < events; i++ {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
			r := delivery.NewQueryResult()
			r.Data = map[string]any{"tick": i}
			r.HasNextValue(i < events-1)
			if err := emit(r); err != nil {
				return err
			}
		}
		return nil
	})
}
