package events

import "time"

// Delivery modes as reported by delivery events.
const (
	ModeSingle = "single"
	ModeStream = "stream"
)

// DeliveryStart is emitted before framing a response body.
type DeliveryStart struct {
	Mode string
}

// DeliveryPart is emitted after one part has been written and flushed.
type DeliveryPart struct {
	Index int
	Label string
}

// DeliveryFinish is emitted after framing completes or fails.
type DeliveryFinish struct {
	Mode     string
	Parts    int
	Err      error
	Duration time.Duration
}
