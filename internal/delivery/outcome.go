package delivery

import "fmt"

// OutcomeKind identifies how an execution result is delivered.
type OutcomeKind int

const (
	// KindSingle is a complete response delivered as one part.
	KindSingle OutcomeKind = iota
	// KindDeferred carries an initial result plus @defer patches.
	KindDeferred
	// KindBatched carries the results of a batched operation set.
	KindBatched
	// KindSubscription carries one result per subscription event.
	KindSubscription
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSingle:
		return "Single"
	case KindDeferred:
		return "Deferred"
	case KindBatched:
		return "Batched"
	case KindSubscription:
		return "Subscription"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// ExecutionOutcome is what an execution engine hands to the Formatter:
// exactly one recognized kind, with Result set for KindSingle and Stream
// set for the streaming kinds.
type ExecutionOutcome struct {
	Kind   OutcomeKind
	Result *QueryResult
	Stream ResponseStream
}

// SingleOutcome wraps one result.
func SingleOutcome(r *QueryResult) ExecutionOutcome {
	return ExecutionOutcome{Kind: KindSingle, Result: r}
}

// StreamOutcome wraps a response stream with the given streaming kind.
func StreamOutcome(kind OutcomeKind, s ResponseStream) ExecutionOutcome {
	return ExecutionOutcome{Kind: kind, Stream: s}
}

// UnsupportedResultKindError reports an outcome whose kind is not one of
// the recognized variants. It is a caller-contract violation, not a
// transport fault: the Formatter returns it before writing any bytes.
type UnsupportedResultKindError struct {
	Kind OutcomeKind
}

func (e *UnsupportedResultKindError) Error() string {
	return fmt.Sprintf("delivery: unsupported result kind %s", e.Kind)
}
