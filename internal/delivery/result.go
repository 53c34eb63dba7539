package delivery

import "sync"

type Path []PathElement

type PathElement any

// GraphQLError is one located error carried inside a result payload.
// The framer treats errors as opaque; they are serialized as-is.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// QueryResult is the payload of one part of an incremental response.
//
// Label and Path correlate a patch to the @defer/@stream directive that
// produced it. HasNext is true while more parts will follow, false on the
// terminal part of a multipart response, and nil (omitted) for responses
// that are not delivered incrementally.
//
// Results are pooled. A result yielded to the Formatter is borrowed for
// exactly one encode+write and then returned to the pool via Release.
type QueryResult struct {
	Label      string         `json:"label,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Errors     []GraphQLError `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
	HasNext    *bool          `json:"hasNext,omitempty"`

	onRelease func()
	released  bool
}

var resultPool = sync.Pool{New: func() any { return new(QueryResult) }}

// NewQueryResult takes a zeroed result from the pool.
func NewQueryResult() *QueryResult {
	r := resultPool.Get().(*QueryResult)
	*r = QueryResult{}
	return r
}

// HasNextValue sets HasNext; convenience for literal construction.
func (r *QueryResult) HasNextValue(v bool) *QueryResult {
	r.HasNext = &v
	return r
}

// OnRelease registers fn to run when the result is released. Producers use
// it to return secondary resources that travel with the result.
func (r *QueryResult) OnRelease(fn func()) {
	if prev := r.onRelease; prev != nil {
		r.onRelease = func() { prev(); fn() }
		return
	}
	r.onRelease = fn
}

// Release returns the result to the pool. The owner calls it exactly once
// per consumed result; releasing twice is a no-op, and a released result
// must not be read again.
func (r *QueryResult) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	if r.onRelease != nil {
		r.onRelease()
	}
	*r = QueryResult{released: true}
	resultPool.Put(r)
}
