package delivery

import (
	"errors"
	"fmt"
)

// recordSink captures written bytes and snapshots the buffer length at
// every flush, so tests can assert what a client had observed at each
// flush point.
type recordSink struct {
	buf     []byte
	flushes []int
}

func (s *recordSink) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *recordSink) Flush() error {
	s.flushes = append(s.flushes, len(s.buf))
	return nil
}

// failSink fails every write once `failAt` writes have succeeded.
type failSink struct {
	recordSink
	failAt int
	writes int
}

var errSinkBroken = errors.New("broken pipe")

func (s *failSink) Write(p []byte) (int, error) {
	if s.writes >= s.failAt {
		return 0, errSinkBroken
	}
	s.writes++
	return s.recordSink.Write(p)
}

// failEncoder delegates to JSONEncoder until part failAt (0-based).
type failEncoder struct {
	failAt int
	n      int
	inner  JSONEncoder
}

var errEncode = errors.New("encode failed")

func (e *failEncoder) Encode(r *QueryResult) ([]byte, error) {
	if e.n == e.failAt {
		return nil, errEncode
	}
	e.n++
	return e.inner.Encode(r)
}

// newTrackedResult builds a result whose release is appended to log.
func newTrackedResult(log *[]string, name string, data map[string]any, hasNext *bool) *QueryResult {
	r := NewQueryResult()
	r.Data = data
	r.HasNext = hasNext
	r.OnRelease(func() { *log = append(*log, name) })
	return r
}

func boolp(v bool) *bool { return &v }

// part renders the framing bytes for one payload, for expected-output
// construction in tests.
func part(payload string) string {
	return fmt.Sprintf("\r\n---\r\nContent-Type: application/json; charset=utf-8\r\n\r\n%s", payload)
}

const terminator = "\r\n-----\r\n"
