package server

import (
	"net/http"

	delivery "github.com/hanpama/gqlstream/internal/delivery"
)

// httpSink adapts an http.ResponseWriter to delivery.Sink. Flush pushes
// the chunk to the client so each part is observable as soon as it is
// written, which subscriptions producing parts over an unbounded time
// window depend on.
type httpSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newHTTPSink(w http.ResponseWriter) delivery.Sink {
	return &httpSink{w: w, rc: http.NewResponseController(w)}
}

func (s *httpSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *httpSink) Flush() error { return s.rc.Flush() }
