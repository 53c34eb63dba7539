package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	delivery "github.com/hanpama/gqlstream/internal/delivery"
	engine "github.com/hanpama/gqlstream/internal/engine"
	eventbus "github.com/hanpama/gqlstream/internal/eventbus"
	events "github.com/hanpama/gqlstream/internal/events"
	language "github.com/hanpama/gqlstream/internal/language"
	reqid "github.com/hanpama/gqlstream/internal/reqid"
	"google.golang.org/grpc/metadata"
)

// Handler is an http.Handler that serves a GraphQL endpoint with
// incremental delivery. It parses requests, runs the injected engine, and
// frames the outcome as plain JSON or as a multipart/mixed body depending
// on the outcome kind and the client's Accept header.
type Handler struct {
	eng    engine.Engine
	framer *delivery.Formatter
	opt    Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout. Subscriptions typically want 0.
	Timeout time.Duration

	// Pretty enables indented JSON payloads (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata for
	// engines backed by gRPC upstreams. Header names are case-insensitive.
	// Default is none.
	MetadataHeaders []string

	// Encoder overrides the payload encoder. Default is compact JSON,
	// or indented JSON when Pretty is set.
	Encoder delivery.Encoder
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithEncoder(enc delivery.Encoder) Option { return func(o *Options) { o.Encoder = enc } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a new GraphQL HTTP handler using the given engine.
func New(eng engine.Engine, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	enc := op.Encoder
	if enc == nil {
		enc = &delivery.JSONEncoder{Pretty: op.Pretty}
	}
	return &Handler{eng: eng, framer: delivery.NewFormatter(enc), opt: op}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	// Map configured headers into metadata for gRPC-backed engines.
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md["graphql-request-id"] = []string{strconv.FormatInt(rid, 10)}
	ctx = metadata.NewOutgoingContext(ctx, md)

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != "" {
		status = http.StatusBadRequest
		if berr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		// Batched HTTP requests are always delivered as one JSON array;
		// incremental outcomes are rejected per entry.
		op := make([]any, len(batch))
		for i := range batch {
			op[i] = h.executeBuffered(ctx, batch[i])
		}
		writeJSON(w, status, op, h.opt.Pretty)
		return
	}

	h.serveOne(ctx, w, r, req, &status)
}

// serveOne executes one request and picks the delivery mode.
func (h *Handler) serveOne(ctx context.Context, w http.ResponseWriter, r *http.Request, req GraphQLRequest, status *int) {
	outcome, gerr := h.executeOne(ctx, req)
	if gerr != "" {
		writeJSON(w, *status, errorResponse(gerr), h.opt.Pretty)
		return
	}

	multipart := acceptsMultipart(r.Header.Get("Accept"))
	if outcome.Kind == delivery.KindSingle && !multipart {
		result := outcome.Result
		writeJSON(w, *status, result, h.opt.Pretty)
		result.Release()
		return
	}
	if outcome.Kind != delivery.KindSingle && !multipart {
		*status = http.StatusNotAcceptable
		drainStream(ctx, outcome.Stream)
		writeJSON(w, *status, errorResponse("incremental delivery requires an Accept header with multipart/mixed"), h.opt.Pretty)
		return
	}

	// Outer headers go out before the framer writes any body bytes.
	// Boundary is the fixed single dash the part framing is built on.
	w.Header().Set("Content-Type", `multipart/mixed; boundary="-"`)
	w.WriteHeader(*status)

	_ = h.framer.Format(ctx, outcome, newHTTPSink(w))
	// A framing error here means the connection is unusable; the missing
	// terminator tells the client the response was aborted.
}

// executeOne parses and runs one request, returning the outcome or a
// request-level error message.
func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest) (delivery.ExecutionOutcome, string) {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return delivery.ExecutionOutcome{}, err.Error()
	}

	opDef := language.OperationForName(doc, req.OperationName)
	opType := ""
	if opDef != nil {
		opType = string(opDef.Operation)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	outcome, xerr := h.eng.Execute(ctx, engine.Request{
		Document:      doc,
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     req.Variables,
	})
	var errs []error
	if xerr != nil {
		errs = []error{xerr}
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	if xerr != nil {
		return delivery.ExecutionOutcome{}, xerr.Error()
	}
	return outcome, ""
}

// executeBuffered runs one entry of a batched HTTP request and returns a
// JSON-marshalable value. The result is encoded and released before the
// next entry runs, so the handler never holds more than one live result.
func (h *Handler) executeBuffered(ctx context.Context, req GraphQLRequest) any {
	outcome, gerr := h.executeOne(ctx, req)
	if gerr != "" {
		return errorResponse(gerr)
	}
	if outcome.Kind != delivery.KindSingle {
		drainStream(ctx, outcome.Stream)
		return errorResponse("incremental delivery is not supported for batched requests")
	}
	result := outcome.Result
	raw, err := json.Marshal(result)
	result.Release()
	if err != nil {
		return errorResponse(err.Error())
	}
	return json.RawMessage(raw)
}

// drainStream releases a stream the handler will not deliver.
func drainStream(ctx context.Context, s delivery.ResponseStream) {
	if s == nil {
		return
	}
	for {
		r, err := s.Next(ctx)
		if err != nil {
			return
		}
		r.Release()
	}
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, "invalid 'variables' JSON"
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, ""
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct == "" || ct == "application/json" || strings.HasPrefix(ct, "application/json;") {
		reader := io.Reader(r.Body)
		if maxBody > 0 {
			reader = io.LimitReader(r.Body, maxBody+1)
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return GraphQLRequest{}, nil, "failed to read body"
		}
		defer r.Body.Close()
		if maxBody > 0 && int64(len(body)) > maxBody {
			return GraphQLRequest{}, nil, errBodyTooLargeMessage
		}

		// Try array (batch)
		var arr []GraphQLRequest
		if len(body) > 0 && body[0] == '[' {
			if err := json.Unmarshal(body, &arr); err != nil {
				return GraphQLRequest{}, nil, "invalid JSON"
			}
			if len(arr) == 0 {
				return GraphQLRequest{}, nil, "empty batch"
			}
			return GraphQLRequest{}, arr, ""
		}
		// Single
		var req GraphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return GraphQLRequest{}, nil, "invalid JSON"
		}
		if req.Query == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		if req.Variables == nil {
			req.Variables = map[string]any{}
		}
		return req, nil, ""
	}

	return GraphQLRequest{}, nil, "unsupported Content-Type"
}

// ------------------ Response formatting ------------------

type specError struct {
	Message string `json:"message"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

func errorResponse(msg string) specResult {
	return specResult{Errors: []specError{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

// acceptsMultipart reports whether the Accept header lists the
// multipart/mixed media type the incremental delivery convention uses.
func acceptsMultipart(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		if strings.HasPrefix(strings.TrimSpace(p), "multipart/mixed") {
			return true
		}
	}
	return false
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
