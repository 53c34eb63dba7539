// Package delivery frames GraphQL execution results into the multipart
// HTTP body used for incremental delivery (@defer / @stream directives and
// subscriptions over HTTP).
//
// # Overview
//
// A GraphQL operation produces either one immediate result or an ordered
// asynchronous sequence of follow-up results. The Formatter turns either
// shape into one correctly framed multipart byte stream:
//
//	<CRLF>---<CRLF>
//	Content-Type: application/json; charset=utf-8<CRLF>
//	<CRLF>
//	<payload bytes>
//	...
//	<CRLF>-----<CRLF>
//
// Each part is a boundary marker, a fixed header block, and the payload
// bytes produced by the injected Encoder. The terminator is written exactly
// once after the last part; it is the only valid "no more parts" signal a
// client may rely on. A truncated body (missing terminator) means the
// response was aborted.
//
// # Streaming model
//
// FormatStream pulls one result from the ResponseStream, fully writes and
// flushes it, then pulls the next. It never pre-encodes ahead of the part
// being written, so clients can process early parts while later ones are
// still being resolved. Every pull and every write honors the context;
// cancellation between parts stops the loop without writing the terminator.
//
// # Ownership
//
// A QueryResult yielded by a ResponseStream is owned by the Formatter from
// the moment it is returned. The Formatter releases each consumed result
// exactly once, on success, failure and cancellation alike, so pooled
// results are never leaked mid-stream.
package delivery
