package engine

import (
	"context"

	delivery "github.com/hanpama/gqlstream/internal/delivery"
	language "github.com/hanpama/gqlstream/internal/language"
)

// Request is one GraphQL request handed to an engine. Document is the
// already syntax-checked form of Query.
type Request struct {
	Document      *language.QueryDocument
	Query         string
	OperationName string
	Variables     map[string]any
}

// Engine produces execution outcomes. The delivery layer never looks
// inside result production; it only frames what the engine yields.
//
// Contract
//   - The returned outcome has exactly one recognized kind. Result is set
//     for Single, Stream for the streaming kinds.
//   - Ownership of every yielded QueryResult passes to the caller, which
//     releases it. Engines must not retain or release yielded results.
//   - A returned stream is single-pass and presents results in the order
//     they must reach the client.
//   - Execute and any stream it returns must honor ctx.
type Engine interface {
	Execute(ctx context.Context, req Request) (delivery.ExecutionOutcome, error)
}
