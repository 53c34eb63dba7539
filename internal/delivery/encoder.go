package delivery

import "encoding/json"

// Encoder serializes one result into the payload bytes of a part. It must
// be synchronous and must not retain or mutate the result; the Formatter
// releases the result as soon as the part is written.
type Encoder interface {
	Encode(*QueryResult) ([]byte, error)
}

// JSONEncoder encodes results as application/json payloads. The zero
// value encodes compactly; Pretty is for development only, since it
// inflates every part.
type JSONEncoder struct {
	Pretty bool
}

func (e *JSONEncoder) Encode(r *QueryResult) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}
