// Package rpc dispatches method calls that arrive as messages on a broker queue and
// routes one reply back to each caller.
//
// A request body is {"method": string, "params": object}. The caller supplies the
// reply queue and a correlation id as transport metadata; both are echoed on the
// reply, whose body is either {"data": ...} or {"error": ...}.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned for bodies that do not decode into an Envelope.
var ErrMalformedEnvelope = errors.New("rpc: malformed envelope")

// Envelope is one parsed RPC request.
type Envelope struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// Correlation routes a reply back to its caller. It comes from the transport
// metadata of the request, never from the body.
type Correlation struct {
	ReplyTo       string
	CorrelationID string
}

// ParseEnvelope decodes a message body. Only a body that is not a JSON object is a
// parse error. A missing or wrongly typed method or params is left zero for Dispatch
// to report to the caller.
func ParseEnvelope(body []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: body is not an object", ErrMalformedEnvelope)
	}

	var env Envelope
	if raw, ok := fields["method"]; ok {
		var method string
		if json.Unmarshal(raw, &method) == nil {
			env.Method = method
		}
	}
	if raw, ok := fields["params"]; ok {
		var params map[string]any
		if json.Unmarshal(raw, &params) == nil {
			env.Params = params
		}
	}
	return env, nil
}

// DecodeParams maps a params object onto dst, typically a pointer to a struct with
// json tags.
func DecodeParams(params map[string]any, dst any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
