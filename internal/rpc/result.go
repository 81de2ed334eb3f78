package rpc

import (
	"encoding/json"
	"errors"
)

// Result is the reply to one call: either data or an error, never both.
type Result struct {
	data   any
	errVal any
	failed bool
}

// Data builds a successful result.
func Data(v any) Result {
	return Result{data: v}
}

// Failure builds an error result. v is sent as is, usually a message string.
func Failure(v any) Result {
	return Result{errVal: v, failed: true}
}

func (r Result) IsError() bool { return r.failed }

// Value returns the data of a successful result.
func (r Result) Value() any { return r.data }

// ErrorValue returns the error payload of a failed result.
func (r Result) ErrorValue() any { return r.errVal }

func (r Result) MarshalJSON() ([]byte, error) {
	if r.failed {
		return json.Marshal(struct {
			Error any `json:"error"`
		}{r.errVal})
	}
	return json.Marshal(struct {
		Data any `json:"data"`
	}{r.data})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if e, ok := raw["error"]; ok {
		var v any
		if err := json.Unmarshal(e, &v); err != nil {
			return err
		}
		*r = Failure(v)
		return nil
	}
	d, ok := raw["data"]
	if !ok {
		return errors.New("rpc: reply has neither data nor error")
	}
	var v any
	if err := json.Unmarshal(d, &v); err != nil {
		return err
	}
	*r = Data(v)
	return nil
}
