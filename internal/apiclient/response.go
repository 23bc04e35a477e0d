package apiclient

import (
	"encoding/json"
)

// Response is a decoded API reply. Body is always a JSON object.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Envelope is the success/message pair every endpoint returns.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (r *Response) envelope() Envelope {
	var env Envelope
	if r == nil {
		return env
	}
	// Body is a valid object; a mistyped field just leaves the zero value.
	_ = json.Unmarshal(r.Body, &env)
	return env
}

// Success reports the envelope's success flag. Missing means false.
func (r *Response) Success() bool {
	return r.envelope().Success
}

// Message returns the envelope's message, possibly empty.
func (r *Response) Message() string {
	return r.envelope().Message
}

// MessageOr returns the message, or fallback when the server sent none.
func (r *Response) MessageOr(fallback string) string {
	if m := r.Message(); m != "" {
		return m
	}
	return fallback
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return json.Unmarshal(emptyObject, v)
	}
	return json.Unmarshal(r.Body, v)
}
