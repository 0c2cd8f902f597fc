// Package types holds the wire envelopes shared by every Gatherz API
// response.
package types

// SuccessEnvelope wraps a successful payload under a single data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a coded error: a stable machine code, a
// human message and optional structured details such as a balance shortfall.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for error responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
