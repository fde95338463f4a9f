// Package types defines the JSON envelopes shared by every API endpoint.
package types

// SuccessEnvelope wraps every successful response body under a "data" key so
// clients can parse marketplace and booking payloads uniformly.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError carries the stable machine-readable code from pkg/errors alongside
// a human-readable message. Details holds per-field or per-resource context,
// such as the product id that went out of stock.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
