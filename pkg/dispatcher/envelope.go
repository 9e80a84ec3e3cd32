// Package dispatcher routes line-delimited JSON-RPC requests to the agent's
// domain services and normalizes every outcome into a response envelope.
package dispatcher

import (
	"encoding/json"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
)

// jsonRPCVersion stamps every response.
const jsonRPCVersion = "2.0"

// Protocol-level error codes. Domain failures carry their taxonomy status
// code instead; both mappings are fixed so callers can build retry logic on
// top of them.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// Request is the incoming JSON-RPC envelope, one per input line.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the outgoing envelope. Exactly one of Result and Error is set;
// ID echoes the request id, or null when the request could not be parsed.
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id"`
	Result  any          `json:"result,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the failure payload.
type ErrorDetail struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func successResponse(id, result any) *Response {
	return &Response{JSONRPC: jsonRPCVersion, ID: id, Result: result}
}

func errorResponse(id any, code int, message string, data map[string]any) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &ErrorDetail{Code: code, Message: message, Data: data},
	}
}

// failureResponse maps err into the response error contract. Taxonomy errors
// carry their status code and details; a retry-exhausted error reports the
// code of the failure that actually exhausted the attempts. Anything outside
// the taxonomy becomes a generic internal error with the stringified cause
// preserved for diagnostics.
func failureResponse(id any, err error) *Response {
	apiErr := apierror.As(err)
	if apiErr == nil {
		return errorResponse(id, codeInternalError, "Internal error", map[string]any{
			"cause": err.Error(),
		})
	}

	effective := apiErr.Kind
	if effective == apierror.KindRetryExhausted && apiErr.Cause != nil {
		effective = apierror.KindOf(apiErr.Cause)
	}

	data := map[string]any{"kind": string(apiErr.Kind)}
	for k, v := range apiErr.Details {
		data[k] = v
	}
	if apiErr.RetryAfter > 0 {
		data["retry_after"] = apiErr.RetryAfter
	}
	return errorResponse(id, effective.StatusCode(), apiErr.Message, data)
}
