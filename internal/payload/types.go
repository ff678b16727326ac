package payload

import "encoding/json"

// Error codes reported to callers of the proxy front ends
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeNotFound       = -32601
	CodeInternalError  = -32603

	// Dispatch error codes range: -32000 to -32099
	CodeTransportError = -32000
	CodeResponseShape  = -32002
	CodeUnavailable    = -32003
	CodeTimeout        = -32004
)

// Error is the error object returned to proxy callers
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new Error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// ErrorBody wraps an Error for an HTTP response body
type ErrorBody struct {
	Error *Error `json:"error"`
}

// MarshalError returns the JSON body for an error response
func MarshalError(err *Error) []byte {
	data, marshalErr := json.Marshal(ErrorBody{Error: err})
	if marshalErr != nil {
		return []byte(`{"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}

// Common errors
var (
	ErrParse          = NewError(CodeParseError, "Parse error")
	ErrInvalidRequest = NewError(CodeInvalidRequest, "Invalid request")
	ErrInternal       = NewError(CodeInternalError, "Internal error")
)
