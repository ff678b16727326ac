package proxy

import (
	"context"
	"errors"
	"net/http"

	"bulkgofer/internal/batcher"
	"bulkgofer/internal/metrics"
	"bulkgofer/internal/payload"
)

var (
	// ErrUnknownGroup is returned for destinations whose group has no pool
	ErrUnknownGroup = errors.New("group not found")

	// ErrBodyTooLarge is returned when a request body exceeds maxBodySize
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrInvalidPayload is returned when a request body is not a single JSON value
	ErrInvalidPayload = errors.New("request body is not valid JSON")
)

// Classify maps an error to an HTTP status, the error object sent to the caller,
// and the outcome label used in metrics
func Classify(err error) (int, *payload.Error, string) {
	var transportErr *batcher.TransportError
	var shapeErr *batcher.ResponseShapeError

	switch {
	case errors.As(err, &shapeErr):
		return http.StatusBadGateway, payload.NewError(payload.CodeResponseShape, err.Error()), metrics.OutcomeShape
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, payload.NewError(payload.CodeTransportError, err.Error()), metrics.OutcomeTransport
	case errors.Is(err, batcher.ErrDispatcherStopped):
		return http.StatusServiceUnavailable, payload.NewError(payload.CodeUnavailable, err.Error()), metrics.OutcomeStopped
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, payload.NewError(payload.CodeTimeout, "gave up waiting for result"), metrics.OutcomeCanceled
	case errors.Is(err, ErrUnknownGroup):
		return http.StatusNotFound, payload.NewError(payload.CodeNotFound, err.Error()), ""
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, payload.NewError(payload.CodeInvalidRequest, err.Error()), ""
	case errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest, payload.NewError(payload.CodeParseError, err.Error()), ""
	default:
		return http.StatusInternalServerError, payload.NewError(payload.CodeInternalError, err.Error()), ""
	}
}

// WriteError writes err to w as a JSON error object with its Classify status
// and returns that status
func WriteError(w http.ResponseWriter, err error) int {
	status, rpcErr, _ := Classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload.MarshalError(rpcErr))
	return status
}
