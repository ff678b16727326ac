package proxy

import (
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"bulkgofer/internal/payload"
)

// RequestIDHeader carries the id assigned to each submitted payload
const RequestIDHeader = "X-Request-ID"

// Handler accepts POST /{group}/{path} requests and answers each with the
// result of its batched dispatch
type Handler struct {
	router      *Router
	executor    *Executor
	maxBodySize int64
	logger      zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(router *Router, executor *Executor, maxBodySize int64, logger zerolog.Logger) *Handler {
	return &Handler{
		router:      router,
		executor:    executor,
		maxBodySize: maxBodySize,
		logger:      logger.With().Str("component", "proxy").Logger(),
	}
}

// ServeHTTP handles HTTP requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, http.StatusMethodNotAllowed, payload.NewError(payload.CodeInvalidRequest, "method not allowed"))
		return
	}

	if _, err := h.router.PoolFor(r.URL.Path); err != nil {
		h.fail(w, err)
		return
	}

	body, err := h.readBody(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	if !payload.Valid(body) {
		h.fail(w, ErrInvalidPayload)
		return
	}

	destination := r.URL.Path
	if r.URL.RawQuery != "" {
		destination += "?" + r.URL.RawQuery
	}

	resp, err := h.executor.Execute(r.Context(), destination, body)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set(RequestIDHeader, resp.RequestID)
	if resp.Cached {
		w.Header().Set("X-Cache", "HIT")
	}
	h.writeJSON(w, http.StatusOK, resp.Body)
}

// readBody reads the request body, enforcing maxBodySize when set
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	if h.maxBodySize <= 0 {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if int64(len(body)) > h.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := WriteError(w, err); status >= http.StatusInternalServerError {
		h.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, rpcErr *payload.Error) {
	h.writeJSON(w, status, payload.MarshalError(rpcErr))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug().Err(err).Msg("failed to write response")
	}
}
