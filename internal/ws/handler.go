package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bulkgofer/internal/proxy"
)

// Handler upgrades GET /{group} requests to WebSocket connections.
// Each envelope on the connection is executed against that group.
type Handler struct {
	router   *proxy.Router
	executor *proxy.Executor
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(router *proxy.Router, executor *proxy.Executor, logger zerolog.Logger) *Handler {
	return &Handler{
		router:   router,
		executor: executor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Unknown groups are refused before the handshake so clients get a plain HTTP error
	pool, err := h.router.PoolFor(r.URL.Path)
	if err != nil {
		proxy.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	logger := h.logger.With().
		Str("group", pool.Name()).
		Str("remoteAddr", r.RemoteAddr).
		Logger()
	logger.Info().Msg("websocket connected")

	NewClient(conn, h.executor, pool.Name(), logger).Run(r.Context())

	logger.Info().Msg("websocket disconnected")
}
