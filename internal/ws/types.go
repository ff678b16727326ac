package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"bulkgofer/internal/payload"
)

var (
	errMissingPayload = errors.New("payload is required")
	errBadPath        = errors.New("path must be relative to the connection's group")
)

// Envelope is one payload submitted over a WebSocket connection.
// ID is opaque to the proxy and echoed in the reply.
type Envelope struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Path    string          `json:"path"`
	Payload json.RawMessage `json:"payload"`
}

// Reply is the frame written back once the envelope's result settles.
// Exactly one of Result and Error is set.
type Reply struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *payload.Error  `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

// parseEnvelope decodes a text frame. On failure the returned envelope still
// carries the id when it could be read.
func parseEnvelope(data []byte) (*Envelope, *payload.Error) {
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return env, payload.NewError(payload.CodeParseError, err.Error())
	}

	if len(bytes.TrimSpace(env.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(env.Payload), nullID) {
		return env, payload.NewError(payload.CodeInvalidRequest, errMissingPayload.Error())
	}

	if strings.Contains(env.Path, "://") {
		return env, payload.NewError(payload.CodeInvalidRequest, errBadPath.Error())
	}

	return env, nil
}

// destination joins the connection's group with the envelope path
func (e *Envelope) destination(groupName string) string {
	path := e.Path
	if path != "" && !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "?") {
		path = "/" + path
	}
	return "/" + groupName + path
}

func (e *Envelope) replyID() json.RawMessage {
	if len(e.ID) == 0 {
		return nullID
	}
	return e.ID
}

func newResultReply(id, result json.RawMessage) *Reply {
	return &Reply{ID: id, Result: result}
}

func newErrorReply(id json.RawMessage, err *payload.Error) *Reply {
	return &Reply{ID: id, Error: err}
}
