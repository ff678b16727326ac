package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bulkgofer/internal/payload"
	"bulkgofer/internal/proxy"
)

const (
	writeTimeout   = 10 * time.Second
	idleTimeout    = 60 * time.Second
	pingInterval   = idleTimeout * 9 / 10
	maxMessageSize = 10 << 20

	// envelopes executing at once per connection; reading pauses beyond this
	maxInflight = 1024
	outboxSize  = 256
)

// Client serves one WebSocket connection.
// Every envelope runs in its own goroutine, so replies go out in settlement
// order, not in the order envelopes arrived. Callers match them by id.
type Client struct {
	conn     *websocket.Conn
	executor *proxy.Executor
	group    string
	logger   zerolog.Logger

	envelopes errgroup.Group
	outbox    chan []byte

	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewClient creates a Client executing envelopes against group
func NewClient(conn *websocket.Conn, executor *proxy.Executor, group string, logger zerolog.Logger) *Client {
	c := &Client{
		conn:     conn,
		executor: executor,
		group:    group,
		logger:   logger,
		outbox:   make(chan []byte, outboxSize),
		done:     make(chan struct{}),
		cancel:   func() {},
	}
	c.envelopes.SetLimit(maxInflight)
	return c
}

// Run serves the connection until it closes or ctx is done, then waits for
// envelopes still executing
func (c *Client) Run(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	c.readLoop(ctx)
	_ = c.envelopes.Wait()
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		env, perr := parseEnvelope(data)
		if perr != nil {
			c.reply(newErrorReply(env.replyID(), perr))
			continue
		}
		c.envelopes.Go(func() error {
			c.execute(ctx, env)
			return nil
		})
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.Close()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case <-c.done:
			return
		case data = <-c.outbox:
			kind = websocket.TextMessage
		case <-ping.C:
			kind = websocket.PingMessage
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			c.logger.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (c *Client) execute(ctx context.Context, env *Envelope) {
	destination := env.destination(c.group)

	resp, err := c.executor.Execute(ctx, destination, env.Payload)
	if err != nil {
		_, perr, _ := proxy.Classify(err)
		c.logger.Debug().Err(err).Str("destination", destination).Msg("envelope failed")
		c.reply(newErrorReply(env.replyID(), perr))
		return
	}
	c.reply(newResultReply(env.replyID(), resp.Body))
}

// reply queues a reply for the write loop. Replies are dropped once the
// connection is closed or when the client stops reading.
func (c *Client) reply(r *Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal reply")
		data, _ = json.Marshal(newErrorReply(r.ID, payload.ErrInternal))
	}

	select {
	case c.outbox <- data:
	case <-c.done:
	default:
		c.logger.Warn().Msg("outbox full, dropping reply")
	}
}

// Close closes the connection and releases envelopes waiting on results.
// Payloads already queued are still dispatched; only their replies are lost.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		_ = c.conn.Close()
	})
}
