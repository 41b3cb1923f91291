package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// MessageHandler is the callback executed for every inbound text message.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

// CloseHandler runs exactly once when the connection terminates, whatever
// side initiated it. Disconnect cleanup hangs off this hook.
type CloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout time.Duration
}

// Connection is a single thread-safe WebSocket connection with dedicated
// read and write pumps and a buffered outbound queue. Send never blocks the
// caller past the buffer; a stalled peer is only discovered when the write
// pump fails, which funnels into the close handler.
type Connection struct {
	id     uuid.UUID
	ws     *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   CloseHandler

	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, ws *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *Connection {
	id := uuid.New()
	ctx, cancel := context.WithCancel(parentCtx)

	return &Connection{
		id:     id,
		ws:     ws,
		config: config,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		wg:     wg,
		logger: logger.With(slog.String("connID", id.String())),
	}
}

func (c *Connection) ID() uuid.UUID { return c.id }

// Done is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) SetOnMessage(handler MessageHandler) { c.onMessage = handler }
func (c *Connection) SetOnClose(handler CloseHandler)     { c.onClose = handler }

// Run starts the pumps. Handlers must be set before calling it.
func (c *Connection) Run() {
	c.wg.Add(1)
	go c.readPump()
	go c.writePump()

	c.logger.Debug("connection established")
}

func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		msg, err := c.readOne()
		if err != nil {
			readErr = err
			return
		}
		if msg == nil {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, msg)
		}
	}
}

// readOne reads a single frame under the configured read timeout. A nil
// message with nil error means a frame type we ignore.
func (c *Connection) readOne() ([]byte, error) {
	readCtx := c.ctx
	if c.config.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		defer cancel()
	}

	typ, r, err := c.ws.Reader(readCtx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText && typ != websocket.MessageBinary {
		return nil, nil
	}
	return io.ReadAll(r)
}

func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.ws.Write(c.ctx, websocket.MessageText, msg); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.ws.Close(websocket.StatusNormalClosure, "shutting down")
			return
		}
	}
}

// Send queues a message for delivery. Safe for concurrent use; messages
// queued from a single goroutine are delivered in order.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
		c.logger.Debug("send on closed connection dropped")
	}
}

// Close tears down the connection once; later calls are no-ops. The send
// channel is never closed so concurrent broadcasts cannot panic; they drain
// into the cancelled-context branch of Send instead.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		c.logger.Debug("connection closing", slog.Any("reason", err))

		c.cancel()
		c.ws.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}
