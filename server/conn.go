package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"

	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/logger"
)

// Conn serves one Session over a JSON-RPC connection. Messages are
// dispatched in arrival order on the read loop; Deferred completions run in
// their own goroutines and can be cancelled with $/cancelRequest.
type Conn struct {
	session *Session
	logger  *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}
	once   sync.Once

	mu       sync.Mutex
	inflight map[jsonrpc2.ID]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

var _ jsonrpc2.Handler = (*Conn)(nil)

// NewConn prepares session to be served.
func NewConn(session *Session, log *zap.SugaredLogger) *Conn {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		session:  session,
		logger:   log.With(logger.FieldSession, session.ID()),
		ctx:      ctx,
		cancel:   cancel,
		exited:   make(chan struct{}),
		inflight: make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// Serve runs the connection until the peer disconnects, the session exits or
// ctx is cancelled. In-flight requests are cancelled and the session is
// stopped before Serve returns.
func (c *Conn) Serve(ctx context.Context, stream jsonrpc2.ObjectStream) {
	rpc := jsonrpc2.NewConn(c.ctx, stream, c)

	select {
	case <-rpc.DisconnectNotify():
	case <-c.exited:
	case <-ctx.Done():
	}
	_ = rpc.Close()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	c.session.Stop()
	c.logger.Infow("Connection closed", "exit_code", c.session.ExitCode())
}

// Handle implements jsonrpc2.Handler. It is called sequentially by the read loop.
func (c *Conn) Handle(_ context.Context, rpc *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Method == protocol.MethodCancelRequest {
		c.cancelRequest(req)
		return
	}

	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}
	ctx := c.ctx
	if !req.Notif {
		ctx = logger.WithRequestID(ctx, req.ID.String())
	}
	gctx := &glsp.Context{
		Method: req.Method,
		Params: params,
		Notify: func(method string, params any) {
			if err := rpc.Notify(c.ctx, method, params); err != nil {
				c.logger.Debugw("Notify failed", logger.FieldMethod, method, logger.FieldError, err)
			}
		},
	}

	result, err := c.dispatch(ctx, gctx)

	if req.Notif {
		if err != nil && !errors.IsDocumentError(err) {
			// document errors were already reported by the session
			c.logger.Warnw("Notification failed", logger.FieldMethod, req.Method, logger.FieldError, err)
		}
		if req.Method == protocol.MethodExit {
			c.markExited()
		}
		return
	}

	if d, ok := result.(Deferred); ok && err == nil {
		c.runDeferred(ctx, rpc, req, d)
		return
	}
	c.reply(ctx, rpc, req, result, err)
	if c.session.State() == StateStopped {
		// initialize rejected with a configuration error
		c.markExited()
	}
}

// dispatch calls the session, converting a panic into an internal error.
func (c *Conn) dispatch(ctx context.Context, gctx *glsp.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx, c.logger).Errorw("Panic in handler",
				logger.FieldMethod, gctx.Method,
				"panic", r)
			result, err = nil, errors.Newf("internal error handling %s: %v", gctx.Method, r)
		}
	}()
	return c.session.Dispatch(ctx, gctx)
}

func (c *Conn) runDeferred(ctx context.Context, rpc *jsonrpc2.Conn, req *jsonrpc2.Request, d Deferred) {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	c.inflight[req.ID] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, req.ID)
			c.mu.Unlock()
			cancel()
		}()

		result, err := func() (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.FromContext(ctx, c.logger).Errorw("Panic in deferred handler",
						logger.FieldMethod, req.Method,
						"panic", r)
					result, err = nil, errors.Newf("internal error handling %s: %v", req.Method, r)
				}
			}()
			return d(runCtx)
		}()

		if runCtx.Err() != nil && !errors.IsCancelledError(err) {
			result, err = nil, errors.Wrapf(errors.ErrRequestCancelled, "%s", req.Method)
		}
		c.reply(ctx, rpc, req, result, err)
	}()
}

func (c *Conn) reply(ctx context.Context, rpc *jsonrpc2.Conn, req *jsonrpc2.Request, result any, err error) {
	log := logger.FromContext(ctx, c.logger)
	if err != nil {
		rpcErr := ToRPCError(err)
		if rpcErr.Code == jsonrpc2.CodeInternalError {
			log.Errorw("Request failed", logger.FieldMethod, req.Method, logger.FieldError, err)
		} else {
			log.Debugw("Request rejected", logger.FieldMethod, req.Method, logger.FieldError, err)
		}
		if replyErr := rpc.ReplyWithError(c.ctx, req.ID, rpcErr); replyErr != nil {
			log.Debugw("Reply failed", logger.FieldMethod, req.Method, logger.FieldError, replyErr)
		}
		return
	}
	if replyErr := rpc.Reply(c.ctx, req.ID, result); replyErr != nil {
		log.Debugw("Reply failed", logger.FieldMethod, req.Method, logger.FieldError, replyErr)
	}
}

// cancelRequest cancels the request named by $/cancelRequest. Unknown or
// already answered IDs are ignored.
func (c *Conn) cancelRequest(req *jsonrpc2.Request) {
	if req.Params == nil {
		return
	}
	var params struct {
		ID jsonrpc2.ID `json:"id"`
	}
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		c.logger.Debugw("Malformed cancel", logger.FieldError, err)
		return
	}
	c.mu.Lock()
	cancel, ok := c.inflight[params.ID]
	c.mu.Unlock()
	if ok {
		c.logger.Debugw("Request cancelled", logger.FieldRequestID, params.ID.String())
		cancel()
	}
}

func (c *Conn) markExited() {
	c.once.Do(func() { close(c.exited) })
}

// ServeStream serves session over a byte stream using LSP's
// Content-Length framing, e.g. stdin/stdout.
func ServeStream(ctx context.Context, session *Session, rwc io.ReadWriteCloser, log *zap.SugaredLogger) {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	NewConn(session, log).Serve(ctx, stream)
}

// StdioReadWriteCloser joins a reader and writer, closing both on Close.
type StdioReadWriteCloser struct {
	io.ReadCloser
	io.WriteCloser
}

func (s StdioReadWriteCloser) Close() error {
	rerr := s.ReadCloser.Close()
	werr := s.WriteCloser.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
