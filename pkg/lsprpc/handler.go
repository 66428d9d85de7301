package lsprpc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kralicky/astrols/pkg/lsp"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/event"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

// NewStreamServer serves one language server per connection. Each server
// starts its own analysis engine through engine when it is initialized.
func NewStreamServer(engine lsp.EngineFactory, opts ...lsp.ServerOption) jsonrpc2.StreamServer {
	return &streamServer{
		engine: engine,
		opts:   opts,
	}
}

type streamServer struct {
	engine lsp.EngineFactory
	opts   []lsp.ServerOption
}

func (s *streamServer) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	opts := append([]lsp.ServerOption{
		lsp.WithExitHandler(func() {
			if err := conn.Close(); err != nil {
				slog.Debug("error closing connection", "error", err)
			}
		}),
	}, s.opts...)
	client := protocol.ClientDispatcher(conn)
	server := lsp.NewServer(client, s.engine, opts...)
	handler := protocol.CancelHandler(
		AsyncHandler(
			jsonrpc2.MustReplyHandler(
				protocol.ServerHandler(server, jsonrpc2.MethodNotFound))))
	conn.Go(ctx, handler)
	<-conn.Done()
	if err := conn.Err(); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}

// methods that are intended to be long-lived, and should not hold up the queue
var streamingRequestMethods = map[string]bool{
	"workspace/executeCommand": true,
}

// AsyncHandler runs requests in arrival order without blocking the reader.
// A request waits until the previous one has replied, except for streaming
// methods which release the queue as soon as they start.
func AsyncHandler(handler jsonrpc2.Handler) jsonrpc2.Handler {
	nextRequest := make(chan struct{})
	close(nextRequest)
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		waitForPrevious := nextRequest
		nextRequest = make(chan struct{})
		unlockNext := nextRequest
		if streamingRequestMethods[req.Method()] {
			close(unlockNext)
		} else {
			innerReply := reply
			reply = func(ctx context.Context, result any, err error) error {
				close(unlockNext)
				return innerReply(ctx, result, err)
			}
		}
		_, queueDone := event.Start(ctx, "queued")
		go func() {
			<-waitForPrevious
			queueDone()
			if err := handler(ctx, reply, req); err != nil {
				event.Error(ctx, "jsonrpc2 async message delivery failed", err)
			}
		}()
		return nil
	}
}
