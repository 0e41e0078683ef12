// Package asyncclient wraps client.Client in a cooperative-concurrency
// facade (spec §4/§5/§9, supplemented from original_source's
// client_async.py): mutating operations — Connect, Disconnect,
// RegisterSchema — serialize through a single lock, while independent
// reads are dispatched to their own goroutines so they can overlap up to
// the transport's own single-in-flight limit.
package asyncclient

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/blockpoll/devicesdk/client"
	"github.com/blockpoll/devicesdk/parser"
	"github.com/blockpoll/devicesdk/schema"
)

// Result is what ReadBlockAsync delivers: the parsed record, or the error
// reading it produced.
type Result struct {
	Record *parser.ParsedRecord
	Err    error
}

// GroupResult is what ReadGroupAsync delivers.
type GroupResult struct {
	Result *client.GroupResult
	Err    error
}

// AsyncClient is the asynchronous facade over a *client.Client.
type AsyncClient struct {
	c      *client.Client
	logger *log.Logger

	mu sync.Mutex // serializes Connect/Disconnect/RegisterSchema
}

// New wraps c. A nil logger disables per-call correlation logging.
func New(c *client.Client, l *log.Logger) *AsyncClient {
	return &AsyncClient{c: c, logger: l}
}

func (a *AsyncClient) logf(format string, args ...interface{}) {
	if a.logger == nil {
		return
	}
	a.logger.Printf(format, args...)
}

// ConnectAsync serializes with any other mutating call and reports its
// result on the returned channel, which is closed after one send.
func (a *AsyncClient) ConnectAsync(ctx context.Context) <-chan error {
	out := make(chan error, 1)
	token := uuid.NewString()
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.logf("D! [%s] connect starting", token)
		err := a.c.Connect(ctx)
		a.logf("D! [%s] connect done err=%v", token, err)
		out <- err
		close(out)
	}()
	return out
}

// DisconnectAsync serializes with any other mutating call.
func (a *AsyncClient) DisconnectAsync(ctx context.Context) <-chan error {
	out := make(chan error, 1)
	token := uuid.NewString()
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.logf("D! [%s] disconnect starting", token)
		err := a.c.Disconnect(ctx)
		a.logf("D! [%s] disconnect done err=%v", token, err)
		out <- err
		close(out)
	}()
	return out
}

// RegisterSchemaAsync serializes with any other mutating call.
func (a *AsyncClient) RegisterSchemaAsync(s *schema.BlockSchema) <-chan error {
	out := make(chan error, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		out <- a.c.RegisterSchema(s)
		close(out)
	}()
	return out
}

// ReadBlockAsync dispatches ReadBlock to its own goroutine; independent
// calls may overlap up to the transport's single-in-flight limit.
func (a *AsyncClient) ReadBlockAsync(ctx context.Context, blockID int, opts ...client.ReadOption) <-chan Result {
	out := make(chan Result, 1)
	token := uuid.NewString()
	go func() {
		a.logf("D! [%s] read block %d starting", token, blockID)
		record, err := a.c.ReadBlock(ctx, blockID, opts...)
		a.logf("D! [%s] read block %d done err=%v", token, blockID, err)
		out <- Result{Record: record, Err: err}
		close(out)
	}()
	return out
}

// ReadGroupAsync dispatches ReadGroupEx to its own goroutine.
func (a *AsyncClient) ReadGroupAsync(ctx context.Context, group string, partialOK bool) <-chan GroupResult {
	out := make(chan GroupResult, 1)
	token := uuid.NewString()
	go func() {
		a.logf("D! [%s] read group %q starting", token, group)
		res, err := a.c.ReadGroupEx(ctx, group, partialOK)
		a.logf("D! [%s] read group %q done err=%v", token, group, err)
		out <- GroupResult{Result: res, Err: err}
		close(out)
	}()
	return out
}

// StreamGroupAsync is client.Client.StreamGroup passed through unchanged:
// it is already an async iterator over its own goroutine.
func (a *AsyncClient) StreamGroupAsync(ctx context.Context, group string, partialOK bool) (<-chan client.StreamResult, error) {
	return a.c.StreamGroup(ctx, group, partialOK)
}
