// Package rpcshard exposes the peer-facing coordinator over RPC, the way
// zoekt's rpc package exposes a zoekt.Searcher: a Server builds a
// net/rpc-compatible HTTP handler, and a client dials it transparently,
// redialing once on a shutdown error before giving up.
package rpcshard

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/keegancsmith/rpc"

	"github.com/dreamware/vecquery"
	"github.com/dreamware/vecquery/coordinator"
	"github.com/dreamware/vecquery/shards"
)

// DefaultRPCPath is the HTTP path the server is mounted at and the
// client dials by default.
const DefaultRPCPath = "/rpc"

// QueryBatchArgs is the wire request for Coordinator.QueryBatchInternal.
type QueryBatchArgs struct {
	Requests    []*vecquery.ShardQueryRequest
	Selector    shards.Selector
	Consistency *shards.ReadConsistency
	Timeout     time.Duration
}

// QueryBatchReply is the wire response for Coordinator.QueryBatchInternal.
type QueryBatchReply struct {
	Responses []vecquery.ShardQueryResponse
}

// coordinatorService is the RPC-visible wrapper around a
// *coordinator.PeerCoordinator; keegancsmith/rpc requires exported
// methods with the (ctx, args, *reply) error signature.
type coordinatorService struct {
	peer *coordinator.PeerCoordinator
}

func (s *coordinatorService) QueryBatchInternal(ctx context.Context, args *QueryBatchArgs, reply *QueryBatchReply) error {
	resp, err := s.peer.QueryBatchInternal(ctx, args.Requests, args.Selector, args.Consistency, args.Timeout)
	if err != nil {
		return err
	}
	reply.Responses = resp
	return nil
}

// Server returns an http.Handler exposing peer over RPC at the
// "Coordinator.QueryBatchInternal" method name.
func Server(peer *coordinator.PeerCoordinator) http.Handler {
	RegisterGob()
	server := rpc.NewServer()
	if err := server.RegisterName("Coordinator", &coordinatorService{peer: peer}); err != nil {
		panic("rpcshard: unexpected error registering rpc server: " + err.Error())
	}
	return server
}

// Client connects to a Coordinator RPC server at address (host:port)
// using DefaultRPCPath.
func Client(address string) *PeerClient {
	return ClientAtPath(address, DefaultRPCPath)
}

// ClientAtPath connects to a Coordinator RPC server at address and path.
func ClientAtPath(address, path string) *PeerClient {
	RegisterGob()
	return &PeerClient{addr: address, path: path}
}

// PeerClient is the client side of the peer-facing coordinator RPC,
// dialing lazily and redialing once on a transport-level failure.
type PeerClient struct {
	addr, path string

	mu  sync.Mutex
	cl  *rpc.Client
	gen int
}

// QueryBatchInternal calls the remote peer coordinator.
func (c *PeerClient) QueryBatchInternal(ctx context.Context, requests []*vecquery.ShardQueryRequest, selector shards.Selector, consistency *shards.ReadConsistency, timeout time.Duration) ([]vecquery.ShardQueryResponse, error) {
	args := &QueryBatchArgs{Requests: requests, Selector: selector, Consistency: consistency, Timeout: timeout}
	var reply QueryBatchReply
	if err := c.call(ctx, "Coordinator.QueryBatchInternal", args, &reply); err != nil {
		return nil, err
	}
	return reply.Responses, nil
}

func (c *PeerClient) call(ctx context.Context, serviceMethod string, args, reply interface{}) error {
	cl, gen, err := c.getClient(ctx, 0)
	if err == nil {
		err = cl.Call(ctx, serviceMethod, args, reply)
		if err != rpc.ErrShutdown {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	cl, _, err = c.getClient(ctx, gen)
	if err != nil {
		return err
	}
	return cl.Call(ctx, serviceMethod, args, reply)
}

// getClient returns the current rpc.Client, redialing if gen matches
// the generation already dialed (meaning no other goroutine has redialed
// since the caller observed the failure).
func (c *PeerClient) getClient(ctx context.Context, gen int) (*rpc.Client, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return c.cl, c.gen, nil
	}
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	cl, err := rpc.DialHTTPPathTimeout("tcp", c.addr, c.path, timeout)
	if err != nil {
		return nil, c.gen, err
	}
	c.cl = cl
	c.gen++
	return c.cl, c.gen, nil
}

// Close closes the underlying connection, if any.
func (c *PeerClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cl != nil {
		c.cl.Close()
	}
}

func (c *PeerClient) String() string {
	return fmt.Sprintf("rpcshard.PeerClient(%s%s)", c.addr, c.path)
}

var registerOnce sync.Once

// RegisterGob registers the ScoringQuery implementations with gob so
// they can cross the wire inside a *vecquery.ShardQueryRequest.
// Safe to call more than once.
func RegisterGob() {
	registerOnce.Do(func() {
		gob.Register(vecquery.SimilarityQuery{})
		gob.Register(vecquery.RecommendQuery{})
		gob.Register(vecquery.RescoreQuery{})
		gob.Register(vecquery.FusionQuery{})
	})
}
