package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamware/vecquery"
	"github.com/dreamware/vecquery/shards"
)

// PeerCoordinator is the internal, peer-facing entry point: it fans a
// flat list of requests out to shards and merges each query's
// intermediates, but never fuses or paginates — the remote caller (a
// coordinator on another node acting as the user-facing entry point for
// some other collection) finishes the job itself.
type PeerCoordinator struct {
	Holder     shards.ShardHolder
	Dispatcher *shards.Dispatcher
}

// QueryBatchInternal returns one ShardQueryResponse per request, in
// input order, pre-fusion and pre-pagination.
func (p *PeerCoordinator) QueryBatchInternal(ctx context.Context, requests []*vecquery.ShardQueryRequest, selector ShardSelector, consistency *shards.ReadConsistency, timeout time.Duration) ([]vecquery.ShardQueryResponse, error) {
	batchReq := &shards.BatchRequest{Requests: requests, ReadConsistency: consistency}
	fanOut, err := p.Dispatcher.FanOut(ctx, p.Holder, selector, batchReq, timeout)
	if err != nil {
		return nil, err
	}

	out := make([]vecquery.ShardQueryResponse, len(requests))
	for qi, req := range requests {
		merged, err := vecquery.MergeIntermediates(req, perQueryCells(fanOut, qi))
		if err != nil {
			return nil, fmt.Errorf("coordinator: merge query %d: %w", qi, err)
		}
		out[qi] = merged
	}
	return out, nil
}
