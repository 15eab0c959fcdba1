package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/vecquery"
	"github.com/dreamware/vecquery/shards"
)

// ShardSelector picks which shards a query is dispatched to. It is a
// thin alias over shards.Selector so callers of this package don't need
// to import the shards package just to build one.
type ShardSelector = shards.Selector

// VectorResolver resolves point-id references to concrete vectors. Its
// implementation (reaching into storage, possibly across collections) is
// an external collaborator of this core; lookup_from-style cross-
// collection resolution is whatever the caller's VectorResolver does.
type VectorResolver interface {
	Resolve(ctx context.Context, refs []string) (map[string][]float32, error)
}

// CollectionQueryRequest is the user-facing query, before it has been
// converted into a per-shard request. ResolveRefs lists point-id
// references appearing inside Query/Prefetches that must be resolved to
// vectors before dispatch; resolution happens once per QueryBatch call,
// batched across every request in the call.
type CollectionQueryRequest struct {
	Query      vecquery.ScoringQuery
	Prefetches []vecquery.Prefetch
	Limit      int
	Offset     int
	Filter     *vecquery.Filter

	ResolveRefs []string

	resolved map[string][]float32
}

// RequestBatch pairs one user query with the shard selector it should be
// dispatched under.
type RequestBatch struct {
	Request  CollectionQueryRequest
	Selector ShardSelector
}

func (r *CollectionQueryRequest) toShardQueryRequest() (*vecquery.ShardQueryRequest, error) {
	for _, ref := range r.ResolveRefs {
		if _, ok := r.resolved[ref]; !ok {
			return nil, fmt.Errorf("coordinator: unresolved reference %q", ref)
		}
	}
	return &vecquery.ShardQueryRequest{
		Query:      r.Query,
		Prefetches: r.Prefetches,
		Limit:      r.Limit,
		Offset:     r.Offset,
		Filter:     r.Filter,
	}, nil
}

// QueryCoordinator is the user-facing entry point: it resolves
// referenced vectors, groups contiguous same-selector requests into
// batches, fans each batch out, and merges + fuses + paginates every
// query's response.
type QueryCoordinator struct {
	Holder     shards.ShardHolder
	Dispatcher *shards.Dispatcher
	Resolver   VectorResolver

	// RRFConstant overrides vecquery.DefaultRRFConstant when >0.
	RRFConstant int

	SlowQuery SlowQueryLogger
}

// QueryBatch resolves requests in input order and returns one ranked
// list per request, in the same order, each truncated to its own limit.
// The first error anywhere in the pipeline aborts the whole batch; no
// partial result is returned.
func (c *QueryCoordinator) QueryBatch(ctx context.Context, batch []RequestBatch, consistency *shards.ReadConsistency, timeout time.Duration) ([][]vecquery.ScoredPoint, error) {
	requestID := xid.New().String()

	if err := c.resolveVectors(ctx, batch); err != nil {
		return nil, fmt.Errorf("coordinator: resolve vectors: %w", err)
	}

	groups, memberOf, err := groupBySelector(batch)
	if err != nil {
		return nil, err
	}

	groupResults := make([][][]vecquery.ScoredPoint, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for gi, grp := range groups {
		gi, grp := gi, grp
		g.Go(func() error {
			res, err := c.runGroup(gctx, requestID, grp, consistency, timeout)
			if err != nil {
				return err
			}
			groupResults[gi] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]vecquery.ScoredPoint, len(batch))
	for gi, members := range memberOf {
		for localIdx, originalIdx := range members {
			out[originalIdx] = groupResults[gi][localIdx]
		}
	}
	return out, nil
}

type requestGroup struct {
	selector ShardSelector
	requests []*vecquery.ShardQueryRequest
}

// groupBySelector iterates batch in order and groups contiguous entries
// whose selectors match, converting each to a *vecquery.ShardQueryRequest
// along the way. memberOf[g] lists the original batch indices making up
// group g, in group-local order.
func groupBySelector(batch []RequestBatch) (groups []requestGroup, memberOf [][]int, err error) {
	for i := range batch {
		sreq, cerr := batch[i].Request.toShardQueryRequest()
		if cerr != nil {
			return nil, nil, fmt.Errorf("coordinator: request %d: %w", i, cerr)
		}

		if n := len(groups); n > 0 && groups[n-1].selector.Equal(batch[i].Selector) {
			groups[n-1].requests = append(groups[n-1].requests, sreq)
			memberOf[n-1] = append(memberOf[n-1], i)
			continue
		}
		groups = append(groups, requestGroup{selector: batch[i].Selector, requests: []*vecquery.ShardQueryRequest{sreq}})
		memberOf = append(memberOf, []int{i})
	}
	return groups, memberOf, nil
}

func (c *QueryCoordinator) runGroup(ctx context.Context, requestID string, grp requestGroup, consistency *shards.ReadConsistency, timeout time.Duration) ([][]vecquery.ScoredPoint, error) {
	batchReq := &shards.BatchRequest{Requests: grp.requests, ReadConsistency: consistency}
	fanOut, err := c.Dispatcher.FanOut(ctx, c.Holder, grp.selector, batchReq, timeout)
	if err != nil {
		return nil, err
	}

	out := make([][]vecquery.ScoredPoint, len(grp.requests))
	for qi, req := range grp.requests {
		start := time.Now()

		merged, err := vecquery.MergeIntermediates(req, perQueryCells(fanOut, qi))
		if err != nil {
			return nil, fmt.Errorf("coordinator: merge query %d: %w", qi, err)
		}

		fused, err := vecquery.Fuse(req, merged, c.RRFConstant)
		if err != nil {
			return nil, fmt.Errorf("coordinator: fuse query %d: %w", qi, err)
		}

		page := vecquery.Paginate(fused, req.Offset, req.Limit)
		c.SlowQuery.Log(requestID, time.Since(start), req.FilterRefs())
		out[qi] = page
	}
	return out, nil
}

// perQueryCells pivots a fan-out result from [shard][query][intermediate]
// to the [shard][intermediate] slice MergeIntermediates wants for query
// qi.
func perQueryCells(fanOut *shards.FanOutResult, qi int) [][]vecquery.ShardIntermediateResult {
	cells := make([][]vecquery.ShardIntermediateResult, len(fanOut.Responses))
	for si, perShard := range fanOut.Responses {
		if qi < len(perShard) {
			cells[si] = perShard[qi]
		}
	}
	return cells
}

func (c *QueryCoordinator) resolveVectors(ctx context.Context, batch []RequestBatch) error {
	if c.Resolver == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var refs []string
	for _, rb := range batch {
		for _, r := range rb.Request.ResolveRefs {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				refs = append(refs, r)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}

	resolved, err := c.Resolver.Resolve(ctx, refs)
	if err != nil {
		return err
	}
	for i := range batch {
		batch[i].Request.resolved = resolved
	}
	return nil
}
