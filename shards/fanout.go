package shards

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dreamware/vecquery"
)

// Dispatcher drives the scatter-gather fan-out of one batch of queries
// across selected shards.
type Dispatcher struct {
	// MaxConcurrency bounds the number of shard calls in flight at once.
	// <=0 selects runtime.GOMAXPROCS(0)*4.
	MaxConcurrency int64
}

// NewDispatcher returns a Dispatcher with the default concurrency bound.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) maxConcurrency() int64 {
	if d.MaxConcurrency > 0 {
		return d.MaxConcurrency
	}
	return int64(runtime.GOMAXPROCS(0) * 4)
}

// FanOutResult is the gathered response of one fan-out call: one entry
// per dispatched shard, in ShardIDs[i]/Responses[i] correspondence.
// Responses[i] is indexed [query][intermediate], mirroring batch.Requests.
type FanOutResult struct {
	ShardIDs  []string
	Responses [][][]vecquery.ShardIntermediateResult
}

// FanOut resolves the shards selected by sel, dispatches batch to every
// one of them concurrently, and waits for all to complete. On the first
// shard failure the whole fan-out fails — no partial results are
// returned. If a selected shard has an explicit shard key, that key is
// stamped onto every ScoredPoint the shard returns.
//
// The shard-holder lock is held only inside holder.Select; it is never
// held while awaiting a shard.
func (d *Dispatcher) FanOut(ctx context.Context, holder ShardHolder, sel Selector, batch *BatchRequest, timeout time.Duration) (*FanOutResult, error) {
	start := time.Now()
	defer func() { metricFanOutDuration.Observe(time.Since(start).Seconds()) }()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shardList, err := holder.Select(sel)
	if err != nil {
		return nil, err
	}
	if len(shardList) == 0 {
		return &FanOutResult{}, nil
	}

	batch.ByShardID = sel.Mode == SelectByShardID

	sem := semaphore.NewWeighted(d.maxConcurrency())
	g, gctx := errgroup.WithContext(ctx)

	ids := make([]string, len(shardList))
	responses := make([][][]vecquery.ShardIntermediateResult, len(shardList))

	for i, s := range shardList {
		i, s := i, s
		ids[i] = s.ID()

		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() (err error) {
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					metricShardsFailedTotal.Inc()
					err = fmt.Errorf("shards: shard %s panicked: %v", s.ID(), r)
				}
			}()

			metricShardsDispatchedTotal.Inc()
			res, qerr := s.Query(gctx, batch)
			if qerr != nil {
				metricShardsFailedTotal.Inc()
				return fmt.Errorf("shards: shard %s: %w", s.ID(), qerr)
			}

			if key, ok := s.Key(); ok {
				stampShardKey(res, key)
			}
			responses[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FanOutResult{ShardIDs: ids, Responses: responses}, nil
}

// stampShardKey sets ShardKey on every point in res to key. It mutates in
// place: res's points slices share a backing array with what the shard
// returned, so no copy is made per spec's "shared reference, not cloned"
// discipline.
func stampShardKey(res [][]vecquery.ShardIntermediateResult, key string) {
	for _, perQuery := range res {
		for _, inter := range perQuery {
			for i := range inter.Points {
				k := key
				inter.Points[i].ShardKey = &k
			}
		}
	}
}
