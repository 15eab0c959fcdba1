package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/vecquery"
	"github.com/dreamware/vecquery/shards"
)

func TestQueryBatchInternal_StopsBeforeFusion(t *testing.T) {
	holder := shards.NewHolder()
	holder.Put(&stubShard{id: "s1", points: []vecquery.ScoredPoint{
		{ID: "p1", Score: 3},
		{ID: "p2", Score: 1},
	}})
	p := &PeerCoordinator{Holder: holder, Dispatcher: shards.NewDispatcher()}

	req := &vecquery.ShardQueryRequest{
		Query: vecquery.FusionQuery{Method: vecquery.RrfFusion},
		Prefetches: []vecquery.Prefetch{
			{Query: vecquery.SimilarityQuery{}, Limit: 2},
		},
		Limit: 2,
	}

	sel := shards.Selector{Mode: shards.SelectAll}
	out, err := p.QueryBatchInternal(context.Background(), []*vecquery.ShardQueryRequest{req}, sel, nil, time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// One intermediate slot per prefetch; the fusion root itself has no
	// separate intermediate slot since MergeIntermediates stops before Fuse.
	require.Len(t, out[0], 1)
}

func TestQueryBatchInternal_PropagatesFanOutError(t *testing.T) {
	holder := shards.NewHolder()
	p := &PeerCoordinator{Holder: holder, Dispatcher: shards.NewDispatcher()}

	sel := shards.Selector{Mode: shards.SelectByShardID, ShardIDs: []string{"missing"}}
	req := &vecquery.ShardQueryRequest{Query: vecquery.SimilarityQuery{}, Limit: 1}

	_, err := p.QueryBatchInternal(context.Background(), []*vecquery.ShardQueryRequest{req}, sel, nil, time.Second)
	require.Error(t, err)
}
