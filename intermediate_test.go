package vecquery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func cell(order Order, idList []string, scores []float64) ShardIntermediateResult {
	return ShardIntermediateResult{Order: order, Points: pts(idList, scores)}
}

// S1 — single shard, non-fusion.
func TestMergeIntermediates_SingleShardNonFusion(t *testing.T) {
	req := &ShardQueryRequest{Query: SimilarityQuery{}, Limit: 2, Offset: 0}
	shardResults := [][]ShardIntermediateResult{
		{cell(LargeBetter, []string{"p1", "p2"}, []float64{0.9, 0.7})},
	}

	resp, err := MergeIntermediates(req, shardResults)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Equal(t, []string{"p1", "p2"}, ids(resp[0]))
}

func TestMergeIntermediates_TwoShardsDuplicate(t *testing.T) {
	req := &ShardQueryRequest{Query: SimilarityQuery{}, Limit: 3, Offset: 0}
	shardResults := [][]ShardIntermediateResult{
		{cell(LargeBetter, []string{"p1", "p3"}, []float64{0.9, 0.5})},
		{cell(LargeBetter, []string{"p2", "p1"}, []float64{0.8, 0.85})},
	}

	resp, err := MergeIntermediates(req, shardResults)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Equal(t, []string{"p1", "p2", "p3"}, ids(resp[0]))
	require.Equal(t, 0.9, resp[0][0].Score)
}

func TestMergeIntermediates_FusionUsesPrefetchLimits(t *testing.T) {
	req := &ShardQueryRequest{
		Query: FusionQuery{Method: RrfFusion},
		Prefetches: []Prefetch{
			{Limit: 2},
			{Limit: 1},
		},
	}
	shardResults := [][]ShardIntermediateResult{
		{
			cell(LargeBetter, []string{"p1", "p2", "p3"}, []float64{3, 2, 1}),
			cell(LargeBetter, []string{"p4", "p5"}, []float64{9, 8}),
		},
	}

	resp, err := MergeIntermediates(req, shardResults)
	require.NoError(t, err)
	require.Len(t, resp, 2)
	require.Equal(t, []string{"p1", "p2"}, ids(resp[0])) // prefetch 0 limit=2
	require.Equal(t, []string{"p4"}, ids(resp[1]))       // prefetch 1 limit=1
}

func TestMergeIntermediates_IntermediateCountMismatch(t *testing.T) {
	req := &ShardQueryRequest{
		Query:      FusionQuery{Method: RrfFusion},
		Prefetches: []Prefetch{{Limit: 1}, {Limit: 1}},
	}
	shardResults := [][]ShardIntermediateResult{
		{cell(LargeBetter, []string{"p1"}, []float64{1})}, // only 1, want 2
	}

	_, err := MergeIntermediates(req, shardResults)
	require.True(t, errors.Is(err, ErrIntermediateCountMismatch))
}

func TestMergeIntermediates_OrderMismatch(t *testing.T) {
	req := &ShardQueryRequest{Query: SimilarityQuery{}, Limit: 10}
	shardResults := [][]ShardIntermediateResult{
		{cell(LargeBetter, []string{"p1"}, []float64{1})},
		{cell(SmallBetter, []string{"p2"}, []float64{1})},
	}

	_, err := MergeIntermediates(req, shardResults)
	require.True(t, errors.Is(err, ErrOrderMismatch))
}

func TestMergeIntermediates_ZeroShardsDefaultsOrder(t *testing.T) {
	req := &ShardQueryRequest{Query: SimilarityQuery{}, Limit: 10}
	resp, err := MergeIntermediates(req, nil)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Empty(t, resp[0])
}
