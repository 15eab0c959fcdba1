package shards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/vecquery"
)

type fakeShard struct {
	id      string
	key     string
	hasKey  bool
	points  []vecquery.ScoredPoint
	err     error
	queried int
}

func (f *fakeShard) ID() string { return f.id }
func (f *fakeShard) Key() (ShardKey, bool) {
	return f.key, f.hasKey
}
func (f *fakeShard) Query(ctx context.Context, batch *BatchRequest) ([][]vecquery.ShardIntermediateResult, error) {
	f.queried++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]vecquery.ShardIntermediateResult, len(batch.Requests))
	for i := range batch.Requests {
		// Return a copy of points so each query's result is independently
		// mutable by the shard-key stamping step.
		pts := make([]vecquery.ScoredPoint, len(f.points))
		copy(pts, f.points)
		out[i] = []vecquery.ShardIntermediateResult{{Order: vecquery.LargeBetter, Points: pts}}
	}
	return out, nil
}

func TestFanOut_StampsShardKey(t *testing.T) {
	holder := NewHolder()
	holder.Put(&fakeShard{id: "s1", key: "k1", hasKey: true, points: []vecquery.ScoredPoint{{ID: "p1", Score: 1}}})
	holder.Put(&fakeShard{id: "s2", points: []vecquery.ScoredPoint{{ID: "p2", Score: 2}}}) // no key

	d := NewDispatcher()
	batch := &BatchRequest{Requests: []*vecquery.ShardQueryRequest{{Limit: 1}}}
	res, err := d.FanOut(context.Background(), holder, Selector{Mode: SelectAll}, batch, 0)
	require.NoError(t, err)
	require.Len(t, res.Responses, 2)

	for i, id := range res.ShardIDs {
		pt := res.Responses[i][0][0].Points[0]
		switch id {
		case "s1":
			require.NotNil(t, pt.ShardKey)
			require.Equal(t, "k1", *pt.ShardKey)
		case "s2":
			require.Nil(t, pt.ShardKey)
		}
	}
}

func TestFanOut_FirstFailureAbortsWhole(t *testing.T) {
	holder := NewHolder()
	holder.Put(&fakeShard{id: "s1", err: errors.New("boom")})
	holder.Put(&fakeShard{id: "s2", points: []vecquery.ScoredPoint{{ID: "p1"}}})

	d := NewDispatcher()
	batch := &BatchRequest{Requests: []*vecquery.ShardQueryRequest{{Limit: 1}}}
	_, err := d.FanOut(context.Background(), holder, Selector{Mode: SelectAll}, batch, 0)
	require.Error(t, err)
}

func TestFanOut_NoShardsReturnsEmpty(t *testing.T) {
	holder := NewHolder()
	d := NewDispatcher()
	batch := &BatchRequest{Requests: []*vecquery.ShardQueryRequest{{Limit: 1}}}
	res, err := d.FanOut(context.Background(), holder, Selector{Mode: SelectAll}, batch, 0)
	require.NoError(t, err)
	require.Empty(t, res.ShardIDs)
}

func TestFanOut_UnknownShardIDErrors(t *testing.T) {
	holder := NewHolder()
	d := NewDispatcher()
	batch := &BatchRequest{Requests: []*vecquery.ShardQueryRequest{{Limit: 1}}}
	_, err := d.FanOut(context.Background(), holder, Selector{Mode: SelectByShardID, ShardIDs: []string{"missing"}}, batch, 0)
	require.Error(t, err)
}

func TestFanOut_SetsByShardIDOnBatch(t *testing.T) {
	holder := NewHolder()
	holder.Put(&fakeShard{id: "s1"})
	d := NewDispatcher()
	batch := &BatchRequest{Requests: []*vecquery.ShardQueryRequest{{Limit: 1}}}
	_, err := d.FanOut(context.Background(), holder, Selector{Mode: SelectByShardID, ShardIDs: []string{"s1"}}, batch, 0)
	require.NoError(t, err)
	require.True(t, batch.ByShardID)
}

func TestFanOut_RespectsTimeout(t *testing.T) {
	holder := NewHolder()
	holder.Put(&slowShard{id: "slow"})
	d := NewDispatcher()
	batch := &BatchRequest{Requests: []*vecquery.ShardQueryRequest{{Limit: 1}}}
	_, err := d.FanOut(context.Background(), holder, Selector{Mode: SelectAll}, batch, 5*time.Millisecond)
	require.Error(t, err)
}

type slowShard struct{ id string }

func (s *slowShard) ID() string             { return s.id }
func (s *slowShard) Key() (ShardKey, bool)  { return "", false }
func (s *slowShard) Query(ctx context.Context, batch *BatchRequest) ([][]vecquery.ShardIntermediateResult, error) {
	select {
	case <-time.After(time.Second):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
