package vecquery

import "fmt"

// MergeIntermediates merges one query's per-shard responses into a single
// ShardQueryResponse, one merged list per intermediate response.
//
// shardResults is indexed [shard][intermediate]; every shard must report
// the same number of intermediates (len(shardResults[s]) ==
// len(req.IntermediateResponseInfo(...))) and, within one intermediate
// index, every shard must agree on Order. Both are internal invariant
// violations if broken, not user-facing errors.
func MergeIntermediates(req *ShardQueryRequest, shardResults [][]ShardIntermediateResult) (ShardQueryResponse, error) {
	limits := req.IntermediateResponseInfo(DefaultRootTake, DefaultPrefetchTake)

	for s, sr := range shardResults {
		if len(sr) != len(limits) {
			return nil, fmt.Errorf("%w: shard %d returned %d, want %d", ErrIntermediateCountMismatch, s, len(sr), len(limits))
		}
	}

	byIntermediate, err := Transpose(shardResults)
	if err != nil {
		return nil, err
	}

	out := make(ShardQueryResponse, len(limits))
	for i, cells := range byIntermediate {
		order := SmallBetter
		if len(cells) > 0 {
			order = cells[0].Order
			for _, c := range cells[1:] {
				if c.Order != order {
					return nil, fmt.Errorf("%w: intermediate %d", ErrOrderMismatch, i)
				}
			}
		}

		lists := make([][]ScoredPoint, len(cells))
		for j, c := range cells {
			lists[j] = c.Points
		}

		out[i] = Take(Unique(Merge(lists, order)), limits[i])
	}
	return out, nil
}
