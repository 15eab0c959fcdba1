package vecquery

import (
	"fmt"
	"sort"
)

// DefaultRRFConstant is the reciprocal rank fusion constant k used when a
// caller does not supply one. 60 is the value in common use (and the
// spec's own "typical value"); it is not otherwise load-bearing.
const DefaultRRFConstant = 60

// Fuse turns a merged ShardQueryResponse into the single ranked list for
// one query. If req.Query is a FusionQuery, the intermediate lists are
// combined by the named fusion method; otherwise resp must contain
// exactly one intermediate list, which is returned as-is.
//
// rrfK<=0 selects DefaultRRFConstant.
func Fuse(req *ShardQueryRequest, resp ShardQueryResponse, rrfK int) ([]ScoredPoint, error) {
	fq, isFusion := req.Query.(FusionQuery)
	if !isFusion {
		if len(resp) != 1 {
			return nil, ErrExpectedSingleResponse
		}
		return resp[0], nil
	}

	switch fq.Method {
	case RrfFusion, "":
		return reciprocalRankFusion(resp, rrfK), nil
	default:
		return nil, fmt.Errorf("vecquery: unsupported fusion method %q", fq.Method)
	}
}

// reciprocalRankFusion combines lists by summing, per point id, 1/(k+r)
// over every list in which the point appears at 1-based rank r. The
// result carries the aggregated score, not any original score, and is
// sorted descending by that score; ties break by ascending point id.
func reciprocalRankFusion(lists ShardQueryResponse, k int) []ScoredPoint {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64)
	first := make(map[string]ScoredPoint)
	var ids []string

	for _, list := range lists {
		for rank, p := range list {
			if _, ok := scores[p.ID]; !ok {
				ids = append(ids, p.ID)
				first[p.ID] = p
			}
			scores[p.ID] += 1.0 / float64(k+rank+1)
		}
	}

	out := make([]ScoredPoint, 0, len(ids))
	for _, id := range ids {
		pt := first[id]
		pt.Score = scores[id]
		out = append(out, pt)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Paginate applies skip(offset).take(limit) to points. A negative offset
// is treated as 0; a negative limit means "no limit".
func Paginate(points []ScoredPoint, offset, limit int) []ScoredPoint {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(points) {
		return []ScoredPoint{}
	}
	end := len(points)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return points[offset:end]
}
