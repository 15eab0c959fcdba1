// Package shards owns the shard-holder registry and the batched
// scatter-gather fan-out driver: the concurrency layer this query core
// sits on top of. It deliberately knows nothing about merging or fusion
// (that lives in the root vecquery package) — only about reaching
// shards, stamping shard identity, and failing fast.
package shards

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dreamware/vecquery"
)

// ShardKey identifies a shard explicitly, for collections sharded by a
// user-visible key rather than an opaque internal id.
type ShardKey = string

// Shard is one participant a query can be dispatched to.
type Shard interface {
	// ID is the shard's internal identifier, used for error messages and
	// to impose a deterministic dispatch order.
	ID() string

	// Key returns the shard's explicit shard key, if the collection is
	// sharded by key rather than solely by internal id.
	Key() (ShardKey, bool)

	// Query answers a batch of queries sharing one execution context.
	// The returned slice has one entry per request in batch.Requests, in
	// the same order; each entry is that request's per-intermediate raw
	// results.
	Query(ctx context.Context, batch *BatchRequest) ([][]vecquery.ShardIntermediateResult, error)
}

// ReadConsistency is an opaque descriptor forwarded to shards unchanged;
// its semantics belong to the replication layer, out of scope here.
type ReadConsistency struct {
	Level  string
	Factor int
}

// SelectorMode chooses how ShardHolder.Select picks shards.
type SelectorMode int

const (
	// SelectAll dispatches to every shard currently registered.
	SelectAll SelectorMode = iota
	// SelectByShardID dispatches only to the named shards.
	SelectByShardID
)

// Selector picks the shards a batch is dispatched to.
type Selector struct {
	Mode     SelectorMode
	ShardIDs []string
}

// Equal reports whether two selectors pick the same shards. Selector
// embeds a slice and so is not comparable with ==; callers that need to
// group requests by selector (the batch query coordinator) must use
// Equal instead.
func (s Selector) Equal(o Selector) bool {
	if s.Mode != o.Mode || len(s.ShardIDs) != len(o.ShardIDs) {
		return false
	}
	for i := range s.ShardIDs {
		if s.ShardIDs[i] != o.ShardIDs[i] {
			return false
		}
	}
	return true
}

// BatchRequest is the shared, immutable batch dispatched to every
// selected shard. It is passed by reference to every concurrent shard
// call; nothing in this package clones it.
type BatchRequest struct {
	Requests        []*vecquery.ShardQueryRequest
	ReadConsistency *ReadConsistency

	// ByShardID is set by FanOut before dispatch: true when the caller
	// selected shards explicitly by id, which affects how a shard
	// applies internal read-consistency rules. Callers do not set this
	// themselves.
	ByShardID bool
}

// ShardHolder resolves a Selector to a concrete, ordered list of shards.
type ShardHolder interface {
	Select(sel Selector) ([]Shard, error)
}

// Holder is the in-memory ShardHolder most callers use: a registry
// guarded by a RWMutex, read-locked only long enough to copy a snapshot.
// The lock is never held across a shard await — Select returns before
// any shard is contacted.
type Holder struct {
	mu     sync.RWMutex
	shards map[string]Shard
}

// NewHolder returns an empty Holder.
func NewHolder() *Holder {
	return &Holder{shards: make(map[string]Shard)}
}

// Put registers or replaces a shard.
func (h *Holder) Put(s Shard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shards[s.ID()] = s
}

// Remove unregisters a shard by id. No-op if absent.
func (h *Holder) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.shards, id)
}

// Select implements ShardHolder.
func (h *Holder) Select(sel Selector) ([]Shard, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sel.Mode == SelectByShardID {
		out := make([]Shard, 0, len(sel.ShardIDs))
		for _, id := range sel.ShardIDs {
			s, ok := h.shards[id]
			if !ok {
				return nil, fmt.Errorf("shards: unknown shard id %q", id)
			}
			out = append(out, s)
		}
		return out, nil
	}

	out := make([]Shard, 0, len(h.shards))
	for _, s := range h.shards {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}
