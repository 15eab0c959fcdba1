// Package vecquery implements the cross-shard query execution core of a
// distributed vector search engine: fanning a batch of queries out to
// shards, merging per-shard ranked lists into a single global order, and
// fusing multiple ranked lists together with reciprocal rank fusion.
//
// The package is split the way zoekt splits searching from shard
// management: this package holds the pure, allocation-conscious merge and
// fusion algorithms (no I/O, no locking), while the shards, coordinator,
// rpcshard and properties packages own concurrency, networking and disk.
package vecquery
