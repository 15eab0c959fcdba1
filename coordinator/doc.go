// Package coordinator implements the two query entry points described in
// the design: QueryCoordinator (user-facing, resolves vectors, groups by
// shard selector, fans out, merges, fuses and paginates) and
// PeerCoordinator (internal, stops after the merge so a remote caller can
// finish fusion itself).
package coordinator
