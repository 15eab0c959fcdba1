package vecquery

import "errors"

// Errors reported by the intermediate merger and fusion stage. These are
// programming-error / invariant-violation classes (see §7 of the design):
// they indicate shards disagreeing with each other or with the request
// shape, never a user input problem.
var (
	// ErrIntermediateCountMismatch is returned when a shard reports a
	// different number of intermediate responses than the request expects.
	ErrIntermediateCountMismatch = errors.New("vecquery: shard returned unexpected number of intermediate responses")

	// ErrOrderMismatch is returned when shards disagree on the Order tag
	// for the same intermediate response.
	ErrOrderMismatch = errors.New("vecquery: shards disagree on order for intermediate response")

	// ErrExpectedSingleResponse is returned by Fuse when the root query is
	// not a fusion query but the merged response does not have exactly
	// one intermediate list.
	ErrExpectedSingleResponse = errors.New("vecquery: query response was expected to have one list of results")
)
