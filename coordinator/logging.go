package coordinator

import (
	"time"

	sglog "github.com/sourcegraph/log"
)

// requestIDField names the xid-derived field stamped on every query-batch
// log line so the lines logged for one QueryBatch call can be correlated.
const requestIDField = "request_id"

// DefaultSlowQueryThreshold is the elapsed-time cutoff above which a
// query's merge+fuse+paginate step is logged at Warn instead of Debug.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// SlowQueryLogger is the best-effort diagnostics hook run after each
// query's merge+fuse+paginate step (§4.6 step 4). It receives the
// elapsed duration and the request's filter references and never causes
// a query to fail: a panic inside Log is recovered and dropped, the way
// loggedSearcher's stats logging in zoekt-webserver never affects the
// search result it is describing.
type SlowQueryLogger struct {
	Logger    sglog.Logger
	Threshold time.Duration
}

// Log records one query's timing, tagged with the batch's request id so
// it can be correlated with the other queries of the same batch. A
// zero-value SlowQueryLogger (nil Logger) is a silent no-op.
func (l SlowQueryLogger) Log(requestID string, elapsed time.Duration, filterRefs []string) {
	if l.Logger == nil {
		return
	}
	defer func() { _ = recover() }()

	threshold := l.Threshold
	if threshold <= 0 {
		threshold = DefaultSlowQueryThreshold
	}

	fields := []sglog.Field{
		sglog.String(requestIDField, requestID),
		sglog.Duration("elapsed", elapsed),
		sglog.Int("filter_refs", len(filterRefs)),
	}
	if elapsed > threshold {
		l.Logger.Warn("slow query", fields...)
		return
	}
	l.Logger.Debug("query", fields...)
}
