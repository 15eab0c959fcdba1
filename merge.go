package vecquery

import "container/heap"

// Iterator is a lazy source of ranked points. Implementations must return
// points already in the iterator's own total order; Merge, Unique and
// Take compose without looking back.
type Iterator interface {
	// Next returns the next point, or ok=false once exhausted.
	Next() (ScoredPoint, bool)
}

// mergeEntry is one heap slot: the current head of one of the input
// lists, plus enough bookkeeping to advance that list once popped.
type mergeEntry struct {
	point ScoredPoint
	list  int
}

type mergeHeap struct {
	entries []mergeEntry
	order   Order
}

func (h *mergeHeap) Len() int { return len(h.entries) }
func (h *mergeHeap) Less(i, j int) bool {
	return Less(h.entries[i].point, h.entries[j].point, h.order)
}
func (h *mergeHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *mergeHeap) Push(x any)    { h.entries = append(h.entries, x.(mergeEntry)) }
func (h *mergeHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}

// kWayMerge is a lazy k-way merge over already-sorted lists, all sorted
// under the same Order. It never materializes more of the inputs than it
// is asked for via Next.
type kWayMerge struct {
	lists []([]ScoredPoint)
	next  []int // next unread index per list
	h     *mergeHeap
}

// Merge returns an Iterator that visits every point across lists in the
// total order defined by order, merging k-way via a binary heap rather
// than pairwise concatenation.
func Merge(lists [][]ScoredPoint, order Order) Iterator {
	m := &kWayMerge{
		lists: lists,
		next:  make([]int, len(lists)),
		h:     &mergeHeap{order: order, entries: make([]mergeEntry, 0, len(lists))},
	}
	for i, l := range lists {
		if len(l) > 0 {
			m.h.entries = append(m.h.entries, mergeEntry{point: l[0], list: i})
			m.next[i] = 1
		}
	}
	heap.Init(m.h)
	return m
}

func (m *kWayMerge) Next() (ScoredPoint, bool) {
	if m.h.Len() == 0 {
		return ScoredPoint{}, false
	}
	top := heap.Pop(m.h).(mergeEntry)
	if n := m.next[top.list]; n < len(m.lists[top.list]) {
		heap.Push(m.h, mergeEntry{point: m.lists[top.list][n], list: top.list})
		m.next[top.list] = n + 1
	}
	return top.point, true
}

// uniqueIter drops points whose id it has already produced, keeping the
// first (best-ranked, since the upstream iterator is ordered) occurrence.
type uniqueIter struct {
	inner Iterator
	seen  map[string]struct{}
}

// Unique wraps it, filtering out points with a previously-seen id.
func Unique(it Iterator) Iterator {
	return &uniqueIter{inner: it, seen: make(map[string]struct{})}
}

func (u *uniqueIter) Next() (ScoredPoint, bool) {
	for {
		p, ok := u.inner.Next()
		if !ok {
			return ScoredPoint{}, false
		}
		if _, dup := u.seen[p.ID]; dup {
			continue
		}
		u.seen[p.ID] = struct{}{}
		return p, true
	}
}

// Take drains at most n points from it. n<=0 yields an empty, non-nil
// slice.
func Take(it Iterator, n int) []ScoredPoint {
	out := make([]ScoredPoint, 0, max(n, 0))
	for i := 0; i < n; i++ {
		p, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}
