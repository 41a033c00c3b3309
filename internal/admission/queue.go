package admission

import (
	"container/heap"

	"quantbot-go/internal/trade"
)

type queued struct {
	cand trade.Candidate
	seq  uint64
}

// candidateHeap is a max-heap on quality score; ties break by arrival order.
type candidateHeap []queued

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].cand.Quality != h[j].cand.Quality {
		return h[i].cand.Quality > h[j].cand.Quality
	}
	return h[i].seq < h[j].seq
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// queue wraps the heap with a cleaner API and an optional size bound.
type queue struct {
	heap  candidateHeap
	bound int
}

func newQueue(bound int) *queue {
	q := &queue{bound: bound}
	heap.Init(&q.heap)
	return q
}

func (q *queue) push(item queued) bool {
	if q.bound > 0 && q.heap.Len() >= q.bound {
		return false
	}
	heap.Push(&q.heap, item)
	return true
}

func (q *queue) pop() (queued, bool) {
	if q.heap.Len() == 0 {
		return queued{}, false
	}
	return heap.Pop(&q.heap).(queued), true
}

func (q *queue) len() int { return q.heap.Len() }
