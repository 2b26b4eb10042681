package core

import "container/heap"

// idHeap is a min-heap of free thread ids, used to answer "smallest free
// id" in O(log n) the way core/queue.go's priorityHeap answers "highest
// priority item" for tasks.
type idHeap []TID

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)         { *h = append(*h, x.(TID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// idAllocator hands out the smallest available thread id in [1, maxTID) and
// recycles ids on termination. maxTID is treated as an exclusive upper
// bound throughout (SPEC_FULL's "REDESIGN FLAG applied" note).
type idAllocator struct {
	free   idHeap
	maxTID TID
}

func newIDAllocator(maxTID TID) *idAllocator {
	a := &idAllocator{maxTID: maxTID}
	a.free = make(idHeap, 0, maxTID)
	for id := TID(1); id < maxTID; id++ {
		a.free = append(a.free, id)
	}
	heap.Init(&a.free)
	return a
}

// allocate returns and removes the smallest free id. ok is false when the
// pool is exhausted.
func (a *idAllocator) allocate() (id TID, ok bool) {
	if len(a.free) == 0 {
		return 0, false
	}
	return heap.Pop(&a.free).(TID), true
}

// release returns id to the pool, restoring the cached-minimum invariant (I5).
func (a *idAllocator) release(id TID) {
	heap.Push(&a.free, id)
}
