// Package heap provides a small priority queue used by the file-layout
// scraper to walk torrent ids missing a file layout in descending-id
// priority order.
package heap

import (
	"container/heap"
	"errors"
)

// Item is a value with an associated priority. Lower priority pops first.
type Item struct {
	Value    interface{}
	Priority int
}

// ErrEmptyQueue is returned by Pop when the queue has no items.
var ErrEmptyQueue = errors.New("heap: priority queue is empty")

// PriorityQueue is a min-priority queue over Items.
type PriorityQueue struct {
	inner innerHeap
}

// NewPriorityQueue creates a PriorityQueue seeded with items.
func NewPriorityQueue(items ...*Item) *PriorityQueue {
	h := make(innerHeap, len(items))
	copy(h, items)
	heap.Init(&h)
	return &PriorityQueue{inner: h}
}

// Push adds item to the queue.
func (pq *PriorityQueue) Push(item *Item) {
	heap.Push(&pq.inner, item)
}

// Pop removes and returns the lowest-priority item.
func (pq *PriorityQueue) Pop() (*Item, error) {
	if pq.inner.Len() == 0 {
		return nil, ErrEmptyQueue
	}
	return heap.Pop(&pq.inner).(*Item), nil
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int {
	return pq.inner.Len()
}

type innerHeap []*Item

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool { return h[i].Priority < h[j].Priority }

func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *innerHeap) Push(x interface{}) {
	*h = append(*h, x.(*Item))
}

func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
