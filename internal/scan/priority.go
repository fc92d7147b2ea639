package scan

import (
	"container/heap"
	"context"
)

// sizeHeap orders FileRecords smallest first; equal sizes keep Seq order.
type sizeHeap []FileRecord

func (h sizeHeap) Len() int      { return len(h) }
func (h sizeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h sizeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Size == b.Size {
		return a.Seq < b.Seq
	}
	return a.Size < b.Size
}

func (h *sizeHeap) Push(x any) { *h = append(*h, x.(FileRecord)) }

func (h *sizeHeap) Pop() any {
	last := len(*h) - 1
	rec := (*h)[last]
	*h = (*h)[:last]
	return rec
}

// RunSizePriorityQueue reorders records between the size accumulator and
// the fingerprint workers so the smallest pending file is hashed next.
// Dispatch order never changes which record is first-seen; the Index
// decides that by Seq.
//
// out is closed when in is exhausted and the heap drained, or when ctx is
// cancelled.
func RunSizePriorityQueue(ctx context.Context, in <-chan FileRecord, out chan<- FileRecord) {
	go func() {
		defer close(out)

		var pending sizeHeap
		src := in
		for src != nil || pending.Len() > 0 {
			// A nil channel never becomes ready, which disables the send
			// case while nothing is pending and the receive case once in
			// is closed.
			var dst chan<- FileRecord
			var next FileRecord
			if pending.Len() > 0 {
				dst, next = out, pending[0]
			}

			select {
			case rec, ok := <-src:
				if !ok {
					src = nil
					continue
				}
				heap.Push(&pending, rec)
			case dst <- next:
				heap.Pop(&pending)
			case <-ctx.Done():
				return
			}
		}
	}()
}
