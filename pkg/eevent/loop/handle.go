package loop

import (
	"container/heap"
	"time"
)

// Handle is a scheduled callback. It is returned by CallSoon, CallLater,
// and CallAt so the callback can be cancelled before it runs.
type Handle struct {
	fn        func()
	label     string
	when      time.Time
	seq       uint64
	index     int
	cancelled bool
}

// Cancel prevents the callback from running. Cancelling a callback that
// already ran, or cancelling twice, does nothing.
func (h *Handle) Cancel() {
	h.cancelled = true
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	return h.cancelled
}

// When returns the scheduled time of a timer handle, or the zero time for
// a CallSoon handle.
func (h *Handle) When() time.Time {
	return h.when
}

// timerHeap orders timer handles by deadline, then by scheduling order.
type timerHeap []*Handle

var _ heap.Interface = (*timerHeap)(nil)

func (th timerHeap) Len() int { return len(th) }

func (th timerHeap) Less(i, j int) bool {
	if th[i].when.Equal(th[j].when) {
		return th[i].seq < th[j].seq
	}
	return th[i].when.Before(th[j].when)
}

func (th timerHeap) Swap(i, j int) {
	th[i], th[j] = th[j], th[i]
	th[i].index = i
	th[j].index = j
}

func (th *timerHeap) Push(x any) {
	h := x.(*Handle)
	h.index = len(*th)
	*th = append(*th, h)
}

func (th *timerHeap) Pop() any {
	old := *th
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*th = old[:n-1]
	return h
}

// next returns the earliest live timer, discarding cancelled ones.
func (th *timerHeap) next() *Handle {
	for th.Len() > 0 {
		h := (*th)[0]
		if !h.cancelled {
			return h
		}
		heap.Pop(th)
	}
	return nil
}
