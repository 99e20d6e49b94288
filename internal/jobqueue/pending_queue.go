package jobqueue

import "container/heap"

// pendingQueue is a set of workUnits ordered by (nextExecutionTime, seq)
// ascending, giving O(log n) insertion/removal and O(1) lookup of the
// earliest element. It is built on container/heap, the same approach the
// teleport example pack's rclone vfscache write-back queue takes for an
// analogous "earliest thing first, with stable tiebreaking" ordering
// problem; no third-party priority-queue library appears anywhere in the
// available dependency pack, so container/heap is used directly rather
// than introduced as an unjustified dependency.
type pendingQueue struct {
	items pendingItems
	seq   int
}

func newPendingQueue() *pendingQueue {
	q := &pendingQueue{items: pendingItems{}}
	heap.Init(&q.items)
	return q
}

// push inserts u into the queue, assigning it a tiebreak sequence number.
func (q *pendingQueue) push(u *workUnit) {
	q.seq++
	u.seq = q.seq
	heap.Push(&q.items, u)
}

// peek returns the earliest unit without removing it, or nil if empty.
func (q *pendingQueue) peek() *workUnit {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// pop removes and returns the earliest unit, or nil if empty.
func (q *pendingQueue) pop() *workUnit {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*workUnit)
}

func (q *pendingQueue) len() int {
	return len(q.items)
}

// pendingItems implements heap.Interface over *workUnit.
type pendingItems []*workUnit

func (p pendingItems) Len() int { return len(p) }

func (p pendingItems) Less(i, j int) bool {
	if p[i].nextExecutionTime.Equal(p[j].nextExecutionTime) {
		return p[i].seq < p[j].seq
	}
	return p[i].nextExecutionTime.Before(p[j].nextExecutionTime)
}

func (p pendingItems) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
	p[i].index = i
	p[j].index = j
}

func (p *pendingItems) Push(x interface{}) {
	u := x.(*workUnit)
	u.index = len(*p)
	*p = append(*p, u)
}

func (p *pendingItems) Pop() interface{} {
	old := *p
	n := len(old)
	u := old[n-1]
	old[n-1] = nil
	u.index = -1
	*p = old[:n-1]
	return u
}
