package sim

import "github.com/me/vmbroker/pkg/model"

// pending is an event waiting for its delivery time.
type pending struct {
	ev  model.Event
	seq uint64
}

// eventQueue is a min-heap ordered by delivery time, then by the order in
// which events were scheduled.
type eventQueue []pending

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	ti, tj := q[i].ev.At(), q[j].ev.At()
	if ti != tj {
		return ti < tj
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(pending)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
