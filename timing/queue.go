package timing

import (
	"container/heap"
)

type eventQueue interface {
	Push(*ScheduledEvent)
	Pop() *ScheduledEvent
	Len() int
	Peek() *ScheduledEvent
}

// scheduledEventQueue orders events by cycle. Events at the same cycle come
// out in the order they were pushed.
type scheduledEventQueue struct {
	events  scheduledEventHeap
	nextSeq uint64
}

func newScheduledEventQueue() *scheduledEventQueue {
	q := &scheduledEventQueue{}
	q.events = make([]*ScheduledEvent, 0)
	heap.Init(&q.events)

	return q
}

func (q *scheduledEventQueue) Push(evt *ScheduledEvent) {
	evt.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.events, evt)
}

func (q *scheduledEventQueue) Pop() *ScheduledEvent {
	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*ScheduledEvent)
}

func (q *scheduledEventQueue) Len() int {
	return q.events.Len()
}

func (q *scheduledEventQueue) Peek() *ScheduledEvent {
	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

type scheduledEventHeap []*ScheduledEvent

func (h scheduledEventHeap) Len() int { return len(h) }

func (h scheduledEventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	return h[i].seq < h[j].seq
}

func (h scheduledEventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *scheduledEventHeap) Push(x any) {
	evt := x.(*ScheduledEvent)
	*h = append(*h, evt)
}

func (h *scheduledEventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
