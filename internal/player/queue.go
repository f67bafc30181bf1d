// ABOUTME: Lock-free multi-producer single-consumer packet queue
// ABOUTME: Producers never block; only the scheduler loop dequeues
package player

import "sync/atomic"

type node struct {
	next  atomic.Pointer[node]
	entry entry
}

// packetQueue is an intrusive MPSC linked list. push may be called from
// any goroutine, pop only from the scheduler loop.
type packetQueue struct {
	head  atomic.Pointer[node] // most recently pushed
	tail  *node                // consumer-owned stub
	depth atomic.Int64
}

func newPacketQueue() *packetQueue {
	stub := &node{}
	q := &packetQueue{tail: stub}
	q.head.Store(stub)
	return q
}

func (q *packetQueue) push(e entry) {
	n := &node{entry: e}
	prev := q.head.Swap(n)
	prev.next.Store(n)
	q.depth.Add(1)
}

// pop returns false when the queue is empty or a push is still linking in
func (q *packetQueue) pop() (entry, bool) {
	next := q.tail.next.Load()
	if next == nil {
		return entry{}, false
	}
	q.tail = next
	e := next.entry
	next.entry = entry{}
	q.depth.Add(-1)
	return e, true
}

func (q *packetQueue) len() int {
	if d := q.depth.Load(); d > 0 {
		return int(d)
	}
	return 0
}
