package resq

import "uvm/biscuit/src/hashtable"

/// node is one entry of the FIFO chain, one per resident virtual page.
type node struct {
	vaddr      int
	prev, next *node
}

/// Resq_t is the per-process resident-page FIFO queue (component 4.3). It
/// tracks which virtual pages are currently backed by a frame, in the order
/// they became resident, so the fault handler can pick the oldest page to
/// evict once the process is at its MAX_RESIDENT cap. A page can also leave
/// the queue out of FIFO order — shrink() unmaps pages directly, and those
/// need to be pulled out of the middle of the chain — so lookups are backed
/// by a hashtable from vaddr to its node instead of a linear scan, the same
/// "vaddr -> queue index" trick used to avoid the cyclic ownership problem
/// between a PTE and its queue entry.
type Resq_t struct {
	head, tail *node
	idx        *hashtable.Hashtable_t
	len        int
	cap        int
}

/// New builds an empty resident-page queue capped at max entries.
func New(max int) *Resq_t {
	return &Resq_t{
		idx: hashtable.MkHash(64),
		cap: max,
	}
}

/// Len reports the number of resident pages currently tracked.
func (q *Resq_t) Len() int {
	return q.len
}

/// Cap reports the configured MAX_RESIDENT ceiling.
func (q *Resq_t) Cap() int {
	return q.cap
}

/// Full reports whether the queue is at its cap, meaning a fault that wants
/// to bring in another page must evict the head first.
func (q *Resq_t) Full() bool {
	return q.len >= q.cap
}

/// Record appends vaddr to the tail as newly resident. It panics if vaddr
/// is already tracked — callers must Remove before re-Recording the same
/// address, which would otherwise silently corrupt the index.
func (q *Resq_t) Record(vaddr int) {
	if _, ok := q.idx.Get(vaddr); ok {
		panic("resq: vaddr already resident")
	}
	n := &node{vaddr: vaddr}
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		n.prev = q.tail
		q.tail.next = n
		q.tail = n
	}
	q.idx.Set(vaddr, n)
	q.len++
}

/// EvictOldest removes and returns the head of the queue.
func (q *Resq_t) EvictOldest() (int, bool) {
	if q.head == nil {
		return 0, false
	}
	vaddr := q.head.vaddr
	q.unlink(q.head)
	return vaddr, true
}

/// Remove drops vaddr from wherever it sits in the chain. It reports
/// whether vaddr was tracked at all.
func (q *Resq_t) Remove(vaddr int) bool {
	v, ok := q.idx.Get(vaddr)
	if !ok {
		return false
	}
	q.unlink(v.(*node))
	return true
}

/// Each visits every tracked vaddr in FIFO order, oldest first.
func (q *Resq_t) Each(f func(vaddr int)) {
	for n := q.head; n != nil; n = n.next {
		f(n.vaddr)
	}
}

func (q *Resq_t) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}
	n.prev, n.next = nil, nil
	q.idx.Del(n.vaddr)
	q.len--
}
