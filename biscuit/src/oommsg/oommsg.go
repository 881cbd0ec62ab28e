// Package oommsg defines the message the frame allocator sends when it
// runs out of physical frames.
package oommsg

// Oommsg_t is sent on a Physmem_t's OomCh when an allocation request can't
// be satisfied. The send is non-blocking, and the allocator does not read
// Resume or retry the failed allocation: the allocation that triggered the
// message has already failed by the time a receiver sees it.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}
