package mem

import (
	"sync"
	"sync/atomic"

	"uvm/biscuit/src/oommsg"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// PTE_P marks a page as present (resident).
const PTE_P Pa_t = 1 << 0

/// PTE_W marks a page writable.
const PTE_W Pa_t = 1 << 1

/// PTE_U marks a page user-accessible.
const PTE_U Pa_t = 1 << 2

/// PTE_PAGED_OUT marks a page whose contents live in the swap file rather
/// than in a frame. Mutually exclusive with PTE_P: a PTE is either resident
/// (PTE_P set, frame bits valid) or paged out (PTE_PAGED_OUT set, the
/// address bits hold a swap slot index shifted left by PGSHIFT instead of a
/// frame address), never both.
const PTE_PAGED_OUT Pa_t = 1 << 9

/// PTE_ADDR extracts the frame (or, for a paged-out PTE, slot) bits of a PTE.
const PTE_ADDR Pa_t = PGMASK

/// Pa_t represents a physical frame address: a frame number shifted left by
/// PGSHIFT, the same convention the hardware PTE format uses.
type Pa_t uintptr

func pg2pgn(p_pg Pa_t) uint32 {
	return uint32(p_pg >> PGSHIFT)
}

/// Physpg_t describes the bookkeeping for a single physical frame.
type Physpg_t struct {
	Refcnt int32
	// index into Pgs of the next page on the free list, or ^uint32(0)
	nexti uint32
}

/// Physmem_t is the frame allocator and refcount table (component 4.1). It
/// owns a flat byte arena that stands in for physical memory — there is no
/// real hardware to map pages onto in this module, so Dmap just slices the
/// arena instead of installing a direct map in the MMU. Allocation,
/// refcounting and the free-list linking are otherwise the same technique
/// the original frame allocator used: a singly-linked free list threaded
/// through the Pgs bookkeeping array, guarded by one mutex.
type Physmem_t struct {
	sync.Mutex
	arena   []byte
	Pgs     []Physpg_t
	freei   uint32
	freelen int32

	// OomCh, when non-nil, is notified when Alloc fails to find a free
	// frame. Nil by default so tests that don't care about OOM signaling
	// don't need a receiver goroutine.
	OomCh chan<- oommsg.Oommsg_t
}

/// NewPhysmem allocates a frame allocator backed by nframes frames. Real
/// kernels size this from what the bootloader reports; since we simulate
/// physical memory, the caller picks the size directly (tests use small
/// values to exercise OutOfMemory without needing gigabytes of arena).
func NewPhysmem(nframes int) *Physmem_t {
	phys := &Physmem_t{}
	phys.arena = make([]byte, nframes*PGSIZE)
	phys.Pgs = make([]Physpg_t, nframes)
	for i := range phys.Pgs {
		phys.Pgs[i].nexti = uint32(i + 1)
	}
	if nframes > 0 {
		phys.Pgs[nframes-1].nexti = ^uint32(0)
	}
	phys.freei = 0
	phys.freelen = int32(nframes)
	return phys
}

func (phys *Physmem_t) idx(p_pg Pa_t) uint32 {
	return pg2pgn(p_pg)
}

/// Refaddr returns the refcount pointer for the given frame.
func (phys *Physmem_t) Refaddr(p_pg Pa_t) *int32 {
	return &phys.Pgs[phys.idx(p_pg)].Refcnt
}

/// Refcnt returns the current reference count of a frame.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	phys.Lock()
	defer phys.Unlock()
	return int(atomic.LoadInt32(phys.Refaddr(p_pg)))
}

/// Refup increments the reference count of a frame.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	phys.Lock()
	defer phys.Unlock()
	c := atomic.AddInt32(phys.Refaddr(p_pg), 1)
	if c <= 1 {
		panic("refup: frame was free")
	}
}

// returns true iff the frame's refcount dropped to zero
func (phys *Physmem_t) refdec(p_pg Pa_t) bool {
	c := atomic.AddInt32(phys.Refaddr(p_pg), -1)
	if c < 0 {
		panic("refdown: negative refcount")
	}
	return c == 0
}

/// Refdown decrements the reference count of a frame, returning it to the
/// free list and zeroing its bookkeeping when the count reaches zero. It
/// reports whether the frame was freed.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	phys.Lock()
	defer phys.Unlock()

	if !phys.refdec(p_pg) {
		return false
	}
	idx := phys.idx(p_pg)
	phys.Pgs[idx].nexti = phys.freei
	phys.freei = idx
	phys.freelen++
	return true
}

func (phys *Physmem_t) alloc() (Pa_t, bool) {
	phys.Lock()
	defer phys.Unlock()

	if phys.freei == ^uint32(0) {
		if phys.OomCh != nil {
			resume := make(chan bool, 1)
			select {
			case phys.OomCh <- oommsg.Oommsg_t{Need: 1, Resume: resume}:
			default:
			}
		}
		return 0, false
	}
	idx := phys.freei
	phys.freei = phys.Pgs[idx].nexti
	phys.freelen--
	if phys.Pgs[idx].Refcnt != 0 {
		panic("alloc: free frame has nonzero refcount")
	}
	phys.Pgs[idx].Refcnt = 1
	return Pa_t(idx) << PGSHIFT, true
}

/// Alloc reserves a frame with refcount 1 and zeroes its contents.
func (phys *Physmem_t) Alloc() ([]byte, Pa_t, bool) {
	p_pg, ok := phys.alloc()
	if !ok {
		return nil, 0, false
	}
	pg := phys.Dmap(p_pg)
	for i := range pg {
		pg[i] = 0
	}
	return pg, p_pg, true
}

/// AllocRaw reserves a frame with refcount 1 without zeroing it, for callers
/// about to overwrite the whole frame anyway (e.g. swap-in).
func (phys *Physmem_t) AllocRaw() ([]byte, Pa_t, bool) {
	p_pg, ok := phys.alloc()
	if !ok {
		return nil, 0, false
	}
	return phys.Dmap(p_pg), p_pg, true
}

/// Dmap returns the byte slice backing the given frame. Named after the
/// hardware direct map it simulates: on real hardware this would be a
/// pointer into a virtual region that maps all of physical memory; here the
/// arena already is addressable Go memory, so this is a plain slice.
func (phys *Physmem_t) Dmap(p Pa_t) []byte {
	off := int(p)
	return phys.arena[off : off+PGSIZE]
}

/// Free reports the number of frames currently on the free list.
func (phys *Physmem_t) Free() int {
	phys.Lock()
	defer phys.Unlock()
	return int(phys.freelen)
}

/// Total reports the frame allocator's fixed capacity.
func (phys *Physmem_t) Total() int {
	return len(phys.Pgs)
}
