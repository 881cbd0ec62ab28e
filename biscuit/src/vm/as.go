package vm

import (
	"sync"

	"uvm/biscuit/src/caller"
	"uvm/biscuit/src/mem"
)

/// PageSize re-exports the frame size for callers that only import vm.
const PageSize = mem.PGSIZE

func pground(va uintptr) uintptr {
	return va &^ uintptr(mem.PGOFFSET)
}

func vpn(va uintptr) uintptr {
	return va >> mem.PGSHIFT
}

/// AS_t is the address-space object (component 4.2): a single process's
/// page table. There is no hardware MMU in this module, so the tree of
/// page-table frames the original implementation walked (pmap_walk over
/// PML4/PDPT/PD/PT) is replaced by a flat map from virtual page number to
/// PTE — the same state machine (PRESENT / WRITABLE / USER / PAGED_OUT,
/// invariant that PRESENT and PAGED_OUT never both hold) without a
/// hardware page-table walker. Per-PTE mutation (Map, Unmap, SetWritable,
/// ...) runs unlocked, matching the single-writer-per-process model: a
/// process's own fault handler and syscalls are the only callers, and they
/// never run concurrently with each other. The embedded mutex is taken by
/// the handful of operations that walk the whole table at once (Destroy,
/// CloneInto) and by CopyOut/CopyIn, where serializing against a
/// concurrent Destroy actually matters.
type AS_t struct {
	sync.Mutex
	pages map[uintptr]*mem.Pa_t

	Frames *mem.Physmem_t

	// pgfltaken records whether this address space is mid-fault, mirroring
	// the original's flag of the same purpose: a second fault on the same
	// address space while one is outstanding indicates reentrancy that
	// should never happen under the single-thread-per-process model.
	pgfltaken bool
}

/// NewAS builds an empty address space over the given frame allocator.
func NewAS(frames *mem.Physmem_t) *AS_t {
	return &AS_t{
		pages:  make(map[uintptr]*mem.Pa_t),
		Frames: frames,
	}
}

/// Walk returns the PTE slot for va, creating the slot (initialized to the
/// zero PTE, i.e. absent) when create is true and none exists yet.
func (as *AS_t) Walk(va uintptr, create bool) (*mem.Pa_t, bool) {
	vp := vpn(va)
	if pte, ok := as.pages[vp]; ok {
		return pte, true
	}
	if !create {
		return nil, false
	}
	pte := new(mem.Pa_t)
	as.pages[vp] = pte
	return pte, true
}

/// Lookup returns the PTE for va without creating one.
func (as *AS_t) Lookup(va uintptr) (*mem.Pa_t, bool) {
	return as.Walk(va, false)
}

/// Map installs frame as the mapping for the page containing va with the
/// given permission bits, marking it present. It panics if va is already
/// mapped present — callers (grow, fault handling) are expected to check
/// first, exactly like the original mapping primitives did.
func (as *AS_t) Map(va uintptr, frame mem.Pa_t, perm mem.Pa_t) {
	pte, _ := as.Walk(va, true)
	if *pte&mem.PTE_P != 0 {
		caller.Callerdump(2)
		panic("map: already present")
	}
	*pte = (frame &^ mem.PGOFFSET) | perm | mem.PTE_P
}

/// MapSwapped installs a PAGED_OUT PTE recording the given swap slot index
/// in the address bits, used when a swap-out leaves a page's backing store
/// in the swap file instead of a frame.
func (as *AS_t) MapSwapped(va uintptr, slot uint64, perm mem.Pa_t) {
	pte, _ := as.Walk(va, true)
	if *pte&(mem.PTE_P|mem.PTE_PAGED_OUT) != 0 {
		caller.Callerdump(2)
		panic("mapswapped: slot already occupied")
	}
	*pte = (mem.Pa_t(slot) << mem.PGSHIFT) | perm | mem.PTE_PAGED_OUT
}

/// Unmap clears the PTE for va entirely (both the present and paged-out
/// cases), returning the PTE's prior value so the caller can release
/// whatever it pointed at (a frame via Frames.Refdown, or a swap slot).
func (as *AS_t) Unmap(va uintptr) (mem.Pa_t, bool) {
	vp := vpn(va)
	pte, ok := as.pages[vp]
	if !ok {
		return 0, false
	}
	old := *pte
	delete(as.pages, vp)
	return old, old&(mem.PTE_P|mem.PTE_PAGED_OUT) != 0
}

/// ClearUser strips the USER bit from an existing PTE, used to carve an
/// inaccessible guard page out of otherwise-mapped space.
func (as *AS_t) ClearUser(va uintptr) bool {
	pte, ok := as.Lookup(va)
	if !ok {
		return false
	}
	*pte &^= mem.PTE_U
	return true
}

/// Present reports whether va is currently backed by a resident frame.
func (as *AS_t) Present(va uintptr) (mem.Pa_t, bool) {
	pte, ok := as.Lookup(va)
	if !ok || *pte&mem.PTE_P == 0 {
		return 0, false
	}
	return *pte & mem.PTE_ADDR, true
}

/// PagedOut reports whether va is currently backed by a swap slot, and
/// which one.
func (as *AS_t) PagedOut(va uintptr) (uint64, bool) {
	pte, ok := as.Lookup(va)
	if !ok || *pte&mem.PTE_PAGED_OUT == 0 {
		return 0, false
	}
	return uint64(*pte&mem.PTE_ADDR) >> mem.PGSHIFT, true
}

/// Writable reports whether the present PTE at va grants write access.
func (as *AS_t) Writable(va uintptr) bool {
	pte, ok := as.Lookup(va)
	return ok && *pte&mem.PTE_W != 0
}

/// SetWritable flips the WRITABLE bit of a present PTE, used by the
/// copy-on-write break path once the frame is privately owned again.
func (as *AS_t) SetWritable(va uintptr, w bool) {
	pte, ok := as.Lookup(va)
	if !ok {
		panic("setwritable: no such mapping")
	}
	if w {
		*pte |= mem.PTE_W
	} else {
		*pte &^= mem.PTE_W
	}
}

/// Destroy releases every resident frame still mapped in this address
/// space. Swap-backed pages are not this object's concern: the swap-slot
/// table that owns them is released by the process tearing this address
/// space down, since AS_t has no reference to it.
func (as *AS_t) Destroy() {
	as.Lock()
	defer as.Unlock()
	for vp, pte := range as.pages {
		if *pte&mem.PTE_P != 0 {
			as.Frames.Refdown(*pte & mem.PTE_ADDR)
		}
		delete(as.pages, vp)
	}
}

/// CloneInto walks the parent's mappings and installs matching entries into
/// child via share, which decides (per entry) what PTE value the child
/// gets and may mutate the parent's own PTE in place (e.g. to strip the
/// writable bit on both sides of a copy-on-write share) and performs any
/// frame refcount adjustment that decision implies. The fork/copy engine in
/// fork.go supplies that policy; AS_t itself only mirrors the table
/// structure.
func (parent *AS_t) CloneInto(child *AS_t, share func(va uintptr, parentPTE *mem.Pa_t) mem.Pa_t) {
	parent.Lock()
	defer parent.Unlock()
	for vp, pte := range parent.pages {
		va := vp << mem.PGSHIFT
		newpte := share(va, pte)
		cp := new(mem.Pa_t)
		*cp = newpte
		child.pages[vp] = cp
	}
}

/// Perm returns the WRITABLE/USER bits of the PTE at va regardless of
/// whether it is currently present or paged out, so callers that need to
/// preserve permission across a swap round trip don't have to special-case
/// which state the page was in.
func (as *AS_t) Perm(va uintptr) mem.Pa_t {
	pte, ok := as.Lookup(va)
	if !ok {
		return 0
	}
	return *pte & (mem.PTE_W | mem.PTE_U)
}

/// EnterFault marks this address space as mid-fault, panicking if a fault
/// is already in progress. Under the single-thread-per-process model a
/// second fault while one is outstanding can only mean a bug in the fault
/// handler re-entering itself.
func (as *AS_t) EnterFault() {
	if as.pgfltaken {
		panic("fault: reentrant page fault")
	}
	as.pgfltaken = true
}

/// ExitFault clears the mid-fault marker set by EnterFault.
func (as *AS_t) ExitFault() {
	as.pgfltaken = false
}
