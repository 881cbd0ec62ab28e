package proc

import (
	"uvm/biscuit/src/defs"
	"uvm/biscuit/src/mem"
	"uvm/biscuit/src/swapslot"
	"uvm/biscuit/src/util"
)

func slotOf(pte mem.Pa_t) swapslot.Slot_t {
	return swapslot.Slot_t(uint64(pte&mem.PTE_ADDR) >> mem.PGSHIFT)
}

func pageOf(va uintptr) uintptr {
	return util.Rounddown(va, uintptr(mem.PGSIZE))
}

/// Fault is the page-fault handler: it dispatches on the current
/// state of the PTE at va and whether the access was a write, exactly
/// following the original handler's precedence — paged-out pages are
/// swapped in first regardless of access type, then absent pages are
/// classified as a null dereference, a stack-growth request, a lazy heap
/// allocation, or an invalid access, and present pages are either a
/// copy-on-write break or a kernel/invariant violation.
func (p *Process_t) Fault(va uintptr, isWrite bool) defs.Err_t {
	p.AS.EnterFault()
	defer p.AS.ExitFault()

	page := pageOf(va)

	if slot, ok := p.AS.PagedOut(page); ok {
		return p.swapIn(page, slot)
	}

	if _, ok := p.AS.Present(page); !ok {
		if va < uintptr(mem.PGSIZE) {
			return -defs.EFAULT
		}
		if page == p.stackGuard() {
			return p.growStack()
		}
		if int(page) < p.Size {
			return p.lazyAlloc(page)
		}
		return -defs.EFAULT
	}

	if !isWrite {
		panic("fault: read fault on a present page")
	}
	if p.AS.Writable(page) {
		panic("fault: write fault on an already-writable page")
	}
	return p.cowBreak(page)
}

func (p *Process_t) stackGuard() uintptr {
	return USERTOP - uintptr(p.StackSize) - uintptr(mem.PGSIZE)
}

func (p *Process_t) lazyAlloc(page uintptr) defs.Err_t {
	if err := p.ensureRoom(); err != 0 {
		return err
	}
	_, pa, ok := p.Frames.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	p.AS.Map(page, pa, mem.PTE_W|mem.PTE_U)
	p.Resident.Record(int(page))
	return 0
}

func (p *Process_t) growStack() defs.Err_t {
	if p.stackGrowing {
		panic("fault: reentrant stack growth")
	}
	p.stackGrowing = true
	defer func() { p.stackGrowing = false }()

	if int(USERTOP)-p.StackSize-mem.PGSIZE < p.Size+mem.PGSIZE {
		return -defs.ENOMEM
	}
	if err := p.ensureRoom(); err != 0 {
		return err
	}
	_, pa, ok := p.Frames.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	va := p.stackGuard()
	p.AS.Map(va, pa, mem.PTE_W|mem.PTE_U)
	p.Resident.Record(int(va))
	p.StackSize += mem.PGSIZE
	return 0
}

func (p *Process_t) cowBreak(page uintptr) defs.Err_t {
	pa, ok := p.AS.Present(page)
	if !ok {
		panic("cow: page unexpectedly absent")
	}
	if p.Frames.Refcnt(pa) == 1 {
		p.AS.SetWritable(page, true)
		return 0
	}
	newpg, newpa, ok := p.Frames.AllocRaw()
	if !ok {
		return -defs.ENOMEM
	}
	copy(newpg, p.Frames.Dmap(pa))
	p.AS.Unmap(page)
	p.AS.Map(page, newpa, mem.PTE_W|mem.PTE_U)
	p.Frames.Refdown(pa)
	return 0
}

func (p *Process_t) swapIn(page uintptr, slot uint64) defs.Err_t {
	perm := p.AS.Perm(page)
	if err := p.ensureRoom(); err != 0 {
		return err
	}
	_, pa, ok := p.Frames.AllocRaw()
	if !ok {
		return -defs.ENOMEM
	}
	s := swapslot.Slot_t(slot)
	if err := p.Swap.ReadIn(s, p.Frames.Dmap(pa)); err != 0 {
		p.Frames.Refdown(pa)
		return err
	}
	p.AS.Unmap(page)
	p.AS.Map(page, pa, perm)
	p.Swap.Free(s)
	p.Resident.Record(int(page))
	return 0
}

// ensureRoom makes space in the resident queue for one more page, evicting
// and swapping out the oldest resident page if the process is at its cap.
// Swap-exempt processes are never capped.
func (p *Process_t) ensureRoom() defs.Err_t {
	if p.SwapExempt || !p.Resident.Full() {
		return 0
	}
	return p.swapOutOldest()
}

func (p *Process_t) swapOutOldest() defs.Err_t {
	vaddr, ok := p.Resident.EvictOldest()
	if !ok {
		panic("resq: full but has no oldest entry")
	}
	uva := uintptr(vaddr)
	pa, present := p.AS.Present(uva)
	if !present {
		panic("resq: tracked vaddr is not actually present")
	}

	slot, err := p.Swap.Alloc()
	if err != 0 {
		p.Resident.Record(vaddr)
		return err
	}
	if err := p.Swap.WriteOut(slot, p.Frames.Dmap(pa)); err != 0 {
		p.Swap.Free(slot)
		p.Resident.Record(vaddr)
		return err
	}

	perm := p.AS.Perm(uva)
	p.AS.Unmap(uva)
	p.AS.MapSwapped(uva, uint64(slot), perm)
	p.Frames.Refdown(pa)
	return 0
}
