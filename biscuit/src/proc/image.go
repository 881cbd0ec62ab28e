package proc

import (
	"uvm/biscuit/src/defs"
	"uvm/biscuit/src/mem"
	"uvm/biscuit/src/util"
)

func roundupPages(n int) int {
	return util.Roundup(n, mem.PGSIZE)
}

// guard reports the highest heap address Size may grow to without
// colliding with the one-page gap kept below the stack.
func (p *Process_t) guard() int {
	return int(USERTOP) - p.StackSize - mem.PGSIZE
}

/// Grow extends the heap by n bytes (rounded up to a whole number of
/// pages). No frame is allocated yet: Grow only reserves the address range
/// and checks it doesn't collide with the stack's guard gap. Each page
/// becomes backed lazily, the first time a fault touches it, which is what
/// lets a process declare a large heap without paying for pages it never
/// writes. The only way this can fail is the guard-gap check, so there is
/// nothing to roll back on error — the process's size is simply left
/// unchanged.
func (p *Process_t) Grow(n int) defs.Err_t {
	if n <= 0 {
		return 0
	}
	newsz := p.Size + roundupPages(n)
	if newsz > p.guard() {
		return -defs.ENOMEM
	}
	p.Size = newsz
	return 0
}

/// Shrink releases n bytes (rounded up to a whole number of pages) off the
/// top of the heap. Each released page is either resident (remove it from
/// the queue and release its frame), paged out (release its swap slot), or
/// was never touched at all (a lazily-allocated page that was never
/// faulted in) — which is simply skipped, since there's nothing backing it
/// to release.
func (p *Process_t) Shrink(n int) defs.Err_t {
	if n <= 0 {
		return 0
	}
	shrinkBy := roundupPages(n)
	if shrinkBy > p.Size {
		return -defs.EINVAL
	}
	newsz := p.Size - shrinkBy

	for va := newsz; va < p.Size; va += mem.PGSIZE {
		old, backed := p.AS.Unmap(uintptr(va))
		if !backed {
			continue
		}
		switch {
		case old&mem.PTE_P != 0:
			p.Resident.Remove(va)
			p.Frames.Refdown(old & mem.PTE_ADDR)
		case old&mem.PTE_PAGED_OUT != 0:
			slot := slotOf(old)
			p.Swap.Free(slot)
		}
	}
	p.Size = newsz
	return 0
}
