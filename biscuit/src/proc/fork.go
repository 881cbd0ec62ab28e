package proc

import (
	"uvm/biscuit/src/defs"
	"uvm/biscuit/src/mem"
)

/// Fork is the fork/copy engine: it builds a child process sharing
/// the parent's resident frames copy-on-write and duplicating, rather than
/// sharing, the contents of any page currently paged out. Sharing a single
/// swap slot between parent and child would leave both of them racing to
/// free or overwrite the same slot the instant either one faults it back
/// in; giving the child its own copy of the data in its own slot avoids
/// that hazard entirely, at the cost of one extra swap read per paged-out
/// page at fork time.
func (parent *Process_t) Fork(childCfg Config) (*Process_t, defs.Err_t) {
	child, err := New(parent.Frames, childCfg)
	if err != nil {
		return nil, -defs.ENOMEM
	}
	child.Size = parent.Size
	child.StackSize = parent.StackSize

	var ferr defs.Err_t
	parent.AS.CloneInto(child.AS, func(va uintptr, parentPTE *mem.Pa_t) mem.Pa_t {
		switch {
		case *parentPTE&mem.PTE_P != 0:
			frame := *parentPTE & mem.PTE_ADDR
			parent.Frames.Refup(frame)
			*parentPTE &^= mem.PTE_W
			return *parentPTE

		case *parentPTE&mem.PTE_PAGED_OUT != 0:
			oldSlot := slotOf(*parentPTE)
			buf := make([]byte, mem.PGSIZE)
			if rerr := parent.Swap.ReadIn(oldSlot, buf); rerr != 0 {
				ferr = rerr
				return *parentPTE
			}
			newSlot, aerr := child.Swap.Alloc()
			if aerr != 0 {
				ferr = aerr
				return *parentPTE
			}
			if werr := child.Swap.WriteOut(newSlot, buf); werr != 0 {
				ferr = werr
				return *parentPTE
			}
			perm := *parentPTE & (mem.PTE_W | mem.PTE_U)
			return (mem.Pa_t(newSlot) << mem.PGSHIFT) | perm | mem.PTE_PAGED_OUT

		default:
			return *parentPTE
		}
	})

	if ferr != 0 {
		child.Destroy()
		return nil, ferr
	}

	parent.Resident.Each(func(vaddr int) {
		child.Resident.Record(vaddr)
	})

	return child, 0
}
