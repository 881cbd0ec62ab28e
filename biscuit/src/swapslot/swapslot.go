package swapslot

import (
	"uvm/biscuit/src/defs"
	"uvm/biscuit/src/mem"
	"uvm/biscuit/src/swapfile"
)

/// Slot_t names one fixed-size region of the swap file.
type Slot_t uint64

/// Table_t is the per-process swap-slot table (component 4.4): a small,
/// fixed-capacity arena of slots in the process's backing file. Single
/// writer per process, so no lock is needed beyond what the process's own
/// single-threaded model already provides.
//
// The original on-disk layout split slots into a "high" (stack) region and
// a "low" (heap) region addressed directly by virtual address, an encoding
// detail of that particular swap file format rather than a behavior this
// table's callers depend on. Slots here are just a flat, freely assigned
// index into the backing file, which is simpler and preserves every
// testable property (allocate, write out, read in, free).
type Table_t struct {
	file  *swapfile.File_t
	used  []bool
	nfree int
}

/// New builds a swap-slot table with nslots capacity over file.
func New(file *swapfile.File_t, nslots int) *Table_t {
	return &Table_t{
		file:  file,
		used:  make([]bool, nslots),
		nfree: nslots,
	}
}

/// Cap reports the table's fixed slot capacity.
func (t *Table_t) Cap() int {
	return len(t.used)
}

/// Alloc reserves an unused slot, returning -defs.ENOSPC when the table is
/// full.
func (t *Table_t) Alloc() (Slot_t, defs.Err_t) {
	for i, u := range t.used {
		if !u {
			t.used[i] = true
			t.nfree--
			return Slot_t(i), 0
		}
	}
	return 0, -defs.ENOSPC
}

/// Free releases slot back to the table. It panics if the slot was not
/// allocated — an invariant violation, since only the table's own owner
/// ever holds a Slot_t value.
func (t *Table_t) Free(s Slot_t) {
	if !t.used[s] {
		panic("swapslot: double free")
	}
	t.used[s] = false
	t.nfree++
}

func (t *Table_t) offset(s Slot_t) int64 {
	return int64(s) * int64(mem.PGSIZE)
}

/// WriteOut persists page's contents to s's region of the backing file.
func (t *Table_t) WriteOut(s Slot_t, page []byte) defs.Err_t {
	return t.file.WritePage(t.offset(s), page)
}

/// ReadIn loads s's region of the backing file into page.
func (t *Table_t) ReadIn(s Slot_t, page []byte) defs.Err_t {
	return t.file.ReadPage(t.offset(s), page)
}
