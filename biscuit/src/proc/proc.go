package proc

import (
	"fmt"

	"uvm/biscuit/src/mem"
	"uvm/biscuit/src/resq"
	"uvm/biscuit/src/swapfile"
	"uvm/biscuit/src/swapslot"
	"uvm/biscuit/src/ustr"
	"uvm/biscuit/src/vm"
)

/// USERTOP is the top of the simulated user address space. The stack
/// occupies the region immediately below it and grows down; the heap
/// occupies the region immediately above the first page and grows up. A
/// one-page guard gap is always kept between them (invariant enforced by
/// Grow in image.go and growStack in fault.go).
const USERTOP uintptr = 0x40000000

/// Process_t is the process memory state: everything the grow/shrink,
/// fork/copy, fault-handling and exec-install operations below share. Each
/// is single-writer per process, so none of its fields need their own lock
/// beyond what the address space, frame allocator and swap-slot table
/// already provide for the state they each own.
type Process_t struct {
	Name ustr.Ustr

	AS       *vm.AS_t
	Frames   *mem.Physmem_t
	Resident *resq.Resq_t
	Swap     *swapslot.Table_t
	SwapFile *swapfile.File_t

	/// Size is the current heap break: valid, grow-managed heap addresses
	/// are [PageSize, Size).
	Size int
	/// StackSize is the current stack extent: the stack occupies
	/// [USERTOP-StackSize, USERTOP).
	StackSize int

	/// SwapExempt marks a process whose resident pages are never forced
	/// out to swap, no matter how large its resident set grows. The
	/// original kernel decided this by comparing the process's name
	/// against the literal strings "init" and "sh" — a fragile check that
	/// breaks the moment either binary is renamed. Here it's instead an
	/// explicit flag the process's creator sets, keeping the exemption
	/// mechanism without hardcoding it to a name string.
	SwapExempt bool

	stackGrowing bool
}

/// Config bundles the parameters needed to create a process's memory
/// state, mirroring the original kernel's per-process swap file and
/// resident-page cap setup at process creation.
type Config struct {
	Name        string
	MaxResident int
	SwapPath    string
	SwapSlots   int
	SwapExempt  bool
}

/// New builds a process's memory state: an empty address space, an empty
/// resident-page queue capped at cfg.MaxResident, and a swap-slot table
/// backed by a fresh file at cfg.SwapPath.
func New(frames *mem.Physmem_t, cfg Config) (*Process_t, error) {
	sf, err := swapfile.Create(cfg.SwapPath)
	if err != nil {
		return nil, fmt.Errorf("proc: create swap file: %w", err)
	}
	return &Process_t{
		Name:       ustr.MkUstrSlice([]byte(cfg.Name)),
		AS:         vm.NewAS(frames),
		Frames:     frames,
		Resident:   resq.New(cfg.MaxResident),
		Swap:       swapslot.New(sf, cfg.SwapSlots),
		SwapFile:   sf,
		SwapExempt: cfg.SwapExempt,
	}, nil
}

/// Destroy releases every frame this process's image holds and deletes its
/// swap file from disk. Resident frames are released through AS_t, which
/// owns the mappings; swapped-out pages have no frame to release — their
/// slot table and backing file are discarded as a unit along with the
/// process.
func (p *Process_t) Destroy() {
	p.AS.Destroy()
	p.SwapFile.Destroy()
}
