package proc

import (
	"uvm/biscuit/src/defs"
	"uvm/biscuit/src/mem"
	"uvm/biscuit/src/util"
	"uvm/biscuit/src/vm"
)

/// Segment is one piece of a program image to install: Data gets copied to
/// virtual address Vaddr, which must be page-aligned and at or above the
/// first page (page 0 stays unmapped so null dereferences fault).
type Segment struct {
	Vaddr int
	Data  []byte
}

/// ExecResult carries what a caller needs to resume the process after a
/// successful install: the initial stack pointer, below the pushed argv.
type ExecResult struct {
	StackPointer uintptr
}

/// ExecInstall is the exec install: it replaces a process's entire
/// memory image with a new program, atomically. The new image — address
/// space, resident queue, swap table and swap file — is built up entirely
/// in a staging process first; only once every segment and the initial
/// stack are installed without error does the live process's state get
/// replaced with the staged one. If anything fails partway through, the
/// staging process (and everything it allocated) is torn down and the
/// caller's original process is left completely untouched, mirroring the
/// original exec's save-then-restore-on-failure behavior without needing
/// to hand-unwind individual fields.
func (p *Process_t) ExecInstall(cfg Config, segs []Segment, argv [][]byte) (ExecResult, defs.Err_t) {
	staging, err := New(p.Frames, cfg)
	if err != nil {
		return ExecResult{}, -defs.ENOMEM
	}

	for _, seg := range segs {
		if seg.Vaddr%mem.PGSIZE != 0 || seg.Vaddr < mem.PGSIZE {
			staging.Destroy()
			return ExecResult{}, -defs.EINVAL
		}
		end := seg.Vaddr + len(seg.Data)
		if e := staging.Grow(end - staging.Size); e != 0 {
			staging.Destroy()
			return ExecResult{}, e
		}
		// Program segments are loaded eagerly, unlike a plain heap grow:
		// every page has real file contents to place, so there's nothing
		// to defer to a first-touch fault.
		mapEnd := seg.Vaddr + roundupPages(len(seg.Data))
		for va := seg.Vaddr; va < mapEnd; va += mem.PGSIZE {
			if _, ok := staging.AS.Present(uintptr(va)); ok {
				continue
			}
			if e := staging.lazyAlloc(uintptr(va)); e != 0 {
				staging.Destroy()
				return ExecResult{}, e
			}
		}
		if e := vm.CopyOut(staging.AS, uintptr(seg.Vaddr), seg.Data); e != 0 {
			staging.Destroy()
			return ExecResult{}, e
		}
	}

	res, e := staging.installStack(argv)
	if e != 0 {
		staging.Destroy()
		return ExecResult{}, e
	}

	old := *p
	*p = *staging
	old.Destroy()

	return res, 0
}

// installStack maps the single initial stack page and pushes argv onto it
// as a NUL-terminated-string table followed by a pointer array, the layout
// the original exec built by hand with copyout calls.
func (p *Process_t) installStack(argv [][]byte) (ExecResult, defs.Err_t) {
	stackBase := USERTOP - uintptr(mem.PGSIZE)
	// With StackSize still zero, stackGuard() is exactly stackBase, so this
	// fault takes the stack-growth path and installs the process's first
	// stack page the same way any later growth would.
	if e := p.Fault(stackBase, true); e != 0 {
		return ExecResult{}, e
	}

	sp := USERTOP
	ptrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := append(append([]byte{}, argv[i]...), 0)
		sp -= uintptr(len(s))
		sp &^= 0x7
		if sp < stackBase {
			return ExecResult{}, -defs.ENOMEM
		}
		if e := vm.CopyOut(p.AS, sp, s); e != 0 {
			return ExecResult{}, e
		}
		ptrs[i] = sp
	}

	sp -= uintptr(len(ptrs)+1) * 8
	sp &^= 0x7
	if sp < stackBase {
		return ExecResult{}, -defs.ENOMEM
	}
	for i, pv := range ptrs {
		var buf [8]byte
		util.Writen(buf[:], 8, 0, int(pv))
		if e := vm.CopyOut(p.AS, sp+uintptr(i*8), buf[:]); e != 0 {
			return ExecResult{}, e
		}
	}
	var zero [8]byte
	if e := vm.CopyOut(p.AS, sp+uintptr(len(ptrs)*8), zero[:]); e != 0 {
		return ExecResult{}, e
	}

	return ExecResult{StackPointer: sp}, 0
}
