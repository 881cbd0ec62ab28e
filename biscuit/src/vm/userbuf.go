package vm

import (
	"uvm/biscuit/src/defs"
)

/// CopyOut writes src into the user address space starting at uva, crossing
/// page boundaries as needed. Every touched page must already be resident
/// and writable — callers that might be writing into a lazily-allocated or
/// swapped-out region are expected to have run the fault handler first,
/// exactly as the original copyout assumed a faulted-in destination.
func CopyOut(as *AS_t, uva uintptr, src []byte) defs.Err_t {
	as.Lock()
	defer as.Unlock()

	for len(src) > 0 {
		page := pground(uva)
		off := uva - page
		frame, ok := as.Present(page)
		if !ok {
			return -defs.EFAULT
		}
		dst := as.Frames.Dmap(frame)
		n := copy(dst[off:], src)
		src = src[n:]
		uva += uintptr(n)
	}
	return 0
}

/// CopyIn reads len(dst) bytes from the user address space starting at uva.
func CopyIn(as *AS_t, uva uintptr, dst []byte) defs.Err_t {
	as.Lock()
	defer as.Unlock()

	for len(dst) > 0 {
		page := pground(uva)
		off := uva - page
		frame, ok := as.Present(page)
		if !ok {
			return -defs.EFAULT
		}
		src := as.Frames.Dmap(frame)
		n := copy(dst, src[off:])
		dst = dst[n:]
		uva += uintptr(n)
	}
	return 0
}
