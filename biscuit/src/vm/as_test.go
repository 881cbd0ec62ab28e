package vm

import (
	"testing"

	"uvm/biscuit/src/mem"
)

func TestMapAndPresent(t *testing.T) {
	frames := mem.NewPhysmem(4)
	as := NewAS(frames)
	_, pa, ok := frames.Alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	as.Map(0x1000, pa, mem.PTE_W|mem.PTE_U)

	got, ok := as.Present(0x1000)
	if !ok || got != pa&mem.PTE_ADDR {
		t.Fatalf("present(0x1000) = %v, %v; want %v, true", got, ok, pa)
	}
	if !as.Writable(0x1000) {
		t.Fatal("expected page to be writable")
	}
}

func TestMapPresentTwicePanics(t *testing.T) {
	frames := mem.NewPhysmem(4)
	as := NewAS(frames)
	_, pa, _ := frames.Alloc()
	as.Map(0x2000, pa, mem.PTE_W|mem.PTE_U)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic mapping an already-present page")
		}
	}()
	as.Map(0x2000, pa, mem.PTE_W|mem.PTE_U)
}

func TestUnmapReleasesTrackingOfFrame(t *testing.T) {
	frames := mem.NewPhysmem(4)
	as := NewAS(frames)
	_, pa, _ := frames.Alloc()
	as.Map(0x3000, pa, mem.PTE_W|mem.PTE_U)

	old, wasBacked := as.Unmap(0x3000)
	if !wasBacked {
		t.Fatal("expected unmap to report a backed page")
	}
	if old&mem.PTE_ADDR != pa {
		t.Fatalf("unmap returned frame %v, want %v", old&mem.PTE_ADDR, pa)
	}
	if _, ok := as.Present(0x3000); ok {
		t.Fatal("page still present after unmap")
	}
}

func TestMapSwappedMutualExclusionWithPresent(t *testing.T) {
	frames := mem.NewPhysmem(4)
	as := NewAS(frames)
	as.MapSwapped(0x4000, 7, mem.PTE_W|mem.PTE_U)

	if _, ok := as.Present(0x4000); ok {
		t.Fatal("paged-out page reported as present")
	}
	slot, ok := as.PagedOut(0x4000)
	if !ok || slot != 7 {
		t.Fatalf("pagedout(0x4000) = %v, %v; want 7, true", slot, ok)
	}
}

func TestClearUserStripsBitOnly(t *testing.T) {
	frames := mem.NewPhysmem(4)
	as := NewAS(frames)
	_, pa, _ := frames.Alloc()
	as.Map(0x5000, pa, mem.PTE_W|mem.PTE_U)

	if !as.ClearUser(0x5000) {
		t.Fatal("clearuser on mapped page should succeed")
	}
	pte, _ := as.Lookup(0x5000)
	if *pte&mem.PTE_U != 0 {
		t.Fatal("user bit still set")
	}
	if *pte&mem.PTE_P == 0 {
		t.Fatal("clearuser should not affect the present bit")
	}
}

func TestDestroyReleasesFrames(t *testing.T) {
	frames := mem.NewPhysmem(2)
	as := NewAS(frames)
	_, pa1, _ := frames.Alloc()
	_, pa2, _ := frames.Alloc()
	as.Map(0x1000, pa1, mem.PTE_W|mem.PTE_U)
	as.Map(0x2000, pa2, mem.PTE_W|mem.PTE_U)

	as.Destroy()

	if frames.Free() != 2 {
		t.Fatalf("free = %d, want 2 after destroy", frames.Free())
	}
}

func TestCloneIntoSharesReadOnly(t *testing.T) {
	frames := mem.NewPhysmem(4)
	parent := NewAS(frames)
	child := NewAS(frames)
	_, pa, _ := frames.Alloc()
	parent.Map(0x1000, pa, mem.PTE_W|mem.PTE_U)

	parent.CloneInto(child, func(va uintptr, parentPTE *mem.Pa_t) mem.Pa_t {
		frames.Refup(*parentPTE & mem.PTE_ADDR)
		*parentPTE &^= mem.PTE_W
		return *parentPTE
	})

	if child.Writable(0x1000) {
		t.Fatal("cloned page should have lost write permission")
	}
	if frames.Refcnt(pa) != 2 {
		t.Fatalf("refcnt = %d, want 2 after sharing", frames.Refcnt(pa))
	}
}
