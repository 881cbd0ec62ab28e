package mem

import (
	"testing"

	"uvm/biscuit/src/oommsg"
)

func TestAllocZeroesFrame(t *testing.T) {
	phys := NewPhysmem(4)
	pg, pa, ok := phys.Alloc()
	if !ok {
		t.Fatal("alloc failed with free frames available")
	}
	for i, b := range pg {
		if b != 0 {
			t.Fatalf("frame not zeroed at offset %d", i)
		}
	}
	if phys.Refcnt(pa) != 1 {
		t.Fatalf("fresh frame refcount = %d, want 1", phys.Refcnt(pa))
	}
}

func TestRefcountLifecycle(t *testing.T) {
	phys := NewPhysmem(1)
	_, pa, ok := phys.Alloc()
	if !ok {
		t.Fatal("alloc failed")
	}
	phys.Refup(pa)
	if phys.Refcnt(pa) != 2 {
		t.Fatalf("refcnt = %d, want 2", phys.Refcnt(pa))
	}
	if phys.Refdown(pa) {
		t.Fatal("refdown freed frame while refcount > 0")
	}
	if !phys.Refdown(pa) {
		t.Fatal("refdown did not free frame at refcount 0")
	}
	if phys.Free() != 1 {
		t.Fatalf("free count = %d, want 1 after release", phys.Free())
	}
}

func TestAllocExhaustionSignalsOom(t *testing.T) {
	phys := NewPhysmem(1)
	oomCh := make(chan oommsg.Oommsg_t, 1)
	phys.OomCh = oomCh

	if _, _, ok := phys.Alloc(); !ok {
		t.Fatal("first alloc should succeed")
	}
	if _, _, ok := phys.Alloc(); ok {
		t.Fatal("second alloc should fail: no free frames left")
	}
	select {
	case <-oomCh:
	default:
		t.Fatal("expected an OOM notification on exhaustion")
	}
}
