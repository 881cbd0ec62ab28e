package proc

import (
	"testing"

	"uvm/biscuit/src/mem"
)

func TestGrowOnlyReservesRange(t *testing.T) {
	frames := mem.NewPhysmem(16)
	p := mkProcess(t, "grow", frames, 8)

	if err := p.Grow(2 * mem.PGSIZE); err != 0 {
		t.Fatalf("grow: %v", err)
	}
	if p.Size != 2*mem.PGSIZE {
		t.Fatalf("size = %d, want %d", p.Size, 2*mem.PGSIZE)
	}
	if _, ok := p.AS.Present(0); ok {
		t.Fatal("grow should not eagerly back any page with a frame")
	}
	if p.Resident.Len() != 0 {
		t.Fatalf("resident len = %d, want 0 before any page is touched", p.Resident.Len())
	}
}

func TestGrowRejectsStackGuardCollision(t *testing.T) {
	frames := mem.NewPhysmem(64)
	p := mkProcess(t, "collide", frames, 64)
	p.StackSize = mem.PGSIZE // pretend the stack already occupies one page

	n := int(USERTOP) // an absurdly large growth request
	if err := p.Grow(n); err == 0 {
		t.Fatal("expected grow colliding with the stack guard gap to fail")
	}
	if p.Size != 0 {
		t.Fatalf("failed grow should not change size, got %d", p.Size)
	}
}

func TestShrinkSkipsNeverTouchedPages(t *testing.T) {
	frames := mem.NewPhysmem(16)
	p := mkProcess(t, "shrink-untouched", frames, 8)
	if err := p.Grow(3 * mem.PGSIZE); err != 0 {
		t.Fatalf("grow: %v", err)
	}
	before := frames.Free()

	// no page was ever faulted in, so shrink has nothing to release
	if err := p.Shrink(2 * mem.PGSIZE); err != 0 {
		t.Fatalf("shrink: %v", err)
	}
	if p.Size != mem.PGSIZE {
		t.Fatalf("size after shrink = %d, want %d", p.Size, mem.PGSIZE)
	}
	if frames.Free() != before {
		t.Fatalf("free frames = %d, want unchanged %d", frames.Free(), before)
	}
}

func TestShrinkReleasesResidentFrames(t *testing.T) {
	frames := mem.NewPhysmem(16)
	p := mkProcess(t, "shrink", frames, 8)
	if err := p.Grow(4 * mem.PGSIZE); err != 0 {
		t.Fatalf("grow: %v", err)
	}
	for _, va := range []uintptr{mem.PGSIZE, 2 * mem.PGSIZE, 3 * mem.PGSIZE} {
		if err := p.Fault(va, true); err != 0 {
			t.Fatalf("fault at %#x: %v", va, err)
		}
	}
	before := frames.Free()

	if err := p.Shrink(2 * mem.PGSIZE); err != 0 {
		t.Fatalf("shrink: %v", err)
	}
	if p.Size != 2*mem.PGSIZE {
		t.Fatalf("size after shrink = %d, want %d", p.Size, 2*mem.PGSIZE)
	}
	if frames.Free() != before+2 {
		t.Fatalf("free frames = %d, want %d", frames.Free(), before+2)
	}
	if p.Resident.Len() != 1 {
		t.Fatalf("resident queue len = %d, want 1", p.Resident.Len())
	}
}
