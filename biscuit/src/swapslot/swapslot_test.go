package swapslot

import (
	"path/filepath"
	"testing"

	"uvm/biscuit/src/mem"
	"uvm/biscuit/src/swapfile"
)

func mkTable(t *testing.T, nslots int) *Table_t {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swap")
	sf, err := swapfile.Create(path)
	if err != nil {
		t.Fatalf("create swapfile: %v", err)
	}
	t.Cleanup(func() { sf.Close() })
	return New(sf, nslots)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	tbl := mkTable(t, 2)

	s1, err := tbl.Alloc()
	if err != 0 {
		t.Fatalf("alloc 1: %v", err)
	}
	s2, err := tbl.Alloc()
	if err != 0 {
		t.Fatalf("alloc 2: %v", err)
	}
	if s1 == s2 {
		t.Fatal("allocated the same slot twice")
	}
	if _, err := tbl.Alloc(); err == 0 {
		t.Fatal("expected ENOSPC once table is full")
	}

	tbl.Free(s1)
	if _, err := tbl.Alloc(); err != 0 {
		t.Fatal("expected alloc to succeed after a free")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	tbl := mkTable(t, 1)
	s, err := tbl.Alloc()
	if err != 0 {
		t.Fatalf("alloc: %v", err)
	}

	out := make([]byte, mem.PGSIZE)
	for i := range out {
		out[i] = byte(i)
	}
	if err := tbl.WriteOut(s, out); err != 0 {
		t.Fatalf("writeout: %v", err)
	}

	in := make([]byte, mem.PGSIZE)
	if err := tbl.ReadIn(s, in); err != 0 {
		t.Fatalf("readin: %v", err)
	}
	for i := range out {
		if out[i] != in[i] {
			t.Fatalf("byte %d: got %d, want %d", i, in[i], out[i])
		}
	}
}

func TestDoubleFreePanics(t *testing.T) {
	tbl := mkTable(t, 1)
	s, _ := tbl.Alloc()
	tbl.Free(s)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	tbl.Free(s)
}
