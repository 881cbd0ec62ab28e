package resq

import "testing"

func TestFIFOOrder(t *testing.T) {
	q := New(3)
	q.Record(0x1000)
	q.Record(0x2000)
	q.Record(0x3000)

	if !q.Full() {
		t.Fatal("expected queue to be full at cap")
	}
	got, ok := q.EvictOldest()
	if !ok || got != 0x1000 {
		t.Fatalf("evictoldest = %v, %v; want 0x1000, true", got, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
}

func TestRemoveFromMiddle(t *testing.T) {
	q := New(4)
	q.Record(0x1000)
	q.Record(0x2000)
	q.Record(0x3000)

	if !q.Remove(0x2000) {
		t.Fatal("expected remove of tracked middle entry to succeed")
	}
	if q.Remove(0x2000) {
		t.Fatal("second remove of same vaddr should report not found")
	}

	first, _ := q.EvictOldest()
	second, _ := q.EvictOldest()
	if first != 0x1000 || second != 0x3000 {
		t.Fatalf("fifo order after removal = %v, %v; want 0x1000, 0x3000", first, second)
	}
}

func TestRecordDuplicatePanics(t *testing.T) {
	q := New(4)
	q.Record(0x1000)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic recording a duplicate vaddr")
		}
	}()
	q.Record(0x1000)
}

func TestEmptyQueueEvict(t *testing.T) {
	q := New(2)
	if _, ok := q.EvictOldest(); ok {
		t.Fatal("expected false evicting from empty queue")
	}
}
