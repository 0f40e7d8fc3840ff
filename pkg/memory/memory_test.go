package memory

import "testing"

func TestNewZeroFilled(t *testing.T) {
	m := New(1, 0)
	if m.Pages() != 1 {
		t.Fatalf("Pages() = %d, want 1", m.Pages())
	}
	if len(m.Bytes()) != PageSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(m.Bytes()), PageSize)
	}
	for _, b := range m.Bytes() {
		if b != 0 {
			t.Fatal("freshly allocated memory is not zero-filled")
		}
	}
}

func TestNewEmpty(t *testing.T) {
	m := New(0, 0)
	if m.Pages() != 0 {
		t.Fatalf("Pages() = %d, want 0", m.Pages())
	}
	if len(m.Bytes()) != 0 {
		t.Fatalf("len(Bytes()) = %d, want 0", len(m.Bytes()))
	}
}

func TestGrowWithinMax(t *testing.T) {
	m := New(1, 3)
	prev := m.Grow(2)
	if prev != 1 {
		t.Fatalf("Grow returned previous = %d, want 1", prev)
	}
	if m.Pages() != 3 {
		t.Fatalf("Pages() after grow = %d, want 3", m.Pages())
	}
}

func TestGrowPastMaxFails(t *testing.T) {
	m := New(1, 2)
	if got := m.Grow(5); got != -1 {
		t.Fatalf("Grow past max = %d, want -1", got)
	}
	if m.Pages() != 1 {
		t.Fatalf("Pages() after failed grow = %d, want unchanged 1", m.Pages())
	}
}

func TestGrowUnbounded(t *testing.T) {
	m := New(0, 0)
	if got := m.Grow(10); got != 0 {
		t.Fatalf("Grow = %d, want 0", got)
	}
	if m.Pages() != 10 {
		t.Fatalf("Pages() = %d, want 10", m.Pages())
	}
}

func TestGrowPreservesExistingData(t *testing.T) {
	m := New(1, 0)
	m.Bytes()[0] = 0xAB
	m.Grow(1)
	if m.Bytes()[0] != 0xAB {
		t.Fatal("Grow did not preserve existing bytes")
	}
}

func TestApplyDataSegment(t *testing.T) {
	m := New(1, 0)
	if err := m.ApplyDataSegment(10, []byte{1, 2, 3}); err != nil {
		t.Fatalf("ApplyDataSegment: %v", err)
	}
	got, err := m.Read(10, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Read after ApplyDataSegment = %v, want [1 2 3]", got)
	}
}

func TestApplyDataSegmentOutOfBoundsFails(t *testing.T) {
	m := New(1, 0)
	if err := m.ApplyDataSegment(PageSize-1, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for a data segment that runs past memory size")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	m := New(1, 0)
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := m.Write(100, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(100, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Read = %v, want %v", got, want)
		}
	}
}

func TestReadOutOfBoundsFails(t *testing.T) {
	m := New(1, 0)
	if _, err := m.Read(PageSize-1, 2); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestWriteOutOfBoundsFails(t *testing.T) {
	m := New(1, 0)
	if err := m.Write(PageSize-1, []byte{1, 2}); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestReadZeroLength(t *testing.T) {
	m := New(0, 0)
	got, err := m.Read(0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Read(0,0) = %v, want empty", got)
	}
}
