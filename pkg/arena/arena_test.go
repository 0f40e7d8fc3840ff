//go:build linux && amd64

package arena

import (
	"testing"
)

func TestAllocWithinSegment(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Free()

	h, err := a.StartCode()
	if err != nil {
		t.Fatalf("StartCode: %v", err)
	}

	addr, buf, err := a.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr == 0 {
		t.Fatal("Alloc returned nil address")
	}
	buf[0] = 0xC3 // ret
	a.Reclaim(63)

	if err := a.EndCode(&h, true); err != nil {
		t.Fatalf("EndCode: %v", err)
	}
	if !a.Executable() {
		t.Fatal("arena not marked executable after EndCode(true)")
	}
	if entry := a.FunctionEntry(0); entry != a.BaseAddress() {
		t.Fatalf("FunctionEntry(0) = %#x, want base address %#x", entry, a.BaseAddress())
	}
}

func TestEndCodeTwiceFails(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Free()

	h, _ := a.StartCode()
	if _, _, err := a.Alloc(16); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := a.EndCode(&h, false); err != nil {
		t.Fatalf("EndCode: %v", err)
	}
	if err := a.EndCode(&h, false); err == nil {
		t.Fatal("expected error sealing an already-sealed segment")
	}
}

func TestAllocAfterFinalizeFails(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Free()

	h, _ := a.StartCode()
	a.Alloc(16)
	a.EndCode(&h, true)

	if _, _, err := a.Alloc(16); err == nil {
		t.Fatal("expected Alloc to fail once the arena is sealed executable")
	}
}

func TestOutOfSpace(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Free()

	a.StartCode()
	if _, _, err := a.Alloc(1 << 20); err == nil {
		t.Fatal("expected out-of-space error")
	}
}
