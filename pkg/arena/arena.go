//go:build linux && amd64

// Package arena implements the code arena: an
// append-only region that is writable while code is being emitted into it
// and becomes read+execute (no longer writable) once sealed. It is a generalization of the
// teacher's always-RWX ExecutableMemory (pkg/pvm/jit/execmem.go) into the
// start/alloc/reclaim/end_code protocol the engine needs, enforcing W^X via
// mprotect instead of allocating pages RWX for the life of the process.
package arena

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// DefaultSize matches the teacher's DefaultCodeSize.
	DefaultSize = 16 * 1024 * 1024
	pageSize    = 4096
)

// segmentState tracks whether a segment is still being written or has been
// sealed executable.
type segmentState int

const (
	segOpen segmentState = iota
	segSealed
)

// SegmentHandle identifies one start_code/end_code emission window.
type SegmentHandle struct {
	base  int
	state segmentState
}

// Arena is a single mmap'd region shared by all functions of one JitModule.
// Only one segment may be open (writable) at a time; the teacher's mutex
// discipline is kept for the same reason: Alloc/Reclaim/EndCode are called
// from a single compilation goroutine but the executable region is read
// concurrently by running invocations once sealed.
type Arena struct {
	mu         sync.Mutex
	buf        []byte
	writeCur   int
	hardEnd    int
	executable bool
}

// New allocates a fresh RW region of the given size (DefaultSize if <= 0).
func New(size int) (*Arena, error) {
	if size <= 0 {
		size = DefaultSize
	}
	size = roundUpPage(size)
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap failed: %w", err)
	}
	return &Arena{buf: buf}, nil
}

func roundUpPage(n int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// BaseAddress returns the address of the first byte of the region.
func (a *Arena) BaseAddress() uintptr {
	if len(a.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.buf[0]))
}

// StartCode records the current write cursor as the base of a new segment.
// The arena must not be sealed (Finalize'd) yet.
func (a *Arena) StartCode() (SegmentHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.executable {
		return SegmentHandle{}, fmt.Errorf("arena: cannot start a segment after Finalize")
	}
	return SegmentHandle{base: a.writeCur, state: segOpen}, nil
}

// Alloc reserves n contiguous bytes within the currently open segment and
// returns a writable slice over them plus the absolute address of the
// first byte. The reservation may overestimate; unused tail bytes are
// returned to the arena with Reclaim.
func (a *Arena) Alloc(n int) (uintptr, []byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.executable {
		return 0, nil, fmt.Errorf("arena: cannot allocate after Finalize")
	}
	if a.writeCur+n > len(a.buf) {
		return 0, nil, fmt.Errorf("arena: out of space: need %d, have %d", n, len(a.buf)-a.writeCur)
	}
	slice := a.buf[a.writeCur : a.writeCur+n]
	addr := a.BaseAddress() + uintptr(a.writeCur)
	a.hardEnd = a.writeCur + n
	a.writeCur += n
	return addr, slice, nil
}

// Reclaim returns n unwritten bytes at the tail of the most recent Alloc to
// the free pool. The caller passes how many trailing bytes
// of its over-allocated reservation went unused.
func (a *Arena) Reclaim(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= 0 {
		return
	}
	a.writeCur = a.hardEnd - n
}

// ReclaimTo rewinds the write cursor to a specific absolute offset,
// equivalent to Reclaim but expressed as a target position rather than a
// byte count. Used by callers that already track the exact offset (the
// common case in pkg/jitc, which knows exactly how many bytes an emitted
// function body occupied).
func (a *Arena) ReclaimTo(offset int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset < a.writeCur {
		a.writeCur = offset
	}
}

// EndCode seals [segmentBase, writeCursor) of the given segment. If
// executable is true the whole arena is transitioned to PROT_READ|PROT_EXEC
// (the arena holds one code region shared by every function, so sealing
// applies to the entire buffer once the module's last function has been
// emitted, matching JitModule's single owned executable region).
func (a *Arena) EndCode(h *SegmentHandle, executable bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h.state == segSealed {
		return fmt.Errorf("arena: segment already sealed")
	}
	h.state = segSealed
	if !executable {
		return nil
	}
	if a.executable {
		return nil
	}
	if err := unix.Mprotect(a.buf, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("arena: mprotect RX failed: %w", err)
	}
	a.executable = true
	return nil
}

// Used returns the number of bytes committed so far.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeCur
}

// Executable reports whether Finalize has sealed the region RX.
func (a *Arena) Executable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executable
}

// Free releases the mmap'd region. Must not be called while any invocation
// might still be executing code inside it.
func (a *Arena) Free() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buf == nil {
		return nil
	}
	err := unix.Munmap(a.buf)
	a.buf = nil
	return err
}

// FunctionEntry computes the absolute address of a byte offset within the
// arena, used by JitModule to build function_entry[i].
func (a *Arena) FunctionEntry(offset int) uintptr {
	return a.BaseAddress() + uintptr(offset)
}
