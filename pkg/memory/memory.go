// Package memory implements Wasm linear memory: a single contiguous,
// growable byte region sized in 64 KiB pages, bounds-checked reads and
// writes, and application of the module's active data segments at
// instantiation.
//
// This generalizes the teacher's paged, access-controlled RAM
// (pkg/ram/ram.go — sparse per-page allocation, three-state
// Inaccessible/Immutable/Mutable permissions, byte-level rollback log for
// PVM's segmented read-only/heap/stack/arguments layout) down to what
// linear memory actually needs: one uniformly read-write region with a
// single growable length, since pkg/jitc addresses it through a single
// pinned base-pointer register and a static byte offset rather than a
// page-table lookup per access. The paged sparse-allocation strategy
// itself doesn't carry over — a JIT that computes `base + offset` inline
// needs a genuinely contiguous backing array, not page objects a fault
// handler stitches together — but the page-granular sizing arithmetic
// (TotalSizeNeededPages) and the "grow in whole pages, zero-fill the new
// pages" discipline both do.
package memory

import "github.com/gowasm/eeivm/pkg/errorsx"

// PageSize is the fixed Wasm page granularity: memory.size/memory.grow
// operate in units of this many bytes.
const PageSize = 1 << 16 // 64 KiB

// Memory is one instance's linear memory.
type Memory struct {
	data    []byte
	maxPages uint32 // 0 means unbounded within the 32-bit address space
}

// New allocates a Memory with the given initial page count and an
// optional maximum (0 = unbounded), mirroring the min/max pair a Wasm
// memory section declares.
func New(initialPages, maxPages uint32) *Memory {
	return &Memory{
		data:     make([]byte, uint64(initialPages)*PageSize),
		maxPages: maxPages,
	}
}

// Bytes returns the backing slice; pkg/executor reads its address into
// NativeState.MemBase (and its length into NativeState.MemLen) before
// every JIT invocation, matching how the teacher's Runtime loads a raw RAM
// pointer into a hardware register at emitPrologueTo (compiler.go).
func (m *Memory) Bytes() []byte { return m.data }

// Pages returns the current size in whole pages.
func (m *Memory) Pages() uint32 { return uint32(len(m.data) / PageSize) }

// Grow appends delta pages of zeroed memory, returning the previous page
// count, or -1 if the growth would exceed the declared maximum (or the
// 65536 pages of the 32-bit address space), the exact contract memory.grow needs
// since Wasm reports failure as a sentinel rather than trapping.
func (m *Memory) Grow(delta uint32) int32 {
	prev := m.Pages()
	next := prev + delta
	if next < prev { // overflow
		return -1
	}
	if m.maxPages != 0 && next > m.maxPages {
		return -1
	}
	if next > 1<<16 { // 65536 pages span the whole 32-bit address space
		return -1
	}
	grown := make([]byte, uint64(next)*PageSize)
	copy(grown, m.data)
	m.data = grown
	return int32(prev)
}

// ApplyDataSegment copies a segment's bytes at its active offset,
// trapping (rather than silently truncating) if the segment would run
// past the current memory size, matching Wasm instantiation's
// data-segment-out-of-bounds failure.
func (m *Memory) ApplyDataSegment(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m.data)) {
		return errorsx.New(errorsx.StatusContractValidationFailure,
			"memory: data segment [%d,%d) exceeds memory size %d", offset, end, len(m.data))
	}
	copy(m.data[offset:end], data)
	return nil
}

// Read returns a bounds-checked view of [offset, offset+length).
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return nil, errorsx.New(errorsx.StatusInvalidMemoryAccess,
			"memory: read [%d,%d) out of bounds (size %d)", offset, end, len(m.data))
	}
	return m.data[offset:end], nil
}

// Write copies src into memory starting at offset, bounds-checked the
// same way Read is.
func (m *Memory) Write(offset uint32, src []byte) error {
	end := uint64(offset) + uint64(len(src))
	if end > uint64(len(m.data)) {
		return errorsx.New(errorsx.StatusInvalidMemoryAccess,
			"memory: write [%d,%d) out of bounds (size %d)", offset, end, len(m.data))
	}
	copy(m.data[offset:end], src)
	return nil
}
