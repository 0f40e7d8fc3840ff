//go:build !linux || !amd64

// Package arena stub for platforms the JIT does not target. The engine's
// scope is explicitly linux/amd64 only; the interpreter backend
// that would serve other platforms is out of scope for this repository.
package arena

import "fmt"

const DefaultSize = 16 * 1024 * 1024

type SegmentHandle struct{}

type Arena struct{}

func New(size int) (*Arena, error) {
	return nil, fmt.Errorf("arena: JIT code arena is only available on linux/amd64")
}

func (a *Arena) BaseAddress() uintptr                          { return 0 }
func (a *Arena) StartCode() (SegmentHandle, error)              { return SegmentHandle{}, fmt.Errorf("unsupported") }
func (a *Arena) Alloc(n int) (uintptr, []byte, error)           { return 0, nil, fmt.Errorf("unsupported") }
func (a *Arena) Reclaim(n int)                                  {}
func (a *Arena) ReclaimTo(offset int)                           {}
func (a *Arena) EndCode(h *SegmentHandle, executable bool) error { return fmt.Errorf("unsupported") }
func (a *Arena) Used() int                                      { return 0 }
func (a *Arena) Executable() bool                                { return false }
func (a *Arena) Free() error                                     { return nil }
func (a *Arena) FunctionEntry(offset int) uintptr                { return 0 }
