package hostbridge

import "github.com/gowasm/eeivm/pkg/errorsx"

// SignalKind reports how an invocation ended when a host callback itself
// caused termination (finish/revert), as opposed to a value the JITted
// code merely returned normally.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalFinish
	SignalRevert
)

// Signal is the result slot `finish`/`revert` populate. The executor
// checks it after the JIT entry point returns, per the outcome mapping in
// its per-invocation driver.
type Signal struct {
	Kind SignalKind
	Data []byte
}

// GasMeter tracks the remaining gas budget. useGas and every metered
// interface call go through Consume so gas exhaustion is observed at a
// single choke point.
type GasMeter struct {
	Left int64
}

// Consume deducts n from the remaining budget. A negative n is rejected as
// argument-out-of-range (the host must never be asked to charge negative
// gas); an insufficient budget clamps Left to 0 and reports out-of-gas.
func (g *GasMeter) Consume(n int64) error {
	if n < 0 {
		return errorsx.New(errorsx.StatusArgumentOutOfRange, "hostbridge: useGas called with negative amount %d", n)
	}
	if n > g.Left {
		g.Left = 0
		return errorsx.New(errorsx.StatusOutOfGas, "hostbridge: gas exhausted")
	}
	g.Left -= n
	return nil
}

// Env is the per-invocation context passed to every host callback: the
// linear memory backing array, the gas meter, the static-mode flag, the
// current call depth and its maximum, and the state pointer opaque to this
// package (the concrete blockchain host state, out of scope here).
type Env struct {
	Memory  []byte
	Gas     *GasMeter
	Signal  *Signal
	Static  bool
	Depth   int
	MaxDepth int
	State   interface{}
}

// CheckStatic returns a static-mode-violation error if a state-mutating
// EEI call is attempted while Static is set, the check every mutating host
// function must perform before touching state.
func (e *Env) CheckStatic() error {
	if e.Static {
		return errorsx.New(errorsx.StatusStaticModeViolation, "hostbridge: state-mutating call under STATIC message flag")
	}
	return nil
}

// Bounds validates that [offset, offset+length) lies within Memory,
// converting the common EEI argument shape (an i32 pointer + an i32
// length) into a slice or an invalid-memory-access error.
func (e *Env) Bounds(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(e.Memory)) {
		return nil, errorsx.New(errorsx.StatusInvalidMemoryAccess, "hostbridge: memory access [%d,%d) out of bounds (size %d)", offset, end, len(e.Memory))
	}
	return e.Memory[offset:end], nil
}
