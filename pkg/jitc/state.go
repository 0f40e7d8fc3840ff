// Package jitc is the JIT code writer: it lowers a validated
// wasm.CodeBody into a single contiguous run of x86-64 machine code per
// function, generalizing the teacher's per-basic-block compiler
// (pkg/pvm/jit/compiler.go) from "always exit to Go at a block boundary"
// to "exit to Go only at a call boundary". Straight-line control flow
// (block/loop/if/br/br_if/br_table within one function) compiles to real
// native jumps with no Go involvement, exactly like any native compiler;
// execution hands back to the driving Go loop only at a `call`,
// `call_indirect` or host import call, at `memory.size`/`memory.grow`,
// and at the float opcodes evaluated by Go helpers, because only Go can
// safely invoke another Go function (the host callback), grow the logical
// call stack without touching the native one, or reallocate linear memory.
//
// The value stack and locals of every live invocation are not kept on the
// native machine stack at all: they live in an explicit per-invocation
// frame (a flat []uint64-shaped region) addressed through a pinned
// register, precisely so that unwinding all the way back to Go at a call
// boundary and later resuming mid-function loses none of that state. This
// is the same idea as the teacher's State-struct register spill/reload at
// every prologue/epilogue (compiler.go's emitPrologue/emitEpilogue),
// generalized from "13 fixed PVM registers" to "an arbitrarily sized
// per-function operand stack".
package jitc

import "github.com/gowasm/eeivm/pkg/asmx86"

// ExitReason is the value the generated epilogue writes to
// NativeState.ExitReason before every Ret; the executor's driving loop
// switches on it after every call to asmx86-compiled code, mirroring the
// teacher's ExitGo/ExitHalt/ExitPanic/ExitOutOfGas encoding (runtime.go)
// generalized to this engine's outcomes.
type ExitReason uint64

const (
	// ExitReturn: the function ran to completion (fell off the end, or
	// hit `return`); NativeState.ResultBase/ResultCount locate the result
	// words in the frame.
	ExitReturn ExitReason = iota
	// ExitCallInternal: a direct `call` targeting a function defined in
	// this module. CallTarget names the callee by combined-index-space
	// function index; ArgBase/ArgCount describe where its arguments sit
	// in the caller's frame.
	ExitCallInternal
	// ExitCallHost: a `call` targeting an imported function, or one of
	// this package's own float-helper requests riding the same
	// call-boundary exit (see floatHelperMarker). Same argument-passing
	// fields as ExitCallInternal; CallTarget is either the import's
	// combined-index-space function index or a float-helper marker.
	ExitCallHost
	// ExitCallIndirect: `call_indirect`. Unlike ExitCallInternal,
	// CallTarget carries the *table slot* index, not a function index,
	// and TrapStatus (reused) carries the caller's wanted type index;
	// only the executor can resolve the slot against the table's current
	// contents and check the callee's canonical type token, since
	// generated code never sees the table's runtime contents.
	ExitCallIndirect
	// ExitTrap: an opcode itself proved unreachable, an integer divide
	// error, an out-of-range float truncation, an out-of-bounds memory
	// access, or a failed call_indirect check. TrapStatus carries the
	// errorsx.Status to report.
	ExitTrap
	// ExitMemoryGrow: `memory.size` or `memory.grow` (CallTarget is
	// InstrMemorySizeMarker or InstrMemoryGrowMarker), handled entirely in
	// Go since a grow may reallocate the backing slice out from under the
	// pinned memory-base register.
	ExitMemoryGrow
)

// Register roles pinned for the lifetime of every leg of generated code.
// All four are reloaded from NativeState at the top of every entry point
// (function entry and every call-resume point), since nothing survives a
// round trip through Go.
const (
	regState   = asmx86.RDI // NativeState* (System V first argument)
	regFrame   = asmx86.R13 // base of this invocation's locals+operand-stack region
	regMemBase = asmx86.R14 // linear memory base address
	regGlobals = asmx86.R12 // base of the module's globals array (one 8-byte slot each)
	regScratch  = asmx86.RAX
	regScratch2 = asmx86.RCX
	regScratch3 = asmx86.RDX
	regScratch4 = asmx86.R11
)

// Offsets within NativeState, hand-assigned the way the teacher pins
// StateGasOffset/StateRegistersOffset/StateRAMOffset (compiler.go) to a
// fixed layout its generated code addresses directly rather than via
// unsafe.Offsetof, since the struct is small, fixed, and shared between
// this package and pkg/executor by contract.
const (
	stateFramePtr   = 0  // uintptr: regFrame
	stateMemBase    = 8  // uintptr: regMemBase
	stateGlobals    = 16 // uintptr: regGlobals
	stateGasLeft    = 24 // int64, set by the executor before each leg; generated code does not read it
	stateExitReason = 32 // uint64
	stateCallTarget = 40 // uint64: function index for ExitCallInternal/ExitCallHost
	stateArgBase    = 48 // uint64: word offset within the caller's frame of arg 0
	stateArgCount   = 56 // uint64
	stateResumeAddr = 64 // uintptr: where CallJITCode re-enters this leg
	stateTrapStatus = 72 // uint64: errorsx.Status, valid when ExitReason == ExitTrap
	stateResultBase = 80  // uint64: word offset within the frame of the return value(s)
	stateResultCnt  = 88  // uint64
	stateMemLen     = 96  // uint64: current linear memory length in bytes, reloaded by every bounds check
	stateSize       = 104
)

// NativeState is the Go-side mirror of the struct above; pkg/executor
// allocates one per call-stack frame and passes &NativeState.FramePtr's
// address (i.e. the struct's address) as the state argument of
// native.CallJITCode, exactly as the teacher passes &pvm.State.
type NativeState struct {
	FramePtr    uintptr
	MemBase     uintptr
	Globals     uintptr
	GasLeft     int64
	ExitReason  uint64
	CallTarget  uint64
	ArgBase     uint64
	ArgCount    uint64
	ResumeAddr  uintptr
	TrapStatus  uint64
	ResultBase  uint64
	ResultCount uint64
	MemLen      uint64
}
