package jitc

import (
	"github.com/gowasm/eeivm/pkg/asmx86"
	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

func isLoadStoreOp(op wasm.Op) bool {
	return op >= wasm.OpI32Load && op <= wasm.OpI64Store32
}

// loadShape returns the number of bytes a load opcode touches, whether it
// sign-extends its result, and whether the result is 64-bit.
func loadShape(op wasm.Op) (bytes int, signed bool, is64 bool) {
	switch op {
	case wasm.OpI32Load, wasm.OpF32Load:
		return 4, false, false
	case wasm.OpI64Load, wasm.OpF64Load:
		return 8, false, true
	case wasm.OpI32Load8S:
		return 1, true, false
	case wasm.OpI32Load8U:
		return 1, false, false
	case wasm.OpI32Load16S:
		return 2, true, false
	case wasm.OpI32Load16U:
		return 2, false, false
	case wasm.OpI64Load8S:
		return 1, true, true
	case wasm.OpI64Load8U:
		return 1, false, true
	case wasm.OpI64Load16S:
		return 2, true, true
	case wasm.OpI64Load16U:
		return 2, false, true
	case wasm.OpI64Load32S:
		return 4, true, true
	case wasm.OpI64Load32U:
		return 4, false, true
	}
	return 0, false, false
}

func storeBytes(op wasm.Op) int {
	switch op {
	case wasm.OpI32Store, wasm.OpF32Store, wasm.OpI64Store32:
		return 4
	case wasm.OpI64Store, wasm.OpF64Store:
		return 8
	case wasm.OpI32Store8, wasm.OpI64Store8:
		return 1
	case wasm.OpI32Store16, wasm.OpI64Store16:
		return 2
	}
	return 0
}

// emitAddress pops the i32 address operand, adds the static offset, and
// leaves the effective *byte* address (memory base + addr) in dst,
// trapping to StatusInvalidMemoryAccess if [addr, addr+size) would run
// past the end of linear memory. Wasm addresses are unsigned 32-bit, but
// addr+offset is computed with 64-bit arithmetic first so a large offset
// can't wrap around and defeat the bounds check the way 32-bit overflow
// would.
// emitAddress leaves dst untouched by any register a caller may already
// have popped a value into (regScratch/regScratch4 only), since a store's
// value operand is popped before its address is computed.
func (w *funcWriter) emitAddress(instr *wasm.Instr, size int, dst asmx86.Reg) {
	a := w.asm
	w.popGPR(dst)
	// The slot holds the i32 address sign-extended; recover its true
	// unsigned 32-bit value before adding the (also unsigned) static
	// offset, so a "negative-looking" i32 address is treated as the
	// large unsigned offset it actually names. Both are widened to 64
	// bits first so the addition itself can never wrap and defeat the
	// bounds check below.
	a.MovRegImm64(regScratch4, 0xFFFFFFFF)
	a.AndRegReg(dst, regScratch4)
	a.MovRegImm64(regScratch, uint64(instr.Mem.Offset)) // zero-extended, unlike an imm32 add
	a.AddRegReg(dst, regScratch)

	// end = addr + size; trap unless end <= MemLen (reloaded fresh here
	// since memory.grow may change it between accesses, and it isn't
	// worth a fifth pinned register for a check made once per access).
	a.MovRegReg(regScratch, dst)
	a.AddRegImm32(regScratch, int32(size))
	a.MovRegMem64(regScratch4, regState, stateMemLen)
	a.CmpRegReg(regScratch, regScratch4)
	okPatch := a.Offset() + 2
	a.JbeNear(0)
	w.emitTrap(errorsx.StatusInvalidMemoryAccess)
	a.PatchInt32(okPatch, int32(a.Offset()-(okPatch+4)))

	a.AddRegReg(dst, regMemBase)
}

func (w *funcWriter) emitMemOp(instr *wasm.Instr) error {
	if instr.Op <= wasm.OpI64Load32U {
		return w.emitLoad(instr)
	}
	return w.emitStore(instr)
}

func (w *funcWriter) emitLoad(instr *wasm.Instr) error {
	bytes, signed, is64 := loadShape(instr.Op)
	a := w.asm
	addrReg := regScratch3
	w.emitAddress(instr, bytes, addrReg)

	if instr.Op == wasm.OpF32Load {
		x := asmx86.XMM0
		a.MovssLoad(x, addrReg, 0)
		w.pushSS(x)
		return nil
	}
	if instr.Op == wasm.OpF64Load {
		x := asmx86.XMM0
		a.MovsdLoad(x, addrReg, 0)
		w.pushSD(x)
		return nil
	}

	dst := regScratch
	switch bytes {
	case 1:
		if signed {
			a.MovRegMem8Signed(dst, addrReg, 0)
		} else {
			a.MovRegMem8(dst, addrReg, 0)
		}
	case 2:
		if signed {
			a.MovRegMem16Signed(dst, addrReg, 0)
		} else {
			a.MovRegMem16(dst, addrReg, 0)
		}
	case 4:
		if signed {
			a.MovRegMem32Signed(dst, addrReg, 0)
		} else if is64 {
			a.MovRegMem32(dst, addrReg, 0)
		} else {
			a.MovRegMem32Signed(dst, addrReg, 0) // i32.load: full width, sign-extend to keep the slot invariant
		}
	case 8:
		a.MovRegMem64(dst, addrReg, 0)
	}
	w.pushGPR(dst)
	return nil
}

func (w *funcWriter) emitStore(instr *wasm.Instr) error {
	bytes := storeBytes(instr.Op)
	a := w.asm

	if instr.Op == wasm.OpF32Store {
		x := asmx86.XMM0
		w.popSS(x)
		addrReg := regScratch3
		w.emitAddress(instr, bytes, addrReg)
		a.MovssStore(addrReg, 0, x)
		return nil
	}
	if instr.Op == wasm.OpF64Store {
		x := asmx86.XMM0
		w.popSD(x)
		addrReg := regScratch3
		w.emitAddress(instr, bytes, addrReg)
		a.MovsdStore(addrReg, 0, x)
		return nil
	}

	valReg := regScratch2
	w.popGPR(valReg)
	addrReg := regScratch3
	w.emitAddress(instr, bytes, addrReg)
	switch bytes {
	case 1:
		a.MovMem8Reg(addrReg, 0, valReg)
	case 2:
		a.MovMem16Reg(addrReg, 0, valReg)
	case 4:
		a.MovMem32Reg(addrReg, 0, valReg)
	case 8:
		a.MovMemReg64(addrReg, 0, valReg)
	}
	return nil
}

// emitMemorySize/emitMemoryGrow exit to Go: memory.grow may reallocate
// the backing slice (invalidating regMemBase for every other live
// invocation on this call stack, not just this frame), so both must be
// handled by the executor rather than inline, mirroring why a host call
// is also always a call-boundary exit.
// emitMemorySize reserves a result slot and tells the executor where to
// write the current page count; the reserved slot is exactly this
// instruction's pushed result, so nothing needs reloading after resume.
func (w *funcWriter) emitMemorySize() {
	a := w.asm
	wordIdx := w.push() / 8
	a.MovRegImm64(regScratch, uint64(wordIdx))
	a.MovMemReg64(regState, stateResultBase, regScratch)
	a.MovRegImm64(regScratch, 1)
	a.MovMemReg64(regState, stateResultCnt, regScratch)
	a.MovRegImm64(regScratch, uint64(InstrMemorySizeMarker))
	a.MovMemReg64(regState, stateCallTarget, regScratch)
	w.emitResumableExit(ExitMemoryGrow)
}

// emitMemoryGrow leaves the delta-pages argument in place on the operand
// stack and tells the executor to overwrite that same slot with its
// result (the previous page count, or -1 on failure), so net stack height
// is unchanged: one value popped conceptually, one pushed, same slot.
func (w *funcWriter) emitMemoryGrow() {
	a := w.asm
	wordIdx := w.body.NumLocals + w.height - 1 // frame word index of the delta operand
	a.MovRegImm64(regScratch, uint64(wordIdx))
	a.MovMemReg64(regState, stateArgBase, regScratch)
	a.MovMemReg64(regState, stateResultBase, regScratch)
	a.MovRegImm64(regScratch, 1)
	a.MovMemReg64(regState, stateArgCount, regScratch)
	a.MovMemReg64(regState, stateResultCnt, regScratch)
	a.MovRegImm64(regScratch, uint64(InstrMemoryGrowMarker))
	a.MovMemReg64(regState, stateCallTarget, regScratch)
	w.emitResumableExit(ExitMemoryGrow)
}

// InstrMemorySizeMarker/InstrMemoryGrowMarker are sentinel CallTarget
// values distinguishing the two ExitMemoryGrow requests from each other;
// both are far outside any real function index range. Exported since
// pkg/executor's ExitMemoryGrow handler switches on them directly.
const (
	InstrMemorySizeMarker = ^uint64(0)
	InstrMemoryGrowMarker = ^uint64(0) - 1
)
