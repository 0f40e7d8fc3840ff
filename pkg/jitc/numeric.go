package jitc

import (
	"github.com/gowasm/eeivm/pkg/asmx86"
	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// emitNumericOrMemory handles every opcode emitInstr's switch doesn't
// special-case directly: memory ops, and the ~100 pure numeric opcodes
// (arithmetic/bitwise/shift/comparison/conversion), grounded on the
// teacher's codegen_arith.go/codegen_bits.go/codegen_cmp.go/
// codegen_shift.go split — kept here as one dispatch instead of four
// files since each individual lowering is a handful of lines, unlike the
// teacher's PVM encodings which needed the extra room for immediate-vs-
// register operand variants this stack machine never has (every operand
// is already in a register once popped).
func (w *funcWriter) emitNumericOrMemory(instr *wasm.Instr) error {
	if isLoadStoreOp(instr.Op) {
		return w.emitMemOp(instr)
	}
	if isFloatOp(instr.Op) {
		return w.emitFloatOp(instr)
	}

	switch instr.Op {
	case wasm.OpMemorySize:
		w.emitMemorySize()
		return nil
	case wasm.OpMemoryGrow:
		w.emitMemoryGrow()
		return nil
	}

	a := w.asm
	switch instr.Op {
	case wasm.OpI32Eqz:
		w.popGPR(asmx86.RAX)
		a.CmpRegImm32(asmx86.RAX, 0)
		a.Sete(asmx86.RAX)
		a.MovzxRegReg8(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI64Eqz:
		w.popGPR(asmx86.RAX)
		a.TestRegReg(asmx86.RAX, asmx86.RAX)
		a.Sete(asmx86.RAX)
		a.MovzxRegReg8(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)

	case wasm.OpI32Eq, wasm.OpI32Ne, wasm.OpI32LtS, wasm.OpI32LtU, wasm.OpI32GtS, wasm.OpI32GtU,
		wasm.OpI32LeS, wasm.OpI32LeU, wasm.OpI32GeS, wasm.OpI32GeU,
		wasm.OpI64Eq, wasm.OpI64Ne, wasm.OpI64LtS, wasm.OpI64LtU, wasm.OpI64GtS, wasm.OpI64GtU,
		wasm.OpI64LeS, wasm.OpI64LeU, wasm.OpI64GeS, wasm.OpI64GeU:
		w.emitIntCompare(instr.Op)

	case wasm.OpI32Add:
		w.binop32(func(d, s asmx86.Reg) { a.AddRegReg32(d, s) })
	case wasm.OpI32Sub:
		w.binop32(func(d, s asmx86.Reg) { a.SubRegReg32(d, s) })
	case wasm.OpI32Mul:
		w.binop32(func(d, s asmx86.Reg) { a.IMulRegReg32(d, s) })
	case wasm.OpI32And:
		w.binop(func(d, s asmx86.Reg) { a.AndRegReg(d, s) })
	case wasm.OpI32Or:
		w.binop(func(d, s asmx86.Reg) { a.OrRegReg(d, s) })
	case wasm.OpI32Xor:
		w.binop(func(d, s asmx86.Reg) { a.XorRegReg(d, s) })

	case wasm.OpI64Add:
		w.binop(func(d, s asmx86.Reg) { a.AddRegReg(d, s) })
	case wasm.OpI64Sub:
		w.binop(func(d, s asmx86.Reg) { a.SubRegReg(d, s) })
	case wasm.OpI64Mul:
		w.binop(func(d, s asmx86.Reg) { a.IMulRegReg(d, s) })
	case wasm.OpI64And:
		w.binop(func(d, s asmx86.Reg) { a.AndRegReg(d, s) })
	case wasm.OpI64Or:
		w.binop(func(d, s asmx86.Reg) { a.OrRegReg(d, s) })
	case wasm.OpI64Xor:
		w.binop(func(d, s asmx86.Reg) { a.XorRegReg(d, s) })

	case wasm.OpI32DivS, wasm.OpI32DivU, wasm.OpI32RemS, wasm.OpI32RemU:
		w.emitDivRem32(instr.Op)
	case wasm.OpI64DivS, wasm.OpI64DivU, wasm.OpI64RemS, wasm.OpI64RemU:
		w.emitDivRem64(instr.Op)

	case wasm.OpI32Shl:
		w.shiftop32(func(r asmx86.Reg) { a.ShlRegCL32(r) })
	case wasm.OpI32ShrS:
		w.shiftop32(func(r asmx86.Reg) { a.SarRegCL32(r) })
	case wasm.OpI32ShrU:
		w.shiftop32(func(r asmx86.Reg) { a.ShrRegCL32(r) })
	case wasm.OpI32Rotl:
		w.shiftop32(func(r asmx86.Reg) { a.RolRegCL32(r) })
	case wasm.OpI32Rotr:
		w.shiftop32(func(r asmx86.Reg) { a.RorRegCL32(r) })

	case wasm.OpI64Shl:
		w.shiftop64(func(r asmx86.Reg) { a.ShlRegCL(r) })
	case wasm.OpI64ShrS:
		w.shiftop64(func(r asmx86.Reg) { a.SarRegCL(r) })
	case wasm.OpI64ShrU:
		w.shiftop64(func(r asmx86.Reg) { a.ShrRegCL(r) })
	case wasm.OpI64Rotl:
		w.shiftop64(func(r asmx86.Reg) { a.RolRegCL(r) })
	case wasm.OpI64Rotr:
		w.shiftop64(func(r asmx86.Reg) { a.RorRegCL(r) })

	case wasm.OpI32Clz:
		w.popGPR(asmx86.RAX)
		a.Lzcnt32(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI64Clz:
		w.popGPR(asmx86.RAX)
		a.Lzcnt(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI32Ctz:
		w.popGPR(asmx86.RAX)
		a.Tzcnt32(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI64Ctz:
		w.popGPR(asmx86.RAX)
		a.Tzcnt(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI32Popcnt:
		w.popGPR(asmx86.RAX)
		a.Popcnt32(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI64Popcnt:
		w.popGPR(asmx86.RAX)
		a.Popcnt(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)

	case wasm.OpI32WrapI64:
		// The low 32 bits are already the wrapped value; re-sign-extend
		// them so the result keeps the i32 slot invariant.
		w.popGPR(asmx86.RAX)
		a.MovsxdRegReg(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI64ExtendI32S:
		w.popGPR(asmx86.RAX)
		a.MovsxdRegReg(asmx86.RAX, asmx86.RAX)
		w.pushGPR(asmx86.RAX)
	case wasm.OpI64ExtendI32U:
		// The source i32 is already sign-extended in its slot; mask back
		// down to 32 bits (clearing the sign-extension) to get the
		// correct unsigned 64-bit widening.
		w.popGPR(asmx86.RAX)
		a.MovRegImm64(asmx86.RCX, 0xFFFFFFFF)
		a.AndRegReg(asmx86.RAX, asmx86.RCX)
		w.pushGPR(asmx86.RAX)

	case wasm.OpI32ReinterpretF32, wasm.OpI64ReinterpretF64:
		w.popGPR(asmx86.RAX)
		if instr.Op == wasm.OpI32ReinterpretF32 {
			// An f32 slot's bits are its low 4 bytes only; sign-extend
			// them to keep the i32 slot invariant.
			a.MovsxdRegReg(asmx86.RAX, asmx86.RAX)
		}
		w.pushGPR(asmx86.RAX) // an f64 slot already holds all 64 bits; no change needed

	default:
		return errorsx.New(errorsx.StatusInternalError, "jitc: unsupported opcode 0x%x", uint16(instr.Op))
	}
	return nil
}

func (w *funcWriter) binop(f func(dst, src asmx86.Reg)) {
	w.popGPR(asmx86.RCX)
	w.popGPR(asmx86.RAX)
	f(asmx86.RAX, asmx86.RCX)
	w.pushGPR(asmx86.RAX)
}

// binop32 runs a 32-bit-width arithmetic op (which, per x86-64 semantics,
// zeroes the destination's upper 32 bits) and then re-sign-extends the
// low 32 bits, restoring the invariant every i32 value on the operand
// stack is kept sign-extended to its full 64-bit slot (see emitIntCompare
// for why that invariant is what makes a plain 64-bit CmpRegReg give the
// right answer for both signed and unsigned i32 comparisons).
func (w *funcWriter) binop32(f func(dst, src asmx86.Reg)) {
	w.popGPR(asmx86.RCX)
	w.popGPR(asmx86.RAX)
	f(asmx86.RAX, asmx86.RCX)
	w.asm.MovsxdRegReg(asmx86.RAX, asmx86.RAX)
	w.pushGPR(asmx86.RAX)
}

func (w *funcWriter) shiftop32(f32 func(reg asmx86.Reg)) {
	w.popGPR(asmx86.RCX) // shift amount
	w.popGPR(asmx86.RAX) // value
	f32(asmx86.RAX)
	w.asm.MovsxdRegReg(asmx86.RAX, asmx86.RAX)
	w.pushGPR(asmx86.RAX)
}

func (w *funcWriter) shiftop64(f64 func(reg asmx86.Reg)) {
	w.popGPR(asmx86.RCX) // shift amount
	w.popGPR(asmx86.RAX) // value
	f64(asmx86.RAX)
	w.pushGPR(asmx86.RAX)
}

func (w *funcWriter) emitIntCompare(op wasm.Op) {
	a := w.asm
	w.popGPR(asmx86.RCX)
	w.popGPR(asmx86.RAX)
	a.CmpRegReg(asmx86.RAX, asmx86.RCX)
	switch op {
	case wasm.OpI32Eq, wasm.OpI64Eq:
		a.Sete(asmx86.RAX)
	case wasm.OpI32Ne, wasm.OpI64Ne:
		a.Setne(asmx86.RAX)
	case wasm.OpI32LtS, wasm.OpI64LtS:
		a.Setl(asmx86.RAX)
	case wasm.OpI32LtU, wasm.OpI64LtU:
		a.Setb(asmx86.RAX)
	case wasm.OpI32GtS, wasm.OpI64GtS:
		a.Setg(asmx86.RAX)
	case wasm.OpI32GtU, wasm.OpI64GtU:
		a.Seta(asmx86.RAX)
	case wasm.OpI32LeS, wasm.OpI64LeS:
		a.Setle(asmx86.RAX)
	case wasm.OpI32LeU, wasm.OpI64LeU:
		a.Setbe(asmx86.RAX)
	case wasm.OpI32GeS, wasm.OpI64GeS:
		a.Setge(asmx86.RAX)
	case wasm.OpI32GeU, wasm.OpI64GeU:
		a.Setae(asmx86.RAX)
	}
	a.MovzxRegReg8(asmx86.RAX, asmx86.RAX)
	w.pushGPR(asmx86.RAX)
}

// emitDivRem32/64 implement signed/unsigned division and remainder,
// trapping on divide-by-zero and on the signed-division overflow case
// (MinInt / -1) the x86 IDIV instruction itself faults on, exactly the
// two edge cases pkg/jitc's design notes call out.
func (w *funcWriter) emitDivRem32(op wasm.Op) { w.emitDivRem(op, 32) }
func (w *funcWriter) emitDivRem64(op wasm.Op) { w.emitDivRem(op, 64) }

func (w *funcWriter) emitDivRem(op wasm.Op, width int) {
	a := w.asm
	w.popGPR(asmx86.RCX) // divisor
	w.popGPR(asmx86.RAX) // dividend

	a.CmpRegImm32(asmx86.RCX, 0)
	nzPatch := a.Offset() + 2
	a.JneNear(0)
	w.emitTrap(errorsx.StatusTrap)
	a.PatchInt32(nzPatch, int32(a.Offset()-(nzPatch+4)))

	signed := op == wasm.OpI32DivS || op == wasm.OpI32RemS || op == wasm.OpI64DivS || op == wasm.OpI64RemS
	isRem := op == wasm.OpI32RemS || op == wasm.OpI32RemU || op == wasm.OpI64RemS || op == wasm.OpI64RemU

	if signed {
		// Guard MinInt/-1: unlike divide-by-zero, x86 raises #DE (a
		// fault, not a flag) for this case, so it must be checked
		// before IDIV ever executes.
		minVal := int64(-1) << 31
		if width == 64 {
			minVal = int64(-1) << 63
		}
		a.CmpRegImm32(asmx86.RCX, -1)
		notNegOnePatch := a.Offset() + 2
		a.JneNear(0)
		a.MovRegImm64(asmx86.RDX, uint64(minVal))
		a.CmpRegReg(asmx86.RAX, asmx86.RDX)
		notMinPatch := a.Offset() + 2
		a.JneNear(0)
		if isRem {
			a.MovRegImm64(asmx86.RAX, 0)
			w.pushGPR(asmx86.RAX)
		} else {
			a.MovRegImm64(asmx86.RAX, uint64(minVal))
			w.pushGPR(asmx86.RAX)
		}
		donePatch := a.Offset() + 1
		a.JmpRel32(0)
		a.PatchInt32(notNegOnePatch, int32(a.Offset()-(notNegOnePatch+4)))
		a.PatchInt32(notMinPatch, int32(a.Offset()-(notMinPatch+4)))

		if width == 32 {
			a.Cdqe() // sign-extend EAX into RAX so the 64-bit IDIV path stays uniform
		}
		a.Cqo()
		a.IDiv(asmx86.RCX)
		if isRem {
			w.pushGPR(asmx86.RDX)
		} else {
			w.pushGPR(asmx86.RAX)
		}
		a.PatchInt32(donePatch, int32(a.Offset()-(donePatch+4)))
		return
	}

	// Unsigned division needs the operands' true (zero-extended) value,
	// not the sign-extended slot representation every i32 carries, so
	// mask both down to 32 bits first; a 64-bit Div of the masked values
	// then produces exactly the unsigned 32-bit quotient/remainder
	// without needing a separate 32-bit-width divide instruction.
	if width == 32 {
		a.MovRegImm64(asmx86.RDX, 0xFFFFFFFF)
		a.AndRegReg(asmx86.RAX, asmx86.RDX)
		a.AndRegReg(asmx86.RCX, asmx86.RDX)
	}
	a.MovRegImm64(asmx86.RDX, 0)
	a.Div(asmx86.RCX)
	if isRem {
		if width == 32 {
			a.MovsxdRegReg(asmx86.RDX, asmx86.RDX)
		}
		w.pushGPR(asmx86.RDX)
	} else {
		if width == 32 {
			a.MovsxdRegReg(asmx86.RAX, asmx86.RAX)
		}
		w.pushGPR(asmx86.RAX)
	}
}

func isFloatOp(op wasm.Op) bool {
	return (op >= wasm.OpF32Eq && op <= wasm.OpF64Ge) ||
		(op >= wasm.OpF32Abs && op <= wasm.OpF64Copysign) ||
		op == wasm.OpI32TruncF32S || op == wasm.OpI32TruncF32U ||
		op == wasm.OpI32TruncF64S || op == wasm.OpI32TruncF64U ||
		op == wasm.OpI64TruncF32S || op == wasm.OpI64TruncF32U ||
		op == wasm.OpI64TruncF64S || op == wasm.OpI64TruncF64U ||
		(op >= wasm.OpF32ConvertI32S && op <= wasm.OpF64PromoteF32) ||
		op == wasm.OpF32ReinterpretI32 || op == wasm.OpF64ReinterpretI64
}
