package jitc

import (
	"fmt"

	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// emitInstr dispatches one validated instruction to its lowering,
// mirroring the teacher's compileInstruction (compiler.go) giant switch,
// generalized from PVM's flat opcode space to Wasm's structured one.
func (w *funcWriter) emitInstr(instr *wasm.Instr) error {
	switch instr.Op {
	case wasm.OpUnreachable:
		w.emitTrap(errorsx.StatusTrap)
	case wasm.OpNop:
		// nothing to emit
	case wasm.OpBlock:
		w.pushCtrl(instr.Op, instr.Block, 0)
	case wasm.OpLoop:
		w.pushCtrl(instr.Op, instr.Block, w.asm.Offset())
	case wasm.OpIf:
		w.popGPR(regScratch)
		w.asm.CmpRegImm32(regScratch, 0)
		patchOffset := w.asm.Offset() + 2
		w.asm.JeNear(0)
		pj := pendingJump{patchOffset: patchOffset, instrEnd: w.asm.Offset()}
		w.pushCtrl(instr.Op, instr.Block, 0)
		w.top().elseJump = &pj
	case wasm.OpElse:
		f := w.popCtrl()
		// Jump over the else-branch from the end of the if-branch.
		jmpPatch := w.asm.Offset() + 1
		w.asm.JmpRel32(0)
		elseEndJump := pendingJump{patchOffset: jmpPatch, instrEnd: w.asm.Offset()}
		if f.elseJump != nil {
			w.patchJump(*f.elseJump)
		}
		w.height = f.height
		f.elseJump = nil
		f.endJumps = append(f.endJumps, elseEndJump)
		w.ctrlStack = append(w.ctrlStack, f)
	case wasm.OpEnd:
		f := w.popCtrl()
		if f.elseJump != nil {
			w.patchJump(*f.elseJump)
		}
		w.patchAll(f.endJumps)
		if len(w.ctrlStack) == 0 {
			// function-level end handled by emitFallOffReturn after the loop
			return nil
		}
	case wasm.OpBr:
		w.emitBranch(instr.LabelIdx)
	case wasm.OpBrIf:
		w.emitBranchIf(instr.LabelIdx)
	case wasm.OpBrTable:
		w.emitBrTable(instr)
	case wasm.OpReturn:
		w.emitReturn()
	case wasm.OpCall:
		return w.emitCall(instr.FuncIdx)
	case wasm.OpCallIndirect:
		return w.emitCallIndirect(instr)
	case wasm.OpDrop:
		w.height--
	case wasm.OpSelect:
		w.emitSelect()
	case wasm.OpLocalGet:
		w.asm.MovRegMem64(regScratch, regFrame, localSlot(int(instr.LocalIdx)))
		w.pushGPR(regScratch)
	case wasm.OpLocalSet:
		w.popGPR(regScratch)
		w.asm.MovMemReg64(regFrame, localSlot(int(instr.LocalIdx)), regScratch)
	case wasm.OpLocalTee:
		w.asm.MovRegMem64(regScratch, regFrame, stackSlot(w.body, w.height-1))
		w.asm.MovMemReg64(regFrame, localSlot(int(instr.LocalIdx)), regScratch)
	case wasm.OpGlobalGet:
		w.asm.MovRegMem64(regScratch, regGlobals, int32(instr.GlobalIdx)*8)
		w.pushGPR(regScratch)
	case wasm.OpGlobalSet:
		w.popGPR(regScratch)
		w.asm.MovMemReg64(regGlobals, int32(instr.GlobalIdx)*8, regScratch)
	case wasm.OpI32Const:
		w.asm.MovRegImm32SignExt(regScratch, instr.I32)
		w.pushGPR(regScratch)
	case wasm.OpI64Const:
		w.asm.MovRegImm64(regScratch, uint64(instr.I64))
		w.pushGPR(regScratch)
	case wasm.OpF32Const:
		w.asm.MovRegImm32SignExt(regScratch, int32(instr.F32Bits))
		w.pushGPR(regScratch)
	case wasm.OpF64Const:
		w.asm.MovRegImm64(regScratch, instr.F64Bits)
		w.pushGPR(regScratch)
	default:
		return w.emitNumericOrMemory(instr)
	}
	return nil
}

// emitBranch lowers `br`: if the label carries a result (a block/if
// label, never a loop label per pkg/wasm/validate.go's labelTypes, which
// reports an empty type for loop targets since branching to a loop
// re-enters its start, not its end), the value on top of the operand
// stack is copied down to the label's slot before the stack is drained
// back to the label's height, since other values may still sit below it
// (e.g. `(block (result i32) (i32.const 7) (i32.const 8) (br 0))` must
// leave 8, not 7, at the label's slot). regScratch2 is used rather than
// regScratch so this is safe to call from emitBrTable, which keeps its
// case index live in regScratch across repeated calls.
func (w *funcWriter) emitBranch(depth uint32) {
	f := w.frameAt(depth)
	if f.hasResult && !f.isLoop {
		w.asm.MovRegMem64(regScratch2, regFrame, stackSlot(w.body, w.height-1))
		w.asm.MovMemReg64(regFrame, stackSlot(w.body, f.height), regScratch2)
	}
	w.height = f.height
	if f.hasResult {
		w.height++
	}
	if f.isLoop {
		rel := int32(f.loopStart - (w.asm.Offset() + 5))
		w.asm.JmpRel32(rel)
		return
	}
	patchOffset := w.asm.Offset() + 1
	w.asm.JmpRel32(0)
	f.endJumps = append(f.endJumps, pendingJump{patchOffset: patchOffset, instrEnd: w.asm.Offset()})
}

// emitBranchIf lowers `br_if`: pop the condition; if taken, the branch
// behaves like `br` at this label but validate.go's rule is that a
// not-taken br_if falls through with the label's values still on the
// stack, so on the fallthrough path this code must NOT alter height.
func (w *funcWriter) emitBranchIf(depth uint32) {
	w.popGPR(regScratch)
	w.asm.CmpRegImm32(regScratch, 0)
	skipPatch := w.asm.Offset() + 2
	w.asm.JeNear(0)
	savedHeight := w.height
	w.emitBranch(depth)
	w.height = savedHeight
	target := w.asm.Offset()
	w.asm.PatchInt32(skipPatch, int32(target-(skipPatch+4)))
}

// emitBrTable lowers `br_table` as a bounds check against the default
// label followed by a balanced binary search over the in-range case
// indices, rather than a linear scan: dispatch cost is O(log n) compares
// instead of O(n), the lowering this engine must reproduce faithfully.
func (w *funcWriter) emitBrTable(instr *wasm.Instr) {
	w.popGPR(regScratch)
	savedHeight := w.height
	n := len(instr.Table)

	if n == 0 {
		w.height = savedHeight
		w.emitBranch(instr.LabelIdx)
		return
	}

	a := w.asm
	a.CmpRegImm32(regScratch, int32(n))
	inRangePatch := a.Offset() + 2
	a.JbNear(0)
	w.height = savedHeight
	w.emitBranch(instr.LabelIdx)
	a.PatchInt32(inRangePatch, int32(a.Offset()-(inRangePatch+4)))

	w.emitBrTableRange(instr, 0, n, savedHeight)
}

// emitBrTableRange dispatches regScratch, already known to lie in
// [lo, hi), by recursively bisecting the range: cases below the midpoint
// go left, the rest go right, terminating in a direct branch once the
// range narrows to a single case. Neither half needs an explicit jump
// past the other, since every path through emitBranch ends in an
// unconditional jump of its own.
func (w *funcWriter) emitBrTableRange(instr *wasm.Instr, lo, hi, savedHeight int) {
	if hi-lo == 1 {
		w.height = savedHeight
		w.emitBranch(instr.Table[lo])
		return
	}
	mid := lo + (hi-lo)/2
	a := w.asm
	a.CmpRegImm32(regScratch, int32(mid))
	rightPatch := a.Offset() + 2
	a.JaeNear(0)
	w.emitBrTableRange(instr, lo, mid, savedHeight)
	a.PatchInt32(rightPatch, int32(a.Offset()-(rightPatch+4)))
	w.emitBrTableRange(instr, mid, hi, savedHeight)
}

func (w *funcWriter) emitSelect() {
	w.popGPR(regScratch) // condition
	w.popGPR(regScratch3) // val2
	w.popGPR(regScratch2) // val1
	w.asm.CmpRegImm32(regScratch, 0)
	skip := w.asm.Offset() + 2
	w.asm.JneNear(0)
	w.asm.MovRegReg(regScratch2, regScratch3)
	w.asm.PatchInt32(skip, int32(w.asm.Offset()-(skip+4)))
	w.pushGPR(regScratch2)
}

// emitCall lowers a call to an internal or imported function: stage the
// arguments (already sitting at the top of the operand stack, in order)
// and exit to Go, which either allocates the callee's frame, copies the
// arguments in and re-enters at the callee's entry point, or dispatches
// the import to the host bridge. This is the call boundary state.go's
// package doc describes: only Go can safely grow the logical call stack,
// since a callee may itself need to call back into a host function.
func (w *funcWriter) emitCall(fnIdx uint32) error {
	sig := w.mod.FuncType(fnIdx)
	nArgs := len(sig.Params)
	argBase := w.height - nArgs
	w.height = argBase + len(sig.Results)

	a := w.asm
	a.MovRegImm64(regScratch, uint64(fnIdx))
	a.MovMemReg64(regState, stateCallTarget, regScratch)
	a.MovRegImm64(regScratch, uint64(w.body.NumLocals+argBase)) // frame word index

	a.MovMemReg64(regState, stateArgBase, regScratch)
	a.MovMemReg64(regState, stateResultBase, regScratch)
	a.MovRegImm64(regScratch, uint64(nArgs))
	a.MovMemReg64(regState, stateArgCount, regScratch)
	a.MovRegImm64(regScratch, uint64(len(sig.Results)))
	a.MovMemReg64(regState, stateResultCnt, regScratch)

	reason := ExitCallInternal
	if w.mod.IsImport(fnIdx) {
		reason = ExitCallHost
	}
	w.emitResumableExit(reason)
	return nil
}

// emitCallIndirect lowers call_indirect without a jump table: the
// generated code checks the table index against the table's length and
// traps when it is out of range, then exits to Go much like emitCall.
// The executor (resolveCallIndirect) traps on an empty slot, compares the
// callee's canonical type token with the wanted type, and dispatches.
func (w *funcWriter) emitCallIndirect(instr *wasm.Instr) error {
	if w.mod.Table == nil {
		return fmt.Errorf("jitc: call_indirect with no table")
	}
	wantType := w.mod.Types[instr.TypeIdx]

	w.popGPR(regScratch) // table index
	a := w.asm

	a.CmpRegImm32(regScratch, int32(len(w.mod.Table.Elements)))
	oobPatch := a.Offset() + 2
	a.JbNear(0)
	w.emitTrap(errorsx.StatusTrap)
	a.PatchInt32(oobPatch, int32(a.Offset()-(oobPatch+4)))

	// The table slot cannot be resolved to a function index at compile
	// time (elements are only known once instantiation applies the
	// active element segments), so the slot index and wanted type index
	// travel to Go via CallTarget/TrapStatus, and the executor resolves
	// the slot, checks the signature token, and dispatches exactly like
	// a direct call.
	nArgs := len(wantType.Params)
	argBase := w.height - nArgs
	w.height = argBase + len(wantType.Results)

	a.MovRegImm64(regScratch2, uint64(w.body.NumLocals+argBase)) // frame word index
	a.MovMemReg64(regState, stateArgBase, regScratch2)
	a.MovMemReg64(regState, stateResultBase, regScratch2)
	a.MovRegImm64(regScratch2, uint64(nArgs))
	a.MovMemReg64(regState, stateArgCount, regScratch2)
	a.MovRegImm64(regScratch2, uint64(len(wantType.Results)))
	a.MovMemReg64(regState, stateResultCnt, regScratch2)
	// CallTarget carries the table slot index; the executor resolves it
	// through mod.Table.Elements and checks the signature token itself
	// before dispatching, since only Go holds the table's current
	// contents and the module's type table.
	a.MovMemReg64(regState, stateCallTarget, regScratch)
	a.MovRegImm64(regScratch3, uint64(instr.TypeIdx))
	a.MovMemReg64(regState, stateTrapStatus, regScratch3) // reused to carry the wanted type index

	w.emitResumableExit(ExitCallIndirect)
	return nil
}

// emitResumableExit patches the resume address directly into the
// generated machine code (a literal operand of the mov that writes
// stateResumeAddr) rather than consulting any separate resume-point
// table, then exits. pkg/executor re-enters at that exact address (via
// a fresh CallJITCode) once the call or host call this leg requested has
// completed. A resume point sits mid-function, past the real prologue,
// so emitPrologue is re-emitted right there to reload regFrame/
// regMemBase/regGlobals before falling through to the rest of the
// function body.
func (w *funcWriter) emitResumableExit(reason ExitReason) {
	a := w.asm
	w.setExitReason(reason)

	a.MovRegImm64(regScratch, 0) // patched below once the resume offset is known
	immOffset := a.Offset() - 8
	a.MovMemReg64(regState, stateResumeAddr, regScratch)
	w.emitEpilogueRestore()
	a.Ret()

	// Reload point: the executor re-enters exactly here once the call or
	// host call this leg requested has completed. Every pinned register
	// must be reloaded since nothing survives the round trip through Go.
	resumeAddr := uint64(w.baseAddr) + uint64(a.Offset())
	a.PatchUint64(immOffset, resumeAddr)
	w.emitPrologue()
}
