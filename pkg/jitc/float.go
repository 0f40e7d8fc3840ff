package jitc

import (
	"math"

	"github.com/gowasm/eeivm/pkg/asmx86"
	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// emitFloatOp lowers f32/f64 arithmetic, comparison and conversion,
// grounded on the same "pop operands into fixed scratch registers,
// operate, push the result" shape emitNumericOrMemory uses for integers,
// generalized to the XMM register file via pkg/asmx86's SSE2 catalogue.
func (w *funcWriter) emitFloatOp(instr *wasm.Instr) error {
	a := w.asm
	x0, x1 := asmx86.XMM0, asmx86.XMM1

	switch instr.Op {
	case wasm.OpF32Add, wasm.OpF32Sub, wasm.OpF32Mul, wasm.OpF32Div, wasm.OpF32Min, wasm.OpF32Max:
		w.popSS(x1)
		w.popSS(x0)
		switch instr.Op {
		case wasm.OpF32Add:
			a.AddssRegReg(x0, x1)
		case wasm.OpF32Sub:
			a.SubssRegReg(x0, x1)
		case wasm.OpF32Mul:
			a.MulssRegReg(x0, x1)
		case wasm.OpF32Div:
			a.DivssRegReg(x0, x1)
		case wasm.OpF32Min:
			a.MinssRegReg(x0, x1)
		case wasm.OpF32Max:
			a.MaxssRegReg(x0, x1)
		}
		w.pushSS(x0)
		return nil

	case wasm.OpF64Add, wasm.OpF64Sub, wasm.OpF64Mul, wasm.OpF64Div, wasm.OpF64Min, wasm.OpF64Max:
		w.popSD(x1)
		w.popSD(x0)
		switch instr.Op {
		case wasm.OpF64Add:
			a.AddsdRegReg(x0, x1)
		case wasm.OpF64Sub:
			a.SubsdRegReg(x0, x1)
		case wasm.OpF64Mul:
			a.MulsdRegReg(x0, x1)
		case wasm.OpF64Div:
			a.DivsdRegReg(x0, x1)
		case wasm.OpF64Min:
			a.MinsdRegReg(x0, x1)
		case wasm.OpF64Max:
			a.MaxsdRegReg(x0, x1)
		}
		w.pushSD(x0)
		return nil

	case wasm.OpF32Sqrt:
		w.popSS(x0)
		a.SqrtssRegReg(x0, x0)
		w.pushSS(x0)
		return nil
	case wasm.OpF64Sqrt:
		w.popSD(x0)
		a.SqrtsdRegReg(x0, x0)
		w.pushSD(x0)
		return nil

	case wasm.OpF32Abs:
		return w.emitFpAndOp32(clearSignMask32)
	case wasm.OpF32Neg:
		return w.emitFpXorOp32(signBitMask32)
	case wasm.OpF64Abs:
		return w.emitFpAndOp64(clearSignMask64)
	case wasm.OpF64Neg:
		return w.emitFpXorOp64(signBitMask64)

	case wasm.OpF32Copysign:
		w.popSS(x1)
		w.popSS(x0)
		a.MovRegImm64(regScratch, clearSignMask32)
		a.MovqRegToXmm(asmx86.XMM2, regScratch)
		a.AndpsRegReg(x0, asmx86.XMM2)
		a.MovRegImm64(regScratch, signBitMask32)
		a.MovqRegToXmm(asmx86.XMM2, regScratch)
		a.AndpsRegReg(x1, asmx86.XMM2)
		a.OrpsRegReg(x0, x1)
		w.pushSS(x0)
		return nil
	case wasm.OpF64Copysign:
		w.popSD(x1)
		w.popSD(x0)
		a.MovRegImm64(regScratch, clearSignMask64)
		a.MovqRegToXmm(asmx86.XMM2, regScratch)
		a.AndpdRegReg(x0, asmx86.XMM2)
		a.MovRegImm64(regScratch, signBitMask64)
		a.MovqRegToXmm(asmx86.XMM2, regScratch)
		a.AndpdRegReg(x1, asmx86.XMM2)
		a.OrpdRegReg(x0, x1)
		w.pushSD(x0)
		return nil

	case wasm.OpF32Ceil, wasm.OpF32Floor, wasm.OpF32Trunc, wasm.OpF32Nearest,
		wasm.OpF64Ceil, wasm.OpF64Floor, wasm.OpF64Trunc, wasm.OpF64Nearest:
		// Rounding modes need SSE4.1's roundss/roundsd, outside this
		// engine's baseline SSE2 catalogue; the executor evaluates these
		// in Go (evalFloatHelper) instead of inline code, reached through
		// the same exit a host call uses.
		return w.emitFloatHostHelper(instr.Op)

	case wasm.OpF32Eq, wasm.OpF32Ne, wasm.OpF32Lt, wasm.OpF32Gt, wasm.OpF32Le, wasm.OpF32Ge:
		w.popSS(x1)
		w.popSS(x0)
		a.UcomissRegReg(x0, x1)
		w.emitFpSetcc(instr.Op)
		return nil
	case wasm.OpF64Eq, wasm.OpF64Ne, wasm.OpF64Lt, wasm.OpF64Gt, wasm.OpF64Le, wasm.OpF64Ge:
		w.popSD(x1)
		w.popSD(x0)
		a.UcomisdRegReg(x0, x1)
		w.emitFpSetcc(instr.Op)
		return nil

	case wasm.OpI32TruncF32S:
		w.popSS(x0)
		w.emitTruncGuard32(x0, -2147483648, 2147483648)
		a.CvttssToSi32(regScratch, x0)
		a.MovsxdRegReg(regScratch, regScratch)
		w.pushGPR(regScratch)
		return nil
	case wasm.OpI32TruncF64S:
		w.popSD(x0)
		w.emitTruncGuard64(x0, -2147483648, 2147483648)
		a.CvttsdToSi32(regScratch, x0)
		a.MovsxdRegReg(regScratch, regScratch)
		w.pushGPR(regScratch)
		return nil
	case wasm.OpI64TruncF32S:
		w.popSS(x0)
		w.emitTruncGuard32(x0, -9223372036854775808, 9223372036854775808)
		a.CvttssToSi(regScratch, x0)
		w.pushGPR(regScratch)
		return nil
	case wasm.OpI64TruncF64S:
		w.popSD(x0)
		w.emitTruncGuard64(x0, -9223372036854775808, 9223372036854775808)
		a.CvttsdToSi(regScratch, x0)
		w.pushGPR(regScratch)
		return nil

	case wasm.OpI32TruncF32U, wasm.OpI32TruncF64U, wasm.OpI64TruncF32U, wasm.OpI64TruncF64U:
		// Unsigned truncation has no direct SSE2 instruction (cvttsd2si
		// only ever produces a signed result); values needing the full
		// unsigned range are rare enough in practice that routing through
		// the same helper path as the rounding modes keeps the common
		// (in-range) case's code simple without duplicating the
		// subtract-2^63-and-flip-the-sign-bit trick inline at every site.
		return w.emitFloatHostHelper(instr.Op)

	case wasm.OpF32ConvertI32S:
		w.popGPR(regScratch)
		a.CvtsiToSs32(x0, regScratch)
		w.pushSS(x0)
		return nil
	case wasm.OpF64ConvertI32S:
		w.popGPR(regScratch)
		a.CvtsiToSd32(x0, regScratch)
		w.pushSD(x0)
		return nil
	case wasm.OpF32ConvertI64S:
		w.popGPR(regScratch)
		a.CvtsiToSs(x0, regScratch)
		w.pushSS(x0)
		return nil
	case wasm.OpF64ConvertI64S:
		w.popGPR(regScratch)
		a.CvtsiToSd(x0, regScratch)
		w.pushSD(x0)
		return nil

	case wasm.OpF32ConvertI32U:
		w.popGPR(regScratch)
		a.MovRegImm64(regScratch2, 0xFFFFFFFF)
		a.AndRegReg(regScratch, regScratch2) // recover the true unsigned 32-bit value
		a.CvtsiToSs(x0, regScratch)          // widened to 64 bits, the value now fits a signed conversion exactly
		w.pushSS(x0)
		return nil
	case wasm.OpF64ConvertI32U:
		w.popGPR(regScratch)
		a.MovRegImm64(regScratch2, 0xFFFFFFFF)
		a.AndRegReg(regScratch, regScratch2)
		a.CvtsiToSd(x0, regScratch)
		w.pushSD(x0)
		return nil
	case wasm.OpF32ConvertI64U, wasm.OpF64ConvertI64U:
		// A full unsigned 64-bit value can exceed what a signed cvtsi2s{s,d}
		// represents exactly; deferred to the helper path for the same
		// reason as the unsigned truncations above.
		return w.emitFloatHostHelper(instr.Op)

	case wasm.OpF32DemoteF64:
		w.popSD(x0)
		a.CvtsdToSs(x0, x0)
		w.pushSS(x0)
		return nil
	case wasm.OpF64PromoteF32:
		w.popSS(x0)
		a.CvtssToSd(x0, x0)
		w.pushSD(x0)
		return nil

	case wasm.OpI32ReinterpretF32:
		w.popSS(x0)
		a.MovdXmmToReg32(regScratch, x0)
		a.MovsxdRegReg(regScratch, regScratch)
		w.pushGPR(regScratch)
		return nil
	case wasm.OpF32ReinterpretI32:
		w.popGPR(regScratch)
		a.MovdRegToXmm32(x0, regScratch)
		w.pushSS(x0)
		return nil
	case wasm.OpI64ReinterpretF64:
		w.popSD(x0)
		a.MovqXmmToReg(regScratch, x0)
		w.pushGPR(regScratch)
		return nil
	case wasm.OpF64ReinterpretI64:
		w.popGPR(regScratch)
		a.MovqRegToXmm(x0, regScratch)
		w.pushSD(x0)
		return nil
	}

	return nil
}

const (
	signBitMask32   = uint64(0x80000000)
	clearSignMask32 = uint64(0x7FFFFFFF)
	signBitMask64   = uint64(0x8000000000000000)
	clearSignMask64 = uint64(0x7FFFFFFFFFFFFFFF)
)

func (w *funcWriter) emitFpAndOp32(mask uint64) error {
	a := w.asm
	x0 := asmx86.XMM0
	w.popSS(x0)
	a.MovRegImm64(regScratch, mask)
	a.MovqRegToXmm(asmx86.XMM1, regScratch)
	a.AndpsRegReg(x0, asmx86.XMM1)
	w.pushSS(x0)
	return nil
}

func (w *funcWriter) emitFpAndOp64(mask uint64) error {
	a := w.asm
	x0 := asmx86.XMM0
	w.popSD(x0)
	a.MovRegImm64(regScratch, mask)
	a.MovqRegToXmm(asmx86.XMM1, regScratch)
	a.AndpdRegReg(x0, asmx86.XMM1)
	w.pushSD(x0)
	return nil
}

func (w *funcWriter) emitFpXorOp32(mask uint64) error {
	a := w.asm
	x0 := asmx86.XMM0
	w.popSS(x0)
	a.MovRegImm64(regScratch, mask)
	a.MovqRegToXmm(asmx86.XMM1, regScratch)
	a.XorpsRegReg(x0, asmx86.XMM1)
	w.pushSS(x0)
	return nil
}

func (w *funcWriter) emitFpXorOp64(mask uint64) error {
	a := w.asm
	x0 := asmx86.XMM0
	w.popSD(x0)
	a.MovRegImm64(regScratch, mask)
	a.MovqRegToXmm(asmx86.XMM1, regScratch)
	a.XorpdRegReg(x0, asmx86.XMM1)
	w.pushSD(x0)
	return nil
}

// emitTruncGuard32/64 trap with StatusTrap unless src lies in [lo, hi),
// the range a signed truncation to the target integer width must land in
// for cvttss2si/cvttsd2si to produce a defined result; lo/hi are always
// exact powers of two here, representable exactly in both float widths.
// Ucomis{s,d} sets CF (along with PF and ZF) on an unordered pair, so the
// first bound check's Jae rejects NaN and "src < lo" in one branch, and
// by the second check src is known ordered, so Jb alone distinguishes
// "src < hi" from out of range. Without this, cvttss2si/cvttsd2si would
// silently hand back the integer-indefinite value (0x8000...0000) on
// exactly the inputs Wasm requires a trap for.
func (w *funcWriter) emitTruncGuard32(src asmx86.XMM, lo, hi float32) {
	a := w.asm
	bound := asmx86.XMM2

	a.MovRegImm64(regScratch, uint64(math.Float32bits(lo)))
	a.MovdRegToXmm32(bound, regScratch)
	a.UcomissRegReg(src, bound)
	lowOK := a.Offset() + 2
	a.JaeNear(0)
	w.emitTrap(errorsx.StatusTrap)
	a.PatchInt32(lowOK, int32(a.Offset()-(lowOK+4)))

	a.MovRegImm64(regScratch, uint64(math.Float32bits(hi)))
	a.MovdRegToXmm32(bound, regScratch)
	a.UcomissRegReg(src, bound)
	highOK := a.Offset() + 2
	a.JbNear(0)
	w.emitTrap(errorsx.StatusTrap)
	a.PatchInt32(highOK, int32(a.Offset()-(highOK+4)))
}

func (w *funcWriter) emitTruncGuard64(src asmx86.XMM, lo, hi float64) {
	a := w.asm
	bound := asmx86.XMM2

	a.MovRegImm64(regScratch, math.Float64bits(lo))
	a.MovqRegToXmm(bound, regScratch)
	a.UcomisdRegReg(src, bound)
	lowOK := a.Offset() + 2
	a.JaeNear(0)
	w.emitTrap(errorsx.StatusTrap)
	a.PatchInt32(lowOK, int32(a.Offset()-(lowOK+4)))

	a.MovRegImm64(regScratch, math.Float64bits(hi))
	a.MovqRegToXmm(bound, regScratch)
	a.UcomisdRegReg(src, bound)
	highOK := a.Offset() + 2
	a.JbNear(0)
	w.emitTrap(errorsx.StatusTrap)
	a.PatchInt32(highOK, int32(a.Offset()-(highOK+4)))
}

// emitFpSetcc turns the flags left by ucomiss/ucomisd into an i32 0/1,
// treating an unordered (NaN) result the way every Wasm float comparison
// requires: eq/lt/gt/le/ge all report false on NaN, ne reports true.
// ucomis{s,d} sets ZF=CF=PF=1 for unordered, where sete/setb/setbe would
// report true and setne false, so every comparison checks the parity flag
// first and skips its setcc on an unordered pair.
func (w *funcWriter) emitFpSetcc(op wasm.Op) {
	a := w.asm
	if op == wasm.OpF32Eq || op == wasm.OpF64Eq {
		// setz alone reports true on an unordered pair (ZF=1 there too),
		// so eq additionally has to reject the parity-flag-set case.
		a.MovRegImm64(regScratch, 0)
		unordered := a.Offset() + 2
		a.JpNear(0)
		a.Sete(regScratch)
		a.PatchInt32(unordered, int32(a.Offset()-(unordered+4)))
		w.pushZeroExtended(regScratch)
		return
	}
	// regScratch is preloaded with the unordered answer: 1 for ne (Wasm's
	// `!=` treats NaN as unequal to everything, itself included), 0 for
	// lt/gt/le/ge; the setcc below only runs for an ordered pair.
	unorderedResult := uint64(0)
	if op == wasm.OpF32Ne || op == wasm.OpF64Ne {
		unorderedResult = 1
	}
	a.MovRegImm64(regScratch, unorderedResult)
	unordered := a.Offset() + 2
	a.JpNear(0)
	switch op {
	case wasm.OpF32Ne, wasm.OpF64Ne:
		a.Setne(regScratch)
	case wasm.OpF32Lt, wasm.OpF64Lt:
		a.Setb(regScratch)
	case wasm.OpF32Gt, wasm.OpF64Gt:
		a.Seta(regScratch)
	case wasm.OpF32Le, wasm.OpF64Le:
		a.Setbe(regScratch)
	case wasm.OpF32Ge, wasm.OpF64Ge:
		a.Setae(regScratch)
	}
	a.PatchInt32(unordered, int32(a.Offset()-(unordered+4)))
	w.pushZeroExtended(regScratch)
}

func (w *funcWriter) pushZeroExtended(reg asmx86.Reg) {
	w.asm.MovzxRegReg8(reg, reg)
	w.pushGPR(reg)
}

// emitFloatHostHelper routes an opcode with no direct baseline-SSE2
// encoding (SSE4.1 rounding, full-range unsigned conversions) through the
// same call-boundary exit every host call uses: the executor implements
// the handful of these opcodes in Go using math.Round/math.Trunc-style
// helpers and returns the result the same way a host function would.
func (w *funcWriter) emitFloatHostHelper(op wasm.Op) error {
	a := w.asm
	wordIdx := uint64(w.body.NumLocals + w.height - 1) // frame word index of the operand
	a.MovRegImm64(regScratch, floatHelperMarker(op))
	a.MovMemReg64(regState, stateCallTarget, regScratch)
	a.MovRegImm64(regScratch, wordIdx)
	a.MovMemReg64(regState, stateArgBase, regScratch)
	a.MovMemReg64(regState, stateResultBase, regScratch)
	a.MovRegImm64(regScratch, 1)
	a.MovMemReg64(regState, stateArgCount, regScratch)
	a.MovMemReg64(regState, stateResultCnt, regScratch)
	w.emitResumableExit(ExitCallHost)
	return nil
}

// floatHelperMarkerBit distinguishes a floatHelperMarker CallTarget value
// from a real function index: no module has anywhere near 2^40 functions,
// so the bit is set on every helper marker and clear on every real index
// (import or internal).
const floatHelperMarkerBit = uint64(1) << 40

// floatHelperMarker maps an opcode to a CallTarget sentinel far outside
// any real function index, distinguishing which helper the executor
// should run; the marker is the opcode itself shifted clear of any
// plausible function-index range.
func floatHelperMarker(op wasm.Op) uint64 {
	return floatHelperMarkerBit | uint64(op)
}

// FloatHelperOp reports whether callTarget is a floatHelperMarker value
// and, if so, the opcode it names. pkg/executor calls this to distinguish
// a "compute this float helper" request from an ordinary imported-function
// call riding the same ExitCallHost exit reason.
func FloatHelperOp(callTarget uint64) (wasm.Op, bool) {
	if callTarget&floatHelperMarkerBit == 0 {
		return 0, false
	}
	return wasm.Op(callTarget &^ floatHelperMarkerBit), true
}
