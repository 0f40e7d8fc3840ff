package executor

import (
	"math"

	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// evalFloatHelper computes the handful of float opcodes pkg/jitc has no
// baseline-SSE2 encoding for (see jitc.emitFloatHostHelper's doc comment):
// SSE4.1-only rounding modes and the full-range unsigned float<->int
// conversions. in/out are the raw 8-byte operand-stack words those
// opcodes read and write; f32 values occupy the low 32 bits of the word,
// matching pushSS/popSS's convention.
func evalFloatHelper(op wasm.Op, in uint64) (uint64, error) {
	switch op {
	case wasm.OpF32Ceil:
		return f32Word(float32(math.Ceil(float64(wordF32(in))))), nil
	case wasm.OpF32Floor:
		return f32Word(float32(math.Floor(float64(wordF32(in))))), nil
	case wasm.OpF32Trunc:
		return f32Word(float32(math.Trunc(float64(wordF32(in))))), nil
	case wasm.OpF32Nearest:
		return f32Word(float32(math.RoundToEven(float64(wordF32(in))))), nil

	case wasm.OpF64Ceil:
		return f64Word(math.Ceil(wordF64(in))), nil
	case wasm.OpF64Floor:
		return f64Word(math.Floor(wordF64(in))), nil
	case wasm.OpF64Trunc:
		return f64Word(math.Trunc(wordF64(in))), nil
	case wasm.OpF64Nearest:
		return f64Word(math.RoundToEven(wordF64(in))), nil

	case wasm.OpI32TruncF32U:
		u, err := truncToUnsigned(float64(wordF32(in)), math.MaxUint32)
		return uint64(int64(int32(uint32(u)))), err
	case wasm.OpI32TruncF64U:
		u, err := truncToUnsigned(wordF64(in), math.MaxUint32)
		return uint64(int64(int32(uint32(u)))), err
	case wasm.OpI64TruncF32U:
		return truncToUnsigned64(float64(wordF32(in)))
	case wasm.OpI64TruncF64U:
		return truncToUnsigned64(wordF64(in))

	case wasm.OpF32ConvertI64U:
		// Go's uint64->float32 conversion is already the value-preserving
		// unsigned conversion Wasm wants; no manual bit-splitting needed
		// on this side of the trick (only the reverse direction, unsigned
		// int64<-float, needs it).
		return f32Word(float32(in)), nil
	case wasm.OpF64ConvertI64U:
		return f64Word(float64(in)), nil
	}
	return 0, errorsx.New(errorsx.StatusInternalError, "executor: unhandled float helper opcode %#x", uint16(op))
}

func wordF32(w uint64) float32 { return math.Float32frombits(uint32(w)) }
func f32Word(f float32) uint64 { return uint64(math.Float32bits(f)) }
func wordF64(w uint64) float64 { return math.Float64frombits(w) }
func f64Word(f float64) uint64 { return math.Float64bits(f) }

// truncToUnsigned truncates v toward zero and checks it against
// [0, max], the range an i32.trunc_*_u result must land in; NaN and
// out-of-range values trap rather than saturate, matching Wasm's
// float-to-int truncation trap semantics (spec.md §4.3).
func truncToUnsigned(v float64, max uint64) (uint64, error) {
	if math.IsNaN(v) {
		return 0, errorsx.New(errorsx.StatusTrap, "executor: float-to-int truncation of NaN")
	}
	t := math.Trunc(v)
	if t < 0 || t > float64(max) {
		return 0, errorsx.New(errorsx.StatusTrap, "executor: float-to-int truncation %v out of unsigned range", v)
	}
	return uint64(t), nil
}

// truncToUnsigned64 is truncToUnsigned specialized to the full uint64
// range, where the target no longer fits in a float64 comparison bound
// directly and the final conversion needs the classic "subtract 2^63,
// convert as signed, flip the sign bit" trick to cover values at or above
// 2^63 (a plain uint64(float64) conversion of such a value is exactly the
// case pkg/jitc's own comment on these opcodes calls out as not worth
// inlining into every truncation site).
func truncToUnsigned64(v float64) (uint64, error) {
	const twoTo63 = 9223372036854775808.0 // 2^63
	const twoTo64 = 18446744073709551616.0 // 2^64
	if math.IsNaN(v) {
		return 0, errorsx.New(errorsx.StatusTrap, "executor: float-to-int truncation of NaN")
	}
	t := math.Trunc(v)
	if t < 0 || t >= twoTo64 {
		return 0, errorsx.New(errorsx.StatusTrap, "executor: float-to-int truncation %v out of unsigned range", v)
	}
	if t < twoTo63 {
		return uint64(int64(t)), nil
	}
	return uint64(int64(t-twoTo63)) | (1 << 63), nil
}
