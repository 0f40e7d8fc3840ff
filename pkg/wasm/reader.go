package wasm

import (
	"encoding/binary"
	"math"

	"github.com/gowasm/eeivm/pkg/errorsx"
)

// reader is a forward-only cursor over a module's bytes. Every method
// raises contract-validation-failure the moment the cursor runs past the
// end of the buffer, since a truncated section is exactly the malformed
// input must be rejected before the JIT writer ever runs.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func fail(format string, args ...interface{}) error {
	return errorsx.New(errorsx.StatusContractValidationFailure, format, args...)
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fail("wasm: unexpected end of input at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fail("wasm: unexpected end of input reading %d bytes at offset %d", n, r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// varU32 decodes an unsigned LEB128 value, rejecting encodings wider than
// 32 significant bits (local counts, and every
// other size field, must fit in 32 bits).
func (r *reader) varU32() (uint32, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 35 {
			return 0, fail("wasm: LEB128 u32 overflow at offset %d", r.pos)
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	if result > math.MaxUint32 {
		return 0, fail("wasm: LEB128 value exceeds 32 bits at offset %d", r.pos)
	}
	return uint32(result), nil
}

func (r *reader) varU64() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 70 {
			return 0, fail("wasm: LEB128 u64 overflow at offset %d", r.pos)
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, nil
}

func (r *reader) varI32() (int32, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 35 {
			return 0, fail("wasm: LEB128 i32 overflow at offset %d", r.pos)
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if result < math.MinInt32 || result > math.MaxInt32 {
		return 0, fail("wasm: LEB128 i32 out of range at offset %d", r.pos)
	}
	return int32(result), nil
}

func (r *reader) varI64() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 70 {
			return 0, fail("wasm: LEB128 i64 overflow at offset %d", r.pos)
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (r *reader) f32Bits() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) f64Bits() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) name() (string, error) {
	n, err := r.varU32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) valType() (ValType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	vt := ValType(b)
	if !vt.valid() {
		return 0, fail("wasm: invalid value type 0x%x at offset %d", b, r.pos-1)
	}
	return vt, nil
}

func (r *reader) blockType() (BlockType, error) {
	b, err := r.byte()
	if err != nil {
		return BlockType{}, err
	}
	if b == 0x40 {
		return BlockType{Empty: true}, nil
	}
	vt := ValType(b)
	if !vt.valid() {
		return BlockType{}, fail("wasm: invalid block type 0x%x at offset %d", b, r.pos-1)
	}
	return BlockType{Val: vt}, nil
}

func (r *reader) atEnd() bool { return r.remaining() == 0 }
