package wasm

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// leb128u appends an unsigned LEB128 encoding of v to buf.
func leb128u(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// leb128s appends a signed LEB128 encoding of v to buf.
func leb128s(buf *bytes.Buffer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}

func section(id sectionID, body []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(byte(id))
	leb128u(&out, uint64(len(body)))
	out.Write(body)
	return out.Bytes()
}

// buildModule assembles a minimal Wasm binary from pre-encoded section
// bodies, adding the preamble and concatenating sections in the order
// given, mirroring how a real toolchain emits a module even though the
// sections here are hand-written rather than compiled.
func buildModule(sections ...[]byte) []byte {
	var out bytes.Buffer
	out.WriteString("\x00asm")
	out.Write([]byte{1, 0, 0, 0})
	for _, s := range sections {
		out.Write(s)
	}
	return out.Bytes()
}

// nopMainModule returns a module exporting a zero-parameter, zero-result
// "main" function whose body is just `end`, the smallest module the
// executor's mainExport lookup will accept.
func nopMainModule(t *testing.T) []byte {
	t.Helper()

	var typeSec bytes.Buffer
	leb128u(&typeSec, 1) // 1 type
	typeSec.WriteByte(0x60)
	leb128u(&typeSec, 0) // 0 params
	leb128u(&typeSec, 0) // 0 results

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1) // 1 function
	leb128u(&funcSec, 0) // type index 0

	var exportSec bytes.Buffer
	leb128u(&exportSec, 1) // 1 export
	leb128u(&exportSec, uint64(len("main")))
	exportSec.WriteString("main")
	exportSec.WriteByte(0x00) // func kind
	leb128u(&exportSec, 0)    // func index 0

	var body bytes.Buffer
	leb128u(&body, 0) // 0 local groups
	body.WriteByte(byte(OpEnd))

	var codeSec bytes.Buffer
	leb128u(&codeSec, 1) // 1 function body
	leb128u(&codeSec, uint64(body.Len()))
	codeSec.Write(body.Bytes())

	return buildModule(
		section(secType, typeSec.Bytes()),
		section(secFunction, funcSec.Bytes()),
		section(secExport, exportSec.Bytes()),
		section(secCode, codeSec.Bytes()),
	)
}

func TestDecodeNopMain(t *testing.T) {
	mod, err := Decode(nopMainModule(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(mod.Funcs) != 1 {
		t.Fatalf("len(Funcs) = %d, want 1", len(mod.Funcs))
	}
	exp, ok := mod.Exports["main"]
	if !ok {
		t.Fatal(`expected export "main"`)
	}
	if exp.Kind != ExportFunc || exp.Index != 0 {
		t.Fatalf("export main = %+v, want func index 0", exp)
	}
	if mod.Funcs[0].Code == nil {
		t.Fatal("main function was not validated")
	}
}

func TestDecodeRejectsBadPreamble(t *testing.T) {
	bad := append([]byte{}, nopMainModule(t)...)
	bad[0] = 'X'
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected error for a corrupted preamble")
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	if _, err := Decode([]byte{0x00, 0x61, 0x73}); err == nil {
		t.Fatal("expected error for input too short to hold a preamble")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	mod := nopMainModule(t)
	mod[4] = 2 // version byte
	if _, err := Decode(mod); err == nil {
		t.Fatal("expected error for an unsupported version")
	}
}

func TestDecodeRejectsStartSection(t *testing.T) {
	var typeSec bytes.Buffer
	leb128u(&typeSec, 1)
	typeSec.WriteByte(0x60)
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0)

	var startSec bytes.Buffer
	leb128u(&startSec, 0) // start function index 0

	bin := buildModule(
		section(secType, typeSec.Bytes()),
		section(secFunction, funcSec.Bytes()),
		section(secStart, startSec.Bytes()),
	)
	if _, err := Decode(bin); err == nil {
		t.Fatal("expected error: start section is not supported")
	}
}

func TestDecodeRejectsOutOfOrderSections(t *testing.T) {
	var typeSec bytes.Buffer
	leb128u(&typeSec, 0)
	var exportSec bytes.Buffer
	leb128u(&exportSec, 0)

	bin := buildModule(
		section(secExport, exportSec.Bytes()),
		section(secType, typeSec.Bytes()),
	)
	if _, err := Decode(bin); err == nil {
		t.Fatal("expected error for sections out of order")
	}
}

func TestDecodeRejectsMismatchedFunctionCodeCounts(t *testing.T) {
	var typeSec bytes.Buffer
	leb128u(&typeSec, 1)
	typeSec.WriteByte(0x60)
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0)

	var codeSec bytes.Buffer
	leb128u(&codeSec, 0) // no code bodies, but function section declared one

	bin := buildModule(
		section(secType, typeSec.Bytes()),
		section(secFunction, funcSec.Bytes()),
		section(secCode, codeSec.Bytes()),
	)
	if _, err := Decode(bin); err == nil {
		t.Fatal("expected error: function/code section count mismatch")
	}
}

func TestDecodeMemoryAndDataSegment(t *testing.T) {
	var typeSec bytes.Buffer
	leb128u(&typeSec, 1)
	typeSec.WriteByte(0x60)
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0)

	var memSec bytes.Buffer
	leb128u(&memSec, 1)  // 1 memory
	memSec.WriteByte(0)  // flags: no max
	leb128u(&memSec, 1)  // min pages

	var exportSec bytes.Buffer
	leb128u(&exportSec, 1)
	leb128u(&exportSec, uint64(len("main")))
	exportSec.WriteString("main")
	exportSec.WriteByte(0x00)
	leb128u(&exportSec, 0)

	var body bytes.Buffer
	leb128u(&body, 0)
	body.WriteByte(byte(OpEnd))
	var codeSec bytes.Buffer
	leb128u(&codeSec, 1)
	leb128u(&codeSec, uint64(body.Len()))
	codeSec.Write(body.Bytes())

	var dataSec bytes.Buffer
	leb128u(&dataSec, 1) // 1 segment
	leb128u(&dataSec, 0) // memory index 0
	dataSec.WriteByte(byte(OpI32Const))
	leb128s(&dataSec, 4) // offset 4
	dataSec.WriteByte(byte(OpEnd))
	leb128u(&dataSec, 3) // 3 bytes
	dataSec.Write([]byte{1, 2, 3})

	bin := buildModule(
		section(secType, typeSec.Bytes()),
		section(secFunction, funcSec.Bytes()),
		section(secMemory, memSec.Bytes()),
		section(secExport, exportSec.Bytes()),
		section(secCode, codeSec.Bytes()),
		section(secData, dataSec.Bytes()),
	)

	mod, err := Decode(bin)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if mod.Memory == nil || mod.Memory.MinPages != 1 {
		t.Fatalf("Memory = %+v, want MinPages 1", mod.Memory)
	}
	if len(mod.DataSegments) != 1 {
		t.Fatalf("len(DataSegments) = %d, want 1", len(mod.DataSegments))
	}
	want := DataSegment{Offset: 4, Bytes: []byte{1, 2, 3}}
	if diff := cmp.Diff(want, mod.DataSegments[0]); diff != "" {
		t.Fatalf("DataSegments[0] mismatch (-want +got):\n%s", diff)
	}
}

func TestFuncTypeToken(t *testing.T) {
	a := FuncType{Params: []ValType{I32, I64}, Results: []ValType{I32}}
	b := FuncType{Params: []ValType{I32, I64}, Results: []ValType{I32}}
	c := FuncType{Params: []ValType{I64, I32}, Results: []ValType{I32}}

	if a.Token() != b.Token() {
		t.Fatal("identical signatures produced different tokens")
	}
	if a.Token() == c.Token() {
		t.Fatal("different signatures produced the same token")
	}
}
