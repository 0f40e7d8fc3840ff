package wasm

import (
	"bytes"
	"encoding/binary"
)

const (
	magicPreamble = 0x6D736100 // "\0asm" little-endian
	mvpVersion    = 1
)

type sectionID byte

const (
	secCustom   sectionID = 0
	secType     sectionID = 1
	secImport   sectionID = 2
	secFunction sectionID = 3
	secTable    sectionID = 4
	secMemory   sectionID = 5
	secGlobal   sectionID = 6
	secExport   sectionID = 7
	secStart    sectionID = 8
	secElement  sectionID = 9
	secCode     sectionID = 10
	secData     sectionID = 11
)

// Decode parses a Wasm 1.0 MVP binary into a validated Module. It performs
// both decoding and validation jobs in one pass:
// structural decoding of every section, then per-function validation
// before returning, so the JIT writer (pkg/jitc) never has to defend
// against a malformed Module.
func Decode(binary_ []byte) (*Module, error) {
	r := newReader(binary_)

	preamble, err := r.bytes(4)
	if err != nil {
		return nil, fail("wasm: input too short for preamble")
	}
	if binary.LittleEndian.Uint32(preamble) != magicPreamble {
		return nil, fail("wasm: missing \\0asm preamble")
	}
	version, err := r.bytes(4)
	if err != nil {
		return nil, fail("wasm: input too short for version")
	}
	if binary.LittleEndian.Uint32(version) != mvpVersion {
		return nil, fail("wasm: unsupported version, only MVP version 1 is accepted")
	}

	m := &Module{Exports: map[string]Export{}}
	var funcTypeIdxs []uint32 // function section: internal func -> type index
	var codeBodies [][]byte
	var sawCode, sawFunction bool
	lastSection := sectionID(0)
	haveSeenNonCustom := false

	for !r.atEnd() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.varU32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		sid := sectionID(id)

		if sid != secCustom {
			// "known section order" - MVP sections must appear
			// in strictly increasing id order, at most once each.
			if haveSeenNonCustom && sid <= lastSection {
				return nil, fail("wasm: section %d out of order (after %d)", sid, lastSection)
			}
			lastSection = sid
			haveSeenNonCustom = true
		}

		sr := newReader(body)
		switch sid {
		case secCustom:
			// Ignored: custom sections (e.g. name section) carry no
			// semantics this engine needs.
		case secType:
			if err := decodeTypeSection(sr, m); err != nil {
				return nil, err
			}
		case secImport:
			if err := decodeImportSection(sr, m); err != nil {
				return nil, err
			}
		case secFunction:
			sawFunction = true
			if funcTypeIdxs, err = decodeFunctionSection(sr, m); err != nil {
				return nil, err
			}
		case secTable:
			if err := decodeTableSection(sr, m); err != nil {
				return nil, err
			}
		case secMemory:
			if err := decodeMemorySection(sr, m); err != nil {
				return nil, err
			}
		case secGlobal:
			if err := decodeGlobalSection(sr, m); err != nil {
				return nil, err
			}
		case secExport:
			if err := decodeExportSection(sr, m); err != nil {
				return nil, err
			}
		case secStart:
			// start functions are rejected
			// outright, regardless of which function they name.
			return nil, fail("wasm: start section is not supported by this engine")
		case secElement:
			if err := decodeElementSection(sr, m); err != nil {
				return nil, err
			}
		case secCode:
			sawCode = true
			if codeBodies, err = decodeCodeSection(sr); err != nil {
				return nil, err
			}
		case secData:
			// Passive/active data segments would require a bulk-memory
			// initializer step; MVP only has active segments copying
			// into memory at instantiation, which this engine treats as
			// the executor's job once it owns a LinearMemory, so the raw
			// segments are decoded and attached for the executor.
			if err := decodeDataSection(sr, m); err != nil {
				return nil, err
			}
		default:
			return nil, fail("wasm: unknown section id %d", id)
		}
	}

	if sawFunction != sawCode {
		return nil, fail("wasm: function and code section counts must match")
	}
	if len(funcTypeIdxs) != len(codeBodies) {
		return nil, fail("wasm: function section declares %d functions but code section has %d bodies", len(funcTypeIdxs), len(codeBodies))
	}

	m.Funcs = make([]FuncDecl, len(funcTypeIdxs))
	m.FuncTypeIndex = make([]uint32, 0, len(m.Imports)+len(funcTypeIdxs))
	for _, imp := range m.Imports {
		m.FuncTypeIndex = append(m.FuncTypeIndex, imp.TypeIndex)
	}
	for i, ti := range funcTypeIdxs {
		if int(ti) >= len(m.Types) {
			return nil, fail("wasm: function %d references out-of-range type %d", i, ti)
		}
		m.Funcs[i] = FuncDecl{TypeIndex: ti, Body: codeBodies[i]}
		m.FuncTypeIndex = append(m.FuncTypeIndex, ti)
	}

	// Table elements must reference a function within the combined index
	// space; call targets get the same check in the validator.
	if m.Table != nil {
		for i, has := range m.Table.HasElem {
			if !has {
				continue
			}
			if int(m.Table.Elements[i]) >= len(m.FuncTypeIndex) {
				return nil, fail("wasm: table element %d references out-of-range function %d", i, m.Table.Elements[i])
			}
		}
	}

	if err := validateModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeTypeSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, count)
	for i := range m.Types {
		tag, err := r.byte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return fail("wasm: type %d: expected functype tag 0x60, got 0x%x", i, tag)
		}
		numParams, err := r.varU32()
		if err != nil {
			return err
		}
		params := make([]ValType, numParams)
		for j := range params {
			if params[j], err = r.valType(); err != nil {
				return err
			}
		}
		numResults, err := r.varU32()
		if err != nil {
			return err
		}
		if numResults > 1 {
			return fail("wasm: type %d: multi-value results are not supported by MVP", i)
		}
		results := make([]ValType, numResults)
		for j := range results {
			if results[j], err = r.valType(); err != nil {
				return err
			}
		}
		m.Types[i] = FuncType{Params: params, Results: results}
	}
	return nil
}

func decodeImportSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		mod, err := r.name()
		if err != nil {
			return err
		}
		field, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		switch kind {
		case 0x00: // func
			ti, err := r.varU32()
			if err != nil {
				return err
			}
			m.Imports = append(m.Imports, Import{Module: mod, Field: field, TypeIndex: ti})
		case 0x01, 0x02, 0x03: // table, memory, global
			return fail("wasm: import %q.%q: only function imports are supported", mod, field)
		default:
			return fail("wasm: import %q.%q: unknown import kind %d", mod, field, kind)
		}
	}
	return nil
}

func decodeFunctionSection(r *reader, m *Module) ([]uint32, error) {
	count, err := r.varU32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		ti, err := r.varU32()
		if err != nil {
			return nil, err
		}
		out[i] = ti
	}
	return out, nil
}

func decodeTableSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	if count > 1 {
		return fail("wasm: module declares %d tables, only one table is supported", count)
	}
	if count == 0 {
		return nil
	}
	elemType, err := r.byte()
	if err != nil {
		return err
	}
	if elemType != 0x70 {
		return fail("wasm: table element type 0x%x is not funcref", elemType)
	}
	limMin, limMax, hasMax, err := decodeLimits(r)
	if err != nil {
		return err
	}
	m.Table = &Table{Min: limMin, Max: limMax, HasMax: hasMax}
	m.Table.Elements = make([]uint32, limMin)
	m.Table.HasElem = make([]bool, limMin)
	return nil
}

func decodeMemorySection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	if count > 1 {
		return fail("wasm: module declares %d memories, this engine rejects multi-memory", count)
	}
	if count == 0 {
		return nil
	}
	min, max, hasMax, err := decodeLimits(r)
	if err != nil {
		return err
	}
	m.Memory = &Memory{MinPages: min, MaxPages: max, HasMax: hasMax}
	return nil
}

func decodeLimits(r *reader) (min, max uint32, hasMax bool, err error) {
	flag, err := r.byte()
	if err != nil {
		return 0, 0, false, err
	}
	if min, err = r.varU32(); err != nil {
		return 0, 0, false, err
	}
	if flag == 1 {
		if max, err = r.varU32(); err != nil {
			return 0, 0, false, err
		}
		hasMax = true
	} else if flag != 0 {
		return 0, 0, false, fail("wasm: invalid limits flag 0x%x", flag)
	}
	return min, max, hasMax, nil
}

func decodeGlobalSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	m.Globals = make([]Global, count)
	for i := range m.Globals {
		vt, err := r.valType()
		if err != nil {
			return err
		}
		mutFlag, err := r.byte()
		if err != nil {
			return err
		}
		if mutFlag > 1 {
			return fail("wasm: global %d: invalid mutability flag 0x%x", i, mutFlag)
		}
		g := Global{Type: vt, Mutable: mutFlag == 1}
		if err := decodeConstExpr(r, &g); err != nil {
			return err
		}
		m.Globals[i] = g
	}
	return nil
}

// decodeConstExpr reads a constant initializer expression: exactly one
// const/global.get opcode followed by end, the only form Wasm 1.0 allows.
func decodeConstExpr(r *reader, g *Global) error {
	op, err := r.byte()
	if err != nil {
		return err
	}
	switch Op(op) {
	case OpI32Const:
		v, err := r.varI32()
		if err != nil {
			return err
		}
		g.InitKind, g.ConstI32 = InitI32Const, v
	case OpI64Const:
		v, err := r.varI64()
		if err != nil {
			return err
		}
		g.InitKind, g.ConstI64 = InitI64Const, v
	case OpF32Const:
		v, err := r.f32Bits()
		if err != nil {
			return err
		}
		g.InitKind, g.ConstF32 = InitF32Const, v
	case OpF64Const:
		v, err := r.f64Bits()
		if err != nil {
			return err
		}
		g.InitKind, g.ConstF64 = InitF64Const, v
	case OpGlobalGet:
		v, err := r.varU32()
		if err != nil {
			return err
		}
		g.InitKind, g.GlobalRef = InitGlobalGet, v
	default:
		return fail("wasm: unsupported constant-expression opcode 0x%x", op)
	}
	end, err := r.byte()
	if err != nil {
		return err
	}
	if Op(end) != OpEnd {
		return fail("wasm: constant expression not terminated by end")
	}
	return nil
}

func decodeExportSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kindByte, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.varU32()
		if err != nil {
			return err
		}
		var kind ExportKind
		switch kindByte {
		case 0x00:
			kind = ExportFunc
		case 0x01:
			kind = ExportTable
		case 0x02:
			kind = ExportMemory
		case 0x03:
			kind = ExportGlobal
		default:
			return fail("wasm: export %q: unknown export kind %d", name, kindByte)
		}
		if _, dup := m.Exports[name]; dup {
			return fail("wasm: duplicate export name %q", name)
		}
		m.Exports[name] = Export{Name: name, Kind: kind, Index: idx}
	}
	return nil
}

func decodeElementSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tableIdx, err := r.varU32()
		if err != nil {
			return err
		}
		if tableIdx != 0 {
			return fail("wasm: element segment %d references table %d, only table 0 exists", i, tableIdx)
		}
		if m.Table == nil {
			return fail("wasm: element segment %d present without a table section", i)
		}
		var offsetGlobal Global
		if err := decodeConstExpr(r, &offsetGlobal); err != nil {
			return err
		}
		if offsetGlobal.InitKind != InitI32Const {
			return fail("wasm: element segment %d: offset must be an i32.const", i)
		}
		offset := offsetGlobal.ConstI32
		n, err := r.varU32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < n; j++ {
			fnIdx, err := r.varU32()
			if err != nil {
				return err
			}
			slot := int(offset) + int(j)
			if slot < 0 || slot >= len(m.Table.Elements) {
				return fail("wasm: element segment %d: slot %d out of table bounds", i, slot)
			}
			m.Table.Elements[slot] = fnIdx
			m.Table.HasElem[slot] = true
		}
	}
	return nil
}

// DataSegment is an active data-section initializer, copied into linear
// memory by the executor at instantiation time.
type DataSegment struct {
	Offset int32
	Bytes  []byte
}

func decodeDataSection(r *reader, m *Module) error {
	count, err := r.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		memIdx, err := r.varU32()
		if err != nil {
			return err
		}
		if memIdx != 0 {
			return fail("wasm: data segment %d references memory %d, only memory 0 exists", i, memIdx)
		}
		var offsetGlobal Global
		if err := decodeConstExpr(r, &offsetGlobal); err != nil {
			return err
		}
		if offsetGlobal.InitKind != InitI32Const {
			return fail("wasm: data segment %d: offset must be an i32.const", i)
		}
		n, err := r.varU32()
		if err != nil {
			return err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return err
		}
		m.DataSegments = append(m.DataSegments, DataSegment{Offset: offsetGlobal.ConstI32, Bytes: bytes.Clone(b)})
	}
	return nil
}

func decodeCodeSection(r *reader) ([][]byte, error) {
	count, err := r.varU32()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, count)
	for i := range out {
		size, err := r.varU32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		out[i] = body
	}
	return out, nil
}
