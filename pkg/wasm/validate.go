package wasm

// This file implements the stack-polymorphic validator: operand types,
// block/if/loop nesting, branch-target arities,
// and unreachable-stack rules. The structure follows the teacher's
// compileInstruction (pkg/pvm/jit/compiler.go): one dispatch per opcode in
// a single big switch, rather than a table of per-opcode objects, since
// that is how the teacher's own single-pass emitter is organized and this
// validator plays the same "walk the instruction stream once" role.

const unknown ValType = 0 // polymorphic placeholder pushed under `unreachable`

type ctrlFrame struct {
	op          Op
	blockType   BlockType
	height      int // valStack length at frame entry
	unreachable bool
	elseSeen    bool
	instrIndex  int // index into the flat Instrs slice of the opening instruction
}

func (f *ctrlFrame) results() []ValType {
	if f.blockType.Empty {
		return nil
	}
	return []ValType{f.blockType.Val}
}

type validator struct {
	valStack  []ValType
	ctrlStack []ctrlFrame
	locals    []ValType
	m         *Module
	instrs    []Instr
}

func (v *validator) pushVal(t ValType) { v.valStack = append(v.valStack, t) }

func (v *validator) popVal() (ValType, error) {
	top := &v.ctrlStack[len(v.ctrlStack)-1]
	if len(v.valStack) == top.height {
		if top.unreachable {
			return unknown, nil
		}
		return 0, fail("wasm: value stack underflow")
	}
	t := v.valStack[len(v.valStack)-1]
	v.valStack = v.valStack[:len(v.valStack)-1]
	return t, nil
}

func (v *validator) popExpect(want ValType) error {
	got, err := v.popVal()
	if err != nil {
		return err
	}
	if got != unknown && got != want {
		return fail("wasm: type mismatch: expected %s, got %s", want, got)
	}
	return nil
}

func (v *validator) pushCtrl(op Op, bt BlockType, instrIndex int) {
	v.ctrlStack = append(v.ctrlStack, ctrlFrame{op: op, blockType: bt, height: len(v.valStack), instrIndex: instrIndex})
}

func (v *validator) popCtrl() (ctrlFrame, error) {
	top := v.ctrlStack[len(v.ctrlStack)-1]
	for _, want := range reverse(top.results()) {
		if err := v.popExpect(want); err != nil {
			return ctrlFrame{}, err
		}
	}
	if len(v.valStack) != top.height {
		return ctrlFrame{}, fail("wasm: extra values left on stack at end of block")
	}
	v.ctrlStack = v.ctrlStack[:len(v.ctrlStack)-1]
	return top, nil
}

func reverse(ts []ValType) []ValType {
	out := make([]ValType, len(ts))
	for i, t := range ts {
		out[len(ts)-1-i] = t
	}
	return out
}

func (v *validator) markUnreachable() {
	top := &v.ctrlStack[len(v.ctrlStack)-1]
	v.valStack = v.valStack[:top.height]
	top.unreachable = true
}

// labelTypes returns the value types a branch to ctrl frame at depth n from
// the top must supply: a loop's label type is its (empty) param arity, so
// branching to a loop targets its start, not its end. Wasm 1.0 loops take
// no block params, so labelTypes is empty for loop, and the frame's result
// type for block/if.
func (v *validator) labelTypes(depth uint32) ([]ValType, error) {
	if int(depth) >= len(v.ctrlStack) {
		return nil, fail("wasm: branch depth %d exceeds nesting", depth)
	}
	frame := v.ctrlStack[len(v.ctrlStack)-1-int(depth)]
	if frame.op == OpLoop {
		return nil, nil
	}
	return frame.results(), nil
}

func (v *validator) popVals(ts []ValType) error {
	for _, t := range reverse(ts) {
		if err := v.popExpect(t); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) pushVals(ts []ValType) {
	for _, t := range ts {
		v.pushVal(t)
	}
}

// decodeAndValidateFunc decodes fn.Body into a validated CodeBody. It is
// the per-function entry point Decode calls once the module skeleton
// (types, imports, table, globals) is fully known, since branch/call
// validation needs the complete Types table and combined function index
// space up front.
func decodeAndValidateFunc(m *Module, fn *FuncDecl) (*CodeBody, error) {
	r := newReader(fn.Body)

	numGroups, err := r.varU32()
	if err != nil {
		return nil, err
	}
	ft := m.Types[fn.TypeIndex]
	locals := append([]ValType(nil), ft.Params...)
	var totalLocals uint64
	for i := uint32(0); i < numGroups; i++ {
		n, err := r.varU32()
		if err != nil {
			return nil, err
		}
		totalLocals += uint64(n)
		if totalLocals > 1<<32-1 {
			return nil, fail("wasm: local count exceeds 32 bits")
		}
		vt, err := r.valType()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, vt)
		}
	}

	v := &validator{m: m, locals: locals}
	v.pushCtrl(0xFF /* synthetic function frame */, BlockType{Empty: len(ft.Results) == 0, Val: firstOrZero(ft.Results)}, -1)

	maxStack := 0
	trackMax := func() {
		if len(v.valStack) > maxStack {
			maxStack = len(v.valStack)
		}
	}

	for len(v.ctrlStack) > 0 {
		if r.atEnd() {
			return nil, fail("wasm: function body ended without closing all blocks")
		}
		opByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		op := Op(opByte)
		instrIdx := len(v.instrs)
		instr := Instr{Op: op}

		switch op {
		case OpUnreachable:
			v.markUnreachable()

		case OpNop:
			// no-op

		case OpBlock, OpLoop, OpIf:
			bt, err := r.blockType()
			if err != nil {
				return nil, err
			}
			instr.Block = bt
			if op == OpIf {
				if err := v.popExpect(I32); err != nil {
					return nil, err
				}
			}
			v.pushCtrl(op, bt, instrIdx)

		case OpElse:
			top, err := v.popCtrl()
			if err != nil {
				return nil, err
			}
			if top.op != OpIf {
				return nil, fail("wasm: else without matching if")
			}
			v.pushCtrl(OpIf, top.blockType, top.instrIndex)
			v.ctrlStack[len(v.ctrlStack)-1].elseSeen = true
			v.instrs[top.instrIndex].ElseOffset = instrIdx

		case OpEnd:
			top, err := v.popCtrl()
			if err != nil {
				return nil, err
			}
			if top.instrIndex >= 0 {
				v.instrs[top.instrIndex].EndOffset = instrIdx
			}
			for _, t := range top.results() {
				v.pushVal(t)
			}
			// When len(v.ctrlStack) == 0 this was the function body's
			// closing end; the outer loop condition exits after this
			// iteration's append below runs.

		case OpBr:
			depth, err := r.varU32()
			if err != nil {
				return nil, err
			}
			instr.LabelIdx = depth
			want, err := v.labelTypes(depth)
			if err != nil {
				return nil, err
			}
			if err := v.popVals(want); err != nil {
				return nil, err
			}
			v.markUnreachable()

		case OpBrIf:
			depth, err := r.varU32()
			if err != nil {
				return nil, err
			}
			instr.LabelIdx = depth
			if err := v.popExpect(I32); err != nil {
				return nil, err
			}
			want, err := v.labelTypes(depth)
			if err != nil {
				return nil, err
			}
			if err := v.popVals(want); err != nil {
				return nil, err
			}
			v.pushVals(want)

		case OpBrTable:
			n, err := r.varU32()
			if err != nil {
				return nil, err
			}
			table := make([]uint32, n)
			for i := range table {
				if table[i], err = r.varU32(); err != nil {
					return nil, err
				}
			}
			def, err := r.varU32()
			if err != nil {
				return nil, err
			}
			instr.Table = table
			instr.LabelIdx = def
			if err := v.popExpect(I32); err != nil {
				return nil, err
			}
			defTypes, err := v.labelTypes(def)
			if err != nil {
				return nil, err
			}
			for _, d := range table {
				dt, err := v.labelTypes(d)
				if err != nil {
					return nil, err
				}
				if !sameArity(dt, defTypes) {
					return nil, fail("wasm: br_table target arity mismatch")
				}
			}
			if err := v.popVals(defTypes); err != nil {
				return nil, err
			}
			v.markUnreachable()

		case OpReturn:
			// return behaves like a branch to the outermost (function) frame.
			outer := uint32(len(v.ctrlStack) - 1)
			want, err := v.labelTypes(outer)
			if err != nil {
				return nil, err
			}
			if err := v.popVals(want); err != nil {
				return nil, err
			}
			v.markUnreachable()

		case OpCall:
			idx, err := r.varU32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(m.FuncTypeIndex) {
				return nil, fail("wasm: call target %d out of range", idx)
			}
			instr.FuncIdx = idx
			ft := m.FuncType(idx)
			for _, p := range reverse(ft.Params) {
				if err := v.popExpect(p); err != nil {
					return nil, err
				}
			}
			for _, r := range ft.Results {
				v.pushVal(r)
			}

		case OpCallIndirect:
			typeIdx, err := r.varU32()
			if err != nil {
				return nil, err
			}
			tableByte, err := r.byte()
			if err != nil {
				return nil, err
			}
			if tableByte != 0 {
				return nil, fail("wasm: call_indirect table index must be 0")
			}
			if m.Table == nil {
				return nil, fail("wasm: call_indirect without a table section")
			}
			if int(typeIdx) >= len(m.Types) {
				return nil, fail("wasm: call_indirect type %d out of range", typeIdx)
			}
			instr.TypeIdx = typeIdx
			if err := v.popExpect(I32); err != nil {
				return nil, err
			}
			ft := m.Types[typeIdx]
			for _, p := range reverse(ft.Params) {
				if err := v.popExpect(p); err != nil {
					return nil, err
				}
			}
			for _, r := range ft.Results {
				v.pushVal(r)
			}

		case OpDrop:
			if _, err := v.popVal(); err != nil {
				return nil, err
			}

		case OpSelect:
			if err := v.popExpect(I32); err != nil {
				return nil, err
			}
			b, err := v.popVal()
			if err != nil {
				return nil, err
			}
			a, err := v.popVal()
			if err != nil {
				return nil, err
			}
			if a != unknown && b != unknown && a != b {
				return nil, fail("wasm: select operands must have matching types")
			}
			result := a
			if result == unknown {
				result = b
			}
			v.pushVal(result)

		case OpLocalGet, OpLocalSet, OpLocalTee:
			idx, err := r.varU32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(locals) {
				return nil, fail("wasm: local index %d out of range", idx)
			}
			instr.LocalIdx = idx
			lt := locals[idx]
			switch op {
			case OpLocalGet:
				v.pushVal(lt)
			case OpLocalSet:
				if err := v.popExpect(lt); err != nil {
					return nil, err
				}
			case OpLocalTee:
				if err := v.popExpect(lt); err != nil {
					return nil, err
				}
				v.pushVal(lt)
			}

		case OpGlobalGet, OpGlobalSet:
			idx, err := r.varU32()
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(m.Globals) {
				return nil, fail("wasm: global index %d out of range", idx)
			}
			instr.GlobalIdx = idx
			g := m.Globals[idx]
			if op == OpGlobalGet {
				v.pushVal(g.Type)
			} else {
				if !g.Mutable {
					return nil, fail("wasm: global.set on immutable global %d", idx)
				}
				if err := v.popExpect(g.Type); err != nil {
					return nil, err
				}
			}

		case OpMemorySize:
			if _, err := r.byte(); err != nil { // reserved byte, must be 0
				return nil, err
			}
			if m.Memory == nil {
				return nil, fail("wasm: memory.size without a memory section")
			}
			v.pushVal(I32)

		case OpMemoryGrow:
			if _, err := r.byte(); err != nil {
				return nil, err
			}
			if m.Memory == nil {
				return nil, fail("wasm: memory.grow without a memory section")
			}
			if err := v.popExpect(I32); err != nil {
				return nil, err
			}
			v.pushVal(I32)

		case OpI32Const:
			n, err := r.varI32()
			if err != nil {
				return nil, err
			}
			instr.I32 = n
			v.pushVal(I32)

		case OpI64Const:
			n, err := r.varI64()
			if err != nil {
				return nil, err
			}
			instr.I64 = n
			v.pushVal(I64)

		case OpF32Const:
			n, err := r.f32Bits()
			if err != nil {
				return nil, err
			}
			instr.F32Bits = n
			v.pushVal(F32)

		case OpF64Const:
			n, err := r.f64Bits()
			if err != nil {
				return nil, err
			}
			instr.F64Bits = n
			v.pushVal(F64)

		default:
			if isLoadStore(op) {
				if err := decodeMemArgAndValidate(r, &instr, v, m, op); err != nil {
					return nil, err
				}
			} else if sig, ok := numericSig(op); ok {
				for _, p := range reverse(sig.pops) {
					if err := v.popExpect(p); err != nil {
						return nil, err
					}
				}
				for _, r := range sig.push {
					v.pushVal(r)
				}
			} else {
				return nil, fail("wasm: unsupported opcode 0x%x", opByte)
			}
		}

		v.instrs = append(v.instrs, instr)
		trackMax()
	}

	return &CodeBody{
		Instrs:    v.instrs,
		NumLocals: len(locals),
		MaxStack:  maxStack,
		Type:      ft,
		Token:     ft.Token(),
	}, nil
}

func firstOrZero(ts []ValType) ValType {
	if len(ts) == 0 {
		return 0
	}
	return ts[0]
}

func sameArity(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != unknown && b[i] != unknown && a[i] != b[i] {
			return false
		}
	}
	return true
}

func isLoadStore(op Op) bool {
	return op >= OpI32Load && op <= OpI64Store32
}

func decodeMemArgAndValidate(r *reader, instr *Instr, v *validator, m *Module, op Op) error {
	align, err := r.varU32()
	if err != nil {
		return err
	}
	offset, err := r.varU32()
	if err != nil {
		return err
	}
	if m.Memory == nil {
		return fail("wasm: memory access without a memory section")
	}
	instr.Mem = MemArg{Align: align, Offset: offset}

	isStore := op >= OpI32Store
	var ty ValType
	switch op {
	case OpI32Load, OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U, OpI32Store, OpI32Store8, OpI32Store16:
		ty = I32
	case OpI64Load, OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI64Store, OpI64Store8, OpI64Store16, OpI64Store32:
		ty = I64
	case OpF32Load, OpF32Store:
		ty = F32
	case OpF64Load, OpF64Store:
		ty = F64
	}
	if isStore {
		if err := v.popExpect(ty); err != nil {
			return err
		}
		if err := v.popExpect(I32); err != nil {
			return err
		}
	} else {
		if err := v.popExpect(I32); err != nil {
			return err
		}
		v.pushVal(ty)
	}
	return nil
}

type numSig struct {
	pops []ValType
	push []ValType
}

// numericSig covers every remaining numeric opcode: comparisons,
// arithmetic, bitwise, conversions. It is a plain table because these
// opcodes' stack effects never depend on module context, unlike calls or
// memory ops above.
func numericSig(op Op) (numSig, bool) {
	unop := func(t ValType) numSig { return numSig{[]ValType{t}, []ValType{t}} }
	binop := func(t ValType) numSig { return numSig{[]ValType{t, t}, []ValType{t}} }
	testop := func(t ValType) numSig { return numSig{[]ValType{t}, []ValType{I32}} }
	relop := func(t ValType) numSig { return numSig{[]ValType{t, t}, []ValType{I32}} }
	conv := func(from, to ValType) numSig { return numSig{[]ValType{from}, []ValType{to}} }

	switch op {
	case OpI32Eqz:
		return testop(I32), true
	case OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU, OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU:
		return relop(I32), true
	case OpI64Eqz:
		return numSig{[]ValType{I64}, []ValType{I32}}, true
	case OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU, OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU:
		return relop(I64), true
	case OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge:
		return relop(F32), true
	case OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge:
		return relop(F64), true

	case OpI32Clz, OpI32Ctz, OpI32Popcnt:
		return unop(I32), true
	case OpI32Add, OpI32Sub, OpI32Mul, OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU,
		OpI32And, OpI32Or, OpI32Xor, OpI32Shl, OpI32ShrS, OpI32ShrU, OpI32Rotl, OpI32Rotr:
		return binop(I32), true

	case OpI64Clz, OpI64Ctz, OpI64Popcnt:
		return unop(I64), true
	case OpI64Add, OpI64Sub, OpI64Mul, OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU,
		OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64ShrS, OpI64ShrU, OpI64Rotl, OpI64Rotr:
		return binop(I64), true

	case OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt:
		return unop(F32), true
	case OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign:
		return binop(F32), true

	case OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt:
		return unop(F64), true
	case OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign:
		return binop(F64), true

	case OpI32WrapI64:
		return conv(I64, I32), true
	case OpI32TruncF32S, OpI32TruncF32U:
		return conv(F32, I32), true
	case OpI32TruncF64S, OpI32TruncF64U:
		return conv(F64, I32), true
	case OpI64ExtendI32S, OpI64ExtendI32U:
		return conv(I32, I64), true
	case OpI64TruncF32S, OpI64TruncF32U:
		return conv(F32, I64), true
	case OpI64TruncF64S, OpI64TruncF64U:
		return conv(F64, I64), true
	case OpF32ConvertI32S, OpF32ConvertI32U:
		return conv(I32, F32), true
	case OpF32ConvertI64S, OpF32ConvertI64U:
		return conv(I64, F32), true
	case OpF32DemoteF64:
		return conv(F64, F32), true
	case OpF64ConvertI32S, OpF64ConvertI32U:
		return conv(I32, F64), true
	case OpF64ConvertI64S, OpF64ConvertI64U:
		return conv(I64, F64), true
	case OpF64PromoteF32:
		return conv(F32, F64), true
	case OpI32ReinterpretF32:
		return conv(F32, I32), true
	case OpI64ReinterpretF64:
		return conv(F64, I64), true
	case OpF32ReinterpretI32:
		return conv(I32, F32), true
	case OpF64ReinterpretI64:
		return conv(I64, F64), true
	}
	return numSig{}, false
}

// validateModule runs decodeAndValidateFunc over every internal function
// and rewrites m.Funcs[i].Code in place, so that
// the whole module type-checks before the JIT writer is permitted to run.
func validateModule(m *Module) error {
	for i := range m.Funcs {
		cb, err := decodeAndValidateFunc(m, &m.Funcs[i])
		if err != nil {
			return err
		}
		m.Funcs[i].Code = cb
	}
	return nil
}
