// Package wasm decodes and validates the WebAssembly 1.0 MVP binary format
// into an in-memory Module, the input the JIT writer (pkg/jitc) consumes.
// It follows the teacher's decoding idiom from pkg/pvm/jit/compiler.go's
// ParsedInstruction pass: a single forward scan that both decodes and
// validates in one pass, raising a typed *errorsx.EngineError the moment a
// module is malformed rather than collecting a list of complaints.
package wasm

// ValType is one of the four Wasm 1.0 value types.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "invalid"
	}
}

func (v ValType) valid() bool {
	switch v {
	case I32, I64, F32, F64:
		return true
	default:
		return false
	}
}

// FuncType is a function-type signature: an ordered parameter list and an
// ordered result list (Wasm 1.0 permits at most one result).
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// CanonicalToken is the value call_indirect compares at runtime: a stable,
// content-derived encoding of a FuncType. The executor compares the callee's
// token with the expected one before it dispatches an indirect call.
type CanonicalToken uint64

func (t FuncType) Token() CanonicalToken {
	var h uint64 = 1469598103934665603 // FNV offset basis
	mix := func(b byte) {
		h ^= uint64(b)
		h *= 1099511628211 // FNV prime
	}
	mix(byte(len(t.Params)))
	for _, p := range t.Params {
		mix(byte(p))
	}
	mix(byte(len(t.Results)))
	for _, r := range t.Results {
		mix(byte(r))
	}
	return CanonicalToken(h)
}

// Import describes one imported function. Wasm 1.0 also permits imported
// tables/memories/globals; this engine only imports functions (
// the host bridge registry is a function registry), so table/memory/global
// imports are rejected at decode time as unsupported constructs.
type Import struct {
	Module    string
	Field     string
	TypeIndex uint32
}

// FuncDecl is one internally defined function: its type, its raw code
// body bytes, and the validated CodeBody.
type FuncDecl struct {
	TypeIndex uint32
	Locals    []ValType // left nil by Decode; CodeBody.NumLocals counts params plus declared locals
	Body      []byte    // raw body bytes (local declarations and expression), validated by validateModule
	Code      *CodeBody // filled in by validateModule
}

// CodeBody is the validated instruction stream for one function, plus the
// canonical type token used by call_indirect and by call-site type checks.
type CodeBody struct {
	Instrs      []Instr
	NumLocals   int // params + declared locals
	MaxStack    int // high-water mark of operand-stack depth, sizes the JIT's per-function stack reservation
	Type        FuncType
	Token       CanonicalToken
}

// Table is the single funcref table Wasm 1.0 permits.
type Table struct {
	Min uint32
	Max uint32 // 0 with HasMax=false meaning unbounded
	HasMax bool
	// Elements maps table slot -> function index (imports first, then
	// internals), populated from the elem section. A zero-valued unset
	// entry means "trap on call_indirect".
	Elements []uint32
	HasElem  []bool
}

// Memory is the single linear-memory descriptor Wasm 1.0 permits.
type Memory struct {
	MinPages uint32
	MaxPages uint32
	HasMax   bool
}

// Global is one module-level global cell.
type Global struct {
	Type    ValType
	Mutable bool
	// Init is the constant-expression initializer: exactly one of the
	// following is meaningful, selected by InitKind.
	InitKind  InitExprKind
	ConstI32  int32
	ConstI64  int64
	ConstF32  uint32 // raw bits
	ConstF64  uint64 // raw bits
	GlobalRef uint32 // global.get index, for global-of-global initializers
}

type InitExprKind byte

const (
	InitI32Const InitExprKind = iota
	InitI64Const
	InitF32Const
	InitF64Const
	InitGlobalGet
)

// Export associates a name with an index-space reference. Wasm 1.0 permits
// exporting functions, tables, memories, and globals; this engine only
// resolves function exports (the executor's lookup of "main" is the only
// §4.5), but table/memory/global exports still decode successfully since a
// module compiled by a generic toolchain may emit them incidentally (e.g.
// exporting "memory").
type Export struct {
	Name string
	Kind ExportKind
	Index uint32
}

type ExportKind byte

const (
	ExportFunc ExportKind = iota
	ExportTable
	ExportMemory
	ExportGlobal
)

// Module is the fully decoded and validated description of one Wasm
// binary.
type Module struct {
	Types    []FuncType
	Imports  []Import // functions only
	Funcs    []FuncDecl
	Table    *Table
	Memory   *Memory
	Globals  []Global
	Exports  map[string]Export

	// FuncTypeIndex maps a function's position in the combined
	// index space (imports first, then internals) to its TypeIndex,
	// used throughout pkg/jitc for signature lookups without having to
	// re-derive whether an index names an import or an internal.
	FuncTypeIndex []uint32

	// DataSegments are the active data-section initializers, applied by
	// the executor to linear memory at instantiation.
	DataSegments []DataSegment
}

// NumImportedFuncs reports how many entries of the combined function index
// space are imports (they precede internals, per the Wasm spec and per
// invariant every consumer relies on).
func (m *Module) NumImportedFuncs() int { return len(m.Imports) }

// FuncType returns the signature of function index idx in the combined
// (imports-then-internals) index space.
func (m *Module) FuncType(idx uint32) FuncType {
	return m.Types[m.FuncTypeIndex[idx]]
}

// IsImport reports whether idx names an imported function.
func (m *Module) IsImport(idx uint32) bool {
	return int(idx) < len(m.Imports)
}
