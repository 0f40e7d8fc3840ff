// Package executor is the per-invocation driver: it decodes and JITs a
// contract once, then instantiates and runs it as many times as asked,
// generalizing the teacher's mode-selection split (jit_integration.go's
// GetExecutionMode/CompileForJIT/RunJIT, and the non-JIT platform stub in
// jit_stub.go) into a single Executor that always targets linux/amd64 —
// this repository does not carry the teacher's interpreter fallback,
// since the alternative interpreting backend is explicitly out of scope.
package executor

import (
	"time"

	"github.com/gowasm/eeivm/pkg/arena"
	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/hostbridge"
	"github.com/gowasm/eeivm/pkg/jitc"
	"github.com/gowasm/eeivm/pkg/memory"
	"github.com/gowasm/eeivm/pkg/modcache"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// mainExport is the one entry point the executor ever calls: spec.md's
// executor step 6 rejects a module lacking it before entering any code.
const mainExport = "main"

// Executor owns the host bridge registry every compiled module links
// against. It is created once per process (or per test) and shared by
// every invocation, matching "the host bridge's registry is written only
// before the first invocation; after that it is read-only."
type Executor struct {
	Registry *hostbridge.Registry

	// Modcache, if set, is consulted before decoding: identical bytecode
	// (the common case for a contract invoked repeatedly, or deployed at
	// several addresses) is decoded and validated at most once per
	// process. Nil disables the cache and always decodes fresh.
	Modcache *modcache.Cache
}

// New wraps an already-populated registry (typically built by
// hostbridge.RegisterEthereumInterface, optionally plus
// hostbridge.RegisterDebugInterface for debug builds).
func New(registry *hostbridge.Registry) *Executor {
	return &Executor{Registry: registry}
}

// CompiledModule is a decoded, validated, linked, and JITted contract,
// ready to be instantiated and run as many times as its bytecode is
// invoked, the "compile once" half of the teacher's CompileForJIT/RunJIT
// split.
type CompiledModule struct {
	Module *wasm.Module
	Jit    *jitc.JitModule
	Linked *hostbridge.Linked
}

// Compile decodes and validates the binary (including the preamble),
// resolves its imports against e.Registry, and JIT-compiles every
// internal function, matching spec.md §4.5 steps 1-2.
func (e *Executor) Compile(code []byte) (*CompiledModule, error) {
	mod, err := e.decode(code)
	if err != nil {
		return nil, err
	}

	linked, err := e.Registry.LinkImports(mod)
	if err != nil {
		return nil, err
	}

	ar, err := arena.New(0)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.StatusInternalError, err, "executor: arena allocation failed")
	}
	jm, err := jitc.CompileModule(mod, ar)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.StatusInternalError, err, "executor: JIT compilation failed")
	}

	return &CompiledModule{Module: mod, Jit: jm, Linked: linked}, nil
}

// decode consults e.Modcache before falling back to a fresh wasm.Decode.
func (e *Executor) decode(code []byte) (*wasm.Module, error) {
	if e.Modcache == nil {
		mod, err := wasm.Decode(code)
		if err != nil {
			return nil, errorsx.Wrap(errorsx.StatusContractValidationFailure, err, "executor: decode failed")
		}
		return mod, nil
	}
	return e.Modcache.Lookup(code)
}

// Options configures one invocation of an already-compiled module,
// spec.md §4.5 steps 3-5's inputs plus the host-state object the EEI
// callbacks read and mutate.
type Options struct {
	Gas      int64
	Static   bool
	MaxDepth int
	State    interface{}

	// Benchmark, when set, makes Run fence memory/global instantiation
	// from contract execution with separate timers, so execution time is
	// observable apart from setup — the `benchmark` embedding option.
	Benchmark bool
}

// defaultMaxDepth is the "implementation-defined small integer that
// bounds recursion" spec.md §4.5 step 5 calls for when the embedder
// leaves MaxDepth unset.
const defaultMaxDepth = 1024

// ExecutionResult is the uniform outcome spec.md §3 defines: it is
// returned whichever way the contract ends (fall-through, explicit
// finish/revert, trap, or an internal error), never a bare Go error, so
// the embedding ABI (§6) never has to special-case a panic path.
type ExecutionResult struct {
	Status      errorsx.Status
	GasLeft     int64
	ReturnValue []byte

	// Instantiation/Execution are populated only when Options.Benchmark
	// is set; both are zero otherwise.
	Instantiation time.Duration
	Execution     time.Duration
}

// Run instantiates cm (fresh linear memory, fresh globals, a fresh gas
// meter and call-depth budget) and executes its "main" export, converting
// every outcome into an ExecutionResult per spec.md §4.5 steps 3-9. It
// never returns a bare error: any failure that would abort the invocation
// is folded into the result's Status instead, since an embedder consumes
// exactly one outcome shape.
func (e *Executor) Run(cm *CompiledModule, opts Options) *ExecutionResult {
	mod := cm.Module

	export, ok := mod.Exports[mainExport]
	if !ok || export.Kind != wasm.ExportFunc {
		return &ExecutionResult{Status: errorsx.StatusContractValidationFailure}
	}

	var instantiateStart time.Time
	if opts.Benchmark {
		instantiateStart = time.Now()
	}

	mem, err := instantiateMemory(mod)
	if err != nil {
		return &ExecutionResult{Status: errorsx.StatusOf(err)}
	}

	globals, err := instantiateGlobals(mod)
	if err != nil {
		return &ExecutionResult{Status: errorsx.StatusOf(err)}
	}

	var instantiation time.Duration
	if opts.Benchmark {
		instantiation = time.Since(instantiateStart)
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	gas := &hostbridge.GasMeter{Left: opts.Gas}
	signal := &hostbridge.Signal{}
	env := &hostbridge.Env{
		Memory:   mem.Bytes(),
		Gas:      gas,
		Signal:   signal,
		Static:   opts.Static,
		Depth:    0,
		MaxDepth: maxDepth,
		State:    opts.State,
	}

	inv := &invocation{
		mod:      mod,
		jm:       cm.Jit,
		linked:   cm.Linked,
		registry: e.Registry,
		mem:      mem,
		globals:  globals,
		env:      env,
		maxDepth: maxDepth,
	}

	var executeStart time.Time
	if opts.Benchmark {
		executeStart = time.Now()
	}
	_, callErr := inv.callFunc(export.Index, nil)
	var execution time.Duration
	if opts.Benchmark {
		execution = time.Since(executeStart)
	}

	// `finish`/`revert` terminate execution by returning a typed error
	// alongside populating signal (see hostbridge.RegisterEthereumInterface);
	// a plain fall-off-the-end return leaves callErr nil and signal at its
	// zero value, which is exactly status=success with no return data.
	result := &ExecutionResult{
		GasLeft:       gas.Left,
		Status:        errorsx.StatusSuccess,
		Instantiation: instantiation,
		Execution:     execution,
	}
	if callErr != nil {
		result.Status = errorsx.StatusOf(callErr)
	}
	if result.Status == errorsx.StatusSuccess || result.Status == errorsx.StatusRevert {
		result.ReturnValue = signal.Data
	}
	return result
}

// instantiateMemory allocates linear memory per the module's declared
// initial/max pages (spec.md §4.5 step 3) and applies every active data
// segment, matching Wasm instantiation order (memory exists before data
// segments are copied in).
func instantiateMemory(mod *wasm.Module) (*memory.Memory, error) {
	var initial, max uint32
	if mod.Memory != nil {
		initial = mod.Memory.MinPages
		if mod.Memory.HasMax {
			max = mod.Memory.MaxPages
		}
	}
	mem := memory.New(initial, max)
	for _, seg := range mod.DataSegments {
		if seg.Offset < 0 {
			return nil, errorsx.New(errorsx.StatusContractValidationFailure,
				"executor: data segment has negative offset %d", seg.Offset)
		}
		if err := mem.ApplyDataSegment(uint32(seg.Offset), seg.Bytes); err != nil {
			return nil, err
		}
	}
	return mem, nil
}

// instantiateGlobals evaluates every global's constant-expression
// initializer (spec.md §4.5 step 4), in declaration order so an
// InitGlobalGet initializer can reference an already-evaluated global.
func instantiateGlobals(mod *wasm.Module) ([]uint64, error) {
	out := make([]uint64, len(mod.Globals))
	for i, g := range mod.Globals {
		switch g.InitKind {
		case wasm.InitI32Const:
			out[i] = uint64(int64(g.ConstI32))
		case wasm.InitI64Const:
			out[i] = uint64(g.ConstI64)
		case wasm.InitF32Const:
			out[i] = uint64(g.ConstF32)
		case wasm.InitF64Const:
			out[i] = g.ConstF64
		case wasm.InitGlobalGet:
			if int(g.GlobalRef) >= i {
				return nil, errorsx.New(errorsx.StatusContractValidationFailure,
					"executor: global %d initializer references a later global %d", i, g.GlobalRef)
			}
			out[i] = out[g.GlobalRef]
		default:
			return nil, errorsx.New(errorsx.StatusContractValidationFailure,
				"executor: global %d has unrecognized initializer kind", i)
		}
	}
	return out, nil
}
