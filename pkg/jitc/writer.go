package jitc

import (
	"fmt"

	"github.com/gowasm/eeivm/pkg/arena"
	"github.com/gowasm/eeivm/pkg/asmx86"
	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// perInstrBudget is the upper bound on bytes one opcode can lower to,
// used the same way the teacher's CompileBlock sizes its allocation
// (256 bytes/instruction) before a single real pass through the code.
const perInstrBudget = 224

// CompiledFunc is one function's compiled entry point plus the frame size
// the executor must allocate before invoking it.
type CompiledFunc struct {
	EntryPoint uintptr
	FrameWords int // NumLocals + MaxStack, sized by pkg/wasm's validator
	Type       wasm.FuncType
	Token      wasm.CanonicalToken
}

// JitModule is the compiled form of a wasm.Module: one CompiledFunc per
// internally defined function (imports never appear here — pkg/executor
// dispatches import calls straight to hostbridge without ever entering
// generated code for them) plus the arena backing all of it.
type JitModule struct {
	Funcs []CompiledFunc
	Arena *arena.Arena
}

// pendingJump is a forward or backward branch whose 32-bit displacement
// is patched once its target offset is known, exactly the teacher's
// pendingJump (compiler.go) generalized from PVM PCs to structured-block
// labels.
type pendingJump struct {
	patchOffset int // offset of the 4-byte displacement field
	instrEnd    int // offset of the byte right after the jump instruction
}

// ctrlFrame mirrors pkg/wasm/validate.go's ctrlFrame just enough to drive
// code generation: where this block's operand-stack height started, what
// its label branches to, and the jumps waiting on that label.
type ctrlFrame struct {
	op         wasm.Op
	height     int // operand-stack height (in words) at block entry
	resultType wasm.ValType
	hasResult  bool
	isLoop     bool
	loopStart  int      // byte offset of the loop header, branch target for br to a loop
	endJumps   []pendingJump // jumps (br/br_if/br_table/if-false) waiting for this block's end
	elseJump   *pendingJump  // the `if`'s conditional jump to its `else` (or `end`)
}

// funcWriter compiles one function's CodeBody into a contiguous run of
// machine code, tracking operand-stack height exactly the way
// pkg/wasm/validate.go's validator does so slot offsets can be computed
// without re-running full type checking (the code has already been
// validated by the time it reaches here).
type funcWriter struct {
	asm       *asmx86.Assembler
	mod       *wasm.Module
	fnIdx     uint32
	body      *wasm.CodeBody
	baseAddr  uintptr // absolute address of asm's buffer, for resume-address patching
	height    int // current operand-stack depth in words
	ctrlStack []ctrlFrame
	trapSites map[errorsx.Status]int // lazily-emitted shared trap trampolines, keyed by status
}

// localSlot returns the frame-relative byte offset of local index i.
func localSlot(i int) int32 { return int32(i * 8) }

// stackSlot returns the frame-relative byte offset of the operand-stack
// word currently at depth (0-based from the bottom of the stack, i.e. the
// value pushed height-th).
func stackSlot(body *wasm.CodeBody, depth int) int32 {
	return int32((body.NumLocals + depth) * 8)
}

func (w *funcWriter) push() int32 {
	off := stackSlot(w.body, w.height)
	w.height++
	return off
}

func (w *funcWriter) pop() int32 {
	w.height--
	return stackSlot(w.body, w.height)
}

// CompileModule compiles every internal function of mod into one shared
// arena, matching the teacher's one-ExecutableMemory-per-Runtime model
// (execmem.go) but sizing a single segment for the whole module instead
// of one allocation per basic block, since Wasm functions (unlike PVM
// blocks) are compiled and linked as a unit up front.
func CompileModule(mod *wasm.Module, ar *arena.Arena) (*JitModule, error) {
	seg, err := ar.StartCode()
	if err != nil {
		return nil, err
	}

	out := &JitModule{Arena: ar}
	nImports := mod.NumImportedFuncs()
	for i, fn := range mod.Funcs {
		fnIdx := uint32(nImports + i)
		cf, err := compileFunction(ar, mod, fnIdx, fn.Code)
		if err != nil {
			return nil, fmt.Errorf("jitc: compiling function %d: %w", fnIdx, err)
		}
		out.Funcs = append(out.Funcs, *cf)
	}

	if err := ar.EndCode(&seg, true); err != nil {
		return nil, err
	}
	return out, nil
}

func compileFunction(ar *arena.Arena, mod *wasm.Module, fnIdx uint32, body *wasm.CodeBody) (*CompiledFunc, error) {
	budget := perInstrBudget*(len(body.Instrs)+1) + 512
	addr, buf, err := ar.Alloc(budget)
	if err != nil {
		return nil, err
	}

	w := &funcWriter{
		asm:       asmx86.NewAssembler(buf),
		mod:       mod,
		fnIdx:     fnIdx,
		body:      body,
		baseAddr:  addr,
		trapSites: map[errorsx.Status]int{},
	}
	w.ctrlStack = append(w.ctrlStack, ctrlFrame{op: 0xFF, height: 0})

	w.emitPrologue()
	for i := range body.Instrs {
		if err := w.emitInstr(&body.Instrs[i]); err != nil {
			return nil, err
		}
	}
	w.emitFallOffReturn()
	w.emitTrapTrampolines()

	used := w.asm.Offset()
	ar.Reclaim(budget - used)

	return &CompiledFunc{
		EntryPoint: addr,
		FrameWords: body.NumLocals + body.MaxStack,
		Type:       body.Type,
		Token:      body.Token,
	}, nil
}

// emitPrologue saves the callee-saved registers this leg pins for its
// duration, then reloads them from NativeState, the generalization of the
// teacher's emitPrologueTo (compiler.go, "save callee-saved registers
// we're using") from PVM's 13 fixed registers to this engine's
// frame/memory/globals pointers. R14 doubles as the Go runtime's
// goroutine pointer g outside generated code, so it must come back
// exactly as CallJITCode found it before any Ret hands control back to
// Go; every setExitReason/Ret pair restores what is pushed here via
// emitEpilogueRestore. A resume point re-runs this same prologue (see
// emitResumableExit), since each leg is its own independent invocation
// from the trampoline's perspective.
func (w *funcWriter) emitPrologue() {
	a := w.asm
	a.Push(regGlobals)
	a.Push(regFrame)
	a.Push(regMemBase)
	a.MovRegMem64(regFrame, regState, stateFramePtr)
	a.MovRegMem64(regMemBase, regState, stateMemBase)
	a.MovRegMem64(regGlobals, regState, stateGlobals)
}

// emitEpilogueRestore pops the registers emitPrologue pushed, in reverse
// order, and must run immediately before every Ret this package emits.
func (w *funcWriter) emitEpilogueRestore() {
	a := w.asm
	a.Pop(regMemBase)
	a.Pop(regFrame)
	a.Pop(regGlobals)
}

// setExitReason writes the exit reason field, the one step every exit
// path (return, trap, call) shares before returning to the trampoline
// that invoked CallJITCode; mirrors emitEpilogue (compiler.go) generalized
// from a fixed (exitReason, nextPC) pair to this engine's richer
// NativeState.
func (w *funcWriter) setExitReason(reason ExitReason) {
	w.asm.MovRegImm64(regScratch, uint64(reason))
	w.asm.MovMemReg64(regState, stateExitReason, regScratch)
}

// emitFallOffReturn emits the implicit `return` a function body ends
// with when control falls off the end without an explicit `return`.
func (w *funcWriter) emitFallOffReturn() {
	w.emitReturn()
}

// emitReturn records where the function's result words sit (at the top
// of the operand stack at this point, by construction) as a frame word
// index in ResultBase and exits with ExitReturn; the executor copies them
// out of the frame from there.
func (w *funcWriter) emitReturn() {
	a := w.asm
	n := len(w.body.Type.Results)
	base := w.height - n
	if base < 0 {
		base = 0
	}
	a.MovRegImm64(regScratch2, uint64(w.body.NumLocals+base))
	a.MovMemReg64(regState, stateResultBase, regScratch2)
	a.MovRegImm64(regScratch2, uint64(n))
	a.MovMemReg64(regState, stateResultCnt, regScratch2)
	w.setExitReason(ExitReturn)
	w.emitEpilogueRestore()
	a.Ret()
}

// emitTrap exits with ExitTrap and the given status, used for
// unreachable, integer division errors, out-of-bounds memory accesses,
// and call_indirect failures.
func (w *funcWriter) emitTrap(status errorsx.Status) {
	a := w.asm
	a.MovRegImm64(regScratch2, uint64(status))
	a.MovMemReg64(regState, stateTrapStatus, regScratch2)
	w.setExitReason(ExitTrap)
	w.emitEpilogueRestore()
	a.Ret()
}

// emitTrapTrampolines is a placeholder for shared out-of-line trap stubs;
// every call site currently emits its trap inline via emitTrap, so there
// is nothing left to backpatch once the body is done. Kept as an explicit
// step (rather than removed) because branch-heavy functions with many
// float-truncation or memory-bounds checks are the ones that would most
// benefit from sharing these stubs if code size ever becomes a concern.
func (w *funcWriter) emitTrapTrampolines() {}

func (w *funcWriter) pushCtrl(op wasm.Op, bt wasm.BlockType, loopStart int) {
	f := ctrlFrame{op: op, height: w.height, isLoop: op == wasm.OpLoop, loopStart: loopStart}
	if !bt.Empty {
		f.hasResult = true
		f.resultType = bt.Val
	}
	w.ctrlStack = append(w.ctrlStack, f)
}

func (w *funcWriter) popCtrl() ctrlFrame {
	f := w.ctrlStack[len(w.ctrlStack)-1]
	w.ctrlStack = w.ctrlStack[:len(w.ctrlStack)-1]
	return f
}

func (w *funcWriter) top() *ctrlFrame { return &w.ctrlStack[len(w.ctrlStack)-1] }

// frameAt returns the ctrlFrame `depth` labels up from the innermost
// (0 = innermost), the same indexing br/br_if/br_table use.
func (w *funcWriter) frameAt(depth uint32) *ctrlFrame {
	return &w.ctrlStack[len(w.ctrlStack)-1-int(depth)]
}

// patchJump backpatches a near jump's rel32 field now that its target is
// known, via asmx86's PatchInt32 (the mechanism call_amd64/compiler.go's
// hand-rolled buf[offset+n]=byte(rel) patching generalizes to).
func (w *funcWriter) patchJump(pj pendingJump) {
	target := w.asm.Offset()
	rel := int32(target - pj.instrEnd)
	w.asm.PatchInt32(pj.patchOffset, rel)
}

func (w *funcWriter) patchAll(js []pendingJump) {
	for _, j := range js {
		w.patchJump(j)
	}
}
