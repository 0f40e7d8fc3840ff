package executor

import (
	"unsafe"

	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/hostbridge"
	"github.com/gowasm/eeivm/pkg/jitc"
	"github.com/gowasm/eeivm/pkg/jitc/native"
	"github.com/gowasm/eeivm/pkg/memory"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// invocation is the state shared by every frame of one Run call: the
// compiled artifacts, the linear memory and globals every frame addresses
// through the same pinned registers, the host-callback environment, and
// the call-depth budget spec.md §4.5 step 5 and testable property 4
// require. It is the direct counterpart of the teacher's Runtime plus a
// per-call PVM State, generalized from one fixed register file to an
// arbitrary internal call graph.
type invocation struct {
	mod      *wasm.Module
	jm       *jitc.JitModule
	linked   *hostbridge.Linked
	registry *hostbridge.Registry
	mem      *memory.Memory
	globals  []uint64
	env      *hostbridge.Env
	maxDepth int
	depth    int
}

// callFunc invokes function index fnIdx (combined index space) with args
// already marshaled as one uint64 per Wasm parameter, dispatching straight
// to the host bridge for an import and to the JIT-compiled entry point
// otherwise. It is the single recursive entry both Run's top-level "main"
// call and every internal call-boundary exit go through, so call-depth
// accounting happens in exactly one place.
func (inv *invocation) callFunc(fnIdx uint32, args []uint64) ([]uint64, error) {
	if inv.mod.IsImport(fnIdx) {
		return inv.callHost(int(fnIdx), args)
	}

	inv.depth++
	if inv.depth > inv.maxDepth {
		inv.depth--
		return nil, errorsx.New(errorsx.StatusTrap, "executor: call-depth budget of %d exceeded", inv.maxDepth)
	}
	defer func() { inv.depth-- }()

	cf := inv.jm.Funcs[int(fnIdx)-inv.mod.NumImportedFuncs()]
	frame := make([]uint64, cf.FrameWords)
	copy(frame, args)

	return inv.runFrame(&cf, frame)
}

// callHost dispatches to the registered EEI implementation via
// hostbridge.Registry.Call, refreshing env.Memory first since a prior
// memory.grow within this same invocation may have reallocated the
// backing slice out from under any snapshot taken earlier.
func (inv *invocation) callHost(fnIdx int, args []uint64) ([]uint64, error) {
	d := inv.linked.Descriptors[fnIdx]
	inv.env.Memory = inv.mem.Bytes()
	inv.env.Depth = inv.depth
	return inv.registry.Call(d.ID, inv.env, args)
}

// runFrame drives one compiled function's frame to completion: it enters
// (or resumes) generated code via native.CallJITCode and, after every
// return, switches on NativeState.ExitReason exactly as pkg/jitc/state.go
// documents each reason's contract, looping until the function returns or
// traps. Every branch that doesn't return propagates the round trip's
// outcome back into frame at ResultBase and resumes at ResumeAddr.
func (inv *invocation) runFrame(cf *jitc.CompiledFunc, frame []uint64) ([]uint64, error) {
	state := jitc.NativeState{
		FramePtr: uintptr(unsafe.Pointer(unsafe.SliceData(frame))),
		MemBase:  uintptr(unsafe.Pointer(unsafe.SliceData(inv.mem.Bytes()))),
		Globals:  uintptr(unsafe.Pointer(unsafe.SliceData(inv.globals))),
		GasLeft:  inv.env.Gas.Left,
		MemLen:   uint64(len(inv.mem.Bytes())),
	}

	entry := cf.EntryPoint
	for {
		native.CallJITCode(entry, unsafe.Pointer(&state))

		switch jitc.ExitReason(state.ExitReason) {
		case jitc.ExitReturn:
			return copyRegion(frame, state.ResultBase, state.ResultCount), nil

		case jitc.ExitTrap:
			return nil, errorsx.New(errorsx.Status(state.TrapStatus), "executor: trap")

		case jitc.ExitCallInternal:
			args := copyRegion(frame, state.ArgBase, state.ArgCount)
			results, err := inv.callFunc(uint32(state.CallTarget), args)
			if err != nil {
				return nil, err
			}
			writeRegion(frame, state.ResultBase, results)

		case jitc.ExitCallIndirect:
			results, err := inv.resolveCallIndirect(frame, &state)
			if err != nil {
				return nil, err
			}
			writeRegion(frame, state.ResultBase, results)

		case jitc.ExitCallHost:
			results, err := inv.dispatchHostExit(frame, &state)
			if err != nil {
				return nil, err
			}
			writeRegion(frame, state.ResultBase, results)

		case jitc.ExitMemoryGrow:
			if err := inv.dispatchMemoryExit(frame, &state); err != nil {
				return nil, err
			}

		default:
			return nil, errorsx.New(errorsx.StatusInternalError, "executor: unrecognized exit reason %d", state.ExitReason)
		}

		// Linear memory may have been reallocated by a memory.grow this
		// round trip (directly, or transitively through a re-entrant host
		// call); MemBase/MemLen must be current before resuming, since the
		// resume stub reloads regMemBase straight from these fields rather
		// than recomputing anything.
		state.MemBase = uintptr(unsafe.Pointer(unsafe.SliceData(inv.mem.Bytes())))
		state.MemLen = uint64(len(inv.mem.Bytes()))
		state.GasLeft = inv.env.Gas.Left
		entry = state.ResumeAddr
	}
}

// resolveCallIndirect resolves a call_indirect's table slot against the
// module's current table contents and checks the callee's canonical type
// token against the caller's wanted type, the runtime half of spec.md
// §4.3's call_indirect lowering (the JIT itself only checked the slot
// index against the table's length; everything requiring the table's
// actual contents happens here, since generated code never observes them
// directly).
func (inv *invocation) resolveCallIndirect(frame []uint64, state *jitc.NativeState) ([]uint64, error) {
	tbl := inv.mod.Table
	slot := uint32(state.CallTarget)
	if tbl == nil || slot >= uint32(len(tbl.Elements)) || !tbl.HasElem[slot] {
		return nil, errorsx.New(errorsx.StatusTrap, "executor: call_indirect: table index %d out of range", slot)
	}
	fnIdx := tbl.Elements[slot]
	wantType := inv.mod.Types[uint32(state.TrapStatus)]
	if inv.mod.FuncType(fnIdx).Token() != wantType.Token() {
		return nil, errorsx.New(errorsx.StatusTrap, "executor: call_indirect: type mismatch at table index %d", slot)
	}
	args := copyRegion(frame, state.ArgBase, state.ArgCount)
	return inv.callFunc(fnIdx, args)
}

// dispatchHostExit handles ExitCallHost, which carries either a real
// import's combined-index-space function index or one of pkg/jitc's own
// float-helper sentinels (floatHelperMarker), distinguished by the marker
// bit no real function index can ever set.
func (inv *invocation) dispatchHostExit(frame []uint64, state *jitc.NativeState) ([]uint64, error) {
	if op, ok := jitc.FloatHelperOp(state.CallTarget); ok {
		in := frame[state.ArgBase]
		out, err := evalFloatHelper(op, in)
		if err != nil {
			return nil, err
		}
		return []uint64{out}, nil
	}
	args := copyRegion(frame, state.ArgBase, state.ArgCount)
	return inv.callHost(int(state.CallTarget), args)
}

// dispatchMemoryExit handles ExitMemoryGrow, covering both memory.size
// and memory.grow (distinguished by CallTarget's sentinel value), writing
// its single result word directly into frame since neither request goes
// through the host bridge.
func (inv *invocation) dispatchMemoryExit(frame []uint64, state *jitc.NativeState) error {
	switch state.CallTarget {
	case jitc.InstrMemorySizeMarker:
		frame[state.ResultBase] = uint64(inv.mem.Pages())
	case jitc.InstrMemoryGrowMarker:
		delta := uint32(frame[state.ArgBase])
		prev := inv.mem.Grow(delta)
		frame[state.ResultBase] = uint64(int64(prev))
	default:
		return errorsx.New(errorsx.StatusInternalError, "executor: unrecognized memory exit marker %d", state.CallTarget)
	}
	return nil
}

// copyRegion returns a fresh slice holding frame[base:base+count]; the
// copy (rather than a sub-slice) means nothing downstream can accidentally
// alias and mutate the frame through a results slice.
func copyRegion(frame []uint64, base, count uint64) []uint64 {
	if count == 0 {
		return nil
	}
	out := make([]uint64, count)
	copy(out, frame[base:base+count])
	return out
}

func writeRegion(frame []uint64, base uint64, values []uint64) {
	copy(frame[base:base+uint64(len(values))], values)
}
