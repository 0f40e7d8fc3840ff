//go:build linux && amd64

// Package native is the pure Go assembly bridge from the executor's Go
// call into one leg of JIT-compiled code, the direct counterpart of the
// teacher's asm.CallJITCode (pkg/pvm/jit/asm/trampoline.go). Unlike the
// teacher's version, CallJITCode here has no meaningful register return
// values: every outcome (exit reason, call target, trap status, resume
// address) is written by generated code into the NativeState the caller
// already holds a pointer to, so there is nothing left for RAX/RDX to
// usefully carry back.
package native

import "unsafe"

// CallJITCode transfers control to entryPoint with statePtr loaded into
// RDI per the System V AMD64 calling convention pkg/jitc's generated code
// assumes, and returns once that leg of code executes its `ret` (at a
// return, trap, or call-boundary exit). Besides that call/ret pair, the
// generated code touches RSP only to push and pop the three registers its
// prologue saves; the operand stack and locals of the invocation live in
// the explicit frame regFrame addresses, not on the native machine stack,
// so this call cannot grow or corrupt the calling goroutine's stack.
//
// statePtr is unsafe.Pointer rather than uintptr, matching the teacher's
// own callJITCode signature (call_amd64.go): it keeps the NativeState
// (and, transitively via the fields the caller populated before the call,
// the invocation's frame and linear memory) visible to the garbage
// collector for the duration of the call, which a bare uintptr would not.
func CallJITCode(entryPoint uintptr, statePtr unsafe.Pointer)
