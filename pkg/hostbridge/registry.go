// Package hostbridge implements the registry and calling convention
// described for the host bridge: a process-wide table mapping
// (module_name, field_name) to a host function descriptor, import linking
// by name-and-signature match, and the shim that converts a host
// callback's panics into typed traps rather than letting them cross a
// JITted frame with no unwind tables.
//
// The registration API generalizes the teacher's HostFunctionIdentifier
// enum plus generic HostFunction[T any] dispatch (pkg/pvm/hostfunctions.go)
// into an open Register(module, field, signature, fn) call, since the EEI
// catalogue is a fixed but externally supplied set of callbacks rather
// than a closed enum baked into this engine.
package hostbridge

import (
	"fmt"

	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// HostFunc is the shape every registered EEI callback takes. args holds
// one uint64 slot per Wasm parameter (i32 values sign/zero-extended into
// the low 32 bits per the caller's convention); the return slice has zero
// or one element, matching the Wasm signature's result arity.
type HostFunc func(env *Env, args []uint64) ([]uint64, error)

// Descriptor is one registered host function.
type Descriptor struct {
	Module string
	Field  string
	Sig    wasm.FuncType
	Fn     HostFunc

	// ID is the descriptor's position in registration order, the index
	// Registry.Call dispatches on; pkg/executor reaches it through
	// Linked.Descriptors, and generated code never sees it.
	ID int
}

// Registry is the process-wide (module, field) -> Descriptor table. It is
// written only during setup and is safe for concurrent read-only use by
// every invocation afterward, matching the "written once, read-only after
// the first invocation" resource-sharing rule for the host bridge.
type Registry struct {
	byKey []Descriptor
	index map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: map[string]int{}}
}

func key(module, field string) string { return module + "\x00" + field }

// Register adds a host function under (module, field) with the given
// signature. Re-registering the same (module, field) is rejected: the
// registry is meant to be populated once at engine setup.
func (r *Registry) Register(module, field string, sig wasm.FuncType, fn HostFunc) error {
	k := key(module, field)
	if _, exists := r.index[k]; exists {
		return fmt.Errorf("hostbridge: %s.%s already registered", module, field)
	}
	d := Descriptor{Module: module, Field: field, Sig: sig, Fn: fn, ID: len(r.byKey)}
	r.index[k] = len(r.byKey)
	r.byKey = append(r.byKey, d)
	return nil
}

// Resolve looks up a descriptor by name only, used by import linking to
// distinguish "unknown import" from "signature mismatch".
func (r *Registry) Resolve(module, field string) (*Descriptor, bool) {
	idx, ok := r.index[key(module, field)]
	if !ok {
		return nil, false
	}
	return &r.byKey[idx], true
}

// Descriptor returns the descriptor registered under id (its registration
// index).
func (r *Registry) Descriptor(id int) *Descriptor {
	return &r.byKey[id]
}

// Linked is the per-module result of LinkImports: one descriptor per
// import, in the module's import order, ready to burn into
// function_entry[i] for i < NumImportedFuncs.
type Linked struct {
	Descriptors []*Descriptor
}

// LinkImports resolves every import of mod against the registry, matching
// both name and signature; a name that resolves to a different signature,
// or a name absent from the registry entirely, is a validation failure
// caught before the JIT writer emits any code.
func (r *Registry) LinkImports(mod *wasm.Module) (*Linked, error) {
	out := &Linked{Descriptors: make([]*Descriptor, len(mod.Imports))}
	for i, imp := range mod.Imports {
		d, ok := r.Resolve(imp.Module, imp.Field)
		if !ok {
			return nil, errorsx.New(errorsx.StatusContractValidationFailure,
				"hostbridge: unresolved import %s.%s", imp.Module, imp.Field)
		}
		want := mod.Types[imp.TypeIndex]
		if !sameSignature(d.Sig, want) {
			return nil, errorsx.New(errorsx.StatusContractValidationFailure,
				"hostbridge: import %s.%s signature mismatch: registry has %v, module wants %v",
				imp.Module, imp.Field, d.Sig, want)
		}
		out.Descriptors[i] = d
	}
	return out, nil
}

func sameSignature(a, b wasm.FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

// Call is the "call_host_function(ctx, value_stack, idx)" shim pkg/executor
// invokes when generated code exits for an imported function. It wraps the callback so that
// any native exception (in Go, a panic) is converted into a typed trap
// instead of propagating through the JITted caller's frame, which has no
// unwind tables to walk.
func (r *Registry) Call(id int, env *Env, args []uint64) (result []uint64, err error) {
	d := r.Descriptor(id)
	defer func() {
		if p := recover(); p != nil {
			err = errorsx.New(errorsx.StatusTrap, "hostbridge: host function %s.%s panicked: %v", d.Module, d.Field, p)
			result = nil
		}
	}()
	return d.Fn(env, args)
}
