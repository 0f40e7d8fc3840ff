package hostbridge

import (
	"testing"

	"github.com/gowasm/eeivm/pkg/wasm"
)

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	sig := wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}}
	called := false
	if err := reg.Register("ethereum", "getCallDataSize", sig, func(env *Env, args []uint64) ([]uint64, error) {
		called = true
		return []uint64{7}, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d, ok := reg.Resolve("ethereum", "getCallDataSize")
	if !ok {
		t.Fatal("Resolve: not found")
	}
	res, err := reg.Call(d.ID, &Env{}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !called || len(res) != 1 || res[0] != 7 {
		t.Fatalf("unexpected call result: called=%v res=%v", called, res)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	reg := NewRegistry()
	fn := func(env *Env, args []uint64) ([]uint64, error) { return nil, nil }
	if err := reg.Register("ethereum", "finish", wasm.FuncType{}, fn); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := reg.Register("ethereum", "finish", wasm.FuncType{}, fn); err == nil {
		t.Fatal("expected error re-registering the same (module, field)")
	}
}

func TestLinkImportsSignatureMismatch(t *testing.T) {
	reg := NewRegistry()
	fn := func(env *Env, args []uint64) ([]uint64, error) { return nil, nil }
	if err := reg.Register("ethereum", "useGas", wasm.FuncType{Params: []wasm.ValType{wasm.I64}}, fn); err != nil {
		t.Fatalf("Register: %v", err)
	}

	mod := &wasm.Module{
		Types:   []wasm.FuncType{{Params: []wasm.ValType{wasm.I32}}},
		Imports: []wasm.Import{{Module: "ethereum", Field: "useGas", TypeIndex: 0}},
	}
	if _, err := reg.LinkImports(mod); err == nil {
		t.Fatal("expected signature mismatch error")
	}
}

func TestLinkImportsUnresolved(t *testing.T) {
	reg := NewRegistry()
	mod := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Imports: []wasm.Import{{Module: "ethereum", Field: "doesNotExist", TypeIndex: 0}},
	}
	if _, err := reg.LinkImports(mod); err == nil {
		t.Fatal("expected unresolved-import error")
	}
}

func TestCallRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("ethereum", "boom", wasm.FuncType{}, func(env *Env, args []uint64) ([]uint64, error) {
		panic("kaboom")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, _ := reg.Resolve("ethereum", "boom")
	if _, err := reg.Call(d.ID, &Env{}, nil); err == nil {
		t.Fatal("expected panic to be converted into an error")
	}
}

func TestGasMeterOutOfGas(t *testing.T) {
	g := &GasMeter{Left: 10}
	if err := g.Consume(5); err != nil {
		t.Fatalf("Consume(5): %v", err)
	}
	if g.Left != 5 {
		t.Fatalf("Left = %d, want 5", g.Left)
	}
	if err := g.Consume(100); err == nil {
		t.Fatal("expected out-of-gas error")
	}
	if g.Left != 0 {
		t.Fatalf("Left after exhaustion = %d, want 0", g.Left)
	}
}
