package hostbridge

import "github.com/gowasm/eeivm/pkg/wasm"

// DebugHost is the optional "debug" module the executor may link in for
// debug builds only (print/printMem/printStorage); production builds
// never register it, so a contract that imports it fails linking with
// contract-validation-failure exactly like any other unresolved import.
type DebugHost interface {
	Print(env *Env, value int64)
	PrintMem(env *Env, data []byte)
	PrintStorage(env *Env, path [32]byte)
}

func RegisterDebugInterface(reg *Registry, impl DebugHost) error {
	if err := reg.Register("debug", "print", ft(i64v), func(env *Env, args []uint64) ([]uint64, error) {
		impl.Print(env, int64(args[0]))
		return nil, nil
	}); err != nil {
		return err
	}
	if err := reg.Register("debug", "printMem", ft([]wasm.ValType{wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		data, err := env.Bounds(uint32(args[0]), uint32(args[1]))
		if err != nil {
			return nil, err
		}
		impl.PrintMem(env, data)
		return nil, nil
	}); err != nil {
		return err
	}
	return reg.Register("debug", "printStorage", ft([]wasm.ValType{wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		path, err := word32(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		impl.PrintStorage(env, path)
		return nil, nil
	})
}
