package hostbridge

import (
	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// EthereumHost is the concrete contract a host implementation supplies to
// satisfy the "ethereum" module's EEI catalogue. Every method receives the
// per-invocation Env so it can read/write linear memory and consume gas;
// the host-side blockchain state itself (balances, storage, the call
// graph) is out of scope here and lives behind whatever State holds.
//
// Methods that read or write a fixed-size value take/return a [20]byte
// (addresses) or [32]byte (balances, hashes, storage words) array rather
// than an offset, since the offset-to-memory-slice marshaling is this package's
// job, not the host's.
type EthereumHost interface {
	UseGas(env *Env, amount int64) error
	GetGasLeft(env *Env) int64
	GetAddress(env *Env) [20]byte
	GetExternalBalance(env *Env, address [20]byte) [32]byte
	GetBlockHash(env *Env, number int64) (hash [32]byte, ok bool)
	GetCallDataSize(env *Env) int32
	GetCallData(env *Env) []byte
	GetCaller(env *Env) [20]byte
	GetCallValue(env *Env) [32]byte
	GetCode(env *Env) []byte
	GetExternalCodeSize(env *Env, address [20]byte) int32
	GetExternalCode(env *Env, address [20]byte) []byte
	GetBlockCoinbase(env *Env) [20]byte
	GetBlockDifficulty(env *Env) [32]byte
	GetBlockGasLimit(env *Env) int64
	GetTxGasPrice(env *Env) [32]byte
	Log(env *Env, data []byte, topics [][32]byte) error
	GetBlockNumber(env *Env) int64
	GetBlockTimestamp(env *Env) int64
	GetTxOrigin(env *Env) [20]byte
	StorageStore(env *Env, path [32]byte, value [32]byte) error
	StorageLoad(env *Env, path [32]byte) [32]byte
	GetReturnData(env *Env) []byte
	Call(env *Env, kind CallKind, gas int64, address [20]byte, value [32]byte, input []byte) (int32, error)
	Create(env *Env, value [32]byte, input []byte) (address [20]byte, result int32, err error)
	SelfDestruct(env *Env, beneficiary [20]byte) error
}

// CallKind distinguishes the four EEI sub-call variants; they share one
// EthereumHost.Call method because they differ only in how value and
// static-mode propagate, which the host is better placed to apply than a
// wrapper in this package.
type CallKind int

const (
	CallNormal CallKind = iota
	CallCode
	CallDelegate
	CallStatic
)

func i32(v int32) uint64 { return uint64(uint32(v)) }

func word32(env *Env, off uint32) ([32]byte, error) {
	b, err := env.Bounds(off, 32)
	if err != nil {
		return [32]byte{}, err
	}
	var w [32]byte
	copy(w[:], b)
	return w, nil
}

func addr20(env *Env, off uint32) ([20]byte, error) {
	b, err := env.Bounds(off, 20)
	if err != nil {
		return [20]byte{}, err
	}
	var a [20]byte
	copy(a[:], b)
	return a, nil
}

func writeAt(env *Env, off uint32, data []byte) error {
	dst, err := env.Bounds(off, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

func ft(params []wasm.ValType, results ...wasm.ValType) wasm.FuncType {
	return wasm.FuncType{Params: params, Results: results}
}

var v = []wasm.ValType{}
var i64v = []wasm.ValType{wasm.I64}

// RegisterEthereumInterface wires impl's methods into reg under module
// "ethereum", one Register call per EEI function, performing the pointer
// and length marshaling the original eos-vm-style host bridge did with
// wasm_type_converter specializations (an argument that is logically a
// pointer or a fixed-size word is read out of Env.Memory here rather than
// passed to the host as a raw offset).
func RegisterEthereumInterface(reg *Registry, impl EthereumHost) error {
	reg32 := []wasm.ValType{wasm.I32}
	must := func(err error) {
		if err != nil {
			panic(err) // programmer error: duplicate registration, caught at setup
		}
	}

	must(reg.Register("ethereum", "useGas", ft(i64v), func(env *Env, args []uint64) ([]uint64, error) {
		return nil, impl.UseGas(env, int64(args[0]))
	}))

	must(reg.Register("ethereum", "getGasLeft", ft(v, wasm.I64), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{uint64(impl.GetGasLeft(env))}, nil
	}))

	must(reg.Register("ethereum", "getAddress", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		a := impl.GetAddress(env)
		return nil, writeAt(env, uint32(args[0]), a[:])
	}))

	must(reg.Register("ethereum", "getExternalBalance", ft([]wasm.ValType{wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		a, err := addr20(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		bal := impl.GetExternalBalance(env, a)
		return nil, writeAt(env, uint32(args[1]), bal[:])
	}))

	must(reg.Register("ethereum", "getBlockHash", ft([]wasm.ValType{wasm.I64, wasm.I32}, wasm.I32), func(env *Env, args []uint64) ([]uint64, error) {
		hash, ok := impl.GetBlockHash(env, int64(args[0]))
		if !ok {
			return []uint64{i32(1)}, nil
		}
		if err := writeAt(env, uint32(args[1]), hash[:]); err != nil {
			return nil, err
		}
		return []uint64{i32(0)}, nil
	}))

	must(reg.Register("ethereum", "getCallDataSize", ft(v, wasm.I32), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{i32(impl.GetCallDataSize(env))}, nil
	}))

	must(reg.Register("ethereum", "callDataCopy", ft([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		data := impl.GetCallData(env)
		return nil, copySlice(env, data, args[0], args[1], args[2])
	}))

	must(reg.Register("ethereum", "getCaller", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		c := impl.GetCaller(env)
		return nil, writeAt(env, uint32(args[0]), c[:])
	}))

	must(reg.Register("ethereum", "getCallValue", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		val := impl.GetCallValue(env)
		return nil, writeAt(env, uint32(args[0]), val[:])
	}))

	must(reg.Register("ethereum", "getCodeSize", ft(v, wasm.I32), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{i32(int32(len(impl.GetCode(env))))}, nil
	}))

	must(reg.Register("ethereum", "codeCopy", ft([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		return nil, copySlice(env, impl.GetCode(env), args[0], args[1], args[2])
	}))

	must(reg.Register("ethereum", "getExternalCodeSize", ft(reg32, wasm.I32), func(env *Env, args []uint64) ([]uint64, error) {
		a, err := addr20(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		return []uint64{i32(impl.GetExternalCodeSize(env, a))}, nil
	}))

	must(reg.Register("ethereum", "externalCodeCopy", ft([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		a, err := addr20(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		return nil, copySlice(env, impl.GetExternalCode(env, a), args[1], args[2], args[3])
	}))

	must(reg.Register("ethereum", "getBlockCoinbase", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		c := impl.GetBlockCoinbase(env)
		return nil, writeAt(env, uint32(args[0]), c[:])
	}))

	must(reg.Register("ethereum", "getBlockDifficulty", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		d := impl.GetBlockDifficulty(env)
		return nil, writeAt(env, uint32(args[0]), d[:])
	}))

	must(reg.Register("ethereum", "getBlockGasLimit", ft(v, wasm.I64), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{uint64(impl.GetBlockGasLimit(env))}, nil
	}))

	must(reg.Register("ethereum", "getTxGasPrice", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		p := impl.GetTxGasPrice(env)
		return nil, writeAt(env, uint32(args[0]), p[:])
	}))

	must(reg.Register("ethereum", "log", ft([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		if err := env.CheckStatic(); err != nil {
			return nil, err
		}
		data, err := env.Bounds(uint32(args[0]), uint32(args[1]))
		if err != nil {
			return nil, err
		}
		n := args[2]
		if n > 4 {
			return nil, errorsx.New(errorsx.StatusArgumentOutOfRange, "hostbridge: log numberOfTopics %d exceeds 4", n)
		}
		topics := make([][32]byte, 0, n)
		for i := uint64(0); i < n; i++ {
			t, err := word32(env, uint32(args[3+i]))
			if err != nil {
				return nil, err
			}
			topics = append(topics, t)
		}
		return nil, impl.Log(env, data, topics)
	}))

	must(reg.Register("ethereum", "getBlockNumber", ft(v, wasm.I64), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{uint64(impl.GetBlockNumber(env))}, nil
	}))

	must(reg.Register("ethereum", "getBlockTimestamp", ft(v, wasm.I64), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{uint64(impl.GetBlockTimestamp(env))}, nil
	}))

	must(reg.Register("ethereum", "getTxOrigin", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		o := impl.GetTxOrigin(env)
		return nil, writeAt(env, uint32(args[0]), o[:])
	}))

	must(reg.Register("ethereum", "storageStore", ft([]wasm.ValType{wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		if err := env.CheckStatic(); err != nil {
			return nil, err
		}
		path, err := word32(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		val, err := word32(env, uint32(args[1]))
		if err != nil {
			return nil, err
		}
		return nil, impl.StorageStore(env, path, val)
	}))

	must(reg.Register("ethereum", "storageLoad", ft([]wasm.ValType{wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		path, err := word32(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		val := impl.StorageLoad(env, path)
		return nil, writeAt(env, uint32(args[1]), val[:])
	}))

	must(reg.Register("ethereum", "finish", ft([]wasm.ValType{wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		data, err := env.Bounds(uint32(args[0]), uint32(args[1]))
		if err != nil {
			return nil, err
		}
		env.Signal.Kind = SignalFinish
		env.Signal.Data = append([]byte(nil), data...)
		return nil, errorsx.New(errorsx.StatusSuccess, "hostbridge: finish")
	}))

	must(reg.Register("ethereum", "revert", ft([]wasm.ValType{wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		data, err := env.Bounds(uint32(args[0]), uint32(args[1]))
		if err != nil {
			return nil, err
		}
		env.Signal.Kind = SignalRevert
		env.Signal.Data = append([]byte(nil), data...)
		return nil, errorsx.New(errorsx.StatusRevert, "hostbridge: revert")
	}))

	must(reg.Register("ethereum", "getReturnDataSize", ft(v, wasm.I32), func(env *Env, args []uint64) ([]uint64, error) {
		return []uint64{i32(int32(len(impl.GetReturnData(env))))}, nil
	}))

	must(reg.Register("ethereum", "returnDataCopy", ft([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}), func(env *Env, args []uint64) ([]uint64, error) {
		return nil, copySlice(env, impl.GetReturnData(env), args[0], args[1], args[2])
	}))

	callSig := ft([]wasm.ValType{wasm.I64, wasm.I32, wasm.I32, wasm.I32, wasm.I32}, wasm.I32)
	registerCall := func(field string, kind CallKind, hasValue bool) {
		must(reg.Register("ethereum", field, callSig, func(env *Env, args []uint64) ([]uint64, error) {
			addr, err := addr20(env, uint32(args[1]))
			if err != nil {
				return nil, err
			}
			var value [32]byte
			dataOff, dataLen := args[3], args[4]
			if hasValue {
				value, err = word32(env, uint32(args[2]))
				if err != nil {
					return nil, err
				}
			} else {
				dataOff, dataLen = args[2], args[3]
			}
			input, err := env.Bounds(uint32(dataOff), uint32(dataLen))
			if err != nil {
				return nil, err
			}
			result, err := impl.Call(env, kind, int64(args[0]), addr, value, input)
			if err != nil {
				return nil, err
			}
			return []uint64{i32(result)}, nil
		}))
	}
	registerCall("call", CallNormal, true)
	registerCall("callCode", CallCode, true)
	registerCall("callDelegate", CallDelegate, false)
	registerCall("callStatic", CallStatic, false)

	must(reg.Register("ethereum", "create", ft([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32}, wasm.I32), func(env *Env, args []uint64) ([]uint64, error) {
		if err := env.CheckStatic(); err != nil {
			return nil, err
		}
		value, err := word32(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		input, err := env.Bounds(uint32(args[1]), uint32(args[2]))
		if err != nil {
			return nil, err
		}
		addr, result, err := impl.Create(env, value, input)
		if err != nil {
			return nil, err
		}
		if result == 0 {
			if err := writeAt(env, uint32(args[3]), addr[:]); err != nil {
				return nil, err
			}
		}
		return []uint64{i32(result)}, nil
	}))

	must(reg.Register("ethereum", "selfDestruct", ft(reg32), func(env *Env, args []uint64) ([]uint64, error) {
		if err := env.CheckStatic(); err != nil {
			return nil, err
		}
		a, err := addr20(env, uint32(args[0]))
		if err != nil {
			return nil, err
		}
		return nil, impl.SelfDestruct(env, a)
	}))

	return nil
}

func copySlice(env *Env, src []byte, resultOff, srcOff, length uint64) error {
	end := srcOff + length
	if end > uint64(len(src)) {
		return errorsx.New(errorsx.StatusInvalidMemoryAccess, "hostbridge: copy range [%d,%d) exceeds source length %d", srcOff, end, len(src))
	}
	return writeAt(env, uint32(resultOff), src[srcOff:end])
}
