package main

import (
	"log"

	"github.com/gowasm/eeivm/pkg/hostbridge"
)

// message carries the per-execute fields the embedding ABI's
// execute(host_ctx, message, code, code_size) call would pass as the
// opaque message struct: the pieces of block/transaction context the EEI
// getters expose to a contract.
type message struct {
	address   [20]byte
	caller    [20]byte
	origin    [20]byte
	value     [32]byte
	callData  []byte
	code      []byte
	gasPrice  [32]byte
	coinbase  [20]byte
	blockNum  int64
	blockTime int64
	gasLimit  int64
}

// demoHost is a minimal hostbridge.EthereumHost: enough state (a call-data
// buffer, a per-address storage map, static message fields) to run a
// contract standalone and observe its ExecutionResult, without the
// balance/call-graph machinery a real blockchain host would supply — that
// interface is explicitly out of scope (spec.md §1's "host-side blockchain
// state interface"). Sub-calls and contract creation are refused rather
// than simulated, since there is no second contract to call into.
type demoHost struct {
	msg          message
	storage      map[[32]byte][32]byte
	externalCode map[[20]byte][]byte
}

func newDemoHost(msg message, externalCode map[[20]byte][]byte) *demoHost {
	if externalCode == nil {
		externalCode = make(map[[20]byte][]byte)
	}
	return &demoHost{msg: msg, storage: make(map[[32]byte][32]byte), externalCode: externalCode}
}

func (h *demoHost) UseGas(env *hostbridge.Env, amount int64) error {
	return env.Gas.Consume(amount)
}

func (h *demoHost) GetGasLeft(env *hostbridge.Env) int64 { return env.Gas.Left }

func (h *demoHost) GetAddress(*hostbridge.Env) [20]byte { return h.msg.address }

func (h *demoHost) GetExternalBalance(*hostbridge.Env, [20]byte) [32]byte { return [32]byte{} }

func (h *demoHost) GetBlockHash(*hostbridge.Env, int64) ([32]byte, bool) { return [32]byte{}, false }

func (h *demoHost) GetCallDataSize(*hostbridge.Env) int32 { return int32(len(h.msg.callData)) }

func (h *demoHost) GetCallData(*hostbridge.Env) []byte { return h.msg.callData }

func (h *demoHost) GetCaller(*hostbridge.Env) [20]byte { return h.msg.caller }

func (h *demoHost) GetCallValue(*hostbridge.Env) [32]byte { return h.msg.value }

func (h *demoHost) GetCode(*hostbridge.Env) []byte { return h.msg.code }

func (h *demoHost) GetExternalCodeSize(_ *hostbridge.Env, addr [20]byte) int32 {
	return int32(len(h.externalCode[addr]))
}

func (h *demoHost) GetExternalCode(_ *hostbridge.Env, addr [20]byte) []byte {
	return h.externalCode[addr]
}

func (h *demoHost) GetBlockCoinbase(*hostbridge.Env) [20]byte { return h.msg.coinbase }

func (h *demoHost) GetBlockDifficulty(*hostbridge.Env) [32]byte { return [32]byte{} }

func (h *demoHost) GetBlockGasLimit(*hostbridge.Env) int64 { return h.msg.gasLimit }

func (h *demoHost) GetTxGasPrice(*hostbridge.Env) [32]byte { return h.msg.gasPrice }

func (h *demoHost) Log(_ *hostbridge.Env, data []byte, topics [][32]byte) error {
	log.Printf("wasmenginectl: LOG %d topics, %d bytes of data", len(topics), len(data))
	return nil
}

func (h *demoHost) GetBlockNumber(*hostbridge.Env) int64 { return h.msg.blockNum }

func (h *demoHost) GetBlockTimestamp(*hostbridge.Env) int64 { return h.msg.blockTime }

func (h *demoHost) GetTxOrigin(*hostbridge.Env) [20]byte { return h.msg.origin }

func (h *demoHost) StorageStore(_ *hostbridge.Env, path, value [32]byte) error {
	h.storage[path] = value
	return nil
}

func (h *demoHost) StorageLoad(_ *hostbridge.Env, path [32]byte) [32]byte {
	return h.storage[path]
}

func (h *demoHost) GetReturnData(*hostbridge.Env) []byte { return nil }

func (h *demoHost) Call(*hostbridge.Env, hostbridge.CallKind, int64, [20]byte, [32]byte, []byte) (int32, error) {
	return 1, nil // sub-calls always fail: no second contract to call into standalone
}

func (h *demoHost) Create(*hostbridge.Env, [32]byte, []byte) ([20]byte, int32, error) {
	return [20]byte{}, 1, nil
}

func (h *demoHost) SelfDestruct(_ *hostbridge.Env, beneficiary [20]byte) error {
	log.Printf("wasmenginectl: selfDestruct to %x (no-op standalone)", beneficiary)
	return nil
}
