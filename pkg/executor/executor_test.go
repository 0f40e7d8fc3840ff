//go:build linux && amd64

package executor

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/mock/gomock"

	"github.com/gowasm/eeivm/pkg/errorsx"
	"github.com/gowasm/eeivm/pkg/hostbridge"
	"github.com/gowasm/eeivm/pkg/hostbridge/hostbridgemock"
	"github.com/gowasm/eeivm/pkg/wasm"
)

// ignoreBenchmarkTimers excludes the two Duration fields Run only
// populates under Options.Benchmark, so cmp.Diff can assert the rest of
// an ExecutionResult exactly regardless of whether a given test enables
// benchmarking.
var ignoreBenchmarkTimers = cmpopts.IgnoreFields(ExecutionResult{}, "Instantiation", "Execution")

func leb128u(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func leb128s(buf *bytes.Buffer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}

func sec(id byte, body []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(id)
	leb128u(&out, uint64(len(body)))
	out.Write(body)
	return out.Bytes()
}

func preamble() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 1, 0, 0, 0}
}

// noArgMainModule builds a module whose sole internal function is exported
// as "main", taking no parameters and returning nothing, running exactly
// the instructions in body.
func noArgMainModule(t *testing.T, body []byte) []byte {
	t.Helper()

	var typeSec bytes.Buffer
	leb128u(&typeSec, 1)
	typeSec.WriteByte(0x60)
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0)

	var exportSec bytes.Buffer
	leb128u(&exportSec, 1)
	leb128u(&exportSec, uint64(len("main")))
	exportSec.WriteString("main")
	exportSec.WriteByte(0x00)
	leb128u(&exportSec, 0)

	var fnBody bytes.Buffer
	leb128u(&fnBody, 0) // 0 local groups
	fnBody.Write(body)

	var codeSec bytes.Buffer
	leb128u(&codeSec, 1)
	leb128u(&codeSec, uint64(fnBody.Len()))
	codeSec.Write(fnBody.Bytes())

	var out bytes.Buffer
	out.Write(preamble())
	out.Write(sec(1, typeSec.Bytes()))
	out.Write(sec(3, funcSec.Bytes()))
	out.Write(sec(7, exportSec.Bytes()))
	out.Write(sec(10, codeSec.Bytes()))
	return out.Bytes()
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	reg := hostbridge.NewRegistry()
	if err := hostbridge.RegisterEthereumInterface(reg, &stubHost{}); err != nil {
		t.Fatalf("RegisterEthereumInterface: %v", err)
	}
	return New(reg)
}

// stubHost answers every EEI call with a zero value; only the tests that
// actually exercise a particular callback (via a real invocation) rely on
// it doing anything beyond satisfying the interface.
type stubHost struct{}

func (stubHost) UseGas(env *hostbridge.Env, amount int64) error { return env.Gas.Consume(amount) }
func (stubHost) GetGasLeft(env *hostbridge.Env) int64           { return env.Gas.Left }
func (stubHost) GetAddress(*hostbridge.Env) [20]byte            { return [20]byte{} }
func (stubHost) GetExternalBalance(*hostbridge.Env, [20]byte) [32]byte { return [32]byte{} }
func (stubHost) GetBlockHash(*hostbridge.Env, int64) ([32]byte, bool)  { return [32]byte{}, false }
func (stubHost) GetCallDataSize(*hostbridge.Env) int32                 { return 0 }
func (stubHost) GetCallData(*hostbridge.Env) []byte                    { return nil }
func (stubHost) GetCaller(*hostbridge.Env) [20]byte                    { return [20]byte{} }
func (stubHost) GetCallValue(*hostbridge.Env) [32]byte                 { return [32]byte{} }
func (stubHost) GetCode(*hostbridge.Env) []byte                        { return nil }
func (stubHost) GetExternalCodeSize(*hostbridge.Env, [20]byte) int32   { return 0 }
func (stubHost) GetExternalCode(*hostbridge.Env, [20]byte) []byte      { return nil }
func (stubHost) GetBlockCoinbase(*hostbridge.Env) [20]byte             { return [20]byte{} }
func (stubHost) GetBlockDifficulty(*hostbridge.Env) [32]byte           { return [32]byte{} }
func (stubHost) GetBlockGasLimit(*hostbridge.Env) int64                { return 0 }
func (stubHost) GetTxGasPrice(*hostbridge.Env) [32]byte                { return [32]byte{} }
func (stubHost) Log(*hostbridge.Env, []byte, [][32]byte) error         { return nil }
func (stubHost) GetBlockNumber(*hostbridge.Env) int64                  { return 0 }
func (stubHost) GetBlockTimestamp(*hostbridge.Env) int64               { return 0 }
func (stubHost) GetTxOrigin(*hostbridge.Env) [20]byte                  { return [20]byte{} }
func (stubHost) StorageStore(*hostbridge.Env, [32]byte, [32]byte) error { return nil }
func (stubHost) StorageLoad(*hostbridge.Env, [32]byte) [32]byte        { return [32]byte{} }
func (stubHost) GetReturnData(*hostbridge.Env) []byte                  { return nil }
func (stubHost) Call(*hostbridge.Env, hostbridge.CallKind, int64, [20]byte, [32]byte, []byte) (int32, error) {
	return 1, nil
}
func (stubHost) Create(*hostbridge.Env, [32]byte, []byte) ([20]byte, int32, error) {
	return [20]byte{}, 1, nil
}
func (stubHost) SelfDestruct(*hostbridge.Env, [20]byte) error { return nil }

// TestRunEmptyFinish is scenario S1: a "main" that merely falls off the
// end succeeds with no return value and an untouched gas budget.
func TestRunEmptyFinish(t *testing.T) {
	e := newTestExecutor(t)
	code := noArgMainModule(t, []byte{byte(wasm.OpEnd)})

	cm, err := e.Compile(code)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 1000})
	want := &ExecutionResult{Status: errorsx.StatusSuccess, GasLeft: 1000}
	if diff := cmp.Diff(want, result, ignoreBenchmarkTimers); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// TestRunRevertLiteral is scenario S2: main calls ethereum.revert with a
// literal payload sitting in a data segment, and the executor surfaces
// that payload as the ExecutionResult's return value under status=revert.
func TestRunRevertLiteral(t *testing.T) {
	e := newTestExecutor(t)

	var typeSec bytes.Buffer
	leb128u(&typeSec, 2)
	typeSec.WriteByte(0x60) // type 0: main () -> ()
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)
	typeSec.WriteByte(0x60) // type 1: revert (i32,i32) -> ()
	leb128u(&typeSec, 2)
	typeSec.WriteByte(byte(wasm.I32))
	typeSec.WriteByte(byte(wasm.I32))
	leb128u(&typeSec, 0)

	var importSec bytes.Buffer
	leb128u(&importSec, 1)
	leb128u(&importSec, uint64(len("ethereum")))
	importSec.WriteString("ethereum")
	leb128u(&importSec, uint64(len("revert")))
	importSec.WriteString("revert")
	importSec.WriteByte(0x00) // func import
	leb128u(&importSec, 1)    // type index 1

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0) // main uses type 0

	var memSec bytes.Buffer
	leb128u(&memSec, 1)
	memSec.WriteByte(0)
	leb128u(&memSec, 1)

	var exportSec bytes.Buffer
	leb128u(&exportSec, 1)
	leb128u(&exportSec, uint64(len("main")))
	exportSec.WriteString("main")
	exportSec.WriteByte(0x00)
	leb128u(&exportSec, 1) // combined index 1: import 0, main is 1

	payload := []byte("nope")
	var body bytes.Buffer
	leb128u(&body, 0) // 0 local groups
	body.WriteByte(byte(wasm.OpI32Const))
	leb128s(&body, 0) // offset
	body.WriteByte(byte(wasm.OpI32Const))
	leb128s(&body, int64(len(payload)))
	body.WriteByte(byte(wasm.OpCall))
	leb128u(&body, 0) // call import 0 (revert)
	body.WriteByte(byte(wasm.OpEnd))

	var codeSec bytes.Buffer
	leb128u(&codeSec, 1)
	leb128u(&codeSec, uint64(body.Len()))
	codeSec.Write(body.Bytes())

	var dataSec bytes.Buffer
	leb128u(&dataSec, 1)
	leb128u(&dataSec, 0)
	dataSec.WriteByte(byte(wasm.OpI32Const))
	leb128s(&dataSec, 0)
	dataSec.WriteByte(byte(wasm.OpEnd))
	leb128u(&dataSec, uint64(len(payload)))
	dataSec.Write(payload)

	var out bytes.Buffer
	out.Write(preamble())
	out.Write(sec(1, typeSec.Bytes()))
	out.Write(sec(2, importSec.Bytes()))
	out.Write(sec(3, funcSec.Bytes()))
	out.Write(sec(5, memSec.Bytes()))
	out.Write(sec(7, exportSec.Bytes()))
	out.Write(sec(10, codeSec.Bytes()))
	out.Write(sec(11, dataSec.Bytes()))

	cm, err := e.Compile(out.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 1000})
	want := &ExecutionResult{Status: errorsx.StatusRevert, GasLeft: 1000, ReturnValue: payload}
	if diff := cmp.Diff(want, result, ignoreBenchmarkTimers); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// TestRunDivideByZeroTraps is scenario S5.
func TestRunDivideByZeroTraps(t *testing.T) {
	e := newTestExecutor(t)
	var body bytes.Buffer
	body.WriteByte(byte(wasm.OpI32Const))
	leb128s(&body, 1)
	body.WriteByte(byte(wasm.OpI32Const))
	leb128s(&body, 0)
	body.WriteByte(byte(wasm.OpI32DivS))
	body.WriteByte(byte(wasm.OpDrop))
	body.WriteByte(byte(wasm.OpEnd))

	cm, err := e.Compile(noArgMainModule(t, body.Bytes()))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 1000})
	want := &ExecutionResult{Status: errorsx.StatusTrap, GasLeft: 1000}
	if diff := cmp.Diff(want, result, ignoreBenchmarkTimers); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// TestRunOutOfGas (below) is scenario S3: main calls useGas once with more
// than the budget allows (no loop needed to observe the same choke point
// a real loop would hit).
// useGasMainModule builds a module whose "main" calls ethereum.useGas
// exactly once with the literal amount given.
func useGasMainModule(t *testing.T, amount int64) []byte {
	t.Helper()

	var typeSec bytes.Buffer
	leb128u(&typeSec, 2)
	typeSec.WriteByte(0x60) // type 0: main () -> ()
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)
	typeSec.WriteByte(0x60) // type 1: useGas (i64) -> ()
	leb128u(&typeSec, 1)
	typeSec.WriteByte(byte(wasm.I64))
	leb128u(&typeSec, 0)

	var importSec bytes.Buffer
	leb128u(&importSec, 1)
	leb128u(&importSec, uint64(len("ethereum")))
	importSec.WriteString("ethereum")
	leb128u(&importSec, uint64(len("useGas")))
	importSec.WriteString("useGas")
	importSec.WriteByte(0x00)
	leb128u(&importSec, 1)

	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0)

	var exportSec bytes.Buffer
	leb128u(&exportSec, 1)
	leb128u(&exportSec, uint64(len("main")))
	exportSec.WriteString("main")
	exportSec.WriteByte(0x00)
	leb128u(&exportSec, 1)

	var body bytes.Buffer
	leb128u(&body, 0)
	body.WriteByte(byte(wasm.OpI64Const))
	leb128s(&body, amount)
	body.WriteByte(byte(wasm.OpCall))
	leb128u(&body, 0)
	body.WriteByte(byte(wasm.OpEnd))

	var codeSec bytes.Buffer
	leb128u(&codeSec, 1)
	leb128u(&codeSec, uint64(body.Len()))
	codeSec.Write(body.Bytes())

	var out bytes.Buffer
	out.Write(preamble())
	out.Write(sec(1, typeSec.Bytes()))
	out.Write(sec(2, importSec.Bytes()))
	out.Write(sec(3, funcSec.Bytes()))
	out.Write(sec(7, exportSec.Bytes()))
	out.Write(sec(10, codeSec.Bytes()))
	return out.Bytes()
}

func TestRunOutOfGas(t *testing.T) {
	e := newTestExecutor(t)

	cm, err := e.Compile(useGasMainModule(t, 1_000_000))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 10})
	want := &ExecutionResult{Status: errorsx.StatusOutOfGas, GasLeft: 0}
	if diff := cmp.Diff(want, result, ignoreBenchmarkTimers); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

// TestRunUseGasDispatchesToHostExactlyOnce drives the same module through
// a go.uber.org/mock double instead of stubHost, asserting the exact EEI
// call the compiled contract makes rather than just its externally
// observable outcome.
func TestRunUseGasDispatchesToHostExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := hostbridgemock.NewMockEthereumHost(ctrl)
	host.EXPECT().UseGas(gomock.Any(), int64(1_000_000)).Return(nil).Times(1)

	reg := hostbridge.NewRegistry()
	if err := hostbridge.RegisterEthereumInterface(reg, host); err != nil {
		t.Fatalf("RegisterEthereumInterface: %v", err)
	}
	e := New(reg)

	cm, err := e.Compile(useGasMainModule(t, 1_000_000))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 10})
	want := &ExecutionResult{Status: errorsx.StatusSuccess, GasLeft: 10}
	if diff := cmp.Diff(want, result, ignoreBenchmarkTimers); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMissingMainExportFails(t *testing.T) {
	e := newTestExecutor(t)

	var typeSec bytes.Buffer
	leb128u(&typeSec, 1)
	typeSec.WriteByte(0x60)
	leb128u(&typeSec, 0)
	leb128u(&typeSec, 0)
	var funcSec bytes.Buffer
	leb128u(&funcSec, 1)
	leb128u(&funcSec, 0)
	var body bytes.Buffer
	leb128u(&body, 0)
	body.WriteByte(byte(wasm.OpEnd))
	var codeSec bytes.Buffer
	leb128u(&codeSec, 1)
	leb128u(&codeSec, uint64(body.Len()))
	codeSec.Write(body.Bytes())

	var out bytes.Buffer
	out.Write(preamble())
	out.Write(sec(1, typeSec.Bytes()))
	out.Write(sec(3, funcSec.Bytes()))
	out.Write(sec(10, codeSec.Bytes()))

	cm, err := e.Compile(out.Bytes())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 1000})
	if result.Status != errorsx.StatusContractValidationFailure {
		t.Fatalf("Status = %v, want contract-validation-failure for a module with no main export", result.Status)
	}
}

func TestCompileRejectsGarbage(t *testing.T) {
	e := newTestExecutor(t)
	if _, err := e.Compile([]byte("not wasm")); err == nil {
		t.Fatal("expected Compile to reject non-Wasm input")
	}
}

func TestRunBenchmarkPopulatesTimers(t *testing.T) {
	e := newTestExecutor(t)
	cm, err := e.Compile(noArgMainModule(t, []byte{byte(wasm.OpEnd)}))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 1000, Benchmark: true})
	if result.Status != errorsx.StatusSuccess {
		t.Fatalf("Status = %v, want success", result.Status)
	}
	if result.Instantiation < 0 || result.Execution < 0 {
		t.Fatalf("negative benchmark timer: instantiation=%v execution=%v", result.Instantiation, result.Execution)
	}
}

func TestRunWithoutBenchmarkLeavesTimersZero(t *testing.T) {
	e := newTestExecutor(t)
	cm, err := e.Compile(noArgMainModule(t, []byte{byte(wasm.OpEnd)}))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	result := e.Run(cm, Options{Gas: 1000})
	if result.Instantiation != 0 || result.Execution != 0 {
		t.Fatalf("expected zero timers without Benchmark, got instantiation=%v execution=%v", result.Instantiation, result.Execution)
	}
}
