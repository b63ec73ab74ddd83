package wasm

import (
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	abi "github.com/woxQAQ/wasmcall/api/wasm"
)

// exportSignature is the expected shape of a required guest export.
type exportSignature struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

var requiredExports = []exportSignature{
	{name: abi.EntryExport, params: []api.ValueType{api.ValueTypeI32}},
	{name: abi.AllocateExport, params: []api.ValueType{api.ValueTypeI32}, results: []api.ValueType{api.ValueTypeI32}},
}

// checkGuestExports verifies at compile time that a module speaks the call
// ABI, so a mismatch surfaces when loading rather than on the first call.
func checkGuestExports(moduleName string, compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()
	for _, want := range requiredExports {
		def, ok := exports[want.name]
		if !ok {
			return &FunctionNotFoundError{ModuleName: moduleName, FunctionName: want.name}
		}
		if !sameTypes(def.ParamTypes(), want.params) || !sameTypes(def.ResultTypes(), want.results) {
			return &CompilationError{
				ModuleName: moduleName,
				Err: fmt.Errorf("export %q has signature %s -> %s, want %s -> %s",
					want.name,
					typeNames(def.ParamTypes()), typeNames(def.ResultTypes()),
					typeNames(want.params), typeNames(want.results)),
			}
		}
	}

	if _, ok := compiled.ExportedMemories()[abi.MemoryExport]; !ok {
		return &CompilationError{
			ModuleName: moduleName,
			Err:        fmt.Errorf("module does not export %q", abi.MemoryExport),
		}
	}

	return nil
}

func sameTypes(got, want []api.ValueType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func typeNames(types []api.ValueType) string {
	s := "("
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	return s + ")"
}
