// Package wasm names the exports and imports that make up the wasmcall
// guest ABI. Host and guest both refer to these constants so the two sides
// cannot drift apart.
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. All Wasm memory addresses are represented as 32-bit integers
// (addresses 0 to 4GB). This ensures compatibility with Wasm's memory architecture.
// See: https://github.com/golang/go/issues/59156
//
// Functions a guest must export:
//
//	//go:wasmexport call
//	func call(descriptor uint32)
//
//	//go:wasmexport allocate
//	func allocate(size uint32) uint32
//
// and its linear memory as "memory". The host provides, in module "env":
//
//	ret(ptr, length uint32)              // ends the call with these bytes, never returns
//	log_message(level, ptr, length uint32)
package wasm

// Guest exports.
const (
	EntryExport    = "call"
	AllocateExport = "allocate"
	MemoryExport   = "memory"
)

// Host imports.
const (
	HostModule       = "env"
	HandOffImport    = "ret"
	LogMessageImport = "log_message"
)

// Log levels accepted by log_message.
const (
	LogLevelDebug uint32 = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)
