//go:build wasip1

package callabi

import "unsafe"

// ret is the host's hand-off primitive. It surfaces (ptr, length) as the
// call's result and terminates the guest; it does not return.
//
//go:wasmimport env ret
//nolint:revive // import name fixed by the host
func ret(ptr, length uint32)

func handOff(ptr unsafe.Pointer, length int) {
	// wasm32 linear memory: addresses and lengths fit in 32 bits.
	//nolint:gosec // G103, G115
	ret(uint32(uintptr(ptr)), uint32(length))
}

// ParseArgsAddr is ParseArgs for an entry point that receives the
// descriptor address as a wasm i32.
func ParseArgsAddr(addr uint32) (Args, Result) {
	//nolint:gosec // G103: addr is a linear memory offset supplied by the host
	return ParseArgs(unsafe.Pointer(uintptr(addr)))
}
