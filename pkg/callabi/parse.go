// Package callabi is the guest side of the wasmcall calling convention.
//
// The host passes a single address to the guest's exported entry point.
// That address points at a Descriptor the host has already filled in.
// ParseArgs is the one place where that address is trusted; everything it
// returns is safe to use afterwards:
//
//	//go:wasmexport call
//	func call(descriptor uint32) {
//		args, result := callabi.ParseArgsAddr(descriptor)
//		result.Done(args.Bytes())
//	}
//
// The package carries opaque bytes only. It has no error returns: a bad
// descriptor address is undefined behaviour, and application failures
// must be encoded into the bytes given to Result.Done.
package callabi

import "unsafe"

// ParseArgs turns the descriptor address received by the entry point into
// the call's input view and output capability.
//
// ptr must be non-nil and point to a fully initialised Descriptor whose
// input region stays readable and unchanged for the rest of the call.
// Nothing is validated; a violation is undefined behaviour.
func ParseArgs(ptr unsafe.Pointer) (Args, Result) {
	desc := (*Descriptor)(ptr)
	return Args{desc: desc}, Result{state: &resultState{}}
}
