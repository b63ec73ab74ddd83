//go:build !wasm

package callabi

// Word is a descriptor field: address-width on native targets.
type Word = uintptr
