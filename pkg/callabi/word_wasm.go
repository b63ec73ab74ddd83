//go:build wasm

package callabi

// Word is a descriptor field. Go on wasm uses 64-bit pointers, but linear
// memory addresses are 32-bit, and so is every field the host writes.
type Word = uint32
