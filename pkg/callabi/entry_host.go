//go:build !wasip1

package callabi

import (
	"errors"
	"unsafe"
)

// ErrNoHandOff is the panic value of Result.Done outside a wasip1 guest
// when no hand-off primitive has been installed with SetHandOff.
var ErrNoHandOff = errors.New("callabi: no hand-off primitive installed")

var handOff HandOffFunc = func(unsafe.Pointer, int) {
	panic(ErrNoHandOff)
}

// SetHandOff replaces the hand-off primitive used by Result outside a
// wasip1 guest and returns a function restoring the previous one. It lets
// host-side harnesses run guest logic natively. It is not safe to call
// concurrently with a hand-off.
func SetHandOff(fn HandOffFunc) (restore func()) {
	prev := handOff
	handOff = fn
	return func() { handOff = prev }
}
