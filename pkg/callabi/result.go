package callabi

import (
	"errors"
	"unsafe"
)

var (
	// ErrResultReused is the panic value when a Result that already handed
	// off its bytes, or a copy of it, is used again.
	ErrResultReused = errors.New("callabi: result already handed off")

	// ErrResultInvalid is the panic value when a Result not obtained from
	// ParseArgs is used.
	ErrResultInvalid = errors.New("callabi: result was not obtained from ParseArgs")

	// ErrHandOffReturned is the panic value when the hand-off primitive
	// returns control to the guest, which a conforming host never does.
	ErrHandOffReturned = errors.New("callabi: hand-off primitive returned")
)

// HandOffFunc transmits length bytes starting at ptr to the host as the
// call's result and ends guest execution. ptr is nil when length is zero.
// An implementation must not return.
type HandOffFunc func(ptr unsafe.Pointer, length int)

type resultState struct {
	used bool
}

// Result is the single-use capability that ends a call by handing its
// output bytes to the host.
//
// Go cannot consume a value on use, so single use is enforced at run time:
// every copy of a Result shares one state, and the second Done on any of
// them panics with ErrResultReused before the host is contacted.
type Result struct {
	state *resultState
}

// Done hands data to the host and never returns. The bytes are passed by
// address, without copying, so data may be a view returned by Args.Bytes.
//
// Execution ends inside the host primitive. Deferred functions of the
// calling frames are not guaranteed to run, so nothing may depend on them
// once Done is called.
func (r Result) Done(data []byte) {
	r.claim()

	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = unsafe.Pointer(unsafe.SliceData(data))
	}
	handOff(ptr, len(data))
	panic(ErrHandOffReturned)
}

// DoneString is Done for string data, typically a constant.
func (r Result) DoneString(s string) {
	r.claim()

	var ptr unsafe.Pointer
	if len(s) > 0 {
		ptr = unsafe.Pointer(unsafe.StringData(s))
	}
	handOff(ptr, len(s))
	panic(ErrHandOffReturned)
}

func (r Result) claim() {
	if r.state == nil {
		panic(ErrResultInvalid)
	}
	if r.state.used {
		panic(ErrResultReused)
	}
	r.state.used = true
}
