package callabi

import (
	"bytes"
	"unsafe"
)

// Args is a read-only, zero-copy view of a call's input bytes.
//
// Args owns no memory. It reads the input region from the descriptor every
// time it is asked, so it is only valid while the descriptor and the region
// it points to are valid, i.e. for the duration of the current call. Use
// Clone to keep the data longer.
type Args struct {
	desc *Descriptor
}

// Bytes returns the input region as a slice aliasing the host-provided
// memory. The slice must not be modified or retained past the call.
//
// A zero-length region yields an empty slice and ArgsPtr is not touched, so
// a null or garbage pointer is harmless there.
func (a Args) Bytes() []byte {
	n := a.desc.ArgsLen
	if n == 0 {
		return []byte{}
	}
	//nolint:gosec // G103: the region was vouched for by the ParseArgs caller
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(a.desc.ArgsPtr))), n)
}

// Len returns the number of input bytes.
func (a Args) Len() int {
	return int(a.desc.ArgsLen)
}

// Clone copies the input into a newly allocated slice owned by the caller.
func (a Args) Clone() []byte {
	return bytes.Clone(a.Bytes())
}

// String returns a copy of the input as a string.
func (a Args) String() string {
	return string(a.Bytes())
}

// Reader returns a reader over the input view. Like Bytes, it aliases the
// host memory and must not outlive the call.
func (a Args) Reader() *bytes.Reader {
	return bytes.NewReader(a.Bytes())
}
