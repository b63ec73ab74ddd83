package callabi

import "unsafe"

// Descriptor is the record the host populates before invoking the guest's
// entry point. It is a binary agreement with the host, not a negotiated
// schema: field order, widths and alignment must match what the host
// writes (see pkg/protocol for the wasm32 wire view of the same record).
//
// Every field is a Word: a linear memory address or length, so the record
// is 16 bytes on wasm. Native builds use address-width words.
type Descriptor struct {
	// ArgsPtr is the address of the first input byte. Any value is
	// allowed when ArgsLen is zero, including zero.
	ArgsPtr Word
	// ArgsLen is the number of input bytes.
	ArgsLen Word

	// ResultPtr and ResultLen are carried for layout parity with the
	// host's record. The guest never reads or writes them; the result
	// leaves through the hand-off primitive instead.
	ResultPtr Word
	ResultLen Word
}

// DescriptorSize is the in-memory size of a Descriptor on the current target.
const DescriptorSize = unsafe.Sizeof(Descriptor{})
