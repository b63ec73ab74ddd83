package protocol

// Wire view of the call descriptor as the host writes it into a wasm32
// guest's linear memory. It is the same record as callabi.Descriptor on the
// guest side: four little-endian uint32 fields in fixed order.

import (
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Descriptor field offsets and total size in bytes.
const (
	ArgsPtrOffset   = 0
	ArgsLenOffset   = 4
	ResultPtrOffset = 8
	ResultLenOffset = 12
	DescriptorSize  = 16
)

// Descriptor is the host-side value of a call descriptor.
type Descriptor struct {
	ArgsPtr   uint32 `json:"argsPtr"`
	ArgsLen   uint32 `json:"argsLen"`
	ResultPtr uint32 `json:"resultPtr"`
	ResultLen uint32 `json:"resultLen"`
}

// MarshalBinary encodes the descriptor in its wire layout.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	buf := make([]byte, DescriptorSize)
	d.put(buf)
	return buf, nil
}

// UnmarshalBinary decodes a descriptor from its wire layout.
func (d *Descriptor) UnmarshalBinary(data []byte) error {
	if len(data) < DescriptorSize {
		return fmt.Errorf("descriptor needs %d bytes, got %d", DescriptorSize, len(data))
	}
	d.ArgsPtr = binary.LittleEndian.Uint32(data[ArgsPtrOffset:])
	d.ArgsLen = binary.LittleEndian.Uint32(data[ArgsLenOffset:])
	d.ResultPtr = binary.LittleEndian.Uint32(data[ResultPtrOffset:])
	d.ResultLen = binary.LittleEndian.Uint32(data[ResultLenOffset:])
	return nil
}

func (d Descriptor) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[ArgsPtrOffset:], d.ArgsPtr)
	binary.LittleEndian.PutUint32(buf[ArgsLenOffset:], d.ArgsLen)
	binary.LittleEndian.PutUint32(buf[ResultPtrOffset:], d.ResultPtr)
	binary.LittleEndian.PutUint32(buf[ResultLenOffset:], d.ResultLen)
}

// WriteTo stores the descriptor at addr in guest memory.
func (d Descriptor) WriteTo(mem api.Memory, addr uint32) bool {
	buf := make([]byte, DescriptorSize)
	d.put(buf)
	return mem.Write(addr, buf)
}

// ReadDescriptor loads the descriptor stored at addr in guest memory.
func ReadDescriptor(mem api.Memory, addr uint32) (Descriptor, bool) {
	var d Descriptor
	buf, ok := mem.Read(addr, DescriptorSize)
	if !ok {
		return d, false
	}
	if err := d.UnmarshalBinary(buf); err != nil {
		return d, false
	}
	return d, true
}
