package wasm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"

	abi "github.com/woxQAQ/wasmcall/api/wasm"
	"github.com/woxQAQ/wasmcall/pkg/protocol"
)

var (
	errOutOfBounds   = errors.New("out of bounds")
	errNullAlloc     = errors.New("allocate returned a null pointer")
	errNoAllocExport = errors.New("guest does not export " + abi.AllocateExport)
)

// Memory provides safe memory operations for Wasm module interaction.
//
// Reads are bounds checked by wazero. Writes go into buffers the guest
// hands out through its allocate export, so the host never scribbles over
// memory the guest's own allocator owns.
type Memory struct {
	mem   api.Memory
	alloc api.Function
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{
		mem:   module.Memory(),
		alloc: module.ExportedFunction(abi.AllocateExport),
	}
}

// ReadBytes reads raw bytes from Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	return m.mem.Read(ptr, length)
}

// Allocate reserves size bytes through the guest's allocator.
func (m *Memory) Allocate(ctx context.Context, size uint32) (uint32, error) {
	if m.alloc == nil {
		return 0, &MemoryAccessError{Operation: "allocate", Length: size, Err: errNoAllocExport}
	}

	results, err := m.alloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, &MemoryAccessError{Operation: "allocate", Length: size, Err: err}
	}

	ptr := api.DecodeU32(results[0])
	if ptr == 0 {
		return 0, &MemoryAccessError{Operation: "allocate", Length: size, Err: errNullAlloc}
	}
	return ptr, nil
}

// WriteBytes copies data into freshly allocated guest memory and returns
// its pointer and length. Empty data allocates nothing and yields (0, 0).
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	size := uint32(len(data))
	ptr, err := m.Allocate(ctx, size)
	if err != nil {
		return 0, 0, err
	}

	if !m.mem.Write(ptr, data) {
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: size, Err: errOutOfBounds}
	}
	return ptr, size, nil
}

// StoreDescriptor fills the descriptor record at addr, which must point to
// at least protocol.DescriptorSize bytes obtained from Allocate.
func (m *Memory) StoreDescriptor(addr uint32, d protocol.Descriptor) error {
	if !d.WriteTo(m.mem, addr) {
		return &MemoryAccessError{Operation: "write", Address: addr, Length: protocol.DescriptorSize, Err: errOutOfBounds}
	}
	return nil
}

// ReadDescriptor loads the descriptor at addr.
func (m *Memory) ReadDescriptor(addr uint32) (protocol.Descriptor, error) {
	d, ok := protocol.ReadDescriptor(m.mem, addr)
	if !ok {
		return d, &MemoryAccessError{Operation: "read", Address: addr, Length: protocol.DescriptorSize, Err: errOutOfBounds}
	}
	return d, nil
}
