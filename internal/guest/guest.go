package guest

import (
	"time"

	"github.com/woxQAQ/wasmcall/internal/wasm"
)

// Guest represents a loaded guest with its manifest and compiled Wasm module.
type Guest struct {
	// Manifest is the parsed guest metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the guest was loaded
	LoadedAt time.Time
}

// Name returns the guest name.
func (g *Guest) Name() string {
	return g.Manifest.Name
}

// Version returns the guest version.
func (g *Guest) Version() string {
	return g.Manifest.Version
}

// Description returns the one-line description from the manifest.
func (g *Guest) Description() string {
	return g.Manifest.Description
}

// Digest returns the BLAKE3 digest of the guest's bytecode.
func (g *Guest) Digest() string {
	return g.Compiled.Digest
}
