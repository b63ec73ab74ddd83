package wasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap/zaptest"

	abi "github.com/woxQAQ/wasmcall/api/wasm"
	"github.com/woxQAQ/wasmcall/internal/wasm/wasmtest"
	"github.com/woxQAQ/wasmcall/pkg/protocol"
)

// TestLoadModuleFromMemory tests loading a guest module from memory.
func TestLoadModuleFromMemory(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)

	module, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.EchoGuest())
	if err != nil {
		t.Fatalf("Failed to load module: %v", err)
	}

	if module == nil {
		t.Fatal("Module is nil")
	}

	if module.Name != "test-module" {
		t.Errorf("Module name = %s, want 'test-module'", module.Name)
	}

	if len(module.Digest) != 64 {
		t.Errorf("Digest = %q, want 64 hex characters", module.Digest)
	}

	// Test caching - load again should hit cache.
	module2, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.EchoGuest())
	if err != nil {
		t.Fatalf("Failed to load module from cache: %v", err)
	}

	if module2 != module {
		t.Error("Cache should return the same module instance")
	}
}

// TestModuleLoaderFileSource tests the FileModuleSource.
func TestModuleLoaderFileSource(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)

	wasmFile := filepath.Join(t.TempDir(), "echo.wasm")
	if err := os.WriteFile(wasmFile, wasmtest.EchoGuest(), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	module, err := loader.LoadModuleFromFile(ctx, wasmFile)
	if err != nil {
		t.Fatalf("Failed to load module from file: %v", err)
	}

	if module.SizeBytes != int64(len(wasmtest.EchoGuest())) {
		t.Errorf("SizeBytes = %d, want %d", module.SizeBytes, len(wasmtest.EchoGuest()))
	}
}

// TestModuleLoaderCompressedFile tests loading a zstd-compressed module.
func TestModuleLoaderCompressedFile(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll(wasmtest.EchoGuest(), nil)
	enc.Close()

	wasmFile := filepath.Join(t.TempDir(), "echo.wasm.zst")
	if err := os.WriteFile(wasmFile, compressed, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loader := NewModuleLoader(runtime, logger)
	module, err := loader.LoadModule(ctx, &FileModuleSource{Path: wasmFile, ModuleName: "echo"})
	if err != nil {
		t.Fatalf("Failed to load compressed module: %v", err)
	}

	if module.SizeBytes != int64(len(wasmtest.EchoGuest())) {
		t.Errorf("SizeBytes = %d, want decompressed size %d", module.SizeBytes, len(wasmtest.EchoGuest()))
	}

	if module.Source != wasmFile {
		t.Errorf("Source = %s, want %s", module.Source, wasmFile)
	}
}

// TestFileModuleSourceCapsDecompressedSize tests that a small .zst file
// cannot expand past the configured limit.
func TestFileModuleSourceCapsDecompressedSize(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll(make([]byte, 4<<20), nil)
	enc.Close()

	wasmFile := filepath.Join(t.TempDir(), "bomb.wasm.zst")
	if err := os.WriteFile(wasmFile, compressed, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	source := &FileModuleSource{Path: wasmFile, MaxSize: 1 << 20}
	_, err = source.Bytes()
	if err == nil {
		t.Fatal("Bytes() should fail when the module expands past MaxSize")
	}
	if !errors.Is(err, zstd.ErrDecoderSizeExceeded) && !errors.Is(err, zstd.ErrWindowSizeExceeded) {
		t.Errorf("Bytes() error = %v, want a zstd size limit error", err)
	}

	source.MaxSize = 8 << 20
	data, err := source.Bytes()
	if err != nil {
		t.Fatalf("Bytes() under the limit failed: %v", err)
	}
	if len(data) != 4<<20 {
		t.Errorf("len(Bytes()) = %d, want %d", len(data), 4<<20)
	}
}

func TestLoadModuleRejectsInvalidBinary(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)
	_, err = loader.LoadModuleFromMemory(ctx, "garbage", []byte("not wasm"))

	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %T: %v", err, err)
	}
}

func TestLoadModuleRequiresAllocateExport(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)
	_, err = loader.LoadModuleFromMemory(ctx, "no-alloc", wasmtest.Guest(wasmtest.EchoBody, false))

	var fnErr *FunctionNotFoundError
	if !errors.As(err, &fnErr) {
		t.Fatalf("expected FunctionNotFoundError, got %T: %v", err, err)
	}
	if fnErr.FunctionName != abi.AllocateExport {
		t.Errorf("missing function = %s, want %s", fnErr.FunctionName, abi.AllocateExport)
	}

	if _, ok := runtime.GetCompiledModule("no-alloc"); ok {
		t.Error("Rejected module should not be cached")
	}
}

// TestHostFunctions tests host function creation.
func TestHostFunctions(t *testing.T) {
	logger := zaptest.NewLogger(t)

	hostFuncs := NewHostFunctions(logger)
	if hostFuncs == nil {
		t.Fatal("HostFunctionsImpl is nil")
	}

	if hostFuncs.logger == nil {
		t.Error("Logger not initialized")
	}
}

// TestMemoryHelpers tests memory helper functions against a live instance.
func TestMemoryHelpers(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)
	if _, err := loader.LoadModuleFromMemory(ctx, "memory-test", wasmtest.EchoGuest()); err != nil {
		t.Fatal(err)
	}

	instanceMgr := NewInstanceManager(runtime, NewHostFunctions(logger), logger)
	instance, err := instanceMgr.Instantiate(ctx, &InstanceConfig{ModuleName: "memory-test"})
	if err != nil {
		t.Fatalf("Failed to instantiate: %v", err)
	}
	defer instance.Close(ctx)

	if _, ok := runtime.GetInstance(instance.ID); !ok {
		t.Error("Instance should be tracked while open")
	}

	mem := instance.Memory()

	ptr, length, err := mem.WriteBytes(ctx, []byte("hello\x00world"))
	if err != nil {
		t.Fatalf("WriteBytes() failed: %v", err)
	}
	if ptr != 1024 || length != 11 {
		t.Errorf("WriteBytes() = (%d, %d), want (1024, 11)", ptr, length)
	}

	data, ok := mem.ReadBytes(ptr, length)
	if !ok || string(data) != "hello\x00world" {
		t.Errorf("ReadBytes() = %q, %v", data, ok)
	}

	// Empty writes allocate nothing.
	ptr, length, err = mem.WriteBytes(ctx, nil)
	if err != nil || ptr != 0 || length != 0 {
		t.Errorf("WriteBytes(nil) = (%d, %d, %v), want (0, 0, nil)", ptr, length, err)
	}

	addr, err := mem.Allocate(ctx, protocol.DescriptorSize)
	if err != nil {
		t.Fatal(err)
	}
	want := protocol.Descriptor{ArgsPtr: 1024, ArgsLen: 11, ResultPtr: 7, ResultLen: 9}
	if err := mem.StoreDescriptor(addr, want); err != nil {
		t.Fatal(err)
	}
	got, err := mem.ReadDescriptor(addr)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("ReadDescriptor() = %+v, want %+v", got, want)
	}

	if _, ok := mem.ReadBytes(65530, 100); ok {
		t.Error("ReadBytes() past the end of memory should fail")
	}
	if _, err := mem.ReadDescriptor(65530); err == nil {
		t.Error("ReadDescriptor() past the end of memory should fail")
	}

	if err := instance.Close(ctx); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if _, ok := runtime.GetInstance(instance.ID); ok {
		t.Error("Closed instance should no longer be tracked")
	}
}

func TestInstantiateUnknownModule(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	instanceMgr := NewInstanceManager(runtime, NewHostFunctions(logger), logger)
	_, err = instanceMgr.Instantiate(ctx, &InstanceConfig{ModuleName: "missing"})

	var notFound *ModuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ModuleNotFoundError, got %T: %v", err, err)
	}
}
