package guest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasmcall/internal/wasm"
	"github.com/woxQAQ/wasmcall/internal/wasm/wasmtest"
)

func newTestRuntime(t *testing.T) *wasm.Runtime {
	t.Helper()

	runtime, err := wasm.NewRuntime(context.Background(), zap.NewNop(), wasm.DefaultRuntimeConfig())
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close(context.Background()) })
	return runtime
}

func TestLoader_LoadGuest_Valid(t *testing.T) {
	ctx := context.Background()
	dir := writeGuestDir(t, t.TempDir(), "echo", echoManifest("echo"), "guest.wasm", wasmtest.EchoGuest())

	loader := NewLoader(newTestRuntime(t), zaptest.NewLogger(t))
	guest, err := loader.LoadGuest(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, "echo", guest.Name())
	assert.Equal(t, "1.0.0", guest.Version())
	assert.Equal(t, "echoes its input", guest.Description())
	assert.Len(t, guest.Digest(), 64)
	assert.Equal(t, "echo", guest.Compiled.Name)
	assert.False(t, guest.LoadedAt.IsZero())
}

func TestLoader_LoadGuest_InvalidWasm(t *testing.T) {
	ctx := context.Background()
	dir := writeGuestDir(t, t.TempDir(), "junk", echoManifest("junk"), "guest.wasm", []byte("junk"))

	loader := NewLoader(newTestRuntime(t), zap.NewNop())
	_, err := loader.LoadGuest(ctx, dir)

	var loadErr *GuestLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "junk", loadErr.GuestName)

	var compErr *wasm.CompilationError
	assert.ErrorAs(t, err, &compErr)
}

func TestLoader_DiscoverGuests(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	writeGuestDir(t, base, "echo", echoManifest("echo"), "guest.wasm", wasmtest.EchoGuest())
	writeGuestDir(t, base, "broken", "name: [\n", "", nil)
	require.NoError(t, os.WriteFile(filepath.Join(base, "README"), []byte("not a guest"), 0o644))

	loader := NewLoader(newTestRuntime(t), zap.NewNop())
	guests, err := loader.DiscoverGuests(ctx, []string{base, filepath.Join(base, "missing")})
	require.NoError(t, err)

	require.Len(t, guests, 1)
	assert.Equal(t, "echo", guests[0].Name())
}

func TestLoader_DiscoverGuests_NoneFound(t *testing.T) {
	loader := NewLoader(newTestRuntime(t), zap.NewNop())
	_, err := loader.DiscoverGuests(context.Background(), []string{t.TempDir()})

	var none *NoGuestsFoundError
	assert.ErrorAs(t, err, &none)
}

func TestManager_NewManager(t *testing.T) {
	logger := zap.NewNop()
	runtime := newTestRuntime(t)

	manager := NewManager([]string{t.TempDir()}, runtime, wasm.NewHostFunctions(logger), logger)

	require.NotNil(t, manager)
	assert.False(t, manager.IsLoaded())
	assert.Equal(t, 0, manager.Registry().Count())
}

func TestManager_LoadAllAndCall(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	base := t.TempDir()
	writeGuestDir(t, base, "echo", echoManifest("echo"), "guest.wasm", wasmtest.EchoGuest())

	manager := NewManager([]string{base}, newTestRuntime(t), wasm.NewHostFunctions(logger), logger)
	require.NoError(t, manager.LoadAll(ctx))
	assert.True(t, manager.IsLoaded())

	result, err := manager.Call(ctx, "echo", []byte{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, result.Output)

	result, err = manager.Call(ctx, "echo", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Output)

	err = manager.LoadAll(ctx)
	assert.Error(t, err, "second LoadAll should fail")
}

func TestManager_CompressedGuest(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(wasmtest.EchoGuest(), nil)
	require.NoError(t, enc.Close())

	base := t.TempDir()
	manifest := "name: packed\nversion: 0.1.0\nwasm:\n  file: guest.wasm.zst\n"
	writeGuestDir(t, base, "packed", manifest, "guest.wasm.zst", compressed)

	manager := NewManager([]string{base}, newTestRuntime(t), wasm.NewHostFunctions(logger), logger)
	require.NoError(t, manager.LoadAll(ctx))

	input := bytes.Repeat([]byte{0xab}, 300)
	result, err := manager.Call(ctx, "packed", input)
	require.NoError(t, err)
	assert.Equal(t, input, result.Output)
}

func TestManager_LoadAllWithoutGuests(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager([]string{t.TempDir()}, newTestRuntime(t), wasm.NewHostFunctions(logger), logger)

	require.NoError(t, manager.LoadAll(context.Background()))
	assert.True(t, manager.IsLoaded())
	assert.Equal(t, 0, manager.Registry().Count())
}

func TestManager_CallUnknownGuest(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager(nil, newTestRuntime(t), wasm.NewHostFunctions(logger), logger)

	_, err := manager.Call(context.Background(), "nonexistent", nil)

	var notFound *GuestNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nonexistent", notFound.GuestName)
}

func TestManager_Shutdown(t *testing.T) {
	logger := zap.NewNop()
	runtime := newTestRuntime(t)
	manager := NewManager(nil, runtime, wasm.NewHostFunctions(logger), logger)

	require.NoError(t, manager.Shutdown(context.Background()))
	assert.True(t, runtime.IsClosed())
}
