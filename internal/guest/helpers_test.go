package guest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeGuestDir creates base/dir with the given manifest and, when wasm is
// non-nil, the module file named by wasmFile.
func writeGuestDir(t *testing.T, base, dir, manifest, wasmFile string, wasm []byte) string {
	t.Helper()

	guestDir := filepath.Join(base, dir)
	require.NoError(t, os.MkdirAll(guestDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(guestDir, ManifestFile), []byte(manifest), 0o644))
	if wasm != nil {
		require.NoError(t, os.WriteFile(filepath.Join(guestDir, wasmFile), wasm, 0o644))
	}
	return guestDir
}

func echoManifest(name string) string {
	return "name: " + name + "\nversion: 1.0.0\ndescription: echoes its input\nwasm:\n  file: guest.wasm\n"
}
