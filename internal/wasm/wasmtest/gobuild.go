package wasmtest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// EchoGuestPackage is the reference Go guest built on callabi.
const EchoGuestPackage = "github.com/woxQAQ/wasmcall/cmd/echo-guest"

// BuildGoGuest compiles the Go package pkg as a wasip1 reactor and returns
// the module bytes. The test is skipped in short mode or when no go
// toolchain is on PATH.
func BuildGoGuest(t testing.TB, pkg string) []byte {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping wasip1 guest build in short mode")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}

	out := filepath.Join(t.TempDir(), "guest.wasm")
	cmd := exec.Command(goBin, "build", "-buildmode=c-shared", "-o", out, pkg)
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build %s for wasip1: %v\n%s", pkg, err, output)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read built guest: %v", err)
	}
	return data
}
