//go:build wasip1

// echo-guest is the reference guest: it hands its input back unchanged.
//
// Build as a reactor so the host can call the exports after _initialize:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o echo.wasm ./cmd/echo-guest
package main

import (
	"strconv"
	"sync"
	"unsafe"

	"github.com/woxQAQ/wasmcall/api/wasm"
	"github.com/woxQAQ/wasmcall/pkg/callabi"
)

// maxPinned bounds the bytes the host may allocate in one instance.
const maxPinned = 64 << 20

//go:wasmimport env log_message
func logMessage(level, ptr, length uint32)

// pinned keeps host-requested buffers reachable so the GC never reclaims
// memory the host is writing into.
var pinned = struct {
	sync.Mutex
	bufs  map[uint32][]byte
	total int
}{
	bufs: make(map[uint32][]byte),
}

//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	pinned.Lock()
	defer pinned.Unlock()

	if pinned.total+int(size) > maxPinned {
		panic("echo-guest: allocation limit exceeded")
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	pinned.bufs[ptr] = buf
	pinned.total += int(size)

	return ptr
}

//go:wasmexport call
func call(descriptor uint32) {
	args, result := callabi.ParseArgsAddr(descriptor)

	debug("echoing " + strconv.Itoa(args.Len()) + " bytes")
	result.Done(args.Bytes())
}

func debug(msg string) {
	logMessage(wasm.LogLevelDebug, uint32(uintptr(unsafe.Pointer(unsafe.StringData(msg)))), uint32(len(msg)))
}

func main() {}
