package wasm

import (
	"bytes"
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/wasmcall/api/wasm"
)

var errNoCallInProgress = errors.New("hand-off outside of a call")

// callRecord collects what a guest hands off during one call.
type callRecord struct {
	output    []byte
	handedOff bool
}

type callRecordKey struct{}

func withCallRecord(ctx context.Context, rec *callRecord) context.Context {
	return context.WithValue(ctx, callRecordKey{}, rec)
}

func callRecordFrom(ctx context.Context) *callRecord {
	rec, _ := ctx.Value(callRecordKey{}).(*callRecord)
	return rec
}

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// handOff is the guest's ret import: it takes the call's output bytes and
// ends guest execution. It never returns to the guest.
// Signature: ret(ptr, length)
func (h *HostFunctionsImpl) handOff(ctx context.Context, mod api.Module, ptr uint32, length uint32) {
	rec := callRecordFrom(ctx)
	if rec == nil {
		panic(&HostFunctionError{FunctionName: abi.HandOffImport, Err: errNoCallInProgress})
	}

	data, ok := NewMemory(mod).ReadBytes(ptr, length)
	if !ok {
		panic(&MemoryAccessError{
			Operation: abi.HandOffImport,
			Address:   ptr,
			Length:    length,
			Err:       errOutOfBounds,
		})
	}

	// The view dies with the instance, which is closed below.
	rec.output = bytes.Clone(data)
	rec.handedOff = true

	h.logger.Debug("Guest handed off result",
		zap.String("instance_id", mod.Name()),
		zap.Uint32("ptr", ptr),
		zap.Uint32("length", length),
	)

	// Same unwinding as WASI proc_exit: close the instance, then leave the
	// guest stack through an exit error.
	_ = mod.CloseWithExitCode(ctx, 0)
	panic(sys.NewExitError(0))
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	// Read message from Wasm memory.
	msg, ok := NewMemory(mod).ReadBytes(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	logger := h.logger.With(zap.String("instance_id", mod.Name()))
	switch level {
	case abi.LogLevelDebug:
		logger.Debug(string(msg))
	case abi.LogLevelInfo:
		logger.Info(string(msg))
	case abi.LogLevelWarn:
		logger.Warn(string(msg))
	case abi.LogLevelError:
		logger.Error(string(msg))
	default:
		logger.Info(string(msg))
	}
}
