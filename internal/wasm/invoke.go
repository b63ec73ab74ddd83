package wasm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/wasmcall/api/wasm"
	"github.com/woxQAQ/wasmcall/pkg/protocol"
)

// CallResult is the outcome of one guest call.
type CallResult struct {
	// Output holds the bytes the guest handed off. Never nil.
	Output []byte

	InstanceID string

	// Descriptor as written for the call, and where it lived.
	Descriptor     protocol.Descriptor
	DescriptorAddr uint32

	Duration time.Duration
}

// Invoker runs guest calls. Every call gets a fresh instance: the hand-off
// tears the instance down, and no state survives between calls.
type Invoker struct {
	runtime   *Runtime
	instances *InstanceManager
	logger    *zap.Logger

	slots chan struct{}
}

// NewInvoker creates an invoker bounded by the runtime's MaxInstances.
func NewInvoker(runtime *Runtime, instances *InstanceManager, logger *zap.Logger) *Invoker {
	limit := runtime.config.MaxInstances
	if limit <= 0 {
		limit = 1
	}
	return &Invoker{
		runtime:   runtime,
		instances: instances,
		logger:    logger.With(zap.String("component", "wasm-invoker")),
		slots:     make(chan struct{}, limit),
	}
}

// Call passes input to the named module's entry point and returns the
// bytes it handed off.
func (v *Invoker) Call(ctx context.Context, moduleName string, input []byte) (*CallResult, error) {
	if v.runtime.IsClosed() {
		return nil, ErrRuntimeClosed
	}

	select {
	case v.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-v.slots }()

	timeout := v.runtime.config.ExecutionTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rec := &callRecord{}
	ctx = withCallRecord(ctx, rec)

	inst, err := v.instances.Instantiate(ctx, &InstanceConfig{ModuleName: moduleName})
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := inst.Close(context.Background()); closeErr != nil {
			v.logger.Warn("Failed to close instance",
				zap.String("instance_id", inst.ID),
				zap.Error(closeErr),
			)
		}
	}()

	entry := inst.ExportedFunction(abi.EntryExport)
	if entry == nil {
		return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: abi.EntryExport}
	}

	// Descriptor first so it stays word aligned whatever the input length.
	descAddr, err := inst.Memory().Allocate(ctx, protocol.DescriptorSize)
	if err != nil {
		return nil, err
	}
	argsPtr, argsLen, err := inst.Memory().WriteBytes(ctx, input)
	if err != nil {
		return nil, err
	}
	desc := protocol.Descriptor{ArgsPtr: argsPtr, ArgsLen: argsLen}
	if err := inst.Memory().StoreDescriptor(descAddr, desc); err != nil {
		return nil, err
	}

	start := time.Now()
	_, callErr := entry.Call(ctx, uint64(descAddr))
	duration := time.Since(start)

	if err := v.classify(ctx, moduleName, inst.ID, rec, callErr, timeout); err != nil {
		v.logger.Warn("Guest call failed",
			zap.String("module", moduleName),
			zap.String("instance_id", inst.ID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	v.logger.Debug("Guest call completed",
		zap.String("module", moduleName),
		zap.String("instance_id", inst.ID),
		zap.Int("input_bytes", len(input)),
		zap.Int("output_bytes", len(rec.output)),
		zap.Duration("duration", duration),
	)

	return &CallResult{
		Output:         rec.output,
		InstanceID:     inst.ID,
		Descriptor:     desc,
		DescriptorAddr: descAddr,
		Duration:       duration,
	}, nil
}

// classify maps the entry point's outcome onto the call's error, nil when
// the guest ended through the hand-off.
func (v *Invoker) classify(ctx context.Context, moduleName, instanceID string, rec *callRecord, callErr error, timeout time.Duration) error {
	if callErr == nil {
		// The entry point returned normally, so the guest never called ret.
		return &HandOffMissingError{ModuleName: moduleName, InstanceID: instanceID}
	}

	var exitErr *sys.ExitError
	if errors.As(callErr, &exitErr) {
		switch exitErr.ExitCode() {
		case 0:
			if rec.handedOff {
				return nil
			}
			return &HandOffMissingError{ModuleName: moduleName, InstanceID: instanceID}
		case sys.ExitCodeDeadlineExceeded:
			return &TimeoutError{Duration: timeout}
		case sys.ExitCodeContextCanceled:
			return fmt.Errorf("guest call cancelled: %w", context.Cause(ctx))
		}
	}

	return &GuestTrapError{ModuleName: moduleName, InstanceID: instanceID, Err: callErr}
}
