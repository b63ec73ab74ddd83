// wasmcall runs guest modules that speak the descriptor call ABI.
//
// Usage:
//
//	wasmcall call <guest> [--input file] [flags]
//	wasmcall list [flags]
//	wasmcall schema
//	wasmcall version
//
// call feeds the input (a file, or stdin when --input is absent or "-") to
// one fresh instance of the named guest and writes the bytes the guest hands
// off to stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/wasmcall/internal/config"
	"github.com/woxQAQ/wasmcall/internal/guest"
	"github.com/woxQAQ/wasmcall/internal/wasm"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError is reported with exit status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprint(os.Stderr, usageText)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

const usageText = `Usage:
  wasmcall call <guest> [--input file] [flags]
  wasmcall list [flags]
  wasmcall schema
  wasmcall version

Flags for call and list:
  --config string       path to configuration file
  --log-level string    log level (debug, info, warn, error)
  --guest-path strings  guest directories (overrides guest_paths)
`

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return &usageError{msg: "missing command"}
	}

	command, rest := args[0], args[1:]
	switch command {
	case "call":
		return runCall(ctx, rest, stdin, stdout, stderr)
	case "list":
		return runList(ctx, rest, stdout, stderr)
	case "schema":
		return runSchema(stdout)
	case "version", "--version":
		fmt.Fprintf(stdout, "wasmcall %s (commit %s, built %s)\n", version, commit, date)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		return &usageError{msg: fmt.Sprintf("unknown command %q", command)}
	}
}

// hostFlags are shared by the commands that start the runtime.
type hostFlags struct {
	configPath string
	logLevel   string
	guestPaths []string
}

func (f *hostFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to configuration file")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringSliceVar(&f.guestPaths, "guest-path", nil, "guest directories (overrides guest_paths)")
}

func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}
	return nil
}

func runCall(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var flags hostFlags
	var inputPath string

	flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
	flags.register(flagSet)
	flagSet.StringVarP(&inputPath, "input", "i", "-", "input file, '-' for stdin")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return &usageError{msg: "call takes exactly one guest name"}
	}
	name := flagSet.Arg(0)

	input, err := readInput(inputPath, stdin)
	if err != nil {
		return err
	}

	sess, err := startHost(ctx, &flags, stderr)
	if err != nil {
		return err
	}
	defer sess.close()

	result, err := sess.manager.Call(ctx, name, input)
	if err != nil {
		return err
	}

	sess.logger.Debug("Call finished",
		zap.String("guest", name),
		zap.String("instance_id", result.InstanceID),
		zap.Int("input_bytes", len(input)),
		zap.Int("output_bytes", len(result.Output)),
		zap.Duration("duration", result.Duration),
		zap.Uint32("descriptor_addr", result.DescriptorAddr),
		zap.Uint32("result_ptr", result.Descriptor.ResultPtr),
		zap.Uint32("result_len", result.Descriptor.ResultLen),
	)

	_, err = stdout.Write(result.Output)
	return err
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags hostFlags

	flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
	flags.register(flagSet)
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if flagSet.NArg() != 0 {
		return &usageError{msg: "list takes no arguments"}
	}

	sess, err := startHost(ctx, &flags, stderr)
	if err != nil {
		return err
	}
	defer sess.close()

	for _, g := range sess.manager.Registry().List() {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", g.Name(), g.Version(), shortDigest(g.Digest()), g.Description())
	}
	return nil
}

func runSchema(stdout io.Writer) error {
	schema, err := guest.ManifestSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", schema)
	return err
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func shortDigest(digest string) string {
	if len(digest) > 16 {
		return digest[:16]
	}
	return digest
}

type session struct {
	logger  *zap.Logger
	manager *guest.Manager
}

func (h *session) close() {
	if err := h.manager.Shutdown(context.Background()); err != nil {
		h.logger.Warn("Shutdown failed", zap.Error(err))
	}
	_ = h.logger.Sync()
}

// startHost loads configuration, builds the runtime and loads every guest.
func startHost(ctx context.Context, flags *hostFlags, stderr io.Writer) (*session, error) {
	cfg, err := config.LoadHostConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if len(flags.guestPaths) > 0 {
		cfg.GuestPaths = flags.guestPaths
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		return nil, err
	}

	logger.Debug("Starting wasmcall",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	runtime, err := wasm.NewRuntime(ctx, logger, cfg.RuntimeConfig())
	if err != nil {
		return nil, err
	}

	manager := guest.NewManager(cfg.GuestPaths, runtime, wasm.NewHostFunctions(logger), logger)
	if err := manager.LoadAll(ctx); err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}

	return &session{logger: logger, manager: manager}, nil
}

// newLogger builds a zap logger writing to w. Debug uses the development
// encoder, everything else the production JSON encoder.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if lvl == zapcore.DebugLevel {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}
