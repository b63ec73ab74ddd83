package guest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasmcall/internal/wasm"
)

// Loader handles loading guests from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new guest loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "guest-loader")),
	}
}

// LoadGuest loads a single guest from a directory. The module is compiled
// and cached under the manifest name, which is what calls refer to.
func (l *Loader) LoadGuest(ctx context.Context, dir string) (*Guest, error) {
	l.logger.Debug("Loading guest", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading guest",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
	)

	compiled, err := l.moduleLoader.LoadModule(ctx, &wasm.FileModuleSource{
		Path:       manifest.WasmPath(),
		ModuleName: manifest.Name,
	})
	if err != nil {
		return nil, &GuestLoadError{
			GuestName: manifest.Name,
			Err:       err,
		}
	}

	guest := &Guest{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Guest loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.String("blake3", compiled.Digest),
	)

	return guest, nil
}

// DiscoverGuests scans directories for guests, one per subdirectory.
func (l *Loader) DiscoverGuests(ctx context.Context, paths []string) ([]*Guest, error) {
	var guests []*Guest
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning guest directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Guest path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			guestDir := filepath.Join(basePath, entry.Name())

			guest, err := l.LoadGuest(ctx, guestDir)
			if err != nil {
				l.logger.Error("Failed to load guest",
					zap.String("dir", guestDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			guests = append(guests, guest)
		}
	}

	if len(guests) > 0 && len(errs) > 0 {
		l.logger.Warn("Some guests failed to load",
			zap.Int("loaded", len(guests)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(guests) == 0 {
		return nil, &NoGuestsFoundError{Paths: paths}
	}

	return guests, nil
}
