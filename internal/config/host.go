package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/woxQAQ/wasmcall/internal/wasm"
)

// EnvPrefix prefixes every environment override, e.g. WASMCALL_LOG_LEVEL.
const EnvPrefix = "WASMCALL"

type HostConfig struct {
	GuestPaths []string   `mapstructure:"guest_paths" validate:"required,min=1,dive,required"`
	LogLevel   string     `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Wasm       WasmConfig `mapstructure:"wasm"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages" validate:"min=1,max=65536"`
	// Enable debug info in compiled modules.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty keeps compiled code in memory only.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances" validate:"min=1"`
	// Guest call timeout (seconds). Zero disables the limit.
	ExecutionTimeout int `mapstructure:"execution_timeout" validate:"min=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func LoadHostConfig(configPath string) (*HostConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("guest_paths", []string{"./guests"})
	v.SetDefault("log_level", "info")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 1024) // 64MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and reports the first failing field
// by its configuration key.
func (c *HostConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("invalid config %s: failed '%s' constraint (value: %v)",
			configKey(fe.Namespace()), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// RuntimeConfig converts the wasm section into the runtime's configuration.
func (c *HostConfig) RuntimeConfig() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:      c.Wasm.MemoryPages,
		CacheDir:         c.Wasm.CacheDir,
		DebugEnabled:     c.Wasm.Debug,
		MaxInstances:     c.Wasm.MaxInstances,
		ExecutionTimeout: time.Duration(c.Wasm.ExecutionTimeout) * time.Second,
	}
}

var configKeys = map[string]string{
	"GuestPaths":       "guest_paths",
	"LogLevel":         "log_level",
	"Wasm":             "wasm",
	"MemoryPages":      "memory_pages",
	"MaxInstances":     "max_instances",
	"ExecutionTimeout": "execution_timeout",
}

// configKey maps a validator namespace such as HostConfig.Wasm.MemoryPages
// to wasm.memory_pages.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		name, index, _ := strings.Cut(p, "[")
		if key, ok := configKeys[name]; ok {
			name = key
		}
		if index != "" {
			name += "[" + index
		}
		parts[i] = name
	}
	return strings.Join(parts, ".")
}
