package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

// EnvPrefix namespaces the CLI's environment variables.
const EnvPrefix = "SQLSCRIPT_"

// configFiles are searched in the working directory when --config is not given.
var configFiles = []string{"sqlscript.yaml", "sqlscript.yml"}

// Settings holds the CLI options after layering defaults, the config file,
// SQLSCRIPT_* environment variables and flags.
type Settings struct {
	Table        string `koanf:"table"`
	Columns      string `koanf:"columns"`
	Mode         string `koanf:"mode"`
	BatchSize    int    `koanf:"batch_size"`
	Sheet        string `koanf:"sheet"`
	Delimiter    string `koanf:"delimiter"`
	FloatNumbers bool   `koanf:"float_numbers"`
	Output       string `koanf:"output"`
	Dir          string `koanf:"dir"`
	Limit        int    `koanf:"limit"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `koanf:"-"`
}

// LoadSettings resolves Settings.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadSettings(cfgFile string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"mode":       string(core.ModeGuarded),
		"batch_size": core.DefaultBatchSize,
		"output":     "-",
		"dir":        "download",
		"limit":      20,
		"log_level":  "warn",
		"log_format": "text",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment: SQLSCRIPT_BATCH_SIZE -> batch_size
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	s.ConfigFile = used
	return &s, nil
}

// findConfigFile returns the explicit path, or the first default config file
// present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Options converts the generation settings into core options. The columns
// setting is split with core.ParseColumns; whether they exist is only known
// once the table is loaded.
func (s *Settings) Options() (core.Options, error) {
	mode, err := core.ParseMode(s.Mode)
	if err != nil {
		return core.Options{}, err
	}
	if s.BatchSize < 1 {
		return core.Options{}, fmt.Errorf("%w (got %d)", core.ErrInvalidBatchSize, s.BatchSize)
	}
	return core.Options{
		TableName: s.Table,
		Columns:   core.ParseColumns(s.Columns),
		BatchSize: s.BatchSize,
		Mode:      mode,
	}, nil
}

// Comma returns the CSV delimiter, or zero for the default.
func (s *Settings) Comma() (rune, error) {
	switch s.Delimiter {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r := []rune(s.Delimiter)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character (got %q)", s.Delimiter)
	}
	return r[0], nil
}
