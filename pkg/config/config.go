// Package config loads packup's layered configuration: embedded
// defaults, an optional packup.toml in the installation directory,
// and PACKUP_* environment variables, in that order of precedence.
// The result is an explicit value handed to the run coordinator; no
// component reads process-wide state directly.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	pkgerrors "github.com/packup/packup/pkg/errors"
)

// FileName is the optional per-installation config file.
const FileName = "packup.toml"

const envPrefix = "PACKUP_"

// Config holds the user-tunable settings of a run.
type Config struct {
	Jobs          int    `koanf:"jobs"`
	LoaderSymlink string `koanf:"loader-symlink"`
	KeepConfig    bool   `koanf:"keep-config"`
	KeepLoader    bool   `koanf:"keep-loader"`
	ExcludeFile   string `koanf:"exclude-file"`
}

// Load builds the configuration for an installation directory.
func Load(installDir string) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrConfigParse, "failed to load defaults")
	}

	// 2. Installation config if it exists
	path := filepath.Join(installDir, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, pkgerrors.Wrapf(err, pkgerrors.ErrConfigLoad, "failed to load config from %s", path)
		}
	}

	// 3. Environment overrides: PACKUP_KEEP_CONFIG=true -> keep-config
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrConfigLoad, "failed to load environment overrides")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrConfigParse, "failed to decode configuration")
	}
	return &cfg, nil
}

// GenerateContent returns the default configuration with every value
// commented out, suitable for seeding a packup.toml.
func GenerateContent() string {
	lines := strings.Split(GetDefaultsContent(), "\n")
	var result []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		result = append(result, "# "+line)
	}

	return strings.Join(result, "\n")
}
