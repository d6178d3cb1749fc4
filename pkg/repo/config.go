package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gritvcs/grit/pkg/object"
)

const configKey = "config.toml"

// Config stores repository-local settings.
type Config struct {
	User    UserConfig        `toml:"user"`
	Core    CoreConfig        `toml:"core"`
	Remotes map[string]string `toml:"remotes,omitempty"`
}

// UserConfig identifies the committing user.
type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// CoreConfig holds engine settings. Compression is the zlib level used for
// loose object writes; -1 means "use the default".
type CoreConfig struct {
	Compression int `toml:"compression"`
}

func defaultConfig() *Config {
	return &Config{
		Core:    CoreConfig{Compression: -1},
		Remotes: make(map[string]string),
	}
}

// ReadConfig reads config.toml. A missing config yields defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	data, err := r.Backend.ReadFile(configKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]string)
	}
	return cfg, nil
}

// WriteConfig atomically replaces config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = defaultConfig()
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := r.Backend.WriteFile(configKey, buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Author returns the configured "Name <email>" identity, or fallback when
// the config has no user section.
func (r *Repo) Author(fallback string) (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.User.Name) == "" {
		return fallback, nil
	}
	if strings.TrimSpace(cfg.User.Email) == "" {
		return cfg.User.Name, nil
	}
	return fmt.Sprintf("%s <%s>", cfg.User.Name, cfg.User.Email), nil
}

// SetRemote stores or updates a named remote URL.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Remotes[name] = remoteURL
	return r.WriteConfig(cfg)
}

// compressionLevel resolves the loose-object compression level from
// config, validating the configured value.
func (r *Repo) compressionLevel() (int, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return 0, err
	}
	level := cfg.Core.Compression
	if level == -1 {
		return object.DefaultCompression, nil
	}
	if level < object.NoCompression || level > object.BestCompression {
		return 0, fmt.Errorf("config core.compression = %d: %w", level, object.ErrInvalidCompressionLevel)
	}
	return level, nil
}
