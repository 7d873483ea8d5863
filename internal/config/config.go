// Package config loads the application's TOML configuration, applying
// defaults for anything the file omits. The file lives at
// ~/.config/twitch-py/config.toml by default.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultClientID is the registered application id sent with every API
// request. Users may override it with their own registration.
const DefaultClientID = "o232r2a1vuu2yfki7j3208tvnx8uzq"

// Player configures the external media player used to watch streams.
type Player struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	// Multi allows several player instances at once instead of closing
	// the previous one when a new stream starts.
	Multi bool `toml:"multi"`
}

// API configures the upstream endpoint and credentials.
type API struct {
	ClientID string `toml:"client_id"`
	Endpoint string `toml:"endpoint"`
}

// Paths configures where state and mirrored images live.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	CacheDir string `toml:"cache_dir"`
}

// Images configures the local image mirror.
type Images struct {
	Mirror bool `toml:"mirror"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Config encapsulates all configuration values.
type Config struct {
	Player  Player  `toml:"player"`
	API     API     `toml:"api"`
	Paths   Paths   `toml:"paths"`
	Images  Images  `toml:"images"`
	Logging Logging `toml:"logging"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Player: Player{
			Command: "mpv",
			Args:    []string{"--keep-open=yes"},
		},
		API: API{
			ClientID: DefaultClientID,
			Endpoint: "https://api.twitch.tv/helix",
		},
		Paths: Paths{
			DataDir:  "~/.local/share/twitch-py",
			CacheDir: "~/.cache/twitch-py",
		},
		Logging: Logging{
			Level:  "info",
			Pretty: true,
		},
	}
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/twitch-py/config.toml")
}

// Load parses the config file at path, or the default location when path
// is empty. A missing file is not an error; defaults apply. Path fields
// in the result are expanded and absolute.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
	} else {
		var err error
		path, err = expandPath(path)
		if err != nil {
			return "", false, err
		}
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return path, true, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.API.ClientID) == "" {
		c.API.ClientID = DefaultClientID
	}
	if strings.TrimSpace(c.API.Endpoint) == "" {
		c.API.Endpoint = Default().API.Endpoint
	}
	if strings.TrimSpace(c.Player.Command) == "" {
		c.Player.Command = Default().Player.Command
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return err
	}
	return nil
}

// DatabasePath returns the location of the SQLite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "data.db")
}

// ImageDir returns the root directory of the local image mirror.
func (c *Config) ImageDir() string {
	return filepath.Join(c.Paths.CacheDir, "images")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
