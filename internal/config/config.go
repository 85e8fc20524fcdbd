// Package config loads the optional config.toml of a journal.
//
// The file lives in the journal's marker directory. If the journal has
// none, the user's one in the OS config directory (jarida/config.toml) is
// used; if that is missing too, defaults apply. The configuration only
// carries preferences: editor, display and prompts. It never holds key
// material.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	FileName = "config.toml"

	// AppDir is the directory under os.UserConfigDir holding the user config.
	// It is not the journal marker, so a user config never makes a
	// directory look like a journal.
	AppDir = "jarida"

	// DefaultDateFormat renders like "Sun  8-Jul-2001 00:34"
	DefaultDateFormat = "Mon _2-Jan-2006 15:04"

	EnvUser = "JARIDA_USER"
)

// Config holds user preferences
type Config struct {
	Editor     string `toml:"editor"`
	User       string `toml:"user"`
	TempDir    string `toml:"temp_dir"`
	JournalDir string `toml:"journal_dir"`
	DateFormat string `toml:"date_format"`
	Verbose    bool   `toml:"verbose"`
	Keyring    bool   `toml:"keyring"`

	// Path is the file the configuration was read from, empty for defaults
	Path string `toml:"-"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{DateFormat: DefaultDateFormat}
}

// Load reads the file at path. A missing file yields defaults. Unknown
// keys are rejected so typos do not go unnoticed.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("invalid config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	cfg.Path = path
	if cfg.DateFormat == "" {
		cfg.DateFormat = DefaultDateFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFirst loads the first of paths that exists, or defaults
func LoadFirst(paths ...string) (*Config, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		return Load(p)
	}
	return Default(), nil
}

// UserPath returns the user config file, e.g. ~/.config/jarida/config.toml
func UserPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}
	return filepath.Join(dir, AppDir, FileName), nil
}

// Validate checks paths that must be absolute
func (c *Config) Validate() error {
	if c.TempDir != "" && !filepath.IsAbs(c.TempDir) {
		return fmt.Errorf("temp_dir must be an absolute path")
	}
	if c.JournalDir != "" && !filepath.IsAbs(c.JournalDir) {
		return fmt.Errorf("journal_dir must be an absolute path")
	}
	return nil
}

// ApplyEnv lets JARIDA_USER override the configured user
func (c *Config) ApplyEnv() {
	if user := os.Getenv(EnvUser); user != "" {
		c.User = user
	}
}

// WriteTemplate writes the commented template to path unless a file
// already exists there. It reports whether it wrote the file.
func WriteTemplate(path string) (bool, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	defer file.Close()

	if _, err := file.WriteString(Template()); err != nil {
		return false, err
	}
	return true, nil
}

// Template returns a commented config.toml with every key
func Template() string {
	return `# jarida configuration

# The editor used to write and edit entries. An entry is saved when the
# editor exits, so editors that fork into the background need their wait
# flag (for example "code --wait"). Empty means $VISUAL, then $EDITOR.
editor = ""

# Your name. Together with the password it derives the journal key, so it
# must be typed exactly the same way every time. If omitted you will be
# prompted for it. JARIDA_USER overrides this value.
#user = "Your Name"

# Directory for the editor's working file. The decrypted entry sits there
# while the editor runs. Must be absolute; empty means the system temp dir.
#temp_dir = "/path/to/private/tmp"

# Journal to use when the current directory is not inside one. Only read
# from the user config (~/.config/jarida/config.toml). Must be absolute.
#journal_dir = "/path/to/journal"

# Go time layout for dates in list and show output.
date_format = "Mon _2-Jan-2006 15:04"

# Print progress details.
verbose = false

# Cache the password in the OS keyring after a successful unlock.
keyring = false
`
}
