package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables read by GetDefaults and the CLI.
const (
	EnvConfigPath = "MCS_CONFIG_PATH" // config file, default ~/.config/mcs.toml
	EnvHome       = "MCS_HOME"        // data directory, default ~/.local/share/mcs
	EnvPassphrase = "MCS_PASSPHRASE"  // unlocks an age-sealed secret without a prompt
)

// Defaults are the paths used when no config file says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves Defaults from the environment, falling back to
// locations under the user's home directory.
func GetDefaults() (Defaults, error) {
	var home string
	fromHome := func(elem ...string) (string, error) {
		if home == "" {
			h, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			home = h
		}
		return filepath.Join(append([]string{home}, elem...)...), nil
	}

	d := Defaults{
		ConfigPath: os.Getenv(EnvConfigPath),
		BaseDir:    os.Getenv(EnvHome),
	}
	var err error
	if d.ConfigPath == "" {
		if d.ConfigPath, err = fromHome(".config", "mcs.toml"); err != nil {
			return Defaults{}, err
		}
	}
	if d.BaseDir == "" {
		if d.BaseDir, err = fromHome(".local", "share", "mcs"); err != nil {
			return Defaults{}, err
		}
	}
	d.LogDir = filepath.Join(d.BaseDir, "log")
	return d, nil
}

// EnvPassphraseFunc returns $MCS_PASSPHRASE, or an error when it is unset.
func EnvPassphraseFunc() (string, error) {
	if p := os.Getenv(EnvPassphrase); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("$%s is not set", EnvPassphrase)
}
