package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "CODESCAPE_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "codescape.yaml"
	// TOMLConfigFileName is the TOML spelling of ConfigFileName
	TOMLConfigFileName = "codescape.toml"
	// ConfigDirName is the directory under XDG and /etc
	ConfigDirName = "codescape"
)

// dirFileNames are tried inside each config directory, YAML first
var dirFileNames = []string{"config.yaml", "config.toml"}

// SearchPaths lists config candidates in lookup order: $CODESCAPE_CONFIG,
// the working directory, $XDG_CONFIG_HOME/codescape, ~/.config/codescape,
// then /etc/codescape. Each directory is tried for YAML before TOML.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName, TOMLConfigFileName)

	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, ConfigDirName))
	}
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", ConfigDirName))
	}
	dirs = append(dirs, filepath.Join("/etc", ConfigDirName))

	for _, dir := range dirs {
		for _, name := range dirFileNames {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

// FindConfigPath returns the first existing SearchPaths entry, made absolute
// when relative, or "" when there is none
func FindConfigPath() string {
	for _, p := range SearchPaths() {
		if !fileExists(p) {
			continue
		}
		if !filepath.IsAbs(p) {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
		}
		return p
	}
	return ""
}

// EnsureConfigDir creates the directory configPath lives in
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
