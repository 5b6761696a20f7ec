// Package loader reads analysis payloads from disk.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codescape/internal/codec"
	"codescape/internal/domain"
)

// Format returns the payload format a path's extension names. Anything that
// is not YAML is read as JSON.
func Format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// LoadFile reads and decodes the payload at path
func LoadFile(path string) (*domain.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload: %w", err)
	}
	defer f.Close()

	p, err := codec.ImporterFor(Format(path)).Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return p, nil
}
