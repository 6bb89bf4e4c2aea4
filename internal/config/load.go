package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is a resolved config plus the non-fatal warnings found on the way.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	// Exists is false when the file was missing and defaults were used.
	Exists bool
}

// Load resolves, reads, parses, and validates the runtime configuration. A
// missing file is not an error.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{Path: path, Config: Default()}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
		return loaded, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	loaded.Config, loaded.Warnings, loaded.Exists = cfg, warnings, true
	return loaded, nil
}
