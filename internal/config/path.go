package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// PathEnv overrides the config location when --config is not given.
const PathEnv = "MINDFUL_CONFIG"

// ResolvePath picks the config file: --config, then $MINDFUL_CONFIG, then
// $XDG_CONFIG_HOME/mindful/config.jsonc, then ~/.config/mindful/config.jsonc.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(PathEnv)} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return expandHome(candidate), nil
		}
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "mindful", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "mindful", "config.jsonc"), nil
}
