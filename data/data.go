package data

import (
	"os"
	"path/filepath"
)

// Dir returns the data directory, creating it if needed
func Dir() string {
	dir := os.ExpandEnv("$HOME/.wildmap")
	path := filepath.Join(dir, "data")
	os.MkdirAll(path, 0700)
	return path
}
