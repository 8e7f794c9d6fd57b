package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// SetupLogging configures the standard library logger to write to both
// stdout and the configured log file, creating the file's directory if
// necessary.
func SetupLogging(c *Config) error {
	dir := filepath.Dir(c.LogFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}
