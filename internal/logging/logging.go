// Package logging builds the hclog loggers used across EmberKV.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Config holds logger configuration.
type Config struct {
	// Level is one of trace, debug, info, warn, error.
	Level string
	// JSON switches the output to one JSON object per line.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns the root logger. Components derive theirs with Named.
func New(cfg Config) (hclog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "emberkv",
		Level:      level,
		Output:     out,
		JSONFormat: cfg.JSON,
	}), nil
}

// ParseLevel accepts the level names in any case. An empty name means info.
func ParseLevel(name string) (hclog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return hclog.Info, nil
	}
	level := hclog.LevelFromString(name)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

