// Package logging builds the process logger and owns the debug switch
// flipped by ToggleDebug.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level       string   `toml:"level"`
	Development bool     `toml:"development"`
	OutputPaths []string `toml:"output_paths"`
}

func New(cfg Config) (*zap.Logger, *Switch, error) {
	base, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(base)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "build logger")
	}
	return logger, &Switch{level: zc.Level, base: base}, nil
}

func ParseLevel(text string) (zapcore.Level, error) {
	var level zapcore.Level
	if text == "" {
		return zapcore.InfoLevel, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(text))); err != nil {
		return level, errors.Wrapf(err, "parse log level %q", text)
	}
	return level, nil
}

// Switch moves a logger between its configured level and debug.
type Switch struct {
	level zap.AtomicLevel
	base  zapcore.Level
}

func NewSwitch(level zap.AtomicLevel) *Switch {
	return &Switch{level: level, base: level.Level()}
}

func (s *Switch) SetDebug(on bool) {
	if on {
		s.level.SetLevel(zapcore.DebugLevel)
	} else {
		s.level.SetLevel(s.base)
	}
}

func (s *Switch) Enabled() bool {
	return s.level.Enabled(zapcore.DebugLevel)
}
