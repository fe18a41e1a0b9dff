package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a configured Zap logger from Viper settings.
// Reads "logging.level" (debug, info, warn, error; default "info")
// and "logging.format" (json, console; default "json").
// The returned AtomicLevel can be changed at runtime; see WatchLogLevel.
func NewLogger(v *viper.Viper) (*zap.Logger, zap.AtomicLevel, error) {
	level := v.GetString("logging.level")
	format := v.GetString("logging.format")

	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}

	atom := zap.NewAtomicLevelAt(zapLevel)
	cfg.Level = atom

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, atom, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var zapLevel zapcore.Level
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return zapLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zapLevel, nil
}

// WatchLogLevel re-reads logging.level whenever the config file changes and
// applies it to atom. Invalid levels are logged and ignored. Has no effect
// when no config file was loaded.
func WatchLogLevel(v *viper.Viper, atom zap.AtomicLevel, logger *zap.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		ApplyLogLevel(v, atom, logger, e)
	})
	v.WatchConfig()
}

// ApplyLogLevel is the config-change callback used by WatchLogLevel.
func ApplyLogLevel(v *viper.Viper, atom zap.AtomicLevel, logger *zap.Logger, e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	lvl, err := parseLevel(v.GetString("logging.level"))
	if err != nil {
		logger.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
		return
	}
	if lvl == atom.Level() {
		return
	}
	atom.SetLevel(lvl)
	logger.Info("log level changed", zap.String("level", lvl.String()), zap.String("file", e.Name))
}
