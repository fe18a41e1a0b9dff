package config

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Defaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	logger, atom, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if atom.Level() != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", atom.Level())
	}
}

func TestNewLogger_EmptyLevel(t *testing.T) {
	_, atom, err := NewLogger(viper.New())
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if atom.Level() != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", atom.Level())
	}
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "warn")
	v.Set("logging.format", "console")

	_, atom, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if atom.Level() != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", atom.Level())
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "banana")

	if _, _, err := NewLogger(v); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "info")
	v.Set("logging.format", "xml")

	if _, _, err := NewLogger(v); err == nil {
		t.Fatal("expected error for invalid format")
	}
}

func TestApplyLogLevel(t *testing.T) {
	v := viper.New()
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	write := fsnotify.Event{Name: "brandingd.yaml", Op: fsnotify.Write}

	v.Set("logging.level", "debug")
	ApplyLogLevel(v, atom, zap.NewNop(), write)
	if atom.Level() != zapcore.DebugLevel {
		t.Errorf("level = %v, want debug", atom.Level())
	}

	v.Set("logging.level", "banana")
	ApplyLogLevel(v, atom, zap.NewNop(), write)
	if atom.Level() != zapcore.DebugLevel {
		t.Errorf("invalid level applied: %v", atom.Level())
	}

	v.Set("logging.level", "error")
	ApplyLogLevel(v, atom, zap.NewNop(), fsnotify.Event{Name: "brandingd.yaml", Op: fsnotify.Chmod})
	if atom.Level() != zapcore.DebugLevel {
		t.Errorf("chmod event changed level to %v", atom.Level())
	}
}
