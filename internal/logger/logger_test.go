package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func jsonLogger(buf *bytes.Buffer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

// Session-scoped entries are structured JSON carrying the session id
func TestProperty_SessionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("session logs are JSON with level, message and session_id", prop.ForAll(
		func(message string, sessionID string, level string) bool {
			var buf bytes.Buffer
			logger := ForSession(jsonLogger(&buf), sessionID)
			defer logger.Sync()

			switch level {
			case "debug":
				logger.Debug(message)
			case "warn":
				logger.Warn(message)
			case "error":
				logger.Error(message)
			default:
				logger.Info(message)
			}

			var logEntry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				return false
			}

			if logEntry["level"] != level {
				return false
			}
			if logEntry["message"] != message {
				return false
			}
			return logEntry["session_id"] == sessionID
		},
		gen.AlphaString(),
		gen.Identifier(),
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewRespectsLevel(t *testing.T) {
	logger, err := New("production", "warn")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("Warn should be enabled at warn level")
	}
}

func TestNewDefaultLevels(t *testing.T) {
	prod, err := New("production", "")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Production logger should not log debug by default")
	}

	dev, err := New("development", "")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Development logger should log debug by default")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("production", "loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestForSessionAddsField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ForSession(zap.New(core), "sid-1").Info("cart loaded")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["session_id"]; got != "sid-1" {
		t.Errorf("Expected session_id sid-1, got %v", got)
	}
}
