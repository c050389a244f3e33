package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileLogger is a zap logger writing JSON lines to a file. The terminal
// belongs to the TUI, so nothing is ever logged to stdout or stderr.
type FileLogger struct {
	Logger  *zap.Logger
	Close   func() error
	Path    string
	Enabled bool
}

func Nop() FileLogger {
	return FileLogger{Logger: zap.NewNop(), Close: func() error { return nil }}
}

// New opens a file logger at path for the given level. Level "off" or ""
// returns a no-op logger.
func New(path, level string) (FileLogger, error) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" || lvl == "off" {
		return Nop(), nil
	}
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(lvl)); err != nil {
		return Nop(), fmt.Errorf("parse log level %q: %w", level, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Nop(), fmt.Errorf("create log dir for %q: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return Nop(), fmt.Errorf("open log file %q: %w", path, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zap.NewAtomicLevelAt(zl))
	logger := zap.New(core, zap.AddCaller())
	return FileLogger{
		Logger: logger,
		Close: func() error {
			_ = logger.Sync()
			return file.Close()
		},
		Path:    path,
		Enabled: true,
	}, nil
}
