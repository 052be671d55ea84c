package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions: параметры логгера из секции app конфига.
type LogOptions struct {
	// Level: debug, info, warn, error. По умолчанию info.
	Level string

	// Dir: директория для файла tripmate-YYYY-MM-DD-HH-MM.log.
	// Пустая строка: текущая директория.
	Dir string

	// Stderr дублирует записи в stderr (режим --verbose).
	Stderr bool
}

var (
	logMu  sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// InitLogger создаёт структурный логгер, пишущий JSON в файл.
//
// До вызова InitLogger все функции логирования - no-op, поэтому
// библиотечный код и тесты не пишут в stdout/stderr.
func InitLogger(opts LogOptions) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	filename := fmt.Sprintf("tripmate-%s.log", time.Now().Format("2006-01-02-15-04"))
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		filename = filepath.Join(opts.Dir, filename)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{filename}
	if opts.Stderr {
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	SetLogger(l)
	Info("Logger initialized", "file", filename, "level", level.String())
	return nil
}

// SetLogger подменяет логгер (используется в InitLogger и в тестах).
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l.Sugar()
}

func current() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) { current().Infow(msg, keyvals...) }

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) { current().Errorw(msg, keyvals...) }

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) { current().Debugw(msg, keyvals...) }

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) { current().Warnw(msg, keyvals...) }

// Close сбрасывает буферы логгера. main вызывает его перед выходом.
func Close() {
	_ = current().Sync()
}
