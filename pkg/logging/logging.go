package logging

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level         string
	Path          string
	RotationHours int
	MaxAgeDays    int
}

var (
	logger = newConsoleLogger(zapcore.InfoLevel)
	mu     sync.RWMutex
)

// Init replaces the default console logger with one that also writes to a
// rotating file under cfg.Path. An empty path keeps console output only.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return err
		}
	}
	if cfg.Path == "" {
		setLogger(newConsoleLogger(level))
		return nil
	}

	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return err
	}
	rotationHours := cfg.RotationHours
	if rotationHours <= 0 {
		rotationHours = 24
	}
	maxAgeDays := cfg.MaxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	fileName := filepath.Join(cfg.Path, "relay.log")
	writer, err := rotatelogs.New(
		fileName+".%Y%m%d",
		rotatelogs.WithLinkName(fileName),
		rotatelogs.WithRotationTime(time.Duration(rotationHours)*time.Hour),
		rotatelogs.WithMaxAge(time.Duration(maxAgeDays)*24*time.Hour),
	)
	if err != nil {
		return err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(writer), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), level),
	)
	setLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

func newConsoleLogger(level zapcore.Level) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func setLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger swaps the package logger, mostly for tests using zaptest/observer.
func SetLogger(l *zap.Logger) {
	setLogger(l.WithOptions(zap.AddCallerSkip(1)))
}

func Sync() {
	_ = get().Sync()
}

func Debug(msg string, fields ...zap.Field) {
	get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	get().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	get().Fatal(msg, fields...)
}
