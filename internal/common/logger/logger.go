package logger

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one JSON line per event. Every line carries the service name,
// the action that produced it and the host it ran on.
type Logger struct {
	z       *zap.Logger
	service string
}

func New(service string) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	stdout := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		levelFromEnv(),
	)
	// The global provider is a no-op until observability.SetupLogging runs.
	bridge := otelzap.NewCore("restaurant-pos/"+service, otelzap.WithLoggerProvider(global.GetLoggerProvider()))
	z := zap.New(zapcore.NewTee(stdout, bridge), zap.Fields(
		zap.String("service", service),
		zap.String("hostname", hostname()),
	))
	return &Logger{z: z, service: service}
}

// Nop discards everything. Used by tests.
func Nop() *Logger { return &Logger{z: zap.NewNop(), service: "nop"} }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{z: l.z.With(toZap(fields)...), service: l.service}
}

// Named returns a logger for a sub-component of the same process.
func (l *Logger) Named(service string) *Logger {
	return &Logger{z: l.z.With(zap.String("component", service)), service: l.service}
}

func (l *Logger) Zap() *zap.Logger { return l.z }

func (l *Logger) Sync() { _ = l.z.Sync() }

func (l *Logger) Info(action string, fields map[string]any) {
	l.z.Info(action, append(toZap(fields), zap.String("action", action))...)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.z.Debug(action, append(toZap(fields), zap.String("action", action))...)
}

func (l *Logger) Warn(action string, fields map[string]any) {
	l.z.Warn(action, append(toZap(fields), zap.String("action", action))...)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.z.Error(action, append(toZap(fields), zap.String("action", action), zap.Error(err))...)
}

func toZap(fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func levelFromEnv() zapcore.Level {
	if os.Getenv("POS_LOG_LEVEL") == "debug" {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
