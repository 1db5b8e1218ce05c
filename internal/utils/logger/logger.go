package logger

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dwarvesf/escrow-backend/internal/types/environments"
)

type ctxKey struct{}

// Logger is a zap logger taking string fields. Fields are emitted in key
// order so lines for the same event diff cleanly.
type Logger struct {
	wrappedLogger *zap.Logger
}

func New(env environments.Environment) *Logger {
	zapLogger, err := configFor(env).Build(zap.AddCallerSkip(2))
	if err != nil {
		panic(err)
	}

	return &Logger{
		wrappedLogger: zapLogger,
	}
}

func (l *Logger) Debug(msg string, inputFields ...map[string]string) {
	l.log(zapcore.DebugLevel, msg, inputFields)
}

func (l *Logger) Info(msg string, inputFields ...map[string]string) {
	l.log(zapcore.InfoLevel, msg, inputFields)
}

func (l *Logger) Warn(msg string, inputFields ...map[string]string) {
	l.log(zapcore.WarnLevel, msg, inputFields)
}

func (l *Logger) Error(msg string, inputFields ...map[string]string) {
	l.log(zapcore.ErrorLevel, msg, inputFields)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, inputFields ...map[string]string) {
	l.log(zapcore.FatalLevel, msg, inputFields)
}

func (l *Logger) log(level zapcore.Level, msg string, inputFields []map[string]string) {
	ce := l.wrappedLogger.Check(level, msg)
	if ce == nil {
		return
	}

	var fields []zap.Field
	if len(inputFields) > 0 {
		fields = transformStrMapToFields(inputFields[0])
	}
	ce.Write(fields...)
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields map[string]string) *Logger {
	return &Logger{
		wrappedLogger: l.wrappedLogger.With(transformStrMapToFields(fields)...),
	}
}

// ContextWithRequestID stores the request id picked by the HTTP layer.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID returns the id stored by ContextWithRequestID, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithContext tags entries with the request id carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id := RequestID(ctx)
	if id == "" {
		return l
	}
	return &Logger{wrappedLogger: l.wrappedLogger.With(zap.String("request_id", id))}
}

// Sync flushes buffered entries; call it before the process exits.
func (l *Logger) Sync() {
	_ = l.wrappedLogger.Sync()
}

func transformStrMapToFields(strMap map[string]string) []zap.Field {
	keys := make([]string, 0, len(strMap))
	for k := range strMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, strMap[k]))
	}
	return fields
}
