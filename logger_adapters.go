// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// ZapLogger adapts a zap logger to the Logger interface
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	client, _ := jolokia.NewClient("http://localhost:8778/jolokia",
//	    jolokia.WithLogger(jolokia.NewZapLogger(zl)))
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil logger yields a no-op zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

// Debug logs a debug message with structured key-value pairs
func (z *ZapLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Debugw(msg, keysAndValues...)
}

// Info logs an informational message with structured key-value pairs
func (z *ZapLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with structured key-value pairs
func (z *ZapLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message with structured key-value pairs
func (z *ZapLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	z.sugar.Errorw(msg, keysAndValues...)
}

// ZerologLogger adapts a zerolog logger to the Logger interface
//
// The context passed to each call is attached to the event, so hooks that
// read values from the context keep working.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps l
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: l}
}

// Debug logs a debug message with structured key-value pairs
func (z *ZerologLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Debug().Ctx(ctx).Fields(keysAndValues).Msg(msg)
}

// Info logs an informational message with structured key-value pairs
func (z *ZerologLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Info().Ctx(ctx).Fields(keysAndValues).Msg(msg)
}

// Warn logs a warning message with structured key-value pairs
func (z *ZerologLogger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Warn().Ctx(ctx).Fields(keysAndValues).Msg(msg)
}

// Error logs an error message with structured key-value pairs
func (z *ZerologLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	z.logger.Error().Ctx(ctx).Fields(keysAndValues).Msg(msg)
}
