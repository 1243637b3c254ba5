// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/netascode/go-jolokia"
)

// Log file rotation settings
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// zapLevels maps library log levels to zap levels
var zapLevels = map[jolokia.LogLevel]zapcore.Level{
	jolokia.LogLevelDebug: zapcore.DebugLevel,
	jolokia.LogLevelInfo:  zapcore.InfoLevel,
	jolokia.LogLevelWarn:  zapcore.WarnLevel,
	jolokia.LogLevelError: zapcore.ErrorLevel,
}

// newLogger builds the CLI logger
//
// Logs go to errOut in console format, or to a rotating JSON log file when
// file is set. Level "none" disables logging.
func newLogger(level, file string, errOut io.Writer) (*zap.Logger, error) {
	parsed, err := jolokia.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	lvl, ok := zapLevels[parsed]
	if !ok {
		return zap.NewNop(), nil
	}

	if file == "" {
		encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			MessageKey:     "message",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
		})
		core := zapcore.NewCore(encoder, zapcore.AddSync(errOut), zap.NewAtomicLevelAt(lvl))
		return zap.New(core), nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	})
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller()), nil
}
