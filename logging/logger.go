// Package logging builds the JSON logger of the command line tools.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New logs errors to stderr and everything below to stdout, with RFC3339
// timestamps and caller information. Debug lines are kept only when verbose.
func New(verbose bool) *zap.Logger {
	return NewTo(zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr), verbose)
}

// NewTo is New with explicit destinations.
func NewTo(stdout, stderr zapcore.WriteSyncer, verbose bool) *zap.Logger {
	min := zapcore.InfoLevel
	if verbose {
		min = zapcore.DebugLevel
	}
	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= min && lvl < zapcore.ErrorLevel
	})

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder := zapcore.NewJSONEncoder(config)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stderr, isErrorLevel),
		zapcore.NewCore(encoder, stdout, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}

// Discard is a WriteSyncer that drops everything.
var Discard zapcore.WriteSyncer = zapcore.AddSync(io.Discard)
