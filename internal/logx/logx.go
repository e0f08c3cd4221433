// Package logx builds the run logger from configured verbosity levels.
// The core only forwards levels; interpretation belongs to zap.
package logx

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger at the given level. With storePath set, a
// second JSON core writes to that file at storeLevel, so a quiet console
// can coexist with a verbose stored log.
func New(consoleLevel, storeLevel, storePath string) (*zap.Logger, error) {
	cl, err := zapcore.ParseLevel(consoleLevel)
	if err != nil {
		return nil, fmt.Errorf("console log level: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		cl,
	)

	if storePath == "" {
		return zap.New(consoleCore), nil
	}

	sl, err := zapcore.ParseLevel(storeLevel)
	if err != nil {
		return nil, fmt.Errorf("store log level: %w", err)
	}
	file, err := os.OpenFile(storePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(file),
		sl,
	)

	return zap.New(zapcore.NewTee(consoleCore, fileCore)), nil
}
