// Package main is the entry point for the doisync command.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openscholar/doisync/cmd/doisync/app"
)

// getLogLevel parses the DOISYNC_LOG_LEVEL environment variable.
// Defaults to info if unset or invalid.
func getLogLevel() zapcore.Level {
	v := viper.New()
	v.SetEnvPrefix("DOISYNC")
	v.AutomaticEnv()

	switch strings.ToLower(v.GetString("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	// Structured JSON logging on stderr keeps stdout clean for commands that
	// output data (e.g. version --format json).
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(getLogLevel())
	zapCfg.OutputPaths = []string{"stderr"}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	logger := zapr.NewLogger(zapLogger)

	if err := app.NewRootCmd(logger).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
