package repocopilot

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logFormatJSON    = "json"
	logFormatConsole = "console"
)

// newLogger builds the run logger from common.logging. Logs go to sink, never to the report stream.
func newLogger(level string, format string, verbose bool, quiet bool, sink io.Writer) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	logLevel := zapcore.InfoLevel
	if trimmed := strings.TrimSpace(level); trimmed != "" {
		parsed, parseErr := zapcore.ParseLevel(trimmed)
		if parseErr != nil {
			return nil, fmt.Errorf(loggerConfigurationErrorFormat, parseErr)
		}
		logLevel = parsed
	}
	if verbose {
		logLevel = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(format)) {
	case logFormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "", logFormatConsole, "text":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf(loggerConfigurationErrorFormat, fmt.Errorf("unknown log format %q", format))
	}
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(sink), logLevel)), nil
}
