package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describes a Harmony logger.
type Config struct {
	// Component identifies the emitting binary (e.g., "api-server", "harmony-cli").
	Component string
	// Version is stamped on every entry when set.
	Version string
	// Level controls the minimum severity ("debug", "info", "warn", "error").
	Level string
	// Encoding selects "json" (default) or "console" for the CLI.
	Encoding string
	// Output overrides the sink; defaults to stdout.
	Output io.Writer
	// SampleInitial and SampleThereafter enable per-second sampling of identical messages.
	// Zero disables sampling.
	SampleInitial    int
	SampleThereafter int
}

// NewLogger builds a zap logger whose JSON output uses Cloud Logging severity names.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level == "" {
		level.SetLevel(zapcore.InfoLevel)
	} else if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeLevel:    gcpLevelEncoder,
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Encoding) {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log encoding %q", cfg.Encoding)
	}

	var sink io.Writer = os.Stdout
	if cfg.Output != nil {
		sink = cfg.Output
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), level)
	if cfg.SampleInitial > 0 {
		core = zapcore.NewSamplerWithOptions(core, time.Second, cfg.SampleInitial, cfg.SampleThereafter)
	}

	var fields []zap.Field
	if cfg.Component != "" {
		fields = append(fields, zap.String("component", cfg.Component))
	}
	if cfg.Version != "" {
		fields = append(fields, zap.String("version", cfg.Version))
	}
	return zap.New(core, zap.AddCaller()).With(fields...), nil
}

func gcpLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("DEBUG")
	case zapcore.InfoLevel:
		enc.AppendString("INFO")
	case zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case zapcore.ErrorLevel:
		enc.AppendString("ERROR")
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		enc.AppendString("ALERT")
	case zapcore.FatalLevel:
		enc.AppendString("CRITICAL")
	default:
		enc.AppendString(strings.ToUpper(l.String()))
	}
}
