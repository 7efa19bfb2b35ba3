package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// StdoutFile is the special Options.File value meaning "log to stdout".
	StdoutFile = "stdout"
)

// Options stores the configuration of a Logger.  Lumberjack is used for rolling files.
type Options struct {
	// File is the system file path for the log file.  If set to "stdout", this will log to os.Stdout.
	// Otherwise, a lumberjack.Logger is created
	File string `json:"file"`

	// MaxSize is the lumberjack MaxSize
	MaxSize int `json:"maxsize"`

	// MaxAge is the lumberjack MaxAge
	MaxAge int `json:"maxage"`

	// MaxBackups is the lumberjack MaxBackups
	MaxBackups int `json:"maxbackups"`

	// JSON is a flag indicating whether JSON logging output is used.  The default is false,
	// meaning that console (human-readable) output is used.
	JSON bool `json:"json"`

	// Level is the error level to output: error, info, warn, or debug.  Any unrecognized
	// string, including the empty string, is equivalent to passing info.
	Level string `json:"level"`
}

func (o *Options) output() io.Writer {
	if o != nil && len(o.File) > 0 && o.File != StdoutFile {
		return &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSize,
			MaxAge:     o.MaxAge,
			MaxBackups: o.MaxBackups,
		}
	}

	return os.Stdout
}

func (o *Options) level() zapcore.Level {
	var level string
	if o != nil {
		level = o.Level
	}
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (o *Options) encoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if o != nil && o.JSON {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// NewZapLogger builds a *zap.Logger from Options: a lumberjack-rotated file
// sink unless File is empty or "stdout", JSON or console encoding per the
// JSON flag, and the configured Level.
func NewZapLogger(o *Options) (*zap.Logger, error) {
	core := zapcore.NewCore(o.encoder(), zapcore.AddSync(o.output()), o.level())
	return zap.New(core, zap.AddCaller()), nil
}
