// Package logger initialises the global zerolog logger from the Log configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelWriter implements a struct to split logs by info and error and up level.
// See func WriteLevel about the separation.
type LevelWriter struct {
	io.Writer
	ErrorWriter io.Writer
	InfoWriter  io.Writer
	TraceWriter io.Writer
	WarnWriter  io.Writer
}

// WriteLevel splits logging by level and links the pointer to the target output depending on the logger defined.
func (lw *LevelWriter) WriteLevel(l zerolog.Level, p []byte) (n int, err error) {
	var w io.Writer

	// disabled logging
	if l == zerolog.Disabled {
		return 0, nil
	}

	switch {
	case l == zerolog.TraceLevel:
		w = lw.TraceWriter
	case l == zerolog.WarnLevel:
		w = lw.WarnWriter
	case l > zerolog.WarnLevel: // error and fatal panic go to error
		w = lw.ErrorWriter
	default:
		w = lw.InfoWriter // debug and info go to info
	}

	return w.Write(p) //nolint:wrapcheck
}

// Init the zerolog logger.
// Depending on the config it enables all, some or no logger at all.
// Be sure to enable at least one logger for output.
func Init(cfg Log) error {
	var (
		logLevel, err = zerolog.ParseLevel(cfg.LogLevel)
		writers       []io.Writer
		stack         bool
	)

	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("loglevel %s is not supported", cfg.LogLevel))
	}

	if cfg.ServiceName == "" {
		return ErrServiceNameIsEmpty
	}

	if cfg.AppName == "" {
		return ErrAppNameIsEmpty
	}

	// use zerolog stack marshal func if trace level is set
	if logLevel == zerolog.TraceLevel {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack //nolint:reassign
		stack = true
	}

	zerolog.SetGlobalLevel(logLevel)
	zerolog.ErrorHandler = ErrorHandler

	ph := NewPrometheusHook(cfg.ServiceName)

	if cfg.Console.Enabled {
		writers = append(writers, NewConsoleWriter(cfg))
	}

	if cfg.File.Enabled {
		fw, errFile := newRollingLevelFiles(cfg.File)
		if errFile != nil {
			return errFile
		}

		writers = append(writers, fw)
	}

	lc := zerolog.New(zerolog.MultiLevelWriter(writers...)).Hook(ph).With().
		Timestamp().
		Str("app", cfg.AppName)

	switch {
	case cfg.ReportCaller && stack:
		lc = lc.Stack().Caller()
	case cfg.ReportCaller:
		lc = lc.Caller()
	}

	log.Logger = lc.Logger()

	return nil
}

// RollingFile creates a lumberjack writer for r inside dir, creating dir when needed.
func RollingFile(dir string, r Rotation) (io.Writer, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:mnd
			return nil, errors.Wrapf(err, "can't create log directory %s", dir)
		}
	}

	return &lumberjack.Logger{
		Filename:   path.Join(dir, r.Name),
		MaxSize:    r.MaxSize,
		MaxAge:     r.MaxAge,
		MaxBackups: r.MaxBackups,
		LocalTime:  false,
		Compress:   false,
	}, nil
}

// newRollingLevelFiles uses LevelWriter and lumberjack to create file based log.
func newRollingLevelFiles(cfg LogFile) (io.Writer, error) {
	var (
		lw  LevelWriter
		err error
	)

	targets := []struct {
		w *io.Writer
		r Rotation
	}{
		{&lw.ErrorWriter, cfg.Error},
		{&lw.InfoWriter, cfg.Info},
		{&lw.TraceWriter, cfg.Trace},
		{&lw.WarnWriter, cfg.Warn},
	}

	for _, t := range targets {
		if *t.w, err = RollingFile(cfg.Path, t.r); err != nil {
			return nil, err
		}
	}

	return &lw, nil
}

// NewConsoleWriter creates the console writer: stdout for debug and info, stderr for the rest.
func NewConsoleWriter(cfg Log) io.Writer {
	lw := LevelWriter{
		ErrorWriter: os.Stderr,
		InfoWriter:  os.Stdout,
		TraceWriter: os.Stderr,
		WarnWriter:  os.Stderr,
	}

	if cfg.Console.UseConsoleWriter {
		pretty := func(out io.Writer) io.Writer {
			return zerolog.ConsoleWriter{Out: out, NoColor: false, TimeFormat: zerolog.TimeFieldFormat}
		}

		lw.ErrorWriter = pretty(os.Stderr)
		lw.InfoWriter = pretty(os.Stdout)
		lw.TraceWriter = pretty(os.Stderr)
		lw.WarnWriter = pretty(os.Stderr)
	}

	return &lw
}
