// Package logger configures the process-wide zerolog logger for pdftools:
// JSON to a rotated file, JSON or pretty text to the console, and optional
// shipping of info and above to Axiom.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName tags every event shipped to Axiom.
const ServiceName = "pdftools"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration

	// Stdout replaces os.Stdout as the console sink when set.
	Stdout io.Writer
}

var (
	global  zerolog.Logger
	shipper *axiomShipper
)

// Init replaces the global logger. A failing Axiom setup is reported on
// stderr and leaves local logging in place.
func Init(opts Options) error {
	sinks, err := localSinks(opts)
	if err != nil {
		return err
	}
	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		s, err := newAxiomShipper(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			fmt.Fprintf(os.Stderr, "axiom shipping disabled: %v\n", err)
		} else {
			shipper = s
			sinks = append(sinks, &axiomSink{ship: s, min: zerolog.InfoLevel})
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	global = zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Logger()
	log.Logger = global
	return nil
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// localSinks builds the rotated file and console writers.
func localSinks(opts Options) ([]io.Writer, error) {
	var sinks []io.Writer
	if opts.File != "" {
		f, err := fileSink(opts)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, f)
	}
	return append(sinks, consoleSink(opts)), nil
}

func fileSink(opts Options) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}

func consoleSink(opts Options) io.Writer {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out
}

// Close drains the Axiom shipper, if any.
func Close() {
	if shipper == nil {
		return
	}
	if dropped := shipper.Close(); dropped > 0 {
		fmt.Fprintf(os.Stderr, "axiom: dropped %d events on a full buffer\n", dropped)
	}
	shipper = nil
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }
