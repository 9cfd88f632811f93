// Package logging wraps logrus with the process-wide logger configuration
// used across edgestats: console output by default, optional rotated file
// output for long-running deployments.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "edgestats.log"

// SetupBaseLogger applies the default formatter and level. Call once at startup.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
}

// SetDebug toggles debug-level logging.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// ConfigureLogOutput switches logging to a rotated file under dir when
// toFile is set. An empty dir falls back to the working directory.
func ConfigureLogOutput(toFile bool, dir string) error {
	if !toFile {
		log.SetOutput(os.Stderr)
		return nil
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
	return nil
}

// Convenience pass-throughs so callers can import a single logging package.

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }

func Debug(args ...any) { log.Debug(args...) }
func Info(args ...any)  { log.Info(args...) }
func Warn(args ...any)  { log.Warn(args...) }
func Error(args ...any) { log.Error(args...) }

// WithError mirrors logrus.WithError for structured error context.
func WithError(err error) *log.Entry { return log.WithError(err) }
