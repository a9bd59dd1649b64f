// Package utils holds small helpers shared across the proxy's components,
// starting with structured logging.
package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the interface components depend on, so tests can substitute a
// buffering logger without pulling in logrus everywhere.
type Logger = logrus.FieldLogger

const logLevelEnv = "SATPROXY_LOG_LEVEL"

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	readLoggingEnv()
}

// SetLogLevel sets the log level programmatically (tests, cmd/satproxyd
// config handling).
func SetLogLevel(level logrus.Level) {
	base.SetLevel(level)
}

// SetLogLevelName parses level (as accepted by logrus.ParseLevel) and
// applies it, leaving the current level untouched on an empty or invalid
// name. config.go's Logging.Level field is a plain string so a TOML file
// reads the same vocabulary as SATPROXY_LOG_LEVEL.
func SetLogLevelName(level string) {
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	base.SetLevel(lvl)
}

// NewLogger returns a FieldLogger rooted at the shared base logger. Callers
// add per-connection context (four-tuple, DCID) with WithFields.
func NewLogger() Logger {
	return base
}

func readLoggingEnv() {
	env := strings.ToLower(os.Getenv(logLevelEnv))
	if env == "" {
		base.SetLevel(logrus.WarnLevel)
		return
	}
	lvl, err := logrus.ParseLevel(env)
	if err != nil {
		base.SetLevel(logrus.WarnLevel)
		return
	}
	base.SetLevel(lvl)
}
