// Package logging sets the process-wide logrus level once at startup, per
// spec §6.5: the `EVA_VERBOSITY` environment variable selects how chatty
// the compiler's diagnostics are, independently of any CLI flag.
package logging

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// verbosityLevels orders the four admissible names from quietest to
// loudest; a numeric EVA_VERBOSITY of 0..3 indexes into this slice.
var verbosityLevels = []log.Level{
	log.ErrorLevel, // 0: silent
	log.InfoLevel,  // 1: info
	log.DebugLevel, // 2: debug
	log.TraceLevel, // 3: trace
}

// Init reads EVA_VERBOSITY and sets logrus's package-level level
// accordingly. It is safe to call multiple times; the last call wins. An
// unset or unrecognized value leaves the default (info) level in place,
// with a warning logged for the latter.
func Init() {
	raw := strings.TrimSpace(os.Getenv("EVA_VERBOSITY"))
	if raw == "" {
		log.SetLevel(log.InfoLevel)
		return
	}

	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n >= len(verbosityLevels) {
			log.Warnf("logging: EVA_VERBOSITY=%q out of range 0..%d, defaulting to info", raw, len(verbosityLevels)-1)
			log.SetLevel(log.InfoLevel)
			return
		}
		log.SetLevel(verbosityLevels[n])
		return
	}

	switch strings.ToLower(raw) {
	case "silent":
		log.SetLevel(log.ErrorLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "trace":
		log.SetLevel(log.TraceLevel)
	default:
		log.Warnf("logging: unrecognized EVA_VERBOSITY=%q, defaulting to info", raw)
		log.SetLevel(log.InfoLevel)
	}
}

// Bump raises the current level by one step (info -> debug -> trace),
// used by the CLI's "--verbose" flag to override EVA_VERBOSITY for a
// single invocation.
func Bump() {
	switch log.GetLevel() {
	case log.ErrorLevel:
		log.SetLevel(log.InfoLevel)
	case log.InfoLevel:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.TraceLevel)
	}
}
