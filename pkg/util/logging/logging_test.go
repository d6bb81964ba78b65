package logging

import (
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
)

func withVerbosity(t *testing.T, value string, fn func()) {
	t.Helper()
	old, had := os.LookupEnv("EVA_VERBOSITY")
	if value == "" {
		os.Unsetenv("EVA_VERBOSITY")
	} else {
		os.Setenv("EVA_VERBOSITY", value)
	}
	defer func() {
		if had {
			os.Setenv("EVA_VERBOSITY", old)
		} else {
			os.Unsetenv("EVA_VERBOSITY")
		}
	}()
	fn()
}

func TestInitAcceptsNamesAndNumbers(t *testing.T) {
	cases := []struct {
		value string
		want  log.Level
	}{
		{"silent", log.ErrorLevel},
		{"info", log.InfoLevel},
		{"debug", log.DebugLevel},
		{"trace", log.TraceLevel},
		{"0", log.ErrorLevel},
		{"1", log.InfoLevel},
		{"2", log.DebugLevel},
		{"3", log.TraceLevel},
		{"", log.InfoLevel},
	}
	for _, c := range cases {
		withVerbosity(t, c.value, func() {
			Init()
			if got := log.GetLevel(); got != c.want {
				t.Errorf("EVA_VERBOSITY=%q: got level %v, want %v", c.value, got, c.want)
			}
		})
	}
}

func TestInitRejectsUnknownValue(t *testing.T) {
	withVerbosity(t, "deafening", func() {
		Init()
		if got := log.GetLevel(); got != log.InfoLevel {
			t.Errorf("unrecognized EVA_VERBOSITY should default to info, got %v", got)
		}
	})
}

func TestBumpStepsUpOnce(t *testing.T) {
	withVerbosity(t, "silent", func() {
		Init()
		Bump()
		if got := log.GetLevel(); got != log.InfoLevel {
			t.Errorf("Bump from silent should reach info, got %v", got)
		}
		Bump()
		if got := log.GetLevel(); got != log.DebugLevel {
			t.Errorf("Bump from info should reach debug, got %v", got)
		}
	})
}
