// Package specter assembles the master server: configuration, logging, and
// process lifecycle.
package specter

import (
	"fmt"
	"net/netip"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Config contains the configuration for the master server. The env struct
// tag contains the environment variable name and the default value if
// missing, or empty (if not ?=).
type Config struct {
	// The IP address to listen on.
	IP netip.Addr `env:"SPECTER_IP=0.0.0.0"`

	// The UDP port to listen on.
	Port uint16 `env:"SPECTER_PORT=27010"`

	// How long, in seconds, a pending registration challenge stays valid.
	TimeoutChallenge uint32 `env:"SPECTER_TIMEOUT_CHALLENGE=300"`

	// How long, in seconds, a registered server stays listed without
	// re-registering.
	TimeoutServer uint32 `env:"SPECTER_TIMEOUT_SERVER=300"`

	// The minimum log level: off, error, warn, info, debug, trace, a unique
	// prefix thereof, or 0-5.
	LogLevel zerolog.Level `env:"SPECTER_LOG_LEVEL=warn"`

	// Whether to prefix log lines with a local timestamp.
	LogTime bool `env:"SPECTER_LOG_TIME=true"`

	// The log file to output to, if provided. Reopened on SIGHUP.
	LogFile string `env:"SPECTER_LOG_FILE"`

	// The minimum log level for the log file.
	LogFileLevel zerolog.Level `env:"SPECTER_LOG_FILE_LEVEL=info"`

	// If provided, the address of an insecure debug HTTP listener exposing
	// pprof and Prometheus metrics.
	DebugAddr string `env:"SPECTER_DEBUG_ADDR"`

	// For sd-notify.
	NotifySocket string `env:"NOTIFY_SOCKET"`
}

// UnmarshalEnv unmarshals an array of environment variables into c, setting
// default values as appropriate. If incremental is true, default values will
// not be set for missing env vars, but only for empty ones.
func (c *Config) UnmarshalEnv(es []string, incremental bool) error {
	em := map[string]string{}
	for _, e := range es {
		if strings.HasPrefix(e, "SPECTER_") || strings.HasPrefix(e, "NOTIFY_SOCKET=") {
			if k, v, ok := strings.Cut(e, "="); ok {
				em[k] = v
			}
		}
	}
	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		env, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}

		var unsettable bool
		key, val, _ := strings.Cut(env, "=")
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			unsettable = true
		}
		if v, exists := em[key]; exists {
			if unsettable || v != "" {
				val = v
			}
			delete(em, key)
		} else if incremental {
			continue
		}

		switch cvf := cv.FieldByName(ctf.Name); cvf.Interface().(type) {
		case string:
			cvf.SetString(val)
		case bool:
			if val == "" {
				cvf.SetBool(false)
			} else if v, err := strconv.ParseBool(val); err == nil {
				cvf.SetBool(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case uint16, uint32:
			if v, err := strconv.ParseUint(val, 10, cvf.Type().Bits()); err == nil {
				cvf.SetUint(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case netip.Addr:
			if v, err := netip.ParseAddr(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case zerolog.Level:
			if v, err := ParseLogLevel(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		default:
			return fmt.Errorf("unhandled type %T (%s)", cvf.Interface(), env)
		}
	}
	for key, val := range em {
		if val != "" {
			return fmt.Errorf("unknown environment variable %q", key)
		}
	}
	return nil
}

// ParseLogLevel parses a level name (off, error, warn, info, debug, trace),
// any prefix of one (e.g., "e" for error), or a digit 0-5 in that order.
func ParseLogLevel(s string) (zerolog.Level, error) {
	if s != "" {
		for _, l := range []struct {
			name  string
			level zerolog.Level
		}{
			{"off", zerolog.Disabled},
			{"error", zerolog.ErrorLevel},
			{"warn", zerolog.WarnLevel},
			{"info", zerolog.InfoLevel},
			{"debug", zerolog.DebugLevel},
			{"trace", zerolog.TraceLevel},
		} {
			if strings.HasPrefix(l.name, s) {
				return l.level, nil
			}
		}
	}
	switch s {
	case "0":
		return zerolog.Disabled, nil
	case "1":
		return zerolog.ErrorLevel, nil
	case "2":
		return zerolog.WarnLevel, nil
	case "3":
		return zerolog.InfoLevel, nil
	case "4":
		return zerolog.DebugLevel, nil
	case "5":
		return zerolog.TraceLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
}
