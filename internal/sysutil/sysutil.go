// Package sysutil holds small process-level helpers used by the server
// entrypoint: log level selection, build metadata fallbacks and worker
// identity for snowflake ids.
package sysutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// MaxNodeID is the largest worker id a snowflake node accepts (10 bits).
const MaxNodeID = 1023

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
// Anything else selects info.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// FirstNonEmpty returns the first value that is not blank, unchanged.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ParseNodeID parses a snowflake worker id. Blank input yields def.
// Replicas writing to the same database need distinct ids, otherwise
// activity log ids can collide.
func ParseNodeID(raw string, def int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, fmt.Errorf("node id %q: %w", raw, err)
	}
	if id < 0 || id > MaxNodeID {
		return def, fmt.Errorf("node id %d out of range [0,%d]", id, MaxNodeID)
	}
	return id, nil
}
