// Package logging configures zerolog for swcache.
//
// Every package obtains its logger from NewLogger, so each record carries a
// component field (store, strategy, lifecycle, syncq, router, runtime, ...)
// and honours a per-component level override:
//
//	logging:
//	  level: warn
//	  components:
//	    syncq: debug
//
// Levels used across the module:
//
//	debug  cache hits and misses, strategy selection, connectivity probes
//	info   phase changes, stale stores deleted, pending writes queued or synced
//	warn   storage failures served as misses, network fallbacks, rejected syncs
//	error  precache failures, install retries exhausted
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the default minimum level (default: info).
	Level string

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output receives log records (default: os.Stderr).
	Output io.Writer

	// Components overrides Level per component name.
	Components map[string]string
}

// levels is the level table installed by Setup. Nil until Setup runs, in
// which case component loggers inherit the global logger unchanged.
var (
	levelsMu sync.RWMutex
	levels   *levelTable
)

type levelTable struct {
	base       zerolog.Level
	components map[string]zerolog.Level
}

func (t *levelTable) lookup(component string) zerolog.Level {
	if lvl, ok := t.components[component]; ok {
		return lvl
	}
	return t.base
}

// ParseLevel maps a configuration value to a zerolog level. An empty value
// means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Setup installs the global logger. The global zerolog level is lowered to
// the most verbose configured level so that component overrides below the
// default still reach their writers.
func Setup(cfg Config) (zerolog.Logger, error) {
	base, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	table := &levelTable{base: base, components: make(map[string]zerolog.Level, len(cfg.Components))}
	floor := base
	for component, value := range cfg.Components {
		lvl, err := ParseLevel(value)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("component %s: %w", component, err)
		}
		table.components[component] = lvl
		if lvl < floor {
			floor = lvl
		}
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(floor)
	logger := zerolog.New(output).Level(base).With().Timestamp().Logger()
	log.Logger = logger

	levelsMu.Lock()
	levels = table
	levelsMu.Unlock()
	return logger, nil
}

// NewLogger returns the global logger tagged with component, at the level
// configured for that component.
func NewLogger(component string) zerolog.Logger {
	logger := log.Logger.With().Str("component", component).Logger()

	levelsMu.RLock()
	table := levels
	levelsMu.RUnlock()
	if table == nil {
		return logger
	}
	return logger.Level(table.lookup(component))
}
