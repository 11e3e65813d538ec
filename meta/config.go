// Package meta compiles patterns into engines and runs searches over them.
//
// An Engine owns everything derived from one pattern: the analyzed tree's
// search hints, the bytecode program, the interpreter and the prefilter
// searcher chosen from the hints. Search narrows the admissible start
// positions with the pattern's anchors and distance bounds, jumps between
// candidate positions with the searcher and runs the interpreter at each
// of them.
//
// The package provides the engine behind the root btregex API.
package meta

import (
	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/syntax"
)

// Config controls compilation and the resources of a search.
//
// Example:
//
//	config := meta.DefaultConfig()
//	config.EnableCombExpCheck = false // explore every state
//	engine, err := meta.CompileWithConfig(`(a+)+b`, config)
type Config struct {
	// Syntax selects the pattern dialect.
	// Default: syntax.SyntaxRuby
	Syntax *syntax.Syntax

	// Encoding is the character encoding of patterns and subjects.
	// Default: syntax.UTF8
	Encoding syntax.Encoding

	// Options are the compile-time options.
	// Default: syntax.OptionNone
	Options syntax.Options

	// EnableOptimization computes search hints. When false every position
	// between start and range is tried.
	// Default: true
	EnableOptimization bool

	// EnableAutoPossessive turns greedy repeats that cannot give back
	// anything useful into atomic groups.
	// Default: true
	EnableAutoPossessive bool

	// EnableCombExpCheck memoizes failed (position, repeat) states of
	// nested repeats to bound backtracking.
	// Default: true
	EnableCombExpCheck bool

	// CaseFoldAltThreshold bounds the number of alternatives a
	// case-insensitive string expands into.
	// Default: 8
	CaseFoldAltThreshold int

	// BigRepeatThreshold is the variability from which a bounded repeat
	// takes part in explosion checks.
	// Default: 512
	BigRepeatThreshold int

	// MinMultiLiterals is the number of leading literal alternatives from
	// which the Aho-Corasick searcher is used.
	// Default: 4
	MinMultiLiterals int

	// StateCheckMaxBytes caps the explosion-check bit set of one search.
	// Default: 16384
	StateCheckMaxBytes int

	// MaxStackEntries caps the backtrack stack. Zero means unlimited.
	// Default: 0
	MaxStackEntries int

	// Logger receives analysis decisions when non-nil.
	// Default: nil
	Logger *analysis.Logger
}

// DefaultConfig returns a configuration with the Ruby dialect, UTF-8 and
// every optimization enabled.
func DefaultConfig() Config {
	return Config{
		Syntax:               syntax.SyntaxRuby,
		Encoding:             syntax.UTF8,
		EnableOptimization:   true,
		EnableAutoPossessive: true,
		EnableCombExpCheck:   true,
		CaseFoldAltThreshold: 8,
		BigRepeatThreshold:   512,
		MinMultiLiterals:     4,
		StateCheckMaxBytes:   16 << 10,
	}
}

// Validate checks if the configuration is valid.
// Returns an error describing the first invalid parameter found.
func (c *Config) Validate() error {
	if c.Syntax == nil {
		return &ConfigError{Field: "Syntax", Message: "must not be nil"}
	}
	if c.Encoding == nil {
		return &ConfigError{Field: "Encoding", Message: "must not be nil"}
	}
	if c.Options&syntax.SearchOptions&^(syntax.OptionFindLongest|syntax.OptionFindNotEmpty) != 0 {
		return &ConfigError{
			Field:   "Options",
			Message: "NotBOL, NotEOL and PosixRegion are search-time options",
		}
	}
	if c.CaseFoldAltThreshold < 1 || c.CaseFoldAltThreshold > 1_000 {
		return &ConfigError{
			Field:   "CaseFoldAltThreshold",
			Message: "must be between 1 and 1,000",
		}
	}
	if c.BigRepeatThreshold < 1 {
		return &ConfigError{
			Field:   "BigRepeatThreshold",
			Message: "must be positive",
		}
	}
	if c.MinMultiLiterals < 2 || c.MinMultiLiterals > 1_000 {
		return &ConfigError{
			Field:   "MinMultiLiterals",
			Message: "must be between 2 and 1,000",
		}
	}
	if c.StateCheckMaxBytes < 0 {
		return &ConfigError{
			Field:   "StateCheckMaxBytes",
			Message: "must not be negative",
		}
	}
	if c.MaxStackEntries < 0 {
		return &ConfigError{
			Field:   "MaxStackEntries",
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) analysisConfig() analysis.Config {
	return analysis.Config{
		EnableOptimization:   c.EnableOptimization,
		EnableAutoPossessive: c.EnableAutoPossessive,
		EnableCombExpCheck:   c.EnableCombExpCheck,
		CaseFoldAltThreshold: c.CaseFoldAltThreshold,
		BigRepeatThreshold:   c.BigRepeatThreshold,
		MinMultiLiterals:     c.MinMultiLiterals,
		Logger:               c.Logger,
	}
}

// ConfigError represents an invalid configuration parameter.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "btregex: invalid config: " + e.Field + ": " + e.Message
}
