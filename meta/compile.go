package meta

import (
	"errors"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/bytecode"
	"github.com/coregx/btregex/prefilter"
	"github.com/coregx/btregex/syntax"
	"github.com/coregx/btregex/vm"
)

// Compile compiles a pattern with the default configuration.
//
// Example:
//
//	engine, err := meta.Compile(`(?<year>\d{4})-(?<month>\d\d)`)
//	if err != nil {
//	    return err
//	}
func Compile(pattern string) (*Engine, error) {
	return CompileWithConfig(pattern, DefaultConfig())
}

// CompileWithConfig compiles a pattern with a custom configuration.
//
// Compilation parses the pattern, analyzes the tree, lowers it to
// bytecode and selects the prefilter searcher. Errors of any stage are
// returned as *CompileError wrapping the stage's error.
func CompileWithConfig(pattern string, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tree, err := syntax.Parse(pattern, config.Options, config.Syntax, config.Encoding)
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Err: err}
	}

	res, err := analysis.Analyze(tree, config.analysisConfig())
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Err: err}
	}

	prog, err := bytecode.Compile(res)
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Err: err}
	}

	return newEngine(prog, config)
}

// NewEngineFromProgram returns an engine for a program built outside
// Compile, typically by code generated with bytecode.GenerateGo. Only the
// resource limits of config are used.
func NewEngineFromProgram(prog *bytecode.Program, config Config) (*Engine, error) {
	loaded, err := bytecode.Load(prog)
	if err != nil {
		return nil, &CompileError{Pattern: prog.Pattern, Err: err}
	}
	config.Encoding = loaded.Enc
	config.Options = loaded.Options
	return newEngine(loaded, config)
}

func newEngine(prog *bytecode.Program, config Config) (*Engine, error) {
	searcher, err := prefilter.Build(prog.Opt, prog.Enc)
	if err != nil {
		return nil, &CompileError{Pattern: prog.Pattern, Err: err}
	}
	return &Engine{
		pattern:  prog.Pattern,
		config:   config,
		prog:     prog,
		searcher: searcher,
		machine: vm.New(prog, vm.Config{
			MaxStackEntries:    config.MaxStackEntries,
			StateCheckMaxBytes: config.StateCheckMaxBytes,
		}),
		tracker: prefilter.DefaultTrackerConfig(),
	}, nil
}

// CompileError represents a pattern compilation error.
type CompileError struct {
	Pattern string
	Err     error
}

// Error implements the error interface.
// Pattern errors already name the pattern and are returned as they are.
func (e *CompileError) Error() string {
	var patErr *syntax.PatternError
	if errors.As(e.Err, &patErr) {
		return e.Err.Error()
	}
	return "btregex: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}
