package meta

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/coregx/btregex/analysis"
	"github.com/coregx/btregex/bytecode"
	"github.com/coregx/btregex/prefilter"
	"github.com/coregx/btregex/syntax"
	"github.com/coregx/btregex/vm"
)

// Engine is a compiled pattern.
//
// The Engine:
//  1. Holds the bytecode program and its search hints
//  2. Picks the prefilter searcher for the hints
//  3. Narrows every search window with the pattern's anchors
//  4. Runs the backtracking interpreter at each candidate position
//
// Thread safety: the program, the searcher and the interpreter are
// immutable after compilation. Per-search state (backtrack stack, group
// slots, explosion-check bits) comes from a sync.Pool inside the
// interpreter, so one Engine may be searched from many goroutines.
//
// Example:
//
//	engine, err := meta.Compile(`(?<=\$)\d+`)
//	if err != nil {
//	    return err
//	}
//	pos, err := engine.Search(ctx, vm.Input{Text: []byte("cost: $42")}, 0, 9, nil)
//	// pos == 7
type Engine struct {
	// IMPORTANT: stats MUST be first field for proper 8-byte alignment on 32-bit platforms.
	// This ensures atomic operations on uint64 fields work correctly.
	stats Stats

	pattern  string
	config   Config
	prog     *bytecode.Program
	machine  *vm.Machine
	searcher prefilter.Searcher
	tracker  prefilter.TrackerConfig
}

// Stats tracks execution statistics for performance analysis.
type Stats struct {
	// Searches counts Search calls.
	Searches uint64

	// MatchAttempts counts interpreter runs at a candidate position.
	MatchAttempts uint64

	// Matches counts searches and anchored matches that succeeded.
	Matches uint64

	// PrefilterCandidates counts positions proposed by the searcher.
	PrefilterCandidates uint64

	// PrefilterAbandoned counts searches that stopped using the searcher
	// because its candidates came too densely.
	PrefilterAbandoned uint64

	// StateCheckSearches counts searches that ran with explosion checks.
	StateCheckSearches uint64

	// Interrupted counts searches stopped by cancellation.
	Interrupted uint64

	// Steps counts interpreted instructions.
	Steps uint64
}

// Stats returns execution statistics.
//
// Example:
//
//	stats := engine.Stats()
//	println("attempts:", stats.MatchAttempts)
func (e *Engine) Stats() Stats {
	return Stats{
		Searches:            atomic.LoadUint64(&e.stats.Searches),
		MatchAttempts:       atomic.LoadUint64(&e.stats.MatchAttempts),
		Matches:             atomic.LoadUint64(&e.stats.Matches),
		PrefilterCandidates: atomic.LoadUint64(&e.stats.PrefilterCandidates),
		PrefilterAbandoned:  atomic.LoadUint64(&e.stats.PrefilterAbandoned),
		StateCheckSearches:  atomic.LoadUint64(&e.stats.StateCheckSearches),
		Interrupted:         atomic.LoadUint64(&e.stats.Interrupted),
		Steps:               atomic.LoadUint64(&e.stats.Steps),
	}
}

// ResetStats resets execution statistics to zero.
func (e *Engine) ResetStats() {
	atomic.StoreUint64(&e.stats.Searches, 0)
	atomic.StoreUint64(&e.stats.MatchAttempts, 0)
	atomic.StoreUint64(&e.stats.Matches, 0)
	atomic.StoreUint64(&e.stats.PrefilterCandidates, 0)
	atomic.StoreUint64(&e.stats.PrefilterAbandoned, 0)
	atomic.StoreUint64(&e.stats.StateCheckSearches, 0)
	atomic.StoreUint64(&e.stats.Interrupted, 0)
	atomic.StoreUint64(&e.stats.Steps, 0)
}

// String returns the source pattern.
func (e *Engine) String() string {
	return e.pattern
}

// Program returns the compiled program.
func (e *Engine) Program() *bytecode.Program {
	return e.prog
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Searcher returns the prefilter searcher, or nil when every position is
// tried.
func (e *Engine) Searcher() prefilter.Searcher {
	return e.searcher
}

// Optimization returns the search hints of the pattern.
func (e *Engine) Optimization() *analysis.Optimization {
	return e.prog.Opt
}

// NumCaptures returns the number of capture groups in the pattern.
// Group 0 is the entire match and is not counted.
func (e *Engine) NumCaptures() int {
	return e.prog.NumMem
}

// SubexpNames returns the names of capture groups in the pattern.
// Index 0 is always "" (entire match). Unnamed groups return "".
func (e *Engine) SubexpNames() []string {
	names := make([]string, e.prog.NumMem+1)
	for _, name := range e.prog.NameOrder {
		for _, n := range e.prog.Names[name] {
			if n > 0 && n < len(names) {
				names[n] = name
			}
		}
	}
	return names
}

// SubexpIndex returns the last group number carrying name, or -1.
func (e *Engine) SubexpIndex(name string) int {
	nums := e.prog.Names[name]
	if len(nums) == 0 {
		return -1
	}
	return nums[len(nums)-1]
}

// NewRegion returns a region sized for the pattern's groups.
func (e *Engine) NewRegion() *vm.Region {
	return vm.NewRegion(e.prog.NumMem + 1)
}

// Search looks for a match whose start lies between start and rng, both
// inclusive. When rng is below start the positions are tried from start
// downward and the rightmost match is reported.
//
// It returns the start of the match, or -1 when there is none. On a match
// region, when non-nil, receives the group spans; it is left untouched
// otherwise. in.GPos is where \G matches; callers usually set it to start.
//
// Cancellation through ctx or in.Interrupt returns an error wrapping
// vm.ErrInterrupted, never a partial result.
func (e *Engine) Search(ctx context.Context, in vm.Input, start, rng int, region *vm.Region) (int, error) {
	atomic.AddUint64(&e.stats.Searches, 1)
	end := len(in.Text)
	if start < 0 || start > end {
		return -1, nil
	}
	rng = max(0, min(rng, end))

	st := e.machine.Acquire(ctx, in)
	defer e.machine.Release(st)
	if st.StateChecks() {
		atomic.AddUint64(&e.stats.StateCheckSearches, 1)
	}

	r := &scan{
		st:       st,
		opt:      e.prog.Opt,
		searcher: e.searcher,
		tracker:  prefilter.NewTracker(e.tracker),
		enc:      e.prog.Enc,
		text:     in.Text,
		end:      end,
		longest:  st.Options()&syntax.OptionFindLongest != 0,
		pos:      -1,
	}
	pos, err := r.run(start, rng)

	atomic.AddUint64(&e.stats.MatchAttempts, r.attempts)
	atomic.AddUint64(&e.stats.PrefilterCandidates, r.candidates)
	atomic.AddUint64(&e.stats.Steps, st.Steps())
	if r.abandoned {
		atomic.AddUint64(&e.stats.PrefilterAbandoned, 1)
	}
	return e.result(st, pos, err, region)
}

// MatchAt runs a single anchored attempt at pos and returns the length of
// the match, or -1. Spans are copied into region as for Search.
func (e *Engine) MatchAt(ctx context.Context, in vm.Input, pos int, region *vm.Region) (int, error) {
	if pos < 0 || pos > len(in.Text) {
		return -1, nil
	}
	st := e.machine.Acquire(ctx, in)
	defer e.machine.Release(st)

	atomic.AddUint64(&e.stats.MatchAttempts, 1)
	n, err := st.MatchAt(pos)
	atomic.AddUint64(&e.stats.Steps, st.Steps())
	return e.result(st, n, err, region)
}

func (e *Engine) result(st *vm.State, n int, err error, region *vm.Region) (int, error) {
	if err != nil {
		if errors.Is(err, vm.ErrInterrupted) {
			atomic.AddUint64(&e.stats.Interrupted, 1)
		}
		return -1, err
	}
	if n < 0 {
		return -1, nil
	}
	atomic.AddUint64(&e.stats.Matches, 1)
	if region != nil {
		region.CopyFrom(st.Region())
	}
	return n, nil
}
