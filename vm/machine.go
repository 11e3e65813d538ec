// Package vm runs compiled programs with a backtracking interpreter.
//
// A Machine wraps an immutable Program and is safe for concurrent use.
// Every search borrows a State from the machine's pool: the backtrack
// stack, the group slots and the explosion-check bit set live there and
// are reused between searches.
//
// Example usage:
//
//	m := vm.New(prog, vm.DefaultConfig())
//	st := m.Acquire(ctx, vm.Input{Text: text})
//	defer m.Release(st)
//	for at := 0; at <= len(text); at++ {
//	    n, err := st.MatchAt(at)
//	    if err != nil || n >= 0 {
//	        break
//	    }
//	}
package vm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/coregx/btregex/bytecode"
	"github.com/coregx/btregex/syntax"
)

// Config bounds the resources of one search.
type Config struct {
	// MaxStackEntries caps the backtrack stack. Zero means unlimited.
	MaxStackEntries int

	// StateCheckMaxBytes caps the explosion-check bit set. Subjects whose
	// set would be larger run without explosion checks.
	// Default: 16 KiB
	StateCheckMaxBytes int
}

// DefaultConfig returns the default interpreter configuration.
func DefaultConfig() Config {
	return Config{
		StateCheckMaxBytes: 16 << 10,
	}
}

// Input describes the subject of one search.
type Input struct {
	// Text is the whole subject. Matches may extend to its end and
	// look-behind may inspect any byte before the match.
	Text []byte

	// GPos is the position \G matches at.
	GPos int

	// Options holds search-time options; they are combined with the
	// program's compile-time options.
	Options syntax.Options

	// Interrupt, when non-nil, is polled on every step. Setting it stops
	// the search with ErrInterrupted.
	Interrupt *atomic.Bool
}

// Machine executes a Program.
type Machine struct {
	prog *bytecode.Program
	enc  syntax.Encoding
	cfg  Config
	pool sync.Pool
}

// New returns a machine for prog.
func New(prog *bytecode.Program, cfg Config) *Machine {
	enc := prog.Enc
	if enc == nil {
		enc = syntax.UTF8
	}
	m := &Machine{prog: prog, enc: enc, cfg: cfg}
	m.pool.New = func() any {
		return m.newState()
	}
	return m
}

// Program returns the machine's program.
func (m *Machine) Program() *bytecode.Program { return m.prog }

// Config returns the machine's configuration.
func (m *Machine) Config() Config { return m.cfg }

func (m *Machine) newState() *State {
	n := m.prog.NumMem + 1
	return &State{
		m:         m,
		prog:      m.prog,
		enc:       m.enc,
		memStart:  make([]int, n),
		memEnd:    make([]int, n),
		repeatStk: make([]int, m.prog.NumRepeat),
		region:    NewRegion(n),
		stk:       make([]entry, 0, 64),
	}
}

// Acquire returns a State prepared for a search of in.
//
// The State must be returned with Release and must not be shared between
// goroutines.
func (m *Machine) Acquire(ctx context.Context, in Input) *State {
	st := m.pool.Get().(*State)
	st.begin(ctx, in)
	return st
}

// Release returns st to the pool.
func (m *Machine) Release(st *State) {
	st.ctx = nil
	st.interrupt = nil
	st.text = nil
	st.stk = st.stk[:0]
	m.pool.Put(st)
}

// MatchAt runs one anchored attempt at position at and copies the spans
// into region when it is non-nil. It returns the match length or -1.
func (m *Machine) MatchAt(ctx context.Context, in Input, at int, region *Region) (int, error) {
	st := m.Acquire(ctx, in)
	defer m.Release(st)
	n, err := st.MatchAt(at)
	if err == nil && n >= 0 && region != nil {
		region.CopyFrom(st.region)
	}
	return n, err
}

// State is the mutable state of one search.
type State struct {
	m    *Machine
	prog *bytecode.Program
	enc  syntax.Encoding

	text []byte
	end  int
	gpos int
	opts syntax.Options

	ctx       context.Context
	interrupt *atomic.Bool
	steps     uint64

	stk       []entry
	memStart  []int
	memEnd    []int
	repeatStk []int
	check     checkSet
	region    *Region

	// bestLen and bestStart track the longest match over all attempts of
	// a search with OptionFindLongest.
	bestLen   int
	bestStart int

	foldA, foldB []byte
}

func (st *State) begin(ctx context.Context, in Input) {
	st.ctx = ctx
	st.interrupt = in.Interrupt
	st.text = in.Text
	st.end = len(in.Text)
	st.gpos = in.GPos
	st.opts = st.prog.Options | in.Options&syntax.SearchOptions
	st.steps = 0
	st.bestLen = -1
	st.bestStart = -1
	st.check.reset(st.end, st.prog.NumCombExpCheck, st.m.cfg.StateCheckMaxBytes)
	st.region.Clear()
}

// Region returns the spans of the last recorded match. It is overwritten
// by the next attempt and valid until Release.
func (st *State) Region() *Region { return st.region }

// Longest returns the start and length of the longest match recorded by
// a search with OptionFindLongest, or -1, -1.
func (st *State) Longest() (start, length int) {
	if st.bestLen < 0 {
		return -1, -1
	}
	return st.bestStart, st.bestLen
}

// Options returns the effective options of the search.
func (st *State) Options() syntax.Options { return st.opts }

// Steps returns the number of instructions executed so far.
func (st *State) Steps() uint64 { return st.steps }

// StateChecks reports whether the search runs with explosion checks.
func (st *State) StateChecks() bool { return st.check.enabled() }
