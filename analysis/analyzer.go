// Package analysis annotates a parsed pattern tree before it is lowered to
// bytecode.
//
// Analyze runs the passes in a fixed order: capture renumbering, subroutine
// call resolution and recursion checks, tree setup (backref validation,
// case-fold expansion, quantifier classification, auto-possessification,
// look-behind validation and splitting), combinatorial-explosion check
// placement and finally optimization synthesis. Per-node results are
// written to the tree's annotation table; tree rewrites replace nodes in
// place so parent links stay valid.
package analysis

import (
	"math"

	"github.com/coregx/btregex/internal/sparse"
	"github.com/coregx/btregex/syntax"
)

// InfiniteDistance is the length bound of an unbounded match.
const InfiniteDistance = math.MaxInt32

// Config controls the optional analysis passes.
type Config struct {
	// EnableOptimization computes search hints (exact literal, byte map,
	// anchors). Without it every position is tried.
	EnableOptimization bool

	// EnableAutoPossessive wraps R* in an atomic group when R cannot
	// start the following node.
	EnableAutoPossessive bool

	// EnableCombExpCheck assigns explosion-check ids to nested repeats.
	EnableCombExpCheck bool

	// CaseFoldAltThreshold bounds the number of alternatives produced
	// when expanding a case-insensitive string.
	CaseFoldAltThreshold int

	// BigRepeatThreshold is the repeat variability from which a finite
	// repeat counts as big for explosion checks.
	BigRepeatThreshold int

	// MinMultiLiterals is the number of leading literal alternatives
	// from which a multi-literal search is used.
	MinMultiLiterals int

	// Logger receives analysis decisions. Nil disables logging.
	Logger *Logger
}

// DefaultConfig returns the configuration used by Compile.
func DefaultConfig() Config {
	return Config{
		EnableOptimization:   true,
		EnableAutoPossessive: true,
		EnableCombExpCheck:   true,
		CaseFoldAltThreshold: 8,
		BigRepeatThreshold:   512,
		MinMultiLiterals:     4,
	}
}

// Result is the outcome of Analyze.
type Result struct {
	Tree *syntax.Tree

	// Opt holds the search hints; Kind is OptNone when none apply.
	Opt *Optimization

	// BtMemStart marks groups whose start must be recorded on the stack.
	BtMemStart syntax.MemStatus
	// BtMemEnd marks groups whose end must be recorded on the stack.
	BtMemEnd syntax.MemStatus
	// CaptureHistory marks (?@...) groups.
	CaptureHistory syntax.MemStatus

	// NumCombExpCheck is the number of explosion-check ids, or 0 when
	// the checks are disabled for this pattern.
	NumCombExpCheck int

	// MinLen and MaxLen bound the length of any match.
	MinLen, MaxLen int
}

// PopLevel selects how much bookkeeping a failing backtrack restores.
type PopLevel uint8

const (
	// PopFree discards entries down to the next choice point.
	PopFree PopLevel = iota
	// PopMemStart also restores capture starts.
	PopMemStart
	// PopAll also restores capture ends and repeat counters.
	PopAll
)

func (p PopLevel) String() string {
	switch p {
	case PopFree:
		return "FREE"
	case PopMemStart:
		return "MEM_START"
	case PopAll:
		return "ALL"
	}
	return "PopLevel(?)"
}

// SelectPopLevel picks the cheapest pop level that is still correct for a
// program with numRepeat repeat ids and the given bt-mem bit sets.
func SelectPopLevel(numRepeat int, btMemStart, btMemEnd syntax.MemStatus) PopLevel {
	switch {
	case numRepeat != 0 || btMemEnd != 0:
		return PopAll
	case btMemStart != 0:
		return PopMemStart
	}
	return PopFree
}

// analyzer carries the state of one Analyze call.
type analyzer struct {
	t   *syntax.Tree
	env *syntax.Env
	enc syntax.Encoding
	cfg Config
	log *Logger

	// groups whose length is being computed
	minBusy, maxBusy *sparse.Set
	// recursion-check marks: mark1 holds the group under test, mark2 the
	// groups entered on the current path
	mark1, mark2 *sparse.Set
}

// Analyze annotates t in place and derives the search hints. Pattern
// errors are *syntax.PatternError values wrapping a syntax sentinel.
func Analyze(t *syntax.Tree, cfg Config) (*Result, error) {
	n := uint32(len(t.Nodes)) //nolint:gosec // G115: arena sizes are bounded by the parser
	a := &analyzer{
		t:       t,
		env:     t.Env,
		enc:     t.Env.Enc,
		cfg:     cfg,
		log:     cfg.Logger,
		minBusy: sparse.New(n),
		maxBusy: sparse.New(n),
		mark1:   sparse.New(n),
		mark2:   sparse.New(n),
	}
	if err := a.run(); err != nil {
		return nil, err
	}
	return a.result(), nil
}

func (a *analyzer) run() error {
	env := a.env
	a.log.Section("analyze " + env.Pattern)

	// Backref bits are recomputed by setupTree after renumbering.
	env.BackrefedMem = 0

	if env.NumNamed > 0 && env.Syntax.CaptureOnlyNamedGroup && !env.Options.Has(syntax.OptionCaptureGroup) {
		if env.NumNamed != env.NumMem {
			if err := a.disableNoNameGroupCapture(); err != nil {
				return err
			}
		} else if err := a.numberedRefCheck(a.t.Root); err != nil {
			return err
		}
	}

	if env.NumCall > 0 {
		if err := a.setupSubexpCall(a.t.Root); err != nil {
			return err
		}
		a.subexpRecursiveCheckTrav(a.t.Root)
		if err := a.subexpInfRecursiveCheckTrav(a.t.Root); err != nil {
			return err
		}
		for id := range a.t.Nodes {
			n := a.t.Nodes[id]
			if n.Kind == syntax.KindEnclose && a.t.Has(syntax.NodeID(id), syntax.StateRecursion) {
				env.HasRecursion = true
				break
			}
		}
		a.log.Log("calls resolved: %d, recursion=%v", env.NumCall, env.HasRecursion)
	}

	// Lengths memoized during the recursion checks predate the rewrites.
	a.clearLengthMemo()

	if err := a.setupTree(a.t.Root, 0); err != nil {
		return err
	}

	if a.cfg.EnableCombExpCheck && (env.BackrefedMem == 0 || env.NumCall == 0) {
		a.setupCombExpCheck(a.t.Root, 0)
		if env.HasRecursion {
			env.NumCombExpCheck = 0
		} else {
			for i := 1; i <= env.CombExpMaxRegNum; i++ {
				if env.BackrefedMem.At(i) {
					env.NumCombExpCheck = 0
					break
				}
			}
		}
		a.log.Log("explosion checks: %d", env.NumCombExpCheck)
	}
	return nil
}

func (a *analyzer) result() *Result {
	env := a.env
	res := &Result{
		Tree:            a.t,
		CaptureHistory:  env.CaptureHistory,
		BtMemStart:      env.BtMemStart | env.CaptureHistory,
		NumCombExpCheck: env.NumCombExpCheck,
		MinLen:          a.minLen(a.t.Root),
		MaxLen:          a.maxLen(a.t.Root),
	}
	if env.Options&(syntax.OptionFindLongest|syntax.OptionFindNotEmpty) != 0 {
		res.BtMemEnd = syntax.MemStatusAll
	} else {
		res.BtMemEnd = env.BtMemEnd | env.CaptureHistory
	}
	if a.cfg.EnableOptimization {
		res.Opt = a.optimize()
	} else {
		res.Opt = &Optimization{Kind: OptNone, DMax: InfiniteDistance}
	}
	a.log.Log("optimization: %s", res.Opt)
	return res
}

func (a *analyzer) clearLengthMemo() {
	for i := range a.t.Ann {
		a.t.Ann[i].State &^= syntax.StateMinFixed | syntax.StateMaxFixed | syntax.StateCLenFixed
	}
}

// patternError builds the error returned for a rejected pattern.
func (a *analyzer) patternError(err error) error {
	return syntax.NewError(err, a.env.Pattern)
}

// isSimple reports whether a node kind is a single-step matcher.
func isSimple(k syntax.Kind) bool {
	switch k {
	case syntax.KindString, syntax.KindCClass, syntax.KindCType, syntax.KindAny, syntax.KindBackref:
		return true
	}
	return false
}

func distAdd(x, y int) int {
	if x == InfiniteDistance || y == InfiniteDistance || x > InfiniteDistance-y {
		return InfiniteDistance
	}
	return x + y
}

func distMul(d, n int) int {
	switch {
	case n == 0 || d == 0:
		return 0
	case d == InfiniteDistance || d > InfiniteDistance/n:
		return InfiniteDistance
	}
	return d * n
}
