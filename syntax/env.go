package syntax

// MemStatus is a bit set of group numbers. Groups beyond 31 share bit 0.
type MemStatus uint32

// MemStatusAll has every group set.
const MemStatusAll MemStatus = ^MemStatus(0)

// At reports whether group n is set.
func (m MemStatus) At(n int) bool {
	if n < 32 {
		return m&(1<<uint(n)) != 0
	}
	return m&1 != 0
}

// On returns m with group n set.
func (m MemStatus) On(n int) MemStatus {
	if n < 32 {
		return m | 1<<uint(n)
	}
	return m | 1
}

// Env carries scan-environment metadata from the parser to the analyzer
// and the compiler.
type Env struct {
	Options Options
	Syntax  *Syntax
	Enc     Encoding
	Pattern string

	// NumMem is the number of capture groups; groups are 1..NumMem.
	NumMem int
	// MemNodes maps a group number to its memory node; index 0 unused.
	MemNodes []NodeID
	NumNamed int
	NumCall  int
	// Names maps a group name to its group numbers in definition order.
	Names     map[string][]int
	NameOrder []string

	BackrefedMem   MemStatus
	BtMemStart     MemStatus
	BtMemEnd       MemStatus
	CaptureHistory MemStatus

	HasRecursion     bool
	NumCombExpCheck  int
	CombExpMaxRegNum int
	CurrMaxRegNum    int
}

// NewEnv returns an environment for one parse.
func NewEnv(opts Options, syn *Syntax, enc Encoding) *Env {
	if syn == nil {
		syn = SyntaxRuby
	}
	if enc == nil {
		enc = UTF8
	}
	opts |= syn.Options
	if opts.Has(OptionNegateSingleLine) {
		opts &^= OptionSingleLine
	}
	return &Env{
		Options:  opts,
		Syntax:   syn,
		Enc:      enc,
		MemNodes: []NodeID{NoNode},
		Names:    map[string][]int{},
	}
}

// NameToGroups returns the group numbers bound to name.
func (e *Env) NameToGroups(name string) []int {
	return e.Names[name]
}

func (e *Env) addMem(id NodeID) int {
	e.NumMem++
	e.MemNodes = append(e.MemNodes, id)
	return e.NumMem
}
