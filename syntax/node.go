package syntax

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID addresses a node in a Tree arena.
type NodeID int32

// NoNode is the absent node.
const NoNode NodeID = -1

// Infinite is the upper bound of an unbounded quantifier.
const Infinite = -1

// Kind tags the node variant.
type Kind uint8

// Node kinds.
const (
	KindString Kind = iota
	KindCClass
	KindCType
	KindAny
	KindList
	KindAlt
	KindQuant
	KindEnclose
	KindAnchor
	KindBackref
	KindCall
)

var kindNames = [...]string{
	KindString:  "str",
	KindCClass:  "cclass",
	KindCType:   "ctype",
	KindAny:     "any",
	KindList:    "list",
	KindAlt:     "alt",
	KindQuant:   "quant",
	KindEnclose: "enclose",
	KindAnchor:  "anchor",
	KindBackref: "backref",
	KindCall:    "call",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// StringFlags qualify a string node.
type StringFlags uint8

const (
	// StrRaw marks bytes that need not form whole characters.
	StrRaw StringFlags = 1 << iota
	// StrAmbig marks a case-insensitive string.
	StrAmbig
	// StrDontGetOptInfo excludes the string from literal optimization.
	StrDontGetOptInfo
)

// EncloseKind tags an enclosing group.
type EncloseKind uint8

// Group kinds.
const (
	EncloseMemory EncloseKind = iota
	EncloseOption
	EncloseStopBacktrack
)

// AnchorType is a bit set so anchors can be merged during optimization.
type AnchorType uint32

// Anchor types.
const (
	AnchorBeginBuf AnchorType = 1 << iota
	AnchorBeginLine
	AnchorBeginPosition
	AnchorEndBuf
	AnchorSemiEndBuf
	AnchorEndLine
	AnchorWordBound
	AnchorNotWordBound
	AnchorWordBegin
	AnchorWordEnd
	AnchorPrecRead
	AnchorPrecReadNot
	AnchorLookBehind
	AnchorLookBehindNot
	AnchorAnycharStar
	AnchorAnycharStarML
)

// AnchorLookaround covers the anchors that own a body.
const AnchorLookaround = AnchorPrecRead | AnchorPrecReadNot | AnchorLookBehind | AnchorLookBehindNot

var anchorNames = []struct {
	a    AnchorType
	name string
}{
	{AnchorBeginBuf, "begin-buf"},
	{AnchorBeginLine, "begin-line"},
	{AnchorBeginPosition, "begin-position"},
	{AnchorEndBuf, "end-buf"},
	{AnchorSemiEndBuf, "semi-end-buf"},
	{AnchorEndLine, "end-line"},
	{AnchorWordBound, "word-bound"},
	{AnchorNotWordBound, "not-word-bound"},
	{AnchorWordBegin, "word-begin"},
	{AnchorWordEnd, "word-end"},
	{AnchorPrecRead, "prec-read"},
	{AnchorPrecReadNot, "prec-read-not"},
	{AnchorLookBehind, "look-behind"},
	{AnchorLookBehindNot, "look-behind-not"},
	{AnchorAnycharStar, "anychar-star"},
	{AnchorAnycharStarML, "anychar-star-ml"},
}

func (a AnchorType) String() string {
	var parts []string
	for _, n := range anchorNames {
		if a&n.a != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Node is one AST node. Only the fields of its Kind are meaningful.
// Analysis results are kept in Tree.Ann, not here.
type Node struct {
	Kind Kind

	// KindString
	Bytes    []byte
	StrFlags StringFlags

	// KindCClass
	Class *CClass

	// KindCType, and negation for KindCType
	CType CType
	Not   bool

	// KindAny: dot matches newline.
	Multiline bool

	// KindList, KindAlt: items. KindQuant, KindEnclose, lookaround
	// KindAnchor: body at index 0.
	Children []NodeID

	// KindQuant
	Lower, Upper int
	Greedy       bool

	// KindEnclose
	Enclose EncloseKind
	Regnum  int
	Option  Options

	// KindAnchor
	Anchor AnchorType

	// KindBackref
	Refs       []int
	IgnoreCase bool
	NestLevel  int
	HasLevel   bool

	// KindCall and named references
	Name     string
	GroupNum int
	Target   NodeID
}

// StateFlag records analysis facts about a node.
type StateFlag uint32

// Node states.
const (
	StateMinFixed StateFlag = 1 << iota
	StateMaxFixed
	StateCLenFixed
	StateMemBackrefed
	StateStopBtSimpleRepeat
	StateRecursion
	StateCalled
	StateNamedGroup
	StateNameRef
	StateInRepeat
	StateNestLevel
	StateByNumber
	StateCaptureHistory
	// StateReferred marks a {0} quantifier whose body is a call target.
	StateReferred
)

// EmptyInfo classifies how a quantifier body may match the empty string.
type EmptyInfo uint8

const (
	// EmptyNone means the body always consumes input.
	EmptyNone EmptyInfo = iota
	// EmptyPlain means the body may match empty.
	EmptyPlain
	// EmptyMem means an empty iteration must also compare captures.
	EmptyMem
	// EmptyRec means the body contains a recursive call.
	EmptyRec
)

// Annotation holds per-node analysis results, indexed by NodeID.
type Annotation struct {
	State StateFlag

	MinLen, MaxLen int
	CharLen        int

	TargetEmpty EmptyInfo
	CheckNum    int

	HeadExact     NodeID
	NextHeadExact NodeID

	// OptCount bounds re-analysis of called groups.
	OptCount int
}

// Tree is an arena of nodes with a single owning root.
type Tree struct {
	Nodes []*Node
	Ann   []Annotation
	Root  NodeID
	Env   *Env
}

// NewTree returns an empty tree bound to env.
func NewTree(env *Env) *Tree {
	return &Tree{Root: NoNode, Env: env}
}

// Add appends n and returns its id.
func (t *Tree) Add(n *Node) NodeID {
	id := NodeID(len(t.Nodes))
	if n.Kind == KindCall {
		n.Target = NoNode
	}
	t.Nodes = append(t.Nodes, n)
	t.Ann = append(t.Ann, Annotation{HeadExact: NoNode, NextHeadExact: NoNode})
	return id
}

// N returns the node for id. The pointer stays valid across Add.
func (t *Tree) N(id NodeID) *Node {
	return t.Nodes[id]
}

// Replace overwrites the node at id with a copy of the node at with.
// The annotation of id is kept.
func (t *Tree) Replace(id, with NodeID) {
	cp := *t.Nodes[with]
	t.Nodes[id] = &cp
}

// Relocate moves the node at id, with its annotation, to a fresh id and
// returns it. The slot at id keeps the node until it is overwritten.
func (t *Tree) Relocate(id NodeID) NodeID {
	cp := *t.Nodes[id]
	nid := t.Add(&cp)
	t.Ann[nid] = t.Ann[id]
	t.Ann[id] = Annotation{HeadExact: NoNode, NextHeadExact: NoNode}
	return nid
}

// Body returns the first child, or NoNode.
func (t *Tree) Body(id NodeID) NodeID {
	n := t.Nodes[id]
	if len(n.Children) == 0 {
		return NoNode
	}
	return n.Children[0]
}

// SetBody replaces the first child.
func (t *Tree) SetBody(id, body NodeID) {
	n := t.Nodes[id]
	if len(n.Children) == 0 {
		n.Children = []NodeID{body}
		return
	}
	n.Children[0] = body
}

// Has reports whether all of f are set on id.
func (t *Tree) Has(id NodeID, f StateFlag) bool {
	return t.Ann[id].State&f == f
}

// Set sets f on id.
func (t *Tree) Set(id NodeID, f StateFlag) {
	t.Ann[id].State |= f
}

// Unset clears f on id.
func (t *Tree) Unset(id NodeID, f StateFlag) {
	t.Ann[id].State &^= f
}

// NewString adds a string node.
func (t *Tree) NewString(b []byte, flags StringFlags) NodeID {
	return t.Add(&Node{Kind: KindString, Bytes: b, StrFlags: flags})
}

// NewList adds a sequence node.
func (t *Tree) NewList(items ...NodeID) NodeID {
	return t.Add(&Node{Kind: KindList, Children: items})
}

// NewAlt adds an alternation node.
func (t *Tree) NewAlt(items ...NodeID) NodeID {
	return t.Add(&Node{Kind: KindAlt, Children: items})
}

// NewQuant adds a quantifier node.
func (t *Tree) NewQuant(body NodeID, lower, upper int, greedy bool) NodeID {
	return t.Add(&Node{Kind: KindQuant, Children: []NodeID{body}, Lower: lower, Upper: upper, Greedy: greedy})
}

// NewEnclose adds a group node.
func (t *Tree) NewEnclose(kind EncloseKind, body NodeID) NodeID {
	return t.Add(&Node{Kind: KindEnclose, Enclose: kind, Children: []NodeID{body}})
}

// NewAnchor adds an anchor; body is NoNode for plain anchors.
func (t *Tree) NewAnchor(a AnchorType, body NodeID) NodeID {
	n := &Node{Kind: KindAnchor, Anchor: a}
	if body != NoNode {
		n.Children = []NodeID{body}
	}
	return t.Add(n)
}

// IsInfinite reports whether a quantifier bound is unbounded.
func IsInfinite(n int) bool {
	return n == Infinite
}

// Dump renders the subtree at id as an S-expression.
func (t *Tree) Dump(id NodeID) string {
	var sb strings.Builder
	t.dump(&sb, id)
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, id NodeID) {
	if id == NoNode {
		sb.WriteString("nil")
		return
	}
	n := t.N(id)
	sb.WriteByte('(')
	sb.WriteString(n.Kind.String())
	switch n.Kind {
	case KindString:
		fmt.Fprintf(sb, " %q", n.Bytes)
		if n.StrFlags&StrAmbig != 0 {
			sb.WriteString(" ic")
		}
	case KindCClass:
		if n.Class.Not {
			sb.WriteString(" not")
		}
	case KindCType:
		fmt.Fprintf(sb, " %d", n.CType)
		if n.Not {
			sb.WriteString(" not")
		}
	case KindAny:
		if n.Multiline {
			sb.WriteString(" ml")
		}
	case KindQuant:
		up := "inf"
		if n.Upper != Infinite {
			up = strconv.Itoa(n.Upper)
		}
		fmt.Fprintf(sb, "{%d,%s}", n.Lower, up)
		if !n.Greedy {
			sb.WriteString("?")
		}
	case KindEnclose:
		switch n.Enclose {
		case EncloseMemory:
			fmt.Fprintf(sb, " mem%d", n.Regnum)
		case EncloseOption:
			fmt.Fprintf(sb, " opt=%s", n.Option)
		case EncloseStopBacktrack:
			sb.WriteString(" atomic")
		}
	case KindAnchor:
		sb.WriteString(" " + n.Anchor.String())
	case KindBackref:
		fmt.Fprintf(sb, " %v", n.Refs)
		if n.HasLevel {
			fmt.Fprintf(sb, " level=%d", n.NestLevel)
		}
	case KindCall:
		if n.Name != "" {
			sb.WriteString(" " + n.Name)
		} else {
			fmt.Fprintf(sb, " %d", n.GroupNum)
		}
	}
	for _, c := range n.Children {
		sb.WriteByte(' ')
		t.dump(sb, c)
	}
	sb.WriteByte(')')
}
