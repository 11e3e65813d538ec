package syntax

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxRepeatNum   = 100000
	maxParseDepth  = 1000
	maxCaptureNum  = 32767
	maxBackrefNum  = 1000
	extendedSpaces = " \t\n\r\f\v"
)

// Parse parses pattern into a tree using the given options, dialect and
// encoding. A nil syn selects SyntaxRuby and a nil enc selects UTF8.
func Parse(pattern string, opts Options, syn *Syntax, enc Encoding) (*Tree, error) {
	env := NewEnv(opts, syn, enc)
	env.Pattern = pattern
	p := &parser{
		src:  pattern,
		env:  env,
		t:    NewTree(env),
		opts: env.Options,
	}
	root, err := p.parseAlt()
	if err != nil {
		return nil, err
	}
	if p.more() {
		return nil, newError(ErrUnmatchedParen, pattern)
	}
	if err := p.resolveNames(); err != nil {
		return nil, err
	}
	if p.callsWhole {
		// The whole pattern becomes group 0 so \g<0> has a target.
		whole := p.t.NewEnclose(EncloseMemory, root)
		p.t.N(whole).Regnum = 0
		env.MemNodes[0] = whole
		root = whole
	}
	p.t.Root = root
	return p.t, nil
}

type parser struct {
	src  string
	pos  int
	env  *Env
	t    *Tree
	opts Options

	depth      int
	namedRefs  []NodeID
	callsWhole bool
}

func (p *parser) more() bool { return p.pos < len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) peekAt(off int) (byte, bool) {
	if p.pos+off < len(p.src) {
		return p.src[p.pos+off], true
	}
	return 0, false
}

func (p *parser) lookingAt(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *parser) errAt(err error, from int) error {
	return newError(err, p.src[from:min(p.pos, len(p.src))])
}

func (p *parser) skipExtended() {
	if !p.opts.Has(OptionExtend) {
		return
	}
	for p.more() {
		c := p.peek()
		switch {
		case strings.IndexByte(extendedSpaces, c) >= 0:
			p.pos++
		case c == '#':
			for p.more() && p.peek() != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) parseAlt() (NodeID, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxParseDepth {
		return NoNode, newError(ErrNestingTooDeep, "")
	}
	var alts []NodeID
	for {
		seq, err := p.parseSeq()
		if err != nil {
			return NoNode, err
		}
		alts = append(alts, seq)
		if p.more() && p.peek() == '|' {
			p.pos++
			continue
		}
		break
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return p.t.NewAlt(alts...), nil
}

func (p *parser) parseSeq() (NodeID, error) {
	var items []NodeID
	for {
		p.skipExtended()
		if !p.more() || p.peek() == '|' || p.peek() == ')' {
			break
		}
		atom, rest, err := p.parseAtom()
		if err != nil {
			return NoNode, err
		}
		if atom == NoNode {
			continue
		}
		plain := atom
		atom, err = p.parseQuantifiers(atom)
		if err != nil {
			return NoNode, err
		}
		if atom == plain && len(items) > 0 && p.mergeable(items[len(items)-1], atom) {
			prev := p.t.N(items[len(items)-1])
			prev.Bytes = append(prev.Bytes, p.t.N(atom).Bytes...)
			prev.StrFlags |= p.t.N(atom).StrFlags & StrRaw
		} else {
			items = append(items, atom)
		}
		if rest {
			break
		}
	}
	switch len(items) {
	case 0:
		return p.t.NewString(nil, 0), nil
	case 1:
		return items[0], nil
	}
	return p.t.NewList(items...), nil
}

// mergeable reports whether string b can be appended to string a.
func (p *parser) mergeable(a, b NodeID) bool {
	na, nb := p.t.N(a), p.t.N(b)
	if na.Kind != KindString || nb.Kind != KindString {
		return false
	}
	return na.StrFlags&StrAmbig == nb.StrFlags&StrAmbig
}

func (p *parser) stringFlags() StringFlags {
	if p.opts.Has(OptionIgnoreCase) {
		return StrAmbig
	}
	return 0
}

func (p *parser) newRune(r rune) (NodeID, error) {
	if p.env.Enc.RuneLen(r) < 0 {
		return NoNode, newError(ErrInvalidCodePoint, string(r))
	}
	return p.t.NewString(p.env.Enc.AppendRune(nil, r), p.stringFlags()), nil
}

// parseAtom parses one atom. rest is true when an inline option group
// consumed the remainder of the enclosing group.
func (p *parser) parseAtom() (id NodeID, rest bool, err error) {
	start := p.pos
	c := p.peek()
	switch c {
	case '(':
		return p.parseGroup()
	case '[':
		p.pos++
		cc, err := p.parseClass(start)
		if err != nil {
			return NoNode, false, err
		}
		return p.t.Add(&Node{Kind: KindCClass, Class: cc, IgnoreCase: p.opts.Has(OptionIgnoreCase)}), false, nil
	case '.':
		p.pos++
		return p.t.Add(&Node{Kind: KindAny, Multiline: p.opts.Has(OptionMultiline)}), false, nil
	case '^':
		p.pos++
		if p.opts.Has(OptionSingleLine) {
			return p.t.NewAnchor(AnchorBeginBuf, NoNode), false, nil
		}
		return p.t.NewAnchor(AnchorBeginLine, NoNode), false, nil
	case '$':
		p.pos++
		if p.opts.Has(OptionSingleLine) {
			return p.t.NewAnchor(AnchorSemiEndBuf, NoNode), false, nil
		}
		return p.t.NewAnchor(AnchorEndLine, NoNode), false, nil
	case '\\':
		id, err := p.parseEscape()
		return id, false, err
	case '*', '+', '?':
		p.pos++
		return NoNode, false, p.errAt(ErrTargetOfRepeatMissing, start)
	case '{':
		if _, _, ok := p.scanInterval(); ok {
			p.pos++
			return NoNode, false, p.errAt(ErrTargetOfRepeatMissing, start)
		}
		p.pos++
		id, err := p.newRune('{')
		return id, false, err
	}
	r, n := utf8.DecodeRuneInString(p.src[p.pos:])
	if r == utf8.RuneError && n <= 1 {
		p.pos++
		return p.t.NewString([]byte{c}, p.stringFlags()|StrRaw), false, nil
	}
	p.pos += n
	id, err = p.newRune(r)
	return id, false, err
}

// scanInterval parses {n}, {n,}, {,m} or {n,m} at the cursor without
// consuming it.
func (p *parser) scanInterval() (lo, hi int, ok bool) {
	s := p.src[p.pos:]
	if len(s) < 3 || s[0] != '{' {
		return 0, 0, false
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return 0, 0, false
	}
	body := s[1:end]
	comma := strings.IndexByte(body, ',')
	parse := func(x string) (int, bool) {
		if x == "" {
			return 0, false
		}
		for i := 0; i < len(x); i++ {
			if x[i] < '0' || x[i] > '9' {
				return 0, false
			}
		}
		n, err := strconv.Atoi(x)
		if err != nil || n > maxRepeatNum {
			return maxRepeatNum + 1, true
		}
		return n, true
	}
	if comma < 0 {
		n, ok := parse(body)
		return n, n, ok
	}
	l, r := body[:comma], body[comma+1:]
	if l == "" && r == "" {
		return 0, 0, false
	}
	lo, hi = 0, Infinite
	if l != "" {
		if lo, ok = parse(l); !ok {
			return 0, 0, false
		}
	}
	if r != "" {
		if hi, ok = parse(r); !ok {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

func (p *parser) parseQuantifiers(atom NodeID) (NodeID, error) {
	for {
		p.skipExtended()
		if !p.more() {
			return atom, nil
		}
		start := p.pos
		var lo, hi int
		interval := false
		switch p.peek() {
		case '*':
			lo, hi = 0, Infinite
			p.pos++
		case '+':
			lo, hi = 1, Infinite
			p.pos++
		case '?':
			lo, hi = 0, 1
			p.pos++
		case '{':
			var ok bool
			lo, hi, ok = p.scanInterval()
			if !ok {
				return atom, nil
			}
			p.pos += strings.IndexByte(p.src[p.pos:], '}') + 1
			if lo > maxRepeatNum || hi > maxRepeatNum {
				return NoNode, p.errAt(ErrRepeatRangeTooLarge, start)
			}
			if hi != Infinite && lo > hi {
				return NoNode, p.errAt(ErrInvalidRepeatRange, start)
			}
			interval = true
		default:
			return atom, nil
		}
		if n := p.t.N(atom); n.Kind == KindAnchor {
			return NoNode, p.errAt(ErrTargetOfRepeatInvalid, start)
		}
		greedy, possessive := true, false
		if p.more() {
			switch p.peek() {
			case '?':
				greedy = false
				p.pos++
			case '+':
				if !interval || p.env.Syntax.PossessiveInterval {
					possessive = true
					p.pos++
				}
			}
		}
		atom = p.t.NewQuant(atom, lo, hi, greedy)
		if possessive {
			atom = p.t.NewEnclose(EncloseStopBacktrack, atom)
		}
	}
}

func (p *parser) parseGroup() (NodeID, bool, error) {
	start := p.pos
	p.pos++ // (
	if !p.lookingAt("?") {
		if p.opts.Has(OptionDontCaptureGroup) {
			id, err := p.parseGroupBody(start, NoNode)
			return id, false, err
		}
		id := p.newMemory()
		_, err := p.parseGroupBody(start, id)
		return id, false, err
	}
	p.pos++ // ?
	if !p.more() {
		return NoNode, false, p.errAt(ErrInvalidGroupOption, start)
	}
	c := p.peek()
	switch {
	case c == '#':
		end := strings.IndexByte(p.src[p.pos:], ')')
		if end < 0 {
			return NoNode, false, newError(ErrMissingParen, p.src[start:])
		}
		p.pos += end + 1
		return NoNode, false, nil
	case c == ':':
		p.pos++
		id, err := p.parseGroupBody(start, NoNode)
		return id, false, err
	case c == '>':
		p.pos++
		id := p.t.NewEnclose(EncloseStopBacktrack, NoNode)
		_, err := p.parseGroupBody(start, id)
		return id, false, err
	case c == '=' || c == '!':
		p.pos++
		a := AnchorPrecRead
		if c == '!' {
			a = AnchorPrecReadNot
		}
		id := p.t.NewAnchor(a, NoNode)
		_, err := p.parseGroupBody(start, id)
		return id, false, err
	case p.lookingAt("<=") || p.lookingAt("<!"):
		a := AnchorLookBehind
		if p.src[p.pos+1] == '!' {
			a = AnchorLookBehindNot
		}
		p.pos += 2
		id := p.t.NewAnchor(a, NoNode)
		_, err := p.parseGroupBody(start, id)
		return id, false, err
	case c == '<' || c == '\'' || p.lookingAt("P<") && p.env.Syntax.PerlOptions:
		if c == 'P' {
			p.pos++
		}
		name, err := p.parseName(start, p.src[p.pos])
		if err != nil {
			return NoNode, false, err
		}
		id, err := p.newNamedMemory(start, name)
		if err != nil {
			return NoNode, false, err
		}
		_, err = p.parseGroupBody(start, id)
		return id, false, err
	case c == '@' && p.env.Syntax.CaptureHistory:
		p.pos++
		var id NodeID
		if p.more() && (p.peek() == '<' || p.peek() == '\'') {
			name, err := p.parseName(start, p.peek())
			if err != nil {
				return NoNode, false, err
			}
			if id, err = p.newNamedMemory(start, name); err != nil {
				return NoNode, false, err
			}
		} else {
			id = p.newMemory()
		}
		regnum := p.t.N(id).Regnum
		p.env.CaptureHistory = p.env.CaptureHistory.On(regnum)
		p.t.Set(id, StateCaptureHistory)
		if regnum >= 32 {
			return NoNode, false, p.errAt(ErrCaptureHistoryTooBig, start)
		}
		_, err := p.parseGroupBody(start, id)
		return id, false, err
	}
	return p.parseOptionGroup(start)
}

// parseGroupBody parses the group content up to ')' and attaches it to
// owner. With owner == NoNode the content itself is returned.
func (p *parser) parseGroupBody(start int, owner NodeID) (NodeID, error) {
	saved := p.opts
	body, err := p.parseAlt()
	p.opts = saved
	if err != nil {
		return NoNode, err
	}
	if !p.more() || p.peek() != ')' {
		return NoNode, newError(ErrMissingParen, p.src[start:])
	}
	p.pos++
	if owner == NoNode {
		return body, nil
	}
	p.t.SetBody(owner, body)
	return owner, nil
}

func (p *parser) newMemory() NodeID {
	id := p.t.Add(&Node{Kind: KindEnclose, Enclose: EncloseMemory})
	p.t.N(id).Regnum = p.env.addMem(id)
	return id
}

func (p *parser) newNamedMemory(start int, name string) (NodeID, error) {
	if prev := p.env.Names[name]; len(prev) > 0 && !p.env.Syntax.MultiplexNames {
		return NoNode, newError(ErrMultiplexDefinedName, name)
	}
	id := p.newMemory()
	if p.env.NumMem > maxCaptureNum {
		return NoNode, p.errAt(ErrTooManyCaptures, start)
	}
	n := p.t.N(id)
	n.Name = name
	p.t.Set(id, StateNamedGroup)
	if _, ok := p.env.Names[name]; !ok {
		p.env.NameOrder = append(p.env.NameOrder, name)
	}
	p.env.Names[name] = append(p.env.Names[name], n.Regnum)
	p.env.NumNamed++
	return id, nil
}

// parseName reads <name> or 'name' starting at the opening delimiter.
func (p *parser) parseName(start int, open byte) (string, error) {
	closer := byte('>')
	if open == '\'' {
		closer = '\''
	}
	p.pos++
	end := strings.IndexByte(p.src[p.pos:], closer)
	if end < 0 {
		return "", p.errAt(ErrInvalidGroupName, start)
	}
	name := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	if name == "" {
		return "", newError(ErrEmptyGroupName, p.src[start:p.pos])
	}
	for i, r := range name {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) && i > 0) {
			return "", newError(ErrInvalidGroupName, name)
		}
	}
	return name, nil
}

func (p *parser) parseOptionGroup(start int) (NodeID, bool, error) {
	opts := p.opts
	neg := false
	for p.more() {
		c := p.peek()
		p.pos++
		switch c {
		case '-':
			neg = true
		case 'i':
			opts = setOption(opts, OptionIgnoreCase, !neg)
		case 'x':
			opts = setOption(opts, OptionExtend, !neg)
		case 'm':
			if p.env.Syntax.PerlOptions {
				opts = setOption(opts, OptionSingleLine, neg)
			} else {
				opts = setOption(opts, OptionMultiline, !neg)
			}
		case 's':
			if !p.env.Syntax.PerlOptions {
				return NoNode, false, p.errAt(ErrInvalidGroupOption, start)
			}
			opts = setOption(opts, OptionMultiline, !neg)
		case ')':
			// The options apply to the rest of the enclosing group.
			p.opts = opts
			body, err := p.parseAlt()
			if err != nil {
				return NoNode, false, err
			}
			id := p.t.NewEnclose(EncloseOption, body)
			p.t.N(id).Option = opts
			return id, true, nil
		case ':':
			saved := p.opts
			p.opts = opts
			id := p.t.Add(&Node{Kind: KindEnclose, Enclose: EncloseOption, Option: opts})
			_, err := p.parseGroupBody(start, id)
			p.opts = saved
			return id, false, err
		default:
			return NoNode, false, p.errAt(ErrInvalidGroupOption, start)
		}
	}
	return NoNode, false, newError(ErrMissingParen, p.src[start:])
}

func setOption(opts, o Options, on bool) Options {
	if on {
		return opts | o
	}
	return opts &^ o
}

func (p *parser) parseEscape() (NodeID, error) {
	start := p.pos
	p.pos++ // backslash
	if !p.more() {
		return NoNode, newError(ErrEndPatternAtEscape, `\`)
	}
	c := p.peek()
	p.pos++
	anchor := func(a AnchorType) (NodeID, error) { return p.t.NewAnchor(a, NoNode), nil }
	switch c {
	case 'w', 'W':
		return p.t.Add(&Node{Kind: KindCType, CType: CTypeWord, Not: c == 'W'}), nil
	case 'd', 'D', 's', 'S', 'h', 'H':
		ct := map[byte]CType{'d': CTypeDigit, 's': CTypeSpace, 'h': CTypeXDigit}[c|0x20]
		cc := NewCClass()
		if err := cc.AddCType(p.env.Enc, ct, false); err != nil {
			return NoNode, p.errAt(err, start)
		}
		cc.Not = c < 'a'
		return p.t.Add(&Node{Kind: KindCClass, Class: cc}), nil
	case 'p', 'P':
		cc, err := p.parseProperty(start, c == 'P')
		if err != nil {
			return NoNode, err
		}
		return p.t.Add(&Node{Kind: KindCClass, Class: cc, IgnoreCase: p.opts.Has(OptionIgnoreCase)}), nil
	case 'b':
		return anchor(AnchorWordBound)
	case 'B':
		return anchor(AnchorNotWordBound)
	case 'A':
		return anchor(AnchorBeginBuf)
	case 'z':
		return anchor(AnchorEndBuf)
	case 'Z':
		return anchor(AnchorSemiEndBuf)
	case 'G':
		return anchor(AnchorBeginPosition)
	case '<', '>':
		if p.env.Syntax.WordBeginEnd {
			if c == '<' {
				return anchor(AnchorWordBegin)
			}
			return anchor(AnchorWordEnd)
		}
		return p.newRune(rune(c))
	case 'k':
		if p.more() && (p.peek() == '<' || p.peek() == '\'') {
			return p.parseNamedBackref(start)
		}
		return NoNode, p.errAt(ErrInvalidBackref, start)
	case 'g':
		if p.more() && (p.peek() == '<' || p.peek() == '\'') {
			return p.parseCall(start)
		}
		return NoNode, p.errAt(ErrInvalidEscape, start)
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		p.pos--
		if id, ok := p.parseNumberedBackref(); ok {
			return id, nil
		}
		if c >= '8' {
			p.pos++
			return p.newRune(rune(c))
		}
		p.pos++
	}
	p.pos--
	r, err := p.parseEscapedRune(start, false)
	if err != nil {
		return NoNode, err
	}
	return p.newRune(r)
}

// parseNumberedBackref parses \N at the cursor (after the backslash).
func (p *parser) parseNumberedBackref() (NodeID, bool) {
	end := p.pos
	for end < len(p.src) && end-p.pos < 4 && p.src[end] >= '0' && p.src[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(p.src[p.pos:end])
	if n > maxBackrefNum || n > 9 && n > p.env.NumMem {
		return NoNode, false
	}
	p.pos = end
	return p.newBackref([]int{n}, true, false, 0), true
}

func (p *parser) newBackref(refs []int, byNumber, hasLevel bool, level int) NodeID {
	id := p.t.Add(&Node{
		Kind:       KindBackref,
		Refs:       refs,
		IgnoreCase: p.opts.Has(OptionIgnoreCase),
		HasLevel:   hasLevel,
		NestLevel:  level,
	})
	if byNumber {
		p.t.Set(id, StateByNumber)
	}
	if hasLevel {
		p.t.Set(id, StateNestLevel)
	}
	for _, r := range refs {
		p.env.BackrefedMem = p.env.BackrefedMem.On(r)
	}
	return id
}

// parseNamedBackref parses \k<name>, \k<N>, \k<-N> and level suffixes.
func (p *parser) parseNamedBackref(start int) (NodeID, error) {
	open := p.peek()
	closer := byte('>')
	if open == '\'' {
		closer = '\''
	}
	p.pos++
	end := strings.IndexByte(p.src[p.pos:], closer)
	if end < 0 {
		return NoNode, p.errAt(ErrInvalidBackref, start)
	}
	ref := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	hasLevel, level := false, 0
	if i := strings.LastIndexAny(ref, "+-"); i > 0 {
		lv, err := strconv.Atoi(ref[i:])
		if err != nil {
			return NoNode, newError(ErrInvalidBackref, ref)
		}
		hasLevel, level = true, lv
		ref = ref[:i]
	}
	if ref == "" {
		return NoNode, newError(ErrInvalidBackref, p.src[start:p.pos])
	}
	if c := ref[0]; c == '-' || c == '+' || '0' <= c && c <= '9' {
		n, err := strconv.Atoi(ref)
		if err != nil {
			return NoNode, newError(ErrInvalidBackref, ref)
		}
		if n < 0 {
			n = p.env.NumMem + 1 + n
		}
		if n <= 0 || n > maxBackrefNum {
			return NoNode, newError(ErrInvalidBackref, p.src[start:p.pos])
		}
		return p.newBackref([]int{n}, true, hasLevel, level), nil
	}
	id := p.newBackref(nil, false, hasLevel, level)
	p.t.N(id).Name = ref
	p.t.Set(id, StateNameRef)
	p.namedRefs = append(p.namedRefs, id)
	return id, nil
}

// parseCall parses \g<name>, \g<N>, \g<-N> and \g<0>.
func (p *parser) parseCall(start int) (NodeID, error) {
	open := p.peek()
	closer := byte('>')
	if open == '\'' {
		closer = '\''
	}
	p.pos++
	end := strings.IndexByte(p.src[p.pos:], closer)
	if end < 0 {
		return NoNode, p.errAt(ErrUndefinedGroupReference, start)
	}
	ref := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	if ref == "" {
		return NoNode, newError(ErrEmptyGroupName, p.src[start:p.pos])
	}
	p.env.NumCall++
	if c := ref[0]; c == '-' || c == '+' || '0' <= c && c <= '9' {
		n, err := strconv.Atoi(ref)
		if err != nil {
			return NoNode, newError(ErrUndefinedGroupReference, ref)
		}
		if c == '-' || c == '+' {
			n += p.env.NumMem
			if c == '-' {
				n++
			}
		}
		if n < 0 || n > maxCaptureNum {
			return NoNode, newError(ErrUndefinedGroupReference, p.src[start:p.pos])
		}
		if n == 0 {
			p.callsWhole = true
		}
		id := p.t.Add(&Node{Kind: KindCall, GroupNum: n})
		p.t.Set(id, StateByNumber)
		return id, nil
	}
	return p.t.Add(&Node{Kind: KindCall, Name: ref}), nil
}

func (p *parser) resolveNames() error {
	for _, id := range p.namedRefs {
		n := p.t.N(id)
		refs := p.env.Names[n.Name]
		if len(refs) == 0 {
			return newError(ErrUndefinedNameReference, n.Name)
		}
		n.Refs = append([]int(nil), refs...)
		for _, r := range refs {
			p.env.BackrefedMem = p.env.BackrefedMem.On(r)
		}
	}
	return nil
}

// parseEscapedRune decodes a character escape with the cursor on the
// character following the backslash.
func (p *parser) parseEscapedRune(start int, inClass bool) (rune, error) {
	c := p.peek()
	p.pos++
	switch c {
	case 't':
		return '\t', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 'f':
		return '\f', nil
	case 'v':
		return '\v', nil
	case 'a':
		return '\a', nil
	case 'e':
		return 0x1b, nil
	case 'b':
		if inClass {
			return '\b', nil
		}
	case 'x':
		if p.lookingAt("{") {
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return 0, p.errAt(ErrInvalidCodePoint, start)
			}
			v, err := strconv.ParseUint(p.src[p.pos+1:p.pos+end], 16, 32)
			p.pos += end + 1
			if err != nil || v > unicode.MaxRune {
				return 0, p.errAt(ErrInvalidCodePoint, start)
			}
			return rune(v), nil
		}
		return p.hexDigits(start, 2, 0)
	case 'u':
		return p.hexDigits(start, 4, 4)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := rune(c - '0')
		for i := 0; i < 2 && p.more() && p.peek() >= '0' && p.peek() <= '7'; i++ {
			v = v*8 + rune(p.peek()-'0')
			p.pos++
		}
		return v, nil
	}
	if c < utf8.RuneSelf && (c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
		return 0, p.errAt(ErrInvalidEscape, start)
	}
	p.pos--
	r, n := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += n
	return r, nil
}

// hexDigits reads up to maxDigits hex digits, requiring at least minDigits.
func (p *parser) hexDigits(start, maxDigits, minDigits int) (rune, error) {
	v, n := rune(0), 0
	for n < maxDigits && p.more() {
		d := unhex(p.peek())
		if d < 0 {
			break
		}
		v = v*16 + rune(d)
		p.pos++
		n++
	}
	if n < max(minDigits, 1) {
		return 0, p.errAt(ErrInvalidCodePoint, start)
	}
	return v, nil
}

func unhex(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// parseProperty parses {Name}, {^Name} after \p or \P.
func (p *parser) parseProperty(start int, not bool) (*CClass, error) {
	if !p.lookingAt("{") {
		return nil, p.errAt(ErrUnknownProperty, start)
	}
	end := strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		return nil, p.errAt(ErrUnknownProperty, start)
	}
	name := p.src[p.pos+1 : p.pos+end]
	p.pos += end + 1
	if strings.HasPrefix(name, "^") {
		not = !not
		name = name[1:]
	}
	cc, err := p.propertyClass(name)
	if err != nil {
		return nil, p.errAt(err, start)
	}
	cc.Not = not
	return cc, nil
}

func (p *parser) propertyClass(name string) (*CClass, error) {
	enc := p.env.Enc
	cc := NewCClass()
	if ct, ok := LookupCType(strings.ToLower(name)); ok {
		if err := cc.AddCType(enc, ct, false); err != nil {
			return nil, err
		}
		return cc, nil
	}
	if name == "Any" {
		if err := cc.AddRange(enc, 0, maxRuneFor(enc)); err != nil {
			return nil, err
		}
		return cc, nil
	}
	t := unicode.Categories[name]
	if t == nil {
		t = unicode.Scripts[name]
	}
	if t == nil {
		return nil, ErrUnknownProperty
	}
	limit := enc.SingleByteLimit()
	walkTable(t, func(r rune) {
		if r < limit {
			cc.Bits.Set(int(r))
		}
	})
	if enc.MaxLen() > 1 {
		if err := cc.MB.AddTable(t, limit); err != nil {
			return nil, err
		}
	}
	return cc, nil
}

func maxRuneFor(enc Encoding) rune {
	if enc.MaxLen() == 1 {
		return 0xff
	}
	return unicode.MaxRune
}

// parseClass parses a bracket expression; the cursor is past '['.
func (p *parser) parseClass(start int) (*CClass, error) {
	enc := p.env.Enc
	not := false
	if p.lookingAt("^") {
		not = true
		p.pos++
	}
	var left *CClass // accumulated left operand of &&
	cc := NewCClass()
	first := true
	for {
		if !p.more() {
			return nil, newError(ErrMissingBracket, p.src[start:])
		}
		c := p.peek()
		if c == ']' && !first {
			p.pos++
			break
		}
		first = false
		switch {
		case p.lookingAt("[:"):
			if ok, err := p.parsePosixBracket(cc); err != nil {
				return nil, err
			} else if ok {
				continue
			}
			p.pos++
			nested, err := p.parseClass(p.pos - 1)
			if err != nil {
				return nil, err
			}
			if cc, err = cc.Union(enc, nested); err != nil {
				return nil, p.errAt(err, start)
			}
			continue
		case c == '[':
			p.pos++
			nested, err := p.parseClass(p.pos - 1)
			if err != nil {
				return nil, err
			}
			if cc, err = cc.Union(enc, nested); err != nil {
				return nil, p.errAt(err, start)
			}
			continue
		case p.lookingAt("&&"):
			p.pos += 2
			if left == nil {
				left = cc
			} else {
				left = left.Intersect(enc, cc)
			}
			cc = NewCClass()
			continue
		}
		lo, isSet, err := p.parseClassAtom(start, cc)
		if err != nil {
			return nil, err
		}
		if isSet {
			continue
		}
		if p.lookingAt("-") {
			if nc, ok := p.peekAt(1); ok && nc != ']' {
				p.pos++
				hi, isSet, err := p.parseClassAtom(start, nil)
				if err != nil {
					return nil, err
				}
				if isSet || hi < lo {
					return nil, p.errAt(ErrInvalidCharRange, start)
				}
				if err := cc.AddRange(enc, lo, hi); err != nil {
					return nil, p.errAt(err, start)
				}
				continue
			}
		}
		if enc.RuneLen(lo) < 0 {
			return nil, p.errAt(ErrInvalidCodePoint, start)
		}
		if err := cc.AddRune(enc, lo); err != nil {
			return nil, p.errAt(err, start)
		}
	}
	if left != nil {
		cc = left.Intersect(enc, cc)
	}
	cc.Not = not != cc.Not
	return cc, nil
}

// parseClassAtom parses one class member. When it is a set such as \w it
// is added to cc and isSet is true; otherwise the code point is returned.
func (p *parser) parseClassAtom(start int, cc *CClass) (r rune, isSet bool, err error) {
	enc := p.env.Enc
	if p.peek() != '\\' {
		r, n := utf8.DecodeRuneInString(p.src[p.pos:])
		if r == utf8.RuneError && n <= 1 {
			r = rune(p.src[p.pos])
		}
		p.pos += n
		return r, false, nil
	}
	p.pos++
	if !p.more() {
		return 0, false, newError(ErrEndPatternAtEscape, `\`)
	}
	c := p.peek()
	var ct CType
	switch c | 0x20 {
	case 'w':
		ct = CTypeWord
	case 'd':
		ct = CTypeDigit
	case 's':
		ct = CTypeSpace
	case 'h':
		ct = CTypeXDigit
	case 'p':
		if cc == nil {
			return 0, false, p.errAt(ErrInvalidCharRange, start)
		}
		p.pos++
		prop, err := p.parseProperty(start, c == 'P')
		if err != nil {
			return 0, false, err
		}
		u, err := cc.Union(enc, prop)
		if err != nil {
			return 0, false, p.errAt(err, start)
		}
		*cc = *u
		return 0, true, nil
	default:
		r, err := p.parseEscapedRune(start, true)
		return r, false, err
	}
	if cc == nil {
		return 0, false, p.errAt(ErrInvalidCharRange, start)
	}
	p.pos++
	if err := cc.AddCType(enc, ct, c < 'a'); err != nil {
		return 0, false, p.errAt(err, start)
	}
	return 0, true, nil
}

// parsePosixBracket parses [:name:] or [:^name:] into cc.
func (p *parser) parsePosixBracket(cc *CClass) (bool, error) {
	s := p.src[p.pos+2:]
	end := strings.Index(s, ":]")
	if end < 0 {
		return false, nil
	}
	name := s[:end]
	not := strings.HasPrefix(name, "^")
	if not {
		name = name[1:]
	}
	ct, ok := LookupCType(name)
	if !ok {
		if strings.IndexFunc(name, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			return false, nil
		}
		return false, newError(ErrInvalidPosixBracket, "[:"+s[:end]+":]")
	}
	p.pos += 2 + end + 2
	return true, cc.AddCType(p.env.Enc, ct, not)
}
