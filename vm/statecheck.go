package vm

// stateCheckMinText is the shortest subject for which explosion checks
// are worth their allocation.
const stateCheckMinText = 7

// checkSet records (position, explosion-check id) pairs from which every
// continuation is known to fail. Bit pos*num + id-1 is set once the
// alternative pushed at that state has been exhausted.
type checkSet struct {
	bits []byte
	num  int
}

// reset sizes the set for a subject of textLen bytes and num check ids.
// The set stays disabled when the subject is short or the set would
// exceed maxBytes.
func (c *checkSet) reset(textLen, num, maxBytes int) {
	c.num = num
	if num == 0 || textLen < stateCheckMinText {
		c.bits = c.bits[:0]
		return
	}
	size := ((textLen+1)*num + 7) >> 3
	if maxBytes > 0 && size > maxBytes {
		c.bits = c.bits[:0]
		return
	}
	if cap(c.bits) < size {
		c.bits = make([]byte, size)
		return
	}
	c.bits = c.bits[:size]
	clear(c.bits)
}

func (c *checkSet) enabled() bool { return len(c.bits) > 0 }

func (c *checkSet) visited(pos, id int) bool {
	if len(c.bits) == 0 {
		return false
	}
	x := pos*c.num + id - 1
	return c.bits[x>>3]&(1<<uint(x&7)) != 0
}

func (c *checkSet) mark(pos, id int) {
	if len(c.bits) == 0 {
		return
	}
	x := pos*c.num + id - 1
	c.bits[x>>3] |= 1 << uint(x&7)
}
