package machir

// InsnList is a doubly-linked list of instructions. Passes mutate lists
// while walking them, so positions must survive insertion and removal of
// other elements: an *InsnNode stays valid until it is itself removed.
type InsnList struct {
	head *InsnNode
	tail *InsnNode
	size int
}

// InsnNode is one position in an InsnList. It doubles as the cursor type
// for in-place replacement and erasure.
type InsnNode struct {
	prev, next *InsnNode
	insn       Insn
}

// Insn returns the instruction at this position.
func (n *InsnNode) Insn() Insn { return n.insn }

// Set replaces the instruction at this position, reusing the list slot.
func (n *InsnNode) Set(insn Insn) { n.insn = insn }

// Next returns the following position, or nil at the end of the list.
func (n *InsnNode) Next() *InsnNode { return n.next }

// Prev returns the preceding position, or nil at the front of the list.
func (n *InsnNode) Prev() *InsnNode { return n.prev }

// Len returns the number of instructions in the list.
func (l *InsnList) Len() int { return l.size }

// Empty reports whether the list has no instructions.
func (l *InsnList) Empty() bool { return l.size == 0 }

// First returns the first position, or nil for an empty list.
func (l *InsnList) First() *InsnNode { return l.head }

// Last returns the last position, or nil for an empty list.
func (l *InsnList) Last() *InsnNode { return l.tail }

// Front returns the first instruction; the list must not be empty.
func (l *InsnList) Front() Insn { return l.head.insn }

// Back returns the last instruction; the list must not be empty.
func (l *InsnList) Back() Insn { return l.tail.insn }

// PushBack appends insn and returns its position.
func (l *InsnList) PushBack(insn Insn) *InsnNode {
	n := &InsnNode{insn: insn, prev: l.tail}
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
	return n
}

// PushFront prepends insn and returns its position.
func (l *InsnList) PushFront(insn Insn) *InsnNode {
	n := &InsnNode{insn: insn, next: l.head}
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.size++
	return n
}

// InsertBefore inserts insn ahead of position at and returns the new
// position.
func (l *InsnList) InsertBefore(at *InsnNode, insn Insn) *InsnNode {
	n := &InsnNode{insn: insn, prev: at.prev, next: at}
	if at.prev != nil {
		at.prev.next = n
	} else {
		l.head = n
	}
	at.prev = n
	l.size++
	return n
}

// InsertAfter inserts insn right after position at and returns the new
// position.
func (l *InsnList) InsertAfter(at *InsnNode, insn Insn) *InsnNode {
	n := &InsnNode{insn: insn, prev: at, next: at.next}
	if at.next != nil {
		at.next.prev = n
	} else {
		l.tail = n
	}
	at.next = n
	l.size++
	return n
}

// Remove unlinks position n from the list. n must belong to l and becomes
// invalid; neighbouring positions are unaffected.
func (l *InsnList) Remove(n *InsnNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.size--
}

// RemoveIf removes every instruction for which pred returns true.
func (l *InsnList) RemoveIf(pred func(Insn) bool) {
	for n := l.head; n != nil; {
		next := n.next
		if pred(n.insn) {
			l.Remove(n)
		}
		n = next
	}
}

// SpliceTailInto moves the instructions from position from through the end
// of l to the end of dst. Positions of the moved instructions stay valid
// and now index into dst.
func (l *InsnList) SpliceTailInto(from *InsnNode, dst *InsnList) {
	if from == nil {
		return
	}
	moved := 0
	for n := from; n != nil; n = n.next {
		moved++
	}

	// Detach the tail from l.
	if from.prev != nil {
		from.prev.next = nil
		l.tail = from.prev
	} else {
		l.head, l.tail = nil, nil
	}
	from.prev = nil
	l.size -= moved

	// Append to dst.
	if dst.tail != nil {
		dst.tail.next = from
		from.prev = dst.tail
	} else {
		dst.head = from
	}
	for n := from; n != nil; n = n.next {
		dst.tail = n
	}
	dst.size += moved
}
