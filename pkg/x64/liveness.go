package x64

import (
	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
)

type offsetSet []uint64

func newOffsetSet() offsetSet {
	return make(offsetSet, (guest.StateSize+63)/64)
}

func (s offsetSet) get(disp uint32) bool { return s[disp/64]&(1<<(disp%64)) != 0 }
func (s offsetSet) set(disp uint32)      { s[disp/64] |= 1 << (disp % 64) }
func (s offsetSet) clear(disp uint32)    { s[disp/64] &^= 1 << (disp % 64) }

func (s offsetSet) setAll() {
	for i := range s {
		s[i] = ^uint64(0)
	}
}

// unionInto ors other into s and reports whether s changed.
func (s offsetSet) unionInto(other offsetSet) bool {
	changed := false
	for i, w := range other {
		if s[i]|w != s[i] {
			s[i] |= w
			changed = true
		}
	}
	return changed
}

// ContextLivenessAnalyzer computes, for each basic block, the set of guest
// context offsets whose value may be read before being overwritten on some
// path starting at the block. Blocks without successors leave the region,
// so every offset is live at their entry unless the block itself
// overwrites it first.
type ContextLivenessAnalyzer struct {
	ir     *IR
	liveIn map[*machir.BasicBlock]offsetSet
}

// NewContextLivenessAnalyzer creates an analyzer for the region. Call Init
// before querying IsLiveIn.
func NewContextLivenessAnalyzer(ir *IR) *ContextLivenessAnalyzer {
	return &ContextLivenessAnalyzer{
		ir:     ir,
		liveIn: make(map[*machir.BasicBlock]offsetSet),
	}
}

// Init runs the backward dataflow to a fixed point.
func (a *ContextLivenessAnalyzer) Init() {
	for _, bb := range a.ir.Blocks() {
		a.liveIn[bb] = newOffsetSet()
	}
	worklist := append([]*machir.BasicBlock(nil), a.ir.Blocks()...)
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		live := a.liveOut(bb)
		a.processBlock(bb, live)
		if a.liveIn[bb].unionInto(live) {
			for _, edge := range bb.InEdges() {
				worklist = append(worklist, edge.Src())
			}
		}
	}
}

func (a *ContextLivenessAnalyzer) liveOut(bb *machir.BasicBlock) offsetSet {
	live := newOffsetSet()
	if len(bb.OutEdges()) == 0 {
		live.setAll()
		return live
	}
	for _, edge := range bb.OutEdges() {
		live.unionInto(a.liveIn[edge.Dst()])
	}
	return live
}

// processBlock transfers the live set backward through the block's
// instructions. Instructions other than context accesses are ignored:
// they cannot read or write the guest context slots.
func (a *ContextLivenessAnalyzer) processBlock(bb *machir.BasicBlock, live offsetSet) {
	for node := bb.Insns().Last(); node != nil; node = node.Prev() {
		insn := AsInsn(node.Insn())
		if insn == nil {
			continue
		}
		if insn.IsCPUStatePut() {
			live.clear(insn.Disp())
		} else if insn.IsCPUStateGet() {
			live.set(insn.Disp())
		}
	}
}

// IsLiveIn reports whether the context slot at offset may be read before
// being overwritten on some path from the start of bb.
func (a *ContextLivenessAnalyzer) IsLiveIn(bb *machir.BasicBlock, offset uint32) bool {
	return a.liveIn[bb].get(offset)
}
