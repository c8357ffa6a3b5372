package machir

import (
	"fmt"
	"slices"
)

// RemoveNopPseudoCopies removes PSEUDO_COPY instructions whose source and
// destination are the same register.
func RemoveNopPseudoCopies(ir *MachineIR) {
	for _, bb := range ir.blocks {
		bb.insns.RemoveIf(func(insn Insn) bool {
			return insn.Opcode() == OpPseudoCopy && insn.RegAt(0) == insn.RegAt(1)
		})
	}
}

// MoveColdBlocksToEnd partitions the block list so recovery blocks come
// last. Normal blocks keep their relative order so they keep falling
// through; recovery blocks are cold and their order does not matter.
// An RPO tag stays valid: sinking exit-bound recovery blocks preserves
// the properties the backend relies on.
func MoveColdBlocksToEnd(ir *MachineIR) {
	// The entry block must stay first; a recovery block cannot be the
	// entry since it follows a faulting instruction.
	if ir.EntryBlock().isRecovery {
		panic("machir: region entry is a recovery block")
	}

	normal := 0
	for i, bb := range ir.blocks {
		if !bb.isRecovery {
			ir.blocks[normal], ir.blocks[i] = ir.blocks[i], ir.blocks[normal]
			normal++
		}
	}
}

// changeBranchTarget retargets the trailing branch of bb from oldDst to
// newDst.
func changeBranchTarget(bb *BasicBlock, oldDst, newDst *BasicBlock) {
	if bb.insns.Empty() {
		panic("machir: retargeting branch of an empty block")
	}
	switch insn := bb.insns.Back().(type) {
	case *PseudoBranch:
		if insn.ThenBB() != oldDst {
			panic(fmt.Sprintf("machir: branch of block %d does not target block %d", bb.id, oldDst.id))
		}
		insn.SetThenBB(newDst)
	case *PseudoCondBranch:
		if insn.ThenBB() == oldDst {
			insn.SetThenBB(newDst)
		} else if insn.ElseBB() == oldDst {
			insn.SetElseBB(newDst)
		}
	default:
		panic(fmt.Sprintf("machir: block %d does not end with a branch", bb.id))
	}
}

// isForwarderBlock reports whether bb holds nothing but an unconditional
// branch and can be bypassed.
func isForwarderBlock(bb *BasicBlock) bool {
	if bb.insns.Len() != 1 {
		return false
	}
	// Keep the entry block: removing it would change where the region
	// starts.
	if len(bb.inEdges) == 0 {
		return false
	}
	// Keep self-loops. Chains of forwarders need no special casing: all
	// but the last are removable, and the last one is a self-loop.
	if len(bb.outEdges) == 1 && bb.outEdges[0].dst == bb {
		return false
	}
	_, isBranch := bb.insns.Back().(*PseudoBranch)
	return isBranch
}

func unlinkForwarderBlock(bb *BasicBlock) {
	if len(bb.outEdges) != 1 {
		panic(fmt.Sprintf("machir: forwarder block %d has %d out edges", bb.id, len(bb.outEdges)))
	}
	dst := bb.outEdges[0].dst
	for _, edge := range bb.inEdges {
		edge.dst = dst
		dst.inEdges = append(dst.inEdges, edge)
		changeBranchTarget(edge.src, bb, dst)
	}

	edge := bb.outEdges[0]
	i := slices.Index(dst.inEdges, edge)
	if i < 0 {
		panic(fmt.Sprintf("machir: out edge of forwarder block %d missing from successor", bb.id))
	}
	dst.inEdges = slices.Delete(dst.inEdges, i, i+1)
}

// RemoveForwarderBlocks removes blocks that contain only an unconditional
// branch, redirecting jumps to them to their final destinations.
func RemoveForwarderBlocks(ir *MachineIR) {
	kept := ir.blocks[:0]
	for _, bb := range ir.blocks {
		if isForwarderBlock(bb) {
			unlinkForwarderBlock(bb)
			continue
		}
		kept = append(kept, bb)
	}
	ir.blocks = kept
}

// ReorderInReversePostOrder rewrites the block list in reverse post order
// and tags it, so later passes can rely on the ordering.
func ReorderInReversePostOrder(ir *MachineIR) {
	ir.blocks = ReversePostOrder(ir)
	ir.order = BlockOrderReversePostOrder
}

// regUsageSet tracks which registers are used below the current point of
// a backward scan. Hard registers are never optimized and always read as
// used.
type regUsageSet struct {
	vregs []uint64
}

func newRegUsageSet(numVReg int) *regUsageSet {
	return &regUsageSet{vregs: make([]uint64, (numVReg+63)/64)}
}

func (s *regUsageSet) set(r Reg) {
	if r.IsVReg() {
		i := r.VRegIndex()
		s.vregs[i/64] |= 1 << (i % 64)
	}
}

func (s *regUsageSet) reset(r Reg) {
	if r.IsVReg() {
		i := r.VRegIndex()
		s.vregs[i/64] &^= 1 << (i % 64)
	}
}

func (s *regUsageSet) get(r Reg) bool {
	if !r.IsVReg() {
		return true
	}
	i := r.VRegIndex()
	return s.vregs[i/64]&(1<<(i%64)) != 0
}

func (s *regUsageSet) clear() {
	for i := range s.vregs {
		s.vregs[i] = 0
	}
}

func areResultsUsed(insn Insn, used *regUsageSet) bool {
	for i := 0; i < insn.NumRegOperands(); i++ {
		if insn.RegKindAt(i).IsDef() && used.get(insn.RegAt(i)) {
			return true
		}
	}
	return false
}

func setInsnResultsUnused(insn Insn, used *regUsageSet) {
	for i := 0; i < insn.NumRegOperands(); i++ {
		if insn.RegKindAt(i).IsDef() {
			used.reset(insn.RegAt(i))
		}
	}
}

func setInsnArgumentsUsed(insn Insn, used *regUsageSet) {
	for i := 0; i < insn.NumRegOperands(); i++ {
		if insn.RegKindAt(i).IsUse() {
			used.set(insn.RegAt(i))
		}
	}
}

// RemoveDeadCode deletes side-effect-free instructions whose results are
// not used later in their block and not live out of it. The scan runs
// backward through each block, seeded from the block's live-out set.
func RemoveDeadCode(ir *MachineIR) {
	used := newRegUsageSet(ir.NumVReg())

	for _, bb := range ir.blocks {
		used.clear()
		for _, r := range bb.liveOut {
			used.set(r)
		}

		for n := bb.insns.Last(); n != nil; {
			prev := n.Prev()
			insn := n.Insn()

			if !insn.HasSideEffects() && !areResultsUsed(insn, used) {
				bb.insns.Remove(n)
				setInsnResultsUnused(insn, used)
				n = prev
				continue
			}

			setInsnResultsUnused(insn, used)
			setInsnArgumentsUsed(insn, used)
			n = prev
		}
	}
}
