package machir

import "slices"

// CheckStatus is the result of a structural IR check.
type CheckStatus int

const (
	CheckSuccess CheckStatus = iota
	CheckFail
	CheckDanglingEdge
	CheckDanglingBasicBlock
)

func (s CheckStatus) String() string {
	switch s {
	case CheckSuccess:
		return "success"
	case CheckFail:
		return "malformed control transfer"
	case CheckDanglingEdge:
		return "dangling edge"
	case CheckDanglingBasicBlock:
		return "dangling basic block"
	}
	return "unknown"
}

// Check validates the region's control-flow graph: edges must be
// symmetric and lead to enrolled blocks, and every block must end with
// exactly one trailing control transfer whose targets are successors.
// Passes run it after structural mutation to catch corruption early.
func Check(ir *MachineIR) CheckStatus {
	for _, bb := range ir.blocks {
		if !checkEdgesLinkBlock(bb) {
			return CheckFail
		}
		if status := checkNoDanglingEdgesOrBlocks(ir, bb); status != CheckSuccess {
			return status
		}
		if !checkControlTransferInsn(bb) {
			return CheckFail
		}
	}
	return CheckSuccess
}

func checkEdgesLinkBlock(bb *BasicBlock) bool {
	for _, edge := range bb.inEdges {
		if edge.dst != bb {
			return false
		}
	}
	for _, edge := range bb.outEdges {
		if edge.src != bb {
			return false
		}
	}
	return true
}

func checkNoDanglingEdgesOrBlocks(ir *MachineIR, bb *BasicBlock) CheckStatus {
	if len(bb.outEdges) == 0 && len(bb.inEdges) == 0 {
		if len(ir.blocks) != 1 {
			return CheckDanglingBasicBlock
		}
		return CheckSuccess
	}

	for _, edge := range bb.outEdges {
		if !slices.Contains(edge.dst.inEdges, edge) {
			return CheckDanglingEdge
		}
		if !slices.Contains(ir.blocks, edge.dst) {
			return CheckDanglingBasicBlock
		}
	}
	for _, edge := range bb.inEdges {
		if !slices.Contains(edge.src.outEdges, edge) {
			return CheckDanglingEdge
		}
		if !slices.Contains(ir.blocks, edge.src) {
			return CheckDanglingBasicBlock
		}
	}
	return CheckSuccess
}

func isSuccessor(src, dst *BasicBlock) bool {
	for _, edge := range src.outEdges {
		if edge.dst == dst {
			return true
		}
	}
	return false
}

// checkControlTransferInsn verifies that the block's only control
// transfer is its last instruction and that branch targets are real
// successors.
func checkControlTransferInsn(bb *BasicBlock) bool {
	for n := bb.insns.First(); n != nil; n = n.Next() {
		insn := n.Insn()
		switch insn.Opcode() {
		case OpPseudoIndirectJump, OpPseudoJump:
			return n == bb.insns.Last()
		case OpPseudoBranch:
			if n != bb.insns.Last() {
				return false
			}
			branch := insn.(*PseudoBranch)
			return isSuccessor(bb, branch.ThenBB())
		case OpPseudoCondBranch:
			if n != bb.insns.Last() {
				return false
			}
			condBranch := insn.(*PseudoCondBranch)
			return isSuccessor(bb, condBranch.ThenBB()) && isSuccessor(bb, condBranch.ElseBB())
		}
	}
	return false
}
