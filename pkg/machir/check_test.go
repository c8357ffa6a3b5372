package machir

import "testing"

func TestCheckWellFormed(t *testing.T) {
	ir := newTestIR()
	newDiamond(ir)
	if status := Check(ir); status != CheckSuccess {
		t.Errorf("Check = %v on a well-formed region", status)
	}
}

func TestCheckSingleBlockRegion(t *testing.T) {
	ir := newTestIR()
	bb := ir.NewBasicBlock()
	ir.AppendBlock(bb)
	endWithJump(ir, bb)
	if status := Check(ir); status != CheckSuccess {
		t.Errorf("Check = %v on a single-block region", status)
	}
}

func TestCheckDanglingBasicBlock(t *testing.T) {
	ir := newTestIR()
	newDiamond(ir)
	// An enrolled block with no edges at all is dangling.
	dead := ir.NewBasicBlock()
	endWithJump(ir, dead)
	ir.AppendBlock(dead)
	if status := Check(ir); status != CheckDanglingBasicBlock {
		t.Errorf("Check = %v, want dangling basic block", status)
	}
}

func TestCheckUnenrolledSuccessor(t *testing.T) {
	ir := newTestIR()
	src := ir.NewBasicBlock()
	dst := ir.NewBasicBlock()
	ir.AppendBlock(src) // dst deliberately left out of the block list
	endWithBranch(ir, src, dst)
	endWithJump(ir, dst)
	if status := Check(ir); status != CheckDanglingBasicBlock {
		t.Errorf("Check = %v, want dangling basic block", status)
	}
}

func TestCheckDanglingEdge(t *testing.T) {
	ir := newTestIR()
	_, left, _, _ := newDiamond(ir)
	// Break symmetry: drop the edge from its destination's in-list.
	left.inEdges = nil
	if status := Check(ir); status != CheckDanglingEdge {
		t.Errorf("Check = %v, want dangling edge", status)
	}
}

func TestCheckMissingControlTransfer(t *testing.T) {
	ir := newTestIR()
	_, left, _, _ := newDiamond(ir)
	left.Insns().Remove(left.Insns().Last())
	if status := Check(ir); status != CheckFail {
		t.Errorf("Check = %v, want fail", status)
	}
}

func TestCheckControlTransferNotLast(t *testing.T) {
	ir := newTestIR()
	_, left, _, _ := newDiamond(ir)
	left.Insns().PushBack(ir.NewPseudoCopy(CreateVRegFromIndex(0), CreateVRegFromIndex(1), 8))
	if status := Check(ir); status != CheckFail {
		t.Errorf("Check = %v, want fail", status)
	}
}

func TestCheckBranchTargetNotSuccessor(t *testing.T) {
	ir := newTestIR()
	_, left, right, _ := newDiamond(ir)
	branch := left.Insns().Back().(*PseudoBranch)
	branch.SetThenBB(right)
	if status := Check(ir); status != CheckFail {
		t.Errorf("Check = %v, want fail", status)
	}
}
