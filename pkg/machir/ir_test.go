package machir

import (
	"testing"

	"github.com/ternjit/tern/pkg/arena"
)

func newTestIR() *MachineIR {
	return NewMachineIR(arena.New(), 0)
}

func TestAllocVReg(t *testing.T) {
	ir := newTestIR()
	a := ir.AllocVReg()
	b := ir.AllocVReg()
	if !a.IsVReg() || !b.IsVReg() {
		t.Fatal("AllocVReg returned a non-virtual register")
	}
	if a == b {
		t.Error("AllocVReg returned the same register twice")
	}
	if b.VRegIndex() != a.VRegIndex()+1 {
		t.Errorf("vreg indices not dense: %d then %d", a.VRegIndex(), b.VRegIndex())
	}
	if ir.NumVReg() != 2 {
		t.Errorf("NumVReg() = %d, want 2", ir.NumVReg())
	}
}

func TestReserveBasicBlockID(t *testing.T) {
	ir := newTestIR()
	bb0 := ir.NewBasicBlock()
	bb1 := ir.NewBasicBlock()
	if bb0.ID() != 0 || bb1.ID() != 1 {
		t.Errorf("block ids = %d, %d, want 0, 1", bb0.ID(), bb1.ID())
	}
	if ir.NumBasicBlocks() != 2 {
		t.Errorf("NumBasicBlocks() = %d, want 2", ir.NumBasicBlocks())
	}
}

func TestFrameLayout(t *testing.T) {
	ir := newTestIR()
	ir.ReserveArgs(24) // rounds up to two 16-byte slots
	s0 := ir.AllocSpill()
	s1 := ir.AllocSpill()
	if off := ir.SpillSlotOffset(s0); off != 32 {
		t.Errorf("SpillSlotOffset(%d) = %d, want 32", s0, off)
	}
	if off := ir.SpillSlotOffset(s1); off != 48 {
		t.Errorf("SpillSlotOffset(%d) = %d, want 48", s1, off)
	}
	if size := ir.FrameSize(); size != 64 {
		t.Errorf("FrameSize() = %d, want 64", size)
	}
}

func TestAddEdge(t *testing.T) {
	ir := newTestIR()
	src := ir.NewBasicBlock()
	dst := ir.NewBasicBlock()
	edge := ir.AddEdge(src, dst)
	if edge.Src() != src || edge.Dst() != dst {
		t.Error("edge endpoints wrong")
	}
	if len(src.OutEdges()) != 1 || src.OutEdges()[0] != edge {
		t.Error("edge not linked into src out-edges")
	}
	if len(dst.InEdges()) != 1 || dst.InEdges()[0] != edge {
		t.Error("edge not linked into dst in-edges")
	}
}

func TestInsnList(t *testing.T) {
	ir := newTestIR()
	var l InsnList
	c1 := ir.NewPseudoCopy(CreateVRegFromIndex(0), CreateVRegFromIndex(1), 8)
	c2 := ir.NewPseudoCopy(CreateVRegFromIndex(2), CreateVRegFromIndex(3), 8)
	c3 := ir.NewPseudoCopy(CreateVRegFromIndex(4), CreateVRegFromIndex(5), 8)

	n1 := l.PushBack(c1)
	n3 := l.PushBack(c3)
	n2 := l.InsertBefore(n3, c2)
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if l.First() != n1 || l.Last() != n3 || n1.Next() != n2 || n3.Prev() != n2 {
		t.Error("list links wrong after InsertBefore")
	}

	l.Remove(n2)
	if l.Len() != 2 || n1.Next() != n3 || n3.Prev() != n1 {
		t.Error("list links wrong after Remove")
	}

	// Replacing through a node keeps the position valid.
	n1.Set(c2)
	if l.Front() != c2 {
		t.Error("Set did not replace the instruction in place")
	}
}

func TestSplitBasicBlock(t *testing.T) {
	ir := newTestIR()
	bb := ir.NewBasicBlock()
	exit := ir.NewBasicBlock()
	ir.AppendBlock(bb)
	ir.AppendBlock(exit)

	c1 := ir.NewPseudoCopy(CreateVRegFromIndex(0), CreateVRegFromIndex(1), 8)
	c2 := ir.NewPseudoCopy(CreateVRegFromIndex(2), CreateVRegFromIndex(3), 8)
	bb.Insns().PushBack(c1)
	at := bb.Insns().PushBack(c2)
	bb.Insns().PushBack(ir.NewPseudoBranch(exit))
	exit.Insns().PushBack(ir.NewPseudoJump(0, JumpWithPendingSignalsCheck))
	ir.AddEdge(bb, exit)

	newBB := ir.SplitBasicBlock(bb, at)

	if bb.Insns().Len() != 2 {
		t.Errorf("head block has %d insns, want copy + branch", bb.Insns().Len())
	}
	branch, ok := bb.Insns().Back().(*PseudoBranch)
	if !ok || branch.ThenBB() != newBB {
		t.Error("head block does not end in a branch to the split-off block")
	}
	if newBB.Insns().Len() != 2 || newBB.Insns().Front() != c2 {
		t.Error("tail instructions not moved to the new block")
	}
	// The position handed to SplitBasicBlock still points at the moved insn.
	if at.Insn() != c2 {
		t.Error("position invalidated by split")
	}
	if len(newBB.OutEdges()) != 1 || newBB.OutEdges()[0].Dst() != exit {
		t.Error("out-edges not transferred to the new block")
	}
	if len(bb.OutEdges()) != 1 || bb.OutEdges()[0].Dst() != newBB {
		t.Error("head block not linked to the new block")
	}
	if Check(ir) != CheckSuccess {
		t.Errorf("ir fails check after split:\n%s", ir.DebugString())
	}
}

func TestEntryBlockPanicsOnEmptyRegion(t *testing.T) {
	expectPanic(t, "EntryBlock", func() {
		newTestIR().EntryBlock()
	})
}

func TestBuilder(t *testing.T) {
	ir := newTestIR()
	var b BuilderBase
	b.InitBuilder(ir)

	bb := ir.NewBasicBlock()
	recovery := ir.NewBasicBlock()
	b.StartBasicBlock(bb)
	if ir.EntryBlock() != bb {
		t.Error("StartBasicBlock did not enroll the block")
	}
	node := b.Insert(ir.NewPseudoDefReg(CreateVRegFromIndex(0)))
	if b.LastInsnPosition() != node {
		t.Error("LastInsnPosition does not point at the inserted insn")
	}
	b.SetRecoveryPointAtLastInsn(recovery)
	if node.Insn().RecoveryBB() != recovery {
		t.Error("recovery block not attached")
	}
	if !recovery.IsRecovery() {
		t.Error("recovery block not marked cold")
	}
	if !node.Insn().HasSideEffects() {
		t.Error("insn with recovery info must have side effects")
	}

	expectPanic(t, "StartBasicBlock on non-empty block", func() {
		b.StartBasicBlock(bb)
	})
}
