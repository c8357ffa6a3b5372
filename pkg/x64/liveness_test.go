package x64

import (
	"testing"

	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
)

func TestLivenessStraightLine(t *testing.T) {
	// first: put x1; second: get x1. The slot is live into second and
	// dead into first (the put overwrites it before any read).
	ir := newTestIR()
	b := NewBuilder(ir)
	first := ir.NewBasicBlock()
	second := ir.NewBasicBlock()
	disp := guest.XRegOffset(1)

	b.StartBasicBlock(first)
	b.GenPut(disp, ir.AllocVReg())
	b.GenBranch(second)

	b.StartBasicBlock(second)
	b.GenGet(ir.AllocVReg(), disp)
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	a := NewContextLivenessAnalyzer(ir)
	a.Init()

	if !a.IsLiveIn(second, disp) {
		t.Error("slot read by second must be live into it")
	}
	if a.IsLiveIn(first, disp) {
		t.Error("slot overwritten by first before any read must be dead into it")
	}
	// A slot nobody writes stays live everywhere: the region exit needs it.
	other := guest.XRegOffset(2)
	if !a.IsLiveIn(first, other) || !a.IsLiveIn(second, other) {
		t.Error("untouched slot must be live throughout")
	}
}

func TestLivenessJoin(t *testing.T) {
	// entry -> (reader | writer): the slot is live into entry because
	// one path reads it before writing.
	ir := newTestIR()
	b := NewBuilder(ir)
	entry := ir.NewBasicBlock()
	reader := ir.NewBasicBlock()
	writer := ir.NewBasicBlock()
	disp := guest.XRegOffset(5)

	b.StartBasicBlock(entry)
	b.GenAlu(OpCmpqRegReg, ir.AllocVReg(), ir.AllocVReg())
	b.GenCondBranch(machir.CondEq, reader, writer)

	b.StartBasicBlock(reader)
	b.GenGet(ir.AllocVReg(), disp)
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	b.StartBasicBlock(writer)
	b.GenPut(disp, ir.AllocVReg())
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	a := NewContextLivenessAnalyzer(ir)
	a.Init()

	if !a.IsLiveIn(entry, disp) {
		t.Error("slot read on one path must be live into the join's predecessor")
	}
	if !a.IsLiveIn(reader, disp) {
		t.Error("slot must be live into the reading block")
	}
}

func TestLivenessLoop(t *testing.T) {
	// entry -> head, head -> (head | head)... a self-loop that reads the
	// slot keeps it live around the back edge.
	ir := newTestIR()
	b := NewBuilder(ir)
	entry := ir.NewBasicBlock()
	head := ir.NewBasicBlock()
	exit := ir.NewBasicBlock()
	disp := guest.XRegOffset(8)

	b.StartBasicBlock(entry)
	b.GenPut(disp, ir.AllocVReg())
	b.GenBranch(head)

	b.StartBasicBlock(head)
	b.GenGet(ir.AllocVReg(), disp)
	b.GenAlu(OpCmpqRegReg, ir.AllocVReg(), ir.AllocVReg())
	b.GenCondBranch(machir.CondNe, head, exit)

	b.StartBasicBlock(exit)
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	a := NewContextLivenessAnalyzer(ir)
	a.Init()

	if !a.IsLiveIn(head, disp) {
		t.Error("slot read in the loop must be live into the loop head")
	}
	// The entry's put is still observable through the loop's get.
	if !a.IsLiveIn(entry, guest.XRegOffset(9)) {
		t.Error("untouched slot must stay live")
	}
	if a.IsLiveIn(entry, disp) {
		t.Error("slot overwritten by entry before any read must be dead into it")
	}
}

func TestRemoveRedundantPutsCrossBlock(t *testing.T) {
	// first: put x1 (overwritten in second before any read) -> removed.
	ir := newTestIR()
	b := NewBuilder(ir)
	first := ir.NewBasicBlock()
	second := ir.NewBasicBlock()
	disp := guest.XRegOffset(1)

	b.StartBasicBlock(first)
	b.GenPut(disp, ir.AllocVReg())
	b.GenBranch(second)

	b.StartBasicBlock(second)
	b.GenPut(disp, ir.AllocVReg())
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	RemoveRedundantPuts(ir)

	if got := first.Insns().Len(); got != 1 {
		t.Errorf("first block has %d insns, want the shadowed store removed", got)
	}
	if got := second.Insns().Len(); got != 2 {
		t.Errorf("second block has %d insns, want its store kept", got)
	}
}

func TestRemoveRedundantPutsKeepsObservableStore(t *testing.T) {
	// entry: put; one successor reads the slot, the other overwrites it.
	// The entry store must stay.
	ir := newTestIR()
	b := NewBuilder(ir)
	entry := ir.NewBasicBlock()
	reader := ir.NewBasicBlock()
	writer := ir.NewBasicBlock()
	disp := guest.XRegOffset(6)

	b.StartBasicBlock(entry)
	b.GenPut(disp, ir.AllocVReg())
	b.GenAlu(OpCmpqRegReg, ir.AllocVReg(), ir.AllocVReg())
	b.GenCondBranch(machir.CondEq, reader, writer)

	b.StartBasicBlock(reader)
	b.GenGet(ir.AllocVReg(), disp)
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	b.StartBasicBlock(writer)
	b.GenPut(disp, ir.AllocVReg())
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	RemoveRedundantPuts(ir)

	if got := entry.Insns().Len(); got != 3 {
		t.Errorf("entry has %d insns, want its store kept", got)
	}
}

func TestRemoveRedundantPutsWithinBlock(t *testing.T) {
	ir := newTestIR()
	b := NewBuilder(ir)
	b.StartBasicBlock(ir.NewBasicBlock())
	disp := guest.XRegOffset(2)
	v1 := ir.AllocVReg()
	v2 := ir.AllocVReg()

	b.GenPut(disp, v1)
	b.GenPut(disp, v2)
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	RemoveRedundantPuts(ir)

	insns := insnsOf(b.BB())
	if len(insns) != 2 {
		t.Fatalf("block has %d insns, want one store + jump", len(insns))
	}
	if put := AsInsn(insns[0]); put == nil || put.RegAt(1) != v2 {
		t.Error("surviving store does not hold the last value")
	}
}

func TestRemoveRedundantPutsKeepsStoreBeforeRead(t *testing.T) {
	ir := newTestIR()
	b := NewBuilder(ir)
	b.StartBasicBlock(ir.NewBasicBlock())
	disp := guest.XRegOffset(3)

	b.GenPut(disp, ir.AllocVReg())
	b.GenGet(ir.AllocVReg(), disp)
	b.GenPut(disp, ir.AllocVReg())
	b.GenJump(0, machir.JumpWithPendingSignalsCheck)

	RemoveRedundantPuts(ir)

	if got := b.BB().Insns().Len(); got != 4 {
		t.Errorf("block has %d insns, want nothing removed", got)
	}
}
