package x64

import (
	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
)

// regUsage tracks, for one guest context offset, the register last known
// to hold that slot's value and the pending store to the slot, if any.
type regUsage struct {
	reg       machir.Reg
	lastStore *machir.InsnNode
}

// RemoveLocalGuestContextAccesses forwards guest context slot values
// through registers within each basic block. Repeated loads of a slot
// become register copies from the first load (or from the last stored
// value), and a store to a slot erases an earlier store to the same slot
// in the same block. State is reset at block boundaries, so accesses are
// never forwarded across control flow.
func RemoveLocalGuestContextAccesses(ir *IR) {
	memRegMap := make([]*regUsage, guest.StateSize)
	for _, bb := range ir.Blocks() {
		for i := range memRegMap {
			memRegMap[i] = nil
		}
		for node := bb.Insns().First(); node != nil; node = node.Next() {
			insn := AsInsn(node.Insn())
			if insn == nil {
				continue
			}
			if insn.IsCPUStateGet() {
				replaceGetAndUpdateMap(ir, node, memRegMap)
			} else if insn.IsCPUStatePut() {
				replacePutAndUpdateMap(bb, node, memRegMap)
			}
		}
	}
}

func replaceGetAndUpdateMap(ir *IR, node *machir.InsnNode, memRegMap []*regUsage) {
	insn := AsInsn(node.Insn())
	disp := insn.Disp()
	use := memRegMap[disp]
	if use == nil {
		memRegMap[disp] = &regUsage{reg: insn.RegAt(0)}
		return
	}
	size := 8
	if insn.Opcode() == OpMovdqaXRegMemBaseDisp {
		size = 16
	}
	node.Set(ir.NewPseudoCopy(insn.RegAt(0), use.reg, size))
}

func replacePutAndUpdateMap(bb *machir.BasicBlock, node *machir.InsnNode, memRegMap []*regUsage) {
	insn := AsInsn(node.Insn())
	disp := insn.Disp()
	if use := memRegMap[disp]; use != nil && use.lastStore != nil {
		bb.Insns().Remove(use.lastStore)
	}
	memRegMap[disp] = &regUsage{reg: insn.RegAt(1), lastStore: node}
}
