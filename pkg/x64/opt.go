package x64

// RemoveRedundantPuts deletes guest context stores whose slot is
// overwritten before any read on every path from the store. Unlike the
// local pass this looks across basic blocks, using context liveness to
// decide whether a store at the end of a block is observable.
func RemoveRedundantPuts(ir *IR) {
	analyzer := NewContextLivenessAnalyzer(ir)
	analyzer.Init()
	live := newOffsetSet()
	for _, bb := range ir.Blocks() {
		if len(bb.OutEdges()) == 0 {
			live.setAll()
		} else {
			for i := range live {
				live[i] = 0
			}
			for _, edge := range bb.OutEdges() {
				live.unionInto(analyzer.liveIn[edge.Dst()])
			}
		}
		for node := bb.Insns().Last(); node != nil; {
			prev := node.Prev()
			insn := AsInsn(node.Insn())
			if insn != nil {
				if insn.IsCPUStatePut() {
					disp := insn.Disp()
					if !live.get(disp) {
						bb.Insns().Remove(node)
					} else {
						live.clear(disp)
					}
				} else if insn.IsCPUStateGet() {
					live.set(insn.Disp())
				}
			}
			node = prev
		}
	}
}
