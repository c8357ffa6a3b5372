package machir

import "sort"

// ReversePostOrder returns the blocks reachable from the region entry in
// reverse post order. When the block list is already tagged as RPO it is
// returned as is.
func ReversePostOrder(ir *MachineIR) []*BasicBlock {
	if ir.order == BlockOrderReversePostOrder {
		return ir.blocks
	}
	entry := ir.EntryBlock()
	if len(entry.inEdges) != 0 {
		panic("machir: region entry block has predecessors")
	}

	visited := make([]bool, ir.NumBasicBlocks())
	result := make([]*BasicBlock, 0, len(ir.blocks))

	var visit func(bb *BasicBlock)
	visit = func(bb *BasicBlock) {
		visited[bb.id] = true
		for _, edge := range bb.outEdges {
			if !visited[edge.dst.id] {
				visit(edge.dst)
			}
		}
		result = append(result, bb)
	}
	visit(entry)

	// Reversing the post order in place spares a second list.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Loop is the set of blocks of one natural loop; the head comes first.
type Loop []*BasicBlock

// FindLoops discovers the region's natural loops from its back edges.
// Irreducible loops (whose head does not dominate the back-branching
// block) are skipped.
func FindLoops(ir *MachineIR) []Loop {
	visited := make([]bool, ir.NumBasicBlocks())
	var backEdges []*Edge

	// A successor already visited in reverse post order closes a loop.
	for _, bb := range ReversePostOrder(ir) {
		visited[bb.id] = true
		for _, edge := range bb.outEdges {
			if visited[edge.dst.id] {
				backEdges = append(backEdges, edge)
			}
		}
	}

	// Pull back edges with the same head together.
	sort.SliceStable(backEdges, func(i, j int) bool {
		return backEdges[i].dst.id < backEdges[j].dst.id
	})

	var loops []Loop
	for begin := 0; begin < len(backEdges); {
		end := begin + 1
		for end < len(backEdges) && backEdges[end].dst == backEdges[begin].dst {
			end++
		}
		if loop := collectLoop(ir, backEdges[begin:end]); loop != nil {
			loops = append(loops, loop)
		}
		begin = end
	}
	return loops
}

// collectLoop gathers the loop body for a group of back edges sharing one
// head, walking predecessors from each back-branching block up to the
// head. Returns nil for irreducible loops.
func collectLoop(ir *MachineIR, backEdges []*Edge) Loop {
	head := backEdges[0].dst
	inLoop := make([]bool, ir.NumBasicBlocks())
	loop := Loop{head}
	inLoop[head.id] = true

	push := func(bb *BasicBlock) bool {
		if inLoop[bb.id] {
			return false
		}
		loop = append(loop, bb)
		inLoop[bb.id] = true
		return true
	}

	for _, edge := range backEdges {
		if !push(edge.src) {
			// Already collected while processing another back edge.
			continue
		}
		for i := len(loop) - 1; i < len(loop); i++ {
			bb := loop[i]
			if len(bb.inEdges) == 0 {
				// Reached the region entry: the head does not
				// dominate this block, so the loop is irreducible.
				return nil
			}
			for _, inEdge := range bb.inEdges {
				push(inEdge.src)
			}
		}
	}
	return loop
}
