package machir

import (
	"fmt"

	"github.com/ternjit/tern/pkg/arena"
)

// BasicBlock is a straight-line instruction sequence with one entry and one
// exit, linked into the region's control-flow graph by explicit edges.
type BasicBlock struct {
	id         uint32
	insns      InsnList
	inEdges    []*Edge
	outEdges   []*Edge
	liveIn     []Reg
	liveOut    []Reg
	isRecovery bool
}

// ID returns the block's dense region-unique identifier.
func (bb *BasicBlock) ID() uint32 { return bb.id }

// Insns returns the block's mutable instruction list.
func (bb *BasicBlock) Insns() *InsnList { return &bb.insns }

func (bb *BasicBlock) InEdges() []*Edge  { return bb.inEdges }
func (bb *BasicBlock) OutEdges() []*Edge { return bb.outEdges }

// LiveIn returns the registers live on entry; filled by liveness analysis.
func (bb *BasicBlock) LiveIn() []Reg         { return bb.liveIn }
func (bb *BasicBlock) SetLiveIn(regs []Reg)  { bb.liveIn = regs }
func (bb *BasicBlock) AddLiveIn(r Reg)       { bb.liveIn = append(bb.liveIn, r) }
func (bb *BasicBlock) LiveOut() []Reg        { return bb.liveOut }
func (bb *BasicBlock) SetLiveOut(regs []Reg) { bb.liveOut = regs }
func (bb *BasicBlock) AddLiveOut(r Reg)      { bb.liveOut = append(bb.liveOut, r) }

// MarkAsRecovery tags the block as a fault recovery target. Recovery
// blocks are cold and are moved out of the main block chain late in the
// pipeline.
func (bb *BasicBlock) MarkAsRecovery()  { bb.isRecovery = true }
func (bb *BasicBlock) IsRecovery() bool { return bb.isRecovery }

// Edge connects two basic blocks. It owns an instruction list of its own
// so codegen can place fix-up code on a specific control transfer after
// edge splitting.
type Edge struct {
	src, dst *BasicBlock
	insns    InsnList
}

func (e *Edge) Src() *BasicBlock      { return e.src }
func (e *Edge) Dst() *BasicBlock      { return e.dst }
func (e *Edge) SetSrc(bb *BasicBlock) { e.src = bb }
func (e *Edge) SetDst(bb *BasicBlock) { e.dst = bb }
func (e *Edge) Insns() *InsnList      { return &e.insns }

// BlockOrder records which ordering invariant the block list currently
// satisfies.
type BlockOrder uint8

const (
	BlockOrderUnordered BlockOrder = iota
	BlockOrderReversePostOrder
)

// MachineIR is the per-translation-unit container: it owns the arena all
// nodes are allocated from, the basic block list, and the virtual register
// and stack slot counters.
//
// The stack frame layout is
//
//	[arg slots][spill slots]
//	^--- stack pointer
//
// Arg slots sit at fixed offsets from the stack pointer for call arguments
// passed in memory; spill slots hold spilled registers. Every slot is 16
// bytes and the stack pointer stays 16-byte aligned.
type MachineIR struct {
	arena         *arena.Arena
	numBB         uint32
	numVReg       uint32
	numArgSlots   uint32
	numSpillSlots uint32
	blocks        []*BasicBlock
	order         BlockOrder

	blockPool        *arena.Pool[BasicBlock]
	edgePool         *arena.Pool[Edge]
	branchPool       *arena.Pool[PseudoBranch]
	condBranchPool   *arena.Pool[PseudoCondBranch]
	jumpPool         *arena.Pool[PseudoJump]
	indirectJumpPool *arena.Pool[PseudoIndirectJump]
	copyPool         *arena.Pool[PseudoCopy]
	defRegPool       *arena.Pool[PseudoDefReg]
	readFlagsPool    *arena.Pool[PseudoReadFlags]
	writeFlagsPool   *arena.Pool[PseudoWriteFlags]
}

// NewMachineIR creates an empty region backed by the given arena. The
// first numVReg virtual register numbers are reserved for the caller;
// AllocVReg hands out numbers above them.
func NewMachineIR(a *arena.Arena, numVReg uint32) *MachineIR {
	return &MachineIR{
		arena:            a,
		numVReg:          numVReg,
		blockPool:        arena.NewPool[BasicBlock](a),
		edgePool:         arena.NewPool[Edge](a),
		branchPool:       arena.NewPool[PseudoBranch](a),
		condBranchPool:   arena.NewPool[PseudoCondBranch](a),
		jumpPool:         arena.NewPool[PseudoJump](a),
		indirectJumpPool: arena.NewPool[PseudoIndirectJump](a),
		copyPool:         arena.NewPool[PseudoCopy](a),
		defRegPool:       arena.NewPool[PseudoDefReg](a),
		readFlagsPool:    arena.NewPool[PseudoReadFlags](a),
		writeFlagsPool:   arena.NewPool[PseudoWriteFlags](a),
	}
}

// Arena returns the arena backing this region.
func (ir *MachineIR) Arena() *arena.Arena { return ir.arena }

// NumVReg returns the number of virtual registers allocated so far.
func (ir *MachineIR) NumVReg() int { return int(ir.numVReg) }

// AllocVReg returns a fresh virtual register.
func (ir *MachineIR) AllocVReg() Reg {
	r := CreateVRegFromIndex(ir.numVReg)
	ir.numVReg++
	return r
}

// NumBasicBlocks returns the number of reserved basic block IDs. This may
// exceed len(Blocks()): analysis structures indexed by block ID must be
// sized by this value, not by the list length.
func (ir *MachineIR) NumBasicBlocks() int { return int(ir.numBB) }

// ReserveBasicBlockID hands out the next dense block ID.
func (ir *MachineIR) ReserveBasicBlockID() uint32 {
	id := ir.numBB
	ir.numBB++
	return id
}

// ReserveArgs grows the fixed argument area to at least size bytes.
func (ir *MachineIR) ReserveArgs(size uint32) {
	slots := (size + 15) / 16
	if ir.numArgSlots < slots {
		ir.numArgSlots = slots
	}
}

// AllocSpill reserves one spill slot and returns its index.
func (ir *MachineIR) AllocSpill() uint32 {
	slot := ir.numSpillSlots
	ir.numSpillSlots++
	return slot
}

// SpillSlotOffset returns the stack pointer offset of a spill slot.
func (ir *MachineIR) SpillSlotOffset(slot uint32) uint32 {
	return 16 * (ir.numArgSlots + slot)
}

// FrameSize returns the total stack frame size in bytes.
func (ir *MachineIR) FrameSize() uint32 {
	return 16 * (ir.numArgSlots + ir.numSpillSlots)
}

// Blocks returns the region's basic blocks in their current order. The
// first block is the region entry.
func (ir *MachineIR) Blocks() []*BasicBlock { return ir.blocks }

// SetBlocks replaces the block list; the caller states the order the new
// list satisfies.
func (ir *MachineIR) SetBlocks(blocks []*BasicBlock, order BlockOrder) {
	ir.blocks = blocks
	ir.order = order
}

// AppendBlock enrolls bb at the end of the block list.
func (ir *MachineIR) AppendBlock(bb *BasicBlock) {
	ir.blocks = append(ir.blocks, bb)
}

// BlockOrder returns the ordering invariant the block list satisfies.
func (ir *MachineIR) BlockOrder() BlockOrder { return ir.order }

// NewBasicBlock allocates a block with a fresh ID. The block is not
// enrolled in the block list; builders do that when they start filling it.
func (ir *MachineIR) NewBasicBlock() *BasicBlock {
	bb := ir.blockPool.New()
	bb.id = ir.ReserveBasicBlockID()
	return bb
}

// AddEdge links src to dst and invalidates any recorded block order.
func (ir *MachineIR) AddEdge(src, dst *BasicBlock) *Edge {
	edge := ir.edgePool.New()
	edge.src = src
	edge.dst = dst
	src.outEdges = append(src.outEdges, edge)
	dst.inEdges = append(dst.inEdges, edge)
	ir.order = BlockOrderUnordered
	return edge
}

// SplitBasicBlock moves the instructions from position at through the end
// of bb into a new block, terminates bb with a branch to it, and relinks
// bb's out-edges. Positions of moved instructions stay valid.
func (ir *MachineIR) SplitBasicBlock(bb *BasicBlock, at *InsnNode) *BasicBlock {
	newBB := ir.NewBasicBlock()

	bb.insns.SpliceTailInto(at, &newBB.insns)
	bb.insns.PushBack(ir.NewPseudoBranch(newBB))

	for _, outEdge := range bb.outEdges {
		outEdge.src = newBB
	}
	newBB.outEdges, bb.outEdges = bb.outEdges, nil

	ir.AddEdge(bb, newBB)
	ir.blocks = append(ir.blocks, newBB)
	return newBB
}

// EntryBlock returns the region entry. The region must be non-empty.
func (ir *MachineIR) EntryBlock() *BasicBlock {
	if len(ir.blocks) == 0 {
		panic("machir: empty region has no entry block")
	}
	return ir.blocks[0]
}

// NumInsns counts the instructions in all enrolled blocks.
func (ir *MachineIR) NumInsns() int {
	n := 0
	for _, bb := range ir.blocks {
		n += bb.insns.Len()
	}
	return n
}

// BuilderBase keeps the insertion state shared by architecture builders:
// the region being built and the block under construction.
type BuilderBase struct {
	ir *MachineIR
	bb *BasicBlock
}

// InitBuilder attaches the builder to a region.
func (b *BuilderBase) InitBuilder(ir *MachineIR) { b.ir = ir }

// IR returns the region being built.
func (b *BuilderBase) IR() *MachineIR { return b.ir }

// BB returns the block under construction.
func (b *BuilderBase) BB() *BasicBlock { return b.bb }

// StartBasicBlock enrolls bb in the region and makes it the insertion
// point. The block must still be empty.
func (b *BuilderBase) StartBasicBlock(bb *BasicBlock) {
	if !bb.insns.Empty() {
		panic(fmt.Sprintf("machir: starting non-empty basic block %d", bb.id))
	}
	b.ir.AppendBlock(bb)
	b.bb = bb
}

// Insert appends insn to the current block and returns its position.
func (b *BuilderBase) Insert(insn Insn) *InsnNode {
	return b.bb.insns.PushBack(insn)
}

// SetRecoveryPointAtLastInsn attaches a recovery block to the last
// generated instruction and marks that block cold.
func (b *BuilderBase) SetRecoveryPointAtLastInsn(recoveryBB *BasicBlock) {
	b.bb.insns.Back().SetRecoveryBB(recoveryBB)
	recoveryBB.MarkAsRecovery()
}

// LastInsnPosition returns the position of the most recently generated
// instruction, or nil when the current block is still empty.
func (b *BuilderBase) LastInsnPosition() *InsnNode {
	return b.bb.insns.Last()
}
