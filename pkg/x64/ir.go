package x64

import (
	"fmt"

	"github.com/ternjit/tern/pkg/arena"
	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
)

// IR is a translation region of x86-64 machine IR.
type IR struct {
	*machir.MachineIR
	insnPool *arena.Pool[Insn]
}

// NewIR creates an empty x86-64 region backed by the given arena.
func NewIR(a *arena.Arena) *IR {
	return &IR{
		MachineIR: machir.NewMachineIR(a, 0),
		insnPool:  arena.NewPool[Insn](a),
	}
}

func (ir *IR) newInsn(op machir.Opcode) *Insn {
	info := InfoFor(op)
	insn := ir.insnPool.New()
	insn.InitInsn(op, info.RegKinds, insn.operands[:len(info.RegKinds)], info.Kind)
	return insn
}

// NewRegMemInsn creates a load: dst = [base+disp].
func (ir *IR) NewRegMemInsn(op machir.Opcode, dst, base machir.Reg, disp uint32) *Insn {
	insn := ir.newInsn(op)
	insn.SetRegAt(0, dst)
	insn.SetRegAt(1, base)
	insn.disp = disp
	return insn
}

// NewMemRegInsn creates a store: [base+disp] = src.
func (ir *IR) NewMemRegInsn(op machir.Opcode, base machir.Reg, disp uint32, src machir.Reg) *Insn {
	insn := ir.newInsn(op)
	insn.SetRegAt(0, base)
	insn.SetRegAt(1, src)
	insn.disp = disp
	return insn
}

// NewRegRegInsn creates a two-register instruction; for ALU opcodes the
// implicit FLAGS def operand is filled in.
func (ir *IR) NewRegRegInsn(op machir.Opcode, dst, src machir.Reg) *Insn {
	insn := ir.newInsn(op)
	insn.SetRegAt(0, dst)
	insn.SetRegAt(1, src)
	if insn.NumRegOperands() > 2 {
		insn.SetRegAt(2, RegFLAGS)
	}
	return insn
}

// NewRegImmInsn creates an immediate load: dst = imm.
func (ir *IR) NewRegImmInsn(op machir.Opcode, dst machir.Reg, imm uint64) *Insn {
	insn := ir.newInsn(op)
	insn.SetRegAt(0, dst)
	insn.imm = imm
	return insn
}

// Builder is syntax sugar for generating x86-64 machine IR in program
// order.
type Builder struct {
	machir.BuilderBase
	ir *IR
}

// NewBuilder creates a builder over the region.
func NewBuilder(ir *IR) *Builder {
	b := &Builder{ir: ir}
	b.InitBuilder(ir.MachineIR)
	return b
}

// Region returns the x86-64 region being built.
func (b *Builder) Region() *IR { return b.ir }

// GenGet loads the 8-byte guest context slot at offset into dst.
func (b *Builder) GenGet(dst machir.Reg, offset uint32) *Insn {
	insn := b.ir.NewRegMemInsn(OpMovqRegMemBaseDisp, dst, CPUStatePointer, offset)
	b.Insert(insn)
	return insn
}

// GenPut stores src to the 8-byte guest context slot at offset.
func (b *Builder) GenPut(offset uint32, src machir.Reg) *Insn {
	insn := b.ir.NewMemRegInsn(OpMovqMemBaseDispReg, CPUStatePointer, offset, src)
	b.Insert(insn)
	return insn
}

// GenGetSimd loads a guest context slot of the given size (8 or 16 bytes)
// into the vector register dst.
func (b *Builder) GenGetSimd(dst machir.Reg, offset uint32, size int) *Insn {
	var op machir.Opcode
	switch size {
	case 8:
		op = OpMovsdXRegMemBaseDisp
	case 16:
		op = OpMovdqaXRegMemBaseDisp
	default:
		panic(fmt.Sprintf("x64: unsupported simd access size %d", size))
	}
	insn := b.ir.NewRegMemInsn(op, dst, CPUStatePointer, offset)
	b.Insert(insn)
	return insn
}

// GenPutSimd stores the vector register src to a guest context slot of
// the given size (8 or 16 bytes).
func (b *Builder) GenPutSimd(offset uint32, src machir.Reg, size int) *Insn {
	var op machir.Opcode
	switch size {
	case 8:
		op = OpMovsdMemBaseDispXReg
	case 16:
		op = OpMovdqaMemBaseDispXReg
	default:
		panic(fmt.Sprintf("x64: unsupported simd access size %d", size))
	}
	insn := b.ir.NewMemRegInsn(op, CPUStatePointer, offset, src)
	b.Insert(insn)
	return insn
}

// GenMov copies src to dst.
func (b *Builder) GenMov(dst, src machir.Reg) *Insn {
	insn := b.ir.NewRegRegInsn(OpMovqRegReg, dst, src)
	b.Insert(insn)
	return insn
}

// GenMovImm loads an immediate into dst.
func (b *Builder) GenMovImm(dst machir.Reg, imm uint64) *Insn {
	insn := b.ir.NewRegImmInsn(OpMovqRegImm, dst, imm)
	b.Insert(insn)
	return insn
}

// GenAlu generates dst = dst <op> src, defining FLAGS.
func (b *Builder) GenAlu(op machir.Opcode, dst, src machir.Reg) *Insn {
	insn := b.ir.NewRegRegInsn(op, dst, src)
	b.Insert(insn)
	return insn
}

// GenCopy generates a width-aware pseudo register copy.
func (b *Builder) GenCopy(dst, src machir.Reg, size int) *machir.PseudoCopy {
	insn := b.ir.NewPseudoCopy(dst, src, size)
	b.Insert(insn)
	return insn
}

// GenJump ends the current block with an exit to a guest address.
func (b *Builder) GenJump(target guest.Addr, kind machir.JumpKind) *machir.PseudoJump {
	insn := b.ir.NewPseudoJump(target, kind)
	b.Insert(insn)
	return insn
}

// GenBranch ends the current block with an unconditional branch and links
// the edge.
func (b *Builder) GenBranch(then *machir.BasicBlock) *machir.PseudoBranch {
	insn := b.ir.NewPseudoBranch(then)
	b.Insert(insn)
	b.ir.AddEdge(b.BB(), then)
	return insn
}

// GenCondBranch ends the current block with a conditional branch and links
// both edges.
func (b *Builder) GenCondBranch(cond machir.Cond, then, els *machir.BasicBlock) *machir.PseudoCondBranch {
	insn := b.ir.NewPseudoCondBranch(cond, then, els, RegFLAGS)
	b.Insert(insn)
	b.ir.AddEdge(b.BB(), then)
	b.ir.AddEdge(b.BB(), els)
	return insn
}
