package machir

import (
	"fmt"

	"github.com/ternjit/tern/pkg/guest"
)

// Opcode tags an instruction. Architecture-neutral pseudo opcodes are
// defined here; host instruction sets number their opcodes starting at
// FirstArchOpcode.
type Opcode int32

const (
	OpUndefined Opcode = iota
	OpPseudoBranch
	OpPseudoCondBranch
	OpPseudoCopy
	OpPseudoDefReg
	OpPseudoIndirectJump
	OpPseudoJump
	OpPseudoReadFlags
	OpPseudoWriteFlags

	// FirstArchOpcode is the first opcode value available to an
	// architecture package.
	FirstArchOpcode Opcode = 100
)

// InsnKind classifies instructions for optimizations and register
// allocation.
type InsnKind uint8

const (
	KindDefault     InsnKind = iota
	KindSideEffects          // never dead
	KindCopy                 // removable when dst == src
)

// Insn is one machine IR instruction. Concrete instruction types embed
// InsnBase; passes inspect and rewrite them through this interface plus
// type assertions on the architecture type.
type Insn interface {
	Opcode() Opcode
	NumRegOperands() int
	RegAt(i int) Reg
	SetRegAt(i int, r Reg)
	RegKindAt(i int) RegKind
	HasSideEffects() bool
	IsCopy() bool
	RecoveryBB() *BasicBlock
	SetRecoveryBB(bb *BasicBlock)
	RecoveryPC() guest.Addr
	SetRecoveryPC(pc guest.Addr)
	DebugString() string
}

// InsnBase carries the operand state shared by every instruction: opcode,
// register operands and their kinds, and optional fault recovery info.
type InsnBase struct {
	opcode     Opcode
	regs       []Reg
	kinds      []RegKind
	kind       InsnKind
	recoveryBB *BasicBlock
	recoveryPC guest.Addr
}

// InitInsn fills in the common instruction state. regs is retained, not
// copied: concrete types pass a slice over their own operand array.
func (b *InsnBase) InitInsn(opcode Opcode, kinds []RegKind, regs []Reg, kind InsnKind) {
	if len(kinds) != len(regs) {
		panic(fmt.Sprintf("machir: %d operand kinds for %d registers", len(kinds), len(regs)))
	}
	b.opcode = opcode
	b.regs = regs
	b.kinds = kinds
	b.kind = kind
	b.recoveryPC = guest.NullAddr
}

func (b *InsnBase) Opcode() Opcode      { return b.opcode }
func (b *InsnBase) NumRegOperands() int { return len(b.regs) }

func (b *InsnBase) RegAt(i int) Reg {
	if i >= len(b.regs) {
		panic(fmt.Sprintf("machir: register operand %d out of %d", i, len(b.regs)))
	}
	return b.regs[i]
}

func (b *InsnBase) SetRegAt(i int, r Reg) {
	if i >= len(b.regs) {
		panic(fmt.Sprintf("machir: register operand %d out of %d", i, len(b.regs)))
	}
	b.regs[i] = r
}

func (b *InsnBase) RegKindAt(i int) RegKind { return b.kinds[i] }

// HasSideEffects reports whether the instruction must never be removed.
// An instruction with recovery info attached is kept alive: the fault
// handler depends on it being emitted.
func (b *InsnBase) HasSideEffects() bool {
	return b.kind == KindSideEffects || b.recoveryBB != nil || b.recoveryPC != guest.NullAddr
}

func (b *InsnBase) IsCopy() bool { return b.kind == KindCopy }

func (b *InsnBase) RecoveryBB() *BasicBlock      { return b.recoveryBB }
func (b *InsnBase) SetRecoveryBB(bb *BasicBlock) { b.recoveryBB = bb }
func (b *InsnBase) RecoveryPC() guest.Addr       { return b.recoveryPC }
func (b *InsnBase) SetRecoveryPC(pc guest.Addr)  { b.recoveryPC = pc }

// Cond is a branch condition in host flag terms.
type Cond uint8

const (
	CondEq Cond = iota
	CondNe
	CondLt
	CondLe
	CondGt
	CondGe
	CondBelow
	CondBelowEq
	CondAbove
	CondAboveEq
	CondOverflow
	CondNoOverflow
)

var condNames = [...]string{
	CondEq: "EQ", CondNe: "NE", CondLt: "LT", CondLe: "LE",
	CondGt: "GT", CondGe: "GE", CondBelow: "B", CondBelowEq: "BE",
	CondAbove: "A", CondAboveEq: "AE", CondOverflow: "O", CondNoOverflow: "NO",
}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("COND(%d)", uint8(c))
}

// Register classes used by pseudo instructions, which accept any register
// capable of holding a value of the given width.
var (
	AnyReg64  = &RegClass{Name: "any64"}
	AnyReg128 = &RegClass{Name: "any128"}
	FlagsReg  = &RegClass{Name: "flags"}
)

// PseudoBranch jumps unconditionally to another basic block.
type PseudoBranch struct {
	InsnBase
	then *BasicBlock
}

func (ir *MachineIR) NewPseudoBranch(then *BasicBlock) *PseudoBranch {
	insn := ir.branchPool.New()
	insn.InitInsn(OpPseudoBranch, nil, nil, KindSideEffects)
	insn.then = then
	return insn
}

func (p *PseudoBranch) ThenBB() *BasicBlock      { return p.then }
func (p *PseudoBranch) SetThenBB(bb *BasicBlock) { p.then = bb }

// PseudoCondBranch transfers control to one of two basic blocks depending
// on a condition computed into the flags operand.
type PseudoCondBranch struct {
	InsnBase
	operands [1]Reg
	cond     Cond
	then     *BasicBlock
	els      *BasicBlock
}

var condBranchKinds = []RegKind{{Class: FlagsReg, Access: RegUse}}

func (ir *MachineIR) NewPseudoCondBranch(cond Cond, then, els *BasicBlock, flags Reg) *PseudoCondBranch {
	insn := ir.condBranchPool.New()
	insn.operands[0] = flags
	insn.InitInsn(OpPseudoCondBranch, condBranchKinds, insn.operands[:], KindSideEffects)
	insn.cond = cond
	insn.then = then
	insn.els = els
	return insn
}

func (p *PseudoCondBranch) Cond() Cond               { return p.cond }
func (p *PseudoCondBranch) SetCond(cond Cond)        { p.cond = cond }
func (p *PseudoCondBranch) ThenBB() *BasicBlock      { return p.then }
func (p *PseudoCondBranch) ElseBB() *BasicBlock      { return p.els }
func (p *PseudoCondBranch) SetThenBB(bb *BasicBlock) { p.then = bb }
func (p *PseudoCondBranch) SetElseBB(bb *BasicBlock) { p.els = bb }

// JumpKind distinguishes what the translated region does after the jump.
type JumpKind uint8

const (
	JumpWithPendingSignalsCheck JumpKind = iota
	JumpWithoutPendingSignalsCheck
	JumpExitGeneratedCode
	JumpSyscall
)

// PseudoJump leaves the region for a guest address; the runtime dispatches
// to the translation for that address.
type PseudoJump struct {
	InsnBase
	target guest.Addr
	jkind  JumpKind
}

func (ir *MachineIR) NewPseudoJump(target guest.Addr, kind JumpKind) *PseudoJump {
	insn := ir.jumpPool.New()
	insn.InitInsn(OpPseudoJump, nil, nil, KindSideEffects)
	insn.target = target
	insn.jkind = kind
	return insn
}

func (p *PseudoJump) Target() guest.Addr { return p.target }
func (p *PseudoJump) JumpKind() JumpKind { return p.jkind }

// PseudoIndirectJump leaves the region for a guest address held in a
// register.
type PseudoIndirectJump struct {
	InsnBase
	operands [1]Reg
}

var indirectJumpKinds = []RegKind{{Class: AnyReg64, Access: RegUse}}

func (ir *MachineIR) NewPseudoIndirectJump(src Reg) *PseudoIndirectJump {
	insn := ir.indirectJumpPool.New()
	insn.operands[0] = src
	insn.InitInsn(OpPseudoIndirectJump, indirectJumpKinds, insn.operands[:], KindSideEffects)
	return insn
}

// PseudoCopy copies a value of the given byte width between registers.
// The operand register class is anything able to hold a value that wide.
type PseudoCopy struct {
	InsnBase
	operands [2]Reg
	size     int
}

var (
	copyKinds64 = []RegKind{
		{Class: AnyReg64, Access: RegDef},
		{Class: AnyReg64, Access: RegUse},
	}
	copyKinds128 = []RegKind{
		{Class: AnyReg128, Access: RegDef},
		{Class: AnyReg128, Access: RegUse},
	}
)

func (ir *MachineIR) NewPseudoCopy(dst, src Reg, size int) *PseudoCopy {
	kinds := copyKinds64
	if size > 8 {
		kinds = copyKinds128
	}
	insn := ir.copyPool.New()
	insn.operands[0] = dst
	insn.operands[1] = src
	insn.InitInsn(OpPseudoCopy, kinds, insn.operands[:], KindCopy)
	insn.size = size
	return insn
}

// Size returns the copied width in bytes.
func (p *PseudoCopy) Size() int { return p.size }

// PseudoDefReg marks a register as defined without emitting anything.
// Some instructions read-modify-write a register that the IR semantics
// treat as def-only; this keeps the data flow intact for the allocator.
type PseudoDefReg struct {
	InsnBase
	operands [1]Reg
}

var defRegKinds = []RegKind{{Class: AnyReg64, Access: RegDef}}

func (ir *MachineIR) NewPseudoDefReg(reg Reg) *PseudoDefReg {
	insn := ir.defRegPool.New()
	insn.operands[0] = reg
	insn.InitInsn(OpPseudoDefReg, defRegKinds, insn.operands[:], KindDefault)
	return insn
}

// PseudoReadFlags materializes the flags register into a general register
// in LAHF-compatible format.
type PseudoReadFlags struct {
	InsnBase
	operands     [2]Reg
	withOverflow bool
}

// Flag bits produced by PseudoReadFlags.
const (
	FlagNegative uint16 = 1 << 15
	FlagZero     uint16 = 1 << 14
	FlagCarry    uint16 = 1 << 8
	FlagOverflow uint16 = 1
)

var readFlagsKinds = []RegKind{
	{Class: AnyReg64, Access: RegDef},
	{Class: FlagsReg, Access: RegUse},
}

func (ir *MachineIR) NewPseudoReadFlags(withOverflow bool, dst, flags Reg) *PseudoReadFlags {
	insn := ir.readFlagsPool.New()
	insn.operands[0] = dst
	insn.operands[1] = flags
	insn.InitInsn(OpPseudoReadFlags, readFlagsKinds, insn.operands[:], KindDefault)
	insn.withOverflow = withOverflow
	return insn
}

func (p *PseudoReadFlags) WithOverflow() bool { return p.withOverflow }

// PseudoWriteFlags restores the flags register from a general register
// holding LAHF-compatible bits.
type PseudoWriteFlags struct {
	InsnBase
	operands [2]Reg
}

var writeFlagsKinds = []RegKind{
	{Class: AnyReg64, Access: RegUse},
	{Class: FlagsReg, Access: RegDef},
}

func (ir *MachineIR) NewPseudoWriteFlags(src, flags Reg) *PseudoWriteFlags {
	insn := ir.writeFlagsPool.New()
	insn.operands[0] = src
	insn.operands[1] = flags
	insn.InitInsn(OpPseudoWriteFlags, writeFlagsKinds, insn.operands[:], KindDefault)
	return insn
}

// IsControlTransfer reports whether insn ends a basic block.
func IsControlTransfer(insn Insn) bool {
	switch insn.Opcode() {
	case OpPseudoBranch, OpPseudoCondBranch, OpPseudoIndirectJump, OpPseudoJump:
		return true
	}
	return false
}
