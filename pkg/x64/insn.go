package x64

import (
	"fmt"

	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
)

// x86-64 opcodes. Memory opcodes are named by operand order: RegMemBaseDisp
// loads into a register from [base+disp], MemBaseDispReg stores a register
// to [base+disp].
const (
	OpMovqRegMemBaseDisp machir.Opcode = machir.FirstArchOpcode + iota
	OpMovqMemBaseDispReg
	OpMovwRegMemBaseDisp
	OpMovwMemBaseDispReg
	OpMovsdXRegMemBaseDisp
	OpMovsdMemBaseDispXReg
	OpMovdqaXRegMemBaseDisp
	OpMovdqaMemBaseDispXReg
	OpMovqRegReg
	OpMovqRegImm
	OpAddqRegReg
	OpSubqRegReg
	OpXorqRegReg
	OpCmpqRegReg
)

// MemOperandScale is the index scaling factor of a memory operand.
type MemOperandScale uint8

const (
	ScaleOne MemOperandScale = iota
	ScaleTwo
	ScaleFour
	ScaleEight
)

// InsnInfo is the static description of one opcode: its operand count,
// per-operand register kinds and instruction kind.
type InsnInfo struct {
	Name     string
	RegKinds []machir.RegKind
	Kind     machir.InsnKind
}

var (
	kindsLoadG = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegDef},
		{Class: GeneralReg64, Access: machir.RegUse},
	}
	kindsStoreG = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegUse},
		{Class: GeneralReg64, Access: machir.RegUse},
	}
	kindsLoadX = []machir.RegKind{
		{Class: XmmReg, Access: machir.RegDef},
		{Class: GeneralReg64, Access: machir.RegUse},
	}
	kindsStoreX = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegUse},
		{Class: XmmReg, Access: machir.RegUse},
	}
	kindsMovRegReg = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegDef},
		{Class: GeneralReg64, Access: machir.RegUse},
	}
	kindsMovRegImm = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegDef},
	}
	kindsAlu = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegUseDef},
		{Class: GeneralReg64, Access: machir.RegUse},
		{Class: FlagsReg, Access: machir.RegDef},
	}
	kindsCmp = []machir.RegKind{
		{Class: GeneralReg64, Access: machir.RegUse},
		{Class: GeneralReg64, Access: machir.RegUse},
		{Class: FlagsReg, Access: machir.RegDef},
	}
)

var insnInfos = [...]InsnInfo{
	OpMovqRegMemBaseDisp - machir.FirstArchOpcode:    {Name: "MOVQ_REG_MEM", RegKinds: kindsLoadG},
	OpMovqMemBaseDispReg - machir.FirstArchOpcode:    {Name: "MOVQ_MEM_REG", RegKinds: kindsStoreG, Kind: machir.KindSideEffects},
	OpMovwRegMemBaseDisp - machir.FirstArchOpcode:    {Name: "MOVW_REG_MEM", RegKinds: kindsLoadG},
	OpMovwMemBaseDispReg - machir.FirstArchOpcode:    {Name: "MOVW_MEM_REG", RegKinds: kindsStoreG, Kind: machir.KindSideEffects},
	OpMovsdXRegMemBaseDisp - machir.FirstArchOpcode:  {Name: "MOVSD_XREG_MEM", RegKinds: kindsLoadX},
	OpMovsdMemBaseDispXReg - machir.FirstArchOpcode:  {Name: "MOVSD_MEM_XREG", RegKinds: kindsStoreX, Kind: machir.KindSideEffects},
	OpMovdqaXRegMemBaseDisp - machir.FirstArchOpcode: {Name: "MOVDQA_XREG_MEM", RegKinds: kindsLoadX},
	OpMovdqaMemBaseDispXReg - machir.FirstArchOpcode: {Name: "MOVDQA_MEM_XREG", RegKinds: kindsStoreX, Kind: machir.KindSideEffects},
	OpMovqRegReg - machir.FirstArchOpcode:            {Name: "MOVQ_REG_REG", RegKinds: kindsMovRegReg, Kind: machir.KindCopy},
	OpMovqRegImm - machir.FirstArchOpcode:            {Name: "MOVQ_REG_IMM", RegKinds: kindsMovRegImm},
	OpAddqRegReg - machir.FirstArchOpcode:            {Name: "ADDQ_REG_REG", RegKinds: kindsAlu},
	OpSubqRegReg - machir.FirstArchOpcode:            {Name: "SUBQ_REG_REG", RegKinds: kindsAlu},
	OpXorqRegReg - machir.FirstArchOpcode:            {Name: "XORQ_REG_REG", RegKinds: kindsAlu},
	OpCmpqRegReg - machir.FirstArchOpcode:            {Name: "CMPQ_REG_REG", RegKinds: kindsCmp},
}

// InfoFor returns the static description of an x86-64 opcode.
func InfoFor(op machir.Opcode) *InsnInfo {
	i := int(op - machir.FirstArchOpcode)
	if i < 0 || i >= len(insnInfos) || insnInfos[i].Name == "" {
		panic(fmt.Sprintf("x64: unknown opcode %d", op))
	}
	return &insnInfos[i]
}

const maxRegOperands = 3

// Insn is one x86-64 instruction. All opcodes share the one concrete
// type; the opcode's InsnInfo describes how the operand slots are used.
type Insn struct {
	machir.InsnBase
	operands [maxRegOperands]machir.Reg
	scale    MemOperandScale
	disp     uint32
	imm      uint64
	cond     machir.Cond
}

// Disp returns the byte displacement of a memory operand.
func (i *Insn) Disp() uint32 { return i.disp }

// Imm returns the immediate operand.
func (i *Insn) Imm() uint64 { return i.imm }

// Scale returns the index scaling of a memory operand.
func (i *Insn) Scale() MemOperandScale { return i.scale }

// Cond returns the condition code operand.
func (i *Insn) Cond() machir.Cond { return i.cond }

// IsCPUStateGet reports whether the instruction loads a guest CPU state
// slot into a register: a recognized load opcode whose base is the CPU
// state pointer with a displacement inside the state. The reservation
// fields are exempt; the atomics fast path accesses them partially, which
// the context optimizer does not model.
func (i *Insn) IsCPUStateGet() bool {
	switch i.Opcode() {
	case OpMovqRegMemBaseDisp, OpMovwRegMemBaseDisp,
		OpMovsdXRegMemBaseDisp, OpMovdqaXRegMemBaseDisp:
	default:
		return false
	}
	if i.disp >= guest.StateSize || guest.InReservation(i.disp) {
		return false
	}
	return i.RegAt(1) == CPUStatePointer
}

// IsCPUStatePut reports whether the instruction stores a register to a
// guest CPU state slot. Same exemptions as IsCPUStateGet.
func (i *Insn) IsCPUStatePut() bool {
	switch i.Opcode() {
	case OpMovqMemBaseDispReg, OpMovwMemBaseDispReg,
		OpMovsdMemBaseDispXReg, OpMovdqaMemBaseDispXReg:
	default:
		return false
	}
	if i.disp >= guest.StateSize || guest.InReservation(i.disp) {
		return false
	}
	return i.RegAt(0) == CPUStatePointer
}

// AsInsn returns insn as an x86-64 instruction, or nil when it is a
// pseudo instruction.
func AsInsn(insn machir.Insn) *Insn {
	i, _ := insn.(*Insn)
	return i
}

func (i *Insn) DebugString() string {
	info := InfoFor(i.Opcode())
	out := info.Name
	sep := " "
	for op := 0; op < i.NumRegOperands(); op++ {
		out += sep + machir.RegOperandDebugString(i, op)
		sep = ", "
	}
	switch i.Opcode() {
	case OpMovqRegMemBaseDisp, OpMovwRegMemBaseDisp,
		OpMovsdXRegMemBaseDisp, OpMovdqaXRegMemBaseDisp,
		OpMovqMemBaseDispReg, OpMovwMemBaseDispReg,
		OpMovsdMemBaseDispXReg, OpMovdqaMemBaseDispXReg:
		out += fmt.Sprintf("%sdisp=%d", sep, i.disp)
	case OpMovqRegImm:
		out += fmt.Sprintf("%s%#x", sep, i.imm)
	}
	return out
}
