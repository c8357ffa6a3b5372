package machir

import (
	"fmt"
	"strings"
)

// hardRegNamer renders hard register names. The architecture package
// installs its own names; the fallback is the raw encoding.
var hardRegNamer = func(r Reg) string { return fmt.Sprintf("r%d", int32(r)) }

// SetHardRegNamer installs the architecture's hard register names for
// debug output.
func SetHardRegNamer(namer func(Reg) string) { hardRegNamer = namer }

// RegDebugString renders a register for debug output: hard registers by
// name, virtual registers as v<i>, spilled registers as s<i>.
func RegDebugString(r Reg) string {
	switch {
	case r.IsHardReg():
		return hardRegNamer(r)
	case r.IsVReg():
		return fmt.Sprintf("v%d", r.VRegIndex())
	case r.IsSpilledReg():
		return fmt.Sprintf("s%d", r.SpilledRegIndex())
	}
	return "?"
}

// RegOperandDebugString renders operand i of insn, prefixing virtual
// registers with their register class name.
func RegOperandDebugString(insn Insn, i int) string {
	r := insn.RegAt(i)
	var sb strings.Builder
	if r.IsVReg() {
		if class := insn.RegKindAt(i).Class; class != nil {
			sb.WriteString(class.Name)
			sb.WriteString(" ")
		}
	}
	sb.WriteString(RegDebugString(r))
	return sb.String()
}

// DebugString renders the block header, live sets, incoming edges and
// instructions as indented text.
func (bb *BasicBlock) DebugString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%2d BasicBlock live_in=[", bb.id)
	for i, r := range bb.liveIn {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(RegDebugString(r))
	}
	sb.WriteString("] live_out=[")
	for i, r := range bb.liveOut {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(RegDebugString(r))
	}
	sb.WriteString("]\n")

	for _, edge := range bb.inEdges {
		fmt.Fprintf(&sb, "    Edge %d -> %d [\n", edge.src.id, edge.dst.id)
		writeInsnList(&sb, "      ", &edge.insns)
		sb.WriteString("    ]\n")
	}

	writeInsnList(&sb, "    ", &bb.insns)
	return sb.String()
}

func writeInsnList(sb *strings.Builder, indent string, insns *InsnList) {
	for n := insns.First(); n != nil; n = n.Next() {
		sb.WriteString(indent)
		sb.WriteString(n.Insn().DebugString())
		sb.WriteString("\n")
	}
}

// DebugString renders the whole region as text.
func (ir *MachineIR) DebugString() string {
	var sb strings.Builder
	for _, bb := range ir.blocks {
		sb.WriteString(bb.DebugString())
	}
	return sb.String()
}

// DotString renders the control-flow graph in Graphviz dot format.
func (ir *MachineIR) DotString() string {
	var sb strings.Builder
	sb.WriteString("digraph MachineIR {\n")
	for _, bb := range ir.blocks {
		for _, inEdge := range bb.inEdges {
			fmt.Fprintf(&sb, "BB%d->BB%d;\n", inEdge.src.id, bb.id)
		}

		// "\l" newlines keep instructions left-justified in the node.
		fmt.Fprintf(&sb, "BB%d [shape=box,label=\"BB%d\\l", bb.id, bb.id)
		for n := bb.insns.First(); n != nil; n = n.Next() {
			sb.WriteString(n.Insn().DebugString())
			sb.WriteString("\\l")
		}
		sb.WriteString("\"];\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (p *PseudoBranch) DebugString() string {
	return fmt.Sprintf("PSEUDO_BRANCH %d", p.then.id)
}

func (p *PseudoCondBranch) DebugString() string {
	return fmt.Sprintf("PSEUDO_COND_BRANCH %s, %d, %d, (%s)",
		p.cond, p.then.id, p.els.id, RegOperandDebugString(p, 0))
}

func (p *PseudoJump) DebugString() string {
	var suffix string
	switch p.jkind {
	case JumpWithPendingSignalsCheck:
		suffix = "_SIG_CHECK"
	case JumpWithoutPendingSignalsCheck:
		suffix = ""
	case JumpExitGeneratedCode:
		suffix = "_EXIT_GEN_CODE"
	case JumpSyscall:
		suffix = "_TO_SYSCALL"
	}
	return fmt.Sprintf("PSEUDO_JUMP%s 0x%x", suffix, uint64(p.target))
}

func (p *PseudoIndirectJump) DebugString() string {
	return "PSEUDO_INDIRECT_JUMP " + RegDebugString(p.operands[0])
}

func (p *PseudoCopy) DebugString() string {
	return fmt.Sprintf("PSEUDO_COPY %s, %s",
		RegOperandDebugString(p, 0), RegOperandDebugString(p, 1))
}

func (p *PseudoDefReg) DebugString() string {
	return "PSEUDO_DEF " + RegOperandDebugString(p, 0)
}

func (p *PseudoReadFlags) DebugString() string {
	skip := ""
	if !p.withOverflow {
		skip = "(skip overflow) "
	}
	return fmt.Sprintf("PSEUDO_READ_FLAGS %s%s, %s",
		skip, RegOperandDebugString(p, 0), RegOperandDebugString(p, 1))
}

func (p *PseudoWriteFlags) DebugString() string {
	return fmt.Sprintf("PSEUDO_WRITE_FLAGS %s, %s",
		RegOperandDebugString(p, 0), RegOperandDebugString(p, 1))
}
