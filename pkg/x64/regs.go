// Package x64 holds the x86-64 side of the machine IR: hard registers,
// opcodes with operand metadata, the concrete instruction type and the
// host-specific optimization passes. Guest context loads and stores use a
// dedicated base register pointing at the guest CPU state.
package x64

import "github.com/ternjit/tern/pkg/machir"

// Hard register numbers. Allocatable registers come first so the register
// allocator can use the number as a preference order.
const (
	RegR8 machir.Reg = iota + 1
	RegR9
	RegR10
	RegR11
	RegRSI
	RegRDI
	RegRAX
	RegRBX
	RegRCX
	RegRDX
	RegRBP
	RegRSP
	RegR12
	RegR13
	RegR14
	RegR15
)

const (
	RegFLAGS machir.Reg = iota + 19
	RegXMM0
	RegXMM1
	RegXMM2
	RegXMM3
	RegXMM4
	RegXMM5
	RegXMM6
	RegXMM7
	RegXMM8
	RegXMM9
	RegXMM10
	RegXMM11
	RegXMM12
	RegXMM13
	RegXMM14
	RegXMM15
)

// CPUStatePointer is the register that holds the guest CPU state address
// for the whole region; context loads and stores use it as base.
const CPUStatePointer = RegRBP

// IsGReg reports whether r is a general purpose hard register.
func IsGReg(r machir.Reg) bool { return r >= RegR8 && r <= RegR15 }

// IsXReg reports whether r is an XMM hard register.
func IsXReg(r machir.Reg) bool { return r >= RegXMM0 && r <= RegXMM15 }

var hardRegNames = map[machir.Reg]string{
	RegR8: "r8", RegR9: "r9", RegR10: "r10", RegR11: "r11",
	RegRSI: "rsi", RegRDI: "rdi", RegRAX: "rax", RegRBX: "rbx",
	RegRCX: "rcx", RegRDX: "rdx", RegRBP: "rbp", RegRSP: "rsp",
	RegR12: "r12", RegR13: "r13", RegR14: "r14", RegR15: "r15",
	RegFLAGS: "flags",
	RegXMM0:  "xmm0", RegXMM1: "xmm1", RegXMM2: "xmm2", RegXMM3: "xmm3",
	RegXMM4: "xmm4", RegXMM5: "xmm5", RegXMM6: "xmm6", RegXMM7: "xmm7",
	RegXMM8: "xmm8", RegXMM9: "xmm9", RegXMM10: "xmm10", RegXMM11: "xmm11",
	RegXMM12: "xmm12", RegXMM13: "xmm13", RegXMM14: "xmm14", RegXMM15: "xmm15",
}

// HardRegDebugName returns the assembly name of a hard register.
func HardRegDebugName(r machir.Reg) string {
	if name, ok := hardRegNames[r]; ok {
		return name
	}
	return "?"
}

func init() {
	machir.SetHardRegNamer(HardRegDebugName)
}

func classMask(regs []machir.Reg) uint64 {
	var mask uint64
	for _, r := range regs {
		mask |= uint64(1) << uint(r)
	}
	return mask
}

func newRegClass(name string, regs ...machir.Reg) *machir.RegClass {
	return &machir.RegClass{Name: name, Mask: classMask(regs), Regs: regs}
}

// Register classes in allocation preference order. Callee-clobbered
// registers come first so short-lived values avoid save/restore traffic.
var (
	GeneralReg64 = newRegClass("r64",
		RegR8, RegR9, RegR10, RegR11, RegRSI, RegRDI, RegRAX, RegRBX,
		RegRCX, RegRDX, RegR12, RegR13, RegR14, RegR15)
	XmmReg = newRegClass("x128",
		RegXMM0, RegXMM1, RegXMM2, RegXMM3, RegXMM4, RegXMM5, RegXMM6,
		RegXMM7, RegXMM8, RegXMM9, RegXMM10, RegXMM11, RegXMM12,
		RegXMM13, RegXMM14, RegXMM15)
	FlagsReg = newRegClass("flags", RegFLAGS)
)
