// Package machir defines the machine intermediate representation: registers,
// instructions, basic blocks and the per-region container the backend
// optimization passes rewrite before encoding. The representation is
// architecture-neutral; host-specific opcodes and passes live in pkg/x64.
package machir

import (
	"fmt"
	"math"
)

// Reg is a machine instruction operand meaningful for optimizations and
// register allocation. The class is encoded in the numeric range:
//
//	virtual register:  [1024, +inf)
//	hard register:     [1, 1024)
//	invalid/undefined: 0
//	(reserved):        (-1024, -1]
//	spilled register:  (-inf, -1024]
//
// Registers are the hottest values in the IR, so classification must stay a
// single range comparison on one word.
type Reg int32

const (
	firstVRegNumber      = 1024
	invalidRegNumber     = 0
	lastSpilledRegNumber = -1024
	maxVRegIndex         = math.MaxInt32 - firstVRegNumber
	maxSpilledRegIndex   = lastSpilledRegNumber - math.MinInt32
)

// InvalidReg is the default, not-a-register value.
const InvalidReg Reg = invalidRegNumber

// IsVReg reports whether r is a virtual register.
func (r Reg) IsVReg() bool { return r >= firstVRegNumber }

// IsHardReg reports whether r directly names a host physical register.
func (r Reg) IsHardReg() bool { return r > invalidRegNumber && r < firstVRegNumber }

// IsSpilledReg reports whether r names a spill slot.
func (r Reg) IsSpilledReg() bool { return r <= lastSpilledRegNumber }

// VRegIndex returns the zero-based index of a virtual register.
// It panics if r is not a virtual register.
func (r Reg) VRegIndex() uint32 {
	if !r.IsVReg() {
		panic(fmt.Sprintf("machir: VRegIndex on non-virtual register %d", int32(r)))
	}
	return uint32(r - firstVRegNumber)
}

// SpilledRegIndex returns the zero-based spill slot index.
// It panics if r is not a spilled register.
func (r Reg) SpilledRegIndex() uint32 {
	if !r.IsSpilledReg() {
		panic(fmt.Sprintf("machir: SpilledRegIndex on non-spilled register %d", int32(r)))
	}
	return uint32(lastSpilledRegNumber - r)
}

// CreateVRegFromIndex returns the virtual register with the given zero-based
// index. It panics if the index does not fit the encoding range; silently
// wrapping would corrupt the register namespace.
func CreateVRegFromIndex(index uint32) Reg {
	if index > maxVRegIndex {
		panic(fmt.Sprintf("machir: virtual register index %d overflows encoding", index))
	}
	return Reg(firstVRegNumber + int32(index))
}

// CreateSpilledRegFromIndex returns the spilled register with the given
// zero-based spill slot index. It panics if the index does not fit the
// encoding range.
func CreateSpilledRegFromIndex(index uint32) Reg {
	if index > maxSpilledRegIndex {
		panic(fmt.Sprintf("machir: spilled register index %d overflows encoding", index))
	}
	return Reg(lastSpilledRegNumber - int32(index))
}

// RegClass is a set of hard registers ordered by allocation preference.
type RegClass struct {
	Name string
	Mask uint64
	Regs []Reg
}

// HasReg reports whether the hard register r belongs to the class.
func (c *RegClass) HasReg(r Reg) bool { return c.Mask&(uint64(1)<<uint(r)) != 0 }

// IsSubsetOf reports whether every register of c is also in other.
func (c *RegClass) IsSubsetOf(other *RegClass) bool {
	return c.Mask&other.Mask == c.Mask
}

// Intersect returns the smaller class when one is a subset of the other and
// nil otherwise. Register classes form a tree in practice, so this covers
// the cases the allocator meets.
func (c *RegClass) Intersect(other *RegClass) *RegClass {
	mask := c.Mask & other.Mask
	if mask == c.Mask {
		return c
	}
	if mask == other.Mask {
		return other
	}
	return nil
}

const (
	regIsUsed    = 0x01
	regIsDefined = 0x02
	regIsInput   = 0x04
)

// RegAccess describes how an instruction treats one register operand.
type RegAccess uint8

const (
	// RegUse operands are read and must hold a valid value.
	RegUse RegAccess = regIsUsed | regIsInput
	// RegDef operands are written.
	RegDef RegAccess = regIsDefined
	// RegUseDef operands are read and then written.
	RegUseDef RegAccess = RegUse | RegDef
	// RegDefEarlyClobber operands are written before all inputs are
	// consumed; they occupy a register early but carry no input value.
	RegDefEarlyClobber RegAccess = regIsUsed | regIsDefined
)

// RegKind pairs a register class with an access mode; instructions describe
// each operand position with one.
type RegKind struct {
	Class  *RegClass
	Access RegAccess
}

// IsUse reports whether the operand occupies its register as a source.
func (k RegKind) IsUse() bool { return k.Access&regIsUsed != 0 }

// IsDef reports whether the operand is written.
func (k RegKind) IsDef() bool { return k.Access&regIsDefined != 0 }

// IsInput reports whether the operand must carry a valid value on entry.
// This distinguishes RegUseDef from RegDefEarlyClobber.
func (k RegKind) IsInput() bool { return k.Access&regIsInput != 0 }
