// Package region reads translation regions from a YAML description and
// builds the corresponding x86-64 machine IR. The format exists for the
// developer CLI and for pipeline tests: it names basic blocks by label and
// writes instructions the way the IR printer does, so dumps and inputs
// stay close to each other.
package region

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternjit/tern/pkg/arena"
	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
	"github.com/ternjit/tern/pkg/x64"
)

// Desc is a whole region description.
type Desc struct {
	Name   string      `yaml:"name"`
	Blocks []BlockDesc `yaml:"blocks"`
}

// BlockDesc is one labeled basic block.
type BlockDesc struct {
	Label    string     `yaml:"label"`
	Recovery bool       `yaml:"recovery,omitempty"`
	Insns    []InsnDesc `yaml:"insns"`
}

// InsnDesc is one instruction. Which fields apply depends on Op; unused
// fields stay empty in YAML.
type InsnDesc struct {
	Op     string `yaml:"op"`
	Reg    string `yaml:"reg,omitempty"`
	Dst    string `yaml:"dst,omitempty"`
	Src    string `yaml:"src,omitempty"`
	Offset string `yaml:"offset,omitempty"`
	Size   int    `yaml:"size,omitempty"`
	Imm    uint64 `yaml:"imm,omitempty"`
	Cond   string `yaml:"cond,omitempty"`
	Target string `yaml:"target,omitempty"`
	Then   string `yaml:"then,omitempty"`
	Else   string `yaml:"else,omitempty"`
}

// Load reads and builds a region from a YAML file.
func Load(path string, a *arena.Arena) (*x64.IR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	return Build(data, a)
}

// Build parses a YAML region description and constructs its IR.
func Build(data []byte, a *arena.Arena) (*x64.IR, error) {
	var desc Desc
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("region: parsing description: %w", err)
	}
	return desc.Build(a)
}

// Build constructs the IR for the description.
func (d *Desc) Build(a *arena.Arena) (*x64.IR, error) {
	if len(d.Blocks) == 0 {
		return nil, fmt.Errorf("region %q: no basic blocks", d.Name)
	}

	ir := x64.NewIR(a)
	b := x64.NewBuilder(ir)

	// Blocks first, so branches can name any label.
	bld := &builder{
		ir:     ir,
		b:      b,
		blocks: make(map[string]*machir.BasicBlock, len(d.Blocks)),
		vregs:  make(map[string]machir.Reg),
	}
	for _, blockDesc := range d.Blocks {
		if blockDesc.Label == "" {
			return nil, fmt.Errorf("region %q: basic block without a label", d.Name)
		}
		if _, ok := bld.blocks[blockDesc.Label]; ok {
			return nil, fmt.Errorf("region %q: duplicate block label %q", d.Name, blockDesc.Label)
		}
		bb := ir.NewBasicBlock()
		if blockDesc.Recovery {
			bb.MarkAsRecovery()
		}
		bld.blocks[blockDesc.Label] = bb
	}

	for _, blockDesc := range d.Blocks {
		b.StartBasicBlock(bld.blocks[blockDesc.Label])
		for i, insnDesc := range blockDesc.Insns {
			if err := bld.addInsn(insnDesc); err != nil {
				return nil, fmt.Errorf("region %q: block %q insn %d: %w", d.Name, blockDesc.Label, i, err)
			}
		}
	}

	if status := machir.Check(ir.MachineIR); status != machir.CheckSuccess {
		return nil, fmt.Errorf("region %q: malformed control flow: %s", d.Name, status)
	}
	return ir, nil
}

type builder struct {
	ir     *x64.IR
	b      *x64.Builder
	blocks map[string]*machir.BasicBlock
	vregs  map[string]machir.Reg
}

func (bld *builder) addInsn(desc InsnDesc) error {
	switch desc.Op {
	case "get":
		offset, err := parseOffset(desc.Offset)
		if err != nil {
			return err
		}
		bld.b.GenGet(bld.vreg(desc.Reg), offset)
	case "put":
		offset, err := parseOffset(desc.Offset)
		if err != nil {
			return err
		}
		bld.b.GenPut(offset, bld.vreg(desc.Reg))
	case "get_simd":
		offset, err := parseOffset(desc.Offset)
		if err != nil {
			return err
		}
		size, err := simdSize(desc.Size)
		if err != nil {
			return err
		}
		bld.b.GenGetSimd(bld.vreg(desc.Reg), offset, size)
	case "put_simd":
		offset, err := parseOffset(desc.Offset)
		if err != nil {
			return err
		}
		size, err := simdSize(desc.Size)
		if err != nil {
			return err
		}
		bld.b.GenPutSimd(offset, bld.vreg(desc.Reg), size)
	case "mov":
		bld.b.GenMov(bld.vreg(desc.Dst), bld.vreg(desc.Src))
	case "movimm":
		bld.b.GenMovImm(bld.vreg(desc.Dst), desc.Imm)
	case "add", "sub", "xor", "cmp":
		bld.b.GenAlu(aluOpcodes[desc.Op], bld.vreg(desc.Dst), bld.vreg(desc.Src))
	case "branch":
		then, err := bld.block(desc.Target)
		if err != nil {
			return err
		}
		bld.b.GenBranch(then)
	case "cond_branch":
		cond, err := parseCond(desc.Cond)
		if err != nil {
			return err
		}
		then, err := bld.block(desc.Then)
		if err != nil {
			return err
		}
		els, err := bld.block(desc.Else)
		if err != nil {
			return err
		}
		bld.b.GenCondBranch(cond, then, els)
	case "jump":
		target, err := parseAddr(desc.Target)
		if err != nil {
			return err
		}
		bld.b.GenJump(target, machir.JumpWithPendingSignalsCheck)
	default:
		return fmt.Errorf("unknown op %q", desc.Op)
	}
	return nil
}

// vreg resolves a named virtual register, allocating it on first use.
func (bld *builder) vreg(name string) machir.Reg {
	if r, ok := bld.vregs[name]; ok {
		return r
	}
	r := bld.ir.AllocVReg()
	bld.vregs[name] = r
	return r
}

func (bld *builder) block(label string) (*machir.BasicBlock, error) {
	bb, ok := bld.blocks[label]
	if !ok {
		return nil, fmt.Errorf("unknown block label %q", label)
	}
	return bb, nil
}

var aluOpcodes = map[string]machir.Opcode{
	"add": x64.OpAddqRegReg,
	"sub": x64.OpSubqRegReg,
	"xor": x64.OpXorqRegReg,
	"cmp": x64.OpCmpqRegReg,
}

var conds = map[string]machir.Cond{
	"eq": machir.CondEq, "ne": machir.CondNe,
	"lt": machir.CondLt, "le": machir.CondLe,
	"gt": machir.CondGt, "ge": machir.CondGe,
	"b": machir.CondBelow, "be": machir.CondBelowEq,
	"a": machir.CondAbove, "ae": machir.CondAboveEq,
	"o": machir.CondOverflow, "no": machir.CondNoOverflow,
}

func parseCond(s string) (machir.Cond, error) {
	cond, ok := conds[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown condition %q", s)
	}
	return cond, nil
}

func simdSize(size int) (int, error) {
	switch size {
	case 0: // default to a full vector register
		return 16, nil
	case 8, 16:
		return size, nil
	}
	return 0, fmt.Errorf("bad simd access size %d", size)
}

// parseOffset resolves a guest context offset: a guest register name like
// x5, f1 or v3, a special field name, or a plain number.
func parseOffset(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("missing context offset")
	}
	switch s {
	case "reservation_addr":
		return guest.ReservationAddrOffset, nil
	case "reservation_value":
		return guest.ReservationValueOffset, nil
	case "insn_addr":
		return guest.InsnAddrOffset, nil
	case "frm":
		return guest.FrmOffset, nil
	}
	if len(s) > 1 && (s[0] == 'x' || s[0] == 'f' || s[0] == 'v') {
		if i, err := strconv.Atoi(s[1:]); err == nil {
			if i < 0 || i >= guest.NumXRegs {
				return 0, fmt.Errorf("guest register %q out of range", s)
			}
			switch s[0] {
			case 'x':
				return guest.XRegOffset(i), nil
			case 'f':
				return guest.FRegOffset(i), nil
			case 'v':
				return guest.VRegOffset(i), nil
			}
		}
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad context offset %q", s)
	}
	return uint32(n), nil
}

func parseAddr(s string) (guest.Addr, error) {
	if s == "" {
		return guest.NullAddr, nil
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad guest address %q", s)
	}
	return guest.Addr(n), nil
}
