package region

import (
	"strings"
	"testing"

	"github.com/ternjit/tern/pkg/arena"
	"github.com/ternjit/tern/pkg/guest"
	"github.com/ternjit/tern/pkg/machir"
	"github.com/ternjit/tern/pkg/x64"
)

const diamondYAML = `
name: diamond
blocks:
  - label: entry
    insns:
      - {op: get, reg: a, offset: x1}
      - {op: cmp, dst: a, src: a}
      - {op: cond_branch, cond: eq, then: left, else: right}
  - label: left
    insns:
      - {op: put, reg: a, offset: x2}
      - {op: branch, target: exit}
  - label: right
    insns:
      - {op: get_simd, reg: w, offset: v0, size: 16}
      - {op: branch, target: exit}
  - label: exit
    insns:
      - {op: jump, target: "0x1000"}
`

func TestBuildDiamond(t *testing.T) {
	ir, err := Build([]byte(diamondYAML), arena.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blocks := ir.Blocks()
	if len(blocks) != 4 {
		t.Fatalf("built %d blocks, want 4", len(blocks))
	}
	if status := machir.Check(ir.MachineIR); status != machir.CheckSuccess {
		t.Fatalf("built region fails check: %v", status)
	}

	entry := blocks[0]
	if len(entry.OutEdges()) != 2 {
		t.Error("entry must have two successors")
	}
	get := x64.AsInsn(entry.Insns().Front())
	if get == nil || !get.IsCPUStateGet() || get.Disp() != guest.XRegOffset(1) {
		t.Error("first insn is not the expected context load")
	}

	wide := x64.AsInsn(blocks[2].Insns().Front())
	if wide == nil || wide.Opcode() != x64.OpMovdqaXRegMemBaseDisp {
		t.Error("vector load not built as movdqa")
	}

	jump, ok := blocks[3].Insns().Front().(*machir.PseudoJump)
	if !ok || jump.Target() != 0x1000 {
		t.Error("exit jump wrong")
	}
}

func TestVRegNamesAreStable(t *testing.T) {
	const src = `
name: names
blocks:
  - label: entry
    insns:
      - {op: get, reg: a, offset: x1}
      - {op: put, reg: a, offset: x2}
      - {op: jump, target: "0"}
`
	ir, err := Build([]byte(src), arena.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	entry := ir.Blocks()[0]
	get := x64.AsInsn(entry.Insns().Front())
	put := x64.AsInsn(entry.Insns().First().Next().Insn())
	if get.RegAt(0) != put.RegAt(1) {
		t.Error("the same name must resolve to the same virtual register")
	}
	if ir.NumVReg() != 1 {
		t.Errorf("allocated %d vregs, want 1", ir.NumVReg())
	}
}

func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "no blocks",
			src:  "name: empty\nblocks: []\n",
			want: "no basic blocks",
		},
		{
			name: "duplicate label",
			src: `
blocks:
  - label: a
    insns: [{op: jump, target: "0"}]
  - label: a
    insns: [{op: jump, target: "0"}]
`,
			want: "duplicate block label",
		},
		{
			name: "unknown op",
			src: `
blocks:
  - label: a
    insns: [{op: frobnicate}]
`,
			want: "unknown op",
		},
		{
			name: "unknown branch target",
			src: `
blocks:
  - label: a
    insns: [{op: branch, target: nowhere}]
`,
			want: "unknown block label",
		},
		{
			name: "bad offset",
			src: `
blocks:
  - label: a
    insns:
      - {op: get, reg: r, offset: q9}
      - {op: jump, target: "0"}
`,
			want: "bad context offset",
		},
		{
			name: "guest register out of range",
			src: `
blocks:
  - label: a
    insns:
      - {op: get, reg: r, offset: x32}
      - {op: jump, target: "0"}
`,
			want: "out of range",
		},
		{
			name: "bad simd size",
			src: `
blocks:
  - label: a
    insns:
      - {op: get_simd, reg: r, offset: v0, size: 4}
      - {op: jump, target: "0"}
`,
			want: "bad simd access size",
		},
		{
			name: "missing terminator",
			src: `
blocks:
  - label: a
    insns: [{op: movimm, dst: r, imm: 1}]
  - label: b
    insns: [{op: jump, target: "0"}]
`,
			want: "malformed control flow",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build([]byte(tc.src), arena.New())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestNamedOffsets(t *testing.T) {
	for name, want := range map[string]uint32{
		"reservation_addr":  guest.ReservationAddrOffset,
		"reservation_value": guest.ReservationValueOffset,
		"insn_addr":         guest.InsnAddrOffset,
		"frm":               guest.FrmOffset,
		"x0":                guest.XRegOffset(0),
		"f31":               guest.FRegOffset(31),
		"v7":                guest.VRegOffset(7),
		"0x20":              32,
		"48":                48,
	} {
		got, err := parseOffset(name)
		if err != nil {
			t.Errorf("parseOffset(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("parseOffset(%q) = %d, want %d", name, got, want)
		}
	}
}
