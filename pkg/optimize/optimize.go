// Package optimize drives the machine IR optimization pipeline: an
// ordered pass list over an x86-64 region, with per-pass logging and
// optional structural verification between passes.
package optimize

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ternjit/tern/pkg/machir"
	"github.com/ternjit/tern/pkg/x64"
)

// Pass is one rewriting step over a region.
type Pass struct {
	Name string
	Run  func(*x64.IR)
}

// Passes returns the default pipeline in its required order: context
// access elimination first so later cleanups see the copies it leaves
// behind, dead code after the put removal exposes dead loads, and block
// layout passes last.
func Passes() []Pass {
	return []Pass{
		{Name: "remove-local-guest-context-accesses", Run: x64.RemoveLocalGuestContextAccesses},
		{Name: "remove-redundant-puts", Run: x64.RemoveRedundantPuts},
		{Name: "remove-dead-code", Run: func(ir *x64.IR) { machir.RemoveDeadCode(ir.MachineIR) }},
		{Name: "remove-forwarder-blocks", Run: func(ir *x64.IR) { machir.RemoveForwarderBlocks(ir.MachineIR) }},
		{Name: "move-cold-blocks-to-end", Run: func(ir *x64.IR) { machir.MoveColdBlocksToEnd(ir.MachineIR) }},
		{Name: "remove-nop-pseudo-copies", Run: func(ir *x64.IR) { machir.RemoveNopPseudoCopies(ir.MachineIR) }},
		{Name: "reorder-in-reverse-post-order", Run: func(ir *x64.IR) { machir.ReorderInReversePostOrder(ir.MachineIR) }},
	}
}

// PassNames returns the names of the default pipeline in order.
func PassNames() []string {
	passes := Passes()
	names := make([]string, len(passes))
	for i, pass := range passes {
		names[i] = pass.Name
	}
	return names
}

// Options configures one pipeline run.
type Options struct {
	// Disabled names passes to skip.
	Disabled []string
	// CheckIR verifies the control-flow graph after every pass and
	// fails the run on corruption.
	CheckIR bool
	// Logger receives per-pass statistics; nil disables logging.
	Logger *zap.Logger
}

// Run executes the default pipeline on the region.
func Run(ir *x64.IR, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	disabled := make(map[string]bool, len(opts.Disabled))
	for _, name := range opts.Disabled {
		disabled[name] = true
	}

	for _, pass := range Passes() {
		if disabled[pass.Name] {
			logger.Debug("pass skipped", zap.String("pass", pass.Name))
			delete(disabled, pass.Name)
			continue
		}
		blocksBefore := len(ir.Blocks())
		insnsBefore := ir.NumInsns()

		pass.Run(ir)

		logger.Info("pass done",
			zap.String("pass", pass.Name),
			zap.Int("blocks", len(ir.Blocks())),
			zap.Int("insns", ir.NumInsns()),
			zap.Int("blocks_removed", blocksBefore-len(ir.Blocks())),
			zap.Int("insns_removed", insnsBefore-ir.NumInsns()),
		)

		if opts.CheckIR {
			if status := machir.Check(ir.MachineIR); status != machir.CheckSuccess {
				return fmt.Errorf("optimize: ir corrupt after pass %s: %s", pass.Name, status)
			}
		}
	}

	for name := range disabled {
		return fmt.Errorf("optimize: unknown pass %q", name)
	}
	return nil
}
