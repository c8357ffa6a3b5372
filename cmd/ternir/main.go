// ternir is the developer CLI for the tern backend optimizer: it reads a
// YAML region description, runs the machine IR pass pipeline on it, and
// dumps the optimized region.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ternjit/tern/pkg/arena"
	"github.com/ternjit/tern/pkg/config"
	"github.com/ternjit/tern/pkg/optimize"
	"github.com/ternjit/tern/pkg/region"
	"github.com/ternjit/tern/pkg/x64"
)

var version = "0.1.0"

var (
	configPath string
	dumpFormat string
	outputPath string
	verbose    bool
	noOpt      bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ternir: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ternir",
		Short: "ternir optimizes machine IR regions of the tern translator",
		Long: `ternir is a development harness for the tern binary translator
backend. It reads translation regions from YAML descriptions, runs the
machine IR optimization pipeline on them, and dumps the result for
inspection.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-pass statistics")

	rootCmd.AddCommand(newOptCmd(), newPassesCmd())
	return rootCmd
}

func newOptCmd() *cobra.Command {
	optCmd := &cobra.Command{
		Use:   "opt [region.yaml]",
		Short: "Run the optimization pipeline on a region description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dumpFormat != "" {
				cfg.Dump.Format = dumpFormat
			}
			if outputPath != "" {
				cfg.Dump.Output = outputPath
			}

			ir, err := region.Load(args[0], arena.New())
			if err != nil {
				return err
			}

			if !noOpt {
				logger, err := newLogger()
				if err != nil {
					return err
				}
				defer logger.Sync()
				err = optimize.Run(ir, optimize.Options{
					Disabled: cfg.Passes.Disabled,
					CheckIR:  cfg.Passes.CheckIR,
					Logger:   logger,
				})
				if err != nil {
					return err
				}
			}

			return dump(cmd.OutOrStdout(), ir, cfg.Dump)
		},
	}
	optCmd.Flags().StringVar(&dumpFormat, "dump", "", "Dump format: text, dot or json")
	optCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the dump to a file instead of stdout")
	optCmd.Flags().BoolVar(&noOpt, "no-opt", false, "Dump the region without optimizing")
	return optCmd
}

func newPassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "List the optimization passes in pipeline order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range optimize.PassNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("ternir: creating logger: %w", err)
	}
	return logger, nil
}

func dump(out io.Writer, ir *x64.IR, cfg config.Dump) error {
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch cfg.Format {
	case config.FormatDot:
		_, err := io.WriteString(out, ir.DotString())
		return err
	case config.FormatJSON:
		return dumpJSON(out, ir)
	default:
		_, err := io.WriteString(out, ir.DebugString())
		return err
	}
}

// jsonRegion mirrors the text dump in a machine-readable shape.
type jsonRegion struct {
	Blocks []jsonBlock `json:"blocks"`
}

type jsonBlock struct {
	ID         uint32   `json:"id"`
	Recovery   bool     `json:"recovery,omitempty"`
	Successors []uint32 `json:"successors"`
	Insns      []string `json:"insns"`
}

func dumpJSON(out io.Writer, ir *x64.IR) error {
	reg := jsonRegion{Blocks: make([]jsonBlock, 0, len(ir.Blocks()))}
	for _, bb := range ir.Blocks() {
		block := jsonBlock{
			ID:         bb.ID(),
			Recovery:   bb.IsRecovery(),
			Successors: make([]uint32, 0, len(bb.OutEdges())),
			Insns:      make([]string, 0, bb.Insns().Len()),
		}
		for _, edge := range bb.OutEdges() {
			block.Successors = append(block.Successors, edge.Dst().ID())
		}
		for n := bb.Insns().First(); n != nil; n = n.Next() {
			block.Insns = append(block.Insns, n.Insn().DebugString())
		}
		reg.Blocks = append(reg.Blocks, block)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(&reg)
}
