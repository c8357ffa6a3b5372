package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func resetFlags() {
	configPath = ""
	dumpFormat = ""
	outputPath = ""
	verbose = false
	noOpt = false
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeRegionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testRegion = `
name: smoke
blocks:
  - label: entry
    insns:
      - {op: get, reg: a, offset: x1}
      - {op: get, reg: b, offset: x1}
      - {op: put, reg: b, offset: x2}
      - {op: jump, target: "0x100"}
`

func TestPassesCommand(t *testing.T) {
	out, _, err := runCLI(t, "passes")
	if err != nil {
		t.Fatalf("passes: %v", err)
	}
	for _, name := range []string{"remove-local-guest-context-accesses", "remove-dead-code", "reorder-in-reverse-post-order"} {
		if !strings.Contains(out, name) {
			t.Errorf("passes output lacks %q:\n%s", name, out)
		}
	}
}

func TestOptTextDump(t *testing.T) {
	path := writeRegionFile(t, testRegion)
	out, _, err := runCLI(t, "opt", path)
	if err != nil {
		t.Fatalf("opt: %v", err)
	}
	if !strings.Contains(out, "PSEUDO_COPY") {
		t.Errorf("optimized dump lacks the forwarded copy:\n%s", out)
	}
	if strings.Count(out, "MOVQ_REG_MEM") != 1 {
		t.Errorf("optimized dump must keep a single context load:\n%s", out)
	}
}

func TestOptNoOpt(t *testing.T) {
	path := writeRegionFile(t, testRegion)
	out, _, err := runCLI(t, "opt", "--no-opt", path)
	if err != nil {
		t.Fatalf("opt --no-opt: %v", err)
	}
	if strings.Count(out, "MOVQ_REG_MEM") != 2 {
		t.Errorf("unoptimized dump must keep both loads:\n%s", out)
	}
}

func TestOptDotDump(t *testing.T) {
	path := writeRegionFile(t, testRegion)
	out, _, err := runCLI(t, "opt", "--dump", "dot", path)
	if err != nil {
		t.Fatalf("opt --dump dot: %v", err)
	}
	if !strings.HasPrefix(out, "digraph MachineIR {") {
		t.Errorf("dot dump wrong:\n%s", out)
	}
}

func TestOptJSONDump(t *testing.T) {
	path := writeRegionFile(t, testRegion)
	out, _, err := runCLI(t, "opt", "--dump", "json", path)
	if err != nil {
		t.Fatalf("opt --dump json: %v", err)
	}
	for _, want := range []string{`"blocks"`, `"insns"`, `"successors"`} {
		if !strings.Contains(out, want) {
			t.Errorf("json dump lacks %s:\n%s", want, out)
		}
	}
}

func TestOptOutputFile(t *testing.T) {
	path := writeRegionFile(t, testRegion)
	outPath := filepath.Join(t.TempDir(), "dump.txt")
	_, _, err := runCLI(t, "opt", "-o", outPath, path)
	if err != nil {
		t.Fatalf("opt -o: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading dump: %v", err)
	}
	if !strings.Contains(string(data), "PSEUDO_JUMP") {
		t.Errorf("dump file wrong:\n%s", data)
	}
}

func TestOptMissingRegionFile(t *testing.T) {
	_, _, err := runCLI(t, "opt", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected an error for a missing region file")
	}
}

func TestOptWithConfig(t *testing.T) {
	regionPath := writeRegionFile(t, testRegion)
	cfgPath := filepath.Join(t.TempDir(), "tern.toml")
	cfg := "[passes]\ndisabled = [\"remove-local-guest-context-accesses\", \"remove-dead-code\"]\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "--config", cfgPath, "opt", regionPath)
	if err != nil {
		t.Fatalf("opt with config: %v", err)
	}
	if strings.Count(out, "MOVQ_REG_MEM") != 2 {
		t.Errorf("disabled pass still ran:\n%s", out)
	}
}

func TestOptBadConfig(t *testing.T) {
	regionPath := writeRegionFile(t, testRegion)
	cfgPath := filepath.Join(t.TempDir(), "tern.toml")
	if err := os.WriteFile(cfgPath, []byte("[dump]\nformat = \"pdf\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, "--config", cfgPath, "opt", regionPath)
	if err == nil {
		t.Error("expected an error for a bad config")
	}
}
