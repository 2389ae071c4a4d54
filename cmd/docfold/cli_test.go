package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docfold/docfold/config"
	"github.com/docfold/docfold/document"
	"github.com/docfold/docfold/measure"
	"github.com/docfold/docfold/observability"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadTree_Markdown(t *testing.T) {
	path := writeFile(t, t.TempDir(), "doc.md", "# Title\n\nbody text\n")

	tree, err := loadTree(path)
	if err != nil {
		t.Fatalf("loadTree: %v", err)
	}
	if tree.Len() != 2 {
		t.Fatalf("blocks = %d, want 2", tree.Len())
	}
	if tree.Blocks[0].Kind != document.KindHeading || tree.Blocks[0].Level != 1 {
		t.Errorf("first block = %s level %d, want heading level 1", tree.Blocks[0].Kind, tree.Blocks[0].Level)
	}
	if tree.Blocks[1].Text != "body text" {
		t.Errorf("paragraph text = %q", tree.Blocks[1].Text)
	}
}

func TestLoadTree_HTML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "doc.html", "<h1>Title</h1><p>body</p>")

	tree, err := loadTree(path)
	if err != nil {
		t.Fatalf("loadTree: %v", err)
	}
	if tree.Len() != 2 {
		t.Fatalf("blocks = %d, want 2", tree.Len())
	}
}

func TestLoadTree_JSON(t *testing.T) {
	block := document.NewBlock(document.KindParagraph)
	block.Text = "round trip"
	data, err := document.Marshal(document.NewTree(block))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := writeFile(t, t.TempDir(), "doc.json", string(data))

	tree, err := loadTree(path)
	if err != nil {
		t.Fatalf("loadTree: %v", err)
	}
	if tree.Len() != 1 || tree.Blocks[0].Text != "round trip" {
		t.Fatalf("unexpected tree: %+v", tree.Blocks)
	}
}

func TestLoadTree_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "doc.txt", "plain text")

	if _, err := loadTree(path); err == nil || !strings.Contains(err.Error(), "unsupported input format") {
		t.Fatalf("err = %v, want unsupported format", err)
	}
}

func TestLoadTree_MissingFile(t *testing.T) {
	if _, err := loadTree(filepath.Join(t.TempDir(), "absent.md")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildResolver_Modes(t *testing.T) {
	cfg := config.Default()
	cfg.Measure.Mode = config.ModeHeuristic
	r, err := buildResolver(cfg)
	if err != nil {
		t.Fatalf("heuristic: %v", err)
	}
	if _, ok := r.(*measure.HeuristicResolver); !ok {
		t.Errorf("heuristic mode built %T", r)
	}

	// Auto without a font falls back to heuristics.
	cfg = config.Default()
	cfg.Measure.Mode = config.ModeAuto
	r, err = buildResolver(cfg)
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if _, ok := r.(*measure.HeuristicResolver); !ok {
		t.Errorf("auto mode without font built %T", r)
	}
}

func TestBuildResolver_Script(t *testing.T) {
	script := writeFile(t, t.TempDir(), "measure.js",
		"function measure(block, layout) { return {content: 42, marginTop: 0, marginBottom: 0}; }")

	cfg := config.Default()
	cfg.Measure.Mode = config.ModeScript
	cfg.Measure.ScriptPath = script

	r, err := buildResolver(cfg)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if _, ok := r.(*measure.ScriptResolver); !ok {
		t.Errorf("script mode built %T", r)
	}
}

func TestBuildResolver_MissingFont(t *testing.T) {
	cfg := config.Default()
	cfg.Measure.Mode = config.ModeTypeset
	cfg.Typography.FontPath = filepath.Join(t.TempDir(), "absent.ttf")

	if _, err := buildResolver(cfg); err == nil || !strings.Contains(err.Error(), "read font") {
		t.Fatalf("err = %v, want read font error", err)
	}
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCommand(observability.NopLogger{})
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("docfold %s: %v", strings.Join(args, " "), err)
	}
	return buf.String()
}

func TestPaginateCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "doc.md", "# Notes\n\nalpha paragraph\n\nbeta paragraph\n")
	cfgPath := writeFile(t, dir, "docfold.yaml", "measure:\n  mode: heuristic\n")

	out := runCommand(t, "paginate", input, "--json", "--config", cfgPath)

	var report struct {
		TotalPages int  `json:"total_pages"`
		BreakCount int  `json:"break_count"`
		Degraded   bool `json:"degraded"`
		Pages      []struct {
			Number int `json:"number"`
			Blocks []struct {
				Kind string `json:"kind"`
				Text string `json:"text"`
			} `json:"blocks"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if report.TotalPages != 1 {
		t.Errorf("total_pages = %d, want 1", report.TotalPages)
	}
	if report.Degraded {
		t.Error("heuristic run reported degraded")
	}
	if len(report.Pages) != 1 || len(report.Pages[0].Blocks) != 3 {
		t.Fatalf("unexpected pages: %+v", report.Pages)
	}
	if report.Pages[0].Blocks[0].Kind != "heading" {
		t.Errorf("first block kind = %s", report.Pages[0].Blocks[0].Kind)
	}
}

func TestPaginateCommand_Table(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "doc.md", "# Notes\n\nalpha paragraph\n")
	cfgPath := writeFile(t, dir, "docfold.yaml", "measure:\n  mode: heuristic\n")

	out := runCommand(t, "paginate", input, "--config", cfgPath)

	if !strings.Contains(out, "Leads With") {
		t.Errorf("missing table header:\n%s", out)
	}
	if !strings.Contains(out, "Notes") {
		t.Errorf("missing lead text:\n%s", out)
	}
	if !strings.Contains(out, "page(s)") {
		t.Errorf("missing summary line:\n%s", out)
	}
}

func TestPaginateCommand_CoverFlag(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "doc.md", "one paragraph\n")
	cfgPath := writeFile(t, dir, "docfold.yaml", "measure:\n  mode: heuristic\n")

	out := runCommand(t, "paginate", input, "--json", "--cover", "--config", cfgPath)

	var report struct {
		TotalPages int `json:"total_pages"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if report.TotalPages != 2 {
		t.Errorf("total_pages = %d, want 2 with cover", report.TotalPages)
	}
}

func TestPaginateCommand_RejectsUnknownInput(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "doc.xyz", "???")
	cfgPath := writeFile(t, dir, "docfold.yaml", "measure:\n  mode: heuristic\n")

	root := newRootCommand(observability.NopLogger{})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"paginate", input, "--config", cfgPath})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unknown input format")
	}
}

func TestVersionCommand(t *testing.T) {
	out := runCommand(t, "version")
	if !strings.Contains(out, "docfold dev (commit none, built unknown)") {
		t.Errorf("version output = %q", out)
	}
}
