package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docfold/docfold/config"
	"github.com/docfold/docfold/document"
	"github.com/docfold/docfold/measure"
	"github.com/docfold/docfold/observability"
	"github.com/docfold/docfold/paginate"
	"github.com/docfold/docfold/session"
)

type paginateFlags struct {
	paper     string
	marginMM  float64
	dpi       float64
	font      string
	script    string
	heuristic bool
	jsonOut   bool
	cover     bool
}

func newPaginateCommand(log observability.Logger) *cobra.Command {
	var flags paginateFlags

	cmd := &cobra.Command{
		Use:   "paginate <input.(md|html|docx|json)>",
		Short: "Paginate a document and print the page layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyPaginateFlags(cmd, &flags, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			tree, err := loadTree(args[0])
			if err != nil {
				return err
			}
			sess, err := buildSession(cfg, log)
			if err != nil {
				return err
			}
			if err := sess.SetDocument(cmd.Context(), tree); err != nil {
				return err
			}

			if flags.jsonOut {
				return writeJSONReport(cmd.OutOrStdout(), sess)
			}
			renderPageTable(cmd.OutOrStdout(), sess)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.paper, "geometry", "", "paper size: a4, letter, legal, a3, a5")
	cmd.Flags().Float64Var(&flags.marginMM, "margin-mm", 0, "uniform page margin in millimetres")
	cmd.Flags().Float64Var(&flags.dpi, "dpi", 0, "pixels per inch")
	cmd.Flags().StringVar(&flags.font, "font", "", "TTF font file, switches to typeset measurement")
	cmd.Flags().StringVar(&flags.script, "script", "", "JavaScript measure() source file")
	cmd.Flags().BoolVar(&flags.heuristic, "heuristic", false, "force heuristic heights")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "emit JSON instead of a table")
	cmd.Flags().BoolVar(&flags.cover, "cover", false, "count a cover page")
	return cmd
}

func applyPaginateFlags(cmd *cobra.Command, flags *paginateFlags, cfg *config.Config) {
	if flags.paper != "" {
		cfg.Paper.Size = flags.paper
		cfg.Paper.WidthMM, cfg.Paper.HeightMM = 0, 0
	}
	if cmd.Flags().Changed("margin-mm") {
		cfg.Paper.Margins = config.Margins{
			TopMM:    flags.marginMM,
			BottomMM: flags.marginMM,
			LeftMM:   flags.marginMM,
			RightMM:  flags.marginMM,
		}
	}
	if flags.dpi > 0 {
		cfg.Paper.DPI = flags.dpi
	}
	if flags.font != "" {
		cfg.Typography.FontPath = flags.font
		cfg.Measure.Mode = config.ModeTypeset
	}
	if flags.script != "" {
		cfg.Measure.ScriptPath = flags.script
		cfg.Measure.Mode = config.ModeScript
	}
	if flags.heuristic {
		cfg.Measure.Mode = config.ModeHeuristic
	}
	if flags.cover {
		cfg.CoverPage = true
	}
}

// loadTree builds a document tree from the input file, selecting the
// parser by extension.
func loadTree(path string) (*document.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return document.FromMarkdown(data)
	case ".html", ".htm":
		return document.FromHTML(data)
	case ".docx":
		return document.FromDocx(bytes.NewReader(data))
	case ".json":
		return document.Unmarshal(data)
	default:
		return nil, fmt.Errorf("unsupported input format %q", filepath.Ext(path))
	}
}

// buildResolver constructs the height resolver the config asks for. Auto
// mode picks typeset when a font is configured, heuristics otherwise.
func buildResolver(cfg *config.Config) (measure.Resolver, error) {
	mode := strings.ToLower(cfg.Measure.Mode)
	if mode == config.ModeAuto {
		if cfg.Typography.FontPath != "" {
			mode = config.ModeTypeset
		} else {
			mode = config.ModeHeuristic
		}
	}
	switch mode {
	case config.ModeHeuristic:
		return measure.NewHeuristicResolver(), nil
	case config.ModeTypeset:
		data, err := os.ReadFile(cfg.Typography.FontPath)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		return measure.NewTypesetResolver(data, nil)
	case config.ModeScript:
		src, err := os.ReadFile(cfg.Measure.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("read measure script: %w", err)
		}
		return measure.NewScriptResolver(string(src))
	default:
		return nil, fmt.Errorf("unknown measurement mode %q", cfg.Measure.Mode)
	}
}

func buildSession(cfg *config.Config, log observability.Logger) (*session.Session, error) {
	geo, err := cfg.Geometry()
	if err != nil {
		return nil, err
	}
	resolver, err := buildResolver(cfg)
	if err != nil {
		return nil, err
	}
	return session.New(
		session.WithLogger(log),
		session.WithResolver(resolver),
		session.WithGeometry(geo),
		session.WithTypography(cfg.Typography.FontSize, cfg.Typography.LineHeight),
		session.WithMeasureTimeout(cfg.Measure.Timeout),
		session.WithCoverPage(cfg.CoverPage),
		session.WithPacker(paginate.NewPacker(paginate.WithSplitter(cfg.PageSplitter()))),
	), nil
}

func renderPageTable(out io.Writer, sess *session.Session) {
	pages := sess.Pages()
	rep := sess.Report()

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Page", "Blocks", "Height (px)", "Manual Break", "Leads With"})
	for i, p := range pages {
		breakCell := ""
		if p.HasManualBreakBefore {
			breakCell = fmt.Sprintf("yes (#%d)", p.BreakIndex)
		}
		tw.AppendRow(table.Row{i + 1, p.BlockCount(), fmt.Sprintf("%.1f", p.ContentHeight), breakCell, leadText(p)})
	}
	tw.Render()

	fmt.Fprintf(out, "%d page(s), %d block(s), %d split(s), %d oversized, measured in %s\n",
		sess.TotalPages(), rep.Blocks, rep.Splits, rep.OversizedBlocks,
		rep.MeasureDuration.Round(time.Millisecond))
	if rep.Degraded {
		fmt.Fprintf(out, "degraded to heuristic heights: %s\n", rep.DegradedReason)
	}
}

func leadText(p *paginate.Page) string {
	if len(p.Blocks) == 0 {
		return ""
	}
	b := p.Blocks[0]
	text := b.Text
	if text == "" {
		text = string(b.Kind)
	}
	runes := []rune(text)
	if len(runes) > 40 {
		return string(runes[:37]) + "..."
	}
	return text
}

func writeJSONReport(out io.Writer, sess *session.Session) error {
	rep := sess.Report()
	pages := sess.Pages()

	pageList := make([]map[string]any, 0, len(pages))
	for i, p := range pages {
		blocks := make([]map[string]string, 0, len(p.Blocks))
		for _, b := range p.Blocks {
			blocks = append(blocks, map[string]string{
				"id":   b.ID,
				"kind": string(b.Kind),
				"text": b.Text,
			})
		}
		pageList = append(pageList, map[string]any{
			"number":                  i + 1,
			"blocks":                  blocks,
			"has_manual_break_before": p.HasManualBreakBefore,
			"break_index":             p.BreakIndex,
			"content_height":          p.ContentHeight,
		})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"total_pages": sess.TotalPages(),
		"break_count": sess.BreakCount(),
		"splits":      rep.Splits,
		"oversized":   rep.OversizedBlocks,
		"degraded":    rep.Degraded,
		"pages":       pageList,
	})
}
