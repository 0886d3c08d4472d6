package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"dataflow/internal/workbench"
	"dataflow/pkg/contracts/domain"
)

type analyzeOptions struct {
	rows   []string
	tabs   []string
	asJSON bool
	export string
	smooth string
	method string
	window int
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a CSV/XLSX file or manual rows",
		Long: `Analyze sends a file, or the rows given with --row, to the analysis
engine and prints the requested result tabs.

Rows are "name,value1,value2"; blank rows are dropped before submission.`,
		Example: `  dataflow analyze sales.csv
  dataflow analyze --row "a,1,2" --row "b,3,4" --tab correlation
  dataflow analyze sales.csv --smooth revenue --method savgol --window 5 --export out/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalyze(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.rows, "row", nil, "Manual row as name,value1,value2 (repeatable)")
	f.StringSliceVar(&opts.tabs, "tab", []string{string(workbench.TabStatistics)}, "Result tabs to print: statistics, visualizations, correlation")
	f.BoolVar(&opts.asJSON, "json", false, "Print tab views as JSON")
	f.StringVar(&opts.export, "export", "", "Write analysis_results.json to this file or directory")
	f.StringVar(&opts.smooth, "smooth", "", "Smooth this column after the analysis")
	f.StringVar(&opts.method, "method", domain.SmoothMovingAverage, "Smoothing method: moving_average, exponential, savgol")
	f.IntVar(&opts.window, "window", domain.DefaultSmoothingWindow, "Smoothing window")
	return cmd
}

func (c *cli) runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	ctx := cmd.Context()

	tabs := make([]workbench.Tab, 0, len(opts.tabs))
	for _, s := range opts.tabs {
		tab, err := workbench.ParseTab(s)
		if err != nil {
			return err
		}
		tabs = append(tabs, tab)
	}

	wb := c.newWorkbench(cmd)

	mode := domain.InputModeFile
	switch {
	case len(args) == 1 && len(opts.rows) > 0:
		return fmt.Errorf("give either a file or --row values, not both")
	case len(args) == 1:
		upload, err := loadUpload(args[0])
		if err != nil {
			return err
		}
		if err := wb.SelectFile(ctx, upload); err != nil {
			return err
		}
	case len(opts.rows) > 0:
		mode = domain.InputModeManual
		wb.ToggleManualEntry(ctx)
		if err := fillRows(wb.Editor(), opts.rows); err != nil {
			return err
		}
	}

	if _, err := wb.Analyze(ctx, mode); err != nil {
		return err
	}

	if opts.smooth != "" {
		err := wb.ApplyTransformation(ctx, domain.TransformSmoothing, opts.smooth, opts.method, opts.window)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	snap := wb.Snapshot()
	for _, tab := range tabs {
		view := workbench.Render(snap, tab)
		if err := printView(out, view, opts.asJSON); err != nil {
			return err
		}
	}

	if opts.export != "" {
		download, err := wb.Export()
		if err != nil {
			return err
		}
		path, err := writeDownload(download, opts.export)
		if err != nil {
			return err
		}
		c.logger.InfoContext(ctx, "results exported", slog.String("path", path))
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %s\n", path)
	}
	return nil
}

// fillRows writes "name,value1,value2" specs into the editor
func fillRows(editor *workbench.Editor, specs []string) error {
	fields := []domain.RowField{domain.FieldName, domain.FieldValue1, domain.FieldValue2}
	for i, spec := range specs {
		parts := strings.Split(spec, ",")
		if len(parts) > len(fields) {
			return fmt.Errorf("row %d: want at most %d values, got %d", i+1, len(fields), len(parts))
		}
		for editor.Len() <= i {
			editor.AddRow()
		}
		for j, value := range parts {
			if err := editor.UpdateField(i, fields[j], strings.TrimSpace(value)); err != nil {
				return err
			}
		}
	}
	return nil
}

func printView(w io.Writer, view workbench.View, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	fmt.Fprintf(w, "== %s ==\n", view.Tab)
	if view.Placeholder != "" {
		fmt.Fprintln(w, view.Placeholder)
		return nil
	}
	if st := view.Statistics; st != nil {
		fmt.Fprintf(w, "Column: %s\n", st.Column)
		for _, field := range st.Fields {
			fmt.Fprintf(w, "  %-9s %s\n", field.Label+":", field.Value)
		}
	}
	for _, ch := range view.Charts {
		fmt.Fprintf(w, "  %s (%d bytes of image data)\n", ch.Title, len(ch.Src))
	}
	for _, card := range view.Correlations {
		fmt.Fprintf(w, "  %s: %s\n", card.Label, card.Value)
	}
	return nil
}
