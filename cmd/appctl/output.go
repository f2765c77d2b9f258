package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type outputMode int

const (
	outputTable outputMode = iota
	outputJSON
)

// resolveOutput maps the --output flag; "auto" renders tables only on a terminal.
func resolveOutput(flag string, w io.Writer) (outputMode, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "", "auto":
		if isTerminal(w) {
			return outputTable, nil
		}
		return outputJSON, nil
	case "table":
		return outputTable, nil
	case "json":
		return outputJSON, nil
	default:
		return outputJSON, fmt.Errorf("unknown output format %q (want auto, table or json)", flag)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// emit writes v as JSON or, in table mode, the table built by rows.
func emit(cmd *cobra.Command, mode outputMode, v any, headers []string, rows func() [][]string, aligns ...columnAlignment) error {
	if mode == outputJSON {
		return writeJSON(cmd, v)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows(), aligns))
	return nil
}
