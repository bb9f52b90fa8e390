package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// render writes data as yaml or json when requested, otherwise as a table
// built from header and rows.
func render(data any, header []string, rows [][]string) error {
	return renderTo(os.Stdout, outputFormat, data, header, rows)
}

func renderTo(w io.Writer, format string, data any, header []string, rows [][]string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case "", "table":
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.AppendBulk(rows)
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
