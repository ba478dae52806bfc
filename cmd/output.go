package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/habedi/portal/client"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// printJSON writes body indented to stdout, or nothing for an empty body.
func printJSON(cmd *cobra.Command, body json.RawMessage) error {
	if len(body) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return fmt.Errorf("%w: %w", client.ErrInvalidResponse, err)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return err
}

func warnFallback(cmd *cobra.Command, resp *client.Response) {
	if resp != nil && resp.Fallback {
		cmd.PrintErrln("Warning: the backend is unreachable, showing placeholder data.")
	}
}

// newTable returns a left-aligned table writing to the command's output.
func newTable(cmd *cobra.Command, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	return table
}

// cell renders one JSON value for a table.
func cell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return strings.ReplaceAll(t, "\n", " ")
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%.2f", t), ".00")
	case bool:
		if t {
			return "yes"
		}
		return "no"
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
