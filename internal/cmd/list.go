package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
)

var (
	listOutputFlag    string
	listInstalledFlag bool
)

// listEntry is the structured form of a listing row.
type listEntry struct {
	Name      string   `json:"name"`
	Installed string   `json:"installed,omitempty"`
	Latest    string   `json:"latest,omitempty"`
	Available []string `json:"available,omitempty"`
	Changed   string   `json:"changed,omitempty"`
}

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed and available products",
		Long: `List the products of the catalog together with the installed ones.

Examples:
  prov list
  prov list --installed -o yaml`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	cmd.Flags().StringVarP(&listOutputFlag, "output", "o", "table",
		"Output format ("+strings.Join(output.ValidFormats(), ", ")+")")
	cmd.Flags().BoolVar(&listInstalledFlag, "installed", false, "Only list installed products")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, ok := output.ParseOutputFormat(listOutputFlag)
	if !ok {
		return exitWith(oerrors.NewValidationError(
			fmt.Sprintf("invalid output format %q", listOutputFlag), "",
			"Valid formats: "+strings.Join(output.ValidFormats(), ", ")))
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	rows, err := e.List(cmd.Context())
	if err != nil {
		return exitWith(err)
	}
	if listInstalledFlag {
		rows = installedOnly(rows)
	}

	return exitWith(writeRows(cmd.OutOrStdout(), rows, format))
}

func installedOnly(rows []output.ProductRow) []output.ProductRow {
	out := rows[:0:0]
	for _, r := range rows {
		if r.Installed != "" {
			out = append(out, r)
		}
	}
	return out
}

func writeRows(w io.Writer, rows []output.ProductRow, format output.OutputFormat) error {
	if format == output.FormatTable {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No products")
			return err
		}
		_, err := fmt.Fprintln(w, output.RenderProductTable(rows))
		return err
	}

	entries := make([]listEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, listEntry(r))
	}

	var (
		data []byte
		err  error
	)
	if format == output.FormatJSON {
		data, err = json.MarshalIndent(entries, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(entries)
	}
	if err != nil {
		return fmt.Errorf("encoding product list: %w", err)
	}
	_, err = w.Write(data)
	return err
}
