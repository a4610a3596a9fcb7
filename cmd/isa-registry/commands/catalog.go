package commands

import (
	"isa-registry/internal/scrapers/isa"
	"isa-registry/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [dimension...]",
	Short: "Lists the labels and codes the report form accepts, for all dimensions if none are given.",
	Run: func(cmd *cobra.Command, args []string) {
		dims := isa.Dimensions()
		if len(args) > 0 {
			dims = nil
			for _, arg := range args {
				dim, err := isa.ParseDimension(arg)
				if err != nil {
					serviceutil.Fatal("invalid dimension", err)
				}
				dims = append(dims, dim)
			}
		}

		catalog, err := client.ResolveCatalog(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to resolve catalog", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Dimension", "Label", "Code"})
		for _, dim := range dims {
			for _, label := range catalog.Labels(dim) {
				t.AppendRow(table.Row{dim, label, catalog[dim][label]})
			}
			t.AppendSeparator()
		}
		t.Render()
	},
}
