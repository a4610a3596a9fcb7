package commands

import (
	"errors"
	"isa-registry/internal/scrapers/isa"
	"isa-registry/pkg/serviceutil"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	locateUnit     *string
	locateYear     *string
	locatePeriod   *string
	locateSemester *string
)

func init() {
	locateUnit = locateCmd.Flags().String("unit", "", "The academic unit label, ex. \"Informatique\".")
	locateYear = locateCmd.Flags().String("year", "", "The academic year label, ex. \"2016-2017\".")
	locatePeriod = locateCmd.Flags().String("period", "", "The pedagogical period label, ex. \"Bachelor semestre 1\".")
	locateSemester = locateCmd.Flags().String("semester", "", "The semester type label.")
	rootCmd.AddCommand(locateCmd)
}

var locateCmd = &cobra.Command{
	Use:   "locate [--unit <label>] [--year <label>] [--period <label>] [--semester <label>]",
	Short: "Lists the reports matching a combination of filter labels.",
	Run: func(cmd *cobra.Command, args []string) {
		filters := isa.Filters{}
		for dim, value := range map[isa.Dimension]string{
			isa.UNIT:          *locateUnit,
			isa.ACADEMIC_YEAR: *locateYear,
			isa.PERIOD:        *locatePeriod,
			isa.SEMESTER_TYPE: *locateSemester,
		} {
			if value != "" {
				filters[dim] = value
			}
		}

		catalog, err := client.Catalog(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to resolve catalog", err)
		}

		result, err := client.LocateReports(cmd.Context(), catalog, filters)
		var lookupErr *isa.LookupError
		if errors.As(err, &lookupErr) && lookupErr.Suggestion != "" {
			slog.Info("closest known label", "dimension", lookupErr.Dimension, "label", lookupErr.Suggestion)
		}
		if err != nil {
			serviceutil.Fatal("failed to locate reports", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Label", "Code", "Note"})
		for _, report := range result.Sorted() {
			t.AppendRow(table.Row{report.Label, report.Code, ""})
		}
		for _, skipped := range result.Skipped {
			t.AppendRow(table.Row{skipped.Label, "", "skipped: " + skipped.Reason})
		}
		for _, duplicate := range result.Duplicates {
			t.AppendRow(table.Row{duplicate.Label, duplicate.Code, "duplicate label"})
		}
		t.Render()
	},
}
