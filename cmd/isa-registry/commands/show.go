package commands

import (
	"isa-registry/internal/components/chrono"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/registry"
	"isa-registry/internal/store"
	"isa-registry/pkg/serviceutil"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var showDb *string

func init() {
	showDb = showCmd.Flags().String("db", "results.db", "The sqlite database scrape results were saved to.")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <bachelor|master> [--db <path/to/output.db>]",
	Short: "Prints the reports of the latest saved extraction of a category.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db, err := store.OpenDB(*showDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer db.Close()

		clock, err := chrono.NewStandardImpl()
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}
		s := store.NewStore(db, clock, telemetry.SlogAPI{})

		snapshot, err := s.Latest(cmd.Context(), registry.Category(args[0]))
		if err != nil {
			serviceutil.Fatal("failed to load extraction", err)
		}

		labels := make([]string, 0, len(snapshot.Result.Reports))
		for label := range snapshot.Result.Reports {
			labels = append(labels, label)
		}
		slices.Sort(labels)

		t := newTable()
		t.SetTitle("%s, extracted %s", snapshot.Result.Category, snapshot.CreatedAt.Format(time.ANSIC))
		t.AppendHeader(table.Row{"Report", "Code", "Students"})
		for _, label := range labels {
			t.AppendRow(table.Row{
				label,
				snapshot.Result.Reports[label].Code,
				len(snapshot.Result.Tables[label]),
			})
		}
		t.AppendFooter(table.Row{"", "Total", countStudents(snapshot.Result.Tables)})
		t.Render()
	},
}
