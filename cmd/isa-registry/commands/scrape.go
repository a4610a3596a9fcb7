package commands

import (
	"encoding/json"
	"isa-registry/internal/components/chrono"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/registry"
	"isa-registry/internal/scrapers/isa"
	"isa-registry/internal/store"
	"isa-registry/pkg/serviceutil"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeDb   *string
	scrapeJson *string
)

func init() {
	scrapeDb = scrapeCmd.Flags().String("db", "", "The sqlite database to save results to, nothing is saved if empty.")
	scrapeJson = scrapeCmd.Flags().String("json", "", "The file to write the extracted tables to as json, \"-\" for stdout.")
	rootCmd.AddCommand(scrapeCmd)
}

func countStudents(tables isa.Tables) int {
	n := 0
	for _, records := range tables {
		n += len(records)
	}
	return n
}

func renderSummary(results map[registry.Category]registry.Result, categories []registry.Category) {
	t := newTable()
	t.AppendHeader(table.Row{"Category", "Reports", "Students", "Skipped", "Duplicates", "Dropped"})
	for _, category := range categories {
		result := results[category]
		t.AppendRow(table.Row{
			category,
			len(result.Reports),
			countStudents(result.Tables),
			len(result.Skipped),
			len(result.Duplicates),
			len(result.Dropped),
		})
	}
	t.Render()
}

func writeJson(path string, results map[registry.Category]registry.Result) error {
	out := map[registry.Category]isa.Tables{}
	for category, result := range results {
		out[category] = result.Tables
	}
	serialized, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(serialized, '\n'))
		return err
	}
	return os.WriteFile(path, serialized, 0666)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [bachelor|master...] [--db <path/to/output.db>] [--json <path/to/output.json>]",
	Short: "Extracts the student tables of every period of the given categories, bachelor and master by default.",
	Run: func(cmd *cobra.Command, args []string) {
		categories := []registry.Category{registry.BACHELOR, registry.MASTER}
		if len(args) > 0 {
			categories = nil
			for _, arg := range args {
				categories = append(categories, registry.Category(arg))
			}
		}

		t1 := time.Now()
		results, err := pipeline.RunAll(cmd.Context(), categories...)
		if err != nil {
			serviceutil.Fatal("failed to scrape", err)
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		renderSummary(results, categories)

		if *scrapeJson != "" {
			err = writeJson(*scrapeJson, results)
			if err != nil {
				serviceutil.Fatal("failed to write json", err)
			}
		}

		if *scrapeDb == "" {
			return
		}
		db, err := store.OpenDB(*scrapeDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer db.Close()

		clock, err := chrono.NewStandardImpl()
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}
		s := store.NewStore(db, clock, telemetry.SlogAPI{})
		for _, category := range categories {
			id, err := s.Save(cmd.Context(), results[category])
			if err != nil {
				serviceutil.Fatal("failed to save results", err)
			}
			slog.Info("saved extraction", "category", category, "id", id)
		}
	},
}
