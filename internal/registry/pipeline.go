package registry

import (
	"context"
	"fmt"
	"isa-registry/internal/components/assert"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/scrapers/isa"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	report_pipeline_run    = "pipeline.run"
	report_pipeline_locate = "pipeline.locate"
)

// Scraper is the part of isa.Client the pipeline drives.
//
// note: fault injection point
type Scraper interface {
	Catalog(ctx context.Context) (isa.Catalog, error)
	LocateReports(ctx context.Context, catalog isa.Catalog, filters isa.Filters) (isa.LocateResult, error)
	ExtractTables(ctx context.Context, reports map[string]isa.ReportID) (isa.Tables, error)
}

type Options struct {
	// Unit is the academic unit label every period is located for, defaults to "Informatique".
	Unit string
	// MinYear drops every report whose starting year sorts before it as a string, defaults to "2007".
	MinYear string
	// Concurrency bounds how many periods are located at once, defaults to 4.
	Concurrency int
	// Vocabulary defaults to DefaultVocabulary().
	Vocabulary Vocabulary
}

type Pipeline struct {
	scraper Scraper
	opts    Options
	tel     telemetry.API
}

func NewPipeline(scraper Scraper, opts Options, tel telemetry.API) Pipeline {
	assert.NotNil(scraper)
	assert.NotNil(tel)
	assert.NonNegative("concurrency", opts.Concurrency)

	if opts.Unit == "" {
		opts.Unit = "Informatique"
	}
	if opts.MinYear == "" {
		opts.MinYear = "2007"
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	if opts.Vocabulary == nil {
		opts.Vocabulary = DefaultVocabulary()
	}

	return Pipeline{
		scraper: scraper,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("registry", tel),
	}
}

// Result is the extraction of a single category.
type Result struct {
	Category Category
	// Reports are the reports that were extracted, keyed by label.
	Reports map[string]isa.ReportID
	Tables  isa.Tables
	// Skipped are report links that were located but had no usable code.
	Skipped []isa.LinkOutcome
	// Duplicates are reports whose label was already taken by a report with a
	// different code, same label and code is the same report and is merged.
	Duplicates []isa.ReportID
	// Dropped are reports excluded because they start before MinYear.
	Dropped []isa.ReportID
}

// Run locates the reports of every period of the category for the configured
// unit, drops the ones starting before MinYear and extracts the rest.
// An unsupported category is rejected before any request is made.
func (p Pipeline) Run(ctx context.Context, category Category) (Result, error) {
	periods, err := p.opts.Vocabulary.Periods(category)
	if err != nil {
		return Result{}, err
	}

	catalog, err := p.scraper.Catalog(ctx)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_run, fmt.Errorf("resolve catalog: %w", err), category)
		return Result{}, fmt.Errorf("%s: resolve catalog: %w", category, err)
	}

	located, err := p.locate(ctx, catalog, periods)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", category, err)
	}

	result := Result{
		Category: category,
		Reports:  map[string]isa.ReportID{},
	}
	for _, loc := range located {
		result.Skipped = append(result.Skipped, loc.Skipped...)
		result.Duplicates = append(result.Duplicates, loc.Duplicates...)

		for _, report := range loc.Sorted() {
			existing, taken := result.Reports[report.Label]
			if taken {
				if existing.Code != report.Code {
					p.tel.ReportWarning(report_pipeline_run, "duplicate report label", report.Label, existing.Code, report.Code)
					result.Duplicates = append(result.Duplicates, report)
				}
				continue
			}

			keep, err := startsFrom(report.Label, p.opts.MinYear)
			if err != nil {
				p.tel.ReportBroken(report_pipeline_run, err)
				return Result{}, fmt.Errorf("%s: %w", category, err)
			}
			if !keep {
				result.Dropped = append(result.Dropped, report)
				continue
			}
			result.Reports[report.Label] = report
		}
	}

	tables, err := p.scraper.ExtractTables(ctx, result.Reports)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", category, err)
	}
	result.Tables = tables

	p.tel.ReportCount(fmt.Sprintf("%s.%s.reports", report_pipeline_run, category), int64(len(result.Reports)))
	p.tel.ReportCount(fmt.Sprintf("%s.%s.skipped", report_pipeline_run, category), int64(len(result.Skipped)))
	return result, nil
}

// RunAll runs every category in order, nothing is requested if any of them is unsupported.
func (p Pipeline) RunAll(ctx context.Context, categories ...Category) (map[Category]Result, error) {
	for _, category := range categories {
		_, err := p.opts.Vocabulary.Periods(category)
		if err != nil {
			return nil, err
		}
	}

	out := make(map[Category]Result, len(categories))
	for _, category := range categories {
		result, err := p.Run(ctx, category)
		if err != nil {
			return nil, err
		}
		out[category] = result
	}
	return out, nil
}

// locate runs one locate request per period, results are in period order.
func (p Pipeline) locate(ctx context.Context, catalog isa.Catalog, periods []string) ([]isa.LocateResult, error) {
	located := make([]isa.LocateResult, len(periods))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.opts.Concurrency)
	for i, period := range periods {
		group.Go(func() error {
			res, err := p.scraper.LocateReports(groupCtx, catalog, isa.Filters{
				isa.UNIT:   p.opts.Unit,
				isa.PERIOD: period,
			})
			if err != nil {
				p.tel.ReportBroken(report_pipeline_locate, err, period)
				return fmt.Errorf("locate %q: %w", period, err)
			}
			located[i] = res
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}
	return located, nil
}

// startsFrom compares the starting year of a "<unit>, <start>-<end>, <period>"
// label against minYear as strings, which makes "999" count as later than "2007".
func startsFrom(label, minYear string) (bool, error) {
	parts := strings.Split(label, ", ")
	if len(parts) < 2 {
		return false, fmt.Errorf("%w: report label %q has no year range", isa.ErrStructure, label)
	}
	yearStart := strings.Split(parts[1], "-")[0]
	return yearStart >= minYear, nil
}
