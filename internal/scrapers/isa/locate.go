package isa

import (
	"context"
	"isa-registry/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_client_locate_reports = "client.locate-reports"
)

// Filters holds a human readable label per dimension, ex. {UNIT: "Informatique"}.
type Filters map[Dimension]string

// ReportID identifies one renderable report page.
type ReportID struct {
	// Code is the portal's opaque report code.
	Code string
	// Label is the link text, typically "<unit>, <year>-<year>, <period>".
	Label string
}

// LinkOutcome is what happened to a single report link.
type LinkOutcome struct {
	Label   string
	Code    string
	Skipped bool
	Reason  string
}

type LocateResult struct {
	// Reports is keyed by label.
	Reports map[string]ReportID
	// Outcomes has one entry per report link (the aggregate link excluded) in page order.
	Outcomes []LinkOutcome
	// Skipped contains the outcomes of links that could not be turned into a ReportID.
	Skipped []LinkOutcome
	// Duplicates contains reports whose label was already taken by an earlier
	// link with a different code. A link repeating both label and code is the
	// same report and is not a duplicate.
	Duplicates []ReportID
}

// Sorted returns the located reports in page order, each once.
func (r LocateResult) Sorted() []ReportID {
	var out []ReportID
	emitted := map[string]bool{}
	for _, o := range r.Outcomes {
		if o.Skipped || emitted[o.Label] {
			continue
		}
		report, ok := r.Reports[o.Label]
		if ok && report.Code == o.Code {
			emitted[o.Label] = true
			out = append(out, report)
		}
	}
	return out
}

// LocateReports finds the report of every combination matching the given
// filters. An empty filter set returns an empty result without a request.
//
// A link whose code cannot be extracted is skipped and reported, the rest of
// the links are still located.
func (c *Client) LocateReports(ctx context.Context, catalog Catalog, filters Filters) (LocateResult, error) {
	ctx, span := tracer.Start(ctx, "LocateReports")
	defer span.End()

	result := LocateResult{Reports: map[string]ReportID{}}
	if len(filters) == 0 {
		return result, nil
	}

	params, err := c.layout.filterParams(catalog, filters)
	if err != nil {
		return LocateResult{}, err
	}
	for dim, label := range filters {
		span.SetAttributes(attribute.String(string(dim), label))
	}

	doc, err := c.fetch(ctx, STAGE_LOCATE, c.filterUrl(), params)
	if err != nil {
		c.tel.ReportBroken(report_client_locate_reports, err, filters)
		return LocateResult{}, err
	}

	result.Outcomes = parseReportLinks(doc, c.layout)
	for _, o := range result.Outcomes {
		if o.Skipped {
			c.tel.ReportWarning(report_client_locate_reports, "skipped report link", o.Label, o.Reason)
			result.Skipped = append(result.Skipped, o)
			continue
		}

		report := ReportID{Code: o.Code, Label: o.Label}
		existing, taken := result.Reports[o.Label]
		if taken && existing.Code == o.Code {
			continue
		}
		if taken {
			c.tel.ReportWarning(
				report_client_locate_reports,
				"duplicate report label",
				o.Label, existing.Code, o.Code,
			)
			result.Duplicates = append(result.Duplicates, report)
			continue
		}
		result.Reports[o.Label] = report
	}

	span.SetAttributes(
		attribute.Int("reports", len(result.Reports)),
		attribute.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func parseReportLinks(doc *goquery.Document, layout Layout) []LinkOutcome {
	links := doc.Find(layout.LinkSelector).Nodes
	if len(links) == 0 {
		return nil
	}

	// the first link lists every report at once ("Tous")
	links = links[1:]

	outcomes := make([]LinkOutcome, 0, len(links))
	for _, link := range links {
		label, ok := htmlutil.DirectString(link)
		if !ok || label == "" {
			outcomes = append(outcomes, LinkOutcome{
				Label:   htmlutil.GetText(link),
				Skipped: true,
				Reason:  "link has no plain text label",
			})
			continue
		}

		action := ""
		for _, attr := range link.Attr {
			if attr.Key == layout.LinkAttr {
				action = attr.Val
				break
			}
		}

		groups := layout.CodePattern.FindStringSubmatch(action)
		if len(groups) < 2 {
			outcomes = append(outcomes, LinkOutcome{
				Label:   label,
				Skipped: true,
				Reason:  "no report code found in " + layout.LinkAttr,
			})
			continue
		}

		outcomes = append(outcomes, LinkOutcome{
			Label: label,
			Code:  groups[1],
		})
	}
	return outcomes
}
