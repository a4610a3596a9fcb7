package isa

import (
	"context"
	"fmt"
	"isa-registry/pkg/htmlutil"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	report_client_extract_table = "client.extract-table"
)

// StudentRecord is one row of a student list report. Fields are never
// missing: an empty cell is "" and non-breaking spaces become plain spaces.
type StudentRecord struct {
	Gender         string `json:"gender"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Minor          string `json:"minor"`
	Status         string `json:"status"`
	Sciper         string `json:"sciper"`
}

// Tables maps a report label to its records in table order.
type Tables map[string][]StudentRecord

// ExtractTable fetches a single report and parses every record in it.
func (c *Client) ExtractTable(ctx context.Context, report ReportID) ([]StudentRecord, error) {
	ctx, span := tracer.Start(ctx, "ExtractTable")
	defer span.End()
	span.SetAttributes(
		attribute.String("label", report.Label),
		attribute.String("code", report.Code),
	)

	doc, err := c.fetch(ctx, STAGE_EXTRACT, c.reportUrl(), c.layout.reportParams(report.Code))
	if err != nil {
		c.tel.ReportBroken(report_client_extract_table, err, report.Label)
		return nil, err
	}

	records, err := parseStudentTable(doc, c.layout)
	if err != nil {
		c.tel.ReportBroken(report_client_extract_table, err, report.Label)
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// ExtractTables fetches every given report, at most ClientOptions.Concurrency
// at a time. Either every report is extracted or an error naming the first
// failing label is returned, a partial result is never returned.
func (c *Client) ExtractTables(ctx context.Context, reports map[string]ReportID) (Tables, error) {
	labels := make([]string, 0, len(reports))
	for label := range reports {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	results := make([][]StudentRecord, len(labels))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.concurrency)
	for i, label := range labels {
		report := reports[label]
		group.Go(func() error {
			records, err := c.ExtractTable(groupCtx, report)
			if err != nil {
				return fmt.Errorf("extract report %q (%s): %w", label, report.Code, err)
			}
			results[i] = records
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}

	tables := make(Tables, len(labels))
	for i, label := range labels {
		tables[label] = results[i]
	}
	return tables, nil
}

// cellText is the unambiguous text of a cell with its non-breaking spaces
// replaced, no other normalization is done.
func cellText(cell *html.Node) string {
	text, ok := htmlutil.DirectString(cell)
	if !ok {
		return ""
	}
	return strings.ReplaceAll(text, "\u00a0", " ")
}

func parseStudentTable(doc *goquery.Document, layout Layout) ([]StudentRecord, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: report page has no table", ErrStructure)
	}

	rows := table.Find("tr").Nodes
	if len(rows) <= layout.HeaderRows {
		return []StudentRecord{}, nil
	}
	rows = rows[layout.HeaderRows:]

	maxColumn := layout.Columns.max()
	records := make([]StudentRecord, len(rows))
	for i, row := range rows {
		cells := goquery.NewDocumentFromNode(row).Find("td").Nodes
		if len(cells) <= maxColumn {
			return nil, &ShapeError{
				Row:    i + layout.HeaderRows,
				Cells:  len(cells),
				Column: maxColumn,
			}
		}

		records[i] = StudentRecord{
			Gender:         cellText(cells[layout.Columns.Gender]),
			Name:           cellText(cells[layout.Columns.Name]),
			Specialization: cellText(cells[layout.Columns.Specialization]),
			Minor:          cellText(cells[layout.Columns.Minor]),
			Status:         cellText(cells[layout.Columns.Status]),
			Sciper:         cellText(cells[layout.Columns.Sciper]),
		}
	}
	return records, nil
}
