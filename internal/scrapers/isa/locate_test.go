package isa

import (
	"context"
	"isa-registry/internal/components/telemetry"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return Catalog{
		UNIT:          {"Informatique": "249847", "Physique": "246696"},
		ACADEMIC_YEAR: {"2016-2017": "355925711"},
		PERIOD:        {"Bachelor semestre 1": "249108", "Master semestre 1": "2230106"},
		SEMESTER_TYPE: {"Semestre d'automne": "2936286"},
	}
}

func TestLocateReports(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, nil)

	result, err := client.LocateReports(context.Background(), testCatalog(), Filters{
		UNIT:   "Informatique",
		PERIOD: "Bachelor semestre 1",
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]ReportID{
		"Informatique, 2007-2008, Bachelor semestre 1": {
			Code:  "39486325",
			Label: "Informatique, 2007-2008, Bachelor semestre 1",
		},
		"Informatique, 2016-2017, Bachelor semestre 1": {
			Code:  "1866893861",
			Label: "Informatique, 2016-2017, Bachelor semestre 1",
		},
	}
	if diff := cmp.Diff(expected, result.Reports); diff != "" {
		t.Fatalf("reports mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, result.Skipped)
	require.Empty(t, result.Duplicates)
	require.Len(t, result.Sorted(), 2)
	require.Equal(t, "39486325", result.Sorted()[0].Code)

	query, ok := portal.lastQuery.Load().(url.Values)
	require.True(t, ok)
	require.Equal(t, "249847", query.Get("ww_x_UNITE_ACAD"))
	require.Equal(t, "249108", query.Get("ww_x_PERIODE_PEDAGO"))
	require.Equal(t, "1", query.Get("ww_b_list"))
	require.False(t, query.Has("ww_x_PERIODE_ACAD"))
}

func TestLocateReportsIdempotent(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, nil)
	filters := Filters{UNIT: "Informatique", PERIOD: "Bachelor semestre 1"}

	first, err := client.LocateReports(context.Background(), testCatalog(), filters)
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.LocateReports(context.Background(), testCatalog(), filters)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated locate differs (-first +second):\n%s", diff)
	}
}

func TestLocateReportsEmptyFilters(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, nil)

	result, err := client.LocateReports(context.Background(), testCatalog(), Filters{})
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, result.Reports)
	require.EqualValues(t, 0, portal.hits.Load())
}

func TestLocateReportsUnknownLabel(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, nil)

	testCases := []Filters{
		{UNIT: "Informatique", PERIOD: "Bachelor semestre 9"},
		{UNIT: "Chimie"},
		{ACADEMIC_YEAR: "1999-2000"},
		{Dimension("faculty"): "IC"},
	}
	for _, filters := range testCases {
		_, err := client.LocateReports(context.Background(), testCatalog(), filters)
		require.ErrorIs(t, err, ErrLookup, filters)
	}
	require.EqualValues(t, 0, portal.hits.Load(), "lookup errors must happen before any request")
}

func TestLocateReportsEveryKnownLabel(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.client(t, nil)
	catalog := testCatalog()

	for _, dim := range Dimensions() {
		for _, label := range catalog.Labels(dim) {
			_, err := client.LocateReports(context.Background(), catalog, Filters{dim: label})
			require.NoError(t, err, "%s=%s", dim, label)
		}
	}
}

func TestLocateReportsSkipsMalformedLinks(t *testing.T) {
	portal := newFakePortalWithList(t, reportLinksMalformedPage)
	recorder := telemetry.NewRecorder()
	client := portal.client(t, recorder)

	result, err := client.LocateReports(context.Background(), testCatalog(), Filters{
		UNIT: "Informatique",
	})
	if err != nil {
		t.Fatal(err)
	}

	expectedReports := map[string]ReportID{
		"Informatique, 2008-2009, Bachelor semestre 1": {
			Code:  "123",
			Label: "Informatique, 2008-2009, Bachelor semestre 1",
		},
		"Informatique, 2011-2012, Bachelor semestre 1": {
			Code:  "456",
			Label: "Informatique, 2011-2012, Bachelor semestre 1",
		},
	}
	if diff := cmp.Diff(expectedReports, result.Reports); diff != "" {
		t.Fatalf("reports mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, result.Outcomes, 6)
	require.Len(t, result.Skipped, 2)
	require.Equal(t, "Informatique, 2009-2010, Bachelor semestre 1", result.Skipped[0].Label)
	require.Equal(t, "Informatique, 2010-2011, Bachelor semestre 1", result.Skipped[1].Label)
	for _, skipped := range result.Skipped {
		require.True(t, skipped.Skipped)
		require.NotEmpty(t, skipped.Reason)
	}

	require.Equal(t, []ReportID{{
		Code:  "789",
		Label: "Informatique, 2011-2012, Bachelor semestre 1",
	}}, result.Duplicates)

	// the last link repeats label and code of an earlier one, it is neither
	// a duplicate nor listed twice
	require.Equal(t, []ReportID{
		{Code: "123", Label: "Informatique, 2008-2009, Bachelor semestre 1"},
		{Code: "456", Label: "Informatique, 2011-2012, Bachelor semestre 1"},
	}, result.Sorted())

	// two skipped links + one duplicate
	require.Len(t, recorder.Reports(telemetry.REPORT_WARNING), 3)
	require.Empty(t, recorder.Reports(telemetry.REPORT_BROKEN))
}

func TestParseReportLinksWithoutLinks(t *testing.T) {
	portal := newFakePortalWithList(t, noTablePage)
	client := portal.client(t, nil)

	result, err := client.LocateReports(context.Background(), testCatalog(), Filters{
		UNIT: "Physique",
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, result.Reports)
	require.Empty(t, result.Outcomes)
}
