package isa

import (
	"fmt"
	"regexp"
)

// Dimension is one of the fixed filters the report form accepts.
type Dimension string

const (
	UNIT          Dimension = "unit"
	ACADEMIC_YEAR Dimension = "academic_year"
	PERIOD        Dimension = "period"
	SEMESTER_TYPE Dimension = "semester_type"
)

// Dimensions returns every dimension in a stable order.
func Dimensions() []Dimension {
	return []Dimension{UNIT, ACADEMIC_YEAR, PERIOD, SEMESTER_TYPE}
}

func ParseDimension(name string) (Dimension, error) {
	for _, d := range Dimensions() {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown filter dimension %q", name)
}

// Columns holds the positions of each record field among a table row's cells.
type Columns struct {
	Gender         int
	Name           int
	Specialization int
	Minor          int
	Status         int
	Sciper         int
}

func (c Columns) max() int {
	out := c.Gender
	for _, i := range []int{c.Name, c.Specialization, c.Minor, c.Status, c.Sciper} {
		if i > out {
			out = i
		}
	}
	return out
}

// Layout describes how the portal is addressed and how its pages are shaped.
// Every positional assumption about the report pages lives here, nothing is
// inferred from the pages themselves.
type Layout struct {
	// DefaultParams are sent with every request.
	DefaultParams map[string]string
	// ListParam is removed from DefaultParams when requesting the bare filter form.
	ListParam string
	// ParamNames maps a dimension to the name of its <select> and query parameter.
	ParamNames map[Dimension]string
	// ReportParam carries the report code when requesting a report table.
	ReportParam string
	// LinkSelector matches the report links on a filtered form page.
	LinkSelector string
	// LinkAttr is the link attribute the report code is embedded in.
	LinkAttr string
	// CodePattern extracts the report code from LinkAttr, first submatch.
	CodePattern *regexp.Regexp
	// HeaderRows is the number of leading <tr> of the report table that are not records.
	HeaderRows int
	Columns    Columns
}

// DefaultLayout is the layout of the html student list report
// (report model 133685247, stylesheet 133685270).
func DefaultLayout() Layout {
	return Layout{
		DefaultParams: map[string]string{
			"ww_i_reportmodel":    "133685247",
			"ww_i_reportModelXsl": "133685270",
			"ww_b_list":           "1",
		},
		ListParam: "ww_b_list",
		ParamNames: map[Dimension]string{
			UNIT:          "ww_x_UNITE_ACAD",
			ACADEMIC_YEAR: "ww_x_PERIODE_ACAD",
			PERIOD:        "ww_x_PERIODE_PEDAGO",
			SEMESTER_TYPE: "ww_x_HIVERETE",
		},
		ReportParam:  "ww_x_GPS",
		LinkSelector: "a.ww_x_GPS",
		LinkAttr:     "onclick",
		CodePattern:  regexp.MustCompile(`ww_x_GPS=(\d+)`),
		HeaderRows:   2,
		Columns: Columns{
			Gender:         0,
			Name:           1,
			Specialization: 4,
			Minor:          6,
			Status:         7,
			Sciper:         10,
		},
	}
}

// listParams is DefaultParams as a fresh map.
func (l Layout) listParams() map[string]string {
	out := make(map[string]string, len(l.DefaultParams)+len(l.ParamNames))
	for k, v := range l.DefaultParams {
		out[k] = v
	}
	return out
}

// formParams makes the server answer with the filter form instead of a report list.
func (l Layout) formParams() map[string]string {
	out := l.listParams()
	delete(out, l.ListParam)
	return out
}

func (l Layout) reportParams(code string) map[string]string {
	out := l.listParams()
	out[l.ReportParam] = code
	return out
}

// filterParams resolves every filter label to its code, nothing is sent if
// any label cannot be resolved.
func (l Layout) filterParams(catalog Catalog, filters Filters) (map[string]string, error) {
	out := l.listParams()
	for dim, label := range filters {
		name, ok := l.ParamNames[dim]
		if !ok {
			return nil, &LookupError{Dimension: dim, Label: label}
		}
		code, err := catalog.Lookup(dim, label)
		if err != nil {
			return nil, err
		}
		out[name] = code
	}
	return out, nil
}
