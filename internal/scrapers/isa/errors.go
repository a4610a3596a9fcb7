package isa

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches any failure to obtain a page: connection errors and non-2xx statuses.
	ErrTransport = errors.New("isa: transport failure")
	// ErrStructure matches pages that do not have the expected shape.
	ErrStructure = errors.New("isa: unexpected page structure")
	// ErrLookup matches filter labels (or dimensions) that are absent from the catalog.
	ErrLookup = errors.New("isa: filter label not in catalog")
)

const (
	STAGE_CATALOG = "catalog"
	STAGE_LOCATE  = "locate"
	STAGE_EXTRACT = "extract"
)

// TransportError tells which stage failed to reach the portal, so an expired
// session during catalog resolution can be told apart from one failing later.
type TransportError struct {
	Stage      string
	Url        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("isa %s: request %s: %s", e.Stage, e.Url, e.Err.Error())
	}
	return fmt.Sprintf("isa %s: request %s: status %d", e.Stage, e.Url, e.StatusCode)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type LookupError struct {
	Dimension Dimension
	Label     string
	// Suggestion is the closest known label, empty if the dimension itself is unknown.
	Suggestion string
}

func (e *LookupError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("isa: no %s named %q in catalog (did you mean %q?)", e.Dimension, e.Label, e.Suggestion)
	}
	return fmt.Sprintf("isa: no %s named %q in catalog", e.Dimension, e.Label)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}

// ShapeError is returned when a report table row has fewer cells than the layout addresses.
type ShapeError struct {
	Row    int
	Cells  int
	Column int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf(
		"isa: table row %d has %d cells, column %d is out of range",
		e.Row, e.Cells, e.Column,
	)
}

func (e *ShapeError) Is(target error) bool {
	return target == ErrStructure
}
