package isa

import (
	"context"
	"fmt"
	"isa-registry/pkg/htmlutil"
	"slices"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

const (
	report_client_resolve_catalog = "client.resolve-catalog"
)

// Catalog maps each dimension's human labels to the portal's option codes.
// It is not modified after being resolved.
type Catalog map[Dimension]map[string]string

// Lookup resolves a label to its code.
func (c Catalog) Lookup(dim Dimension, label string) (string, error) {
	options, ok := c[dim]
	if !ok {
		return "", &LookupError{Dimension: dim, Label: label}
	}
	code, ok := options[label]
	if !ok {
		return "", &LookupError{
			Dimension:  dim,
			Label:      label,
			Suggestion: closestLabel(label, options),
		}
	}
	return code, nil
}

// Labels returns the labels of a dimension sorted alphabetically.
func (c Catalog) Labels(dim Dimension) []string {
	labels := make([]string, 0, len(c[dim]))
	for label := range c[dim] {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

func closestLabel(label string, options map[string]string) string {
	closest := ""
	var similarity float64
	for candidate := range options {
		sim := matchr.JaroWinkler(label, candidate, false)
		if sim > similarity || (sim == similarity && candidate < closest) {
			closest = candidate
			similarity = sim
		}
	}
	return closest
}

// ResolveCatalog requests the bare filter form and reads every option of the
// four dimension selects. It always goes to the network, see Catalog for the
// cached variant.
func (c *Client) ResolveCatalog(ctx context.Context) (Catalog, error) {
	ctx, span := tracer.Start(ctx, "ResolveCatalog")
	defer span.End()

	doc, err := c.fetch(ctx, STAGE_CATALOG, c.filterUrl(), c.layout.formParams())
	if err != nil {
		c.tel.ReportBroken(report_client_resolve_catalog, err)
		return nil, err
	}

	catalog, err := parseCatalog(doc, c.layout)
	if err != nil {
		c.tel.ReportBroken(report_client_resolve_catalog, err)
		return nil, err
	}
	for dim, options := range catalog {
		c.tel.ReportCount(fmt.Sprintf("%s.%s", report_client_resolve_catalog, dim), int64(len(options)))
	}

	c.catalogs.Add(c.baseUrl, catalog)
	return catalog, nil
}

// Catalog returns the last catalog resolved by this client if it has not
// expired yet, otherwise it resolves a new one.
func (c *Client) Catalog(ctx context.Context) (Catalog, error) {
	cached, hit := c.catalogs.Get(c.baseUrl)
	if hit {
		return cached, nil
	}
	return c.ResolveCatalog(ctx)
}

func parseCatalog(doc *goquery.Document, layout Layout) (Catalog, error) {
	catalog := make(Catalog, len(layout.ParamNames))
	for _, dim := range Dimensions() {
		name, ok := layout.ParamNames[dim]
		if !ok {
			continue
		}

		sel := doc.Find(fmt.Sprintf(`select[name="%s"]`, name)).First()
		if sel.Length() == 0 {
			return nil, fmt.Errorf("%w: filter form has no select named %s", ErrStructure, name)
		}

		options := map[string]string{}
		for _, option := range sel.Find("option").Nodes {
			label, ok := htmlutil.DirectString(option)
			if !ok || label == "" {
				continue
			}
			value, hasValue := "", false
			for _, attr := range option.Attr {
				if attr.Key == "value" {
					value, hasValue = attr.Val, true
					break
				}
			}
			// the portal ignores parameters it does not know, an empty code
			// would silently drop the filter
			if !hasValue {
				return nil, fmt.Errorf("%w: option %q of %s has no value", ErrStructure, label, name)
			}
			options[label] = value
		}
		catalog[dim] = options
	}
	return catalog, nil
}
