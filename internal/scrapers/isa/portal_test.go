package isa

import (
	"isa-registry/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	_ "embed"
)

//go:embed testdata/filter_form.html
var filterFormPage []byte

//go:embed testdata/report_links.html
var reportLinksPage []byte

//go:embed testdata/report_links_malformed.html
var reportLinksMalformedPage []byte

//go:embed testdata/student_table.html
var studentTablePage []byte

//go:embed testdata/student_table_short_row.html
var studentTableShortRowPage []byte

//go:embed testdata/no_table.html
var noTablePage []byte

// fakePortal serves fixtures the way the reports portal would.
type fakePortal struct {
	server *httptest.Server
	hits   atomic.Int64

	// listPage is served for filter requests carrying the list flag
	listPage []byte
	// tables maps a report code to its page, unknown codes get a 404
	tables map[string][]byte
	// lastQuery is the query of the latest filter request
	lastQuery atomic.Value
}

func newFakePortal(t testing.TB) *fakePortal {
	return newFakePortalWithList(t, reportLinksPage)
}

func newFakePortalWithList(t testing.TB, listPage []byte) *fakePortal {
	p := &fakePortal{
		listPage: listPage,
		tables: map[string][]byte{
			"1866893861": studentTablePage,
			"39486325":   studentTablePage,
			"555":        studentTableShortRowPage,
			"666":        noTablePage,
		},
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	p.hits.Add(1)

	query := r.URL.Query()
	switch {
	case strings.HasSuffix(r.URL.Path, "!GEDPUBLICREPORTS.filter"):
		p.lastQuery.Store(query)
		if query.Get("ww_b_list") == "" {
			w.Write(filterFormPage)
			return
		}
		w.Write(p.listPage)
	case strings.HasSuffix(r.URL.Path, "!GEDPUBLICREPORTS.html"):
		page, ok := p.tables[query.Get("ww_x_GPS")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(page)
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePortal) baseUrl() string {
	return p.server.URL + "/imoniteur_ISAP/!GEDPUBLICREPORTS"
}

func (p *fakePortal) client(t testing.TB, tel telemetry.API) *Client {
	if tel == nil {
		tel = telemetry.NewRecorder()
	}
	return NewClient(ClientOptions{
		BaseUrl:           p.baseUrl(),
		RequestsPerSecond: 1000,
	}, tel)
}
