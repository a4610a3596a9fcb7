// client.go contains the transport side of scraping the public reports portal,
// the three extraction stages live in catalog.go, locate.go and extract.go.

package isa

import (
	"bytes"
	"context"
	"fmt"
	"isa-registry/internal/components/assert"
	"isa-registry/internal/components/telemetry"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const DEFAULT_BASE_URL = "http://isa.epfl.ch/imoniteur_ISAP/!GEDPUBLICREPORTS"

var tracer = otel.Tracer("isa-registry.scrapers.isa")

type ClientOptions struct {
	// BaseUrl is the report endpoint without its ".filter" or ".html" suffix.
	BaseUrl string
	// Cookie is sent verbatim as the cookie header when non-empty.
	Cookie string
	// Timeout bounds every single request, defaults to 30 seconds.
	Timeout time.Duration
	// RequestsPerSecond limits the request rate, defaults to 4.
	RequestsPerSecond float64
	// Concurrency bounds how many report tables are fetched at once, defaults to 4.
	Concurrency int
	// CatalogTTL is how long a resolved catalog is reused by Catalog, defaults to 1 hour.
	CatalogTTL time.Duration
	// Layout defaults to DefaultLayout().
	Layout *Layout
}

type Client struct {
	http        *resty.Client
	baseUrl     string
	layout      Layout
	concurrency int
	catalogs    *expirable.LRU[string, Catalog]

	tel telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) *Client {
	assert.NotNil(tel)
	assert.NonNegative("concurrency", opts.Concurrency)

	tel = telemetry.NewScopedAPI("isa_scraper", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DEFAULT_BASE_URL
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 4
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	if opts.CatalogTTL == 0 {
		opts.CatalogTTL = time.Hour
	}
	layout := DefaultLayout()
	if opts.Layout != nil {
		layout = *opts.Layout
	}

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeaders(map[string]string{
		"upgrade-insecure-requests": "1",
		"user-agent":                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/53.0.2785.143 Safari/537.36",
		"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		// resty only decodes gzip, a wider accept-encoding would leave bodies compressed
		"accept-encoding": "gzip",
		"accept-language": "en,fr;q=0.8",
		"cache-control":   "no-cache",
	})
	if opts.Cookie != "" {
		httpClient.SetHeader("cookie", opts.Cookie)
	}

	// max burst >= 1 just means that no requests will be dropped
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		http:        httpClient,
		baseUrl:     opts.BaseUrl,
		layout:      layout,
		concurrency: opts.Concurrency,
		catalogs:    expirable.NewLRU[string, Catalog](16, nil, opts.CatalogTTL),
		tel:         tel,
	}
}

// Layout returns the layout the client scrapes with.
func (c *Client) Layout() Layout {
	return c.layout
}

func (c *Client) filterUrl() string {
	return c.baseUrl + ".filter"
}

func (c *Client) reportUrl() string {
	return c.baseUrl + ".html"
}

// fetch performs a single GET and parses the response, no retries are attempted.
func (c *Client) fetch(ctx context.Context, stage, endpoint string, params map[string]string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "fetch:"+stage)
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, &TransportError{Stage: stage, Url: endpoint, Err: err}
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, res.Status())
		return nil, &TransportError{Stage: stage, Url: endpoint, StatusCode: res.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("%w: parse %s page: %s", ErrStructure, stage, err.Error())
	}
	return doc, nil
}
