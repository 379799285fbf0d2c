package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/jarcoal/httpmock"
)

const testAPIURL = "http://example.test/products"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIURL = testAPIURL
	cfg.Timeout = 2 * time.Second
	return cfg
}

// catalogResponder dispatches on the page index found in the request body and
// records every body it sees.
type recordingWriter struct {
	mu       sync.Mutex
	products []*models.Product
}

func (w *recordingWriter) Write(products []*models.Product) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.products = append(w.products, products...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) Validate() error { return nil }

type catalogResponder struct {
	pages map[int]httpmock.Responder

	mu       sync.Mutex
	requests []models.PageRequest
	headers  []http.Header
}

func (c *catalogResponder) respond(req *http.Request) (*http.Response, error) {
	var body models.PageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, "bad body"), nil
	}

	c.mu.Lock()
	c.requests = append(c.requests, body)
	c.headers = append(c.headers, req.Header.Clone())
	c.mu.Unlock()

	responder, ok := c.pages[body.Page]
	if !ok {
		return httpmock.NewStringResponse(http.StatusNotFound, ""), nil
	}
	return responder(req)
}

func pageBody(ids ...int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(`{"id":%d,"title":"Product %d","variants":[{"siteSize":"S"}]}`, id, id)
	}
	return fmt.Sprintf(`{"ok":true,"data":{"items":[%s]}}`, strings.Join(parts, ","))
}

func jsonResponder(status int, body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "application/json")
		return resp, nil
	}
}

func newMockedClient(t *testing.T, cfg *config.Config, responder *catalogResponder) *Client {
	t.Helper()
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, cfg.APIURL, responder.respond)
	client.collector.WithTransport(transport)
	return client
}

func TestClientFetchPageClassification(t *testing.T) {
	connRefused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name       string
		responder  httpmock.Responder
		wantKind   models.OutcomeKind
		wantStatus int
		wantItems  int
		wantLabel  string
	}{
		{name: "success", responder: jsonResponder(200, pageBody(1, 2)), wantKind: models.OutcomeSuccess, wantItems: 2, wantLabel: "success"},
		{name: "empty page", responder: jsonResponder(200, `{"ok":true,"data":{"items":[]}}`), wantKind: models.OutcomeSuccess, wantLabel: "success"},
		{name: "missing items", responder: jsonResponder(200, `{"ok":true,"data":{}}`), wantKind: models.OutcomeSuccess, wantLabel: "success"},
		{name: "server error", responder: jsonResponder(500, `{"ok":false}`), wantKind: models.OutcomeHTTPError, wantStatus: 500, wantLabel: "http_500"},
		{name: "rate limited", responder: jsonResponder(429, ""), wantKind: models.OutcomeHTTPError, wantStatus: 429, wantLabel: "http_429"},
		{name: "malformed body", responder: jsonResponder(200, `<html>oops</html>`), wantKind: models.OutcomeTransportError, wantLabel: "decode"},
		{name: "items not a list", responder: jsonResponder(200, `{"ok":true,"data":{"items":{}}}`), wantKind: models.OutcomeTransportError, wantLabel: "decode"},
		{name: "ok false", responder: jsonResponder(200, `{"ok":false,"data":{"items":[]}}`), wantKind: models.OutcomeTransportError, wantLabel: "rejected"},
		{name: "connection refused", responder: httpmock.NewErrorResponder(connRefused), wantKind: models.OutcomeTransportError, wantLabel: "connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &catalogResponder{pages: map[int]httpmock.Responder{7: tt.responder}}
			client := newMockedClient(t, testConfig(), responder)

			outcome := client.FetchPage(context.Background(), 7)

			if outcome.Page != 7 {
				t.Fatalf("page = %d, want 7", outcome.Page)
			}
			if outcome.Kind != tt.wantKind {
				t.Fatalf("kind = %v, want %v (%s)", outcome.Kind, tt.wantKind, outcome.Describe())
			}
			if outcome.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", outcome.StatusCode, tt.wantStatus)
			}
			if len(outcome.Items) != tt.wantItems {
				t.Fatalf("items = %d, want %d", len(outcome.Items), tt.wantItems)
			}
			if got := outcomeLabel(outcome); got != tt.wantLabel {
				t.Fatalf("label = %q, want %q", got, tt.wantLabel)
			}
		})
	}
}

func TestClientSendsFixedParameters(t *testing.T) {
	cfg := testConfig()
	responder := &catalogResponder{pages: map[int]httpmock.Responder{3: jsonResponder(200, pageBody(1))}}
	client := newMockedClient(t, cfg, responder)

	client.FetchPage(context.Background(), 3)

	if len(responder.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(responder.requests))
	}
	want := models.PageRequest{
		Language:   cfg.Language,
		Page:       3,
		Sort:       cfg.Sort,
		Limit:      cfg.Limit,
		CategoryID: cfg.CategoryID,
		TrackingID: cfg.TrackingID,
	}
	if responder.requests[0] != want {
		t.Fatalf("request body = %+v, want %+v", responder.requests[0], want)
	}
	header := responder.headers[0]
	if got := header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
	if got := header.Get("Origin"); got != cfg.Origin {
		t.Fatalf("origin = %q, want %q", got, cfg.Origin)
	}
	if cfg.UserAgent == "" {
		t.Fatalf("default config should carry a user agent")
	}
	if got := header.Get("User-Agent"); got != cfg.UserAgent {
		t.Fatalf("user agent = %q, want %q", got, cfg.UserAgent)
	}
}

func TestClientKeepsRawItemsVerbatim(t *testing.T) {
	raw := `{"id":5,"price":12.50,"brand":{"title":"X"},"extra":[1,2,3]}`
	body := `{"ok":true,"data":{"items":[` + raw + `]}}`
	responder := &catalogResponder{pages: map[int]httpmock.Responder{1: jsonResponder(200, body)}}
	client := newMockedClient(t, testConfig(), responder)

	outcome := client.FetchPage(context.Background(), 1)
	if !outcome.OK() || len(outcome.Items) != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if got := string(outcome.Items[0]); got != raw {
		t.Fatalf("raw item = %s, want %s", got, raw)
	}
}

func TestClientCanceledContext(t *testing.T) {
	responder := &catalogResponder{pages: map[int]httpmock.Responder{1: jsonResponder(200, pageBody(1))}}
	client := newMockedClient(t, testConfig(), responder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := client.FetchPage(ctx, 1)
	if outcome.Kind != models.OutcomeTransportError || outcomeLabel(outcome) != "canceled" {
		t.Fatalf("outcome = %+v, want canceled transport error", outcome)
	}
	if len(responder.requests) != 0 {
		t.Fatalf("no request should be sent after cancellation")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "context canceled", err: context.Canceled, expected: "canceled"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err)); got != tt.expected {
				t.Fatalf("classifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestScraperRunPartialFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Pages = 3
	cfg.Concurrency = 2

	responder := &catalogResponder{pages: map[int]httpmock.Responder{
		1: jsonResponder(200, pageBody(101, 102)),
		2: jsonResponder(500, ""),
		3: jsonResponder(200, pageBody(301)),
	}}

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, cfg.APIURL, responder.respond)
	s.client.collector.WithTransport(transport)

	result := s.Run(context.Background())

	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3 (errors=%v)", len(result.Items), result.ErrorsByType)
	}
	for i, want := range []string{"101", "102", "301"} {
		var decoded struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(result.Items[i], &decoded); err != nil {
			t.Fatalf("decode item %d: %v", i, err)
		}
		if decoded.ID.String() != want {
			t.Fatalf("items[%d].id = %s, want %s", i, decoded.ID, want)
		}
	}
	if len(result.FailedPages) != 1 || result.FailedPages[0] != 2 {
		t.Fatalf("failed pages = %v, want [2]", result.FailedPages)
	}
	if result.SucceededPages != 2 {
		t.Fatalf("succeeded pages = %d, want 2", result.SucceededPages)
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
	if result.EndTime.Before(result.StartTime) {
		t.Fatalf("end time before start time")
	}

	writer := &recordingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	p.Start()
	if err := p.Process(result.Items...); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}
	if len(writer.products) != 3 {
		t.Fatalf("records = %d, want 3", len(writer.products))
	}
	for i, want := range []string{"101", "102", "301"} {
		if got := writer.products[i].Record["id"].String(); got != want {
			t.Fatalf("records[%d].id = %q, want %q", i, got, want)
		}
	}
}
