package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStatus = "status"
	ctxBody   = "body"
)

// PageClient fetches one catalog page and classifies the result.
// Implementations must always return an outcome for the requested page.
type PageClient interface {
	FetchPage(ctx context.Context, page int) models.PageOutcome
}

// Client is the colly-backed PageClient for the catalog API.
type Client struct {
	apiURL    string
	request   models.PageRequest
	headers   http.Header
	collector *colly.Collector
}

// pageEnvelope is the response body of the catalog endpoint.
type pageEnvelope struct {
	OK   bool `json:"ok"`
	Data struct {
		Items []models.RawItem `json:"items"`
	} `json:"data"`
}

// NewClient builds a synchronous collector that POSTs page requests to cfg.APIURL.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Concurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxBody, r.Body)
	})

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json, text/plain, */*")
	// colly only applies its own UserAgent when the request carries no headers.
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.Origin != "" {
		headers.Set("Origin", cfg.Origin)
	}

	return &Client{
		apiURL: cfg.APIURL,
		request: models.PageRequest{
			Language:   cfg.Language,
			Sort:       cfg.Sort,
			Limit:      cfg.Limit,
			CategoryID: cfg.CategoryID,
			TrackingID: cfg.TrackingID,
		},
		headers:   headers,
		collector: collector,
	}, nil
}

// FetchPage issues one request for page. It never returns without an outcome.
func (c *Client) FetchPage(ctx context.Context, page int) models.PageOutcome {
	start := time.Now()
	outcome := c.fetch(ctx, page)
	outcome.Duration = time.Since(start)
	return outcome
}

func (c *Client) fetch(ctx context.Context, page int) models.PageOutcome {
	if err := ctx.Err(); err != nil {
		return models.TransportFailure(page, err)
	}

	payload, err := json.Marshal(c.request.WithPage(page))
	if err != nil {
		return models.TransportFailure(page, fmt.Errorf("encode request: %w", err))
	}

	reqCtx := colly.NewContext()
	if err := c.collector.Request(http.MethodPost, c.apiURL, bytes.NewReader(payload), reqCtx, c.headers.Clone()); err != nil {
		return models.TransportFailure(page, classifyError(err))
	}

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if status == 0 {
		return models.TransportFailure(page, ErrConnection{Err: errors.New("no response received")})
	}
	if status != http.StatusOK {
		return models.HTTPFailure(page, status)
	}

	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	items, err := decodePage(body)
	if err != nil {
		return models.TransportFailure(page, err)
	}
	return models.Success(page, items)
}

func decodePage(body []byte) ([]models.RawItem, error) {
	var envelope pageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrDecode{Err: err}
	}
	if !envelope.OK {
		return nil, ErrRejected{Err: errors.New("upstream reported ok=false")}
	}
	return envelope.Data.Items, nil
}
