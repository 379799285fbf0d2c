package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	APIURL     string
	Origin     string
	UserAgent  string
	Language   string
	Sort       string
	Limit      int
	CategoryID int
	TrackingID string

	Pages       int
	Concurrency int
	Timeout     time.Duration

	OutputDir    string
	OutputPrefix string
	OutputFormat string // csv, json, or dual

	Dedupe             bool
	DedupeMaxSize      int
	PipelineBufferSize int
	BatchSize          int

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the parameters of the current catalog snapshot.
func DefaultConfig() *Config {
	return &Config{
		APIURL:             "https://premium-api-production.up.railway.app/products",
		Origin:             "https://www.premiumoutlet.az",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Language:           "az",
		Sort:               "",
		Limit:              30,
		CategoryID:         4,
		TrackingID:         "AfmBOoqYkwwKtgLjHJ8RJc6S5lAOiqf3tQRSuSaQe_fRqarwzprfL8e0",
		Pages:              213,
		Concurrency:        10,
		Timeout:            30 * time.Second,
		OutputDir:          ".",
		OutputPrefix:       "premium_outlet_products",
		OutputFormat:       "dual",
		Dedupe:             false,
		DedupeMaxSize:      100000,
		PipelineBufferSize: 512,
		BatchSize:          64,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("API URL must include a host")
	}

	if c.Pages < 0 {
		return fmt.Errorf("pages cannot be negative")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("page size limit must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputPrefix == "" {
		return fmt.Errorf("output prefix cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// OutputPaths names the CSV and JSON artifacts of a run started at ts.
func (c *Config) OutputPaths(ts time.Time) (csvPath, jsonPath string) {
	base := fmt.Sprintf("%s_%s", c.OutputPrefix, ts.Format("20060102_150405"))
	dir := c.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, base+".csv"), filepath.Join(dir, base+".json")
}
