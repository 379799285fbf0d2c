// Package models defines data structures for the scraper.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// PageRequest is the fixed query for one catalog page. Page is 1-based.
type PageRequest struct {
	Language   string `json:"lang"`
	Page       int    `json:"page"`
	Sort       string `json:"sort"`
	Limit      int    `json:"limit"`
	CategoryID int    `json:"filter_category"`
	TrackingID string `json:"param_srsltid"`
}

// WithPage returns a copy of r targeting page.
func (r PageRequest) WithPage(page int) PageRequest {
	r.Page = page
	return r
}

// RawItem is one catalog product exactly as the upstream API delivered it.
type RawItem json.RawMessage

// MarshalJSON returns the item bytes unchanged.
func (r RawItem) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON keeps a copy of data.
func (r *RawItem) UnmarshalJSON(data []byte) error {
	if r == nil {
		return errors.New("models.RawItem: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// Product pairs a raw item with its normalized record. Duplicate marks a
// record whose id was already exported; tabular outputs may omit it, the raw
// backup never does.
type Product struct {
	Raw       RawItem
	Record    Record
	Duplicate bool
}

// ScrapeResult holds the overall result of a fetch run.
type ScrapeResult struct {
	Items          []RawItem
	StartTime      time.Time
	EndTime        time.Time
	PageCount      int
	SucceededPages int
	FailedPages    []int
	ErrorsByType   map[string]int
}
