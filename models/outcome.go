package models

import (
	"fmt"
	"time"
)

// OutcomeKind tags the variant held by a PageOutcome.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSuccess
	OutcomeHTTPError
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// PageOutcome is the classified result of fetching one page.
// Items is only meaningful for OutcomeSuccess, StatusCode for OutcomeHTTPError
// and Err for OutcomeTransportError.
type PageOutcome struct {
	Page       int
	Kind       OutcomeKind
	Items      []RawItem
	StatusCode int
	Err        error
	Duration   time.Duration
}

// Success builds a successful outcome. A nil items slice is stored as empty.
func Success(page int, items []RawItem) PageOutcome {
	if items == nil {
		items = []RawItem{}
	}
	return PageOutcome{Page: page, Kind: OutcomeSuccess, Items: items}
}

// HTTPFailure builds an outcome for a non-success status.
func HTTPFailure(page, status int) PageOutcome {
	return PageOutcome{Page: page, Kind: OutcomeHTTPError, StatusCode: status}
}

// TransportFailure builds an outcome for a request that produced no usable response.
func TransportFailure(page int, err error) PageOutcome {
	return PageOutcome{Page: page, Kind: OutcomeTransportError, Err: err}
}

// OK reports whether the outcome carries items.
func (o PageOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Describe renders the failure for diagnostics.
func (o PageOutcome) Describe() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("%d items", len(o.Items))
	case OutcomeHTTPError:
		return fmt.Sprintf("http status %d", o.StatusCode)
	case OutcomeTransportError:
		if o.Err == nil {
			return "transport error"
		}
		return o.Err.Error()
	default:
		return "not attempted"
	}
}
