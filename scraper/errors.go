package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrDecode indicates a 200 response whose body is not the expected page shape.
type ErrDecode struct {
	Err error
}

func (e ErrDecode) Error() string {
	return fmt.Errorf("decode: %w", e.Err).Error()
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

// ErrRejected indicates a 200 response whose body reported ok=false.
type ErrRejected struct {
	Err error
}

func (e ErrRejected) Error() string {
	return fmt.Errorf("rejected: %w", e.Err).Error()
}

func (e ErrRejected) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var decode ErrDecode
	if errors.As(err, &decode) {
		return "decode"
	}
	var rejected ErrRejected
	if errors.As(err, &rejected) {
		return "rejected"
	}
	return "other"
}

// outcomeLabel names the failure kind of an outcome for logs and metrics.
func outcomeLabel(o models.PageOutcome) string {
	switch o.Kind {
	case models.OutcomeSuccess:
		return "success"
	case models.OutcomeHTTPError:
		return fmt.Sprintf("http_%d", o.StatusCode)
	case models.OutcomeTransportError:
		return errorTypeLabel(o.Err)
	default:
		return "unknown"
	}
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return err
}
