package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// CSVWriter writes normalized records to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	header []string
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
// The header is the full normalized schema, so it does not depend on the data.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := parser.Schema()
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
		header: header,
	}, nil
}

// Write appends one row per product record. Products flagged as duplicates
// are skipped.
func (cw *CSVWriter) Write(products []*models.Product) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, product := range products {
		if product.Duplicate {
			continue
		}
		if err := cw.writer.Write(product.Record.Row(cw.header)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter dumps raw items as one indented JSON array.
type JSONWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
	mu     sync.Mutex
}

// NewJSONWriter initialises the JSON writer and opens the array.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	if _, err := buffer.WriteString("["); err != nil {
		f.Close()
		return nil, fmt.Errorf("write json prefix: %w", err)
	}
	return &JSONWriter{
		file:   f,
		writer: buffer,
	}, nil
}

// Write appends the raw item of each product to the array, duplicates included.
func (jw *JSONWriter) Write(products []*models.Product) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	var indented bytes.Buffer
	for _, product := range products {
		indented.Reset()
		raw, err := product.Raw.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		if err := json.Indent(&indented, raw, "  ", "  "); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}

		sep := ",\n  "
		if jw.count == 0 {
			sep = "\n  "
		}
		if _, err := jw.writer.WriteString(sep); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		if _, err := indented.WriteTo(jw.writer); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		jw.count++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close terminates the array, flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	suffix := "]\n"
	if jw.count > 0 {
		suffix = "\n]\n"
	}
	if _, err := jw.writer.WriteString(suffix); err != nil {
		return fmt.Errorf("write json suffix: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
