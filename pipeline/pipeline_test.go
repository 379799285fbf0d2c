package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Product
	closed      bool
	validateErr error
	writeErr    error
}

func (mw *mockWriter) Write(products []*models.Product) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.Product, len(products))
	copy(copyBatch, products)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) all() []*models.Product {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.Product
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write(products []*models.Product) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

func item(id int) models.RawItem {
	return models.RawItem(fmt.Sprintf(`{"id":%d,"title":"Product %d"}`, id, id))
}

func TestPipelinePreservesOrderAndNormalizes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 7
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)
	p.Start()

	var items []models.RawItem
	for i := 1; i <= 50; i++ {
		items = append(items, item(i))
	}
	if err := p.Process(items...); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	products := writer.all()
	if len(products) != 50 {
		t.Fatalf("written products = %d, want 50", len(products))
	}
	for i, product := range products {
		want := fmt.Sprintf("%d", i+1)
		if got := product.Record["id"].String(); got != want {
			t.Fatalf("products[%d].id = %q, want %q", i, got, want)
		}
		if string(product.Raw) != string(items[i]) {
			t.Fatalf("products[%d] raw = %s, want %s", i, product.Raw, items[i])
		}
	}
}

func TestPipelineCountsDuplicatesWithoutDropping(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)
	p.Start()

	if err := p.Process(item(1), item(2), item(1), models.RawItem(`{"title":"no id"}`)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	products := writer.all()
	if len(products) != 4 {
		t.Fatalf("written products = %d, want 4", len(products))
	}
	for i, product := range products {
		if product.Duplicate {
			t.Fatalf("products[%d] flagged duplicate with dedupe off", i)
		}
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["duplicate_id"] != 1 {
		t.Fatalf("duplicate_id = %d, want 1", validation["duplicate_id"])
	}
	if validation["invalid_record"] != 1 {
		t.Fatalf("invalid_record = %d, want 1", validation["invalid_record"])
	}
	if processed := metrics["processed_records"].(int64); processed != 4 {
		t.Fatalf("processed = %d, want 4", processed)
	}
}

func TestPipelineDedupeFlagsRepeatedIDs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dedupe = true
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)
	p.Start()

	if err := p.Process(item(1), item(2), item(1), item(3), item(2)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	products := writer.all()
	if len(products) != 5 {
		t.Fatalf("written products = %d, want 5", len(products))
	}
	wantDuplicate := []bool{false, false, true, false, true}
	for i, want := range wantDuplicate {
		if products[i].Duplicate != want {
			t.Fatalf("products[%d].Duplicate = %v, want %v", i, products[i].Duplicate, want)
		}
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(writer, cfg)
	p.Start()

	for i := 0; i < 65; i++ {
		if err := p.Process(item(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineWriterErrorIsSticky(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	writer := &mockWriter{writeErr: errors.New("disk full")}
	p := NewPipeline(writer, cfg)
	p.Start()

	_ = p.Process(item(1), item(2))

	err := p.Close()
	if err == nil || !errors.Is(err, writer.writeErr) {
		t.Fatalf("close error = %v, want wrapped disk full", err)
	}
	if err := p.Process(item(3)); err == nil {
		t.Fatalf("process after failure should error")
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{}, config.DefaultConfig())
	p.Start()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(item(1)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(writer, cfg)
	p.Start()

	if err := p.Process(item(1)); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}
