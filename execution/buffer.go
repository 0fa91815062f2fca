package execution

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
)

// DefaultFlushInterval is the cadence of the periodic flusher.
const DefaultFlushInterval = 1 * time.Second

// Buffer is the process-wide queue of output records awaiting persistence.
// Producers append from the monitors' drain goroutines; one flusher drains
// the queue into a single transaction per cadence. Records buffered at crash
// are lost, which is accepted: ordering and atomicity matter more here than
// durability.
type Buffer struct {
	store  *Store
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending []*OutputLog

	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBuffer creates an output buffer flushing at the given cadence.
// A non-positive interval falls back to DefaultFlushInterval.
func NewBuffer(store *Store, interval time.Duration, log *zap.SugaredLogger) *Buffer {
	return NewBufferWithContext(context.Background(), store, interval, log)
}

// NewBufferWithContext creates a buffer with a parent context.
func NewBufferWithContext(ctx context.Context, store *Store, interval time.Duration, log *zap.SugaredLogger) *Buffer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	bufCtx, cancel := context.WithCancel(ctx)

	return &Buffer{
		store:    store,
		logger:   log,
		interval: interval,
		ctx:      bufCtx,
		cancel:   cancel,
	}
}

// Log appends one record to the queue. It never blocks on the database.
func (b *Buffer) Log(record *OutputLog) {
	b.mu.Lock()
	b.pending = append(b.pending, record)
	b.mu.Unlock()
}

// Pending returns the number of records waiting to be flushed.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush drains the queue into one transaction. On failure the batch returns
// to the front of the queue, keeping FIFO order for the next attempt.
func (b *Buffer) Flush() error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := b.store.InsertOutputLogs(batch); err != nil {
		b.mu.Lock()
		b.pending = append(batch, b.pending...)
		b.mu.Unlock()
		return errors.Wrapf(err, "failed to flush %d output logs", len(batch))
	}

	return nil
}

// Start begins the periodic flusher
func (b *Buffer) Start() {
	b.wg.Add(1)
	go b.run()
	b.logger.Debugw("Output buffer flusher started", "interval", b.interval)
}

// Stop cancels the flusher and drains whatever is still buffered.
func (b *Buffer) Stop() {
	b.cancel()
	b.wg.Wait()
	b.logger.Debugw("Output buffer flusher stopped")
}

// run is the flusher loop
func (b *Buffer) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			if err := b.Flush(); err != nil {
				b.logFlushError(err)
			}
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.logFlushError(err)
			}
		}
	}
}

// logFlushError keeps a transient flush failure at warn level; the records
// stay queued and the next tick retries. A closed database only happens
// during shutdown and is not worth a warning.
func (b *Buffer) logFlushError(err error) {
	if db.IsDatabaseClosed(err) {
		b.logger.Debugw("Output buffer flush skipped", "error", err)
		return
	}
	b.logger.Warnw("Output buffer flush failed", "error", err, "pending", b.Pending())
}
