package requestlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultBuffer is the async write channel capacity. Requests are never
// blocked on the request log: when the buffer is full the record is
// dropped and counted in the log.
const defaultBuffer = 1000

// writeTimeout bounds a single storage write.
const writeTimeout = 5 * time.Second

// Recorder writes request records asynchronously. Enqueue never blocks
// request handling.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	recordChan chan Record
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewRecorder starts a recorder draining into store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	r := &Recorder{
		store:      store,
		logger:     logger,
		recordChan: make(chan Record, defaultBuffer),
		done:       make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Record assigns the record an ID and enqueues it. When the buffer is
// full the record is dropped with a log entry rather than blocking the
// caller.
func (r *Recorder) Record(rec Record) {
	rec.ID = uuid.NewString()
	select {
	case r.recordChan <- rec:
	default:
		r.logger.Warn("request log buffer full, dropping record",
			"request_id", rec.RequestID,
		)
	}
}

// Close drains pending records and stops the worker.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.write(rec)
		case <-r.done:
			// Drain whatever is already enqueued before exiting.
			for {
				select {
				case rec := <-r.recordChan:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.Insert(ctx, rec); err != nil {
		r.logger.Warn("writing request log record failed",
			"error", err,
			"request_id", rec.RequestID,
		)
	}
}
