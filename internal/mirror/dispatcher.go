package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filehost/internal/filehost"
	"filehost/internal/metrics"
)

// Dispatcher copies stored files to a Mirror in the background. A fixed pool
// of workers drains a bounded queue; Enqueue never blocks and drops jobs when
// the queue is full. There are no retries.
type Dispatcher struct {
	mirror  filehost.Mirror
	fsmgr   filehost.FilesystemManager
	logger  filehost.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	jobs chan filehost.MirrorJob
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize
// jobs. Each job gets its own timeout (0 means no timeout). m may be nil.
func NewDispatcher(mirror filehost.Mirror, fsmgr filehost.FilesystemManager, logger filehost.Logger, m *metrics.Metrics, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	d := &Dispatcher{
		mirror:  mirror,
		fsmgr:   fsmgr,
		logger:  logger,
		metrics: m,
		timeout: timeout,
		jobs:    make(chan filehost.MirrorJob, queueSize),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Enqueue schedules job without blocking. It reports false when the
// dispatcher is closed or the queue is full.
func (d *Dispatcher) Enqueue(job filehost.MirrorJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("mirror job dropped: dispatcher closed", "path", job.RelativePath)
		d.metrics.ObserveMirrorJob(metrics.MirrorDropped, 0)
		return false
	}

	select {
	case d.jobs <- job:
		return true
	default:
		d.logger.Warn("mirror job dropped: queue full", "path", job.RelativePath, "mirror", d.mirror.Name())
		d.metrics.ObserveMirrorJob(metrics.MirrorDropped, 0)
		return false
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		start := time.Now()
		if err := d.run(job); err != nil {
			d.logger.Error("mirror job failed",
				"path", job.RelativePath,
				"id", job.RecordID,
				"mirror", d.mirror.Name(),
				"error", err)
			d.metrics.ObserveMirrorJob(metrics.MirrorFailed, time.Since(start))
			continue
		}
		d.logger.Debug("mirrored file", "path", job.RelativePath, "mirror", d.mirror.Name())
		d.metrics.ObserveMirrorJob(metrics.MirrorOK, time.Since(start))
	}
}

func (d *Dispatcher) run(job filehost.MirrorJob) error {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	f, err := d.fsmgr.Open(job.RelativePath)
	if err != nil {
		return fmt.Errorf("opening stored file: %w", err)
	}
	defer f.Close()

	return d.mirror.Put(ctx, job.RelativePath, f, job.Size)
}

// Compile-time check that Dispatcher implements filehost.MirrorQueue
var _ filehost.MirrorQueue = (*Dispatcher)(nil)
