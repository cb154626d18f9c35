package testutil

import (
	"sync"

	"filehost/internal/filehost"
)

// RecordingMirrorQueue accepts every job and remembers it.
type RecordingMirrorQueue struct {
	mu   sync.Mutex
	jobs []filehost.MirrorJob
}

func NewRecordingMirrorQueue() *RecordingMirrorQueue {
	return &RecordingMirrorQueue{}
}

func (q *RecordingMirrorQueue) Enqueue(job filehost.MirrorJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

// Jobs returns the enqueued jobs in order.
func (q *RecordingMirrorQueue) Jobs() []filehost.MirrorJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]filehost.MirrorJob(nil), q.jobs...)
}
