package filehost

import (
	"context"
	"io"
)

// Mirror is an external sink that receives a copy of every stored upload.
// Mirroring is best-effort: failures are logged by the caller and never
// surface to clients.
type Mirror interface {
	// Put stores size bytes read from r under the given relative path.
	Put(ctx context.Context, relativePath string, r io.Reader, size int64) error

	// Name identifies the sink in logs.
	Name() string
}

// MirrorJob describes one stored file awaiting mirroring.
type MirrorJob struct {
	RecordID     string
	RelativePath string
	Size         int64
}

// MirrorQueue accepts mirror jobs without blocking the caller.
type MirrorQueue interface {
	// Enqueue schedules the job. It never blocks and never fails the caller;
	// it reports false when the job was dropped.
	Enqueue(job MirrorJob) bool
}

// NopMirrorQueue drops every job. Used when mirroring is disabled.
type NopMirrorQueue struct{}

func (NopMirrorQueue) Enqueue(MirrorJob) bool { return false }
