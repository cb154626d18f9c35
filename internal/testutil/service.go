package testutil

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"filehost/internal/filehost"
	"filehost/internal/protection"
)

// ServiceEnv bundles a FileService with its in-memory dependencies.
type ServiceEnv struct {
	Service    *filehost.FileService
	Store      filehost.MetadataStore
	FS         *FaultyFilesystem
	Guard      *filehost.AccessGuard
	Protection *protection.MemoryStore
	Mirror     *RecordingMirrorQueue
	Clock      *StubClock
	IDs        *StubIDGenerator
}

// NewTestGuard creates an AccessGuard over an in-memory protection table.
// entries maps directories to plaintext passwords. Hashing uses
// bcrypt.MinCost to keep tests fast.
func NewTestGuard(t *testing.T, entries map[string]string) (*filehost.AccessGuard, *protection.MemoryStore) {
	t.Helper()

	hashed := make(map[string]string, len(entries))
	for dir, password := range entries {
		hash, err := filehost.HashPassword(password, bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		hashed[dir] = hash
	}
	store := protection.NewMemoryStore(hashed)

	guard, err := filehost.NewAccessGuardWithCost(context.Background(), store, filehost.NewNopLogger(), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to create guard: %v", err)
	}
	return guard, store
}

// NewTestService creates a FileService over an in-memory store and upload
// root, with default limits.
func NewTestService(t *testing.T) *ServiceEnv {
	t.Helper()
	return NewTestServiceWithLimits(t, filehost.DefaultLimits())
}

// NewTestServiceWithLimits is NewTestService with custom upload limits.
func NewTestServiceWithLimits(t *testing.T, limits filehost.Limits) *ServiceEnv {
	t.Helper()

	env := &ServiceEnv{
		Store:  NewTestStore(t),
		FS:     NewFaultyFilesystem(NewTestFilesystem(t)),
		Mirror: NewRecordingMirrorQueue(),
		Clock:  FixedClock(),
		IDs:    NewStubIDGenerator(),
	}
	env.Guard, env.Protection = NewTestGuard(t, nil)
	env.Service = filehost.NewFileService(
		env.Store,
		env.FS,
		env.Guard,
		env.Mirror,
		filehost.NewNopLogger(),
		env.Clock,
		env.IDs,
		limits,
	)
	return env
}
