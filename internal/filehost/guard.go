package filehost

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest directory password bcrypt accepts.
const MaxPasswordBytes = 72

// ProtectionStore persists the protected-directory table.
// Save always receives the complete table.
type ProtectionStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, entries map[string]string) error
}

// AccessGuard maps directories to password hashes and verifies credentials.
// Protection is inherited: the nearest protected ancestor governs.
// There is no lockout or backoff on failed attempts.
type AccessGuard struct {
	mu      sync.RWMutex
	entries map[string]string // normalized directory -> bcrypt hash of the password
	store   ProtectionStore
	logger  Logger
	cost    int
}

// NewAccessGuard loads the protection table from store. New passwords are
// hashed with bcrypt.DefaultCost.
func NewAccessGuard(ctx context.Context, store ProtectionStore, logger Logger) (*AccessGuard, error) {
	return NewAccessGuardWithCost(ctx, store, logger, bcrypt.DefaultCost)
}

// NewAccessGuardWithCost is NewAccessGuard with an explicit bcrypt cost.
func NewAccessGuardWithCost(ctx context.Context, store ProtectionStore, logger Logger, cost int) (*AccessGuard, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading protected directories: %w", err)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return &AccessGuard{
		entries: entries,
		store:   store,
		logger:  logger,
		cost:    cost,
	}, nil
}

// HashPassword returns the salted bcrypt hash stored for a directory password.
func HashPassword(secret string, cost int) (string, error) {
	if len(secret) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: at most %d bytes", ErrPasswordTooLong, MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// governing returns the hash of the nearest protected ancestor of dir (dir included).
func (g *AccessGuard) governing(dir string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	candidate := dir
	for {
		if hash, ok := g.entries[candidate]; ok {
			return hash, true
		}
		if candidate == "" {
			return "", false
		}
		if i := strings.LastIndexByte(candidate, '/'); i >= 0 {
			candidate = candidate[:i]
		} else {
			candidate = ""
		}
	}
}

// IsProtected reports whether dir or any of its ancestors has a password.
func (g *AccessGuard) IsProtected(dir string) bool {
	_, ok := g.governing(dir)
	return ok
}

// Verify reports whether secret grants access to dir. A nil secret means
// no credential was supplied.
func (g *AccessGuard) Verify(dir string, secret *string) bool {
	hash, ok := g.governing(dir)
	if !ok {
		return true
	}
	if secret == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(*secret)) == nil
}

// Check is Verify returning ErrAccessDenied on failure.
func (g *AccessGuard) Check(dir string, secret *string) error {
	if !g.Verify(dir, secret) {
		return fmt.Errorf("%w: %q", ErrAccessDenied, dir)
	}
	return nil
}

// Protect sets the password of dir, replacing any existing one, and persists the table.
func (g *AccessGuard) Protect(ctx context.Context, dir, secret string) error {
	hash, err := HashPassword(secret, g.cost)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries[dir] = hash
	if err := g.store.Save(ctx, g.snapshot()); err != nil {
		return fmt.Errorf("saving protected directories: %w", err)
	}
	g.logger.Info("directory protected", "directory", dir)
	return nil
}

// Unprotect removes the entry for exactly dir. Descendant entries are kept.
func (g *AccessGuard) Unprotect(ctx context.Context, dir string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entries[dir]; !ok {
		return nil
	}
	delete(g.entries, dir)
	if err := g.store.Save(ctx, g.snapshot()); err != nil {
		return fmt.Errorf("saving protected directories: %w", err)
	}
	g.logger.Info("directory unprotected", "directory", dir)
	return nil
}

// snapshot copies the table. Callers must hold mu.
func (g *AccessGuard) snapshot() map[string]string {
	out := make(map[string]string, len(g.entries))
	for k, v := range g.entries {
		out[k] = v
	}
	return out
}
