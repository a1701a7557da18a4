// Package identity resolves principal names to ids and back.
//
// The host owns the real identity service; Directory is a static, in-process
// implementation loaded from configuration and used by the shell and tests.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/chronicle/internal/record"
)

// ErrUnknownName is returned when a name has no principal id.
var ErrUnknownName = errors.New("unknown name")

// Resolver is the host identity service.
type Resolver interface {
	ResolveNameToID(ctx context.Context, name string) (uuid.UUID, error)
	// ResolveIDsToNames returns names for the ids it knows. Unknown ids are
	// absent from the map rather than an error.
	ResolveIDsToNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Principal is the requester of a command. Location is zero for principals
// with no position, such as the console.
type Principal struct {
	ID       uuid.UUID
	Name     string
	Location record.Location
}

// Located reports whether the principal has a position in a world.
func (p Principal) Located() bool {
	return !p.Location.IsZero()
}

// Console is the unlocated operator principal.
func Console() Principal {
	return Principal{Name: "console"}
}

// Directory is a static name/id table.
//
// Names match case-insensitively after NFC normalisation. Safe for concurrent
// use.
type Directory struct {
	mu      sync.RWMutex
	byName  map[string]uuid.UUID
	byID    map[uuid.UUID]string
	lookups atomic.Int64
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byName: make(map[string]uuid.UUID),
		byID:   make(map[uuid.UUID]string),
	}
}

// LoadDirectory builds a directory from name → uuid string entries.
func LoadDirectory(entries map[string]string) (*Directory, error) {
	d := NewDirectory()
	for name, raw := range entries {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("identity %q: %w", name, err)
		}
		d.Add(name, id)
	}
	return d, nil
}

// Add registers a principal. The display name keeps its original case.
func (d *Directory) Add(name string, id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[foldName(name)] = id
	d.byID[id] = name
}

// ResolveNameToID implements Resolver.
func (d *Directory) ResolveNameToID(ctx context.Context, name string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	d.mu.RLock()
	id, ok := d.byName[foldName(name)]
	d.mu.RUnlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return id, nil
}

// ResolveIDsToNames implements Resolver. Every call counts as one lookup.
func (d *Directory) ResolveIDsToNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.lookups.Add(1)

	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := d.byID[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Lookups returns how many batched id lookups the directory has served.
func (d *Directory) Lookups() int64 {
	return d.lookups.Load()
}

func foldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}
