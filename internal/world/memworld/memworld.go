// Package memworld is an in-memory World used by the shell and tests.
package memworld

import (
	"sort"
	"sync"

	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/world"
)

var _ world.CubeScanner = (*World)(nil)

// World stores non-air blocks in a map. Positions in worlds it was not
// created with are refused.
type World struct {
	mu     sync.RWMutex
	worlds map[string]bool
	blocks map[record.Location]world.Snapshot
	writes int
}

// New creates a world set containing the named worlds.
func New(worlds ...string) *World {
	w := &World{
		worlds: make(map[string]bool, len(worlds)),
		blocks: make(map[record.Location]world.Snapshot),
	}
	for _, name := range worlds {
		w.worlds[name] = true
	}
	return w
}

// ReadSnapshot implements world.World. Empty positions read as air.
func (w *World) ReadSnapshot(loc record.Location) (world.Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if s, ok := w.blocks[loc]; ok {
		return s, nil
	}
	return world.Block(world.Air), nil
}

// ApplySnapshot implements world.World.
func (w *World) ApplySnapshot(loc record.Location, s world.Snapshot) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.worlds[loc.World] {
		return false, nil
	}
	w.writes++
	if s.IsAir() {
		delete(w.blocks, loc)
		return true, nil
	}
	w.blocks[loc] = s
	return true, nil
}

// Set places a plain block, bypassing the write counter.
func (w *World) Set(loc record.Location, block string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if block == "" || block == world.Air {
		delete(w.blocks, loc)
		return
	}
	w.blocks[loc] = world.Block(block)
}

// Block returns the block id at loc.
func (w *World) Block(loc record.Location) string {
	s, _ := w.ReadSnapshot(loc)
	if s.IsAir() {
		return world.Air
	}
	return s.Block
}

// Writes returns how many ApplySnapshot calls changed the world.
func (w *World) Writes() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.writes
}

// Positions returns every non-air position, sorted.
func (w *World) Positions() []record.Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]record.Location, 0, len(w.blocks))
	for loc := range w.blocks {
		out = append(out, loc)
	}
	sortLocations(out)
	return out
}

// ScanCube implements world.CubeScanner.
func (w *World) ScanCube(center record.Location, radius int) []record.Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []record.Location
	for loc := range w.blocks {
		if loc.World == center.World &&
			abs(loc.X-center.X) <= radius &&
			abs(loc.Y-center.Y) <= radius &&
			abs(loc.Z-center.Z) <= radius {
			out = append(out, loc)
		}
	}
	sortLocations(out)
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sortLocations(out []record.Location) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.World != b.World {
			return a.World < b.World
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
}
