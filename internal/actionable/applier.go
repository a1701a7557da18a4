package actionable

import (
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/world"
)

// Plan is what applying one record means: the live state the record left
// behind and the state to write in its place.
type Plan struct {
	Expected world.Snapshot
	Target   world.Snapshot
}

// Applier plans records of one event kind.
type Applier interface {
	Plan(r result.Result, mode Mode) (Plan, error)
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(r result.Result, mode Mode) (Plan, error)

func (f ApplierFunc) Plan(r result.Result, mode Mode) (Plan, error) { return f(r, mode) }

// BlockApplier plans block events from the before and after snapshots in the
// record payload.
var BlockApplier Applier = ApplierFunc(planBlock)

func planBlock(r result.Result, mode Mode) (Plan, error) {
	before, err := snapshotAt(r.Extra, record.KeyBefore)
	if err != nil {
		return Plan{}, err
	}
	after, err := snapshotAt(r.Extra, record.KeyAfter)
	if err != nil {
		return Plan{}, err
	}
	if mode == Restore {
		return Plan{Expected: before, Target: after}, nil
	}
	return Plan{Expected: after, Target: before}, nil
}

func snapshotAt(extra record.Payload, key string) (world.Snapshot, error) {
	m, ok := extra.Map(key)
	if !ok {
		return world.Snapshot{}, skip(SkipInvalid, "no %s snapshot", key)
	}
	s, err := world.SnapshotFromPayload(m)
	if err != nil {
		return world.Snapshot{}, &SkipError{Reason: SkipInvalid, Err: err}
	}
	return s, nil
}

// DefaultAppliers covers the block event kinds. Entity and item kinds are
// actionable but have no applier yet.
func DefaultAppliers() map[string]Applier {
	return map[string]Applier{
		record.BlockBreak:   BlockApplier,
		record.BlockPlace:   BlockApplier,
		record.BlockBurn:    BlockApplier,
		record.BlockExplode: BlockApplier,
		record.BlockFade:    BlockApplier,
		record.BlockForm:    BlockApplier,
		record.LiquidFlow:   BlockApplier,
	}
}
