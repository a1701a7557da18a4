package actionable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/world"
)

// ErrNothingToUndo is returned by Undo when the principal has no stored batch.
var ErrNothingToUndo = errors.New("nothing to undo")

// Options configures an Engine.
type Options struct {
	// Blacklist holds block ids that are never written.
	Blacklist []string
	// Liquids are cleared by -drain-liquids.
	Liquids []string
	// Hazards are cleared by -clean-area.
	Hazards []string
	// Appliers maps event names to appliers. Nil means DefaultAppliers.
	Appliers map[string]Applier
	// Undo stores applied batches. Nil means a private store.
	Undo *UndoStore
}

// Engine applies records to the world through one executor.
type Engine struct {
	world     world.World
	exec      *world.Executor
	appliers  map[string]Applier
	blacklist map[string]bool
	liquids   map[string]bool
	hazards   map[string]bool
	undo      *UndoStore
}

// New returns an engine mutating w on exec. The caller starts and stops exec.
func New(w world.World, exec *world.Executor, opts Options) *Engine {
	if opts.Appliers == nil {
		opts.Appliers = DefaultAppliers()
	}
	if opts.Undo == nil {
		opts.Undo = NewUndoStore()
	}
	return &Engine{
		world:     w,
		exec:      exec,
		appliers:  opts.Appliers,
		blacklist: toSet(opts.Blacklist),
		liquids:   toSet(opts.Liquids),
		hazards:   toSet(opts.Hazards),
		undo:      opts.Undo,
	}
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// History returns the store holding applied batches.
func (e *Engine) History() *UndoStore { return e.undo }

// Request is one batch.
type Request struct {
	Mode      Mode
	Principal identity.Principal
	Flags     queryir.Flags
	// Radius bounds the cleanup passes around the principal. Zero skips them.
	Radius int
	// Records are Complete lookup results. Order does not matter.
	Records []result.Result
}

// Apply runs a rollback or restore batch and stores its transactions for
// undo. Records of non-actionable kinds are left out of the summary. The
// returned error is only ever the context's.
func (e *Engine) Apply(ctx context.Context, req Request) (*Summary, error) {
	records := actionableRecords(req.Records)
	sortForMode(records, req.Mode)
	overwrite := req.Flags.Has(queryir.Overwrite)

	sum := newSummary(req.Mode)
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.add(e.applyRecord(ctx, r, req.Mode, overwrite))
	}
	e.cleanup(ctx, req, sum)

	e.undo.Put(req.Principal, sum.Transactions())
	slog.Info("actionable batch finished",
		"mode", req.Mode.String(),
		"principal", req.Principal.Name,
		"applied", sum.Applied,
		"skipped", sum.Skipped,
		"cleaned", sum.Cleaned)
	return sum, ctx.Err()
}

func actionableRecords(in []result.Result) []result.Result {
	out := make([]result.Result, 0, len(in))
	for _, r := range in {
		if k, ok := record.LookupKind(r.EventName); ok && !k.Actionable {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortForMode(records []result.Result, mode Mode) {
	sort.SliceStable(records, func(i, j int) bool {
		if mode == Restore {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

func (e *Engine) applyRecord(ctx context.Context, r result.Result, mode Mode, overwrite bool) Result {
	out := Result{Record: r}
	fail := func(err error) Result {
		out.Skip = ReasonOf(err)
		out.Err = err
		slog.Debug("record skipped", "id", r.ID, "event", r.EventName, "reason", string(out.Skip), "error", err)
		return out
	}

	applier, ok := e.appliers[r.EventName]
	if !ok {
		return fail(skip(SkipUnimplemented, "no applier for %q", r.EventName))
	}
	plan, err := safePlan(applier, r, mode)
	if err != nil {
		return fail(err)
	}
	if r.Location.IsZero() {
		return fail(skip(SkipInvalidLocation, "record has no location"))
	}

	tx, err := e.transact(ctx, r.Location, plan, overwrite)
	if err != nil {
		return fail(err)
	}
	out.Applied = true
	out.Transaction = tx
	return out
}

// safePlan turns a panicking applier into an error so the batch goes on.
func safePlan(a Applier, r result.Result, mode Mode) (plan Plan, err error) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("applier panicked", "id", r.ID, "event", r.EventName, "panic", v)
			err = fmt.Errorf("applier for %q panicked: %v", r.EventName, v)
		}
	}()
	return a.Plan(r, mode)
}

// transact writes plan.Target at loc on the mutation thread after checking
// the live state.
func (e *Engine) transact(ctx context.Context, loc record.Location, plan Plan, overwrite bool) (*Transaction, error) {
	if e.blacklist[plan.Target.Block] {
		return nil, skip(SkipIllegalBlock, "%s is blacklisted", plan.Target.Block)
	}
	target := plan.Target.At(loc)

	return world.Call(ctx, e.exec, func() (*Transaction, error) {
		live, err := e.world.ReadSnapshot(loc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", loc, err)
		}
		if !overwrite && !live.Equal(plan.Expected) {
			return nil, skip(SkipOccupied, "%s holds %s, expected %s", loc, live, plan.Expected)
		}
		ok, err := e.world.ApplySnapshot(loc, target)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", loc, err)
		}
		if !ok {
			return nil, skip(SkipInvalidLocation, "host refused %s", loc)
		}
		return &Transaction{Location: loc, Before: live, After: plan.Target}, nil
	})
}

// cleanup clears liquids and hazards within the radius of a located
// principal.
func (e *Engine) cleanup(ctx context.Context, req Request, sum *Summary) {
	ids := make(map[string]bool)
	if req.Flags.Has(queryir.DrainLiquids) {
		for id := range e.liquids {
			ids[id] = true
		}
	}
	if req.Flags.Has(queryir.CleanArea) {
		for id := range e.hazards {
			ids[id] = true
		}
	}
	if len(ids) == 0 {
		return
	}
	if req.Radius <= 0 || !req.Principal.Located() {
		slog.Debug("cleanup skipped: no radius", "principal", req.Principal.Name)
		return
	}

	center := req.Principal.Location
	txs, err := world.Call(ctx, e.exec, func() ([]Transaction, error) {
		var positions []record.Location
		if sc, ok := e.world.(world.CubeScanner); ok {
			positions = sc.ScanCube(center, req.Radius)
		} else {
			positions = world.Cube(center, req.Radius)
		}

		var txs []Transaction
		air := world.Block(world.Air)
		for _, loc := range positions {
			live, err := e.world.ReadSnapshot(loc)
			if err != nil {
				return txs, fmt.Errorf("read %s: %w", loc, err)
			}
			if !ids[live.Block] {
				continue
			}
			ok, err := e.world.ApplySnapshot(loc, air)
			if err != nil {
				return txs, fmt.Errorf("apply %s: %w", loc, err)
			}
			if ok {
				txs = append(txs, Transaction{Location: loc, Before: live, After: air})
			}
		}
		return txs, nil
	})
	if err != nil {
		slog.Error("cleanup failed", "principal", req.Principal.Name, "error", err)
	}
	for i := range txs {
		sum.Results = append(sum.Results, Result{Applied: true, Transaction: &txs[i]})
	}
	sum.Cleaned += len(txs)
}

// Undo re-applies the Before state of the principal's last batch, last
// transaction first. The undone batch is removed from the store.
func (e *Engine) Undo(ctx context.Context, p identity.Principal, flags queryir.Flags) (*Summary, error) {
	txs, ok := e.undo.Take(p)
	if !ok {
		return nil, ErrNothingToUndo
	}
	overwrite := flags.Has(queryir.Overwrite)

	sum := newSummary(Undo)
	for i := len(txs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		tx := txs[i]
		out := Result{Record: result.Result{Kind: result.Complete, Location: tx.Location}}
		applied, err := e.transact(ctx, tx.Location, Plan{Expected: tx.After, Target: tx.Before}, overwrite)
		if err != nil {
			out.Skip = ReasonOf(err)
			out.Err = err
		} else {
			out.Applied = true
			out.Transaction = applied
		}
		sum.add(out)
	}
	slog.Info("undo finished", "principal", p.Name, "applied", sum.Applied, "skipped", sum.Skipped)
	return sum, nil
}
