package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/actionable"
	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/world"
)

// Command names accepted by Dispatch, with their short aliases.
var commandAliases = map[string]string{
	"lookup":   "lookup",
	"l":        "lookup",
	"rollback": "rollback",
	"rb":       "rollback",
	"restore":  "restore",
	"rs":       "restore",
	"undo":     "undo",
	"purge":    "purge",
	"explain":  "explain",
}

// Outcome is what one command line produced. Exactly one of the payload
// fields is set, according to Command.
type Outcome struct {
	Command string
	Results []result.Result
	Summary *actionable.Summary
	Deleted int64
	Explain string
}

// Lines renders the outcome for a terminal.
func (o *Outcome) Lines() []string {
	switch o.Command {
	case "lookup":
		if len(o.Results) == 0 {
			return []string{"no results"}
		}
		lines := make([]string, len(o.Results))
		for i, r := range o.Results {
			lines[i] = r.String()
		}
		return lines
	case "rollback", "restore", "undo":
		return []string{o.Summary.String()}
	case "purge":
		return []string{fmt.Sprintf("purged %d records", o.Deleted)}
	case "explain":
		return strings.Split(o.Explain, "\n")
	}
	return nil
}

// Dispatch runs one command line such as "lookup a:block-break r:5" for p.
func (a *App) Dispatch(ctx context.Context, p identity.Principal, line string) (*Outcome, error) {
	fields := param.Tokenize(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	name, ok := commandAliases[strings.ToLower(fields[0])]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
	tokens := fields[1:]

	out := &Outcome{Command: name}
	var err error
	switch name {
	case "lookup":
		out.Results, err = a.Lookup(ctx, p, tokens)
	case "rollback":
		out.Summary, err = a.Rollback(ctx, p, tokens)
	case "restore":
		out.Summary, err = a.Restore(ctx, p, tokens)
	case "undo":
		out.Summary, err = a.Undo(ctx, p, tokens)
	case "purge":
		var res store.DeleteResult
		res, err = a.Purge(ctx, p, tokens)
		out.Deleted = res.Deleted
	case "explain":
		out.Explain, err = a.Explain(ctx, p, tokens)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Place writes s at loc without recording anything.
func (a *App) Place(ctx context.Context, loc record.Location, s world.Snapshot) error {
	_, err := world.Call(ctx, a.exec, func() (world.Snapshot, error) {
		return a.replaceAt(loc, s)
	})
	return err
}

// Capture writes after at loc and records the change the way a host
// listener would: the live state becomes the before snapshot.
func (a *App) Capture(ctx context.Context, kind, cause string, loc record.Location, after world.Snapshot) error {
	before, err := world.Call(ctx, a.exec, func() (world.Snapshot, error) {
		return a.replaceAt(loc, after)
	})
	if err != nil {
		return err
	}
	return a.recorder.Notify(kind, cause, loc, before, after)
}

// replaceAt runs on the executor goroutine and returns the replaced state.
func (a *App) replaceAt(loc record.Location, s world.Snapshot) (world.Snapshot, error) {
	live, err := a.world.ReadSnapshot(loc)
	if err != nil {
		return world.Snapshot{}, fmt.Errorf("read %s: %w", loc, err)
	}
	ok, err := a.world.ApplySnapshot(loc, s.At(loc))
	if err != nil {
		return world.Snapshot{}, fmt.Errorf("apply %s: %w", loc, err)
	}
	if !ok {
		return world.Snapshot{}, fmt.Errorf("position %s refused", loc)
	}
	return live, nil
}
