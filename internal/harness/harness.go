package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/chronicle/internal/app"
	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/testutil"
	"github.com/roach88/chronicle/internal/world"
	"github.com/roach88/chronicle/internal/world/memworld"
)

// Result is the outcome of one scenario.
type Result struct {
	// Pass is true when every expect clause matched.
	Pass bool
	// Errors lists the expectations that failed.
	Errors []string
	// Transcript is one line per step and per line of command output.
	Transcript []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

func (r *Result) log(format string, args ...any) {
	r.Transcript = append(r.Transcript, fmt.Sprintf(format, args...))
}

// Text joins the transcript into the golden file form.
func (r *Result) Text() string {
	return strings.Join(r.Transcript, "\n") + "\n"
}

// Config returns the settings scenarios run with. dir holds the database.
func Config(dir string, identities map[string]string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Backend:  "sqlite",
			DSN:      filepath.Join(dir, "scenario.db"),
			Driver:   "sqlite3",
			Database: "chronicle",
			MaxConns: 1,
		},
		Recorder: config.RecorderConfig{FlushInterval: time.Hour},
		Query: config.QueryConfig{
			DefaultRadius: 5,
			MaxRadius:     64,
			DefaultLimit:  25,
			MaxLimit:      500,
			DefaultSince:  72 * time.Hour,
		},
		Actionable: config.ActionableConfig{
			Blacklist: []string{"bedrock"},
			Liquids:   []string{"water", "lava"},
			Hazards:   []string{"fire"},
		},
		Identities: identities,
		Log:        config.LogConfig{Level: "error", Format: "text"},
	}
}

// Run executes s against a fresh App whose database lives in dir.
//
// The returned error reports a broken harness or scenario. Failed
// expectations are reported in Result.
func Run(ctx context.Context, s *Scenario, dir string) (*Result, error) {
	clock := testutil.NewClock(testutil.Epoch)
	w := memworld.New(app.DefaultWorlds...)
	a, err := app.New(ctx, app.Options{
		Config: Config(dir, s.Identities),
		World:  w,
		Clock:  clock.Now,
		IDs:    testutil.NewSequenceIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start app: %w", err)
	}
	defer a.Close()

	res := &Result{Pass: true}
	res.log("# %s", s.Name)
	for i, step := range s.Steps {
		if err := runStep(ctx, a, w, clock, step, res); err != nil {
			return res, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return res, nil
}

func runStep(ctx context.Context, a *app.App, w *memworld.World, clock *testutil.Clock, step Step, res *Result) error {
	switch {
	case step.Place != nil:
		loc, _ := record.ParseLocation(step.Place.At)
		res.log("place %s %s", loc, step.Place.Block)
		return a.Place(ctx, loc, world.Block(step.Place.Block))

	case step.Capture != nil:
		c := step.Capture
		loc, _ := record.ParseLocation(c.At)
		res.log("capture %s %s %s %s", c.Event, c.Cause, loc, c.Block)
		return a.Capture(ctx, c.Event, c.Cause, loc, world.Block(c.Block))

	case step.Advance != "":
		d, _ := time.ParseDuration(step.Advance)
		clock.Advance(d)
		res.log("advance %s", step.Advance)
		return nil
	}

	if _, err := a.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	p, err := a.Principal(ctx, step.As, step.From)
	if err != nil {
		return err
	}

	res.log("> %s", step.Run)
	out, runErr := a.Dispatch(ctx, p, step.Run)
	if runErr != nil {
		res.log("error: %v", runErr)
	} else {
		res.Transcript = append(res.Transcript, out.Lines()...)
	}
	if step.Expect != nil {
		check(step.Run, step.Expect, out, runErr, w, res)
	}
	return nil
}

func check(cmd string, e *Expect, out *app.Outcome, runErr error, w *memworld.World, res *Result) {
	if e.Error != "" {
		switch {
		case runErr == nil:
			res.addError("%s: expected error %s, got none", cmd, e.Error)
		case !errorMatches(runErr, e.Error):
			res.addError("%s: expected error %s, got %v", cmd, e.Error, runErr)
		}
	} else if runErr != nil {
		res.addError("%s: unexpected error: %v", cmd, runErr)
		return
	}

	if out != nil {
		if e.Results != nil && len(out.Results) != *e.Results {
			res.addError("%s: expected %d results, got %d", cmd, *e.Results, len(out.Results))
		}
		if e.Applied != nil && (out.Summary == nil || out.Summary.Applied != *e.Applied) {
			res.addError("%s: expected %d applied, got %s", cmd, *e.Applied, summaryText(out))
		}
		if e.Skipped != nil && (out.Summary == nil || out.Summary.Skipped != *e.Skipped) {
			res.addError("%s: expected %d skipped, got %s", cmd, *e.Skipped, summaryText(out))
		}
		if e.Deleted != nil && out.Deleted != *e.Deleted {
			res.addError("%s: expected %d deleted, got %d", cmd, *e.Deleted, out.Deleted)
		}
	}

	for at, want := range e.Blocks {
		loc, err := record.ParseLocation(at)
		if err != nil {
			res.addError("%s: blocks: %v", cmd, err)
			continue
		}
		if got := w.Block(loc); got != want {
			res.addError("%s: expected %s at %s, got %s", cmd, want, at, got)
		}
	}
}

func errorMatches(err error, want string) bool {
	if pe, ok := param.AsParameterError(err); ok && string(pe.Code) == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}

func summaryText(out *app.Outcome) string {
	if out.Summary == nil {
		return "no summary"
	}
	return out.Summary.String()
}
