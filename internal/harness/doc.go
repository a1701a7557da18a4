// Package harness runs scripted chronicle scenarios.
//
// A scenario is a YAML file that places blocks, captures world changes,
// moves the clock and runs commands against a fresh App backed by a
// temporary SQLite database and an in-memory world. Each run produces a
// transcript; RunWithGolden compares it with testdata/golden/<name>.golden.
//
// Scenario format:
//
//	name: explosion_rollback
//	description: A creeper blast is rolled back and undone.
//	identities:
//	  Alex: 6f1d1a2e-7c9b-4b8e-9f3a-2d5c8e1b4a70
//	steps:
//	  - place: {at: "overworld:10,64,10", block: stone}
//	  - capture: {event: block-explode, cause: creeper, at: "overworld:10,64,10", block: air}
//	  - advance: 1m
//	  - run: rollback a:block-explode r:5
//	    as: Alex
//	    from: "overworld:10,64,10"
//	    expect:
//	      applied: 1
//	      blocks: {"overworld:10,64,10": stone}
//
// Every step sets exactly one of place, capture, advance or run. The
// recorder is flushed before each run step, so captures are always visible
// to the commands that follow them.
package harness
