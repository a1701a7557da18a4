package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chronicle/internal/record"
)

// Scenario is one scripted run.
type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Identities  map[string]string `yaml:"identities,omitempty"`
	Steps       []Step            `yaml:"steps"`
}

// Step is one line of the script.
type Step struct {
	Place   *PlaceStep   `yaml:"place,omitempty"`
	Capture *CaptureStep `yaml:"capture,omitempty"`
	Advance string       `yaml:"advance,omitempty"`

	// Run is a command line for app.Dispatch.
	Run string `yaml:"run,omitempty"`
	// As names the issuing principal; empty is the console.
	As string `yaml:"as,omitempty"`
	// From is the issuer's position as world:x,y,z.
	From   string  `yaml:"from,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// PlaceStep writes a block without recording it.
type PlaceStep struct {
	At    string `yaml:"at"`
	Block string `yaml:"block"`
}

// CaptureStep writes a block and records the change.
type CaptureStep struct {
	Event string `yaml:"event"`
	Cause string `yaml:"cause"`
	At    string `yaml:"at"`
	Block string `yaml:"block"`
}

// Expect checks the outcome of a run step. Unset fields are not checked.
type Expect struct {
	Results *int   `yaml:"results,omitempty"`
	Applied *int   `yaml:"applied,omitempty"`
	Skipped *int   `yaml:"skipped,omitempty"`
	Deleted *int64 `yaml:"deleted,omitempty"`
	// Error is a parameter error code such as UNKNOWN_ALIAS, or a substring
	// of any other error.
	Error string `yaml:"error,omitempty"`
	// Blocks maps world:x,y,z positions to the block expected there after
	// the step.
	Blocks map[string]string `yaml:"blocks,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		if step.Place != nil {
			set++
			if _, err := record.ParseLocation(step.Place.At); err != nil {
				return fmt.Errorf("steps[%d]: place: %w", i, err)
			}
		}
		if step.Capture != nil {
			set++
			if step.Capture.Event == "" {
				return fmt.Errorf("steps[%d]: capture: event is required", i)
			}
			if _, err := record.ParseLocation(step.Capture.At); err != nil {
				return fmt.Errorf("steps[%d]: capture: %w", i, err)
			}
		}
		if step.Advance != "" {
			set++
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return fmt.Errorf("steps[%d]: advance: %w", i, err)
			}
		}
		if step.Run != "" {
			set++
		} else if step.Expect != nil || step.As != "" || step.From != "" {
			return fmt.Errorf("steps[%d]: as, from and expect need a run command", i)
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of place, capture, advance or run is required", i)
		}
	}
	return nil
}
