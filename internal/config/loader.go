package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/ilyakaznacheev/cleanenv"
)

// EnvPath names the variable holding the config file path.
const EnvPath = "CHRONICLE_CONFIG"

//go:embed schema.cue
var schemaSource string

// Load reads configuration from path, or from $CHRONICLE_CONFIG when path is
// empty. With neither set it loads from the environment and defaults only.
// An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := CheckSchema(&cfg); err != nil {
		return nil, fmt.Errorf("config: schema: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// CheckSchema unifies cfg with the embedded #Config schema. Absent lists and
// the identities map are checked as empty.
func CheckSchema(cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	doc := *cfg
	if doc.Identities == nil {
		doc.Identities = map[string]string{}
	}
	for _, list := range []*[]string{&doc.Actionable.Blacklist, &doc.Actionable.Liquids, &doc.Actionable.Hazards} {
		if *list == nil {
			*list = []string{}
		}
	}

	value := ctx.Encode(&doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}
	return nil
}
