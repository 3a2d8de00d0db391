// Package catalog loads the immutable building, job, and species reference tables the
// colony simulation runs against. The tables are data: YAML validated against an
// embedded JSON schema, digested, and indexed once at startup.
package catalog

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/pops"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed catalog.schema.json
var schemaJSON string

const schemaURL = "catalog.schema.json"

// Catalog is the read-only reference data. Safe for concurrent use after loading.
type Catalog struct {
	species   map[string]pops.SpeciesProfile
	jobs      map[string]economy.JobTemplate
	buildings map[buildings.Type]*buildings.Definition
	founding  []buildings.JobSlot
	order     []buildings.Type
	digest    string
}

type file struct {
	Species      map[string]pops.SpeciesProfile `json:"species"`
	Jobs         map[string]economy.JobTemplate `json:"jobs"`
	FoundingJobs []buildings.JobSlot            `json:"founding_jobs"`
	Buildings    []buildings.Definition         `json:"buildings"`
}

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
	schemaErr   error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader([]byte(schemaJSON))); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultsYAML)
	})
	return defaultCat, defaultErr
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse validates YAML catalog data against the schema, cross-checks references, and
// indexes the result.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	// The validator and decoder both want JSON-typed values.
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var generic any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(generic); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	var f file
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		species:   f.Species,
		jobs:      f.Jobs,
		buildings: make(map[buildings.Type]*buildings.Definition, len(f.Buildings)),
		founding:  f.FoundingJobs,
	}
	for i := range f.Buildings {
		def := &f.Buildings[i]
		if _, dup := c.buildings[def.Type]; dup {
			return nil, fmt.Errorf("building %q defined twice", def.Type)
		}
		c.buildings[def.Type] = def
		c.order = append(c.order, def.Type)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	if err := c.check(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(doc)
	c.digest = hex.EncodeToString(sum[:])
	return c, nil
}

func (c *Catalog) check() error {
	for _, js := range c.founding {
		if _, ok := c.jobs[js.Job]; !ok {
			return fmt.Errorf("founding job %q not defined", js.Job)
		}
	}
	for _, t := range c.order {
		def := c.buildings[t]
		for _, js := range def.Jobs {
			if _, ok := c.jobs[js.Job]; !ok {
				return fmt.Errorf("building %q: job %q not defined", t, js.Job)
			}
		}
		if def.Requires != "" {
			if def.Requires == t {
				return fmt.Errorf("building %q requires itself", t)
			}
			if _, ok := c.buildings[def.Requires]; !ok {
				return fmt.Errorf("building %q: required building %q not defined", t, def.Requires)
			}
		}
	}
	return nil
}

// Building implements buildings.Registry.
func (c *Catalog) Building(t buildings.Type) (*buildings.Definition, bool) {
	d, ok := c.buildings[t]
	return d, ok
}

// BuildingTypes returns every building type in sorted order.
func (c *Catalog) BuildingTypes() []buildings.Type {
	return slices.Clone(c.order)
}

// Job returns the template for a job key.
func (c *Catalog) Job(name string) (economy.JobTemplate, bool) {
	t, ok := c.jobs[name]
	return t, ok
}

// SpeciesProfile returns the species multipliers, or the neutral profile for unknown species.
func (c *Catalog) SpeciesProfile(species string) pops.SpeciesProfile {
	if p, ok := c.species[species]; ok {
		return p
	}
	return pops.DefaultSpeciesProfile
}

// HasSpecies reports whether the catalog defines species.
func (c *Catalog) HasSpecies(species string) bool {
	_, ok := c.species[species]
	return ok
}

// FoundingJobs returns the job bundle every new colony starts with.
func (c *Catalog) FoundingJobs() []buildings.JobSlot {
	return slices.Clone(c.founding)
}

// Digest is the hex sha256 of the normalized catalog document.
func (c *Catalog) Digest() string { return c.digest }
