package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SiteSchema is the name of the builtin manifest schema.
const SiteSchema = "#Site"

// SchemaRegistry manages CUE schemas for validation. Schemas are
// registered by definition name and looked up in the source that
// registers them.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the builtin site
// schema.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}
	if err := sr.RegisterSchema(SiteSchema, builtinSiteSchema); err != nil {
		panic(fmt.Sprintf("builtin site schema: %v", err))
	}
	return sr
}

// RegisterSchema compiles source and registers the definition named def
// (e.g. "#Site") from it.
func (sr *SchemaRegistry) RegisterSchema(def, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(def+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", def, err)
	}

	schema := val.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("schema source does not define %s", def)
	}
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", def, err)
	}

	sr.schemas[def] = schema
	return nil
}

// GetSchema retrieves a schema by definition name.
func (sr *SchemaRegistry) GetSchema(def string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[def]
	return val, ok
}

// Unify unifies val with the named schema and checks that the result is
// concrete.
func (sr *SchemaRegistry) Unify(def string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(def)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", def)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, def string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(def, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// builtinSiteSchema checks the shape of a manifest: field names and types.
// Value rules (required title, adapter targets, link syntax) belong to the
// compiler so every source format reports them the same way.
const builtinSiteSchema = `
#Site: {
	title?:         string
	logo?:          #Logo
	social?:        {[string]: string}
	customCss?:     [...string]
	components?:    {[string]: string}
	sidebar?:       [...#Node]
	base?:          string
	trailingSlash?: string
	adapter?:       #Adapter
}

#Logo: {
	src?:           string
	replacesTitle?: bool
}

#Adapter: {
	target?:       string
	imageService?: bool
	includeFiles?: [...string]
}

// A node with items is a group; any other node is an item.
#Node: {
	label?:     string
	slug?:      string
	link?:      string
	badge?:     string
	attrs?:     {[string]: string}
	collapsed?: bool
	items?:     [...#Node]
}
`
