package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

// CUEParser parses CUE manifests. Every manifest is unified with the
// builtin #Site schema before it is decoded.
type CUEParser struct {
	ctx     *cue.Context
	schemas *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	ctx := cuecontext.New()
	return &CUEParser{
		ctx:     ctx,
		schemas: newSchemaRegistry(ctx),
	}
}

// Schemas returns the schema registry used by the parser.
func (cp *CUEParser) Schemas() *SchemaRegistry {
	return cp.schemas
}

// Parse loads a CUE manifest from a file or a package directory.
func (cp *CUEParser) Parse(ctx context.Context, source string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
	}

	var (
		val  cue.Value
		errs []ValidationError
	)
	if info.IsDir() {
		val, errs = cp.loadDirectory(source)
	} else {
		val, errs = cp.loadFile(source)
	}
	if len(errs) > 0 {
		return nil, &LoadError{Source: source, Format: FormatCUE, Errors: errs}
	}
	return cp.decode(val, source)
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	val := cp.ctx.CompileString(content, cue.Filename("inline.cue"))
	if err := val.Err(); err != nil {
		return nil, &LoadError{Source: "inline", Format: FormatCUE, Errors: cp.convertCUEErrors(err)}
	}
	return cp.decode(val, "inline")
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []ValidationError) {
	buildInstances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(buildInstances) == 0 {
		return cue.Value{}, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}
	return val, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}
	return val, nil
}

func (cp *CUEParser) decode(val cue.Value, source string) (*Document, error) {
	unified, err := cp.schemas.Unify(SiteSchema, val)
	if err != nil {
		return nil, &LoadError{Source: source, Format: FormatCUE, Errors: cp.convertCUEErrors(err)}
	}

	var doc Document
	if err := unified.Decode(&doc); err != nil {
		return nil, &LoadError{Source: source, Format: FormatCUE, Errors: []ValidationError{{
			File:     source,
			Message:  fmt.Sprintf("failed to decode site: %v", err),
			Severity: "error",
		}}}
	}
	return &doc, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	// Unwrap so errors wrapped with fmt.Errorf keep their positions.
	var cueErr errors.Error
	if stderrors.As(err, &cueErr) {
		err = cueErr
	}

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}
