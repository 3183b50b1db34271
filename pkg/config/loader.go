package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/starchart/starchart/pkg/manifest"
)

// ErrManifestNotFound is returned by Find when a directory holds no
// manifest.
var ErrManifestNotFound = errors.New("no starchart manifest found")

// ManifestNames lists the manifest file names Find looks for, in order.
var ManifestNames = []string{
	"starchart.yaml",
	"starchart.yml",
	"starchart.json",
	"starchart.toml",
	"starchart.cue",
	"starchart.star",
}

// Loader reads manifests in any supported format.
type Loader struct {
	cue      *CUEParser
	starlark *StarlarkEvaluator
	logger   zerolog.Logger
}

// NewLoader creates a loader. Starlark manifests are stopped after
// starlarkTimeout; zero selects the evaluator default.
func NewLoader(logger zerolog.Logger, starlarkTimeout time.Duration) *Loader {
	return &Loader{
		cue:      NewCUEParser(),
		starlark: NewStarlarkEvaluator(starlarkTimeout, logger),
		logger:   logger.With().Str("component", "loader").Logger(),
	}
}

// DetectFormat returns the manifest format for path based on its
// extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".cue":
		return FormatCUE, nil
	case ".star":
		return FormatStarlark, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension %q", filepath.Ext(path))
	}
}

// Find returns the first manifest in dir named in ManifestNames.
func Find(dir string) (string, error) {
	for _, name := range ManifestNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrManifestNotFound, dir)
}

// Load reads and decodes the manifest at path. A directory is accepted for
// CUE packages and is otherwise searched with Find.
func (l *Loader) Load(ctx context.Context, path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	format := FormatCUE
	if info.IsDir() {
		if found, ferr := Find(path); ferr == nil {
			path = found
			format, _ = DetectFormat(path)
		}
	} else if format, err = DetectFormat(path); err != nil {
		return nil, err
	}

	l.logger.Debug().Str("path", path).Str("format", string(format)).Msg("Loading manifest")

	var doc *Document
	switch format {
	case FormatCUE:
		doc, err = l.cue.Parse(ctx, path)
	case FormatStarlark:
		doc, err = l.loadStarlark(ctx, path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		doc, err = Decode(format, path, data)
	}
	if err != nil {
		return nil, err
	}

	return &Source{
		Path:     path,
		Format:   format,
		Document: doc,
		LoadedAt: time.Now(),
	}, nil
}

// LoadSite loads the manifest at path and converts it for compilation.
func (l *Loader) LoadSite(ctx context.Context, path string) (*manifest.SiteConfig, *Source, error) {
	src, err := l.Load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := src.Document.ToSiteConfig()
	if err != nil {
		return nil, src, err
	}
	return cfg, src, nil
}

// Decode decodes a YAML, JSON or TOML manifest. Unknown keys are errors.
func Decode(format Format, source string, data []byte) (*Document, error) {
	var doc Document
	var err error

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&doc)
	default:
		return nil, fmt.Errorf("format %s cannot be decoded from bytes", format)
	}
	if err != nil {
		return nil, &LoadError{Source: source, Format: format, Errors: decodeErrors(source, data, err)}
	}
	return &doc, nil
}

func (l *Loader) loadStarlark(ctx context.Context, path string) (*Document, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	result, err := l.starlark.Evaluate(ctx, path, string(script), nil)
	if err != nil {
		return nil, &LoadError{Source: path, Format: FormatStarlark, Errors: []ValidationError{{
			File:     path,
			Message:  err.Error(),
			Severity: "error",
		}}}
	}
	l.logger.Debug().Str("path", path).Dur("duration", result.ExecutionTime).Msg("Evaluated Starlark manifest")

	site, ok := result.Output[SiteGlobal]
	if !ok {
		return nil, &LoadError{Source: path, Format: FormatStarlark, Errors: []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("script must bind a global named %q", SiteGlobal),
			Severity: "error",
		}}}
	}

	if err := l.cue.Schemas().ValidateAgainstSchema(ctx, SiteSchema, site); err != nil {
		return nil, &LoadError{Source: path, Format: FormatStarlark, Errors: l.cue.convertCUEErrors(err)}
	}

	data, err := json.Marshal(site)
	if err != nil {
		return nil, fmt.Errorf("failed to encode starlark site: %w", err)
	}
	return Decode(FormatJSON, path, data)
}

// decodeErrors converts decoder errors into located validation errors.
func decodeErrors(source string, data []byte, err error) []ValidationError {
	ve := ValidationError{File: source, Message: err.Error(), Severity: "error"}

	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		tomlErr    *toml.DecodeError
		strictErr  *toml.StrictMissingError
		yamlErrors *yaml.TypeError
	)
	switch {
	case errors.As(err, &syntaxErr):
		ve.Line, ve.Column = lineColumn(data, syntaxErr.Offset)
	case errors.As(err, &typeErr):
		ve.Line, ve.Column = lineColumn(data, typeErr.Offset)
		ve.Path = typeErr.Field
	case errors.As(err, &tomlErr):
		ve.Line, ve.Column = tomlErr.Position()
		ve.Path = strings.Join(tomlErr.Key(), ".")
	case errors.As(err, &strictErr):
		out := make([]ValidationError, 0, len(strictErr.Errors))
		for i := range strictErr.Errors {
			de := &strictErr.Errors[i]
			line, col := de.Position()
			out = append(out, ValidationError{
				File:     source,
				Line:     line,
				Column:   col,
				Path:     strings.Join(de.Key(), "."),
				Message:  de.Error(),
				Severity: "error",
			})
		}
		return out
	case errors.As(err, &yamlErrors):
		out := make([]ValidationError, 0, len(yamlErrors.Errors))
		for _, msg := range yamlErrors.Errors {
			out = append(out, ValidationError{File: source, Message: msg, Severity: "error"})
		}
		return out
	}
	return []ValidationError{ve}
}

// lineColumn converts a byte offset into a 1-indexed line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(before, '\n')
	return line, col
}
