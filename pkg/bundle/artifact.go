package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/starchart/starchart/pkg/manifest"
)

// Envelope is the build artifact written by the compile command.
type Envelope struct {
	// ID uniquely identifies this artifact.
	ID string `json:"id"`

	// GeneratedAt is when the artifact was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Generator names the tool version that produced the artifact.
	Generator string `json:"generator,omitempty"`

	// Source is the manifest path the site was compiled from.
	Source string `json:"source"`

	// Site is the compiled site.
	Site *manifest.CompiledSite `json:"site"`

	// Assets is the resolved asset plan, when it was resolved.
	Assets *Resolution `json:"assets,omitempty"`
}

// NewEnvelope wraps a compiled site in a fresh envelope.
func NewEnvelope(source, generator string, site *manifest.CompiledSite) *Envelope {
	return &Envelope{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Generator:   generator,
		Source:      source,
		Site:        site,
	}
}

// Encode writes the envelope to w as indented JSON.
func (e *Envelope) Encode(w io.Writer) error {
	if e.Site == nil {
		return fmt.Errorf("envelope %s has no site", e.ID)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return nil
}

// WriteArtifact writes the envelope to path. The file is written to a
// temporary sibling first and renamed into place, so readers never see a
// partial artifact.
func WriteArtifact(path string, e *Envelope) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	tmpName := tmp.Name()

	if err := e.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
