package bundle

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/starchart/starchart/pkg/manifest"
)

func compiledSite(t *testing.T) *manifest.CompiledSite {
	t.Helper()
	site, err := manifest.Compile(&manifest.SiteConfig{
		Title: "Sentry Docs",
		Sidebar: []manifest.NavigationGroup{
			*manifest.Group("Start Here",
				manifest.Item("Getting Started", "getting-started"),
				manifest.Link("Sentry docs", "https://docs.sentry.io/"),
			),
		},
		Adapter: manifest.AdapterOptions{
			Target:       manifest.TargetVercel,
			IncludeFiles: []manifest.AssetIncludeRule{"./src/assets/**/*"},
		},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return site
}

func TestEnvelope_Encode(t *testing.T) {
	env := NewEnvelope("starchart.yaml", "starchart dev", compiledSite(t))
	if _, err := uuid.Parse(env.ID); err != nil {
		t.Errorf("Envelope ID is not a UUID: %v", err)
	}

	var buf bytes.Buffer
	if err := env.Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded struct {
		ID          string `json:"id"`
		GeneratedAt string `json:"generated_at"`
		Source      string `json:"source"`
		Site        struct {
			Title  string `json:"title"`
			Routes []struct {
				Label    string `json:"label"`
				Href     string `json:"href"`
				External bool   `json:"external"`
			} `json:"routes"`
			Assets struct {
				Patterns []string `json:"patterns"`
			} `json:"assets"`
		} `json:"site"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Artifact is not valid JSON: %v", err)
	}

	if decoded.ID != env.ID || decoded.Source != "starchart.yaml" || decoded.GeneratedAt == "" {
		t.Errorf("Unexpected envelope header %+v", decoded)
	}
	if decoded.Site.Title != "Sentry Docs" {
		t.Errorf("Unexpected title %q", decoded.Site.Title)
	}
	if len(decoded.Site.Routes) != 2 {
		t.Fatalf("Expected 2 routes, got %d", len(decoded.Site.Routes))
	}
	if decoded.Site.Routes[0].Href != "/getting-started/" || decoded.Site.Routes[0].External {
		t.Errorf("Unexpected first route %+v", decoded.Site.Routes[0])
	}
	if !decoded.Site.Routes[1].External {
		t.Errorf("Expected the second route to be external")
	}
	if len(decoded.Site.Assets.Patterns) != 1 {
		t.Errorf("Unexpected asset patterns %v", decoded.Site.Assets.Patterns)
	}
}

func TestEnvelope_EncodeWithoutSite(t *testing.T) {
	env := NewEnvelope("starchart.yaml", "", nil)
	if err := env.Encode(&bytes.Buffer{}); err == nil {
		t.Error("Expected an error for an envelope without a site")
	}
}

func TestWriteArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dist", "starchart.json")
	env := NewEnvelope("starchart.yaml", "", compiledSite(t))

	if err := WriteArtifact(path, env); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Artifact not written: %v", err)
	}
	if !json.Valid(data) {
		t.Error("Artifact is not valid JSON")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the artifact in the output directory, got %d entries", len(entries))
	}
}

func TestWriteArtifact_NoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "starchart.json")

	if err := WriteArtifact(path, NewEnvelope("x", "", nil)); err == nil {
		t.Fatal("Expected WriteArtifact to fail without a site")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no files after a failed write, got %d", len(entries))
	}
}
