package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writePolicyFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}
	return dir
}

func newTestLoader() *Loader {
	return NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := newTestLoader()

	regoContent := `# Guides should not link to staging.
# Checked on every lint run.
package starchart.custom.staging

import rego.v1

deny contains "staging" if { false }
`
	dir := writePolicyFiles(t, map[string]string{"no-staging.rego": regoContent})

	policy, err := loader.loadFromFile(context.Background(), filepath.Join(dir, "no-staging.rego"))
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "no-staging" {
		t.Errorf("Expected name 'no-staging', got '%s'", policy.Name)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if policy.Description != "Guides should not link to staging. Checked on every lint run." {
		t.Errorf("Unexpected description %q", policy.Description)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected default severity warning, got %s", policy.Severity)
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := newTestLoader()

	policy := Policy{
		Name:        "json-policy",
		Description: "A test policy",
		Rego:        "package test\n\nimport rego.v1\n\ndeny contains \"x\" if { false }\n",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"test"},
	}
	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	dir := writePolicyFiles(t, map[string]string{"policy.json": string(data)})

	loaded, err := loader.loadFromFile(context.Background(), filepath.Join(dir, "policy.json"))
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Name != policy.Name {
		t.Errorf("Expected name '%s', got '%s'", policy.Name, loaded.Name)
	}
	if loaded.Severity != policy.Severity {
		t.Errorf("Expected severity '%s', got '%s'", policy.Severity, loaded.Severity)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("CreatedAt should be defaulted")
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	loader := newTestLoader()
	dir := writePolicyFiles(t, map[string]string{
		"links.rego":          "package a\n",
		"nested/slugs.rego":   "package b\n",
		"nested/deep/x.rego":  "package c\n",
		"README.md":           "# Policies",
		"nested/notes.txt":    "ignored",
		"nested/invalid.json": "{not json",
	})

	loaded, err := loader.loadFromDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}
	if len(loaded) != 3 {
		t.Errorf("Expected 3 policies, got %d", len(loaded))
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := newTestLoader()
	dirA := writePolicyFiles(t, map[string]string{"a.rego": "package a\n"})
	dirB := writePolicyFiles(t, map[string]string{"b.rego": "package b\n", "c.rego": "package c\n"})

	loaded, err := loader.LoadFromPaths(context.Background(), []string{dirA, filepath.Join(dirB, "b.rego"), filepath.Join(dirB, "c.rego")})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Errorf("Expected 3 policies, got %d", len(loaded))
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dirA, "missing")}); err == nil {
		t.Error("Expected an error for a missing path")
	}
}

func TestExtractHeader(t *testing.T) {
	loader := newTestLoader()

	tests := []struct {
		name        string
		content     string
		description string
		severity    Severity
	}{
		{
			name:        "description only",
			content:     "# Short labels.\npackage x\n",
			description: "Short labels.",
			severity:    SeverityWarning,
		},
		{
			name:        "severity annotation",
			content:     "# Short labels.\n# severity: info\npackage x\n",
			description: "Short labels.",
			severity:    SeverityInfo,
		},
		{
			name:        "unknown severity ignored",
			content:     "# severity: fatal\npackage x\n",
			description: "",
			severity:    SeverityWarning,
		},
		{
			name:        "comments after package ignored",
			content:     "package x\n# not a description\n",
			description: "",
			severity:    SeverityWarning,
		},
		{
			name:        "blank lines skipped",
			content:     "\n# First.\n\n# Second.\npackage x\n",
			description: "First. Second.",
			severity:    SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			description, severity := loader.extractHeader(tt.content)
			if description != tt.description {
				t.Errorf("Expected description %q, got %q", tt.description, description)
			}
			if severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, severity)
			}
		})
	}
}

func TestLoadFromFile_Cache(t *testing.T) {
	loader := newTestLoader()
	dir := writePolicyFiles(t, map[string]string{"cached.rego": "package cached\n"})
	path := filepath.Join(dir, "cached.rego")

	first, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	again, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if first != again {
		t.Error("Expected the cached policy for an unchanged file")
	}

	if err := os.WriteFile(path, []byte("package changed\n"), 0o644); err != nil {
		t.Fatalf("Failed to rewrite policy: %v", err)
	}
	changed, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if changed.Rego != "package changed\n" {
		t.Error("Expected the rewritten policy after the file changed")
	}

	loader.ClearCache()
	fresh, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if fresh == changed {
		t.Error("Expected ClearCache to force a re-read")
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	loader := newTestLoader()
	dir := writePolicyFiles(t, map[string]string{
		"policy.yaml":  "name: x",
		"invalid.json": "{not json",
	})

	tests := []string{
		filepath.Join(dir, "policy.yaml"),
		filepath.Join(dir, "invalid.json"),
		filepath.Join(dir, "missing.rego"),
	}
	for _, path := range tests {
		t.Run(filepath.Base(path), func(t *testing.T) {
			if _, err := loader.loadFromFile(context.Background(), path); err == nil {
				t.Errorf("Expected an error loading %s", path)
			}
		})
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	loader := newTestLoader()
	loader.ReloadDelay = 20 * time.Millisecond
	dir := writePolicyFiles(t, map[string]string{"first.rego": "package first\n"})

	reloaded := make(chan []Policy, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "second.rego"), []byte("package second\n"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	select {
	case policies := <-reloaded:
		if len(policies) != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}

	if err := loader.StopWatching(); err != nil {
		t.Errorf("StopWatching failed: %v", err)
	}
}

func TestWatch_StopWaitsForRunningReload(t *testing.T) {
	loader := newTestLoader()
	loader.ReloadDelay = 10 * time.Millisecond
	dir := writePolicyFiles(t, map[string]string{"a.rego": "package a\n"})

	started := make(chan struct{}, 8)
	var finished atomic.Bool
	err := loader.Watch(context.Background(), []string{dir}, func([]Policy) error {
		started <- struct{}{}
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.rego"), []byte("package b\n"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}

	if err := loader.StopWatching(); err != nil {
		t.Errorf("StopWatching failed: %v", err)
	}
	if !finished.Load() {
		t.Error("StopWatching returned while a reload was still running")
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	loader := newTestLoader()
	dir := writePolicyFiles(t, map[string]string{"a.rego": "package a\n"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := loader.Watch(ctx, []string{dir}, func([]Policy) error { return nil }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		_ = loader.StopWatching()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Event loop did not exit after cancel")
	}
}
