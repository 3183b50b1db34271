package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		checkFunc func(*testing.T, *Document)
	}{
		{
			name: "valid site",
			content: `
title: "Sentry Build"
sidebar: [{
	label: "Workshop"
	items: [{label: "Quickstart", slug: "quickstart"}]
}]
adapter: target: "vercel"
`,
			checkFunc: func(t *testing.T, doc *Document) {
				if doc.Title != "Sentry Build" {
					t.Errorf("expected title 'Sentry Build', got %s", doc.Title)
				}
				if len(doc.Sidebar) != 1 || len(doc.Sidebar[0].Items) != 1 {
					t.Fatalf("unexpected sidebar: %+v", doc.Sidebar)
				}
				if doc.Sidebar[0].Items[0].Slug != "quickstart" {
					t.Errorf("expected slug 'quickstart', got %s", doc.Sidebar[0].Items[0].Slug)
				}
				if doc.Adapter.Target != "vercel" {
					t.Errorf("expected target 'vercel', got %s", doc.Adapter.Target)
				}
			},
		},
		{
			name: "computed values",
			content: `
_pages: ["quickstart", "wrapping-up"]
title: "Docs"
sidebar: [{
	label: "Workshop"
	items: [for p in _pages {label: p, slug: p}]
}]
adapter: target: "static"
`,
			checkFunc: func(t *testing.T, doc *Document) {
				if len(doc.Sidebar[0].Items) != 2 {
					t.Fatalf("expected 2 items, got %d", len(doc.Sidebar[0].Items))
				}
				if doc.Sidebar[0].Items[1].Slug != "wrapping-up" {
					t.Errorf("unexpected second slug %s", doc.Sidebar[0].Items[1].Slug)
				}
			},
		},
		{
			name: "missing title decodes empty",
			content: `
adapter: target: "static"
`,
			checkFunc: func(t *testing.T, doc *Document) {
				if doc.Title != "" {
					t.Errorf("expected empty title, got %q", doc.Title)
				}
			},
		},
		{
			name: "unknown field rejected by schema",
			content: `
title: "Docs"
sidebar: [{label: "Guides", itemz: []}]
`,
			wantErr: true,
		},
		{
			name: "wrong type rejected by schema",
			content: `
title: 42
`,
			wantErr: true,
		},
		{
			name: "invalid CUE syntax",
			content: `
title: "Docs"
adapter: {
`,
			wantErr: true,
		},
		{
			name: "incomplete value",
			content: `
title: string
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parser.ParseInline(ctx, tt.content)
			if tt.wantErr {
				var le *LoadError
				if !errors.As(err, &le) {
					t.Fatalf("expected LoadError, got %v", err)
				}
				if len(le.Errors) == 0 {
					t.Error("expected at least one validation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInline() error = %v", err)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, doc)
			}
		})
	}
}

func TestCUEParser_ParseFileReportsPosition(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "starchart.cue")
	content := `title: "Docs"
adapter: {
	target: "static"
	imageServce: true
}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := NewCUEParser().Parse(context.Background(), path)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}

	found := false
	for _, ve := range le.Errors {
		if strings.Contains(ve.Message, "imageServce") || strings.Contains(ve.Path, "imageServce") {
			found = true
			if ve.Line == 0 {
				t.Errorf("expected a line number for %+v", ve)
			}
		}
	}
	if !found {
		t.Errorf("expected an error naming imageServce, got %v", le.Errors)
	}
}

func TestCUEParser_ParseDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"site.cue": `package docs

title: "Docs"
adapter: target: "netlify"
`,
		"sidebar.cue": `package docs

sidebar: [{
	label: "Guides"
	items: [{label: "Intro", slug: "intro"}]
}]
`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	doc, err := NewCUEParser().Parse(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Adapter.Target != "netlify" {
		t.Errorf("expected target netlify, got %s", doc.Adapter.Target)
	}
	if len(doc.Sidebar) != 1 || doc.Sidebar[0].Label != "Guides" {
		t.Errorf("unexpected sidebar: %+v", doc.Sidebar)
	}
}

func TestCUEParser_ParseMissingFile(t *testing.T) {
	_, err := NewCUEParser().Parse(context.Background(), filepath.Join(t.TempDir(), "missing.cue"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
