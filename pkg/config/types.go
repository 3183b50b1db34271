package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/starchart/starchart/pkg/manifest"
)

// Format identifies a manifest source format.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
	FormatTOML     Format = "toml"
	FormatCUE      Format = "cue"
	FormatStarlark Format = "starlark"
)

// Document is the on-disk manifest schema shared by every source format.
// Field names follow the camelCase keys of the site configuration.
type Document struct {
	// Title is the site title.
	Title string `json:"title" yaml:"title" toml:"title"`

	// Logo replaces or accompanies the title in the header.
	Logo *LogoDocument `json:"logo,omitempty" yaml:"logo,omitempty" toml:"logo,omitempty"`

	// Social maps a network name (e.g. "github") to a profile URL.
	Social map[string]string `json:"social,omitempty" yaml:"social,omitempty" toml:"social,omitempty"`

	// CustomCSS lists stylesheets appended after the theme.
	CustomCSS []string `json:"customCss,omitempty" yaml:"customCss,omitempty" toml:"customCss,omitempty"`

	// Components maps a component name to an override path.
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty" toml:"components,omitempty"`

	// Sidebar holds the top-level navigation groups.
	Sidebar []NodeDocument `json:"sidebar,omitempty" yaml:"sidebar,omitempty" toml:"sidebar,omitempty"`

	// Base is the URL base path.
	Base string `json:"base,omitempty" yaml:"base,omitempty" toml:"base,omitempty"`

	// TrailingSlash is "always" or "never".
	TrailingSlash string `json:"trailingSlash,omitempty" yaml:"trailingSlash,omitempty" toml:"trailingSlash,omitempty"`

	// Adapter configures the deployment adapter.
	Adapter AdapterDocument `json:"adapter" yaml:"adapter" toml:"adapter"`
}

// LogoDocument is the logo block of a manifest.
type LogoDocument struct {
	Src           string `json:"src" yaml:"src" toml:"src"`
	ReplacesTitle bool   `json:"replacesTitle,omitempty" yaml:"replacesTitle,omitempty" toml:"replacesTitle,omitempty"`
}

// AdapterDocument is the adapter block of a manifest.
type AdapterDocument struct {
	Target       string   `json:"target" yaml:"target" toml:"target"`
	ImageService bool     `json:"imageService,omitempty" yaml:"imageService,omitempty" toml:"imageService,omitempty"`
	IncludeFiles []string `json:"includeFiles,omitempty" yaml:"includeFiles,omitempty" toml:"includeFiles,omitempty"`
}

// NodeDocument is one sidebar entry. An entry with an items key is a
// group; any other entry is an item.
type NodeDocument struct {
	Label     string            `json:"label" yaml:"label" toml:"label"`
	Slug      string            `json:"slug,omitempty" yaml:"slug,omitempty" toml:"slug,omitempty"`
	Link      string            `json:"link,omitempty" yaml:"link,omitempty" toml:"link,omitempty"`
	Badge     string            `json:"badge,omitempty" yaml:"badge,omitempty" toml:"badge,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty" toml:"attrs,omitempty"`
	Collapsed bool              `json:"collapsed,omitempty" yaml:"collapsed,omitempty" toml:"collapsed,omitempty"`
	Items     []NodeDocument    `json:"items,omitempty" yaml:"items,omitempty" toml:"items,omitempty"`
}

func (n *NodeDocument) isGroup() bool {
	return n.Items != nil || n.Collapsed
}

// ToSiteConfig converts the document into the compiler's input model.
// Entries that mix group and item keys are rejected with the manifest
// path of the entry.
func (d *Document) ToSiteConfig() (*manifest.SiteConfig, error) {
	cfg := &manifest.SiteConfig{
		Title:         d.Title,
		Social:        d.Social,
		CustomCSS:     d.CustomCSS,
		Components:    d.Components,
		Base:          d.Base,
		TrailingSlash: manifest.TrailingSlash(d.TrailingSlash),
		Adapter: manifest.AdapterOptions{
			Target:       d.Adapter.Target,
			ImageService: d.Adapter.ImageService,
		},
	}
	if d.Logo != nil {
		cfg.Logo = &manifest.Logo{Src: d.Logo.Src, ReplacesTitle: d.Logo.ReplacesTitle}
	}
	for _, p := range d.Adapter.IncludeFiles {
		cfg.Adapter.IncludeFiles = append(cfg.Adapter.IncludeFiles, manifest.AssetIncludeRule(p))
	}

	for i := range d.Sidebar {
		path := fmt.Sprintf("sidebar[%d]", i)
		node := &d.Sidebar[i]
		if !node.isGroup() {
			return nil, &manifest.InvalidTargetError{Path: path, Reason: "top-level sidebar entries must be groups with items"}
		}
		g, err := node.toGroup(path)
		if err != nil {
			return nil, err
		}
		cfg.Sidebar = append(cfg.Sidebar, *g)
	}
	return cfg, nil
}

func (n *NodeDocument) toGroup(path string) (*manifest.NavigationGroup, error) {
	if n.Slug != "" || n.Link != "" {
		return nil, &manifest.InvalidTargetError{Path: path, Reason: "group entries cannot set slug or link"}
	}
	g := &manifest.NavigationGroup{
		Label:     n.Label,
		Collapsed: n.Collapsed,
		Items:     make([]manifest.NavigationNode, 0, len(n.Items)),
	}
	for i := range n.Items {
		child := &n.Items[i]
		childPath := fmt.Sprintf("%s.items[%d]", path, i)
		if child.isGroup() {
			cg, err := child.toGroup(childPath)
			if err != nil {
				return nil, err
			}
			g.Items = append(g.Items, cg)
			continue
		}
		g.Items = append(g.Items, &manifest.NavigationItem{
			Label: child.Label,
			Slug:  child.Slug,
			Link:  child.Link,
			Badge: child.Badge,
			Attrs: child.Attrs,
		})
	}
	return g, nil
}

// FromSiteConfig builds a document from a site configuration. It is the
// inverse of ToSiteConfig and is used when writing scaffolded manifests.
func FromSiteConfig(cfg *manifest.SiteConfig) *Document {
	d := &Document{
		Title:         cfg.Title,
		Social:        cfg.Social,
		CustomCSS:     cfg.CustomCSS,
		Components:    cfg.Components,
		Base:          cfg.Base,
		TrailingSlash: string(cfg.TrailingSlash),
		Adapter: AdapterDocument{
			Target:       cfg.Adapter.Target,
			ImageService: cfg.Adapter.ImageService,
		},
	}
	if cfg.Logo != nil {
		d.Logo = &LogoDocument{Src: cfg.Logo.Src, ReplacesTitle: cfg.Logo.ReplacesTitle}
	}
	for _, r := range cfg.Adapter.IncludeFiles {
		d.Adapter.IncludeFiles = append(d.Adapter.IncludeFiles, string(r))
	}
	for i := range cfg.Sidebar {
		d.Sidebar = append(d.Sidebar, groupDocument(&cfg.Sidebar[i]))
	}
	return d
}

func groupDocument(g *manifest.NavigationGroup) NodeDocument {
	doc := NodeDocument{Label: g.Label, Collapsed: g.Collapsed, Items: []NodeDocument{}}
	for _, child := range g.Items {
		switch n := child.(type) {
		case *manifest.NavigationItem:
			doc.Items = append(doc.Items, NodeDocument{
				Label: n.Label,
				Slug:  n.Slug,
				Link:  n.Link,
				Badge: n.Badge,
				Attrs: n.Attrs,
			})
		case *manifest.NavigationGroup:
			doc.Items = append(doc.Items, groupDocument(n))
		}
	}
	return doc
}

// ValidationError represents a source error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the value path of the error (e.g., "sidebar.0.label").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity"`
}

func (ve ValidationError) String() string {
	var b strings.Builder
	if ve.File != "" {
		b.WriteString(ve.File)
		if ve.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", ve.Line, ve.Column)
		}
		b.WriteString(": ")
	}
	if ve.Path != "" {
		b.WriteString(ve.Path)
		b.WriteString(": ")
	}
	b.WriteString(ve.Message)
	return b.String()
}

// LoadError reports a manifest source that could not be decoded into a
// Document.
type LoadError struct {
	Source string
	Format Format
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("loading %s manifest %s failed", e.Format, e.Source)
	}
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return fmt.Sprintf("loading %s manifest %s: %s", e.Format, e.Source, strings.Join(msgs, "; "))
}

// Source is a loaded manifest.
type Source struct {
	// Path is the manifest file the site was loaded from.
	Path string `json:"path"`

	// Format is the detected source format.
	Format Format `json:"format"`

	// Document is the decoded manifest.
	Document *Document `json:"document"`

	// LoadedAt is when the manifest was read.
	LoadedAt time.Time `json:"loaded_at"`
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output holds the exported globals of the script.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
