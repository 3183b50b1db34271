package manifest

// TrailingSlash controls how internal hrefs end.
type TrailingSlash string

const (
	// TrailingSlashAlways renders "/guide/" style hrefs.
	TrailingSlashAlways TrailingSlash = "always"

	// TrailingSlashNever renders "/guide" style hrefs.
	TrailingSlashNever TrailingSlash = "never"
)

// Adapter targets understood by the compiler.
const (
	TargetVercel  = "vercel"
	TargetNetlify = "netlify"
	TargetNode    = "node"
	TargetStatic  = "static"
)

// SiteConfig is the root of a documentation-site manifest.
type SiteConfig struct {
	// Title is the site title shown in the header.
	Title string `json:"title" validate:"required"`

	// Logo optionally replaces or accompanies the title.
	Logo *Logo `json:"logo,omitempty"`

	// Social maps a network name (e.g. "github") to a profile URL.
	Social map[string]string `json:"social,omitempty"`

	// CustomCSS lists stylesheet paths injected after the theme.
	CustomCSS []string `json:"custom_css,omitempty" validate:"dive,required"`

	// Components maps a theme component name to an override path.
	Components map[string]string `json:"components,omitempty" validate:"dive,keys,required,endkeys,required"`

	// Sidebar is the ordered list of top-level navigation groups.
	Sidebar []NavigationGroup `json:"sidebar"`

	// Base is the URL path the site is served under. Defaults to "/".
	Base string `json:"base,omitempty" validate:"omitempty,startswith=/"`

	// TrailingSlash selects the href style for internal pages.
	TrailingSlash TrailingSlash `json:"trailing_slash,omitempty" validate:"omitempty,oneof=always never"`

	// Adapter configures asset packaging for the hosting platform.
	Adapter AdapterOptions `json:"adapter"`
}

// Logo describes the site logo.
type Logo struct {
	// Src is the logo asset path.
	Src string `json:"src" validate:"required"`

	// ReplacesTitle hides the title text when the logo is shown.
	ReplacesTitle bool `json:"replaces_title,omitempty"`
}

// AdapterOptions configures the deployment adapter.
type AdapterOptions struct {
	// Target is the hosting platform.
	Target string `json:"target" validate:"required,oneof=vercel netlify node static"`

	// ImageService enables the platform image optimisation service.
	ImageService bool `json:"image_service,omitempty"`

	// IncludeFiles lists globs of extra files bundled with the deployment.
	IncludeFiles []AssetIncludeRule `json:"include_files,omitempty"`
}

// AssetIncludeRule is a glob identifying files to bundle for deployment.
type AssetIncludeRule string

// NavigationNode is either a *NavigationItem or a *NavigationGroup.
type NavigationNode interface {
	// NodeLabel returns the label as written in the manifest.
	NodeLabel() string

	isNavigationNode()
}

// NavigationItem is a sidebar leaf pointing to a content page or an
// external URL. Exactly one of Slug and Link must be set.
type NavigationItem struct {
	Label string            `json:"label"`
	Slug  string            `json:"slug,omitempty"`
	Link  string            `json:"link,omitempty"`
	Badge string            `json:"badge,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// NavigationGroup is a labelled, ordered collection of nodes.
type NavigationGroup struct {
	Label     string           `json:"label"`
	Items     []NavigationNode `json:"items"`
	Collapsed bool             `json:"collapsed,omitempty"`
}

// NodeLabel implements NavigationNode.
func (i *NavigationItem) NodeLabel() string { return i.Label }

// NodeLabel implements NavigationNode.
func (g *NavigationGroup) NodeLabel() string { return g.Label }

func (*NavigationItem) isNavigationNode()  {}
func (*NavigationGroup) isNavigationNode() {}

// Item builds an internal sidebar entry.
func Item(label, slug string) *NavigationItem {
	return &NavigationItem{Label: label, Slug: slug}
}

// Link builds an external sidebar entry.
func Link(label, url string) *NavigationItem {
	return &NavigationItem{Label: label, Link: url}
}

// Group builds a sidebar group.
func Group(label string, items ...NavigationNode) *NavigationGroup {
	return &NavigationGroup{Label: label, Items: items}
}

// CountItems returns the number of leaf items below the given groups.
func CountItems(groups []NavigationGroup) int {
	n := 0
	for i := range groups {
		n += countNode(&groups[i])
	}
	return n
}

func countNode(node NavigationNode) int {
	switch n := node.(type) {
	case *NavigationItem:
		return 1
	case *NavigationGroup:
		total := 0
		for _, child := range n.Items {
			total += countNode(child)
		}
		return total
	default:
		return 0
	}
}
