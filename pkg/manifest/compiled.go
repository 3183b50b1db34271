package manifest

import (
	"encoding/json"
	"maps"
	"slices"
)

// Route is one rendered sidebar entry.
type Route struct {
	// Label is the trimmed display label.
	Label string `json:"label"`

	// Href is the internal page path or the external URL.
	Href string `json:"href"`

	// External is true for link items.
	External bool `json:"external"`

	// Slug is the normalised slug of an internal item, empty for links.
	Slug string `json:"slug,omitempty"`

	// Section lists the labels of the enclosing groups, outermost first.
	Section []string `json:"section"`

	// Depth is the number of enclosing groups.
	Depth int `json:"depth"`

	// Badge is optional badge text rendered next to the label.
	Badge string `json:"badge,omitempty"`

	// Attrs are passed through to the rendered anchor.
	Attrs map[string]string `json:"attrs,omitempty"`

	// Location is the manifest path of the source item.
	Location string `json:"location"`
}

// Overlap records a pattern already covered by a broader one.
type Overlap struct {
	Pattern   string `json:"pattern"`
	CoveredBy string `json:"covered_by"`
}

// AssetPlan is the deduplicated list of include globs.
type AssetPlan struct {
	Patterns []string  `json:"patterns"`
	Overlaps []Overlap `json:"overlaps,omitempty"`
}

// SocialLink is a validated social profile link.
type SocialLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AdapterPlan is the adapter section of a compiled site.
type AdapterPlan struct {
	Target       string `json:"target"`
	ImageService bool   `json:"image_service"`
}

// CompiledSite is the immutable result of Compile. Accessors return copies,
// so callers cannot alter the compiled value.
type CompiledSite struct {
	title      string
	logo       *Logo
	social     []SocialLink
	customCSS  []string
	components map[string]string
	routes     []Route
	bySlug     map[string]int
	assets     AssetPlan
	adapter    AdapterPlan
}

// Title returns the site title.
func (s *CompiledSite) Title() string { return s.title }

// Logo returns the site logo, or nil.
func (s *CompiledSite) Logo() *Logo {
	if s.logo == nil {
		return nil
	}
	l := *s.logo
	return &l
}

// Social returns the social links sorted by name.
func (s *CompiledSite) Social() []SocialLink { return slices.Clone(s.social) }

// CustomCSS returns the custom stylesheet paths in manifest order.
func (s *CompiledSite) CustomCSS() []string { return slices.Clone(s.customCSS) }

// Components returns the component overrides.
func (s *CompiledSite) Components() map[string]string { return maps.Clone(s.components) }

// Routes returns the routing table in sidebar order.
func (s *CompiledSite) Routes() []Route {
	out := make([]Route, len(s.routes))
	for i, r := range s.routes {
		out[i] = r.clone()
	}
	return out
}

// Len returns the number of routes.
func (s *CompiledSite) Len() int { return len(s.routes) }

// Lookup returns the route owning an internal slug.
func (s *CompiledSite) Lookup(slug string) (Route, bool) {
	i, ok := s.bySlug[normalizeSlug(slug)]
	if !ok {
		return Route{}, false
	}
	return s.routes[i].clone(), true
}

// Assets returns the asset plan.
func (s *CompiledSite) Assets() AssetPlan {
	return AssetPlan{
		Patterns: slices.Clone(s.assets.Patterns),
		Overlaps: slices.Clone(s.assets.Overlaps),
	}
}

// Adapter returns the adapter settings.
func (s *CompiledSite) Adapter() AdapterPlan { return s.adapter }

// compiledSiteJSON is the wire form of a CompiledSite.
type compiledSiteJSON struct {
	Title      string            `json:"title"`
	Logo       *Logo             `json:"logo,omitempty"`
	Social     []SocialLink      `json:"social,omitempty"`
	CustomCSS  []string          `json:"custom_css,omitempty"`
	Components map[string]string `json:"components,omitempty"`
	Routes     []Route           `json:"routes"`
	Assets     AssetPlan         `json:"assets"`
	Adapter    AdapterPlan       `json:"adapter"`
}

// MarshalJSON implements json.Marshaler.
func (s *CompiledSite) MarshalJSON() ([]byte, error) {
	return json.Marshal(compiledSiteJSON{
		Title:      s.title,
		Logo:       s.logo,
		Social:     s.social,
		CustomCSS:  s.customCSS,
		Components: s.components,
		Routes:     s.routes,
		Assets:     s.assets,
		Adapter:    s.adapter,
	})
}

func (r Route) clone() Route {
	r.Section = slices.Clone(r.Section)
	r.Attrs = maps.Clone(r.Attrs)
	return r
}
