package manifest

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxDepth is the deepest level a group may be nested at. Top-level
// sidebar groups are at depth 1.
const DefaultMaxDepth = 3

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_~-][A-Za-z0-9._~-]*(/[A-Za-z0-9_~-][A-Za-z0-9._~-]*)*$`)

// Compiler validates SiteConfig values and compiles them into CompiledSite
// values. A Compiler holds no per-call state and is safe for concurrent use.
type Compiler struct {
	maxDepth int
	collapse bool
	validate *validator.Validate
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMaxDepth sets the maximum group nesting depth. Values below 1 are
// ignored.
func WithMaxDepth(depth int) Option {
	return func(c *Compiler) {
		if depth >= 1 {
			c.maxDepth = depth
		}
	}
}

// WithCollapseOverlaps drops patterns covered by a broader pattern from
// the asset plan. Overlaps are reported either way.
func WithCollapseOverlaps(collapse bool) Option {
	return func(c *Compiler) {
		c.collapse = collapse
	}
}

// NewCompiler creates a compiler.
func NewCompiler(opts ...Option) *Compiler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	c := &Compiler{
		maxDepth: DefaultMaxDepth,
		validate: v,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxDepth returns the configured nesting limit.
func (c *Compiler) MaxDepth() int { return c.maxDepth }

// Compile compiles cfg with default options.
func Compile(cfg *SiteConfig) (*CompiledSite, error) {
	return NewCompiler().Compile(cfg)
}

// Compile validates cfg and returns the compiled site. The first problem
// found is returned as a ConfigError; cfg is never modified.
func (c *Compiler) Compile(cfg *SiteConfig) (*CompiledSite, error) {
	if cfg == nil {
		return nil, &InvalidSiteError{Field: "site", Rule: "required"}
	}
	if err := c.validateSite(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Title) == "" {
		return nil, &InvalidSiteError{Field: "title", Rule: "required"}
	}

	social, err := compileSocial(cfg.Social)
	if err != nil {
		return nil, err
	}

	w := &walker{
		maxDepth: c.maxDepth,
		base:     baseDir(cfg.Base),
		trailing: cfg.TrailingSlash,
		owners:   make(map[string]string),
		bySlug:   make(map[string]int),
	}
	if w.trailing == "" {
		w.trailing = TrailingSlashAlways
	}
	for i := range cfg.Sidebar {
		if err := w.group(&cfg.Sidebar[i], fmt.Sprintf("sidebar[%d]", i), 1, nil); err != nil {
			return nil, err
		}
	}

	assets, err := compileAssets(cfg.Adapter.IncludeFiles, c.collapse)
	if err != nil {
		return nil, err
	}

	site := &CompiledSite{
		title:      strings.TrimSpace(cfg.Title),
		social:     social,
		customCSS:  slices.Clone(cfg.CustomCSS),
		components: maps.Clone(cfg.Components),
		routes:     w.routes,
		bySlug:     w.bySlug,
		assets:     assets,
		adapter: AdapterPlan{
			Target:       cfg.Adapter.Target,
			ImageService: cfg.Adapter.ImageService,
		},
	}
	if cfg.Logo != nil {
		logo := *cfg.Logo
		site.logo = &logo
	}
	return site, nil
}

func (c *Compiler) validateSite(cfg *SiteConfig) error {
	err := c.validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		value := ""
		if fe.Kind() == reflect.String {
			value = fmt.Sprint(fe.Value())
		}
		return &InvalidSiteError{Field: field, Rule: fe.Tag(), Value: value}
	}
	return fmt.Errorf("validating site: %w", err)
}

func compileSocial(social map[string]string) ([]SocialLink, error) {
	if len(social) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(social))
	for name := range social {
		names = append(names, name)
	}
	sort.Strings(names)

	links := make([]SocialLink, 0, len(names))
	for _, name := range names {
		u, err := checkLink("social."+name, social[name])
		if err != nil {
			return nil, err
		}
		links = append(links, SocialLink{Name: name, URL: u})
	}
	return links, nil
}

// walker carries the state of one depth-first sidebar traversal.
type walker struct {
	maxDepth int
	base     string
	trailing TrailingSlash
	routes   []Route
	owners   map[string]string
	bySlug   map[string]int
}

func (w *walker) group(g *NavigationGroup, path string, depth int, section []string) error {
	if depth > w.maxDepth {
		return &NestingTooDeepError{Path: path, Depth: depth, Limit: w.maxDepth}
	}
	label := normalizeLabel(g.Label)
	if label == "" {
		return &InvalidLabelError{Path: path}
	}

	section = append(slices.Clip(section), label)
	for i, child := range g.Items {
		childPath := fmt.Sprintf("%s.items[%d]", path, i)
		switch n := child.(type) {
		case *NavigationItem:
			if n == nil {
				return &InvalidTargetError{Path: childPath, Reason: "sidebar entry is empty"}
			}
			if err := w.item(n, childPath, depth, section); err != nil {
				return err
			}
		case *NavigationGroup:
			if n == nil {
				return &InvalidTargetError{Path: childPath, Reason: "sidebar entry is empty"}
			}
			if err := w.group(n, childPath, depth+1, section); err != nil {
				return err
			}
		case nil:
			return &InvalidTargetError{Path: childPath, Reason: "sidebar entry is empty"}
		default:
			return &InvalidTargetError{Path: childPath, Reason: fmt.Sprintf("unsupported sidebar entry %T", child)}
		}
	}
	return nil
}

func (w *walker) item(it *NavigationItem, path string, depth int, section []string) error {
	label := normalizeLabel(it.Label)
	if label == "" {
		return &InvalidLabelError{Path: path}
	}

	slug := strings.TrimSpace(it.Slug)
	link := strings.TrimSpace(it.Link)
	switch {
	case slug != "" && link != "":
		return &InvalidTargetError{Path: path, Reason: "item sets both slug and link; set exactly one"}
	case slug == "" && link == "":
		return &InvalidTargetError{Path: path, Reason: "item sets neither slug nor link"}
	}

	route := Route{
		Label:    label,
		Section:  slices.Clone(section),
		Depth:    depth,
		Badge:    it.Badge,
		Attrs:    maps.Clone(it.Attrs),
		Location: path,
	}

	if link != "" {
		href, err := checkLink(path, link)
		if err != nil {
			return err
		}
		route.Href = href
		route.External = true
		w.routes = append(w.routes, route)
		return nil
	}

	slug = normalizeSlug(slug)
	if !slugPattern.MatchString(slug) {
		return &InvalidTargetError{Path: path, Reason: fmt.Sprintf("slug %q is not URL-path-safe", it.Slug)}
	}
	if owner, dup := w.owners[slug]; dup {
		return &DuplicateSlugError{Slug: slug, Locations: []string{owner, path}}
	}
	w.owners[slug] = path
	route.Slug = slug
	route.Href = w.href(slug)

	w.bySlug[slug] = len(w.routes)
	w.routes = append(w.routes, route)
	return nil
}

func (w *walker) href(slug string) string {
	p := w.base
	if slug != "index" {
		p += slug + "/"
	}
	if w.trailing == TrailingSlashNever && p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// checkLink returns the trimmed link when it is an absolute http(s) URL.
func checkLink(path, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	u, err := url.Parse(v)
	if err != nil {
		return "", &InvalidLinkError{Path: path, Value: raw, Err: err}
	}
	scheme := strings.ToLower(u.Scheme)
	if !u.IsAbs() || (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", &InvalidLinkError{Path: path, Value: raw}
	}
	return v, nil
}

func normalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

// normalizeSlug trims surrounding whitespace and slashes. A slug made only
// of slashes refers to the site index.
func normalizeSlug(slug string) string {
	s := strings.Trim(strings.TrimSpace(slug), "/")
	if s == "" {
		return "index"
	}
	return s
}

// baseDir returns base with exactly one leading and trailing slash.
func baseDir(base string) string {
	b := strings.Trim(strings.TrimSpace(base), "/")
	if b == "" {
		return "/"
	}
	return "/" + b + "/"
}
