package manifest

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func workshopSite() *SiteConfig {
	return &SiteConfig{
		Title: "Sentry Build",
		Sidebar: []NavigationGroup{
			*Group("Workshop",
				Item("Quickstart", "quickstart"),
				Item("Getting Started", "getting-started"),
			),
			*Group("Resources",
				Link("Docs", "https://docs.sentry.io/"),
			),
		},
		Adapter: AdapterOptions{Target: TargetVercel},
	}
}

func TestCompile_WorkshopScenario(t *testing.T) {
	site, err := Compile(workshopSite())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	routes := site.Routes()
	if len(routes) != 3 {
		t.Fatalf("Expected 3 routes, got %d", len(routes))
	}

	expected := []struct {
		label    string
		href     string
		external bool
		section  string
	}{
		{"Quickstart", "/quickstart/", false, "Workshop"},
		{"Getting Started", "/getting-started/", false, "Workshop"},
		{"Docs", "https://docs.sentry.io/", true, "Resources"},
	}

	for i, exp := range expected {
		r := routes[i]
		if r.Label != exp.label {
			t.Errorf("route %d: expected label %q, got %q", i, exp.label, r.Label)
		}
		if r.Href != exp.href {
			t.Errorf("route %d: expected href %q, got %q", i, exp.href, r.Href)
		}
		if r.External != exp.external {
			t.Errorf("route %d: expected external=%v, got %v", i, exp.external, r.External)
		}
		if len(r.Section) != 1 || r.Section[0] != exp.section {
			t.Errorf("route %d: expected section [%s], got %v", i, exp.section, r.Section)
		}
		if r.Depth != 1 {
			t.Errorf("route %d: expected depth 1, got %d", i, r.Depth)
		}
	}

	if routes[2].Slug != "" {
		t.Errorf("External route should have no slug, got %q", routes[2].Slug)
	}
}

func TestCompile_DuplicateSlug(t *testing.T) {
	cfg := &SiteConfig{
		Title: "Docs",
		Sidebar: []NavigationGroup{
			*Group("A", Item("First", "x")),
			*Group("B", Item("Second", "x")),
		},
		Adapter: AdapterOptions{Target: TargetStatic},
	}

	_, err := Compile(cfg)
	var dup *DuplicateSlugError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateSlugError, got %v", err)
	}
	if dup.Slug != "x" {
		t.Errorf("Expected slug 'x', got %q", dup.Slug)
	}
	want := []string{"sidebar[0].items[0]", "sidebar[1].items[0]"}
	if !reflect.DeepEqual(dup.Locations, want) {
		t.Errorf("Expected locations %v, got %v", want, dup.Locations)
	}
	if KindOf(err) != KindDuplicateSlug {
		t.Errorf("Expected kind %s, got %s", KindDuplicateSlug, KindOf(err))
	}
}

func TestCompile_DuplicateSlugAfterNormalisation(t *testing.T) {
	cfg := &SiteConfig{
		Title: "Docs",
		Sidebar: []NavigationGroup{
			*Group("A", Item("First", "guide/setup"), Item("Again", "/guide/setup/")),
		},
		Adapter: AdapterOptions{Target: TargetStatic},
	}

	_, err := Compile(cfg)
	if KindOf(err) != KindDuplicateSlug {
		t.Fatalf("Expected duplicate slug error, got %v", err)
	}
}

func TestCompile_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *SiteConfig)
		kind     ErrorKind
		location string
	}{
		{
			name: "empty group label",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[1].Label = "   "
			},
			kind:     KindInvalidLabel,
			location: "sidebar[1]",
		},
		{
			name: "empty item label",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[0].Items[1] = Item("\t", "getting-started")
			},
			kind:     KindInvalidLabel,
			location: "sidebar[0].items[1]",
		},
		{
			name: "relative link",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[1].Items[0] = Link("Docs", "/docs/")
			},
			kind:     KindInvalidLink,
			location: "sidebar[1].items[0]",
		},
		{
			name: "ftp link",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[1].Items[0] = Link("Docs", "ftp://docs.sentry.io/")
			},
			kind:     KindInvalidLink,
			location: "sidebar[1].items[0]",
		},
		{
			name: "unparseable link",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[1].Items[0] = Link("Docs", "http://[::1")
			},
			kind:     KindInvalidLink,
			location: "sidebar[1].items[0]",
		},
		{
			name: "both slug and link",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[0].Items[0] = &NavigationItem{Label: "Quickstart", Slug: "quickstart", Link: "https://example.com/"}
			},
			kind:     KindInvalidTarget,
			location: "sidebar[0].items[0]",
		},
		{
			name: "neither slug nor link",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[0].Items[0] = &NavigationItem{Label: "Quickstart"}
			},
			kind:     KindInvalidTarget,
			location: "sidebar[0].items[0]",
		},
		{
			name: "unsafe slug",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[0].Items[0] = Item("Quickstart", "../secrets")
			},
			kind:     KindInvalidTarget,
			location: "sidebar[0].items[0]",
		},
		{
			name: "nil entry",
			mutate: func(cfg *SiteConfig) {
				cfg.Sidebar[0].Items[0] = nil
			},
			kind:     KindInvalidTarget,
			location: "sidebar[0].items[0]",
		},
		{
			name: "empty asset pattern",
			mutate: func(cfg *SiteConfig) {
				cfg.Adapter.IncludeFiles = []AssetIncludeRule{"./a/**/*", "  "}
			},
			kind:     KindInvalidAssetPattern,
			location: "adapter.include_files[1]",
		},
		{
			name: "missing title",
			mutate: func(cfg *SiteConfig) {
				cfg.Title = ""
			},
			kind:     KindInvalidSite,
			location: "title",
		},
		{
			name: "blank title",
			mutate: func(cfg *SiteConfig) {
				cfg.Title = " \t "
			},
			kind:     KindInvalidSite,
			location: "title",
		},
		{
			name: "unknown adapter target",
			mutate: func(cfg *SiteConfig) {
				cfg.Adapter.Target = "ftp"
			},
			kind:     KindInvalidSite,
			location: "adapter.target",
		},
		{
			name: "logo without src",
			mutate: func(cfg *SiteConfig) {
				cfg.Logo = &Logo{ReplacesTitle: true}
			},
			kind:     KindInvalidSite,
			location: "logo.src",
		},
		{
			name: "bad social link",
			mutate: func(cfg *SiteConfig) {
				cfg.Social = map[string]string{"github": "github.com/getsentry"}
			},
			kind:     KindInvalidLink,
			location: "social.github",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := workshopSite()
			tt.mutate(cfg)

			site, err := Compile(cfg)
			if err == nil {
				t.Fatalf("Expected error, got site with %d routes", site.Len())
			}
			if site != nil {
				t.Error("Expected no site on error")
			}

			var ce ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected ConfigError, got %T: %v", err, err)
			}
			if ce.Kind() != tt.kind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.kind, ce.Kind(), err)
			}
			if ce.Location() != tt.location {
				t.Errorf("Expected location %q, got %q", tt.location, ce.Location())
			}
		})
	}
}

func TestCompile_NestingDepthBoundary(t *testing.T) {
	nested := func(levels int) *SiteConfig {
		var node NavigationNode = Item("Leaf", "leaf")
		for i := levels; i > 1; i-- {
			node = Group("Nested", node)
		}
		return &SiteConfig{
			Title:   "Docs",
			Sidebar: []NavigationGroup{*Group("Top", node)},
			Adapter: AdapterOptions{Target: TargetStatic},
		}
	}

	site, err := Compile(nested(DefaultMaxDepth))
	if err != nil {
		t.Fatalf("Group at max depth should compile: %v", err)
	}
	if got := site.Routes()[0].Depth; got != DefaultMaxDepth {
		t.Errorf("Expected leaf depth %d, got %d", DefaultMaxDepth, got)
	}

	_, err = Compile(nested(DefaultMaxDepth + 1))
	var deep *NestingTooDeepError
	if !errors.As(err, &deep) {
		t.Fatalf("Expected NestingTooDeepError, got %v", err)
	}
	if deep.Depth != DefaultMaxDepth+1 || deep.Limit != DefaultMaxDepth {
		t.Errorf("Expected depth %d limit %d, got depth %d limit %d",
			DefaultMaxDepth+1, DefaultMaxDepth, deep.Depth, deep.Limit)
	}

	if _, err := NewCompiler(WithMaxDepth(DefaultMaxDepth + 1)).Compile(nested(DefaultMaxDepth + 1)); err != nil {
		t.Errorf("Raised limit should accept deeper nesting: %v", err)
	}
}

func TestCompile_FailFastOrder(t *testing.T) {
	cfg := workshopSite()
	cfg.Sidebar[0].Items[0] = Item("", "quickstart")
	cfg.Sidebar[1].Items[0] = Link("Docs", "nope")
	cfg.Adapter.IncludeFiles = []AssetIncludeRule{""}

	_, err := Compile(cfg)
	if KindOf(err) != KindInvalidLabel {
		t.Fatalf("Expected first error in traversal order (label), got %v", err)
	}
}

func TestCompile_Hrefs(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		trailing TrailingSlash
		slug     string
		want     string
	}{
		{"default", "", "", "guide", "/guide/"},
		{"nested slug", "", "", "guides/setup", "/guides/setup/"},
		{"index", "", "", "index", "/"},
		{"slash only", "", "", "/", "/"},
		{"base path", "/docs", "", "guide", "/docs/guide/"},
		{"base index", "/docs/", TrailingSlashNever, "index", "/docs"},
		{"never", "", TrailingSlashNever, "guide", "/guide"},
		{"never root", "", TrailingSlashNever, "index", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &SiteConfig{
				Title:         "Docs",
				Base:          tt.base,
				TrailingSlash: tt.trailing,
				Sidebar:       []NavigationGroup{*Group("G", Item("Page", tt.slug))},
				Adapter:       AdapterOptions{Target: TargetStatic},
			}
			site, err := Compile(cfg)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if got := site.Routes()[0].Href; got != tt.want {
				t.Errorf("Expected href %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCompile_DoesNotModifyInput(t *testing.T) {
	cfg := workshopSite()
	cfg.Sidebar[0].Items[0] = &NavigationItem{Label: "  Quickstart  ", Slug: "/quickstart/", Attrs: map[string]string{"target": "_self"}}
	cfg.CustomCSS = []string{"./src/styles/custom.css"}

	site, err := Compile(cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	item := cfg.Sidebar[0].Items[0].(*NavigationItem)
	if item.Label != "  Quickstart  " || item.Slug != "/quickstart/" {
		t.Errorf("Input item was modified: %+v", item)
	}

	routes := site.Routes()
	routes[0].Label = "changed"
	routes[0].Attrs["target"] = "_blank"
	again := site.Routes()
	if again[0].Label != "Quickstart" {
		t.Errorf("Routes accessor leaked internal state, label %q", again[0].Label)
	}
	if again[0].Attrs["target"] != "_self" {
		t.Errorf("Routes accessor leaked attrs, got %q", again[0].Attrs["target"])
	}

	cfg.CustomCSS[0] = "mutated.css"
	if site.CustomCSS()[0] != "./src/styles/custom.css" {
		t.Error("Compiled site retained the input CSS slice")
	}
}

func TestCompile_Idempotent(t *testing.T) {
	cfg := workshopSite()
	cfg.Social = map[string]string{"github": "https://github.com/getsentry/sentry-build-javascript", "discord": "https://discord.gg/sentry"}
	cfg.Adapter.IncludeFiles = []AssetIncludeRule{"./src/assets/**/*", "./src/assets/img/**/*"}

	first, err1 := Compile(cfg)
	second, err2 := Compile(cfg)
	if err1 != nil || err2 != nil {
		t.Fatalf("Compile failed: %v / %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Compiling the same input twice produced different sites")
	}

	bad := workshopSite()
	bad.Sidebar[1].Items[0] = Link("Docs", "mailto:docs@sentry.io")
	_, e1 := Compile(bad)
	_, e2 := Compile(bad)
	if e1 == nil || e1.Error() != e2.Error() {
		t.Errorf("Expected identical errors, got %v and %v", e1, e2)
	}
}

func TestCompile_SocialSortedAndLookup(t *testing.T) {
	cfg := workshopSite()
	cfg.Social = map[string]string{
		"x":      "https://x.com/getsentry",
		"github": "https://github.com/getsentry",
	}

	site, err := Compile(cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	social := site.Social()
	if len(social) != 2 || social[0].Name != "github" || social[1].Name != "x" {
		t.Errorf("Expected social links sorted by name, got %+v", social)
	}

	r, ok := site.Lookup("/getting-started")
	if !ok {
		t.Fatal("Lookup of getting-started failed")
	}
	if r.Label != "Getting Started" {
		t.Errorf("Expected label 'Getting Started', got %q", r.Label)
	}
	if _, ok := site.Lookup("missing"); ok {
		t.Error("Lookup of unknown slug should fail")
	}
}

func TestCompiledSite_MarshalJSON(t *testing.T) {
	cfg := workshopSite()
	cfg.Logo = &Logo{Src: "./src/assets/placeholder.svg", ReplacesTitle: true}
	cfg.Adapter.ImageService = true
	cfg.Adapter.IncludeFiles = []AssetIncludeRule{"./src/assets/**/*"}

	site, err := Compile(cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	data, err := json.Marshal(site)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	routes, ok := decoded["routes"].([]interface{})
	if !ok || len(routes) != 3 {
		t.Fatalf("Expected 3 routes in JSON, got %v", decoded["routes"])
	}
	third := routes[2].(map[string]interface{})
	if third["external"] != true {
		t.Errorf("Expected third route external, got %v", third["external"])
	}
	if !strings.Contains(string(data), `"replaces_title":true`) {
		t.Errorf("Expected logo in JSON, got %s", data)
	}
	adapter := decoded["adapter"].(map[string]interface{})
	if adapter["target"] != "vercel" || adapter["image_service"] != true {
		t.Errorf("Unexpected adapter JSON: %v", adapter)
	}
}

func TestCompile_NilConfig(t *testing.T) {
	if _, err := Compile(nil); KindOf(err) != KindInvalidSite {
		t.Errorf("Expected invalid site error for nil config, got %v", err)
	}
}
