package config

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starchart/starchart/pkg/manifest"
)

// ScaffoldOptions controls Scaffold.
type ScaffoldOptions struct {
	// Title is the site title. Defaults to the title-cased directory name.
	Title string

	// Target is the adapter target. Defaults to "static".
	Target string

	// RootGroup labels the group holding pages at the content root.
	RootGroup string

	// Extensions lists page file extensions. Defaults to .md and .mdx.
	Extensions []string
}

// pageMeta is the front matter Scaffold reads from each page.
type pageMeta struct {
	Title   string `yaml:"title"`
	Sidebar struct {
		Label  string `yaml:"label"`
		Order  *int   `yaml:"order"`
		Hidden bool   `yaml:"hidden"`
		Badge  string `yaml:"badge"`
	} `yaml:"sidebar"`
}

type scaffoldPage struct {
	name  string
	slug  string
	label string
	badge string
	order int
}

type scaffoldDir struct {
	name  string
	pages []scaffoldPage
	dirs  map[string]*scaffoldDir
}

func newScaffoldDir(name string) *scaffoldDir {
	return &scaffoldDir{name: name, dirs: make(map[string]*scaffoldDir)}
}

// Scaffold builds a site configuration from a content directory. Pages at
// the root form one group and each subdirectory becomes a group of its
// own. Labels come from front matter (sidebar.label, then title) and fall
// back to the title-cased file name.
func Scaffold(ctx context.Context, contentDir string, opts ScaffoldOptions) (*manifest.SiteConfig, error) {
	if opts.Target == "" {
		opts.Target = manifest.TargetStatic
	}
	if opts.RootGroup == "" {
		opts.RootGroup = "Docs"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md", ".mdx"}
	}
	titleCaser := cases.Title(language.English)

	root := newScaffoldDir("")
	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("error accessing path '%s' during walk: %w", path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != contentDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !slices.Contains(opts.Extensions, ext) {
			return nil
		}

		rel, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}
		page, ok, err := readPage(path, filepath.ToSlash(rel), titleCaser)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		dir := root
		parts := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
		for _, part := range parts {
			if part == "." {
				continue
			}
			next, exists := dir.dirs[part]
			if !exists {
				next = newScaffoldDir(part)
				dir.dirs[part] = next
			}
			dir = next
		}
		dir.pages = append(dir.pages, page)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan content directory: %w", err)
	}

	title := opts.Title
	if title == "" {
		abs, _ := filepath.Abs(contentDir)
		title = titleCaser.String(humanize(filepath.Base(abs)))
	}

	cfg := &manifest.SiteConfig{
		Title:   title,
		Adapter: manifest.AdapterOptions{Target: opts.Target},
	}
	if len(root.pages) > 0 {
		cfg.Sidebar = append(cfg.Sidebar, *manifest.Group(opts.RootGroup, pageItems(root.pages)...))
	}
	for _, name := range sortedDirs(root) {
		cfg.Sidebar = append(cfg.Sidebar, *dirGroup(root.dirs[name], titleCaser))
	}
	return cfg, nil
}

func readPage(path, rel string, titleCaser cases.Caser) (scaffoldPage, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return scaffoldPage{}, false, fmt.Errorf("failed to read page '%s': %w", path, err)
	}

	var meta pageMeta
	if _, err := frontmatter.Parse(bytes.NewReader(content), &meta); err != nil {
		// Pages with malformed front matter still get a sidebar entry.
		meta = pageMeta{}
	}
	if meta.Sidebar.Hidden {
		return scaffoldPage{}, false, nil
	}

	base := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	slug := strings.TrimSuffix(rel, filepath.Ext(rel))
	if base == "index" {
		if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
			slug = dir
		}
	}

	label := meta.Sidebar.Label
	if label == "" {
		label = meta.Title
	}
	if label == "" {
		if base == "index" {
			label = "Overview"
		} else {
			label = titleCaser.String(humanize(base))
		}
	}

	page := scaffoldPage{
		name:  base,
		slug:  slug,
		label: label,
		badge: meta.Sidebar.Badge,
		order: 1 << 30,
	}
	if meta.Sidebar.Order != nil {
		page.order = *meta.Sidebar.Order
	}
	return page, true, nil
}

func dirGroup(dir *scaffoldDir, titleCaser cases.Caser) *manifest.NavigationGroup {
	g := manifest.Group(titleCaser.String(humanize(dir.name)), pageItems(dir.pages)...)
	for _, name := range sortedDirs(dir) {
		g.Items = append(g.Items, dirGroup(dir.dirs[name], titleCaser))
	}
	return g
}

func pageItems(pages []scaffoldPage) []manifest.NavigationNode {
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].order != pages[j].order {
			return pages[i].order < pages[j].order
		}
		return pages[i].name < pages[j].name
	})
	items := make([]manifest.NavigationNode, 0, len(pages))
	for _, p := range pages {
		it := manifest.Item(p.label, p.slug)
		it.Badge = p.badge
		items = append(items, it)
	}
	return items
}

func sortedDirs(dir *scaffoldDir) []string {
	names := make([]string, 0, len(dir.dirs))
	for name := range dir.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func humanize(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "-", " "), "_", " ")
}
