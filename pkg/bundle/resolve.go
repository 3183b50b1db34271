package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/starchart/starchart/pkg/manifest"
)

// File is one project file selected by the asset plan.
type File struct {
	// Path is slash-separated and relative to the project root, with a
	// "./" prefix to match the pattern form.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex digest of the file contents.
	SHA256 string `json:"sha256"`

	// Patterns lists every plan pattern that matched the file.
	Patterns []string `json:"patterns"`
}

// Resolution is an asset plan resolved against a project tree.
type Resolution struct {
	Root      string   `json:"root"`
	Files     []File   `json:"files"`
	TotalSize int64    `json:"total_size"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// HumanSize returns TotalSize in human readable form, e.g. "1.2 MB".
func (r *Resolution) HumanSize() string {
	return humanize.Bytes(uint64(r.TotalSize))
}

// Resolver walks a project tree and selects the files an asset plan
// includes.
type Resolver struct {
	workers  int
	skipDirs map[string]bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithWorkers sets how many files are hashed concurrently.
func WithWorkers(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSkipDirs adds directory names that are never descended into.
func WithSkipDirs(names ...string) ResolverOption {
	return func(r *Resolver) {
		for _, n := range names {
			r.skipDirs[n] = true
		}
	}
}

// NewResolver creates a resolver. ".git" and "node_modules" are skipped.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		workers:  runtime.NumCPU() * 2,
		skipDirs: map[string]bool{".git": true, "node_modules": true},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves plan against root with default options.
func Resolve(ctx context.Context, root string, plan manifest.AssetPlan) (*Resolution, error) {
	return NewResolver().Resolve(ctx, root, plan)
}

type matcher struct {
	pattern string
	glob    glob.Glob
}

// Resolve walks root and returns every regular file matched by at least
// one pattern of plan. Each file is listed once, in path order, no matter
// how many patterns match it.
func (r *Resolver) Resolve(ctx context.Context, root string, plan manifest.AssetPlan) (*Resolution, error) {
	matchers := make([]matcher, 0, len(plan.Patterns))
	for _, p := range plan.Patterns {
		g, err := manifest.CompilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", p, err)
		}
		matchers = append(matchers, matcher{pattern: p, glob: g})
	}

	res := &Resolution{Root: root, Files: []File{}}
	if len(matchers) == 0 {
		return res, nil
	}

	hits := make(map[string]int, len(matchers))
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && r.skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		var matched []string
		for _, m := range matchers {
			if m.glob.Match(rel) {
				matched = append(matched, m.pattern)
				hits[m.pattern]++
			}
		}
		if len(matched) > 0 {
			res.Files = append(res.Files, File{Path: "./" + rel, Patterns: matched})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	for _, m := range matchers {
		if hits[m.pattern] == 0 {
			res.Unmatched = append(res.Unmatched, m.pattern)
		}
	}

	if err := r.hashAll(ctx, root, res.Files); err != nil {
		return nil, err
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	for i := range res.Files {
		res.TotalSize += res.Files[i].Size
	}
	return res, nil
}

// hashAll fills in Size and SHA256 for every file with a bounded number of
// workers. Each goroutine writes only its own slice element.
func (r *Resolver) hashAll(ctx context.Context, root string, files []File) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := range files {
		f := &files[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			size, sum, err := hashFile(filepath.Join(root, filepath.FromSlash(f.Path)))
			if err != nil {
				return fmt.Errorf("failed to hash %s: %w", f.Path, err)
			}
			f.Size = size
			f.SHA256 = sum
			return nil
		})
	}
	return g.Wait()
}

func hashFile(path string) (int64, string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer fh.Close()

	h := sha256.New()
	n, err := io.Copy(h, fh)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
