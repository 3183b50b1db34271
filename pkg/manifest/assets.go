package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

const globMeta = "*?[{"

// maxGlobstars bounds the "**" segments in one pattern. Each one doubles
// the globs compiled for matching.
const maxGlobstars = 8

// NormalizePattern returns the canonical form of an include glob: cleaned,
// relative to the project root and prefixed with "./". The returned reason
// is non-empty when the pattern is unusable.
func NormalizePattern(raw string) (pattern string, reason string) {
	cleaned, reason := cleanPattern(raw)
	if reason != "" {
		return "", reason
	}
	return "./" + cleaned, ""
}

// CompilePattern compiles a normalised include glob for matching
// slash-separated paths relative to the project root. A "**/" segment
// matches zero or more directories, so "src/**/*" also matches "src/a".
func CompilePattern(pattern string) (glob.Glob, error) {
	return compileGlob(strings.TrimPrefix(pattern, "./"))
}

// anyGlob matches when any of its alternatives does.
type anyGlob []glob.Glob

func (a anyGlob) Match(s string) bool {
	for _, g := range a {
		if g.Match(s) {
			return true
		}
	}
	return false
}

func compileGlob(p string) (glob.Glob, error) {
	variants := globstarVariants(p)
	if len(variants) == 1 {
		return glob.Compile(p, '/')
	}
	out := make(anyGlob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// globstarVariants expands every "**/" segment into the forms with and
// without it.
func globstarVariants(p string) []string {
	i := strings.Index(p, "**/")
	if i < 0 || (i > 0 && p[i-1] != '/') {
		return []string{p}
	}
	head, tail := p[:i], p[i+3:]
	var out []string
	for _, rest := range globstarVariants(tail) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}

func cleanPattern(raw string) (string, string) {
	p := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	if p == "" {
		return "", "pattern is empty"
	}
	if strings.HasPrefix(p, "/") {
		return "", "absolute paths are not allowed"
	}

	cleaned := path.Clean(p)
	switch {
	case cleaned == ".":
		return "", "pattern is empty"
	case cleaned == ".." || strings.HasPrefix(cleaned, "../"):
		return "", "pattern escapes the project root"
	}

	cleaned, globstars := collapseGlobstars(cleaned)
	if globstars > maxGlobstars {
		return "", fmt.Sprintf("too many ** segments (%d, limit %d)", globstars, maxGlobstars)
	}

	if _, err := glob.Compile(cleaned, '/'); err != nil {
		return "", "malformed glob: " + err.Error()
	}
	return cleaned, ""
}

// collapseGlobstars folds runs of "**" segments into one and returns the
// number left.
func collapseGlobstars(p string) (string, int) {
	segs := strings.Split(p, "/")
	out := segs[:0]
	n := 0
	for _, s := range segs {
		if s == "**" {
			if len(out) > 0 && out[len(out)-1] == "**" {
				continue
			}
			n++
		}
		out = append(out, s)
	}
	return strings.Join(out, "/"), n
}

// compileAssets normalises, validates and deduplicates include globs.
func compileAssets(rules []AssetIncludeRule, collapse bool) (AssetPlan, error) {
	cleaned := make([]string, 0, len(rules))
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		p, reason := cleanPattern(string(rule))
		if reason != "" {
			return AssetPlan{}, &InvalidAssetPatternError{Index: i, Pattern: string(rule), Reason: reason}
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		cleaned = append(cleaned, p)
	}

	coveredBy := make([]int, len(cleaned))
	for j := range coveredBy {
		coveredBy[j] = -1
	}
	for j := range cleaned {
		for i := range cleaned {
			if i == j || coveredBy[i] >= 0 {
				continue
			}
			if covers(cleaned[i], cleaned[j]) {
				coveredBy[j] = i
				break
			}
		}
	}

	plan := AssetPlan{Patterns: make([]string, 0, len(cleaned))}
	for j, p := range cleaned {
		if coveredBy[j] >= 0 {
			plan.Overlaps = append(plan.Overlaps, Overlap{
				Pattern:   "./" + p,
				CoveredBy: "./" + cleaned[coveredBy[j]],
			})
			if collapse {
				continue
			}
		}
		plan.Patterns = append(plan.Patterns, "./"+p)
	}
	return plan, nil
}

// covers reports whether every file matched by b is also matched by a.
// It recognises recursive patterns ("dir/**", "dir/**/*") and literal
// paths; anything else is conservatively treated as not covering.
func covers(a, b string) bool {
	if base, ok := recursiveBase(a); ok {
		lit := literalPrefix(b)
		if base == "" {
			return true
		}
		return lit == base || strings.HasPrefix(lit, base+"/")
	}
	if strings.ContainsAny(b, globMeta) {
		return false
	}
	g, err := compileGlob(a)
	if err != nil {
		return false
	}
	return g.Match(b)
}

// recursiveBase returns the literal directory of a pattern of the form
// "dir/**" or "dir/**/*". The root pattern "**" yields "".
func recursiveBase(p string) (string, bool) {
	var base string
	switch {
	case p == "**" || p == "**/*":
		return "", true
	case strings.HasSuffix(p, "/**/*"):
		base = strings.TrimSuffix(p, "/**/*")
	case strings.HasSuffix(p, "/**"):
		base = strings.TrimSuffix(p, "/**")
	default:
		return "", false
	}
	if strings.ContainsAny(base, globMeta) {
		return "", false
	}
	return base, true
}

// literalPrefix returns the leading path segments of p that contain no
// glob metacharacters.
func literalPrefix(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if strings.ContainsAny(s, globMeta) {
			return strings.Join(segs[:i], "/")
		}
	}
	return p
}
