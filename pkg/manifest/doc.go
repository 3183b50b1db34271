// Package manifest compiles documentation-site manifests.
//
// # Overview
//
// A manifest describes a documentation site: its title, logo, social links,
// a sidebar tree of groups and items, and the deployment adapter's asset
// include globs. Compile validates a SiteConfig and flattens it into an
// immutable CompiledSite holding the sidebar routing table and the
// deduplicated asset plan.
//
// # Sidebar
//
// The sidebar is a tree. NavigationNode is a closed sum of *NavigationItem
// (a leaf with exactly one of Slug or Link) and *NavigationGroup (a labelled
// list of nodes). Top-level groups sit at depth 1; groups may nest down to
// the compiler's maximum depth (DefaultMaxDepth unless WithMaxDepth is used).
//
//	cfg := &manifest.SiteConfig{
//	    Title: "Sentry Build",
//	    Sidebar: []manifest.NavigationGroup{
//	        *manifest.Group("Workshop",
//	            manifest.Item("Quickstart", "quickstart"),
//	        ),
//	        *manifest.Group("Resources",
//	            manifest.Link("Docs", "https://docs.sentry.io/"),
//	        ),
//	    },
//	    Adapter: manifest.AdapterOptions{Target: manifest.TargetVercel},
//	}
//
//	site, err := manifest.Compile(cfg)
//
// # Errors
//
// Compilation is fail-fast. Every returned error implements ConfigError and
// names the manifest path of the offending node, e.g. "sidebar[1].items[0]".
// Use errors.As with the concrete types (DuplicateSlugError,
// InvalidLabelError, InvalidLinkError, InvalidAssetPatternError,
// NestingTooDeepError, InvalidTargetError, InvalidSiteError) or KindOf.
//
// # Purity
//
// Compile performs no I/O, keeps no state between calls and never modifies
// or retains its input. Compiling the same SiteConfig twice yields equal
// results.
package manifest
