// Package config loads Starchart site manifests.
//
// # Overview
//
// A manifest can be written as data (YAML, JSON or TOML), as a CUE file or
// package, or as a Starlark script. Every format decodes into the same
// Document, which converts into a manifest.SiteConfig for compilation.
//
// # Formats
//
//   - YAML, JSON, TOML: decoded strictly; unknown keys are errors.
//   - CUE: unified with the builtin #Site schema (see SchemaRegistry)
//     before decoding, so misspelled fields are reported with positions.
//   - Starlark: the script must bind a global named "site". The helpers
//     group(), item() and link() are predeclared and load() is disabled.
//
// Sidebar entries with an items key are groups; every other entry is an
// item. Top-level entries must be groups.
//
// # Usage Example
//
//	loader := config.NewLoader(logger, 0)
//
//	cfg, src, err := loader.LoadSite(ctx, "starchart.yaml")
//	if err != nil {
//	    return err
//	}
//	site, err := manifest.Compile(cfg)
//
// # Starlark
//
//	_workshop = ["quickstart", "getting-started"]
//
//	site = {
//	    "title": "Sentry Build",
//	    "sidebar": [
//	        group("Workshop", [item(s.replace("-", " ").title(), s) for s in _workshop]),
//	        group("Resources", [link("Docs", "https://docs.sentry.io/")]),
//	    ],
//	    "adapter": {"target": "vercel"},
//	}
//
// # Scaffolding
//
// Scaffold walks a content directory and proposes a SiteConfig, reading
// page labels from front matter.
package config
