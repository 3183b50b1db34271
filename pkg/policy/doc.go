// Package policy lints compiled sites with Open Policy Agent (OPA) Rego
// policies.
//
// Every policy is a Rego module that defines a deny set. Members of the set
// are either plain strings or objects with message, location and severity
// keys. The engine queries <package>.deny for each enabled policy and turns
// the members into Violations.
//
// # Input
//
// Policies see the JSON form of a compiled site under input.site and the
// evaluation context under input.context:
//
//	{
//	  "site": {
//	    "title": "Docs",
//	    "routes": [{"label": "...", "href": "...", "external": false,
//	                "slug": "...", "section": ["Guides"], "location": "sidebar[0].items[0]"}],
//	    "assets": {"patterns": [...], "overlaps": [{"pattern": "...", "covered_by": "..."}]},
//	    "adapter": {"target": "static"}
//	  },
//	  "context": {"source": "starchart.yaml", "settings": {"max_label_length": 40}}
//	}
//
// # Built-in Policies
//
//   - https-links: external and social links should use https
//   - slug-format: slugs should be lowercase kebab-case
//   - label-length: labels longer than max_label_length (default 48)
//   - duplicate-labels: the same label twice in one group
//   - asset-overlap: include globs already covered by another glob
//
// # Custom Policies
//
// Custom policies are loaded from .rego files or JSON policy definitions.
// A leading comment block becomes the description, and a "severity:" line
// in it sets the default severity:
//
//	# Guides must not link to the staging site.
//	# severity: error
//	package starchart.custom.staging
//
//	import rego.v1
//
//	deny contains msg if {
//		some route in input.site.routes
//		contains(route.href, "staging.")
//		msg := sprintf("%s links to staging", [route.label])
//	}
//
// Usage:
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := engine.LoadPolicies(ctx, []string{"./policies"}); err != nil {
//	    return err
//	}
//	report, err := engine.Evaluate(ctx, site, policy.EvalContext{Source: path})
//	if report.Fails(policy.SeverityError) {
//	    ...
//	}
//
// The Loader can also watch policy directories and hand reloaded policies
// to Engine.ReplacePolicies.
package policy
