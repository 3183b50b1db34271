package policy

import (
	"strconv"
	"time"
)

// DefaultMaxLabelLength is the label-length policy limit when the
// max_label_length setting is absent.
const DefaultMaxLabelLength = 48

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		httpsLinksPolicy(),
		slugFormatPolicy(),
		labelLengthPolicy(),
		duplicateLabelsPolicy(),
		assetOverlapPolicy(),
	}
}

func builtin(p Policy) Policy {
	p.Builtin = true
	p.Enabled = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	return p
}

// httpsLinksPolicy flags external and social links served over plain http.
func httpsLinksPolicy() Policy {
	return builtin(Policy{
		Name:        "https-links",
		Description: "External and social links should use https",
		Severity:    SeverityWarning,
		Tags:        []string{"links", "security"},
		Rego: `package starchart.policies.links

import rego.v1

deny contains violation if {
	some route in input.site.routes
	route.external
	startswith(lower(route.href), "http://")
	violation := {
		"message": sprintf("External link %q should use https", [route.href]),
		"location": route.location,
	}
}

deny contains violation if {
	some link in input.site.social
	startswith(lower(link.url), "http://")
	violation := {
		"message": sprintf("Social link %s should use https", [link.name]),
		"location": sprintf("social.%s", [link.name]),
	}
}
`,
	})
}

// slugFormatPolicy asks for lowercase kebab-case slugs.
func slugFormatPolicy() Policy {
	return builtin(Policy{
		Name:        "slug-format",
		Description: "Slugs should be lowercase kebab-case path segments",
		Severity:    SeverityWarning,
		Tags:        []string{"naming", "conventions"},
		Rego: `package starchart.policies.slugs

import rego.v1

kebab := ` + "`" + `^[a-z0-9]+(-[a-z0-9]+)*(/[a-z0-9]+(-[a-z0-9]+)*)*$` + "`" + `

deny contains violation if {
	some route in input.site.routes
	not route.external
	route.slug != "index"
	not regex.match(kebab, route.slug)
	violation := {
		"message": sprintf("Slug %q should be lowercase kebab-case", [route.slug]),
		"location": route.location,
	}
}
`,
	})
}

// labelLengthPolicy flags labels that will wrap in a narrow sidebar.
func labelLengthPolicy() Policy {
	return builtin(Policy{
		Name:        "label-length",
		Description: "Sidebar labels should stay short",
		Severity:    SeverityInfo,
		Tags:        []string{"readability"},
		Rego: `package starchart.policies.labels

import rego.v1

limit := object.get(input, ["context", "settings", "max_label_length"], ` + strconv.Itoa(DefaultMaxLabelLength) + `)

deny contains violation if {
	some route in input.site.routes
	count(route.label) > limit
	violation := {
		"message": sprintf("Label %q is %d characters long (limit %d)", [route.label, count(route.label), limit]),
		"location": route.location,
	}
}
`,
	})
}

// duplicateLabelsPolicy flags two entries with the same label in one group.
func duplicateLabelsPolicy() Policy {
	return builtin(Policy{
		Name:        "duplicate-labels",
		Description: "Labels should be unique within a sidebar group",
		Severity:    SeverityWarning,
		Tags:        []string{"readability"},
		Rego: `package starchart.policies.duplicates

import rego.v1

deny contains violation if {
	some i, j
	first := input.site.routes[i]
	second := input.site.routes[j]
	i < j
	first.label == second.label
	first.section == second.section
	violation := {
		"message": sprintf("Label %q appears more than once in %s", [second.label, concat(" > ", second.section)]),
		"location": second.location,
	}
}
`,
	})
}

// assetOverlapPolicy reports include globs already covered by broader ones.
func assetOverlapPolicy() Policy {
	return builtin(Policy{
		Name:        "asset-overlap",
		Description: "Asset include patterns should not overlap",
		Severity:    SeverityInfo,
		Tags:        []string{"assets"},
		Rego: `package starchart.policies.assets

import rego.v1

deny contains violation if {
	some overlap in input.site.assets.overlaps
	violation := {
		"message": sprintf("Asset pattern %s is already covered by %s", [overlap.pattern, overlap.covered_by]),
		"location": "adapter.include_files",
	}
}
`,
	})
}
