package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a configuration error.
type ErrorKind string

const (
	// KindDuplicateSlug is reported when two items resolve to the same slug.
	KindDuplicateSlug ErrorKind = "duplicate_slug"

	// KindInvalidLabel is reported for empty or whitespace-only labels.
	KindInvalidLabel ErrorKind = "invalid_label"

	// KindInvalidLink is reported for links that are not absolute http(s) URLs.
	KindInvalidLink ErrorKind = "invalid_link"

	// KindInvalidAssetPattern is reported for empty or malformed include globs.
	KindInvalidAssetPattern ErrorKind = "invalid_asset_pattern"

	// KindNestingTooDeep is reported when groups nest beyond the limit.
	KindNestingTooDeep ErrorKind = "nesting_too_deep"

	// KindInvalidTarget is reported when an item does not set exactly one of
	// slug and link, or its slug is not path-safe.
	KindInvalidTarget ErrorKind = "invalid_target"

	// KindInvalidSite is reported for site-level fields (title, adapter, logo).
	KindInvalidSite ErrorKind = "invalid_site"

	// KindUnknown is returned by KindOf for errors outside this package.
	KindUnknown ErrorKind = "unknown"
)

// ConfigError is implemented by every error Compile returns.
type ConfigError interface {
	error

	// Kind returns the error classification.
	Kind() ErrorKind

	// Location returns the manifest path of the offending node,
	// e.g. "sidebar[0].items[2]".
	Location() string
}

// KindOf returns the kind of the first ConfigError in err's chain.
func KindOf(err error) ErrorKind {
	var ce ConfigError
	if errors.As(err, &ce) {
		return ce.Kind()
	}
	return KindUnknown
}

// DuplicateSlugError reports a slug claimed by more than one item.
type DuplicateSlugError struct {
	Slug string

	// Locations holds the path of the first owner followed by the
	// path of the colliding item.
	Locations []string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("duplicate slug %q at %s", e.Slug, strings.Join(e.Locations, " and "))
}

// Kind implements ConfigError.
func (e *DuplicateSlugError) Kind() ErrorKind { return KindDuplicateSlug }

// Location implements ConfigError. It points at the colliding item.
func (e *DuplicateSlugError) Location() string {
	if len(e.Locations) == 0 {
		return ""
	}
	return e.Locations[len(e.Locations)-1]
}

// InvalidLabelError reports a group or item without a usable label.
type InvalidLabelError struct {
	Path string
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("%s: label must not be empty", e.Path)
}

// Kind implements ConfigError.
func (e *InvalidLabelError) Kind() ErrorKind { return KindInvalidLabel }

// Location implements ConfigError.
func (e *InvalidLabelError) Location() string { return e.Path }

// InvalidLinkError reports a link that is not an absolute http(s) URL.
type InvalidLinkError struct {
	Path  string
	Value string
	Err   error
}

func (e *InvalidLinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid link %q: %v", e.Path, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: invalid link %q: must be an absolute http or https URL", e.Path, e.Value)
}

// Unwrap returns the URL parse error, if any.
func (e *InvalidLinkError) Unwrap() error { return e.Err }

// Kind implements ConfigError.
func (e *InvalidLinkError) Kind() ErrorKind { return KindInvalidLink }

// Location implements ConfigError.
func (e *InvalidLinkError) Location() string { return e.Path }

// InvalidAssetPatternError reports an empty or malformed include glob.
type InvalidAssetPatternError struct {
	// Index is the position of the pattern in adapter.include_files.
	Index   int
	Pattern string
	Reason  string
}

func (e *InvalidAssetPatternError) Error() string {
	return fmt.Sprintf("%s: invalid asset pattern %q: %s", e.Location(), e.Pattern, e.Reason)
}

// Kind implements ConfigError.
func (e *InvalidAssetPatternError) Kind() ErrorKind { return KindInvalidAssetPattern }

// Location implements ConfigError.
func (e *InvalidAssetPatternError) Location() string {
	return fmt.Sprintf("adapter.include_files[%d]", e.Index)
}

// NestingTooDeepError reports a group nested beyond the configured limit.
type NestingTooDeepError struct {
	Path  string
	Depth int
	Limit int
}

func (e *NestingTooDeepError) Error() string {
	return fmt.Sprintf("%s: group nested at depth %d exceeds limit %d", e.Path, e.Depth, e.Limit)
}

// Kind implements ConfigError.
func (e *NestingTooDeepError) Kind() ErrorKind { return KindNestingTooDeep }

// Location implements ConfigError.
func (e *NestingTooDeepError) Location() string { return e.Path }

// InvalidTargetError reports an item whose slug/link pair is unusable.
type InvalidTargetError struct {
	Path   string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Kind implements ConfigError.
func (e *InvalidTargetError) Kind() ErrorKind { return KindInvalidTarget }

// Location implements ConfigError.
func (e *InvalidTargetError) Location() string { return e.Path }

// InvalidSiteError reports a site-level field that failed validation.
type InvalidSiteError struct {
	// Field is the manifest path of the field, e.g. "adapter.target".
	Field string

	// Rule is the failed validation rule, e.g. "required" or "oneof".
	Rule string

	// Value is the rejected value, if any.
	Value string
}

func (e *InvalidSiteError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: value %q fails rule %q", e.Field, e.Value, e.Rule)
	}
	return fmt.Sprintf("%s: fails rule %q", e.Field, e.Rule)
}

// Kind implements ConfigError.
func (e *InvalidSiteError) Kind() ErrorKind { return KindInvalidSite }

// Location implements ConfigError.
func (e *InvalidSiteError) Location() string { return e.Field }
