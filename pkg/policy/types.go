package policy

import (
	"fmt"
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that should fail a lint run.
	SeverityError Severity = "error"
)

// Rank orders severities; unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 0
	}
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityError:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity %q (want info, warning or error)", s)
	}
}

// Policy represents a lint rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. The module must define a
	// deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the engine.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is a single lint finding.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Location is the manifest path the finding points at.
	Location string `json:"location,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Report is the result of evaluating all enabled policies.
type Report struct {
	// Violations lists all findings, sorted by policy and location.
	Violations []Violation `json:"violations"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation happened.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Count returns the number of violations with the given severity.
func (r *Report) Count(s Severity) int {
	n := 0
	for i := range r.Violations {
		if r.Violations[i].Severity == s {
			n++
		}
	}
	return n
}

// Fails reports whether any violation is at or above threshold.
func (r *Report) Fails(threshold Severity) bool {
	for i := range r.Violations {
		if r.Violations[i].Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}

// Input is the document policies evaluate. Site is the JSON form of a
// compiled site.
type Input struct {
	Site    interface{}   `json:"site"`
	Context *EvalContext `json:"context"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Source is the manifest path.
	Source string `json:"source,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Settings carries policy parameters such as max_label_length.
	Settings map[string]interface{} `json:"settings,omitempty"`
}
