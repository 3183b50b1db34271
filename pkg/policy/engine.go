package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/starchart/starchart/pkg/manifest"
)

// Engine evaluates Rego lint policies against compiled sites.
type Engine struct {
	mu              sync.RWMutex
	policies        map[string]*compiledPolicy
	store           storage.Store
	logger          zerolog.Logger
	builtinPolicies []Policy
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a new policy engine with the builtin policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies:        make(map[string]*compiledPolicy),
		store:           inmem.New(),
		logger:          logger.With().Str("component", "policy-engine").Logger(),
		builtinPolicies: GetBuiltinPolicies(),
	}

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// Evaluate evaluates every enabled policy against site. A policy that
// fails to evaluate is reported in Report.Warnings and does not stop the
// others.
func (e *Engine) Evaluate(ctx context.Context, site *manifest.CompiledSite, ectx EvalContext) (*Report, error) {
	startTime := time.Now()

	input, err := buildInput(site, ectx)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	report := &Report{
		Violations:        []Violation{},
		EvaluatedPolicies: make([]string, 0, len(e.policies)),
	}

	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		report.EvaluatedPolicies = append(report.EvaluatedPolicies, name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", name).
				Msg("Policy evaluation failed")
			report.Warnings = append(report.Warnings, fmt.Sprintf("Policy %s evaluation failed: %v", name, err))
			continue
		}
		report.Violations = append(report.Violations, violations...)
	}

	sort.SliceStable(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Policy != b.Policy {
			return a.Policy < b.Policy
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Message < b.Message
	})

	report.EvaluatedAt = time.Now()
	report.Duration = time.Since(startTime)

	e.logger.Debug().
		Int("policies", len(report.EvaluatedPolicies)).
		Int("violations", len(report.Violations)).
		Dur("duration", report.Duration).
		Msg("Site policy evaluation completed")

	return report, nil
}

// buildInput converts the site to its JSON document form so policies see
// the same field names as the compile artifact.
func buildInput(site *manifest.CompiledSite, ectx EvalContext) (map[string]interface{}, error) {
	if site == nil {
		return nil, fmt.Errorf("no site to evaluate")
	}
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = time.Now()
	}

	data, err := json.Marshal(Input{Site: site, Context: &ectx})
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}
	var input map[string]interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return input, nil
}

// LoadPolicies loads policy files and adds them to the engine.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			e.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// AddPolicy compiles and adds a single policy, replacing any policy with
// the same name.
func (e *Engine) AddPolicy(ctx context.Context, policy Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.compileAndStorePolicy(ctx, &policy)
}

// ReplacePolicies swaps all user policies for the given set, keeping the
// builtin ones. The engine is unchanged if any policy fails to compile.
func (e *Engine) ReplacePolicies(ctx context.Context, policies []Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.policies
	e.policies = make(map[string]*compiledPolicy, len(previous))
	for name, cp := range previous {
		if cp.policy.Builtin {
			e.policies[name] = cp
		}
	}

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			e.policies = previous
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("User policies replaced")
	return nil
}

// evaluatePolicy evaluates a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input map[string]interface{}) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		if denySet, ok := result.Expressions[0].Value.([]interface{}); ok {
			for _, d := range denySet {
				violations = append(violations, createViolation(cp.policy, d))
			}
		}
	}

	return violations, nil
}

// createViolation creates a Violation from a deny set member. Members may
// be plain strings or objects with message, severity and location keys.
func createViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			if parsed, err := ParseSeverity(sev); err == nil {
				violation.Severity = parsed
			}
		}
		if loc, ok := v["location"].(string); ok {
			violation.Location = loc
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy compiles a policy and stores it. The caller holds
// the write lock.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("policy has no name")
	}
	if policy.Severity == "" {
		policy.Severity = SeverityWarning
	}

	module, err := ast.ParseModule(policy.Name+".rego", policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	query := module.Package.Path.String() + ".deny"
	r := rego.New(
		rego.ParsedModule(module),
		rego.Store(e.store),
		rego.Query(query),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    prepared,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Str("query", query).
		Msg("Policy compiled successfully")

	return nil
}

// loadBuiltinPolicies loads the built-in policies.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.builtinPolicies {
		p := e.builtinPolicies[i]
		if err := e.compileAndStorePolicy(ctx, &p); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}

	e.logger.Debug().
		Int("count", len(e.builtinPolicies)).
		Msg("Built-in policies loaded")

	return nil
}

func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	p := *cp.policy
	return &p, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}

	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy state changed")

	return nil
}
