// Package engine selects a deterministic decision for a free-text question
// by matching it against a tenant category's ruleset.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/mkarvelas/krino/ruleset"
	"github.com/mkarvelas/krino/textnorm"
)

// DecisionUnknown is the decision label of the fallback outcome when no rule
// is eligible. It is a designed outcome, not an error.
const DecisionUnknown = "UNKNOWN"

const (
	unknownConfidence = 0.2
	unknownAnswer     = "Δεν υπάρχει καταγεγραμμένος κανόνας για αυτό το αίτημα."
)

// Decision is the structured outcome of one decide call.
type Decision struct {
	Decision   string      `json:"decision"`
	RuleID     string      `json:"rule_id,omitempty"`
	Confidence float64     `json:"confidence"`
	Answer     string      `json:"answer"`
	Actions    []string    `json:"actions"`
	Debug      *MatchTrace `json:"debug,omitempty"`
}

// Engine evaluates rulesets. Compiled guard programs are cached per
// (org_type, rule) behind an RWMutex, so concurrent decide calls share them.
type Engine struct {
	store  ruleset.Store
	env    *cel.Env
	logger *slog.Logger
	debug  bool

	mu     sync.RWMutex
	guards map[string]*guardEntry
}

// guardEntry caches one compiled guard. A compile failure is cached too:
// a rule that cannot compile stays ineligible without recompiling per call.
type guardEntry struct {
	prog cel.Program
	err  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithDebug embeds the winning match trace into decisions. Off by default;
// the trace is always available in debug logs.
func WithDebug(debug bool) Option {
	return func(e *Engine) { e.debug = debug }
}

// New creates an Engine over a ruleset store.
func New(store ruleset.Store, opts ...Option) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("fields", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	e := &Engine{
		store:  store,
		env:    env,
		logger: slog.Default(),
		guards: make(map[string]*guardEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Decide normalizes the question, loads the org_type's ruleset and selects
// the best eligible rule. Selection is by score, then declared confidence;
// the first rule in ruleset order wins exact ties, so authors control
// priority via list order. When nothing matches, the UNKNOWN fallback is
// returned. The only error Decide surfaces is a malformed ruleset resource.
func (e *Engine) Decide(orgType, question string, fields map[string]any) (*Decision, error) {
	q := textnorm.Normalize(question)

	rs, err := e.store.Load(orgType)
	if err != nil {
		return nil, err
	}

	var best *ruleset.Rule
	bestScore := -1
	bestConf := 0.0
	var bestTrace MatchTrace

	for i := range rs.Rules {
		r := &rs.Rules[i]

		res := Match(q, r)
		if !res.Eligible {
			continue
		}
		if r.When != "" && !e.guardAllows(rs.OrgType, r, fields) {
			continue
		}

		if res.Score > bestScore || (res.Score == bestScore && r.Confidence > bestConf) {
			best = r
			bestScore = res.Score
			bestConf = r.Confidence
			bestTrace = res.Trace
		}
	}

	if best == nil {
		e.logger.Debug("no rule matched",
			"org_type", rs.OrgType,
			"normalized_question", q,
			"rules_loaded", len(rs.Rules),
		)
		return &Decision{
			Decision:   DecisionUnknown,
			Confidence: unknownConfidence,
			Answer:     unknownAnswer,
			Actions:    []string{},
		}, nil
	}

	e.logger.Debug("rule selected",
		"org_type", rs.OrgType,
		"rule_id", best.ID,
		"score", bestScore,
		"confidence", best.Confidence,
		"any_fuzzy_ok", bestTrace.AnyFuzzyOK,
		"normalized_question", q,
	)

	d := &Decision{
		Decision:   best.Label(),
		RuleID:     best.ID,
		Confidence: best.Confidence,
		Answer:     best.Answer,
		Actions:    append([]string(nil), best.Actions...),
	}
	if e.debug {
		trace := bestTrace
		d.Debug = &trace
	}
	return d, nil
}

// guardAllows evaluates a rule's CEL guard against the request fields. Any
// failure (compile or eval) makes the rule ineligible; decide calls never
// fail because one rule carries a bad expression.
func (e *Engine) guardAllows(orgType string, r *ruleset.Rule, fields map[string]any) bool {
	prog, err := e.guardProgram(orgType, r)
	if err != nil {
		e.logger.Warn("rule guard failed to compile, rule skipped",
			"org_type", orgType, "rule_id", r.ID, "error", err)
		return false
	}

	if fields == nil {
		fields = map[string]any{}
	}
	out, _, err := prog.Eval(map[string]any{"fields": fields})
	if err != nil {
		e.logger.Warn("rule guard evaluation failed, rule skipped",
			"org_type", orgType, "rule_id", r.ID, "error", err)
		return false
	}

	allowed, ok := out.Value().(bool)
	return ok && allowed
}

// guardProgram returns the cached compiled guard for a rule, compiling it on
// first use. Guards run with a cost limit so a pathological expression
// cannot stall a decision.
func (e *Engine) guardProgram(orgType string, r *ruleset.Rule) (cel.Program, error) {
	// The expression is part of the key so an edited rule recompiles after
	// a ruleset reload.
	key := orgType + "/" + r.ID + "\x00" + r.When

	e.mu.RLock()
	entry, ok := e.guards[key]
	e.mu.RUnlock()
	if ok {
		return entry.prog, entry.err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.guards[key]; ok {
		return entry.prog, entry.err
	}

	entry = &guardEntry{}
	ast, issues := e.env.Compile(r.When)
	if issues != nil && issues.Err() != nil {
		entry.err = fmt.Errorf("compile guard: %w", issues.Err())
	} else {
		entry.prog, entry.err = e.env.Program(ast, cel.CostLimit(1000000))
	}

	e.guards[key] = entry
	return entry.prog, entry.err
}
