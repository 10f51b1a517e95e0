package actions

import (
	"log/slog"
	"sort"
	"sync"
)

// errUnknownAction is the exact error string recorded for an unregistered
// action name.
const errUnknownAction = "Unknown action"

// Registry maps action names to implementations. The set is fixed at
// startup: rulesets reference actions by name, and an unknown name degrades
// to a failed result rather than an error.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds a name to an implementation, replacing any previous one.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

// Resolve looks up an action by name.
func (r *Registry) Resolve(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Runner executes action lists against a registry.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(registry *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, logger: logger}
}

// Run executes names strictly in order. Actions are sequential on purpose:
// later actions may read what earlier ones wrote into ctx.Runtime. A failing
// or unknown action is recorded and the run continues; successful data is
// merged last-write-wins into the output and into ctx.Runtime.
func (r *Runner) Run(tenantID string, names []string, ctx *Context) *Output {
	out := &Output{
		Data:    make(map[string]any),
		Results: make([]Result, 0, len(names)),
	}

	if ctx.Runtime == nil {
		ctx.Runtime = make(map[string]any)
	}

	for _, name := range names {
		fn, ok := r.registry.Resolve(name)
		if !ok {
			r.logger.Warn("unknown action requested", "action", name, "tenant_id", tenantID)
			out.Results = append(out.Results, Result{Name: name, OK: false, Error: errUnknownAction})
			continue
		}

		res := fn(tenantID, ctx)
		res.Name = name
		out.Results = append(out.Results, res)

		if !res.OK {
			r.logger.Debug("action failed", "action", name, "tenant_id", tenantID, "error", res.Error)
			continue
		}

		for k, v := range res.Data {
			out.Data[k] = v
			ctx.Runtime[k] = v
		}
	}

	return out
}
