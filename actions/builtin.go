package actions

import "fmt"

// Built-in action names. Rulesets reference these.
const (
	ActionCheckStudentStatus      = "check_student_status"
	ActionCheckFinancialClearance = "check_financial_clearance"
	ActionGetAbsences             = "get_absences"
	ActionCheckAbsenceLimits      = "check_absence_limits"
)

// RegisterBuiltins installs the built-in lookup actions over a data source.
// New actions are added by registering more entries; the decision engine and
// matcher are agnostic to what actions exist.
func RegisterBuiltins(reg *Registry, src DataSource) {
	reg.Register(ActionCheckStudentStatus, checkStudentStatus(src))
	reg.Register(ActionCheckFinancialClearance, checkFinancialClearance(src))
	reg.Register(ActionGetAbsences, getAbsences(src))
	reg.Register(ActionCheckAbsenceLimits, checkAbsenceLimits(src))
}

// studentID extracts the required student_id field from the request.
func studentID(ctx *Context) (string, bool) {
	id, ok := ctx.Fields["student_id"].(string)
	return id, ok && id != ""
}

func checkStudentStatus(src DataSource) Func {
	return func(tenantID string, ctx *Context) Result {
		id, ok := studentID(ctx)
		if !ok {
			return Result{OK: false, Error: "Missing fields.student_id"}
		}

		student, ok := src.Dataset(tenantID).Students[id]
		if !ok {
			return Result{OK: false, Error: fmt.Sprintf("Student not found: %s", id)}
		}

		return Result{OK: true, Data: map[string]any{
			"student": map[string]any{
				"id":     id,
				"name":   student.Name,
				"status": student.Status,
			},
		}}
	}
}

func checkFinancialClearance(src DataSource) Func {
	return func(tenantID string, ctx *Context) Result {
		id, ok := studentID(ctx)
		if !ok {
			return Result{OK: false, Error: "Missing fields.student_id"}
		}

		// A student with no finance record owes nothing.
		fin := src.Dataset(tenantID).Finance[id]

		return Result{OK: true, Data: map[string]any{
			"finance":              map[string]any{"balance_eur": fin.BalanceEUR},
			"is_financially_clear": fin.BalanceEUR <= 0,
		}}
	}
}

func getAbsences(src DataSource) Func {
	return func(tenantID string, ctx *Context) Result {
		id, ok := studentID(ctx)
		if !ok {
			return Result{OK: false, Error: "Missing fields.student_id"}
		}

		rec := src.Dataset(tenantID).Absences[id]

		return Result{OK: true, Data: map[string]any{
			"absences": map[string]any{"total": rec.Total},
		}}
	}
}

// checkAbsenceLimits depends on get_absences having already run: it reads
// the absence total from the chained runtime data rather than fetching it
// itself. Ordering is the ruleset author's responsibility; a missing
// dependency is reported, not fixed up.
func checkAbsenceLimits(src DataSource) Func {
	return func(tenantID string, ctx *Context) Result {
		absences, ok := ctx.Runtime["absences"].(map[string]any)
		if !ok {
			return Result{OK: false, Error: "Absences not loaded yet (run get_absences first)"}
		}
		total, ok := absences["total"].(int)
		if !ok {
			return Result{OK: false, Error: "Absences not loaded yet (run get_absences first)"}
		}

		limit := src.Dataset(tenantID).Limits.MaxAbsences

		return Result{OK: true, Data: map[string]any{
			"absence_limit":      limit,
			"over_absence_limit": total >= limit,
		}}
	}
}
