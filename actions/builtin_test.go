package actions

import (
	"strings"
	"testing"
)

func demoRunner() *Runner {
	reg := NewRegistry()
	RegisterBuiltins(reg, NewStaticDataSource(DemoDataset()))
	return NewRunner(reg, nil)
}

func TestCheckStudentStatus(t *testing.T) {
	runner := demoRunner()

	out := runner.Run("TEN-1", []string{ActionCheckStudentStatus}, studentContext("STU-001"))

	res := out.Results[0]
	if !res.OK {
		t.Fatalf("action failed: %s", res.Error)
	}
	student, ok := out.Data["student"].(map[string]any)
	if !ok {
		t.Fatalf(`Data["student"] missing, got %v`, out.Data)
	}
	if student["status"] != "active" {
		t.Errorf("student status = %v, want active", student["status"])
	}
}

func TestCheckStudentStatusMissingField(t *testing.T) {
	runner := demoRunner()

	out := runner.Run("TEN-1", []string{ActionCheckStudentStatus}, studentContext(""))

	res := out.Results[0]
	if res.OK {
		t.Fatal("action should fail without fields.student_id")
	}
	if res.Error != "Missing fields.student_id" {
		t.Errorf("Error = %q, want %q", res.Error, "Missing fields.student_id")
	}
}

func TestCheckStudentStatusNotFound(t *testing.T) {
	runner := demoRunner()

	out := runner.Run("TEN-1", []string{ActionCheckStudentStatus}, studentContext("STU-404"))

	res := out.Results[0]
	if res.OK {
		t.Fatal("action should fail for an unknown student")
	}
	if !strings.Contains(res.Error, "STU-404") {
		t.Errorf("Error = %q, should name the student", res.Error)
	}
}

func TestCheckFinancialClearance(t *testing.T) {
	runner := demoRunner()

	tests := []struct {
		student string
		clear   bool
	}{
		{"STU-001", true},
		{"STU-002", false},
	}

	for _, tt := range tests {
		out := runner.Run("TEN-1", []string{ActionCheckFinancialClearance}, studentContext(tt.student))
		res := out.Results[0]
		if !res.OK {
			t.Fatalf("action failed for %s: %s", tt.student, res.Error)
		}
		if out.Data["is_financially_clear"] != tt.clear {
			t.Errorf("is_financially_clear for %s = %v, want %v", tt.student, out.Data["is_financially_clear"], tt.clear)
		}
	}
}

// TestAbsenceChaining verifies the documented dependency: running
// get_absences then check_absence_limits succeeds, while the reversed order
// fails the limit check with a descriptive error but still runs
// get_absences successfully.
func TestAbsenceChaining(t *testing.T) {
	runner := demoRunner()

	out := runner.Run("TEN-1", []string{ActionGetAbsences, ActionCheckAbsenceLimits}, studentContext("STU-002"))

	for _, res := range out.Results {
		if !res.OK {
			t.Fatalf("action %s failed: %s", res.Name, res.Error)
		}
	}
	if out.Data["absence_limit"] != 20 {
		t.Errorf("absence_limit = %v, want 20", out.Data["absence_limit"])
	}
	if out.Data["over_absence_limit"] != false {
		t.Errorf("over_absence_limit = %v, want false (18 < 20)", out.Data["over_absence_limit"])
	}
}

func TestAbsenceChainingReversedOrder(t *testing.T) {
	runner := demoRunner()

	out := runner.Run("TEN-1", []string{ActionCheckAbsenceLimits, ActionGetAbsences}, studentContext("STU-001"))

	limitRes := out.Results[0]
	if limitRes.OK {
		t.Fatal("check_absence_limits should fail before get_absences has run")
	}
	if !strings.Contains(limitRes.Error, "get_absences") {
		t.Errorf("Error = %q, should point at the missing prerequisite", limitRes.Error)
	}

	absRes := out.Results[1]
	if !absRes.OK {
		t.Errorf("get_absences should still succeed, got: %s", absRes.Error)
	}
}

// TestDataSourceFallback verifies tenants without a dedicated dataset use
// the default one.
func TestDataSourceFallback(t *testing.T) {
	src := NewStaticDataSource(DemoDataset())
	src.SetTenant("TEN-SPECIAL", &Dataset{
		Students: map[string]Student{"STU-900": {Name: "Eleni", Status: "active"}},
		Limits:   Limits{MaxAbsences: 5},
	})

	if _, ok := src.Dataset("TEN-SPECIAL").Students["STU-900"]; !ok {
		t.Error("dedicated dataset should be served for its tenant")
	}
	if _, ok := src.Dataset("TEN-OTHER").Students["STU-001"]; !ok {
		t.Error("unknown tenant should fall back to the default dataset")
	}
}
