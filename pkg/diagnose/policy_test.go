package diagnose

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/adtrack/adtrack/pkg/tracker"
)

const customerPolicy = `package adtrack.diagnostics

import rego.v1

deny contains violation if {
	input.status == "failed"
	not input.metadata.customerId
	violation := {
		"type": "missing_customer_id",
		"message": "Failed operation carries no customer id",
		"severity": "medium",
		"resolution": "Tag operations with customerId at creation",
	}
}
`

// TestPolicyRuleFindings tests that deny objects map onto findings
func TestPolicyRuleFindings(t *testing.T) {
	rule, err := CompilePolicy(context.Background(), "customer", customerPolicy)
	if err != nil {
		t.Fatalf("CompilePolicy failed: %v", err)
	}

	trk := tracker.New(tracker.NewMemoryStore(), tracker.Config{})
	id := setupFailedClone(t, trk, "boom", nil)
	op, err := trk.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	findings := rule.Evaluate(op)
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
	f := findings[0]
	if f.Type != "missing_customer_id" {
		t.Errorf("type = %s, want missing_customer_id", f.Type)
	}
	if f.Severity != SeverityMedium {
		t.Errorf("severity = %s, want medium", f.Severity)
	}
	if f.Description != "Failed operation carries no customer id" {
		t.Errorf("unexpected description %q", f.Description)
	}
	if f.Resolution == "" {
		t.Error("resolution not carried over")
	}
}

// TestPolicyRuleNoViolations tests a snapshot the policy accepts
func TestPolicyRuleNoViolations(t *testing.T) {
	rule, err := CompilePolicy(context.Background(), "customer", customerPolicy)
	if err != nil {
		t.Fatalf("CompilePolicy failed: %v", err)
	}

	trk := tracker.New(tracker.NewMemoryStore(), tracker.Config{})
	id := setupFailedClone(t, trk, "boom", map[string]any{
		KeyCustomerID: "123-456-7890",
	})
	op, err := trk.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if findings := rule.Evaluate(op); len(findings) != 0 {
		t.Errorf("findings = %v, want none", findings)
	}
}

// TestPolicyRuleStringViolation tests the bare-string deny form
func TestPolicyRuleStringViolation(t *testing.T) {
	source := `package adtrack.diagnostics

import rego.v1

deny contains "operation failed" if {
	input.status == "failed"
}
`
	rule, err := CompilePolicy(context.Background(), "plain", source)
	if err != nil {
		t.Fatalf("CompilePolicy failed: %v", err)
	}

	trk := tracker.New(tracker.NewMemoryStore(), tracker.Config{})
	id := setupFailedClone(t, trk, "boom", nil)
	op, _ := trk.Get(id)

	findings := rule.Evaluate(op)
	if len(findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(findings))
	}
	if findings[0].Type != "policy_plain" {
		t.Errorf("type = %s, want policy_plain", findings[0].Type)
	}
	if findings[0].Severity != SeverityLow {
		t.Errorf("severity = %s, want low", findings[0].Severity)
	}
	if findings[0].Description != "operation failed" {
		t.Errorf("unexpected description %q", findings[0].Description)
	}
}

// TestCompilePolicyInvalid tests that broken Rego is rejected
func TestCompilePolicyInvalid(t *testing.T) {
	if _, err := CompilePolicy(context.Background(), "bad", "this is not rego"); err == nil {
		t.Fatal("expected compile error")
	}
}

// TestLoadPolicyRules tests directory loading and skip-on-invalid
func TestLoadPolicyRules(t *testing.T) {
	dir := t.TempDir()
	writePolicy := func(name, source string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(source), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	writePolicy("customer.rego", customerPolicy)
	writePolicy("broken.rego", "not rego at all")
	writePolicy("notes.txt", "ignored")

	rules, err := LoadPolicyRules(context.Background(), dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadPolicyRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1 (broken and non-rego files skipped)", len(rules))
	}
	if rules[0].Name() != "customer" {
		t.Errorf("rule name = %s, want customer", rules[0].Name())
	}
}

// TestLoadPolicyRulesMissingDir tests the error path for a bad directory
func TestLoadPolicyRulesMissingDir(t *testing.T) {
	if _, err := LoadPolicyRules(context.Background(), filepath.Join(t.TempDir(), "nope"), zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

// TestAnalyzerWithPolicyRules tests policy rules alongside the builtins
func TestAnalyzerWithPolicyRules(t *testing.T) {
	rule, err := CompilePolicy(context.Background(), "customer", customerPolicy)
	if err != nil {
		t.Fatalf("CompilePolicy failed: %v", err)
	}
	rules := append(BuiltinRules(), rule)

	trk := tracker.New(tracker.NewMemoryStore(), tracker.Config{})
	id := setupFailedClone(t, trk, "quota exceeded", map[string]any{
		KeyChunkSize: 4,
	})
	op, _ := trk.Get(id)

	findings := NewAnalyzer(zerolog.Nop(), rules...).Analyze(op)
	if findingByType(findings, FindingRateLimit) == nil {
		t.Error("builtin rate-limit finding missing")
	}
	if findingByType(findings, "missing_customer_id") == nil {
		t.Error("policy finding missing")
	}
}
