package tracker

import (
	"encoding/json"
	"testing"
)

// TestStatusTerminal tests the terminal/active split of the status enum
func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		active   bool
	}{
		{StatusPending, false, true},
		{StatusRunning, false, true},
		{StatusCompleted, true, false},
		{StatusFailed, true, false},
		{StatusCancelled, true, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.IsActive(); got != tt.active {
			t.Errorf("%s.IsActive() = %v, want %v", tt.status, got, tt.active)
		}
		if err := tt.status.Validate(); err != nil {
			t.Errorf("%s.Validate() = %v, want nil", tt.status, err)
		}
	}
}

// TestStatusValidateRejectsUnknown tests that unknown statuses fail validation
func TestStatusValidateRejectsUnknown(t *testing.T) {
	for _, bad := range []Status{"", "done", "IN_PROGRESS", "Running"} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%q) = nil, want error", bad)
		}
	}
}

// TestStatusDashboard tests the dashboard spelling mapping
func TestStatusDashboard(t *testing.T) {
	if got := StatusRunning.Dashboard(); got != "in_progress" {
		t.Errorf("running Dashboard() = %q, want in_progress", got)
	}
	for _, s := range []Status{StatusPending, StatusCompleted, StatusFailed, StatusCancelled} {
		if got := s.Dashboard(); got != string(s) {
			t.Errorf("%s Dashboard() = %q, want %q", s, got, s)
		}
	}
}

// TestParseStatus tests parsing both canonical and dashboard spellings
func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"pending", StatusPending},
		{"running", StatusRunning},
		{"in_progress", StatusRunning},
		{"completed", StatusCompleted},
		{"failed", StatusFailed},
		{"cancelled", StatusCancelled},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if err != nil {
			t.Errorf("ParseStatus(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseStatus("finished"); err == nil {
		t.Error("ParseStatus(finished) = nil error, want error")
	}
}

// TestStatusJSONRoundTrip tests that the dashboard spelling is normalized
// on unmarshal
func TestStatusJSONRoundTrip(t *testing.T) {
	var s Status
	if err := json.Unmarshal([]byte(`"in_progress"`), &s); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s != StatusRunning {
		t.Errorf("unmarshal in_progress = %s, want running", s)
	}

	data, err := json.Marshal(StatusRunning)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"running"` {
		t.Errorf("marshal running = %s, want \"running\"", data)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("unmarshal bogus succeeded, want error")
	}
}

// TestLevelValidate tests log level validation
func TestLevelValidate(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarning, LevelError} {
		if err := l.Validate(); err != nil {
			t.Errorf("%s.Validate() = %v, want nil", l, err)
		}
	}
	if err := Level("trace").Validate(); err == nil {
		t.Error("Validate(trace) = nil, want error")
	}
}
